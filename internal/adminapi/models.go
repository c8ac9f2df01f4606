package adminapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SystemHealth is the body of GET /api/admin/health.
type SystemHealth struct {
	OverallStatus     string            `json:"overallStatus"`
	ComponentStatuses map[string]string `json:"componentStatuses"`
	Issues            []string          `json:"issues"`
	LastChecked       Timestamp         `json:"lastChecked"`
}

// HealthCheckResult is the body of POST /api/admin/health/check.
type HealthCheckResult struct {
	Healthy   bool            `json:"healthy"`
	Checks    map[string]bool `json:"checks"`
	Errors    []string        `json:"errors"`
	Timestamp Timestamp       `json:"timestamp"`
}

// SystemInfo is the body of GET /api/admin/system-info.
// Memory fields are bytes and Uptime is milliseconds.
type SystemInfo struct {
	ApplicationName     string    `json:"applicationName"`
	Version             string    `json:"version"`
	BuildTime           string    `json:"buildTime"`
	RuntimeVersion      string    `json:"javaVersion"`
	OSName              string    `json:"osName"`
	OSVersion           string    `json:"osVersion"`
	TotalMemory         int64     `json:"totalMemory"`
	FreeMemory          int64     `json:"freeMemory"`
	UsedMemory          int64     `json:"usedMemory"`
	AvailableProcessors int       `json:"availableProcessors"`
	StartTime           Timestamp `json:"startTime"`
	Uptime              int64     `json:"uptime"`
}

// AuditStatistics is the body of GET /api/admin/audit-logs/statistics.
type AuditStatistics struct {
	TotalLogs      int64            `json:"totalLogs"`
	SuccessfulLogs int64            `json:"successfulLogs"`
	FailedLogs     int64            `json:"failedLogs"`
	UniqueUsers    int64            `json:"uniqueUsers"`
	UniqueIPs      int64            `json:"uniqueIPs"`
	ActionCounts   map[string]int64 `json:"actionCounts"`
	CategoryCounts map[string]int64 `json:"categoryCounts"`
}

// MonitoringStatistics is the body of GET /api/admin/monitoring/statistics.
type MonitoringStatistics struct {
	TotalMetrics    int64            `json:"totalMetrics"`
	NormalMetrics   int64            `json:"normalMetrics"`
	WarningMetrics  int64            `json:"warningMetrics"`
	CriticalMetrics int64            `json:"criticalMetrics"`
	CategoryCounts  map[string]int64 `json:"categoryCounts"`
}

// MetricStatus is the backend's metric status enum.
type MetricStatus string

const (
	MetricStatusNormal   MetricStatus = "NORMAL"
	MetricStatusOK       MetricStatus = "OK"
	MetricStatusWarning  MetricStatus = "WARNING"
	MetricStatusCritical MetricStatus = "CRITICAL"
	MetricStatusUnknown  MetricStatus = "UNKNOWN"
)

// Metric is one element of GET /api/admin/monitoring/critical.
type Metric struct {
	ID        int64        `json:"id"`
	Name      string       `json:"metricName"`
	Value     float64      `json:"metricValue"`
	Unit      string       `json:"metricUnit"`
	Category  string       `json:"category"`
	Status    MetricStatus `json:"status"`
	Timestamp Timestamp    `json:"timestamp"`
}

// UserActivity is one entry of UserActivityStatistics.TopUsers.
type UserActivity struct {
	Username      string    `json:"username"`
	FullName      string    `json:"fullName"`
	ActivityCount int64     `json:"activityCount"`
	LastActivity  Timestamp `json:"lastActivity"`
}

// UserActivityStatistics is the body of GET /api/admin/users/activity-statistics.
// ActivityByHour is keyed by hour of day ("0".."23").
type UserActivityStatistics struct {
	TotalUsers     int64            `json:"totalUsers"`
	ActiveUsers    int64            `json:"activeUsers"`
	NewUsers       int64            `json:"newUsers"`
	ActivityByHour map[string]int64 `json:"activityByHour"`
	TopUsers       []UserActivity   `json:"topUsers"`
}

// Severity is a verification issue severity.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Issue is a single data integrity finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Details  string   `json:"details"`
}

// VerificationReport is the body of GET /api/admin/data-verification/run.
type VerificationReport struct {
	TotalIssues     int       `json:"totalIssues"`
	CriticalIssues  int       `json:"criticalIssues"`
	WarningIssues   int       `json:"warningIssues"`
	InfoIssues      int       `json:"infoIssues"`
	HasIssues       bool      `json:"hasIssues"`
	ReportTimestamp Timestamp `json:"reportTimestamp"`
	Issues          []Issue   `json:"issues"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Timestamp decodes the date-time shapes the backend emits: RFC3339,
// zone-less ISO local date-times, Jackson's [y,m,d,h,min,s,nanos] arrays and
// epoch milliseconds. Zone-less values are held as UTC wall clock with
// Floating set; use At to place them in a display location.
type Timestamp struct {
	time.Time

	// Floating marks a wall-clock value that carried no zone.
	Floating bool
}

// At returns the instant in loc. A floating value keeps its wall clock and
// is anchored in loc; anything else is converted. A nil loc means time.Local.
func (t Timestamp) At(loc *time.Location) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	if loc == nil {
		loc = time.Local
	}
	if !t.Floating {
		return t.Time.In(loc)
	}
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	return time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), loc)
}

const floatingLayout = "2006-01-02T15:04:05.999999999"

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	t.Floating = false
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return t.parseString(s)
	case '[':
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("timestamp array: %w", err)
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
		t.Floating = true
		return nil
	default:
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		t.Time = time.UnixMilli(ms)
		return nil
	}
}

func (t *Timestamp) parseString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = ts
		return nil
	}
	for _, layout := range localLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			t.Time = ts
			t.Floating = true
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// MarshalJSON implements json.Marshaler. The zero time encodes as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	if t.Floating {
		return json.Marshal(t.Format(floatingLayout))
	}
	return json.Marshal(t.Format(time.RFC3339))
}
