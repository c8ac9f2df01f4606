package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/classroomapp/adminconsole/internal/adminapi"
)

// NotAvailable is shown for values the backend did not report.
const NotAvailable = "N/A"

// Date layouts used by the dashboard.
const (
	StartTimeLayout  = "02/01/2006 15:04:05"
	MetricTimeLayout = "02/01 15:04:05"
)

// MemoryCriticalPercent is the memory usage above which the gauge is flagged.
const MemoryCriticalPercent = 85.0

// StatusLevel is the severity bucket a backend status string maps to.
type StatusLevel string

const (
	LevelHealthy  StatusLevel = "healthy"
	LevelWarning  StatusLevel = "warning"
	LevelCritical StatusLevel = "critical"
	LevelUnknown  StatusLevel = "unknown"
)

// StatusStyle is how a status level is presented.
type StatusStyle struct {
	Level StatusLevel `json:"level"`
	Color string      `json:"color"`
	Icon  string      `json:"icon"`
}

var styles = map[StatusLevel]StatusStyle{
	LevelHealthy:  {Level: LevelHealthy, Color: "#52c41a", Icon: "check-circle"},
	LevelWarning:  {Level: LevelWarning, Color: "#faad14", Icon: "warning"},
	LevelCritical: {Level: LevelCritical, Color: "#ff4d4f", Icon: "close-circle"},
	LevelUnknown:  {Level: LevelUnknown, Color: "#d9d9d9", Icon: "sync"},
}

// StatusLevelOf maps a backend status string to a level, ignoring case.
func StatusLevelOf(status string) StatusLevel {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "healthy", "good":
		return LevelHealthy
	case "warning":
		return LevelWarning
	case "critical", "error":
		return LevelCritical
	default:
		return LevelUnknown
	}
}

// StyleOf returns the presentation for a backend status string.
func StyleOf(status string) StatusStyle {
	return styles[StatusLevelOf(status)]
}

// FormatMemory renders bytes as binary gigabytes with two decimals.
func FormatMemory(bytes int64) string {
	if bytes == 0 {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f GB", float64(bytes)/(1<<30))
}

// FormatUptime renders milliseconds as whole days and hours.
func FormatUptime(ms int64) string {
	if ms == 0 {
		return NotAvailable
	}
	d := time.Duration(ms) * time.Millisecond
	days := int64(d / (24 * time.Hour))
	hours := int64((d % (24 * time.Hour)) / time.Hour)
	return plural(days, "day") + " " + plural(hours, "hour")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.FormatInt(n, 10) + " " + unit + "s"
}

// FormatTime renders t in loc with layout, or N/A for the zero time.
func FormatTime(t time.Time, loc *time.Location, layout string) string {
	if t.IsZero() {
		return NotAvailable
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(layout)
}

// MemoryUsagePercent returns used/total as a percentage rounded to one
// decimal, or zero when total is unknown.
func MemoryUsagePercent(used, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(used)/float64(total)*1000) / 10
}

// MetricTagColor is the tag colour for a metric status.
func MetricTagColor(status adminapi.MetricStatus) string {
	switch status {
	case adminapi.MetricStatusCritical:
		return "red"
	case adminapi.MetricStatusWarning:
		return "orange"
	default:
		return "green"
	}
}

// FormatMetricValue renders "<value> <unit>" with the shortest exact value.
func FormatMetricValue(value float64, unit string) string {
	return strings.TrimSpace(strconv.FormatFloat(value, 'f', -1, 64) + " " + unit)
}
