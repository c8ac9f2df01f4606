package dashboard

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/classroomapp/adminconsole/internal/adminapi"
)

// View is the dashboard derived from a Snapshot. Sections whose slot has
// never been fetched are nil.
type View struct {
	Overview        Overview        `json:"overview"`
	Health          *HealthView     `json:"health,omitempty"`
	SystemInfo      *SystemInfoView `json:"systemInfo,omitempty"`
	CriticalMetrics []MetricRow     `json:"criticalMetrics"`
	AuditChart      []ChartPoint    `json:"auditChart,omitempty"`
	ActivityChart   []ChartPoint    `json:"activityChart,omitempty"`
	FetchedAt       map[Slot]string `json:"fetchedAt"`
	Loading         bool            `json:"loading"`
	LastBatch       *BatchResult    `json:"lastBatch,omitempty"`
}

// Overview is the row of summary cards.
type Overview struct {
	OverallStatus   string      `json:"overallStatus"`
	Status          StatusStyle `json:"status"`
	ActiveUsers     int64       `json:"activeUsers"`
	SecurityAlerts  int64       `json:"securityAlerts"`
	CriticalMetrics int64       `json:"criticalMetrics"`
}

// ComponentStatus is one backend component's health.
type ComponentStatus struct {
	Name   string      `json:"name"`
	Status string      `json:"status"`
	Style  StatusStyle `json:"style"`
}

// HealthView is the system health detail section.
type HealthView struct {
	OverallStatus string            `json:"overallStatus"`
	Style         StatusStyle       `json:"style"`
	Components    []ComponentStatus `json:"components"`
	Issues        []string          `json:"issues"`
	LastChecked   string            `json:"lastChecked"`
}

// SystemInfoView is the system information section.
type SystemInfoView struct {
	Application    string  `json:"application"`
	Runtime        string  `json:"runtime"`
	OS             string  `json:"os"`
	Processors     int     `json:"processors"`
	StartTime      string  `json:"startTime"`
	Uptime         string  `json:"uptime"`
	UsedMemory     string  `json:"usedMemory"`
	TotalMemory    string  `json:"totalMemory"`
	MemoryPercent  float64 `json:"memoryPercent"`
	MemoryCritical bool    `json:"memoryCritical"`
}

// MetricRow is one row of the critical metrics table.
type MetricRow struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	Status    string `json:"status"`
	TagColor  string `json:"tagColor"`
	Timestamp string `json:"timestamp"`
}

// ChartPoint is one labelled value of a chart series.
type ChartPoint struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// BuildView derives the dashboard from snap, formatting times in loc.
func BuildView(snap Snapshot, loc *time.Location) View {
	v := View{
		Overview: Overview{
			OverallStatus: "Unknown",
			Status:        StyleOf(""),
		},
		CriticalMetrics: []MetricRow{},
		FetchedAt:       make(map[Slot]string, len(snap.FetchedAt)),
	}

	for slot, at := range snap.FetchedAt {
		v.FetchedAt[slot] = FormatTime(at, loc, StartTimeLayout)
	}

	if h := snap.Health; h != nil {
		if h.OverallStatus != "" {
			v.Overview.OverallStatus = h.OverallStatus
			v.Overview.Status = StyleOf(h.OverallStatus)
		}
		v.Health = buildHealth(h, loc)
	}
	if u := snap.UserActivity; u != nil {
		v.Overview.ActiveUsers = u.ActiveUsers
		v.ActivityChart = activitySeries(u.ActivityByHour)
	}
	if a := snap.AuditStatistics; a != nil {
		v.Overview.SecurityAlerts = a.FailedLogs
		v.AuditChart = actionSeries(a.ActionCounts)
	}
	if m := snap.Monitoring; m != nil {
		v.Overview.CriticalMetrics = m.CriticalMetrics
	}
	if si := snap.SystemInfo; si != nil {
		v.SystemInfo = buildSystemInfo(si, loc)
	}
	for _, m := range snap.CriticalMetrics {
		v.CriticalMetrics = append(v.CriticalMetrics, MetricRow{
			ID:        m.ID,
			Name:      m.Name,
			Value:     FormatMetricValue(m.Value, m.Unit),
			Status:    string(m.Status),
			TagColor:  MetricTagColor(m.Status),
			Timestamp: FormatTime(m.Timestamp.At(loc), loc, MetricTimeLayout),
		})
	}

	return v
}

func buildHealth(h *adminapi.SystemHealth, loc *time.Location) *HealthView {
	hv := &HealthView{
		OverallStatus: h.OverallStatus,
		Style:         StyleOf(h.OverallStatus),
		Components:    make([]ComponentStatus, 0, len(h.ComponentStatuses)),
		Issues:        append([]string{}, h.Issues...),
		LastChecked:   FormatTime(h.LastChecked.At(loc), loc, StartTimeLayout),
	}
	for name, status := range h.ComponentStatuses {
		hv.Components = append(hv.Components, ComponentStatus{
			Name:   name,
			Status: status,
			Style:  StyleOf(status),
		})
	}
	sort.Slice(hv.Components, func(i, j int) bool {
		return hv.Components[i].Name < hv.Components[j].Name
	})
	return hv
}

func buildSystemInfo(si *adminapi.SystemInfo, loc *time.Location) *SystemInfoView {
	pct := MemoryUsagePercent(si.UsedMemory, si.TotalMemory)
	app := si.ApplicationName
	if si.Version != "" {
		app += " v" + si.Version
	}
	return &SystemInfoView{
		Application:    strings.TrimSpace(app),
		Runtime:        si.RuntimeVersion,
		OS:             strings.TrimSpace(si.OSName + " " + si.OSVersion),
		Processors:     si.AvailableProcessors,
		StartTime:      FormatTime(si.StartTime.At(loc), loc, StartTimeLayout),
		Uptime:         FormatUptime(si.Uptime),
		UsedMemory:     FormatMemory(si.UsedMemory),
		TotalMemory:    FormatMemory(si.TotalMemory),
		MemoryPercent:  pct,
		MemoryCritical: pct > MemoryCriticalPercent,
	}
}

func actionSeries(counts map[string]int64) []ChartPoint {
	if counts == nil {
		return nil
	}
	points := make([]ChartPoint, 0, len(counts))
	for action, n := range counts {
		points = append(points, ChartPoint{Label: action, Count: n})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Label < points[j].Label })
	return points
}

// activitySeries orders hours numerically; non-numeric keys sort last.
func activitySeries(byHour map[string]int64) []ChartPoint {
	if byHour == nil {
		return nil
	}
	type entry struct {
		hour  int
		key   string
		count int64
	}
	entries := make([]entry, 0, len(byHour))
	for k, n := range byHour {
		h, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			h = 1 << 30
		}
		entries = append(entries, entry{hour: h, key: k, count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].hour != entries[j].hour {
			return entries[i].hour < entries[j].hour
		}
		return entries[i].key < entries[j].key
	})

	points := make([]ChartPoint, len(entries))
	for i, e := range entries {
		points[i] = ChartPoint{Label: e.key + ":00", Count: e.count}
	}
	return points
}
