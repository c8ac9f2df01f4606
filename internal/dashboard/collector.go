package dashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the dashboard overview as Prometheus gauges, read from
// the store on every scrape.
type Collector struct {
	store *Store
	now   func() time.Time

	activeUsers     *prometheus.Desc
	securityAlerts  *prometheus.Desc
	criticalMetrics *prometheus.Desc
	overallStatus   *prometheus.Desc
	memoryUsage     *prometheus.Desc
	slotAge         *prometheus.Desc
}

// NewCollector creates a collector over store.
func NewCollector(store *Store) *Collector {
	return &Collector{
		store: store,
		now:   time.Now,
		activeUsers: prometheus.NewDesc(
			"admin_dashboard_active_users",
			"Active users reported by the backend",
			nil, nil,
		),
		securityAlerts: prometheus.NewDesc(
			"admin_dashboard_security_alerts",
			"Failed audit log entries in the statistics window",
			nil, nil,
		),
		criticalMetrics: prometheus.NewDesc(
			"admin_dashboard_critical_metrics",
			"Metrics currently in a critical state",
			nil, nil,
		),
		overallStatus: prometheus.NewDesc(
			"admin_dashboard_status",
			"1 for the current overall status level, 0 otherwise",
			[]string{"level"}, nil,
		),
		memoryUsage: prometheus.NewDesc(
			"admin_dashboard_memory_usage_percent",
			"Backend memory usage percentage",
			nil, nil,
		),
		slotAge: prometheus.NewDesc(
			"admin_dashboard_slot_age_seconds",
			"Seconds since the slot was last fetched successfully",
			[]string{"slot"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeUsers
	ch <- c.securityAlerts
	ch <- c.criticalMetrics
	ch <- c.overallStatus
	ch <- c.memoryUsage
	ch <- c.slotAge
}

// Collect implements prometheus.Collector. Slots that were never fetched
// are omitted.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.store.Snapshot()
	now := c.now()

	if snap.UserActivity != nil {
		ch <- prometheus.MustNewConstMetric(c.activeUsers, prometheus.GaugeValue, float64(snap.UserActivity.ActiveUsers))
	}
	if snap.AuditStatistics != nil {
		ch <- prometheus.MustNewConstMetric(c.securityAlerts, prometheus.GaugeValue, float64(snap.AuditStatistics.FailedLogs))
	}
	if snap.Monitoring != nil {
		ch <- prometheus.MustNewConstMetric(c.criticalMetrics, prometheus.GaugeValue, float64(snap.Monitoring.CriticalMetrics))
	}
	if snap.Health != nil {
		current := StatusLevelOf(snap.Health.OverallStatus)
		for _, level := range []StatusLevel{LevelHealthy, LevelWarning, LevelCritical, LevelUnknown} {
			v := 0.0
			if level == current {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(c.overallStatus, prometheus.GaugeValue, v, string(level))
		}
	}
	if si := snap.SystemInfo; si != nil && si.TotalMemory > 0 {
		ch <- prometheus.MustNewConstMetric(c.memoryUsage, prometheus.GaugeValue, MemoryUsagePercent(si.UsedMemory, si.TotalMemory))
	}
	for _, slot := range Slots {
		at, ok := snap.FetchedAt[slot]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.slotAge, prometheus.GaugeValue, now.Sub(at).Seconds(), string(slot))
	}
}
