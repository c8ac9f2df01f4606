package dashboard_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroomapp/adminconsole/internal/dashboard"
)

func gather(t *testing.T, c prometheus.Collector) map[string][]*dto.Metric {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string][]*dto.Metric, len(families))
	for _, f := range families {
		out[f.GetName()] = f.GetMetric()
	}
	return out
}

func TestCollector_EmptyStore(t *testing.T) {
	metrics := gather(t, dashboard.NewCollector(dashboard.NewStore()))
	assert.Empty(t, metrics)
}

func TestCollector_FilledStore(t *testing.T) {
	metrics := gather(t, dashboard.NewCollector(filledStore()))

	require.Len(t, metrics["admin_dashboard_active_users"], 1)
	assert.Equal(t, 12.0, metrics["admin_dashboard_active_users"][0].GetGauge().GetValue())
	assert.Equal(t, 4.0, metrics["admin_dashboard_security_alerts"][0].GetGauge().GetValue())
	assert.Equal(t, 2.0, metrics["admin_dashboard_critical_metrics"][0].GetGauge().GetValue())
	assert.Equal(t, 90.0, metrics["admin_dashboard_memory_usage_percent"][0].GetGauge().GetValue())
	assert.Len(t, metrics["admin_dashboard_slot_age_seconds"], len(dashboard.Slots))

	status := metrics["admin_dashboard_status"]
	require.Len(t, status, 4)
	for _, m := range status {
		want := 0.0
		if m.GetLabel()[0].GetValue() == string(dashboard.LevelWarning) {
			want = 1
		}
		assert.Equal(t, want, m.GetGauge().GetValue(), m.GetLabel()[0].GetValue())
	}
}
