package adminapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroomapp/adminconsole/internal/adminapi"
	"github.com/classroomapp/adminconsole/internal/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) (*adminapi.Client, *resilience.Registry) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	registry := resilience.NewRegistry()
	client := adminapi.NewClient(adminapi.ClientConfig{
		BaseURL: server.URL,
		HTTP: resilience.ClientConfig{
			Timeout:         2 * time.Second,
			MaxRetries:      1,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     10 * time.Millisecond,
		},
		Registry: registry,
	})
	return client, registry
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_Login(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, adminapi.PathLogin, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "admin", body["username"])
		assert.Equal(t, "admin123", body["password"])

		writeJSON(t, w, map[string]string{"token": "abc.def.ghi"})
	}))

	token, err := client.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestClient_LoginWithoutToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]string{})
	}))

	_, err := client.Login(context.Background(), "admin", "admin123")
	assert.ErrorIs(t, err, adminapi.ErrNoToken)
}

func TestClient_LoginRejected(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))

	_, err := client.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.True(t, adminapi.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, `{"message":"Bad credentials"}`, adminapi.Payload(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_WithTokenSetsBearer(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeJSON(t, w, map[string]interface{}{
			"overallStatus":     "HEALTHY",
			"componentStatuses": map[string]string{"database": "HEALTHY", "disk": "WARNING"},
			"issues":            []string{"Disk usage high"},
			"lastChecked":       "2024-03-01T10:15:30",
		})
	}))

	authed := client.WithToken("tok-1")
	assert.Empty(t, client.Token())
	assert.Equal(t, "tok-1", authed.Token())

	health, err := authed.SystemHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HEALTHY", health.OverallStatus)
	assert.Equal(t, "WARNING", health.ComponentStatuses["disk"])
	assert.Equal(t, []string{"Disk usage high"}, health.Issues)
	assert.Equal(t, 2024, health.LastChecked.Year())
	assert.Equal(t, 30, health.LastChecked.Second())
}

func TestClient_StatisticsPassDays(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		switch r.URL.Path {
		case adminapi.PathAuditStatistics:
			writeJSON(t, w, map[string]interface{}{
				"totalLogs":    120,
				"failedLogs":   4,
				"actionCounts": map[string]int{"LOGIN": 80, "CREATE_COURSE": 40},
			})
		case adminapi.PathUserActivity:
			writeJSON(t, w, map[string]interface{}{
				"activeUsers":    12,
				"activityByHour": map[string]int{"9": 5, "14": 7},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	audit, err := client.AuditStatistics(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4), audit.FailedLogs)
	assert.Equal(t, int64(80), audit.ActionCounts["LOGIN"])

	activity, err := client.UserActivityStatistics(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(12), activity.ActiveUsers)
	assert.Equal(t, int64(7), activity.ActivityByHour["14"])
}

func TestClient_CriticalMetrics(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, adminapi.PathCriticalMetrics, r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":1,"metricName":"cpu.usage","metricValue":97.5,"metricUnit":"%","status":"CRITICAL","timestamp":[2024,3,1,10,15,30]}]`))
	}))

	metrics, err := client.CriticalMetrics(context.Background())
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "cpu.usage", metrics[0].Name)
	assert.Equal(t, 97.5, metrics[0].Value)
	assert.Equal(t, adminapi.MetricStatusCritical, metrics[0].Status)
	assert.Equal(t, time.March, metrics[0].Timestamp.Month())
}

func TestClient_CriticalMetricsNullIsEmpty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))

	metrics, err := client.CriticalMetrics(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, metrics)
	assert.Empty(t, metrics)
}

func TestClient_TextEndpoints(t *testing.T) {
	var fixCalls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case adminapi.PathFixLectureDates:
			fixCalls.Add(1)
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = w.Write([]byte("Fixed 3 lectures with missing dates\n"))
		case adminapi.PathVerificationHealth:
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte("OK - No data integrity issues found"))
		}
	}))

	msg, err := client.FixLectureDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Fixed 3 lectures with missing dates", msg)
	assert.Equal(t, int32(1), fixCalls.Load())

	status, err := client.VerificationHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK - No data integrity issues found", status)
}

func TestClient_PostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.TriggerHealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, adminapi.IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, "boom", adminapi.Payload(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GetIsRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, map[string]int{"criticalMetrics": 2})
	}))

	stats, err := client.MonitoringStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.CriticalMetrics)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RunVerification(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, adminapi.PathVerificationRun, r.URL.Path)
		writeJSON(t, w, map[string]interface{}{
			"totalIssues":   2,
			"warningIssues": 1,
			"infoIssues":    1,
			"hasIssues":     true,
			"issues": []map[string]string{
				{"severity": "WARNING", "code": "LECTURE_NO_DATE", "message": "Lecture 42 has no date"},
			},
		})
	}))

	report, err := client.RunVerification(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalIssues)
	assert.True(t, report.HasIssues)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, adminapi.SeverityWarning, report.Issues[0].Severity)
	assert.Equal(t, "LECTURE_NO_DATE", report.Issues[0].Code)
}

func TestClient_DecodeError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))

	_, err := client.SystemInfo(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding system-info response")
	var apiErr *adminapi.APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestClient_TransportError(t *testing.T) {
	client := adminapi.NewClient(adminapi.ClientConfig{
		BaseURL: "http://127.0.0.1:1",
		HTTP:    resilience.ClientConfig{Timeout: time.Second},
	})

	_, err := client.FixLectureDates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executing fix-lecture-dates request")
}

func TestClient_RegistersEveryEndpoint(t *testing.T) {
	client, registry := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]string{"overallStatus": "HEALTHY"})
	}))

	assert.Equal(t, len(adminapi.Endpoints), registry.Len())

	_, err := client.SystemHealth(context.Background())
	require.NoError(t, err)

	health := registry.Health(string(adminapi.EndpointHealth))
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestClient_DefaultBaseURL(t *testing.T) {
	client := adminapi.NewClient(adminapi.ClientConfig{})
	assert.Equal(t, adminapi.DefaultBaseURL, client.BaseURL())

	client = adminapi.NewClient(adminapi.ClientConfig{BaseURL: "http://backend:8080/"})
	assert.Equal(t, "http://backend:8080", client.BaseURL())
}
