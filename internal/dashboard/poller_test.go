package dashboard_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroomapp/adminconsole/internal/adminapi"
	"github.com/classroomapp/adminconsole/internal/dashboard"
	"github.com/classroomapp/adminconsole/internal/resilience"
)

// fakeBackend is an in-process admin backend whose responses tests can change.
type fakeBackend struct {
	overall         atomic.Value
	failMonitoring  atomic.Bool
	failHealthCheck atomic.Bool
	criticalCount   atomic.Int64
	requests        atomic.Int64
	healthChecks    atomic.Int64
	paths           sync.Map
	days            atomic.Value
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{}
	b.overall.Store("HEALTHY")
	b.criticalCount.Store(1)
	return b
}

func (b *fakeBackend) hits(path string) int64 {
	v, ok := b.paths.Load(path)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.requests.Add(1)
	counter, _ := b.paths.LoadOrStore(r.URL.Path, &atomic.Int64{})
	counter.(*atomic.Int64).Add(1)

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case adminapi.PathHealth:
		_, _ = w.Write([]byte(`{"overallStatus":"` + b.overall.Load().(string) + `","componentStatuses":{"database":"HEALTHY"}}`))
	case adminapi.PathHealthCheck:
		b.healthChecks.Add(1)
		if b.failHealthCheck.Load() {
			http.Error(w, "health check unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"healthy":true,"checks":{"database":true}}`))
	case adminapi.PathSystemInfo:
		_, _ = w.Write([]byte(`{"applicationName":"classroom","totalMemory":2147483648,"usedMemory":1073741824,"uptime":90000000}`))
	case adminapi.PathAuditStatistics:
		b.days.Store(r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(`{"failedLogs":3,"actionCounts":{"LOGIN":10}}`))
	case adminapi.PathMonitoringStats:
		if b.failMonitoring.Load() {
			http.Error(w, "monitoring down", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"criticalMetrics":` + strconv.FormatInt(b.criticalCount.Load(), 10) + `}`))
	case adminapi.PathCriticalMetrics:
		_, _ = w.Write([]byte(`[{"id":1,"metricName":"cpu.usage","metricValue":97.5,"metricUnit":"%","status":"CRITICAL"}]`))
	case adminapi.PathUserActivity:
		_, _ = w.Write([]byte(`{"activeUsers":12,"activityByHour":{"9":5}}`))
	default:
		http.NotFound(w, r)
	}
}

func newPoller(t *testing.T, backend http.Handler, interval time.Duration) *dashboard.Poller {
	t.Helper()
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client := adminapi.NewClient(adminapi.ClientConfig{
		BaseURL: server.URL,
		Token:   "tok",
		HTTP:    resilience.ClientConfig{Timeout: 2 * time.Second},
	})
	return dashboard.NewPoller(dashboard.Config{
		Backend:  client,
		Interval: interval,
		Logger:   zerolog.Nop(),
	})
}

func TestPoller_RefreshFillsEverySlot(t *testing.T) {
	backend := newFakeBackend()
	poller := newPoller(t, backend, time.Hour)

	result, err := poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, result.Succeeded())
	assert.Equal(t, 0, result.Failed())
	assert.False(t, result.Joined)

	snap := poller.Store().Snapshot()
	for _, slot := range dashboard.Slots {
		assert.True(t, snap.Has(slot), "slot %s not filled", slot)
	}
	assert.Equal(t, "HEALTHY", snap.Health.OverallStatus)
	assert.Equal(t, int64(1), snap.Monitoring.CriticalMetrics)
	assert.Len(t, snap.CriticalMetrics, 1)
	assert.Equal(t, int64(1), backend.hits(adminapi.PathAuditStatistics))
	assert.Equal(t, "7", backend.days.Load())
	assert.Same(t, result, poller.LastBatch())
	assert.False(t, poller.Loading())
}

func TestPoller_FailedSlotKeepsPreviousValue(t *testing.T) {
	backend := newFakeBackend()
	poller := newPoller(t, backend, time.Hour)

	_, err := poller.Refresh(context.Background())
	require.NoError(t, err)
	before := poller.Store().Snapshot()

	backend.failMonitoring.Store(true)
	backend.criticalCount.Store(9)
	backend.overall.Store("WARNING")

	result, err := poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed())
	assert.Equal(t, 5, result.Succeeded())

	after := poller.Store().Snapshot()
	assert.Equal(t, int64(1), after.Monitoring.CriticalMetrics)
	assert.Equal(t, before.FetchedAt[dashboard.SlotMonitoring], after.FetchedAt[dashboard.SlotMonitoring])
	assert.Equal(t, "WARNING", after.Health.OverallStatus)
	assert.False(t, poller.Loading())

	for _, sr := range result.Slots {
		if sr.Slot == dashboard.SlotMonitoring {
			assert.Contains(t, sr.Err, "monitoring down")
		} else {
			assert.Empty(t, sr.Err)
		}
	}
}

func TestPoller_FailedSlotStaysEmpty(t *testing.T) {
	backend := newFakeBackend()
	backend.failMonitoring.Store(true)
	poller := newPoller(t, backend, time.Hour)

	_, err := poller.Refresh(context.Background())
	require.NoError(t, err)

	snap := poller.Store().Snapshot()
	assert.Nil(t, snap.Monitoring)
	assert.False(t, snap.Has(dashboard.SlotMonitoring))
	assert.NotNil(t, snap.Health)
	assert.NotNil(t, snap.UserActivity)
}

func TestPoller_StopHaltsRequests(t *testing.T) {
	backend := newFakeBackend()
	poller := newPoller(t, backend, 10*time.Millisecond)

	task := poller.Start(context.Background())
	require.Eventually(t, func() bool {
		return backend.hits(adminapi.PathHealth) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	task.Stop()
	count := backend.requests.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, count, backend.requests.Load())
}

func TestPoller_StoppedScheduleCancelsManualBatches(t *testing.T) {
	backend := newFakeBackend()
	poller := newPoller(t, backend, time.Hour)

	task := poller.Start(context.Background())
	require.Eventually(t, func() bool { return poller.LastBatch() != nil }, 2*time.Second, 5*time.Millisecond)
	task.Stop()
	count := backend.requests.Load()

	result, err := poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(dashboard.Slots), result.Failed())
	assert.Equal(t, count, backend.requests.Load())
}

func TestPoller_StartRunsImmediately(t *testing.T) {
	backend := newFakeBackend()
	poller := newPoller(t, backend, time.Hour)

	task := poller.Start(context.Background())
	defer task.Stop()

	require.Eventually(t, func() bool {
		return poller.LastBatch() != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPoller_HealthCheckRefetchesOnlyHealth(t *testing.T) {
	backend := newFakeBackend()
	poller := newPoller(t, backend, time.Hour)

	result, err := poller.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Healthy)

	snap := poller.Store().Snapshot()
	assert.True(t, snap.Has(dashboard.SlotHealth))
	assert.False(t, snap.Has(dashboard.SlotSystemInfo))
	assert.Equal(t, int64(1), backend.healthChecks.Load())
	assert.Equal(t, int64(0), backend.hits(adminapi.PathSystemInfo))
	assert.False(t, poller.Loading())
}

func TestPoller_HealthCheckTriggerFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.failHealthCheck.Store(true)
	poller := newPoller(t, backend, time.Hour)

	_, err := poller.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, adminapi.IsStatus(err, http.StatusServiceUnavailable))
	assert.False(t, poller.Store().Snapshot().Has(dashboard.SlotHealth))
	assert.Equal(t, int64(0), backend.hits(adminapi.PathHealth))
	assert.Equal(t, int64(1), backend.healthChecks.Load())
}

// blockingBackend holds SystemHealth until release is closed.
type blockingBackend struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingBackend) SystemHealth(ctx context.Context) (*adminapi.SystemHealth, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
		return &adminapi.SystemHealth{OverallStatus: "HEALTHY"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingBackend) SystemInfo(context.Context) (*adminapi.SystemInfo, error) {
	return &adminapi.SystemInfo{}, nil
}

func (b *blockingBackend) AuditStatistics(context.Context, int) (*adminapi.AuditStatistics, error) {
	return nil, errors.New("audit unavailable")
}

func (b *blockingBackend) MonitoringStatistics(context.Context) (*adminapi.MonitoringStatistics, error) {
	return &adminapi.MonitoringStatistics{}, nil
}

func (b *blockingBackend) CriticalMetrics(context.Context) ([]adminapi.Metric, error) {
	return []adminapi.Metric{}, nil
}

func (b *blockingBackend) UserActivityStatistics(context.Context, int) (*adminapi.UserActivityStatistics, error) {
	return &adminapi.UserActivityStatistics{}, nil
}

func (b *blockingBackend) TriggerHealthCheck(context.Context) (*adminapi.HealthCheckResult, error) {
	return &adminapi.HealthCheckResult{Healthy: true}, nil
}

func TestPoller_ConcurrentRefreshJoinsInFlightBatch(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	poller := dashboard.NewPoller(dashboard.Config{Backend: backend, Logger: zerolog.Nop()})

	results := make(chan *dashboard.BatchResult, 2)
	go func() {
		r, err := poller.Refresh(context.Background())
		assert.NoError(t, err)
		results <- r
	}()

	require.Eventually(t, poller.Loading, time.Second, time.Millisecond)

	go func() {
		r, err := poller.Refresh(context.Background())
		assert.NoError(t, err)
		results <- r
	}()

	time.Sleep(30 * time.Millisecond)
	assert.True(t, poller.Loading())
	close(backend.release)

	first, second := <-results, <-results
	assert.Equal(t, int32(1), backend.calls.Load())
	assert.NotEqual(t, first.Joined, second.Joined)
	assert.Equal(t, int64(1), poller.Joined())
	assert.Equal(t, first.StartedAt, second.StartedAt)
	assert.Equal(t, 1, first.Failed())
	assert.False(t, poller.Loading())
}

func TestPoller_RefreshHonoursCallerContext(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	defer close(backend.release)
	poller := dashboard.NewPoller(dashboard.Config{Backend: backend, Logger: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := poller.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoller_InitiatorGivingUpDoesNotFailJoiners(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	poller := dashboard.NewPoller(dashboard.Config{Backend: backend, Logger: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	initiatorErr := make(chan error, 1)
	go func() {
		_, err := poller.Refresh(ctx)
		initiatorErr <- err
	}()
	require.Eventually(t, poller.Loading, time.Second, time.Millisecond)

	joined := make(chan *dashboard.BatchResult, 1)
	go func() {
		r, err := poller.Refresh(context.Background())
		assert.NoError(t, err)
		joined <- r
	}()

	assert.ErrorIs(t, <-initiatorErr, context.DeadlineExceeded)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, poller.Loading(), "batch must outlive its initiator")
	close(backend.release)

	result := <-joined
	assert.True(t, result.Joined)
	assert.Equal(t, 5, result.Succeeded())
	assert.Equal(t, 1, result.Failed())

	snap := poller.Store().Snapshot()
	require.NotNil(t, snap.Health)
	assert.Equal(t, "HEALTHY", snap.Health.OverallStatus)
}

func TestPoller_DetachedBatchIsBounded(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	defer close(backend.release)
	poller := dashboard.NewPoller(dashboard.Config{
		Backend:      backend,
		Logger:       zerolog.Nop(),
		BatchTimeout: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := poller.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool { return poller.LastBatch() != nil }, time.Second, 5*time.Millisecond)
	batch := poller.LastBatch()
	assert.Equal(t, 2, batch.Failed())
	assert.False(t, poller.Store().Snapshot().Has(dashboard.SlotHealth))
}

func TestNewPoller_Defaults(t *testing.T) {
	poller := dashboard.NewPoller(dashboard.Config{Backend: &blockingBackend{}})
	assert.Equal(t, dashboard.DefaultInterval, poller.Interval())
	assert.Equal(t, time.Minute, dashboard.DefaultBatchTimeout)
	assert.NotNil(t, poller.Store())
	assert.Nil(t, poller.LastBatch())
}
