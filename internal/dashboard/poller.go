// Package dashboard keeps the admin dashboard's six data slots fresh and
// derives the dashboard view from them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/classroomapp/adminconsole/internal/adminapi"
	"github.com/classroomapp/adminconsole/internal/schedule"
)

const (
	// DefaultInterval is the time between scheduled batches.
	DefaultInterval = 30 * time.Second

	// DefaultStatsDays is the window for audit and user-activity statistics.
	DefaultStatsDays = 7

	// DefaultBatchTimeout bounds a batch once no single caller owns it.
	DefaultBatchTimeout = time.Minute
)

const sourceTick = "tick"


// Backend is the subset of the admin API the poller reads.
type Backend interface {
	SystemHealth(ctx context.Context) (*adminapi.SystemHealth, error)
	SystemInfo(ctx context.Context) (*adminapi.SystemInfo, error)
	AuditStatistics(ctx context.Context, days int) (*adminapi.AuditStatistics, error)
	MonitoringStatistics(ctx context.Context) (*adminapi.MonitoringStatistics, error)
	CriticalMetrics(ctx context.Context) ([]adminapi.Metric, error)
	UserActivityStatistics(ctx context.Context, days int) (*adminapi.UserActivityStatistics, error)
	TriggerHealthCheck(ctx context.Context) (*adminapi.HealthCheckResult, error)
}

// Config holds configuration for creating a Poller.
type Config struct {
	Backend   Backend
	Store     *Store
	Interval  time.Duration
	StatsDays int
	Logger    zerolog.Logger
	Metrics   *Metrics

	// BatchTimeout bounds each batch. Default: DefaultBatchTimeout.
	BatchTimeout time.Duration
}

// Poller fetches every slot in concurrent batches. Batches never overlap:
// a refresh requested while one is running joins it and gets its result.
type Poller struct {
	backend      Backend
	store        *Store
	interval     time.Duration
	statsDays    int
	batchTimeout time.Duration
	logger       zerolog.Logger
	metrics      *Metrics

	group     singleflight.Group
	inFlight  atomic.Int32
	joined    atomic.Int64
	lastBatch atomic.Pointer[BatchResult]

	// lifetime is the running schedule's context, set by Start.
	lifetime atomic.Pointer[context.Context]
}

// NewPoller creates a new poller.
func NewPoller(cfg Config) *Poller {
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StatsDays <= 0 {
		cfg.StatsDays = DefaultStatsDays
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}

	return &Poller{
		backend:      cfg.Backend,
		store:        cfg.Store,
		interval:     cfg.Interval,
		statsDays:    cfg.StatsDays,
		batchTimeout: cfg.BatchTimeout,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}
}

// SlotResult is the outcome of one slot fetch within a batch.
type SlotResult struct {
	Slot     Slot          `json:"slot"`
	Duration time.Duration `json:"durationNs"`
	Err      string        `json:"error,omitempty"`
}

// BatchResult is the outcome of one refresh batch.
type BatchResult struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
	Slots     []SlotResult  `json:"slots"`

	// Joined is true when the caller did not start the batch but joined
	// one already in flight.
	Joined bool `json:"joined"`
}

// Failed returns the number of failed slot fetches.
func (r *BatchResult) Failed() int {
	n := 0
	for _, s := range r.Slots {
		if s.Err != "" {
			n++
		}
	}
	return n
}

// Succeeded returns the number of slots that were updated.
func (r *BatchResult) Succeeded() int {
	return len(r.Slots) - r.Failed()
}

// Store returns the poller's slot store.
func (p *Poller) Store() *Store {
	return p.store
}

// Interval returns the scheduled batch interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Loading reports whether a batch or health check is in flight.
func (p *Poller) Loading() bool {
	return p.inFlight.Load() > 0
}

// Joined returns how many refresh requests joined an in-flight batch.
func (p *Poller) Joined() int64 {
	return p.joined.Load()
}

// LastBatch returns the most recently completed batch, or nil.
func (p *Poller) LastBatch() *BatchResult {
	return p.lastBatch.Load()
}

// Start runs a batch now and then every interval until the returned task is
// stopped or ctx is cancelled. Stopping the task also cancels any batch a
// manual refresh started.
func (p *Poller) Start(ctx context.Context) *schedule.Task {
	p.logger.Info().
		Dur("interval", p.interval).
		Int("stats_days", p.statsDays).
		Msg("starting dashboard poller")

	task := schedule.Every(ctx, p.interval, true, func(ctx context.Context) {
		p.refresh(ctx, sourceTick)
	})
	life := task.Context()
	p.lifetime.Store(&life)
	return task
}

// Refresh runs a full batch, or joins the one already in flight. Each slot
// that fails keeps its previous value. The error is non-nil only when ctx
// ends before the batch does; the batch itself carries on for the other
// callers.
func (p *Poller) Refresh(ctx context.Context) (*BatchResult, error) {
	return p.refresh(ctx, "manual")
}

func (p *Poller) refresh(ctx context.Context, source string) (*BatchResult, error) {
	started := false
	ch := p.group.DoChan("batch", func() (interface{}, error) {
		started = true
		batchCtx, cancel := p.batchContext(ctx, source)
		defer cancel()
		return p.runBatch(batchCtx), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		result := res.Val.(*BatchResult)
		if started {
			return result, nil
		}

		p.joined.Add(1)
		p.metrics.recordJoined(ctx, source)
		p.logger.Debug().Str("trigger", source).Msg("joined in-flight dashboard batch")

		joined := *result
		joined.Joined = true
		return &joined, nil
	}
}

// batchContext returns the context a shared batch runs under. It keeps the
// initiator's values but not its cancellation, so a caller that gives up
// does not fail the batch for those who joined it. Scheduled batches end
// with the schedule; manual ones end with a running schedule or the batch
// timeout.
func (p *Poller) batchContext(ctx context.Context, source string) (context.Context, context.CancelFunc) {
	if source == sourceTick {
		return context.WithTimeout(ctx, p.batchTimeout)
	}

	batchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.batchTimeout)
	life := p.lifetime.Load()
	if life == nil {
		return batchCtx, cancel
	}
	if (*life).Err() != nil {
		cancel()
		return batchCtx, cancel
	}
	stop := context.AfterFunc(*life, cancel)
	return batchCtx, func() {
		stop()
		cancel()
	}
}

type fetchFunc func(ctx context.Context, at time.Time) error

func (p *Poller) fetchers() map[Slot]fetchFunc {
	return map[Slot]fetchFunc{
		SlotHealth: p.fetchHealth,
		SlotSystemInfo: func(ctx context.Context, at time.Time) error {
			v, err := p.backend.SystemInfo(ctx)
			if err == nil {
				p.store.SetSystemInfo(v, at)
			}
			return err
		},
		SlotAuditStatistics: func(ctx context.Context, at time.Time) error {
			v, err := p.backend.AuditStatistics(ctx, p.statsDays)
			if err == nil {
				p.store.SetAuditStatistics(v, at)
			}
			return err
		},
		SlotMonitoring: func(ctx context.Context, at time.Time) error {
			v, err := p.backend.MonitoringStatistics(ctx)
			if err == nil {
				p.store.SetMonitoring(v, at)
			}
			return err
		},
		SlotCriticalMetrics: func(ctx context.Context, at time.Time) error {
			v, err := p.backend.CriticalMetrics(ctx)
			if err == nil {
				p.store.SetCriticalMetrics(v, at)
			}
			return err
		},
		SlotUserActivity: func(ctx context.Context, at time.Time) error {
			v, err := p.backend.UserActivityStatistics(ctx, p.statsDays)
			if err == nil {
				p.store.SetUserActivity(v, at)
			}
			return err
		},
	}
}

func (p *Poller) fetchHealth(ctx context.Context, at time.Time) error {
	v, err := p.backend.SystemHealth(ctx)
	if err == nil {
		p.store.SetHealth(v, at)
	}
	return err
}

func (p *Poller) runBatch(ctx context.Context) *BatchResult {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	result := &BatchResult{
		StartedAt: time.Now(),
		Slots:     make([]SlotResult, len(Slots)),
	}

	fetchers := p.fetchers()
	var wg sync.WaitGroup
	for i, slot := range Slots {
		wg.Add(1)
		go func(i int, slot Slot) {
			defer wg.Done()
			result.Slots[i] = p.fetchSlot(ctx, slot, fetchers[slot])
		}(i, slot)
	}
	wg.Wait()

	result.Duration = time.Since(result.StartedAt)
	p.lastBatch.Store(result)
	p.metrics.recordBatch(ctx, result)

	p.logger.Info().
		Int("succeeded", result.Succeeded()).
		Int("failed", result.Failed()).
		Dur("duration", result.Duration).
		Msg("dashboard batch completed")

	return result
}

func (p *Poller) fetchSlot(ctx context.Context, slot Slot, fetch fetchFunc) SlotResult {
	start := time.Now()
	err := fetch(ctx, start)
	sr := SlotResult{Slot: slot, Duration: time.Since(start)}
	if err != nil {
		sr.Err = err.Error()
		p.logger.Warn().
			Err(err).
			Str("slot", string(slot)).
			Msg("failed to fetch dashboard slot")
	}
	return sr
}

// HealthCheck triggers a server-side health check and then re-fetches the
// health slot. A trigger failure leaves the slot untouched and is returned;
// a failed re-fetch is only logged.
func (p *Poller) HealthCheck(ctx context.Context) (*adminapi.HealthCheckResult, error) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	result, err := p.backend.TriggerHealthCheck(ctx)
	p.metrics.recordHealthCheck(ctx, err)
	if err != nil {
		p.logger.Error().Err(err).Msg("health check trigger failed")
		return nil, fmt.Errorf("triggering health check: %w", err)
	}

	p.logger.Info().Bool("healthy", result.Healthy).Msg("health check completed")

	if err := p.fetchHealth(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn().
			Err(err).
			Str("slot", string(SlotHealth)).
			Msg("failed to fetch dashboard slot")
	}
	return result, nil
}

// View builds the dashboard view from the current store contents.
func (p *Poller) View(loc *time.Location) View {
	v := BuildView(p.store.Snapshot(), loc)
	v.Loading = p.Loading()
	v.LastBatch = p.LastBatch()
	return v
}
