package dashboard

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/classroomapp/adminconsole/internal/dashboard"

// Metrics holds the OpenTelemetry instruments for the poller.
type Metrics struct {
	batchTotal    metric.Int64Counter
	batchDuration metric.Float64Histogram
	slotFailures  metric.Int64Counter
	joinedTotal   metric.Int64Counter
	healthChecks  metric.Int64Counter
}

// NewMetrics creates the poller instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	batchTotal, err := meter.Int64Counter(
		"dashboard.batch.total",
		metric.WithDescription("Total number of dashboard refresh batches"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	batchDuration, err := meter.Float64Histogram(
		"dashboard.batch.duration",
		metric.WithDescription("Duration of dashboard refresh batches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	slotFailures, err := meter.Int64Counter(
		"dashboard.slot.failures",
		metric.WithDescription("Failed slot fetches by slot"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	joinedTotal, err := meter.Int64Counter(
		"dashboard.batch.joined",
		metric.WithDescription("Refresh requests that joined an in-flight batch"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	healthChecks, err := meter.Int64Counter(
		"dashboard.health_check.total",
		metric.WithDescription("Manual health checks by outcome"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		batchTotal:    batchTotal,
		batchDuration: batchDuration,
		slotFailures:  slotFailures,
		joinedTotal:   joinedTotal,
		healthChecks:  healthChecks,
	}, nil
}

func (m *Metrics) recordBatch(ctx context.Context, result *BatchResult) {
	if m == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	m.batchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("dashboard.batch.complete", result.Failed() == 0),
	))
	m.batchDuration.Record(ctx, result.Duration.Seconds())
	for _, sr := range result.Slots {
		if sr.Err != "" {
			m.slotFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("dashboard.slot", string(sr.Slot))))
		}
	}
}

func (m *Metrics) recordJoined(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.joinedTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("dashboard.trigger", source)))
}

func (m *Metrics) recordHealthCheck(ctx context.Context, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.healthChecks.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
