// Package worker listens on a Pub/Sub subscription for dashboard jobs
// published by schedulers or other services.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/classroomapp/adminconsole/internal/adminapi"
	"github.com/classroomapp/adminconsole/internal/dashboard"
)

// Job types accepted on the subscription.
const (
	JobDashboardRefresh = "dashboard_refresh"
	JobHealthCheck      = "health_check"
)

// Jobs runs the work a message asks for.
type Jobs interface {
	Refresh(ctx context.Context) (*dashboard.BatchResult, error)
	HealthCheck(ctx context.Context) (*adminapi.HealthCheckResult, error)
}

// JobMessage is the JSON body of a trigger message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Disposition is what to do with a message once handled.
type Disposition int

const (
	Ack Disposition = iota
	Nack
)

func (d Disposition) String() string {
	if d == Ack {
		return "ack"
	}
	return "nack"
}

// Dispatcher decodes trigger messages and runs the matching job.
type Dispatcher struct {
	jobs   Jobs
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher over jobs.
func NewDispatcher(jobs Jobs, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{jobs: jobs, logger: logger}
}

// Dispatch handles one message body. Malformed messages and failed jobs are
// nacked for redelivery; unknown job types are acked and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) (Disposition, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Nack, fmt.Errorf("parsing message: %w", err)
	}

	var err error
	switch msg.JobType {
	case JobDashboardRefresh:
		err = d.handleRefresh(ctx)
	case JobHealthCheck:
		err = d.handleHealthCheck(ctx)
	default:
		d.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return Ack, nil
	}

	if err != nil {
		return Nack, err
	}
	return Ack, nil
}

func (d *Dispatcher) handleRefresh(ctx context.Context) error {
	result, err := d.jobs.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("dashboard refresh: %w", err)
	}

	d.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Succeeded()).
		Int("failed", result.Failed()).
		Bool("joined", result.Joined).
		Msg("dashboard refresh completed")

	// Consider it successful if at least half the slots updated.
	if result.Failed() > result.Succeeded() {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed(), len(result.Slots))
	}
	return nil
}

func (d *Dispatcher) handleHealthCheck(ctx context.Context) error {
	result, err := d.jobs.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if !result.Healthy {
		d.logger.Warn().Strs("errors", result.Errors).Msg("backend reports unhealthy")
	}
	return nil
}

// PubSubHandler receives trigger messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Jobs             Jobs
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Batches are joined, not queued; a small window is enough.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 5 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.Jobs, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	disposition, err := h.dispatcher.Dispatch(ctx, msg.Data)
	if err != nil {
		logger.Error().Err(err).Msg("job failed")
	} else {
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job handled")
	}

	if disposition == Ack {
		msg.Ack()
		return
	}
	msg.Nack()
}
