// Package app wires the console's services from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/classroomapp/adminconsole/internal/adminapi"
	"github.com/classroomapp/adminconsole/internal/config"
	"github.com/classroomapp/adminconsole/internal/dashboard"
	"github.com/classroomapp/adminconsole/internal/resilience"
	"github.com/classroomapp/adminconsole/internal/telemetry"
	"github.com/classroomapp/adminconsole/internal/verification"
)

// Options identify the binary being wired.
type Options struct {
	ServiceName string
	Version     string

	// Transport is the base round tripper for backend calls. Default:
	// http.DefaultTransport.
	Transport http.RoundTripper
}

// Container holds the services shared by the console binaries.
type Container struct {
	Config    config.Config
	Logger    zerolog.Logger
	Location  *time.Location
	Telemetry *telemetry.Provider
	Registry  *resilience.Registry
	Client    *adminapi.Client

	// Session authenticates dashboard calls with the configured token or
	// credentials.
	Session *adminapi.Session
}

// NewLogger creates the JSON logger the binaries write to w, tagged with
// the service name and version.
func NewLogger(w io.Writer, cfg config.Config, opts Options) zerolog.Logger {
	return zerolog.New(w).
		Level(cfg.LogLevel()).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Str("version", opts.Version).
		Logger()
}

// BuildContainer initializes telemetry and the backend client. The caller
// must Shutdown the container on exit.
func BuildContainer(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts Options) (*Container, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("loading display timezone: %w", err)
	}

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    opts.ServiceName,
		ServiceVersion: opts.Version,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	if cfg.Telemetry.Enabled {
		logger.Info().Str("endpoint", cfg.Telemetry.OTLPEndpoint).Msg("telemetry initialized")
	}

	httpCfg := resilience.DefaultClientConfig("admin-api")
	httpCfg.Timeout = cfg.HTTP.Timeout
	httpCfg.MaxRetries = cfg.HTTP.MaxRetries
	httpCfg.Transport = telemetry.Transport(opts.Transport)

	registry := resilience.NewRegistry()
	client := adminapi.NewClient(adminapi.ClientConfig{
		BaseURL:  cfg.Backend.BaseURL,
		Token:    cfg.Backend.Token,
		HTTP:     httpCfg,
		Registry: registry,
		Logger:   logger,
	})
	session := adminapi.NewSession(adminapi.SessionConfig{
		Client:   client,
		Username: cfg.Backend.Username,
		Password: cfg.Backend.Password,
		Token:    cfg.Backend.Token,
		Logger:   logger,
	})

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Location:  loc,
		Telemetry: tp,
		Registry:  registry,
		Client:    client,
		Session:   session,
	}, nil
}

// NewPoller creates a dashboard poller over the container's session.
func (c *Container) NewPoller() (*dashboard.Poller, error) {
	metrics, err := dashboard.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating dashboard metrics: %w", err)
	}
	return dashboard.NewPoller(dashboard.Config{
		Backend:   c.Session,
		Interval:  c.Config.Poll.Interval,
		StatsDays: c.Config.Poll.StatsDays,
		Logger:    c.Logger,
		Metrics:   metrics,
	}), nil
}

// NewRunner creates a lecture date fix runner that reports to out.
func (c *Container) NewRunner(out io.Writer) *verification.Runner {
	return verification.NewRunner(verification.Config{
		Client:   c.Client,
		Username: c.Config.Backend.Username,
		Password: c.Config.Backend.Password,
		Token:    c.Config.Backend.Token,
		Out:      out,
		Logger:   c.Logger,
	})
}

// Shutdown flushes telemetry.
func (c *Container) Shutdown(ctx context.Context) error {
	return c.Telemetry.Shutdown(ctx)
}
