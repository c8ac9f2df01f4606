// Package cli implements the adminctl command line.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/classroomapp/adminconsole/internal/app"
	"github.com/classroomapp/adminconsole/internal/config"
)

// ServiceName identifies adminctl in logs and traces.
const ServiceName = "adminctl"

// Options holds CLI-level configuration.
type Options struct {
	Version   string
	BuildTime string

	// Transport overrides the base round tripper for backend calls.
	Transport http.RoundTripper
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	opts       Options
	configFile string
	envFiles   []string
	pretty     bool
	logLevel   string
	baseURL    string
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(opts Options) *cobra.Command {
	g := &globals{opts: opts}

	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Classroom admin console",
		Long:          "adminctl reads the classroom admin dashboard and runs the lecture date fix against the admin backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configFile, "config", "c", "", "YAML config file (default $"+config.FileEnv+")")
	flags.StringSliceVar(&g.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	flags.BoolVar(&g.pretty, "pretty", false, "human-readable logs on stderr")
	flags.StringVar(&g.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&g.baseURL, "base-url", "", "admin backend URL override")

	root.AddCommand(newLectureFixCommand(g))
	root.AddCommand(newSnapshotCommand(g))
	root.AddCommand(newHealthCheckCommand(g))
	root.AddCommand(newVersionCommand(g))
	return root
}

// loadConfig applies the persistent flags on top of the loaded configuration.
func (g *globals) loadConfig() (config.Config, error) {
	cfg, err := config.Load(g.configFile, g.envFiles...)
	if err != nil {
		return config.Config{}, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.baseURL != "" {
		cfg.Backend.BaseURL = g.baseURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withContainer builds the services for one command run and flushes
// telemetry when fn returns. Logs go to the command's stderr.
func (g *globals) withContainer(cmd *cobra.Command, cfg config.Config, fn func(ctx context.Context, c *app.Container) error) error {
	opts := app.Options{
		ServiceName: ServiceName,
		Version:     g.opts.Version,
		Transport:   g.opts.Transport,
	}

	var logger zerolog.Logger
	if g.pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
			Level(cfg.LogLevel()).
			With().
			Timestamp().
			Str("service", ServiceName).
			Str("version", g.opts.Version).
			Logger()
	} else {
		logger = app.NewLogger(cmd.ErrOrStderr(), cfg, opts)
	}

	ctx := cmd.Context()
	c, err := app.BuildContainer(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	return fn(ctx, c)
}

// withTimeout bounds ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
