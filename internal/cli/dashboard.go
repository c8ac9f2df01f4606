package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/classroomapp/adminconsole/internal/app"
	"github.com/classroomapp/adminconsole/internal/dashboard"
)

func newSnapshotCommand(g *globals) *cobra.Command {
	var (
		asJSON  bool
		days    int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch every dashboard endpoint once and print the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if days > 0 {
				cfg.Poll.StatsDays = days
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}

			return g.withContainer(cmd, cfg, func(ctx context.Context, c *app.Container) error {
				ctx, cancel := withTimeout(ctx, timeout)
				defer cancel()

				poller, err := c.NewPoller()
				if err != nil {
					return err
				}
				batch, err := poller.Refresh(ctx)
				if err != nil {
					return fmt.Errorf("refreshing dashboard: %w", err)
				}

				view := poller.View(c.Location)
				if asJSON {
					err = writeJSON(cmd.OutOrStdout(), view)
				} else {
					err = dashboard.RenderText(cmd.OutOrStdout(), view)
				}
				if err != nil {
					return err
				}

				if batch.Succeeded() == 0 {
					return errors.New("no dashboard endpoint answered")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard view as JSON")
	cmd.Flags().IntVar(&days, "days", 0, "statistics window in days (default $STATS_DAYS)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "deadline for the batch")
	return cmd
}

func newHealthCheckCommand(g *globals) *cobra.Command {
	var (
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health-check",
		Short: "Trigger a server-side health check",
		Long:  "health-check asks the backend to run its health checks and prints the result. It exits non-zero when the trigger fails or the backend reports unhealthy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}

			return g.withContainer(cmd, cfg, func(ctx context.Context, c *app.Container) error {
				ctx, cancel := withTimeout(ctx, timeout)
				defer cancel()

				poller, err := c.NewPoller()
				if err != nil {
					return err
				}
				result, err := poller.HealthCheck(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					if err := writeJSON(out, result); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "Healthy: %t\n", result.Healthy)
					names := make([]string, 0, len(result.Checks))
					for name := range result.Checks {
						names = append(names, name)
					}
					sort.Strings(names)
					for _, name := range names {
						fmt.Fprintf(out, "  %s: %t\n", name, result.Checks[name])
					}
					for _, e := range result.Errors {
						fmt.Fprintf(out, "  ! %s\n", e)
					}
				}

				if !result.Healthy {
					return errors.New("backend reports unhealthy")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "deadline for the check")
	return cmd
}

func newVersionCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", ServiceName, g.opts.Version, g.opts.BuildTime)
			return err
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
