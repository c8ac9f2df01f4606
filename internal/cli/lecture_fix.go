package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/classroomapp/adminconsole/internal/app"
)

func newLectureFixCommand(g *globals) *cobra.Command {
	var (
		username string
		password string
		token    string
		asJSON   bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "lecture-fix",
		Short: "Verify data, fix lecture dates when needed, and compare the reports",
		Long: "lecture-fix logs in, runs a data verification, calls the lecture date fix when the report " +
			"shows lecture date issues, verifies again, compares both reports, and checks verification health. " +
			"The first failing step ends the run with a non-zero exit status.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if username != "" {
				cfg.Backend.Username = username
			}
			if password != "" {
				cfg.Backend.Password = password
			}
			if token != "" {
				cfg.Backend.Token = token
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}

			return g.withContainer(cmd, cfg, func(ctx context.Context, c *app.Container) error {
				ctx, cancel := withTimeout(ctx, timeout)
				defer cancel()

				out := cmd.OutOrStdout()
				var report io.Writer = out
				if asJSON {
					report = io.Discard
				}

				result, err := c.NewRunner(report).Run(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, result)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username (default $ADMIN_USERNAME)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password (default $ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&token, "token", "", "pre-issued bearer token; skips login (default $ADMIN_TOKEN)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run result as JSON instead of the step report")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for the run")
	return cmd
}
