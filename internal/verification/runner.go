package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/classroomapp/adminconsole/internal/adminapi"
)

// Step names one stage of the smoke flow.
type Step string

const (
	StepLogin         Step = "login"
	StepInitialReport Step = "initial verification"
	StepFix           Step = "fix lecture dates"
	StepPostFixReport Step = "post-fix verification"
	StepFinalHealth   Step = "final health check"
)

// StepError is returned when a step fails; the remaining steps are skipped.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step that err names, or "".
func FailedStep(err error) Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// Config holds configuration for creating a Runner.
type Config struct {
	Client   *adminapi.Client
	Username string
	Password string

	// Token, when set, is used instead of logging in.
	Token string

	// Out receives the human-readable progress report.
	Out    io.Writer
	Logger zerolog.Logger

	// Now is used for the token expiry check. Default: time.Now.
	Now func() time.Time
}

// Runner executes the smoke flow. Each Run is independent and holds its
// own token.
type Runner struct {
	client   *adminapi.Client
	username string
	password string
	token    string
	out      io.Writer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRunner creates a new smoke flow runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		client:   cfg.Client,
		username: cfg.Username,
		password: cfg.Password,
		token:    cfg.Token,
		out:      cfg.Out,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Result summarizes a completed run.
type Result struct {
	RunID        string                       `json:"runId"`
	Before       *adminapi.VerificationReport `json:"before"`
	After        *adminapi.VerificationReport `json:"after,omitempty"`
	FixSkipped   bool                         `json:"fixSkipped"`
	FixMessage   string                       `json:"fixMessage,omitempty"`
	Delta        *Delta                       `json:"delta,omitempty"`
	Outcome      Outcome                      `json:"outcome,omitempty"`
	HealthStatus string                       `json:"healthStatus,omitempty"`
	Duration     time.Duration                `json:"durationNs"`
}

// Run executes login, initial verification, the fix gate, the fix, the
// post-fix verification, the comparison and the final health check, in that
// order. The first failing step ends the run with a *StepError. Nothing is
// rolled back.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString()}
	logger := r.logger.With().Str("run_id", result.RunID).Logger()

	r.printf("============== LECTURE DATE FIX TEST ==============\n")

	client, err := r.authenticate(ctx, logger)
	if err != nil {
		return nil, r.fail(logger, StepLogin, err, "Cannot proceed without authentication")
	}

	r.printf("\nSTEP 1: Initial Data Verification\n")
	result.Before, err = r.verify(ctx, client)
	if err != nil {
		return nil, r.fail(logger, StepInitialReport, err, "Cannot proceed without initial verification")
	}

	if !NeedsLectureFix(result.Before) {
		result.FixSkipped = true
		result.Duration = time.Since(start)
		r.printf("No lecture date issues found. Test completed successfully!\n")
		logger.Info().Dur("duration", result.Duration).Msg("no lecture date issues, fix skipped")
		return result, nil
	}

	r.printf("\nSTEP 2: Fixing Lecture Dates\n")
	result.FixMessage, err = client.FixLectureDates(ctx)
	if err != nil {
		return nil, r.fail(logger, StepFix, err, "Fix failed, cannot proceed")
	}
	r.printf("Fix result: %s\n", result.FixMessage)

	r.printf("\nSTEP 3: Post-Fix Verification\n")
	result.After, err = r.verify(ctx, client)
	if err != nil {
		return nil, r.fail(logger, StepPostFixReport, err, "Post-fix verification failed")
	}

	r.printf("\nSTEP 4: Results Comparison\n")
	delta := Compare(result.Before, result.After)
	result.Delta = &delta
	result.Outcome = delta.Outcome(result.After)
	r.printf("Before Fix - Total Issues: %d, Warnings: %d\n", result.Before.TotalIssues, result.Before.WarningIssues)
	r.printf("After Fix  - Total Issues: %d, Warnings: %d\n", result.After.TotalIssues, result.After.WarningIssues)
	switch result.Outcome {
	case OutcomeImproved:
		r.printf("SUCCESS: Reduced %d total issues and %d warnings\n", delta.IssuesReduced, delta.WarningsReduced)
	case OutcomeResolved:
		r.printf("SUCCESS: All issues resolved!\n")
	default:
		r.printf("No improvement detected\n")
	}

	r.printf("\nSTEP 5: Final Health Check\n")
	result.HealthStatus, err = client.VerificationHealth(ctx)
	if err != nil {
		return nil, r.fail(logger, StepFinalHealth, err, "Final health check failed")
	}
	r.printf("Health Status: %s\n", result.HealthStatus)

	result.Duration = time.Since(start)
	r.printf("\n============== TEST COMPLETED ==============\n")

	logger.Info().
		Str("outcome", string(result.Outcome)).
		Int("issues_reduced", delta.IssuesReduced).
		Int("warnings_reduced", delta.WarningsReduced).
		Dur("duration", result.Duration).
		Msg("lecture date fix run completed")

	return result, nil
}

func (r *Runner) authenticate(ctx context.Context, logger zerolog.Logger) (*adminapi.Client, error) {
	token := r.token
	if token == "" {
		r.printf("Logging in as %s...\n", r.username)
		var err error
		if token, err = r.client.Login(ctx, r.username, r.password); err != nil {
			return nil, err
		}
	}

	info, err := adminapi.CheckToken(token, r.now())
	if err != nil {
		return nil, err
	}
	if r.token == "" {
		r.printf("Login successful\n")
	} else {
		r.printf("Using provided admin token\n")
	}
	logger.Debug().Str("subject", info.Subject).Time("expires_at", info.ExpiresAt).Msg("authenticated")

	return r.client.WithToken(token), nil
}

func (r *Runner) verify(ctx context.Context, client *adminapi.Client) (*adminapi.VerificationReport, error) {
	r.printf("Running data verification...\n")
	report, err := client.RunVerification(ctx)
	if err != nil {
		return nil, err
	}

	r.printf("Verification Results:\n")
	r.printf("   Total Issues: %d\n", report.TotalIssues)
	r.printf("   Critical Issues: %d\n", report.CriticalIssues)
	r.printf("   Warning Issues: %d\n", report.WarningIssues)
	r.printf("   Info Issues: %d\n", report.InfoIssues)

	if report.HasIssues {
		r.printf("\nIssues found:\n")
		for _, issue := range report.Issues {
			r.printf("   [%s] %s: %s\n", issue.Severity, issue.Code, issue.Message)
			if issue.Details != "" {
				r.printf("      Details: %s\n", issue.Details)
			}
		}
	}
	return report, nil
}

// fail prints the server payload when there is one, otherwise the error.
func (r *Runner) fail(logger zerolog.Logger, step Step, err error, hint string) error {
	reason := adminapi.Payload(err)
	if reason == "" {
		reason = err.Error()
	}
	r.printf("%s failed: %s\n", step, reason)
	r.printf("%s\n", hint)

	logger.Error().Err(err).Str("step", string(step)).Msg("lecture date fix run aborted")
	return &StepError{Step: step, Err: err}
}

func (r *Runner) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}
