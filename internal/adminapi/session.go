package adminapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoCredentials is returned when a session has neither a usable token nor
// credentials to log in with.
var ErrNoCredentials = errors.New("no admin token or credentials configured")

// SessionConfig holds configuration for a Session.
type SessionConfig struct {
	Client   *Client
	Username string
	Password string

	// Token is a pre-issued bearer token used until it expires or is
	// rejected.
	Token string

	Logger zerolog.Logger

	// Now is used for token expiry checks. Default: time.Now.
	Now func() time.Time
}

// Session authenticates dashboard calls. It logs in on first use, again when
// the token's exp claim has passed, and once more when the backend answers
// 401. Safe for concurrent use; concurrent callers share one login.
type Session struct {
	base     *Client
	username string
	password string
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *Client
	expires time.Time
}

// NewSession creates a session over cfg.Client.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Session{
		base:     cfg.Client,
		username: cfg.Username,
		password: cfg.Password,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if cfg.Token != "" {
		s.current = cfg.Client.WithToken(cfg.Token)
		if info, err := InspectToken(cfg.Token); err == nil {
			s.expires = info.ExpiresAt
		}
	}
	return s
}

func (s *Session) canLogin() bool {
	return s.username != "" && s.password != ""
}

// Client returns a client bound to a valid token, logging in if needed.
func (s *Session) Client(ctx context.Context) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && (s.expires.IsZero() || s.now().Before(s.expires)) {
		return s.current, nil
	}
	if !s.canLogin() {
		if s.current != nil {
			return nil, fmt.Errorf("admin token expired at %s: %w", s.expires.Format(time.RFC3339), ErrTokenExpired)
		}
		return nil, ErrNoCredentials
	}

	token, err := s.base.Login(ctx, s.username, s.password)
	if err != nil {
		return nil, fmt.Errorf("logging in as %s: %w", s.username, err)
	}
	info, err := CheckToken(token, s.now())
	if err != nil {
		return nil, err
	}

	s.current = s.base.WithToken(token)
	s.expires = info.ExpiresAt
	s.logger.Info().
		Str("username", s.username).
		Time("expires_at", info.ExpiresAt).
		Msg("logged in to admin backend")
	return s.current, nil
}

// invalidate drops stale if it is still the current client.
func (s *Session) invalidate(stale *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == stale && s.canLogin() {
		s.current = nil
	}
}

// call runs fn with an authenticated client, retrying once after a 401 when
// the session can log in again.
func call[T any](ctx context.Context, s *Session, fn func(*Client) (T, error)) (T, error) {
	var zero T
	c, err := s.Client(ctx)
	if err != nil {
		return zero, err
	}
	v, err := fn(c)
	if !IsStatus(err, http.StatusUnauthorized) || !s.canLogin() {
		return v, err
	}

	s.logger.Debug().Msg("admin token rejected, logging in again")
	s.invalidate(c)
	if c, err = s.Client(ctx); err != nil {
		return zero, err
	}
	return fn(c)
}

// SystemHealth calls Client.SystemHealth with the session's token.
func (s *Session) SystemHealth(ctx context.Context) (*SystemHealth, error) {
	return call(ctx, s, func(c *Client) (*SystemHealth, error) { return c.SystemHealth(ctx) })
}

// SystemInfo calls Client.SystemInfo with the session's token.
func (s *Session) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	return call(ctx, s, func(c *Client) (*SystemInfo, error) { return c.SystemInfo(ctx) })
}

// AuditStatistics calls Client.AuditStatistics with the session's token.
func (s *Session) AuditStatistics(ctx context.Context, days int) (*AuditStatistics, error) {
	return call(ctx, s, func(c *Client) (*AuditStatistics, error) { return c.AuditStatistics(ctx, days) })
}

// MonitoringStatistics calls Client.MonitoringStatistics with the session's token.
func (s *Session) MonitoringStatistics(ctx context.Context) (*MonitoringStatistics, error) {
	return call(ctx, s, func(c *Client) (*MonitoringStatistics, error) { return c.MonitoringStatistics(ctx) })
}

// CriticalMetrics calls Client.CriticalMetrics with the session's token.
func (s *Session) CriticalMetrics(ctx context.Context) ([]Metric, error) {
	return call(ctx, s, func(c *Client) ([]Metric, error) { return c.CriticalMetrics(ctx) })
}

// UserActivityStatistics calls Client.UserActivityStatistics with the session's token.
func (s *Session) UserActivityStatistics(ctx context.Context, days int) (*UserActivityStatistics, error) {
	return call(ctx, s, func(c *Client) (*UserActivityStatistics, error) { return c.UserActivityStatistics(ctx, days) })
}

// TriggerHealthCheck calls Client.TriggerHealthCheck with the session's token.
func (s *Session) TriggerHealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	return call(ctx, s, func(c *Client) (*HealthCheckResult, error) { return c.TriggerHealthCheck(ctx) })
}
