// Package adminapi is a typed client for the classroom backend's admin REST
// API: system health and statistics for the dashboard, and the data
// verification and fix endpoints used by the lecture-date smoke flow.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/classroomapp/adminconsole/internal/resilience"
)

// Endpoint names one backend operation. Each endpoint gets its own circuit
// breaker so a failing endpoint cannot trip its siblings.
type Endpoint string

const (
	EndpointLogin              Endpoint = "login"
	EndpointHealth             Endpoint = "health"
	EndpointHealthCheck        Endpoint = "health-check"
	EndpointSystemInfo         Endpoint = "system-info"
	EndpointAuditStatistics    Endpoint = "audit-statistics"
	EndpointMonitoringStats    Endpoint = "monitoring-statistics"
	EndpointCriticalMetrics    Endpoint = "critical-metrics"
	EndpointUserActivity       Endpoint = "user-activity"
	EndpointVerificationRun    Endpoint = "verification-run"
	EndpointVerificationHealth Endpoint = "verification-health"
	EndpointFixLectureDates    Endpoint = "fix-lecture-dates"
)

// Endpoints lists every endpoint the client talks to.
var Endpoints = []Endpoint{
	EndpointLogin,
	EndpointHealth,
	EndpointHealthCheck,
	EndpointSystemInfo,
	EndpointAuditStatistics,
	EndpointMonitoringStats,
	EndpointCriticalMetrics,
	EndpointUserActivity,
	EndpointVerificationRun,
	EndpointVerificationHealth,
	EndpointFixLectureDates,
}

// Backend paths.
const (
	PathLogin              = "/api/auth/login"
	PathHealth             = "/api/admin/health"
	PathHealthCheck        = "/api/admin/health/check"
	PathSystemInfo         = "/api/admin/system-info"
	PathAuditStatistics    = "/api/admin/audit-logs/statistics"
	PathMonitoringStats    = "/api/admin/monitoring/statistics"
	PathCriticalMetrics    = "/api/admin/monitoring/critical"
	PathUserActivity       = "/api/admin/users/activity-statistics"
	PathVerificationRun    = "/api/admin/data-verification/run"
	PathVerificationHealth = "/api/admin/data-verification/health"
	PathFixLectureDates    = "/api/admin/data-fix/fix-lecture-dates"
)

// DefaultBaseURL is where the backend listens in local development.
const DefaultBaseURL = "http://localhost:8080"

const maxPayload = 4096

// ClientConfig holds configuration for the admin API client.
type ClientConfig struct {
	// BaseURL is the backend origin. Default: DefaultBaseURL.
	BaseURL string

	// Token is an optional bearer token sent on every call but login.
	Token string

	// HTTP is the template for each endpoint's resilient client; Name is
	// replaced with the endpoint name. Zero value uses resilience defaults.
	HTTP resilience.ClientConfig

	// Registry, when set, tracks every endpoint's circuit state.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is an admin API client. It is safe for concurrent use; WithToken
// returns a copy sharing the same endpoint transports.
type Client struct {
	baseURL   string
	token     string
	endpoints map[Endpoint]*resilience.Client
	logger    zerolog.Logger
}

// NewClient creates a new admin API client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	endpoints := make(map[Endpoint]*resilience.Client, len(Endpoints))
	for _, ep := range Endpoints {
		httpCfg := cfg.HTTP
		if httpCfg.Timeout == 0 && httpCfg.MaxRetries == 0 && httpCfg.CircuitBreaker == nil {
			httpCfg = resilience.DefaultClientConfig(string(ep))
			httpCfg.Transport = cfg.HTTP.Transport
		}
		httpCfg.Name = string(ep)
		if httpCfg.CircuitBreaker != nil {
			cb := *httpCfg.CircuitBreaker
			cb.Name = string(ep)
			httpCfg.CircuitBreaker = &cb
		}
		httpCfg.Registry = cfg.Registry
		endpoints[ep] = resilience.NewClient(httpCfg)
	}

	return &Client{
		baseURL:   baseURL,
		token:     cfg.Token,
		endpoints: endpoints,
		logger:    cfg.Logger,
	}
}

// WithToken returns a copy of the client that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token the client sends, if any.
func (c *Client) Token() string {
	return c.token
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	body := loginRequest{Username: username, Password: password}
	if err := c.doJSON(ctx, EndpointLogin, http.MethodPost, PathLogin, body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}

// SystemHealth fetches the overall and per-component health.
func (c *Client) SystemHealth(ctx context.Context) (*SystemHealth, error) {
	var out SystemHealth
	if err := c.doJSON(ctx, EndpointHealth, http.MethodGet, PathHealth, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerHealthCheck asks the backend to run its health checks now.
func (c *Client) TriggerHealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	var out HealthCheckResult
	if err := c.doJSON(ctx, EndpointHealthCheck, http.MethodPost, PathHealthCheck, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SystemInfo fetches runtime and host information.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var out SystemInfo
	if err := c.doJSON(ctx, EndpointSystemInfo, http.MethodGet, PathSystemInfo, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditStatistics fetches audit log statistics for the last days days.
func (c *Client) AuditStatistics(ctx context.Context, days int) (*AuditStatistics, error) {
	var out AuditStatistics
	if err := c.doJSON(ctx, EndpointAuditStatistics, http.MethodGet, withDays(PathAuditStatistics, days), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MonitoringStatistics fetches metric counts by status.
func (c *Client) MonitoringStatistics(ctx context.Context) (*MonitoringStatistics, error) {
	var out MonitoringStatistics
	if err := c.doJSON(ctx, EndpointMonitoringStats, http.MethodGet, PathMonitoringStats, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CriticalMetrics fetches the metrics currently in a critical state.
func (c *Client) CriticalMetrics(ctx context.Context) ([]Metric, error) {
	var out []Metric
	if err := c.doJSON(ctx, EndpointCriticalMetrics, http.MethodGet, PathCriticalMetrics, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Metric{}
	}
	return out, nil
}

// UserActivityStatistics fetches user activity for the last days days.
func (c *Client) UserActivityStatistics(ctx context.Context, days int) (*UserActivityStatistics, error) {
	var out UserActivityStatistics
	if err := c.doJSON(ctx, EndpointUserActivity, http.MethodGet, withDays(PathUserActivity, days), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunVerification runs the backend's data verification and returns its report.
func (c *Client) RunVerification(ctx context.Context) (*VerificationReport, error) {
	var out VerificationReport
	if err := c.doJSON(ctx, EndpointVerificationRun, http.MethodGet, PathVerificationRun, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FixLectureDates asks the backend to fill in missing lecture dates and
// returns its message, e.g. "Fixed 3 lectures with missing dates".
func (c *Client) FixLectureDates(ctx context.Context) (string, error) {
	return c.doText(ctx, EndpointFixLectureDates, http.MethodPost, PathFixLectureDates, struct{}{})
}

// VerificationHealth returns the backend's one-line verification status,
// e.g. "WARNING - 2 warning issues found".
func (c *Client) VerificationHealth(ctx context.Context) (string, error) {
	return c.doText(ctx, EndpointVerificationHealth, http.MethodGet, PathVerificationHealth, nil)
}

func withDays(path string, days int) string {
	q := url.Values{}
	q.Set("days", strconv.Itoa(days))
	return path + "?" + q.Encode()
}

func (c *Client) doJSON(ctx context.Context, ep Endpoint, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, ep, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", ep, err)
	}
	return nil
}

func (c *Client) doText(ctx context.Context, ep Endpoint, method, path string, body interface{}) (string, error) {
	resp, err := c.do(ctx, ep, method, path, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s response: %w", ep, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// do sends the request and returns the response only for 2xx statuses;
// anything else is converted to an *APIError.
func (c *Client) do(ctx context.Context, ep Endpoint, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", ep, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", ep, err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" && ep != EndpointLogin {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug().
		Str("endpoint", string(ep)).
		Str("method", method).
		Str("path", path).
		Msg("calling admin api")

	resp, err := c.endpoints[ep].Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s request: %w", ep, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Payload:    strings.TrimSpace(string(raw)),
		}
	}
	return resp, nil
}
