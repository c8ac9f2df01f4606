package response_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/classroomapp/adminconsole/internal/api/middleware"
	"github.com/classroomapp/adminconsole/internal/api/models"
	"github.com/classroomapp/adminconsole/internal/api/response"
)

// requestWithID returns a request whose context carries a request ID, the
// way it would after the RequestID middleware.
func requestWithID(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, http.NoBody)
	return req.WithContext(middleware.WithRequestID(req.Context(), "req_test"))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var problem models.Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("failed to decode Problem response: %v", err)
	}
	return problem
}

func TestJSON_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, requestWithID(http.MethodGet, "/v1/dashboard"), http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if id := rec.Header().Get("X-Request-Id"); id != "req_test" {
		t.Errorf("expected X-Request-Id req_test, got %q", id)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody), http.StatusOK, nil)

	if id := rec.Header().Get("X-Request-Id"); id != "" {
		t.Errorf("expected no X-Request-Id header when not in context, got %q", id)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got %q", rec.Body.String())
	}
}

func TestText_WritesPlainText(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Text(rec, requestWithID(http.MethodGet, "/v1/dashboard"), http.StatusOK, func(w http.ResponseWriter) error {
		_, err := fmt.Fprintln(w, "ADMIN DASHBOARD")
		return err
	})

	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("expected text content type, got %q", ct)
	}
	if rec.Body.String() != "ADMIN DASHBOARD\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if id := rec.Header().Get("X-Request-Id"); id != "req_test" {
		t.Errorf("expected X-Request-Id req_test, got %q", id)
	}
}

func TestProblemHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request)
		status int
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			response.BadRequest(w, r, "invalid format", []models.FieldError{{Field: "format", Message: "must be json or text"}})
		}, http.StatusBadRequest},
		{"not found", func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "no such route") }, http.StatusNotFound},
		{"method not allowed", func(w http.ResponseWriter, r *http.Request) { response.MethodNotAllowed(w, r, "use POST") }, http.StatusMethodNotAllowed},
		{"internal", func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "boom") }, http.StatusInternalServerError},
		{"bad gateway", func(w http.ResponseWriter, r *http.Request) { response.BadGateway(w, r, "backend down", 503) }, http.StatusBadGateway},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "no data yet") }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, requestWithID(http.MethodPost, "/v1/dashboard/refresh"))

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("expected problem content type, got %q", ct)
			}

			problem := decodeProblem(t, rec)
			if problem.Status != tt.status {
				t.Errorf("expected problem status %d, got %d", tt.status, problem.Status)
			}
			if problem.TraceID != "req_test" {
				t.Errorf("expected traceId req_test, got %q", problem.TraceID)
			}
			if problem.Instance != "/v1/dashboard/refresh" {
				t.Errorf("expected instance /v1/dashboard/refresh, got %q", problem.Instance)
			}
		})
	}
}

func TestBadGateway_CarriesBackendStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	response.BadGateway(rec, requestWithID(http.MethodPost, "/v1/dashboard/health-check"), "health check failed", http.StatusServiceUnavailable)

	problem := decodeProblem(t, rec)
	if problem.BackendStatus != http.StatusServiceUnavailable {
		t.Errorf("expected backendStatus 503, got %d", problem.BackendStatus)
	}
	if problem.Type != models.ProblemTypeBackend {
		t.Errorf("expected type %s, got %s", models.ProblemTypeBackend, problem.Type)
	}
}
