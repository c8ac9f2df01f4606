package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/classroomapp/adminconsole/internal/adminapi"
	"github.com/classroomapp/adminconsole/internal/api/models"
	"github.com/classroomapp/adminconsole/internal/api/response"
	"github.com/classroomapp/adminconsole/internal/dashboard"
)

// DashboardService is the dashboard poller as seen by the HTTP layer.
type DashboardService interface {
	View(loc *time.Location) dashboard.View
	Store() *dashboard.Store
	Refresh(ctx context.Context) (*dashboard.BatchResult, error)
	HealthCheck(ctx context.Context) (*adminapi.HealthCheckResult, error)
}

// DashboardHandler handles the dashboard endpoints.
type DashboardHandler struct {
	service  DashboardService
	location *time.Location
}

// NewDashboardHandler creates a new DashboardHandler. Times are rendered in
// loc, or the local zone when loc is nil.
func NewDashboardHandler(service DashboardService, loc *time.Location) *DashboardHandler {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardHandler{
		service:  service,
		location: loc,
	}
}

// GetDashboard handles GET /v1/dashboard. ?format=text renders the plain
// text dashboard instead of JSON.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	view := h.service.View(h.location)

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		response.JSON(w, r, http.StatusOK, view)
	case "text":
		response.Text(w, r, http.StatusOK, func(w http.ResponseWriter) error {
			return dashboard.RenderText(w, view)
		})
	default:
		response.BadRequest(w, r, "unsupported format "+format, []models.FieldError{
			{Field: "format", Message: "must be json or text", Code: "INVALID_VALUE"},
		})
	}
}

// GetSnapshot handles GET /v1/dashboard/snapshot - the raw slot values.
func (h *DashboardHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.service.Store().Snapshot())
}

// Refresh handles POST /v1/dashboard/refresh. It runs a batch, or joins the
// one in flight, and returns its outcome with the updated dashboard.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !drainBody(w, r) {
		return
	}

	batch, err := h.service.Refresh(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, r, "refresh did not complete: "+err.Error())
		return
	}

	response.JSON(w, r, http.StatusOK, models.RefreshResult{
		Batch:     batch,
		Dashboard: h.service.View(h.location),
	})
}

// HealthCheck handles POST /v1/dashboard/health-check. It triggers the
// backend health check and re-fetches the health slot.
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if !drainBody(w, r) {
		return
	}

	check, err := h.service.HealthCheck(r.Context())
	if err != nil {
		var apiErr *adminapi.APIError
		backendStatus := 0
		if errors.As(err, &apiErr) {
			backendStatus = apiErr.StatusCode
		}
		response.BadGateway(w, r, err.Error(), backendStatus)
		return
	}

	response.JSON(w, r, http.StatusOK, models.HealthCheckResult{
		Check:     check,
		Dashboard: h.service.View(h.location),
	})
}

// drainBody discards an optional request body. The actions take no input,
// so anything beyond a small JSON object is rejected.
func drainBody(w http.ResponseWriter, r *http.Request) bool {
	const maxBody = 1 << 10
	n, err := io.Copy(io.Discard, io.LimitReader(r.Body, maxBody+1))
	if err != nil || n > maxBody {
		response.BadRequest(w, r, "request body must be empty or a small JSON object", nil)
		return false
	}
	return true
}
