// Package handler provides HTTP handlers for the admin console API.
package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/classroomapp/adminconsole/internal/api/models"
	"github.com/classroomapp/adminconsole/internal/api/response"
	"github.com/classroomapp/adminconsole/internal/dashboard"
	"github.com/classroomapp/adminconsole/internal/resilience"
)

// PollerState is the part of the dashboard poller the ops endpoints report.
type PollerState interface {
	Loading() bool
	Joined() int64
	LastBatch() *dashboard.BatchResult
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	poller    PollerState
}

// NewOpsHandler creates a new OpsHandler. registry and poller may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, poller PollerState) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		poller:    poller,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The console is ready once a
// batch has filled at least one slot.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.poller != nil {
		batch := h.poller.LastBatch()
		switch {
		case batch == nil:
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"reason": "no dashboard batch has completed"}
		case batch.Succeeded() == 0:
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"reason": "last dashboard batch filled no slot"}
		}
	}

	status := http.StatusOK
	if health.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - circuit state of every admin
// backend endpoint.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Endpoints: []models.EndpointStatus{},
	}

	if h.poller != nil {
		status.Loading = h.poller.Loading()
		status.Joined = h.poller.Joined()
	}

	if h.registry != nil {
		open := 0
		for _, eh := range h.registry.AllHealth() {
			es := endpointStatus(eh)
			if es.Status == models.HealthStatusFail {
				open++
			}
			if es.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Endpoints = append(status.Endpoints, es)
		}
		if open > 0 && open == len(status.Endpoints) {
			status.Status = models.HealthStatusFail
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func endpointStatus(eh *resilience.EndpointHealth) models.EndpointStatus {
	es := models.EndpointStatus{
		Endpoint:            eh.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        eh.CircuitState.String(),
		ConsecutiveFailures: eh.Counts.ConsecutiveFailures,
		LastSuccessAt:       models.TimestampPtr(eh.LastSuccessAt),
		LastFailureAt:       models.TimestampPtr(eh.LastFailureAt),
	}

	switch eh.CircuitState {
	case gobreaker.StateHalfOpen:
		es.Status = models.HealthStatusDegraded
	case gobreaker.StateOpen:
		es.Status = models.HealthStatusFail
	}

	if eh.LastError != "" {
		msg := eh.LastError
		es.Message = &msg
	}
	return es
}
