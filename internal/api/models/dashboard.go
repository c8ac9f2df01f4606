package models

import (
	"github.com/classroomapp/adminconsole/internal/adminapi"
	"github.com/classroomapp/adminconsole/internal/dashboard"
)

// RefreshResult is the response of a manual dashboard refresh.
type RefreshResult struct {
	Batch     *dashboard.BatchResult `json:"batch"`
	Dashboard dashboard.View         `json:"dashboard"`
}

// HealthCheckResult is the response of a manual health check.
type HealthCheckResult struct {
	Check     *adminapi.HealthCheckResult `json:"check"`
	Dashboard dashboard.View              `json:"dashboard"`
}
