package domain

import "time"

// ServiceStatus is the outcome of a single dependency health check.
type ServiceStatus string

const (
	ServiceHealthy       ServiceStatus = "healthy"
	ServiceUnhealthy     ServiceStatus = "unhealthy"
	ServiceMissing       ServiceStatus = "missing"
	ServiceMissingModels ServiceStatus = "missing_models"
	ServiceError         ServiceStatus = "error"
)

// ServiceCheck is the per-dependency detail inside a health report.
type ServiceCheck struct {
	Service       string        `json:"service"`
	Status        ServiceStatus `json:"status"`
	Detail        string        `json:"detail,omitempty"`
	MissingModels []string      `json:"missing_models,omitempty"`
}

// HealthReport aggregates all dependency checks into one go/no-go decision.
// CanProcess is the gate: callers must not start the pipeline when it is false.
type HealthReport struct {
	Overall    string                  `json:"overall_status"`
	CanProcess bool                    `json:"can_process_documents"`
	Services   map[string]ServiceCheck `json:"services"`
	CheckedAt  time.Time               `json:"checked_at"`
}

const (
	OverallHealthy   = "healthy"
	OverallReady     = "ready"
	OverallUnhealthy = "unhealthy"
)
