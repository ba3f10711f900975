// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// worse returns the more severe of a and b.
func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// ComponentHealth contains health details for one component.
type ComponentHealth struct {
	Name   string       `json:"name"`
	Status SystemStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// CycleSummary is the last poll cycle as exposed over HTTP.
type CycleSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
	Entries    int       `json:"entries"`
	Notified   int       `json:"notified"`
	Failed     int       `json:"failed"`
	PriceKnown bool      `json:"price_known"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
	PollerState  string                     `json:"poller_state"`
	Cycles       uint64                     `json:"cycles"`
	LastCycle    *CycleSummary              `json:"last_cycle,omitempty"`
}
