package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/dashnotifier/internal/indexing/poller"
	"github.com/vietddude/dashnotifier/internal/infra/provider"
)

// PollerStatus exposes the scheduler status.
type PollerStatus interface {
	Status() poller.Status
}

// ProviderStats exposes provider throttle statistics.
type ProviderStats interface {
	Stats() provider.MonitorStats
}

// Monitor aggregates health status from the poller and the provider.
type Monitor struct {
	poller   PollerStatus
	provider ProviderStats
	interval time.Duration
	started  time.Time
	now      func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport HealthReport
}

// NewMonitor creates a new health monitor. interval is the poll interval used
// to judge whether cycles are overdue.
func NewMonitor(p PollerStatus, prov ProviderStats, interval time.Duration) *Monitor {
	return &Monitor{
		poller:   p,
		provider: prov,
		interval: interval,
		started:  time.Now(),
		now:      time.Now,
	}
}

// CheckHealth builds a health report, cached for one second.
func (m *Monitor) CheckHealth() HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastCheck) < time.Second && m.lastReport.Components != nil {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
	}

	ph := m.pollerHealth(now, &report)
	report.Components[ph.Name] = ph

	prov := m.providerHealth()
	report.Components[prov.Name] = prov

	for _, c := range report.Components {
		report.SystemStatus = worse(report.SystemStatus, c.Status)
	}

	m.lastCheck = now
	m.lastReport = report
	return report
}

func (m *Monitor) pollerHealth(now time.Time, report *HealthReport) ComponentHealth {
	h := ComponentHealth{Name: "poller", Status: StatusHealthy}
	status := m.poller.Status()

	report.PollerState = string(status.State)
	report.Cycles = status.Cycles

	last := status.LastCycle
	if last == nil {
		// Allow startup plus a few intervals before complaining
		if now.Sub(m.started) > 3*m.interval {
			h.Status = StatusCritical
			h.Detail = "no cycle completed yet"
		}
		return h
	}

	report.LastCycle = &CycleSummary{
		ID:         last.ID,
		StartedAt:  last.StartedAt,
		Duration:   last.Duration.String(),
		Entries:    last.Entries,
		Notified:   last.Notified,
		Failed:     last.Failed,
		PriceKnown: last.PriceKnown,
	}

	switch {
	case now.Sub(last.StartedAt.Add(last.Duration)) > 3*m.interval && status.State == poller.StateIdle:
		h.Status = StatusCritical
		h.Detail = fmt.Sprintf("last cycle finished %s ago", now.Sub(last.StartedAt.Add(last.Duration)).Round(time.Second))
	case last.PersistErr != "":
		h.Status = StatusDegraded
		h.Detail = "state write failed: " + last.PersistErr
	case last.Entries > 0 && last.Failed*2 > last.Entries:
		h.Status = StatusDegraded
		h.Detail = fmt.Sprintf("%d of %d entries failed", last.Failed, last.Entries)
	}
	return h
}

func (m *Monitor) providerHealth() ComponentHealth {
	h := ComponentHealth{Name: "provider", Status: StatusHealthy}
	if m.provider == nil {
		return h
	}

	stats := m.provider.Stats()
	switch stats.Status {
	case provider.StatusBlocked, provider.StatusThrottled, provider.StatusDegraded:
		h.Status = StatusDegraded
		h.Detail = fmt.Sprintf("%s (avg latency %s)", stats.Status, stats.AverageLatency.Round(time.Millisecond))
	}
	return h
}
