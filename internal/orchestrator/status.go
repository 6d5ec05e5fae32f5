package orchestrator

import (
	"context"

	"reframe/internal/stage"
)

// StatusSummary captures a point-in-time view of the orchestrator for
// diagnostic surfaces.
type StatusSummary struct {
	Running  bool
	InFlight int
	Capacity int
	Stages   []stage.Health
}

// Status gathers orchestrator state and per-stage health checks.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	running := m.running
	inflight := len(m.inflight)
	m.mu.Unlock()

	summary := StatusSummary{
		Running:  running,
		InFlight: inflight,
		Capacity: cap(m.sem),
		Stages:   make([]stage.Health, 0, len(m.pipeline)),
	}
	for _, st := range m.pipeline {
		summary.Stages = append(summary.Stages, st.Runner.HealthCheck(ctx))
	}
	return summary
}

// Healthy reports whether every pipeline stage passes its health check.
func (s StatusSummary) Healthy() bool {
	for _, health := range s.Stages {
		if !health.Ready {
			return false
		}
	}
	return true
}
