package world

import (
	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/city"
)

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick    uint64 `json:"tick"`
	RunID   string `json:"run_id"`
	Running bool   `json:"running"`

	Agents    int          `json:"agents"`
	Census    agent.Census `json:"census"`
	Observers int          `json:"observers"`

	ResetTotal uint64 `json:"reset_total"`

	// LastTick is what happened during the most recent tick; RunTotals sums
	// every tick of the current run.
	LastTick  city.Stats `json:"last_tick"`
	RunTotals city.Stats `json:"run_totals"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
	// Digest is the state digest recorded by the most recent step or reset.
	Digest string `json:"digest"`
}

type QueueDepths struct {
	Reset        int `json:"reset"`
	Step         int `json:"step"`
	ObserverJoin int `json:"observer_join"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(stepMS float64, digest string) {
	census := w.root.Census()
	w.metrics.Store(WorldMetrics{
		Tick:       w.tick.Load(),
		RunID:      w.runID,
		Running:    w.running.Load(),
		Agents:     census.Total(),
		Census:     census,
		Observers:  len(w.observers),
		ResetTotal: w.resetTotal,
		LastTick:   w.lastStats,
		RunTotals:  w.runTotals,
		QueueDepths: QueueDepths{
			Reset:        len(w.resetReq),
			Step:         len(w.stepReq),
			ObserverJoin: len(w.observerJoin),
		},
		StepMS: stepMS,
		Digest: digest,
	})
}

func addStats(dst *city.Stats, s city.Stats) {
	dst.Bites += s.Bites
	dst.Turned += s.Turned
	dst.Panics += s.Panics
	dst.Calmed += s.Calmed
	dst.Transfers += s.Transfers
	dst.Bounces += s.Bounces
}
