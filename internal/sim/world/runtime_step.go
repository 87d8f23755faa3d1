package world

import (
	"time"

	"outbreak.sim/internal/sim/city"
)

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. It is intended for deterministic replays/tests.
func (w *World) StepOnce() (tick uint64, digest string) {
	return w.stepInternal()
}

func (w *World) stepInternal() (uint64, string) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	t := city.Tick{Rand: w.rng}
	w.root.Step(nil, &t)
	w.lastStats = t.Stats
	addStats(&w.runTotals, t.Stats)

	digest := w.stateDigest(nowTick)
	w.tick.Add(1)

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			RunID:  w.runID,
			Tick:   nowTick,
			Census: w.root.Census(),
			Stats:  t.Stats,
			Digest: digest,
		})
	}

	// Observer stream (read-only).
	w.broadcastFrame()

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	w.publishMetrics(stepMS, digest)
	return nowTick, digest
}
