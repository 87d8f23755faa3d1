package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outbreak.sim/internal/sim/city"
	"outbreak.sim/internal/sim/geom"
	"outbreak.sim/internal/sim/gen"
	"outbreak.sim/internal/sim/seed"
)

// Reset discards the current city and generates a new one. An empty map seed
// means an unseeded (time-derived) run.
func (w *World) Reset(mapSeed string) error {
	s, det := seed.Resolve(mapSeed)
	return w.reset(mapSeed, s, det)
}

// ResetWithSeed generates a new city from an explicit int64 seed, as
// recorded in a run log.
func (w *World) ResetWithSeed(s int64) error {
	return w.reset("", s, true)
}

func (w *World) reset(mapSeed string, s int64, det bool) error {
	cfg := w.next
	rng := seed.NewRand(s)
	bounds := geom.Bx(0, 0, cfg.Width-1, cfg.Height-1)
	root, err := gen.BuildCity(bounds, cfg.Gen, rng)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	w.cfg = cfg
	w.rng = rng
	w.root = root
	w.runID = uuid.NewString()
	w.mapSeed = mapSeed
	w.seed = s
	w.deterministic = det
	w.lastStats = city.Stats{}
	w.runTotals = city.Stats{}
	w.resetTotal++
	w.tick.Store(0)
	w.runLogged = false

	w.info.Store(RunInfo{
		WorldID:       cfg.ID,
		RunID:         w.runID,
		MapSeed:       mapSeed,
		Seed:          s,
		Deterministic: det,
		Width:         cfg.Width,
		Height:        cfg.Height,
		TickRateHz:    cfg.TickRateHz,
	})
	if w.runLogger != nil {
		w.logRun()
	}
	w.publishMetrics(0, w.stateDigest(0))
	return nil
}

func (w *World) logRun() {
	w.runLogged = true
	_ = w.runLogger.WriteRun(RunEntry{
		RunID:         w.runID,
		WorldID:       w.cfg.ID,
		StartedUnixMS: time.Now().UnixMilli(),
		MapSeed:       w.mapSeed,
		Seed:          w.seed,
		Deterministic: w.deterministic,
		Width:         w.cfg.Width,
		Height:        w.cfg.Height,
		Gen:           w.cfg.Gen,
		Digest:        w.stateDigest(0),
	})
}

type resetReq struct {
	MapSeed string
	Resp    chan resetResp
}

type resetResp struct {
	RunID string
	Err   error
}

// RequestReset asks the world loop goroutine to start a new run.
// It is safe to call from other goroutines (e.g. admin HTTP handlers).
func (w *World) RequestReset(ctx context.Context, mapSeed string) (runID string, err error) {
	if w == nil || w.resetReq == nil {
		return "", errors.New("reset not available")
	}
	resp := make(chan resetResp, 1)
	req := resetReq{MapSeed: mapSeed, Resp: resp}

	select {
	case w.resetReq <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-resp:
		return r.RunID, r.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (w *World) handleResetRequest(req resetReq) {
	err := w.Reset(req.MapSeed)
	if err == nil {
		w.broadcastFrame()
	}
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- resetResp{RunID: w.runID, Err: err}:
	default:
	}
}
