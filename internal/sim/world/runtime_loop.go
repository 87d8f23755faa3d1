package world

import (
	"context"
	"errors"
	"time"
)

// Run drives the world until ctx is cancelled or Stop is called. While
// running, one tick is executed per ticker interval; while paused, only
// requests are served.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval(w.cfg.TickRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.resetReq:
			w.handleResetRequest(req)
		case req := <-w.stepReq:
			w.handleStepRequest(req)
		case req := <-w.configReq:
			if w.handleConfigRequest(req) {
				ticker.Reset(tickInterval(w.cfg.TickRateHz))
			}
		case <-ticker.C:
			if w.running.Load() {
				w.stepInternal()
			}
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func tickInterval(hz int) time.Duration {
	if hz <= 0 {
		hz = 1
	}
	return time.Second / time.Duration(hz)
}

type stepReq struct {
	Resp chan stepResp
}

type stepResp struct {
	Tick   uint64
	Digest string
}

// RequestStep asks the world loop goroutine to execute exactly one tick,
// whether or not the world is running.
func (w *World) RequestStep(ctx context.Context) (tick uint64, digest string, err error) {
	if w == nil || w.stepReq == nil {
		return 0, "", errors.New("step not available")
	}
	resp := make(chan stepResp, 1)
	select {
	case w.stepReq <- stepReq{Resp: resp}:
	case <-ctx.Done():
		return 0, "", ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Tick, r.Digest, nil
	case <-ctx.Done():
		return 0, "", ctx.Err()
	}
}

func (w *World) handleStepRequest(req stepReq) {
	tick, digest := w.stepInternal()
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- stepResp{Tick: tick, Digest: digest}:
	default:
	}
}

type configReq struct {
	Cfg  WorldConfig
	Resp chan error
}

// RequestConfig hands new tuning to the world loop. The tick rate applies
// immediately; size and generation parameters apply from the next reset.
func (w *World) RequestConfig(ctx context.Context, cfg WorldConfig) error {
	if w == nil || w.configReq == nil {
		return errors.New("config updates not available")
	}
	resp := make(chan error, 1)
	select {
	case w.configReq <- configReq{Cfg: cfg, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleConfigRequest reports whether the tick rate changed.
func (w *World) handleConfigRequest(req configReq) bool {
	cfg := req.Cfg
	cfg.ID = w.cfg.ID
	cfg.applyDefaults()
	err := cfg.Gen.Validate()
	rateChanged := false
	if err == nil {
		w.next = cfg
		rateChanged = cfg.TickRateHz != w.cfg.TickRateHz
		w.cfg.TickRateHz = cfg.TickRateHz
		info := w.RunInfo()
		info.TickRateHz = cfg.TickRateHz
		w.info.Store(info)
	}
	if req.Resp != nil {
		select {
		case req.Resp <- err:
		default:
		}
	}
	return rateChanged
}

// sendLatest delivers b, displacing the oldest queued message when ch is full.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
