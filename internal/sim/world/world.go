// Package world owns one running city: its random source, its component
// tree and its tick counter. A World is single-threaded; other goroutines
// reach it through the request channels served by Run.
package world

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"outbreak.sim/internal/sim/city"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine, except for
// the atomics (tick, running, metrics, run info).
type World struct {
	cfg WorldConfig

	tick    atomic.Uint64
	running atomic.Bool

	runID         string
	mapSeed       string
	seed          int64
	deterministic bool
	rng           *rand.Rand
	root          *city.Component

	lastStats  city.Stats
	runTotals  city.Stats
	resetTotal uint64

	// next holds configuration that takes effect at the next reset.
	next WorldConfig

	resetReq      chan resetReq
	stepReq       chan stepReq
	configReq     chan configReq
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}

	observers map[string]*observerClient

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger TickLogger
	runLogger  RunLogger
	runLogged  bool

	metrics atomic.Value // WorldMetrics
	info    atomic.Value // RunInfo
}

// New creates a world and generates its first run from cfg.MapSeed.
func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.Gen.Validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}
	w := &World{
		cfg:           cfg,
		next:          cfg,
		resetReq:      make(chan resetReq, 8),
		stepReq:       make(chan stepReq, 8),
		configReq:     make(chan configReq, 4),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	if err := w.Reset(cfg.MapSeed); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

// SetRunLogger installs l and records the current run if it has not been
// recorded yet.
func (w *World) SetRunLogger(l RunLogger) {
	w.runLogger = l
	if w.root != nil && !w.runLogged {
		w.logRun()
	}
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

// Running reports whether the loop advances on its own.
func (w *World) Running() bool { return w.running.Load() }

// SetRunning starts or pauses automatic ticking. Safe from any goroutine.
func (w *World) SetRunning(on bool) { w.running.Store(on) }

func (w *World) RunInfo() RunInfo {
	if w == nil {
		return RunInfo{}
	}
	v, _ := w.info.Load().(RunInfo)
	return v
}

// Root returns the component tree. Only for use from the goroutine that
// drives the world (tests, replay), never while Run is active.
func (w *World) Root() *city.Component { return w.root }
