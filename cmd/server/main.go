package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "outbreak.sim/internal/persistence/log"
	"outbreak.sim/internal/sim/tuning"
	"outbreak.sim/internal/sim/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "city_1", "world id")
		mapSeed    = flag.String("seed", "", "map seed for the first run (empty: time-derived, non-deterministic)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the run/tick index")
		autostart  = flag.Bool("autostart", false, "start ticking immediately instead of paused")
		watchTune  = flag.Bool("watch_tuning", true, "reload tuning.yaml on change")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *worldID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	w, err := world.New(worldConfig(*worldID, *mapSeed, tune))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	runLog := persistlog.NewRunLogger(worldDir)
	defer tickLog.Close()
	defer runLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetRunLogger(multiRunLogger{a: runLog, b: idx})
	w.SetRunning(*autostart)

	info := w.RunInfo()
	m := w.Metrics()
	logger.Printf("run=%s city=%dx%d agents=%s seed=%d deterministic=%v running=%v",
		info.RunID, info.Width, info.Height, humanize.Comma(int64(m.Agents)), info.Seed, info.Deterministic, *autostart)

	ctx, cancel := signalContext()
	defer cancel()

	if *watchTune {
		if err := watchTuning(ctx, tp, w, logger); err != nil {
			logger.Printf("tuning watch disabled: %v", err)
		}
	}

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	registerRoutes(mux, &adminAPI{world: w, index: idx, log: logger}, envBool("OB_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()))
	if envBool("OB_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (OB_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func worldConfig(id, mapSeed string, t tuning.Tuning) world.WorldConfig {
	return world.WorldConfig{
		ID:         id,
		TickRateHz: t.TickRateHz,
		Width:      t.Width,
		Height:     t.Height,
		MapSeed:    mapSeed,
		Gen:        t.GenConfig(),
	}
}

// watchTuning forwards tuning.yaml edits to the world loop until ctx ends.
func watchTuning(ctx context.Context, path string, w *world.World, logger *log.Logger) error {
	tw, err := tuning.Watch(path)
	if err != nil {
		return err
	}
	go func() {
		defer tw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-tw.Updates:
				if !ok {
					return
				}
				ctx2, cancel2 := context.WithTimeout(ctx, 5*time.Second)
				err := w.RequestConfig(ctx2, worldConfig(w.ID(), "", t))
				cancel2()
				if err != nil {
					logger.Printf("tuning reload rejected: %v", err)
					continue
				}
				logger.Printf("tuning reloaded: %dx%d @%dHz (size and generation apply at next reset)", t.Width, t.Height, t.TickRateHz)
			case err, ok := <-tw.Errors:
				if !ok {
					return
				}
				logger.Printf("tuning watch: %v", err)
			}
		}
	}()
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiRunLogger struct {
	a world.RunLogger
	b world.RunLogger
}

func (m multiRunLogger) WriteRun(entry world.RunEntry) error {
	if m.a != nil {
		_ = m.a.WriteRun(entry)
	}
	if m.b != nil {
		_ = m.b.WriteRun(entry)
	}
	return nil
}
