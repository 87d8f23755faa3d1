package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"outbreak.sim/internal/persistence/indexdb"
	"outbreak.sim/internal/sim/world"
	"outbreak.sim/internal/transport/observer"
)

const adminTimeout = 5 * time.Second

type adminAPI struct {
	world *world.World
	index runtimeIndex
	log   *log.Logger
}

// registerRoutes installs the public endpoints and, when enableAdmin is set,
// the loopback-only admin and observer endpoints.
func registerRoutes(mux *http.ServeMux, a *adminAPI, enableAdmin bool) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)

	if !enableAdmin {
		a.log.Printf("admin endpoints disabled (OB_ENABLE_ADMIN_HTTP=false)")
		return
	}
	mux.HandleFunc("/admin/v1/state", loopbackOnly(a.handleState))
	mux.HandleFunc("/admin/v1/reset", loopbackOnly(a.handleReset))
	mux.HandleFunc("/admin/v1/step", loopbackOnly(a.handleStep))
	mux.HandleFunc("/admin/v1/running", loopbackOnly(a.handleRunning))
	mux.HandleFunc("/admin/v1/runs", loopbackOnly(a.handleRuns))
	mux.HandleFunc("/admin/v1/curve", loopbackOnly(a.handleCurve))

	obsSrv := observer.NewServer(a.world, a.log)
	mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func (a *adminAPI) handleState(rw http.ResponseWriter, r *http.Request) {
	resp := struct {
		Run     world.RunInfo      `json:"run"`
		Tick    uint64             `json:"tick"`
		Running bool               `json:"running"`
		Digest  string             `json:"digest"`
		Metrics world.WorldMetrics `json:"metrics"`
	}{
		Run:     a.world.RunInfo(),
		Tick:    a.world.CurrentTick(),
		Running: a.world.Running(),
		Metrics: a.world.Metrics(),
	}
	resp.Digest = resp.Metrics.Digest
	writeJSON(rw, http.StatusOK, resp)
}

func (a *adminAPI) handleReset(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	mapSeed := r.URL.Query().Get("map_seed")
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	runID, err := a.world.RequestReset(ctx, mapSeed)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	a.log.Printf("admin reset run=%s map_seed=%q", runID, mapSeed)
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "run_id": runID})
}

func (a *adminAPI) handleStep(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	tick, digest, err := a.world.RequestStep(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick, "digest": digest})
}

// handleRunning starts (on=true) or pauses (on=false) automatic ticking.
func (a *adminAPI) handleRunning(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	on, err := strconv.ParseBool(r.URL.Query().Get("on"))
	if err != nil {
		http.Error(rw, "bad on", http.StatusBadRequest)
		return
	}
	a.world.SetRunning(on)
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "running": on})
}

func (a *adminAPI) querier(rw http.ResponseWriter) (runQuerier, bool) {
	q, ok := a.index.(runQuerier)
	if !ok || q == nil {
		http.Error(rw, "index not queryable", http.StatusNotFound)
		return nil, false
	}
	return q, true
}

func (a *adminAPI) handleRuns(rw http.ResponseWriter, r *http.Request) {
	q, ok := a.querier(rw)
	if !ok {
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(rw, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	flushIndex(r.Context(), a.index)
	rows, err := q.Runs(r.Context(), limit)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []indexdb.RunRow{}
	}
	writeJSON(rw, http.StatusOK, rows)
}

func (a *adminAPI) handleCurve(rw http.ResponseWriter, r *http.Request) {
	q, ok := a.querier(rw)
	if !ok {
		return
	}
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if runID == "" {
		runID = a.world.RunInfo().RunID
	}
	every := 1
	if v := r.URL.Query().Get("every"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(rw, "bad every", http.StatusBadRequest)
			return
		}
		every = n
	}
	flushIndex(r.Context(), a.index)
	pts, err := q.Curve(r.Context(), runID, every)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	if pts == nil {
		pts = []indexdb.CurvePoint{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"run_id": runID, "points": pts})
}

// flushIndex commits pending index writes so queries see the latest ticks.
func flushIndex(ctx context.Context, idx runtimeIndex) {
	f, ok := idx.(interface{ Flush(context.Context) error })
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()
	_ = f.Flush(ctx)
}

func (a *adminAPI) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	id := a.world.ID()
	m := a.world.Metrics()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP outbreak_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE outbreak_world_tick gauge\n")
	fmt.Fprintf(rw, "outbreak_world_tick{world=%q} %d\n", id, a.world.CurrentTick())

	running := 0
	if m.Running {
		running = 1
	}
	fmt.Fprintf(rw, "# HELP outbreak_world_running Whether the world ticks on its own.\n")
	fmt.Fprintf(rw, "# TYPE outbreak_world_running gauge\n")
	fmt.Fprintf(rw, "outbreak_world_running{world=%q} %d\n", id, running)

	fmt.Fprintf(rw, "# HELP outbreak_world_agents Agents by state.\n")
	fmt.Fprintf(rw, "# TYPE outbreak_world_agents gauge\n")
	fmt.Fprintf(rw, "outbreak_world_agents{world=%q,state=%q} %d\n", id, "normal", m.Census.Normal)
	fmt.Fprintf(rw, "outbreak_world_agents{world=%q,state=%q} %d\n", id, "panicked", m.Census.Panicked)
	fmt.Fprintf(rw, "outbreak_world_agents{world=%q,state=%q} %d\n", id, "sick", m.Census.Sick)
	fmt.Fprintf(rw, "outbreak_world_agents{world=%q,state=%q} %d\n", id, "zombie", m.Census.Zombie)

	fmt.Fprintf(rw, "# HELP outbreak_world_observers Connected observer sessions.\n")
	fmt.Fprintf(rw, "# TYPE outbreak_world_observers gauge\n")
	fmt.Fprintf(rw, "outbreak_world_observers{world=%q} %d\n", id, m.Observers)

	fmt.Fprintf(rw, "# HELP outbreak_world_resets_total Runs started since process start.\n")
	fmt.Fprintf(rw, "# TYPE outbreak_world_resets_total counter\n")
	fmt.Fprintf(rw, "outbreak_world_resets_total{world=%q} %d\n", id, m.ResetTotal)

	fmt.Fprintf(rw, "# HELP outbreak_run_events Events summed over the current run.\n")
	fmt.Fprintf(rw, "# TYPE outbreak_run_events gauge\n")
	fmt.Fprintf(rw, "outbreak_run_events{world=%q,event=%q} %d\n", id, "bites", m.RunTotals.Bites)
	fmt.Fprintf(rw, "outbreak_run_events{world=%q,event=%q} %d\n", id, "turned", m.RunTotals.Turned)
	fmt.Fprintf(rw, "outbreak_run_events{world=%q,event=%q} %d\n", id, "panics", m.RunTotals.Panics)
	fmt.Fprintf(rw, "outbreak_run_events{world=%q,event=%q} %d\n", id, "calmed", m.RunTotals.Calmed)
	fmt.Fprintf(rw, "outbreak_run_events{world=%q,event=%q} %d\n", id, "transfers", m.RunTotals.Transfers)
	fmt.Fprintf(rw, "outbreak_run_events{world=%q,event=%q} %d\n", id, "bounces", m.RunTotals.Bounces)

	fmt.Fprintf(rw, "# HELP outbreak_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE outbreak_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "outbreak_world_queue_depth{world=%q,queue=%q} %d\n", id, "reset", m.QueueDepths.Reset)
	fmt.Fprintf(rw, "outbreak_world_queue_depth{world=%q,queue=%q} %d\n", id, "step", m.QueueDepths.Step)
	fmt.Fprintf(rw, "outbreak_world_queue_depth{world=%q,queue=%q} %d\n", id, "observer_join", m.QueueDepths.ObserverJoin)

	fmt.Fprintf(rw, "# HELP outbreak_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE outbreak_world_step_ms gauge\n")
	fmt.Fprintf(rw, "outbreak_world_step_ms{world=%q} %.3f\n", id, m.StepMS)

	writeIndexMetrics(rw, a.index)
}

func writeIndexMetrics(rw http.ResponseWriter, idx runtimeIndex) {
	switch v := idx.(type) {
	case *indexdb.SQLIndex:
		s := v.Stats()
		fmt.Fprintf(rw, "# HELP outbreak_index_queue_depth Index writer queue depth.\n")
		fmt.Fprintf(rw, "# TYPE outbreak_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "outbreak_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP outbreak_index_dropped_total Index writes dropped under backpressure.\n")
		fmt.Fprintf(rw, "# TYPE outbreak_index_dropped_total counter\n")
		fmt.Fprintf(rw, "outbreak_index_dropped_total{kind=%q} %d\n", "run", s.DropRunTotal)
		fmt.Fprintf(rw, "outbreak_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "# HELP outbreak_index_write_errors_total Failed index statements.\n")
		fmt.Fprintf(rw, "# TYPE outbreak_index_write_errors_total counter\n")
		fmt.Fprintf(rw, "outbreak_index_write_errors_total %d\n", s.WriteErrTotal)
	case *indexdb.IngestIndex:
		s := v.Stats()
		fmt.Fprintf(rw, "# HELP outbreak_index_queue_depth Index writer queue depth.\n")
		fmt.Fprintf(rw, "# TYPE outbreak_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "outbreak_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP outbreak_index_dropped_total Index writes dropped under backpressure.\n")
		fmt.Fprintf(rw, "# TYPE outbreak_index_dropped_total counter\n")
		fmt.Fprintf(rw, "outbreak_index_dropped_total{kind=%q} %d\n", "event", s.QueueDroppedTotal)
		fmt.Fprintf(rw, "# HELP outbreak_index_flush_total Ingest batch posts by outcome.\n")
		fmt.Fprintf(rw, "# TYPE outbreak_index_flush_total counter\n")
		fmt.Fprintf(rw, "outbreak_index_flush_total{result=%q} %d\n", "ok", s.FlushOKTotal)
		fmt.Fprintf(rw, "outbreak_index_flush_total{result=%q} %d\n", "fail", s.FlushFailTotal)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
