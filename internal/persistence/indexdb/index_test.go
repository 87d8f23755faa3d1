package indexdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/city"
	"outbreak.sim/internal/sim/gen"
	"outbreak.sim/internal/sim/world"
)

func sampleRun(id string, started int64) world.RunEntry {
	return world.RunEntry{
		RunID:         id,
		WorldID:       "city_1",
		StartedUnixMS: started,
		MapSeed:       "1",
		Seed:          42,
		Deterministic: true,
		Width:         160,
		Height:        120,
		Gen:           gen.DefaultConfig(),
		Digest:        "d0",
	}
}

func sampleTick(run string, tick uint64, zombies int) world.TickLogEntry {
	return world.TickLogEntry{
		RunID:  run,
		Tick:   tick,
		Census: agent.Census{Normal: 10 - zombies, Zombie: zombies},
		Stats:  city.Stats{Bites: 1, Bounces: 2},
		Digest: "d",
	}
}

func exerciseIndex(t *testing.T, s *SQLIndex) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = s.WriteRun(sampleRun("r1", 1000))
	_ = s.WriteRun(sampleRun("r2", 2000))
	for i := 0; i < 6; i++ {
		_ = s.WriteTick(sampleTick("r1", uint64(i), 1+i))
	}
	// Duplicates are ignored.
	_ = s.WriteTick(sampleTick("r1", 5, 99))
	_ = s.WriteRun(sampleRun("r1", 5000))
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	runs, err := s.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "r2" || runs[1].RunID != "r1" {
		t.Fatalf("runs=%+v", runs)
	}
	r1 := runs[1]
	if r1.Ticks != 6 || r1.PeakZombies != 6 || !r1.Deterministic || r1.Seed != 42 || r1.StartedUnixMS != 1000 {
		t.Fatalf("r1=%+v", r1)
	}
	if runs[0].Ticks != 0 || runs[0].PeakZombies != 0 {
		t.Fatalf("r2=%+v", runs[0])
	}

	curve, err := s.Curve(ctx, "r1", 2)
	if err != nil {
		t.Fatalf("Curve: %v", err)
	}
	if len(curve) != 3 || curve[1].Tick != 2 || curve[1].Census.Zombie != 3 || curve[1].Stats.Bounces != 2 {
		t.Fatalf("curve=%+v", curve)
	}
}

func TestSQLiteIndex_RunsAndCurve(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "runs.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	exerciseIndex(t, s)
	if st := s.Stats(); st.WriteErrTotal != 0 {
		t.Fatalf("write errors: %+v", st)
	}
}

func TestPostgresIndex_RunsAndCurve(t *testing.T) {
	dsn := os.Getenv("OB_INDEX_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("OB_INDEX_POSTGRES_DSN not set")
	}
	s, err := OpenPostgres(dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer s.Close()
	if _, err := s.db.Exec(`DELETE FROM ticks WHERE run_id IN ('r1','r2')`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := s.db.Exec(`DELETE FROM runs WHERE run_id IN ('r1','r2')`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	exerciseIndex(t, s)
}

func TestRebind(t *testing.T) {
	pg := &SQLIndex{dialect: Postgres}
	if got := pg.rebind(`SELECT ? , ?`); got != `SELECT $1 , $2` {
		t.Fatalf("postgres rebind=%q", got)
	}
	lite := &SQLIndex{dialect: SQLite}
	if got := lite.rebind(`SELECT ?`); got != `SELECT ?` {
		t.Fatalf("sqlite rebind=%q", got)
	}
}

func TestSQLIndex_QueueDropStats(t *testing.T) {
	s := &SQLIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteRun(world.RunEntry{RunID: "x"})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropRunTotal != 1 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestIngestIndex_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	var kinds []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("x-ob-index-token") != "secret" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		var body struct {
			Events []struct {
				Kind string `json:"kind"`
			} `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		for _, e := range body.Events {
			kinds = append(kinds, e.Kind)
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := OpenIngest(IngestConfig{
		Endpoint:      srv.URL,
		Token:         "secret",
		WorldID:       "city_1",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenIngest: %v", err)
	}
	defer func() { _ = idx.Close() }()

	_ = idx.WriteRun(sampleRun("r1", 1))
	_ = idx.WriteTick(sampleTick("r1", 0, 1))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(kinds) >= 2
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 2 || kinds[0] != "run" || kinds[1] != "tick" {
		t.Fatalf("delivered=%v after %d requests", kinds, reqCount)
	}
	st := idx.Stats()
	if st.FlushFailTotal < 3 {
		t.Fatalf("FlushFailTotal=%d want >= 3", st.FlushFailTotal)
	}
	if st.QueueDroppedTotal != 0 {
		t.Fatalf("unexpected drops: %d", st.QueueDroppedTotal)
	}
}
