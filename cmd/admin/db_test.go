package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"outbreak.sim/internal/persistence/indexdb"
	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/world"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.WriteRun(world.RunEntry{RunID: "old", WorldID: "city_1", StartedUnixMS: 1000, Seed: 1})
	_ = idx.WriteRun(world.RunEntry{RunID: "new", WorldID: "city_1", StartedUnixMS: 2000, MapSeed: "m", Seed: 2, Width: 60, Height: 40})
	censuses := []agent.Census{
		{Normal: 3, Zombie: 1},
		{Normal: 1, Panicked: 2, Zombie: 1},
		{Sick: 1, Panicked: 1, Zombie: 2},
		{Zombie: 4},
		{Zombie: 4},
	}
	for i, c := range censuses {
		e := world.TickLogEntry{RunID: "new", Tick: uint64(i), Census: c, Digest: "d"}
		e.Stats.Bites = 1
		_ = idx.WriteTick(e)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestListRuns(t *testing.T) {
	db := openDB(t, seedIndex(t))
	var sb strings.Builder
	if err := listRuns(&sb, db, 10, time.UnixMilli(2000).Add(3*time.Hour)); err != nil {
		t.Fatalf("listRuns: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "new") || !strings.HasPrefix(lines[1], "old") {
		t.Fatalf("lines=%q", lines)
	}
	if !strings.Contains(lines[0], "3 hours ago") || !strings.Contains(lines[0], "ticks=5") || !strings.Contains(lines[1], "map_seed=-") {
		t.Fatalf("lines=%q", lines)
	}

	id, err := latestRunID(db)
	if err != nil || id != "new" {
		t.Fatalf("latestRunID=%q err=%v", id, err)
	}
}

func TestPrintCurveAndOutbreak(t *testing.T) {
	db := openDB(t, seedIndex(t))

	var sb strings.Builder
	if err := printCurve(&sb, db, "new", 2); err != nil {
		t.Fatalf("printCurve: %v", err)
	}
	if n := strings.Count(sb.String(), "\n"); n != 3 {
		t.Fatalf("curve lines=%d want 3:\n%s", n, sb.String())
	}

	sb.Reset()
	if err := printOutbreak(&sb, db, "new"); err != nil {
		t.Fatalf("printOutbreak: %v", err)
	}
	var got struct {
		Ticks        int64  `json:"ticks"`
		PeakPanicked int    `json:"peak_panicked"`
		PeakZombies  int    `json:"peak_zombies"`
		Bites        int64  `json:"bites"`
		OverrunTick  *int64 `json:"overrun_tick"`
	}
	if err := json.Unmarshal([]byte(sb.String()), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Ticks != 5 || got.PeakPanicked != 2 || got.PeakZombies != 4 || got.Bites != 5 || got.OverrunTick == nil || *got.OverrunTick != 3 {
		t.Fatalf("outbreak=%s", sb.String())
	}

	sb.Reset()
	if err := printOutbreak(&sb, db, "old"); err != nil {
		t.Fatalf("printOutbreak old: %v", err)
	}
	if strings.Contains(sb.String(), "overrun_tick") {
		t.Fatalf("old run has no ticks: %s", sb.String())
	}
}

func TestControlURL(t *testing.T) {
	cases := []struct {
		op, seed, want string
	}{
		{"step", "", "http://h/admin/v1/step"},
		{"reset", "", "http://h/admin/v1/reset"},
		{"reset", "a b", "http://h/admin/v1/reset?map_seed=a+b"},
		{"start", "", "http://h/admin/v1/running?on=true"},
		{"pause", "", "http://h/admin/v1/running?on=false"},
	}
	for _, tc := range cases {
		got, err := controlURL("http://h/", tc.op, tc.seed)
		if err != nil || got != tc.want {
			t.Fatalf("controlURL(%s,%q)=%q err=%v want %q", tc.op, tc.seed, got, err, tc.want)
		}
	}
	if _, err := controlURL("http://h", "jump", ""); err == nil {
		t.Fatalf("expected error for unknown op")
	}
}
