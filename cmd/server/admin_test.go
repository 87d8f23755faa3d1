package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"outbreak.sim/internal/persistence/indexdb"
	"outbreak.sim/internal/sim/tuning"
	"outbreak.sim/internal/sim/world"
)

func newTestServer(t *testing.T, withIndex bool) (*world.World, *httptest.Server) {
	t.Helper()
	tune := tuning.Defaults()
	tune.Width, tune.Height = 60, 40
	w, err := world.New(worldConfig("city_test", "admin", tune))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}

	var idx runtimeIndex
	if withIndex {
		s, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "runs.sqlite"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		idx = s
		w.SetTickLogger(multiTickLogger{b: idx})
		w.SetRunLogger(multiRunLogger{b: idx})
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(cancel)

	mux := http.NewServeMux()
	registerRoutes(mux, &adminAPI{world: w, index: idx, log: log.New(io.Discard, "", 0)}, true)
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)
	return w, hs
}

func post(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post %s: status=%d", url, resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestAdmin_StepResetAndState(t *testing.T) {
	w, hs := newTestServer(t, false)

	out := post(t, hs.URL+"/admin/v1/step")
	if out["ok"] != true || out["tick"].(float64) != 0 || out["digest"] == "" {
		t.Fatalf("step=%v", out)
	}
	if w.CurrentTick() != 1 {
		t.Fatalf("tick=%d want 1", w.CurrentTick())
	}

	before := w.RunInfo().RunID
	out = post(t, hs.URL+"/admin/v1/reset?map_seed=fresh")
	if out["ok"] != true || out["run_id"] == before {
		t.Fatalf("reset=%v", out)
	}

	out = post(t, hs.URL+"/admin/v1/running?on=true")
	if out["running"] != true || !w.Running() {
		t.Fatalf("running=%v", out)
	}
	post(t, hs.URL+"/admin/v1/running?on=false")

	code, body := getBody(t, hs.URL+"/admin/v1/state")
	if code != http.StatusOK {
		t.Fatalf("state status=%d", code)
	}
	var st struct {
		Run    world.RunInfo `json:"run"`
		Digest string        `json:"digest"`
	}
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Run.MapSeed != "fresh" || st.Digest == "" {
		t.Fatalf("state=%s", body)
	}

	resp, err := http.Get(hs.URL + "/admin/v1/step")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET step status=%d", resp.StatusCode)
	}
}

func TestAdmin_RunsAndCurve(t *testing.T) {
	w, hs := newTestServer(t, true)
	for i := 0; i < 4; i++ {
		post(t, hs.URL+"/admin/v1/step")
	}

	code, body := getBody(t, hs.URL+"/admin/v1/runs?limit=5")
	if code != http.StatusOK {
		t.Fatalf("runs status=%d body=%s", code, body)
	}
	var runs []indexdb.RunRow
	if err := json.Unmarshal([]byte(body), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != w.RunInfo().RunID || runs[0].Ticks != 4 {
		t.Fatalf("runs=%+v", runs)
	}

	code, body = getBody(t, hs.URL+"/admin/v1/curve?every=2")
	if code != http.StatusOK {
		t.Fatalf("curve status=%d body=%s", code, body)
	}
	var curve struct {
		RunID  string               `json:"run_id"`
		Points []indexdb.CurvePoint `json:"points"`
	}
	if err := json.Unmarshal([]byte(body), &curve); err != nil {
		t.Fatalf("decode curve: %v", err)
	}
	if curve.RunID != w.RunInfo().RunID || len(curve.Points) != 2 {
		t.Fatalf("curve=%s", body)
	}

	if code, _ := getBody(t, hs.URL+"/admin/v1/curve?every=0"); code != http.StatusBadRequest {
		t.Fatalf("every=0 status=%d", code)
	}
}

func TestAdmin_RunsWithoutIndex(t *testing.T) {
	_, hs := newTestServer(t, false)
	if code, _ := getBody(t, hs.URL+"/admin/v1/runs"); code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", code)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	_, hs := newTestServer(t, true)
	post(t, hs.URL+"/admin/v1/step")
	code, body := getBody(t, hs.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	for _, want := range []string{
		`outbreak_world_tick{world="city_test"} 1`,
		`outbreak_world_agents{world="city_test",state="zombie"}`,
		`outbreak_run_events{world="city_test",event="bites"}`,
		`outbreak_index_queue_depth`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestRegisterRoutes_AdminDisabled(t *testing.T) {
	w, err := world.New(world.WorldConfig{Width: 40, Height: 30, MapSeed: "x"})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	mux := http.NewServeMux()
	registerRoutes(mux, &adminAPI{world: w, log: log.New(io.Discard, "", 0)}, false)
	hs := httptest.NewServer(mux)
	defer hs.Close()

	if code, _ := getBody(t, hs.URL+"/admin/v1/state"); code != http.StatusNotFound {
		t.Fatalf("state status=%d want 404", code)
	}
	if code, body := getBody(t, hs.URL+"/healthz"); code != http.StatusOK || body != "ok" {
		t.Fatalf("healthz=%d %q", code, body)
	}
}
