package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	persistlog "outbreak.sim/internal/persistence/log"
	"outbreak.sim/internal/sim/render"
	"outbreak.sim/internal/sim/world"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		worldID = flag.String("world", "city_1", "world id")
		runID   = flag.String("run", "", "verify only this run id (optional)")
		toTick  = flag.Uint64("to_tick", 0, "stop each run after this tick (inclusive, optional)")
		grid    = flag.Bool("grid", false, "print a text map of each run's last verified tick")
	)
	flag.Parse()

	r := &replayer{only: *runID, toTick: *toTick, grid: *grid}
	if err := r.replayDir(filepath.Join(*dataDir, "worlds", *worldID)); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: runs=%s ticks=%s\n", humanize.Comma(int64(r.runsChecked)), humanize.Comma(int64(r.ticksChecked)))
}

// replayDir verifies every logged tick under worldDir.
func (r *replayer) replayDir(worldDir string) error {
	runs, err := loadRuns(filepath.Join(worldDir, "runs"))
	if err != nil {
		return fmt.Errorf("read runs: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs logged in %s", worldDir)
	}
	r.runs = runs

	files, err := persistlog.ListFiles(filepath.Join(worldDir, "ticks"), "ticks")
	if err != nil {
		return fmt.Errorf("list ticks: %w", err)
	}
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var entry world.TickLogEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			return r.apply(entry)
		})
		if err != nil {
			return err
		}
	}
	r.endRun()
	return nil
}

func loadRuns(dir string) (map[string]world.RunEntry, error) {
	files, err := persistlog.ListFiles(dir, "runs")
	if err != nil {
		return nil, err
	}
	out := map[string]world.RunEntry{}
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var e world.RunEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			out[e.RunID] = e
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// replayer regenerates each run from its logged seed and steps it alongside
// the tick log, comparing digests.
type replayer struct {
	runs   map[string]world.RunEntry
	only   string
	toTick uint64
	grid   bool

	cur     *world.World
	curRun  world.RunEntry
	skip    string
	checked uint64

	runsChecked  int
	ticksChecked uint64
}

func (r *replayer) apply(entry world.TickLogEntry) error {
	if entry.RunID == r.skip {
		return nil
	}
	if r.cur == nil || entry.RunID != r.curRun.RunID {
		if r.only != "" && entry.RunID != r.only {
			r.skip = entry.RunID
			return nil
		}
		if err := r.start(entry.RunID); err != nil {
			return err
		}
	}
	if r.toTick != 0 && entry.Tick > r.toTick {
		return nil
	}
	if entry.Tick != r.cur.CurrentTick() {
		return fmt.Errorf("run %s: tick mismatch: want=%d got=%d", entry.RunID, r.cur.CurrentTick(), entry.Tick)
	}
	tick, digest := r.cur.StepOnce()
	if tick != entry.Tick {
		return fmt.Errorf("run %s: internal tick mismatch: stepped=%d entry=%d", entry.RunID, tick, entry.Tick)
	}
	if digest != entry.Digest {
		return fmt.Errorf("run %s: digest mismatch at tick %d: got=%s want=%s", entry.RunID, tick, digest, entry.Digest)
	}
	if census := r.cur.Root().Census(); census != entry.Census {
		return fmt.Errorf("run %s: census mismatch at tick %d: got=%+v want=%+v", entry.RunID, tick, census, entry.Census)
	}
	r.checked++
	r.ticksChecked++
	return nil
}

func (r *replayer) start(runID string) error {
	r.endRun()
	run, ok := r.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: no run entry logged", runID)
	}
	w, err := world.New(world.WorldConfig{
		ID:      run.WorldID,
		Width:   run.Width,
		Height:  run.Height,
		MapSeed: run.MapSeed,
		Gen:     run.Gen,
	})
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	if err := w.ResetWithSeed(run.Seed); err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	if got := w.Digest(); got != run.Digest {
		return fmt.Errorf("run %s: generated city digest %s differs from logged %s", runID, got, run.Digest)
	}
	r.cur, r.curRun, r.checked = w, run, 0
	return nil
}

func (r *replayer) endRun() {
	if r.cur == nil {
		return
	}
	c := r.cur.Root().Census()
	fmt.Printf("run %s seed=%d map_seed=%q ticks=%s agents=%s zombies=%s ok\n",
		r.curRun.RunID, r.curRun.Seed, r.curRun.MapSeed,
		humanize.Comma(int64(r.checked)), humanize.Comma(int64(c.Total())), humanize.Comma(int64(c.Zombie)))
	if r.grid {
		g := render.NewGrid(r.cur.Root().Box)
		r.cur.Root().Render(g, render.DefaultPalette())
		fmt.Println(g.String())
	}
	r.runsChecked++
	r.cur = nil
}
