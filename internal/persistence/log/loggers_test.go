package log

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/world"
)

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for i := 0; i < 3; i++ {
		e := world.TickLogEntry{RunID: "r1", Tick: uint64(i), Census: agent.Census{Normal: 5 - i, Zombie: 1 + i}, Digest: "d"}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(filepath.Join(dir, "ticks"), "ticks")
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var got []world.TickLogEntry
	err = ReadJSONL(files[0], func(line []byte) error {
		var e world.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(got) != 3 || got[2].Tick != 2 || got[2].Census.Zombie != 3 {
		t.Fatalf("entries=%+v", got)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "runs")
	clock := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(dir, "runs")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	want := []string{
		filepath.Join(dir, "runs-2024-05-01-10.jsonl.zst"),
		filepath.Join(dir, "runs-2024-05-01-11.jsonl.zst"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files=%v want %v", files, want)
	}
}

func TestRunLogger_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"a", "b"} {
		l := NewRunLogger(dir)
		if err := l.WriteRun(world.RunEntry{RunID: id, Seed: 7}); err != nil {
			t.Fatalf("WriteRun: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	files, err := ListFiles(filepath.Join(dir, "runs"), "runs")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	var ids []string
	for _, f := range files {
		err := ReadJSONL(f, func(line []byte) error {
			var e world.RunEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			ids = append(ids, e.RunID)
			return nil
		})
		if err != nil {
			t.Fatalf("ReadJSONL: %v", err)
		}
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids=%v", ids)
	}
}
