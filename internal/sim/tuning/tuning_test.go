package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := "width: 80\nheight: 60\ndark_chance: 0\nroom_size: {min: 4, max: 6}\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := Defaults()
	if got.Width != 80 || got.Height != 60 {
		t.Fatalf("size=%dx%d", got.Width, got.Height)
	}
	if got.DarkChance != 0 {
		t.Fatalf("explicit zero dark_chance overwritten: %v", got.DarkChance)
	}
	if got.RoomSize != (Range{Min: 4, Max: 6}) {
		t.Fatalf("room_size=%+v", got.RoomSize)
	}
	if got.BlockSize != d.BlockSize || got.TickRateHz != d.TickRateHz || got.PopulationPercentage != d.PopulationPercentage {
		t.Fatalf("defaults not kept: %+v", got)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("number_exits: {min: 5, max: 2}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if err := os.WriteFile(path, []byte("width: [1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected yaml error")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestDefaults_MatchGenerator(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	g := d.GenConfig()
	if g.BlockSize.Max != 40 || g.BuildingSize.Min != 10 || g.RoomSize.Min != 3 || g.NumberExits.Max != 10 {
		t.Fatalf("gen config=%+v", g)
	}
}

func TestWatch_DeliversUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("width: 50\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := Watch(path)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("width: 70\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case got := <-w.Updates:
		if got.Width != 70 {
			t.Fatalf("width=%d want 70", got.Width)
		}
	case err := <-w.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("no update")
	}
}
