package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"outbreak.sim/internal/sim/gen"
)

type Tuning struct {
	Width      int `yaml:"width" json:"width"`
	Height     int `yaml:"height" json:"height"`
	TickRateHz int `yaml:"tick_rate_hz" json:"tick_rate_hz"`

	PopulationPercentage float64 `yaml:"population_percentage" json:"population_percentage"`

	BlockSize    Range `yaml:"block_size" json:"block_size"`
	BuildingSize Range `yaml:"building_size" json:"building_size"`
	RoomSize     Range `yaml:"room_size" json:"room_size"`
	NumberExits  Range `yaml:"number_exits" json:"number_exits"`

	DarkChance float64 `yaml:"dark_chance" json:"dark_chance"`
	MaxDepth   int     `yaml:"max_depth" json:"max_depth,omitempty"`
}

type Range struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

func Defaults() Tuning {
	g := gen.DefaultConfig()
	return Tuning{
		Width:                160,
		Height:               120,
		TickRateHz:           10,
		PopulationPercentage: g.PopulationPercentage,
		BlockSize:            Range(g.BlockSize),
		BuildingSize:         Range(g.BuildingSize),
		RoomSize:             Range(g.RoomSize),
		NumberExits:          Range(g.NumberExits),
		DarkChance:           g.DarkChance,
		MaxDepth:             g.MaxDepth,
	}
}

// Load reads a tuning file. Keys absent from the file keep their default
// values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize replaces zero sizes and rates with defaults.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.Width <= 0 {
		t.Width = d.Width
	}
	if t.Height <= 0 {
		t.Height = d.Height
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	for _, p := range []struct{ v, d *Range }{
		{&t.BlockSize, &d.BlockSize},
		{&t.BuildingSize, &d.BuildingSize},
		{&t.RoomSize, &d.RoomSize},
		{&t.NumberExits, &d.NumberExits},
	} {
		if *p.v == (Range{}) {
			*p.v = *p.d
		}
	}
}

func (t Tuning) Validate() error {
	var errs []error
	if t.Width < 2 || t.Height < 2 {
		errs = append(errs, fmt.Errorf("city %dx%d too small", t.Width, t.Height))
	}
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz %d outside (0,1000]", t.TickRateHz))
	}
	if err := t.GenConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (t Tuning) GenConfig() gen.Config {
	return gen.Config{
		PopulationPercentage: t.PopulationPercentage,
		BlockSize:            gen.Range(t.BlockSize),
		BuildingSize:         gen.Range(t.BuildingSize),
		RoomSize:             gen.Range(t.RoomSize),
		NumberExits:          gen.Range(t.NumberExits),
		DarkChance:           t.DarkChance,
		MaxDepth:             t.MaxDepth,
	}
}
