package gen

import (
	"errors"
	"fmt"
)

// Range is an inclusive integer interval.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Config holds the static generation parameters of one run.
type Config struct {
	// PopulationPercentage is the fraction of the city area seeded with humans.
	PopulationPercentage float64 `json:"population_percentage"`

	// BlockSize.Max is the size below which a city area or a building
	// interior stops splitting.
	BlockSize Range `json:"block_size"`
	// BuildingSize.Min is the smallest area that still gets a building.
	BuildingSize Range `json:"building_size"`
	// RoomSize.Min is the smallest area that still gets a room.
	RoomSize    Range `json:"room_size"`
	NumberExits Range `json:"number_exits"`

	// DarkChance is the probability a building or room has no power.
	DarkChance float64 `json:"dark_chance"`
	// MaxDepth bounds subdivision recursion; <= 0 means unbounded.
	MaxDepth int `json:"max_depth,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		PopulationPercentage: 0.05,
		BlockSize:            Range{Min: 15, Max: 40},
		BuildingSize:         Range{Min: 10, Max: 25},
		RoomSize:             Range{Min: 3, Max: 5},
		NumberExits:          Range{Min: 2, Max: 10},
		DarkChance:           0.3,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.PopulationPercentage < 0 || c.PopulationPercentage > 1 {
		errs = append(errs, fmt.Errorf("population_percentage %v outside [0,1]", c.PopulationPercentage))
	}
	if c.DarkChance < 0 || c.DarkChance > 1 {
		errs = append(errs, fmt.Errorf("dark_chance %v outside [0,1]", c.DarkChance))
	}
	for _, r := range []struct {
		name string
		v    Range
	}{
		{"block_size", c.BlockSize},
		{"building_size", c.BuildingSize},
		{"room_size", c.RoomSize},
		{"number_exits", c.NumberExits},
	} {
		if r.v.Min < 0 || r.v.Max < r.v.Min {
			errs = append(errs, fmt.Errorf("%s: bad range [%d,%d]", r.name, r.v.Min, r.v.Max))
		}
	}
	// Splitting needs at least one cell strictly inside the area.
	if c.BlockSize.Max < 2 {
		errs = append(errs, errors.New("block_size.max must be >= 2"))
	}
	return errors.Join(errs...)
}
