package world

import "outbreak.sim/internal/sim/gen"

type WorldConfig struct {
	ID         string
	TickRateHz int

	// Width and Height are the city size in cells.
	Width  int
	Height int

	// MapSeed seeds the first run. Empty means time-derived.
	MapSeed string

	// Generation parameters, fixed for the lifetime of a run.
	Gen gen.Config
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "city_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 10
	}
	if c.Width <= 0 {
		c.Width = 160
	}
	if c.Height <= 0 {
		c.Height = 120
	}
	if c.Gen == (gen.Config{}) {
		c.Gen = gen.DefaultConfig()
	}
}
