// Package gen builds a city: recursive area subdivision into buildings and
// rooms, exits on their perimeters, and the initial population.
package gen

import (
	"fmt"
	"math"

	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/city"
	"outbreak.sim/internal/sim/geom"
	"outbreak.sim/internal/sim/light"
)

// level describes one tier of subdivision: areas split while either side is
// at least splitAt, and leaves wider and taller than minLeaf become a
// component of kind leaf.
type level struct {
	leaf    city.Kind
	splitAt int
	minLeaf int
}

// Generator draws every random choice from a single source in a fixed order,
// so one seed reproduces one city.
type Generator struct {
	cfg    Config
	r      agent.Rand
	nextID int
}

func New(cfg Config, r agent.Rand) *Generator {
	return &Generator{cfg: cfg, r: r}
}

// BuildCity generates and populates a city filling bounds.
func BuildCity(bounds geom.Box, cfg Config, r agent.Rand) (*city.Component, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gen config: %w", err)
	}
	return New(cfg, r).City(bounds)
}

func (g *Generator) cityLevel() level {
	return level{leaf: city.Building, splitAt: g.cfg.BlockSize.Max, minLeaf: g.cfg.BuildingSize.Min}
}

func (g *Generator) buildingLevel() level {
	return level{leaf: city.Room, splitAt: g.cfg.BlockSize.Max, minLeaf: g.cfg.RoomSize.Min}
}

func (g *Generator) depth() int {
	if g.cfg.MaxDepth <= 0 {
		return -1
	}
	return g.cfg.MaxDepth
}

// City returns the populated root component.
func (g *Generator) City(bounds geom.Box) (*city.Component, error) {
	root := city.New(city.City, bounds, light.Normal)
	buildings, err := g.Subdivide(bounds.Interior(), g.cityLevel(), g.depth())
	if err != nil {
		return nil, err
	}
	for _, b := range buildings {
		if err := root.AddChild(b); err != nil {
			return nil, fmt.Errorf("place building %v: %w", b.Box, err)
		}
	}
	g.Populate(root)
	return root, nil
}

// Subdivide splits area recursively and returns the leaf components in
// left-to-right (or top-to-bottom) order. iter bounds the recursion depth;
// a negative value means unbounded.
func (g *Generator) Subdivide(area geom.Box, lv level, iter int) ([]*city.Component, error) {
	if iter == 0 {
		return nil, nil
	}
	w, h := area.Width(), area.Height()
	atW, atH := w < lv.splitAt, h < lv.splitAt
	if atW && atH {
		leaf, err := g.leaf(area, lv)
		if err != nil || leaf == nil {
			return nil, err
		}
		return []*city.Component{leaf}, nil
	}

	splitX := g.r.Intn(2) == 1
	switch {
	case atH:
		splitX = true
	case atW:
		splitX = false
	}
	// The split line stays off the area's own edges so neither half is empty.
	var a, b geom.Box
	if splitX {
		div := g.between(area.Min.X+1, area.Max.X-1)
		a = geom.Bx(area.Min.X, area.Min.Y, div, area.Max.Y)
		b = geom.Bx(div, area.Min.Y, area.Max.X, area.Max.Y)
	} else {
		div := g.between(area.Min.Y+1, area.Max.Y-1)
		a = geom.Bx(area.Min.X, area.Min.Y, area.Max.X, div)
		b = geom.Bx(area.Min.X, div, area.Max.X, area.Max.Y)
	}

	left, err := g.Subdivide(a, lv, iter-1)
	if err != nil {
		return nil, err
	}
	right, err := g.Subdivide(b, lv, iter-1)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// leaf shrinks area by one or two cells per side and makes a component of it.
// It returns nil when the area is too small or nothing walkable would remain.
func (g *Generator) leaf(area geom.Box, lv level) (*city.Component, error) {
	if area.Width() <= lv.minLeaf || area.Height() <= lv.minLeaf {
		return nil, nil
	}
	lp := light.Normal
	if g.r.Float64() < g.cfg.DarkChance {
		lp = light.Dark
	}
	box := geom.Bx(
		area.Min.X+g.between(1, 2),
		area.Min.Y+g.between(1, 2),
		area.Max.X-g.between(1, 2),
		area.Max.Y-g.between(1, 2),
	)
	if box.Width() < 2 || box.Height() < 2 {
		return nil, nil
	}

	c := city.New(lv.leaf, box, lp)
	for _, e := range g.Exits(box) {
		if err := c.AddExit(e); err != nil {
			return nil, err
		}
	}
	if lv.leaf == city.Building {
		rooms, err := g.Subdivide(box.Interior(), g.buildingLevel(), g.depth())
		if err != nil {
			return nil, err
		}
		for _, r := range rooms {
			if err := c.AddChild(r); err != nil {
				return nil, fmt.Errorf("place room %v in %v: %w", r.Box, box, err)
			}
		}
	}
	return c, nil
}

// Exits picks distinct perimeter cells of box, never a corner.
//
// Perimeter offsets run clockwise from the top-left corner: the top edge,
// then the right edge, then the bottom edge right to left, then the left edge
// bottom to top. Offsets 1..perimeter-4 map one-to-one onto the non-corner
// wall cells.
func (g *Generator) Exits(box geom.Box) []geom.Point {
	w, h := box.Width(), box.Height()
	candidates := 2*w + 2*h - 4
	if w < 2 || h < 2 || candidates <= 0 {
		return nil
	}
	n := g.between(g.cfg.NumberExits.Min, g.cfg.NumberExits.Max)
	out := make([]geom.Point, 0, n)
	for _, i := range g.sample(candidates, n) {
		out = append(out, perimeterCell(box, i+1))
	}
	return out
}

func perimeterCell(box geom.Box, spot int) geom.Point {
	w, h := box.Width(), box.Height()
	if spot < w {
		return geom.Pt(box.Min.X+spot, box.Min.Y)
	}
	spot = spot - w + 1
	if spot < h {
		return geom.Pt(box.Max.X, box.Min.Y+spot)
	}
	spot = spot - h + 1
	if spot < w {
		return geom.Pt(box.Max.X-spot, box.Max.Y)
	}
	spot = spot - w + 1
	return geom.Pt(box.Min.X, box.Max.Y-spot)
}

// Populate places floor(pct*w*h)+1 agents on distinct walkable cells of the
// whole city; the last one placed is the zombie. When fewer walkable cells
// exist, every one of them is used.
func (g *Generator) Populate(root *city.Component) {
	var free []geom.Point
	for x := root.Box.Min.X; x <= root.Box.Max.X; x++ {
		for y := root.Box.Min.Y; y <= root.Box.Max.Y; y++ {
			p := geom.Pt(x, y)
			if !wallInChain(root, p) {
				free = append(free, p)
			}
		}
	}
	area := root.Box.Width() * root.Box.Height()
	want := int(math.Floor(g.cfg.PopulationPercentage*float64(area))) + 1

	picked := g.sample(len(free), want)
	for i, idx := range picked {
		g.nextID++
		id := fmt.Sprintf("A%d", g.nextID)
		var a *agent.Agent
		if i == len(picked)-1 {
			a = agent.NewZombie(id, free[idx])
		} else {
			a = agent.New(id, free[idx])
		}
		root.AddAgent(a, free[idx])
	}
}

// wallInChain reports whether p is a wall of any component on the path from
// root to the deepest component containing it.
func wallInChain(root *city.Component, p geom.Point) bool {
	for c := root; c != nil; c = c.ChildAt(p) {
		if c.HasWallAt(p) {
			return true
		}
	}
	return false
}

// between draws uniformly from the inclusive interval [lo, hi].
func (g *Generator) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.r.Intn(hi-lo+1)
}

// sample returns up to k distinct indexes from [0, n) in draw order.
func (g *Generator) sample(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + g.r.Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
