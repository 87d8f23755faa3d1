// Package city implements the nested spatial hierarchy (city, buildings,
// rooms) that owns the agent population and advances it tick by tick.
package city

import (
	"errors"
	"fmt"

	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/geom"
	"outbreak.sim/internal/sim/light"
)

// Kind is the closed set of component types.
type Kind uint8

const (
	City Kind = iota + 1
	Building
	Room
)

func (k Kind) String() string {
	switch k {
	case City:
		return "city"
	case Building:
		return "building"
	case Room:
		return "room"
	default:
		return fmt.Sprintf("component(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

var (
	ErrNotNested       = errors.New("child is not strictly inside parent interior")
	ErrOverlap         = errors.New("child overlaps a sibling")
	ErrExitOffBoundary = errors.New("exit is not on the component boundary")
)

// Component is a rectangular region. Its box, exits and children are fixed
// once generation finishes; only Population changes from tick to tick.
type Component struct {
	Kind       Kind
	Box        geom.Box
	Exits      []geom.Point
	Light      light.Policy
	Population []*agent.Agent
	Children   []*Component
}

func New(kind Kind, box geom.Box, lp light.Policy) *Component {
	return &Component{Kind: kind, Box: box, Light: lp}
}

// AddChild attaches ch. The child must sit inside this component's interior
// and must not overlap any existing child.
func (c *Component) AddChild(ch *Component) error {
	if !c.Box.Interior().ContainsBox(ch.Box) {
		return fmt.Errorf("%s %v in %s %v: %w", ch.Kind, ch.Box, c.Kind, c.Box, ErrNotNested)
	}
	for _, sib := range c.Children {
		if sib.Box.Overlaps(ch.Box) {
			return fmt.Errorf("%s %v and %v: %w", ch.Kind, ch.Box, sib.Box, ErrOverlap)
		}
	}
	c.Children = append(c.Children, ch)
	return nil
}

// AddExit opens a boundary cell. Duplicates are ignored.
func (c *Component) AddExit(p geom.Point) error {
	if !c.Box.OnBoundary(p) {
		return fmt.Errorf("%s exit %v: %w", c.Kind, p, ErrExitOffBoundary)
	}
	if c.HasExitAt(p) {
		return nil
	}
	c.Exits = append(c.Exits, p)
	return nil
}

// Contains is inclusive: walls are inside the component.
func (c *Component) Contains(p geom.Point) bool { return c.Box.Contains(p) }

// ChildAt returns the direct child containing p, or nil.
func (c *Component) ChildAt(p geom.Point) *Component {
	for _, ch := range c.Children {
		if ch.Contains(p) {
			return ch
		}
	}
	return nil
}

// Deepest returns the most deeply nested component containing p, starting
// from c. The caller is expected to pass a point c contains.
func (c *Component) Deepest(p geom.Point) *Component {
	cur := c
	for {
		ch := cur.ChildAt(p)
		if ch == nil {
			return cur
		}
		cur = ch
	}
}

// HasWallAt reports whether p is a closed boundary cell of c.
func (c *Component) HasWallAt(p geom.Point) bool {
	return c.Box.OnBoundary(p) && !c.HasExitAt(p)
}

func (c *Component) HasExitAt(p geom.Point) bool {
	for _, e := range c.Exits {
		if e == p {
			return true
		}
	}
	return false
}

// AgentAt returns the agent of c's own population standing on p.
func (c *Component) AgentAt(p geom.Point) *agent.Agent {
	if i := c.indexAt(p); i >= 0 {
		return c.Population[i]
	}
	return nil
}

func (c *Component) indexAt(p geom.Point) int {
	for i, a := range c.Population {
		if a.Loc == p {
			return i
		}
	}
	return -1
}

// isBlocked: a closed wall or another agent of this population.
func (c *Component) isBlocked(p geom.Point) bool {
	return c.HasWallAt(p) || c.AgentAt(p) != nil
}

// LookAhead returns the nearest agent of c's population strictly ahead of
// origin along direction, within maxDistance. Only agents sharing origin's
// row or column are candidates, for every facing including diagonals. When
// c has children, a wall of c or of any child on the cells between origin
// and the candidate hides it.
func (c *Component) LookAhead(origin, direction geom.Point, maxDistance int) *agent.Agent {
	var closest *agent.Agent
	closestDist := maxDistance + 1
	for _, a := range c.Population {
		dx := (a.Loc.X - origin.X) * direction.X
		dy := (a.Loc.Y - origin.Y) * direction.Y
		sameCol := origin.X == a.Loc.X && dy > 0 && dy < closestDist
		sameRow := origin.Y == a.Loc.Y && dx > 0 && dx < closestDist
		if sameCol || sameRow {
			closestDist = max(dx, dy)
			closest = a
		}
	}
	if closest == nil || len(c.Children) == 0 {
		return closest
	}
	for i := 1; i < closestDist; i++ {
		spot := origin.Add(direction.Mul(i))
		if c.HasWallAt(spot) {
			return nil
		}
		for _, ch := range c.Children {
			if ch.HasWallAt(spot) {
				return nil
			}
		}
	}
	return closest
}

// AddAgent hands a over to the deepest component under c containing at,
// placing it on that cell. New arrivals go to the front of the population
// so they act first on the next tick.
func (c *Component) AddAgent(a *agent.Agent, at geom.Point) {
	if ch := c.ChildAt(at); ch != nil {
		ch.AddAgent(a, at)
		return
	}
	a.Loc = at
	c.Population = append([]*agent.Agent{a}, c.Population...)
}

// Walk visits c and its descendants depth-first, parents first.
func (c *Component) Walk(fn func(c *Component, depth int)) {
	c.walk(fn, 0)
}

func (c *Component) walk(fn func(c *Component, depth int), depth int) {
	fn(c, depth)
	for _, ch := range c.Children {
		ch.walk(fn, depth+1)
	}
}

// Census counts every agent in the hierarchy rooted at c.
func (c *Component) Census() agent.Census {
	var out agent.Census
	c.Walk(func(n *Component, _ int) {
		for _, a := range n.Population {
			out.Add(a.State.Kind)
		}
	})
	return out
}

// Agents returns every agent in hierarchy order.
func (c *Component) Agents() []*agent.Agent {
	var out []*agent.Agent
	c.Walk(func(n *Component, _ int) {
		out = append(out, n.Population...)
	})
	return out
}
