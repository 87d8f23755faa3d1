package city

import (
	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/geom"
)

// Stats counts what happened during one tick across the hierarchy.
type Stats struct {
	Bites     int `json:"bites"`
	Turned    int `json:"turned"`
	Panics    int `json:"panics"`
	Calmed    int `json:"calmed"`
	Transfers int `json:"transfers"`
	Bounces   int `json:"bounces"`
}

func (s *Stats) noteTransition(from, to agent.Kind) {
	switch {
	case from == agent.Normal && to == agent.Panicked:
		s.Panics++
	case from == agent.Panicked && to == agent.Normal:
		s.Calmed++
	case from == agent.Sick && to == agent.Zombie:
		s.Turned++
	}
}

// Tick carries the per-tick context down the hierarchy.
type Tick struct {
	Rand  agent.Rand
	Stats Stats

	// moved holds agents that already crossed into a component this tick.
	moved map[*agent.Agent]bool
}

// Step advances c by one tick: perception, movement with transfers,
// interaction, then each child in order (whole subtree before the next
// sibling). parent is nil for the root. An agent moves at most one cell per
// tick: arrivals do not move again in their new component's pass.
func (c *Component) Step(parent *Component, t *Tick) {
	if parent == nil {
		t.moved = nil
	}
	c.perceive(t)
	c.move(parent, t)
	c.interact(t)
	for _, ch := range c.Children {
		ch.Step(c, t)
	}
}

func (c *Component) perceive(t *Tick) {
	vision := c.Light.VisionDistance
	for i, a := range c.Population {
		seen := c.LookAhead(a.Loc, a.Facing, vision)
		before := a.State.Kind
		c.Population[i] = a.See(seen, t.Rand)
		t.Stats.noteTransition(before, c.Population[i].State.Kind)
	}
}

type transfer struct {
	a    *agent.Agent
	dest *Component
	at   geom.Point
}

// move runs in two phases: decide every agent's outcome against the current
// population, then remove leavers and hand them to their destinations.
func (c *Component) move(parent *Component, t *Tick) {
	var (
		out     []transfer
		leaving map[*agent.Agent]bool
		claimed map[geom.Point]bool
	)
	for _, a := range c.Population {
		if t.moved[a] {
			continue
		}
		next := a.Ahead()
		var dest *Component
		switch {
		case !c.Contains(next):
			if parent == nil {
				// The root is closed: nothing walks off the map.
				a.Move(false, t.Rand)
				t.Stats.Bounces++
				continue
			}
			dest = parent
		default:
			dest = c.ChildAt(next)
		}
		if dest == nil {
			blocked := c.isBlocked(next)
			if blocked {
				t.Stats.Bounces++
			}
			a.Move(!blocked, t.Rand)
			continue
		}

		owner := dest.Deepest(next)
		if owner.isBlocked(next) || claimed[next] {
			a.Move(false, t.Rand)
			t.Stats.Bounces++
			continue
		}
		// Crossings roll like any move; a failed roll leaves the agent as is.
		if !a.Roll(t.Rand) {
			continue
		}
		if leaving == nil {
			leaving = map[*agent.Agent]bool{}
			claimed = map[geom.Point]bool{}
		}
		leaving[a] = true
		claimed[next] = true
		out = append(out, transfer{a: a, dest: dest, at: next})
	}
	if len(out) == 0 {
		return
	}

	kept := make([]*agent.Agent, 0, len(c.Population)-len(out))
	for _, a := range c.Population {
		if !leaving[a] {
			kept = append(kept, a)
		}
	}
	c.Population = kept
	if t.moved == nil {
		t.moved = map[*agent.Agent]bool{}
	}
	for _, tr := range out {
		t.moved[tr.a] = true
		tr.dest.AddAgent(tr.a, tr.at)
		t.Stats.Transfers++
	}
}

func (c *Component) interact(t *Tick) {
	for _, a := range c.Population {
		i := c.indexAt(a.Ahead())
		if i < 0 {
			continue
		}
		target := c.Population[i]
		wasHuman := target.Uninfected()
		c.Population[i] = a.InteractWith(target)
		if wasHuman && c.Population[i].Is(agent.Sick) {
			t.Stats.Bites++
		}
	}
}
