// Package agent implements the inhabitants of the city and their behavior
// state machine.
package agent

import "outbreak.sim/internal/sim/geom"

// Rand is the single random source every behavior decision draws from.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type Agent struct {
	ID     string     `json:"id"`
	Loc    geom.Point `json:"loc"`
	Facing geom.Point `json:"facing"`
	State  State      `json:"state"`
}

// New returns a Normal human facing South.
func New(id string, loc geom.Point) *Agent {
	return &Agent{ID: id, Loc: loc, Facing: geom.South, State: NormalState()}
}

// NewZombie returns a zombie facing South with no pursuit in progress.
func NewZombie(id string, loc geom.Point) *Agent {
	a := New(id, loc)
	a.State = ZombieState()
	return a
}

func (a *Agent) Is(k Kind) bool { return a != nil && a.State.Kind == k }

// Uninfected reports whether a is a human a zombie can still bite.
func (a *Agent) Uninfected() bool { return a.Is(Normal) || a.Is(Panicked) }

// Ahead is the cell the agent is facing.
func (a *Agent) Ahead() geom.Point { return a.Loc.Add(a.Facing) }

func (a *Agent) TurnOpposite() { a.Facing = a.Facing.Neg() }

func (a *Agent) turnRandom(r Rand) { a.Facing = geom.Directions[r.Intn(len(geom.Directions))] }

// Roll draws once against the state's speed and reports whether the agent
// acts on its move this tick.
func (a *Agent) Roll(r Rand) bool { return r.Float64() <= a.State.Speed() }

// Move rolls against the state's speed. On success it advances one cell when
// pathClear, or re-faces at random when blocked. The resulting location is
// returned.
func (a *Agent) Move(pathClear bool, r Rand) geom.Point {
	if !a.Roll(r) {
		return a.Loc
	}
	if pathClear {
		a.Loc = a.Loc.Add(a.Facing)
	} else {
		a.turnRandom(r)
	}
	return a.Loc
}

// See reacts to the nearest agent in view (nil when nothing is visible). The
// agent may change variant in place; a is returned for slot replacement.
func (a *Agent) See(target *Agent, r Rand) *Agent {
	switch a.State.Kind {
	case Normal:
		a.seeAsNormal(target, r)
	case Panicked:
		a.seeAsPanicked(target)
	case Sick:
		a.seeAsSick(r)
	case Zombie:
		a.seeAsZombie(target, r)
	}
	return a
}

func (a *Agent) seeAsNormal(target *Agent, r Rand) {
	if target == nil {
		return
	}
	switch {
	case target.Is(Zombie):
		a.TurnOpposite()
		a.State = PanickedState()
	case target.Is(Sick), target.Is(Panicked):
		a.State = PanickedState()
	default:
		if r.Float64() < wanderChance {
			a.turnRandom(r)
		}
	}
}

func (a *Agent) seeAsPanicked(target *Agent) {
	if a.State.Fear > 0 {
		a.State.Fear--
	}
	if target.Is(Zombie) {
		a.State.Fear = MaxFear
	}
	if a.State.Fear == 0 {
		a.State = NormalState()
	}
}

func (a *Agent) seeAsSick(r Rand) {
	if a.State.Sickness == TurnAt {
		a.State = ZombieState()
		return
	}
	if r.Float64() < wanderChance {
		a.turnRandom(r)
	}
	a.State.Sickness++
}

func (a *Agent) seeAsZombie(target *Agent, r Rand) {
	if a.State.Pursuit > 0 {
		a.State.Pursuit--
	}
	if target.Uninfected() {
		a.State.Pursuit = PursuitTicks
	} else if a.State.Pursuit == 0 && target == nil {
		a.turnRandom(r)
	}
}

// InteractWith applies a's effect to the agent it faces and returns the
// (possibly modified) target. Only zombies have an effect: they bite.
func (a *Agent) InteractWith(target *Agent) *Agent {
	if a.Is(Zombie) && target.Uninfected() {
		target.State = SickState()
	}
	return target
}

// Color is the render color of the agent's current state.
func (a *Agent) Color() string { return a.State.Color() }
