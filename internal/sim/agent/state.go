package agent

import "fmt"

// Kind discriminates the four behavior variants.
type Kind uint8

const (
	Normal Kind = iota + 1
	Panicked
	Sick
	Zombie
)

// Kinds lists every variant in census order.
var Kinds = [...]Kind{Normal, Panicked, Sick, Zombie}

const (
	// MaxFear is the fear level a Panicked human starts at (and is reset to
	// whenever a zombie is seen).
	MaxFear = 10
	// TurnAt is the sickness level at which a Sick human becomes a Zombie.
	TurnAt = 25
	// PursuitTicks is how long a zombie keeps its heading after losing sight
	// of a human.
	PursuitTicks = 10

	wanderChance = 0.15
)

func (k Kind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Panicked:
		return "panicked"
	case Sick:
		return "sick"
	case Zombie:
		return "zombie"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < Normal || k > Zombie {
		return nil, fmt.Errorf("invalid agent kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown agent kind %q", s)
}

// State is the closed behavior variant. Only the counter matching Kind is
// meaningful; the others stay zero.
type State struct {
	Kind     Kind `json:"kind"`
	Fear     int  `json:"fear,omitempty"`
	Sickness int  `json:"sickness,omitempty"`
	Pursuit  int  `json:"pursuit,omitempty"`
}

func NormalState() State   { return State{Kind: Normal} }
func PanickedState() State { return State{Kind: Panicked, Fear: MaxFear} }
func SickState() State     { return State{Kind: Sick, Sickness: 1} }
func ZombieState() State   { return State{Kind: Zombie} }

// Speed is the probability of acting on a move attempt in one tick.
func (s State) Speed() float64 {
	switch s.Kind {
	case Normal:
		return 0.5
	case Panicked:
		return 1.0
	case Sick:
		return 0.4
	case Zombie:
		return 0.3
	default:
		return 0
	}
}

// Color is the state-specific render color handed to the renderer.
func (s State) Color() string {
	switch s.Kind {
	case Normal:
		return "#F9A7B0"
	case Panicked:
		return "#FFF380"
	case Sick:
		return "#FC2AEE"
	case Zombie:
		return "#00FF00"
	default:
		return "#000000"
	}
}
