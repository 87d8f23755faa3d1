package agent

// Census counts agents by state.
type Census struct {
	Normal   int `json:"normal"`
	Panicked int `json:"panicked"`
	Sick     int `json:"sick"`
	Zombie   int `json:"zombie"`
}

func (c *Census) Add(k Kind) {
	switch k {
	case Normal:
		c.Normal++
	case Panicked:
		c.Panicked++
	case Sick:
		c.Sick++
	case Zombie:
		c.Zombie++
	}
}

func (c Census) Total() int { return c.Normal + c.Panicked + c.Sick + c.Zombie }

// Of returns the count for k.
func (c Census) Of(k Kind) int {
	switch k {
	case Normal:
		return c.Normal
	case Panicked:
		return c.Panicked
	case Sick:
		return c.Sick
	case Zombie:
		return c.Zombie
	}
	return 0
}
