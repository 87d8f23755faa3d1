// Package geom holds the integer grid primitives shared by the simulation.
package geom

import "fmt"

// Point is a cell on the city grid. Y grows downward (screen order).
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pt is a convenience constructor for Point.
func Pt(x, y int) Point { return Point{X: x, Y: y} }

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }

func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Mul scales both components by n.
func (p Point) Mul(n int) Point { return Point{X: p.X * n, Y: p.Y * n} }

// Neg reverses the vector.
func (p Point) Neg() Point { return Point{X: -p.X, Y: -p.Y} }

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Unit facing vectors.
var (
	North     = Point{X: 0, Y: -1}
	NorthEast = Point{X: 1, Y: -1}
	East      = Point{X: 1, Y: 0}
	SouthEast = Point{X: 1, Y: 1}
	South     = Point{X: 0, Y: 1}
	SouthWest = Point{X: -1, Y: 1}
	West      = Point{X: -1, Y: 0}
	NorthWest = Point{X: -1, Y: -1}
)

// Directions lists the 8 facings in clockwise order starting at North.
// Random re-facing indexes into this slice, so its order is part of the
// deterministic replay contract.
var Directions = [8]Point{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

// IsFacing reports whether p is one of the 8 unit facings.
func IsFacing(p Point) bool {
	for _, d := range Directions {
		if d == p {
			return true
		}
	}
	return false
}
