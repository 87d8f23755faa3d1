package geom

// Box is an inclusive axis-aligned rectangle of cells.
type Box struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

func Bx(minX, minY, maxX, maxY int) Box {
	return Box{Min: Point{X: minX, Y: minY}, Max: Point{X: maxX, Y: maxY}}
}

// Width and Height are measured edge to edge (Max-Min), matching how the
// generator sizes areas; the box spans Width()+1 cells.
func (b Box) Width() int  { return b.Max.X - b.Min.X }
func (b Box) Height() int { return b.Max.Y - b.Min.Y }

// Contains is inclusive on all four edges.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// OnBoundary reports whether p lies on the outer ring of the box.
func (b Box) OnBoundary(p Point) bool {
	if !b.Contains(p) {
		return false
	}
	return p.X == b.Min.X || p.X == b.Max.X || p.Y == b.Min.Y || p.Y == b.Max.Y
}

// Interior is the box shrunk by one cell on every side.
func (b Box) Interior() Box {
	return Box{Min: b.Min.Add(Point{X: 1, Y: 1}), Max: b.Max.Sub(Point{X: 1, Y: 1})}
}

// ContainsBox reports whether o lies entirely inside b (edges inclusive).
func (b Box) ContainsBox(o Box) bool {
	return b.Contains(o.Min) && b.Contains(o.Max)
}

// Overlaps reports whether the two boxes share at least one cell.
func (b Box) Overlaps(o Box) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X && b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}
