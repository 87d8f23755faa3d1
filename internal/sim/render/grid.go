package render

import (
	"strings"

	"outbreak.sim/internal/sim/geom"
)

// Glyphs used by Grid.
const (
	GlyphFloor    = '.'
	GlyphDark     = ','
	GlyphWall     = '#'
	GlyphExit     = '+'
	GlyphNormal   = 'h'
	GlyphPanicked = 'p'
	GlyphSick     = 's'
	GlyphZombie   = 'Z'
	GlyphOutside  = ' '
)

// Grid renders draw requests onto a character map, later requests painting
// over earlier ones the same way a canvas would.
type Grid struct {
	bounds geom.Box
	cells  [][]byte
}

// NewGrid allocates a grid covering bounds.
func NewGrid(bounds geom.Box) *Grid {
	g := &Grid{bounds: bounds}
	g.cells = make([][]byte, bounds.Height()+1)
	for y := range g.cells {
		row := make([]byte, bounds.Width()+1)
		for x := range row {
			row[x] = GlyphOutside
		}
		g.cells[y] = row
	}
	return g
}

func (g *Grid) set(p geom.Point, c byte) {
	if !g.bounds.Contains(p) {
		return
	}
	g.cells[p.Y-g.bounds.Min.Y][p.X-g.bounds.Min.X] = c
}

// At returns the glyph at p (GlyphOutside when out of range).
func (g *Grid) At(p geom.Point) byte {
	if !g.bounds.Contains(p) {
		return GlyphOutside
	}
	return g.cells[p.Y-g.bounds.Min.Y][p.X-g.bounds.Min.X]
}

func (g *Grid) Draw(req DrawRequest) {
	floor := byte(GlyphFloor)
	if req.Opacity > 0 {
		floor = GlyphDark
	}
	for y := req.Box.Min.Y; y <= req.Box.Max.Y; y++ {
		for x := req.Box.Min.X; x <= req.Box.Max.X; x++ {
			p := geom.Pt(x, y)
			if req.Box.OnBoundary(p) {
				g.set(p, GlyphWall)
			} else {
				g.set(p, floor)
			}
		}
	}
	for _, e := range req.Exits {
		g.set(e, GlyphExit)
	}
	for _, a := range req.Agents {
		g.set(a.Loc, agentGlyph(a.State))
	}
}

func agentGlyph(state string) byte {
	switch state {
	case "normal":
		return GlyphNormal
	case "panicked":
		return GlyphPanicked
	case "sick":
		return GlyphSick
	case "zombie":
		return GlyphZombie
	default:
		return '?'
	}
}

func (g *Grid) String() string {
	var sb strings.Builder
	for _, row := range g.cells {
		sb.Write(row)
		sb.WriteByte('\n')
	}
	return sb.String()
}
