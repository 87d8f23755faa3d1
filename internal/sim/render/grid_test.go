package render

import (
	"strings"
	"testing"

	"outbreak.sim/internal/sim/geom"
)

func TestGrid_PaintsInOrder(t *testing.T) {
	g := NewGrid(geom.Bx(0, 0, 6, 4))
	var s Surface = g
	s.Draw(DrawRequest{Kind: "city", Box: geom.Bx(0, 0, 6, 4)})
	s.Draw(DrawRequest{
		Kind:    "building",
		Box:     geom.Bx(2, 1, 5, 3),
		Opacity: 0.3,
		Exits:   []geom.Point{geom.Pt(2, 2)},
		Agents: []AgentMark{
			{ID: "A1", Loc: geom.Pt(3, 2), State: "zombie"},
			{ID: "A2", Loc: geom.Pt(4, 2), State: "sick"},
		},
	})

	checks := []struct {
		p    geom.Point
		want byte
	}{
		{geom.Pt(0, 0), GlyphWall},
		{geom.Pt(1, 1), GlyphFloor},
		{geom.Pt(2, 1), GlyphWall},
		{geom.Pt(2, 2), GlyphExit},
		{geom.Pt(3, 2), GlyphZombie},
		{geom.Pt(4, 2), GlyphSick},
		{geom.Pt(1, 2), GlyphFloor},
		{geom.Pt(5, 3), GlyphWall},
		{geom.Pt(9, 9), GlyphOutside},
	}
	for _, c := range checks {
		if got := g.At(c.p); got != c.want {
			t.Fatalf("At(%v)=%q want %q\n%s", c.p, got, c.want, g)
		}
	}
	lines := strings.Split(strings.TrimRight(g.String(), "\n"), "\n")
	if len(lines) != 5 || len(lines[0]) != 7 {
		t.Fatalf("grid shape: %d lines\n%s", len(lines), g)
	}
}

func TestFrame_CollectsRequests(t *testing.T) {
	var f Frame
	f.Draw(DrawRequest{Kind: "city", Agents: []AgentMark{{ID: "A1"}}})
	f.Draw(DrawRequest{Kind: "room", Agents: []AgentMark{{ID: "A2"}, {ID: "A3"}}})
	if len(f.Requests) != 2 || f.Requests[1].Kind != "room" {
		t.Fatalf("requests: %+v", f.Requests)
	}
	if f.AgentCount() != 3 {
		t.Fatalf("agent count: %d", f.AgentCount())
	}
}
