package city

import (
	"outbreak.sim/internal/sim/geom"
	"outbreak.sim/internal/sim/render"
)

// Render emits one draw request per component, parents before children, so
// a painter-style surface ends up with rooms drawn over buildings over the
// city.
func (c *Component) Render(s render.Surface, pal render.Palette) {
	c.Walk(func(n *Component, depth int) {
		req := render.DrawRequest{
			Kind:    n.Kind.String(),
			Depth:   depth,
			Box:     n.Box,
			Palette: pal,
			Opacity: n.Light.Opacity,
			Exits:   make([]geom.Point, len(n.Exits)),
			Agents:  make([]render.AgentMark, 0, len(n.Population)),
		}
		copy(req.Exits, n.Exits)
		for _, a := range n.Population {
			req.Agents = append(req.Agents, render.AgentMark{
				ID:    a.ID,
				Loc:   a.Loc,
				State: a.State.Kind.String(),
				Color: a.Color(),
			})
		}
		s.Draw(req)
	})
}
