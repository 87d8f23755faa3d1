// Package render is the contract between the simulation and whatever draws
// it. Components describe themselves as draw requests; surfaces decide what
// to do with them. No simulation decision is made here.
package render

import "outbreak.sim/internal/sim/geom"

// Palette maps component kinds (and "wall") to colors.
type Palette map[string]string

// DefaultPalette is the street-map palette used by the reference renderer.
func DefaultPalette() Palette {
	return Palette{
		"city":     "#ede5c9",
		"building": "#d9ccbf",
		"room":     "#dee0c1",
		"wall":     "#c8c2ac",
	}
}

// AgentMark is one agent as the renderer sees it.
type AgentMark struct {
	ID    string     `json:"id"`
	Loc   geom.Point `json:"loc"`
	State string     `json:"state"`
	Color string     `json:"color"`
}

// DrawRequest is emitted once per component, parents before children.
type DrawRequest struct {
	Kind    string       `json:"kind"`
	Depth   int          `json:"depth"`
	Box     geom.Box     `json:"box"`
	Palette Palette      `json:"-"`
	Opacity float64      `json:"opacity"`
	Exits   []geom.Point `json:"exits"`
	Agents  []AgentMark  `json:"agents"`
}

// Surface receives draw requests.
type Surface interface {
	Draw(req DrawRequest)
}

// Frame collects draw requests in emission order.
type Frame struct {
	Requests []DrawRequest
}

func (f *Frame) Draw(req DrawRequest) { f.Requests = append(f.Requests, req) }

// AgentCount is the number of agent marks across all requests.
func (f *Frame) AgentCount() int {
	n := 0
	for _, r := range f.Requests {
		n += len(r.Agents)
	}
	return n
}
