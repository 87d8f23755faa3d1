package world

import (
	"encoding/json"

	"outbreak.sim/internal/observerproto"
	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/render"
)

type observerClient struct {
	id       string
	frameOut chan []byte
	cfg      observerCfg
}

type observerCfg struct {
	maxDepth   int
	omitAgents bool
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.FrameOut == nil {
		return
	}
	c := &observerClient{
		id:       req.SessionID,
		frameOut: req.FrameOut,
		cfg:      observerCfg{maxDepth: req.MaxDepth, omitAgents: req.OmitAgents},
	}
	w.observers[c.id] = c
	// New sessions see the current state without waiting for a tick.
	if b, err := json.Marshal(w.buildFrame(w.renderFrame(), c.cfg)); err == nil {
		sendLatest(c.frameOut, b)
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.cfg = observerCfg{maxDepth: req.MaxDepth, omitAgents: req.OmitAgents}
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

func (w *World) renderFrame() *render.Frame {
	f := &render.Frame{}
	w.root.Render(f, render.DefaultPalette())
	return f
}

// broadcastFrame renders the city once and sends each observer its view.
// Slow observers lose older frames, never the newest.
func (w *World) broadcastFrame() {
	if len(w.observers) == 0 {
		return
	}
	f := w.renderFrame()
	cache := map[observerCfg][]byte{}
	for _, c := range w.observers {
		b, ok := cache[c.cfg]
		if !ok {
			var err error
			b, err = json.Marshal(w.buildFrame(f, c.cfg))
			if err != nil {
				continue
			}
			cache[c.cfg] = b
		}
		sendLatest(c.frameOut, b)
	}
}

// Frame returns the FRAME message for the current state with every level and
// agent included. Only for use from the goroutine that drives the world.
func (w *World) Frame() observerproto.FrameMsg {
	return w.buildFrame(w.renderFrame(), observerCfg{})
}

func (w *World) buildFrame(f *render.Frame, cfg observerCfg) observerproto.FrameMsg {
	census := w.root.Census()
	msg := observerproto.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: observerproto.Version,
		RunID:           w.runID,
		Tick:            w.tick.Load(),
		Running:         w.running.Load(),
		Components:      make([]observerproto.Component, 0, len(f.Requests)),
		Census: observerproto.Census{
			Normal:   census.Normal,
			Panicked: census.Panicked,
			Sick:     census.Sick,
			Zombie:   census.Zombie,
		},
		Stats: observerproto.TickStats(w.lastStats),
	}
	for _, req := range f.Requests {
		if cfg.maxDepth > 0 && req.Depth >= cfg.maxDepth {
			// Requests arrive parents first, so the last kept component is
			// the visible ancestor; its mark list absorbs the hidden agents.
			if !cfg.omitAgents && len(msg.Components) > 0 {
				last := &msg.Components[len(msg.Components)-1]
				last.Agents = appendMarks(last.Agents, req.Agents)
			}
			continue
		}
		comp := observerproto.Component{
			Kind:    req.Kind,
			Depth:   req.Depth,
			Box:     [4]int{req.Box.Min.X, req.Box.Min.Y, req.Box.Max.X, req.Box.Max.Y},
			Fill:    req.Palette[req.Kind],
			Wall:    req.Palette["wall"],
			Opacity: req.Opacity,
			Exits:   make([][2]int, 0, len(req.Exits)),
		}
		for _, e := range req.Exits {
			comp.Exits = append(comp.Exits, [2]int{e.X, e.Y})
		}
		if !cfg.omitAgents {
			comp.Agents = appendMarks(comp.Agents, req.Agents)
		}
		msg.Components = append(msg.Components, comp)
	}
	return msg
}

func appendMarks(dst []observerproto.AgentMark, marks []render.AgentMark) []observerproto.AgentMark {
	for _, a := range marks {
		dst = append(dst, observerproto.AgentMark{
			ID:    a.ID,
			Pos:   [2]int{a.Loc.X, a.Loc.Y},
			State: a.State,
			Color: a.Color,
		})
	}
	return dst
}

// StateColors maps agent state names to their render colors.
func StateColors() map[string]string {
	out := make(map[string]string, len(agent.Kinds))
	for _, k := range agent.Kinds {
		out[k.String()] = agent.State{Kind: k}.Color()
	}
	return out
}
