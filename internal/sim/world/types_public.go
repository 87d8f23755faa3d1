package world

import (
	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/city"
	"outbreak.sim/internal/sim/gen"
)

// RunInfo describes the current run. Readable from any goroutine.
type RunInfo struct {
	WorldID       string `json:"world_id"`
	RunID         string `json:"run_id"`
	MapSeed       string `json:"map_seed,omitempty"`
	Seed          int64  `json:"seed"`
	Deterministic bool   `json:"deterministic"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	TickRateHz    int    `json:"tick_rate_hz"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type RunLogger interface {
	WriteRun(entry RunEntry) error
}

// TickLogEntry records the outcome of one tick. Tick is the index of the
// tick just executed (the first is 0); Digest is the state after it.
type TickLogEntry struct {
	RunID  string       `json:"run_id"`
	Tick   uint64       `json:"tick"`
	Census agent.Census `json:"census"`
	Stats  city.Stats   `json:"stats"`
	Digest string       `json:"digest"`
}

// RunEntry is everything needed to regenerate a run.
type RunEntry struct {
	RunID         string     `json:"run_id"`
	WorldID       string     `json:"world_id"`
	StartedUnixMS int64      `json:"started_unix_ms"`
	MapSeed       string     `json:"map_seed,omitempty"`
	Seed          int64      `json:"seed"`
	Deterministic bool       `json:"deterministic"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	Gen           gen.Config `json:"gen"`
	Digest        string     `json:"digest"`
}

// ObserverJoinRequest registers a read-only observer session that receives
// one FRAME per tick on FrameOut.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	FrameOut  chan []byte

	MaxDepth   int
	OmitAgents bool
}

// ObserverSubscribeRequest updates an existing observer session.
type ObserverSubscribeRequest struct {
	SessionID string

	MaxDepth   int
	OmitAgents bool
}
