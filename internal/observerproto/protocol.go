package observerproto

// Version is the observer protocol version.
const Version = "1.0"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// MaxDepth limits the component levels streamed: 0 = all, 1 = city only,
	// 2 = city and buildings.
	MaxDepth int `json:"max_depth,omitempty"`
	// OmitAgents drops agent marks from frames (census is still sent).
	OmitAgents bool `json:"omit_agents,omitempty"`
}

// Client -> Server. Drives the scheduler.
type ControlMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Op              string `json:"op"` // START|PAUSE|STEP|RESET
	MapSeed         string `json:"map_seed,omitempty"`
}

const (
	OpStart = "START"
	OpPause = "PAUSE"
	OpStep  = "STEP"
	OpReset = "RESET"
)

// Server -> Client. Reply to a CONTROL message.
type ControlAckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Op              string `json:"op"`
	OK              bool   `json:"ok"`
	Tick            uint64 `json:"tick"`
	Error           string `json:"error,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string            `json:"protocol_version"`
	WorldID         string            `json:"world_id"`
	RunID           string            `json:"run_id"`
	Tick            uint64            `json:"tick"`
	Running         bool              `json:"running"`
	WorldParams     WorldParams       `json:"world_params"`
	Palette         map[string]string `json:"palette"`
	StateColors     map[string]string `json:"state_colors"`
}

type WorldParams struct {
	TickRateHz    int    `json:"tick_rate_hz"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	MapSeed       string `json:"map_seed,omitempty"`
	Seed          int64  `json:"seed"`
	Deterministic bool   `json:"deterministic"`
}

// Server -> Client. Sent every tick, and once on subscribe.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Tick            uint64 `json:"tick"`
	Running         bool   `json:"running"`

	Components []Component `json:"components"`
	Census     Census      `json:"census"`
	Stats      TickStats   `json:"stats"`
}

// Component is one draw request: parents precede children.
type Component struct {
	Kind    string      `json:"kind"`
	Depth   int         `json:"depth"`
	Box     [4]int      `json:"box"` // min_x, min_y, max_x, max_y
	Fill    string      `json:"fill"`
	Wall    string      `json:"wall"`
	Opacity float64     `json:"opacity"`
	Exits   [][2]int    `json:"exits"`
	Agents  []AgentMark `json:"agents,omitempty"`
}

type AgentMark struct {
	ID    string `json:"id"`
	Pos   [2]int `json:"pos"`
	State string `json:"state"`
	Color string `json:"color"`
}

type Census struct {
	Normal   int `json:"normal"`
	Panicked int `json:"panicked"`
	Sick     int `json:"sick"`
	Zombie   int `json:"zombie"`
}

type TickStats struct {
	Bites     int `json:"bites"`
	Turned    int `json:"turned"`
	Panics    int `json:"panics"`
	Calmed    int `json:"calmed"`
	Transfers int `json:"transfers"`
	Bounces   int `json:"bounces"`
}
