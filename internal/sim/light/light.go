// Package light describes how well agents can see inside a region and how
// dark the region renders.
package light

// Policy is plain data: only two presets exist.
type Policy struct {
	VisionDistance int     `json:"vision_distance"`
	Opacity        float64 `json:"opacity"`
}

var (
	Normal = Policy{VisionDistance: 10, Opacity: 0}
	// Dark models a building or room without power.
	Dark = Policy{VisionDistance: 1, Opacity: 0.3}
)

// IsDark reports whether p is the dark preset.
func (p Policy) IsDark() bool { return p == Dark }
