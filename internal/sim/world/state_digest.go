package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"outbreak.sim/internal/sim/city"
	"outbreak.sim/internal/sim/geom"
)

// Digest returns the state digest labelled with the number of ticks executed
// so far. Right after a reset it equals the digest recorded in the run log.
func (w *World) Digest() string {
	return w.stateDigest(w.tick.Load())
}

// stateDigest hashes the tick label, the city geometry and every population
// in hierarchy order. Two runs from the same seed and config agree on every
// digest.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, int64(w.cfg.Width))
	digestWriteI64(h, &tmp, int64(w.cfg.Height))
	w.root.Walk(func(c *city.Component, depth int) {
		h.Write([]byte{byte(c.Kind), byte(depth)})
		digestWriteBox(h, &tmp, c.Box)
		digestWriteU64(h, &tmp, uint64(c.Light.VisionDistance))
		digestWriteU64(h, &tmp, uint64(len(c.Exits)))
		for _, e := range c.Exits {
			digestWritePoint(h, &tmp, e)
		}
		digestWriteU64(h, &tmp, uint64(len(c.Population)))
		for _, a := range c.Population {
			h.Write([]byte(a.ID))
			h.Write([]byte{0, byte(a.State.Kind)})
			digestWritePoint(h, &tmp, a.Loc)
			digestWritePoint(h, &tmp, a.Facing)
			digestWriteI64(h, &tmp, int64(a.State.Fear))
			digestWriteI64(h, &tmp, int64(a.State.Sickness))
			digestWriteI64(h, &tmp, int64(a.State.Pursuit))
		}
	})

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWritePoint(h hashWriter, tmp *[8]byte, p geom.Point) {
	digestWriteI64(h, tmp, int64(p.X))
	digestWriteI64(h, tmp, int64(p.Y))
}

func digestWriteBox(h hashWriter, tmp *[8]byte, b geom.Box) {
	digestWritePoint(h, tmp, b.Min)
	digestWritePoint(h, tmp, b.Max)
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
