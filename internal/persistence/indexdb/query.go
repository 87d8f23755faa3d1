package indexdb

import (
	"context"

	"outbreak.sim/internal/sim/agent"
	"outbreak.sim/internal/sim/city"
)

// RunRow summarizes one indexed run.
type RunRow struct {
	RunID         string `json:"run_id"`
	WorldID       string `json:"world_id"`
	StartedUnixMS int64  `json:"started_unix_ms"`
	MapSeed       string `json:"map_seed,omitempty"`
	Seed          int64  `json:"seed"`
	Deterministic bool   `json:"deterministic"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Digest        string `json:"digest"`
	Ticks         int64  `json:"ticks"`
	PeakZombies   int    `json:"peak_zombies"`
}

// CurvePoint is the census after one tick.
type CurvePoint struct {
	Tick   uint64       `json:"tick"`
	Census agent.Census `json:"census"`
	Stats  city.Stats   `json:"stats"`
}

// Runs lists the most recent runs first.
func (s *SQLIndex) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT r.run_id, r.world_id, r.started_unix_ms, r.map_seed, r.seed, r.deterministic,
		       r.width, r.height, r.digest, COUNT(t.tick), COALESCE(MAX(t.zombie), 0)
		FROM runs r LEFT JOIN ticks t ON t.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_unix_ms DESC, r.run_id
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var det int
		if err := rows.Scan(&r.RunID, &r.WorldID, &r.StartedUnixMS, &r.MapSeed, &r.Seed, &det,
			&r.Width, &r.Height, &r.Digest, &r.Ticks, &r.PeakZombies); err != nil {
			return nil, err
		}
		r.Deterministic = det != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Curve returns the outbreak curve of a run, keeping every nth tick.
func (s *SQLIndex) Curve(ctx context.Context, runID string, every int) ([]CurvePoint, error) {
	if every <= 0 {
		every = 1
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT tick, normal, panicked, sick, zombie, bites, turned, panics, calmed, transfers, bounces
		FROM ticks WHERE run_id = ? AND tick % ? = 0
		ORDER BY tick`), runID, every)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CurvePoint
	for rows.Next() {
		var p CurvePoint
		var tick int64
		if err := rows.Scan(&tick,
			&p.Census.Normal, &p.Census.Panicked, &p.Census.Sick, &p.Census.Zombie,
			&p.Stats.Bites, &p.Stats.Turned, &p.Stats.Panics, &p.Stats.Calmed, &p.Stats.Transfers, &p.Stats.Bounces,
		); err != nil {
			return nil, err
		}
		p.Tick = uint64(tick)
		out = append(out, p)
	}
	return out, rows.Err()
}
