package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "city_1", "world id (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	runID := fs.String("run", "", "run id (curve, outbreak; defaults to latest run)")
	every := fs.Int("every", 10, "keep every nth tick (curve)")
	limit := fs.Int("limit", 20, "result limit (runs)")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "runs.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if q != "runs" && *runID == "" {
		id, err := latestRunID(db)
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest run:", err)
			os.Exit(1)
		}
		*runID = id
	}

	switch q {
	case "runs":
		err = listRuns(os.Stdout, db, *limit, time.Now())
	case "curve":
		err = printCurve(os.Stdout, db, *runID, *every)
	case "outbreak":
		err = printOutbreak(os.Stdout, db, *runID)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want runs|curve|outbreak)")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

func latestRunID(db *sql.DB) (string, error) {
	var id string
	err := db.QueryRow(`SELECT run_id FROM runs ORDER BY started_unix_ms DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no runs indexed")
	}
	return id, err
}

func listRuns(out io.Writer, db *sql.DB, limit int, now time.Time) error {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT r.run_id, r.started_unix_ms, r.map_seed, r.seed, r.width, r.height, COUNT(t.tick)
		FROM runs r LEFT JOIN ticks t ON t.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_unix_ms DESC
		LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id            string
			startedMS     int64
			mapSeed       string
			seed          int64
			width, height int
			ticks         int64
		)
		if err := rows.Scan(&id, &startedMS, &mapSeed, &seed, &width, &height, &ticks); err != nil {
			return err
		}
		if mapSeed == "" {
			mapSeed = "-"
		}
		fmt.Fprintf(out, "%s  %-14s  map_seed=%s seed=%d size=%dx%d ticks=%s\n",
			id, humanize.RelTime(time.UnixMilli(startedMS), now, "ago", "from now"),
			mapSeed, seed, width, height, humanize.Comma(ticks))
	}
	return rows.Err()
}

func printCurve(out io.Writer, db *sql.DB, runID string, every int) error {
	if every <= 0 {
		every = 1
	}
	rows, err := db.Query(`SELECT tick, normal, panicked, sick, zombie, bites FROM ticks WHERE run_id=? AND tick % ? = 0 ORDER BY tick`, runID, every)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Tick     int64 `json:"tick"`
			Normal   int   `json:"normal"`
			Panicked int   `json:"panicked"`
			Sick     int   `json:"sick"`
			Zombie   int   `json:"zombie"`
			Bites    int   `json:"bites"`
		}
		if err := rows.Scan(&r.Tick, &r.Normal, &r.Panicked, &r.Sick, &r.Zombie, &r.Bites); err != nil {
			return err
		}
		printJSON(out, r)
	}
	return rows.Err()
}

// printOutbreak summarizes how a run progressed: peak panic, the tick the
// last human turned (if any) and total bites.
func printOutbreak(out io.Writer, db *sql.DB, runID string) error {
	var r struct {
		RunID        string `json:"run_id"`
		Ticks        int64  `json:"ticks"`
		PeakPanicked int    `json:"peak_panicked"`
		PeakZombies  int    `json:"peak_zombies"`
		Bites        int64  `json:"bites"`
		OverrunTick  *int64 `json:"overrun_tick,omitempty"`
	}
	r.RunID = runID
	err := db.QueryRow(`SELECT COUNT(*), COALESCE(MAX(panicked),0), COALESCE(MAX(zombie),0), COALESCE(SUM(bites),0) FROM ticks WHERE run_id=?`, runID).
		Scan(&r.Ticks, &r.PeakPanicked, &r.PeakZombies, &r.Bites)
	if err != nil {
		return err
	}
	var overrun sql.NullInt64
	err = db.QueryRow(`SELECT MIN(tick) FROM ticks WHERE run_id=? AND normal=0 AND panicked=0 AND sick=0`, runID).Scan(&overrun)
	if err != nil {
		return err
	}
	if overrun.Valid {
		r.OverrunTick = &overrun.Int64
	}
	printJSON(out, r)
	return nil
}

func printJSON(out io.Writer, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(out, string(b))
}
