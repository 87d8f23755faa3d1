package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"

	"outbreak.sim/internal/sim/world"
)

// Dialect selects placeholder style and connection setup.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// SQLIndex is a query index of runs and per-tick outbreak curves. Writes are
// queued and applied by a single goroutine in batched transactions; the
// JSONL logs remain the source of truth, so a full queue drops entries.
type SQLIndex struct {
	db      *sql.DB
	dialect Dialect

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRuns  atomic.Uint64
	dropTicks atomic.Uint64
	writeErrs atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqTick
	reqFlush
)

type req struct {
	kind  reqKind
	run   world.RunEntry
	tick  world.TickLogEntry
	flush chan struct{}
}

// Stats reports queue health.
type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropRunTotal  uint64 `json:"drop_run_total"`
	DropTickTotal uint64 `json:"drop_tick_total"`
	WriteErrTotal uint64 `json:"write_err_total"`
}

func OpenSQLite(path string) (*SQLIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return open(db, SQLite)
}

func OpenPostgres(dsn string) (*SQLIndex, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return open(db, Postgres)
}

func open(db *sql.DB, d Dialect) (*SQLIndex, error) {
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index schema: %w", err)
	}
	s := &SQLIndex{
		db:      db,
		dialect: d,
		ch:      make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

// initSchema uses only types both sqlite and postgres accept.
func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			started_unix_ms BIGINT NOT NULL,
			map_seed TEXT NOT NULL,
			seed BIGINT NOT NULL,
			deterministic INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			gen_json TEXT NOT NULL,
			digest TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_unix_ms)`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick BIGINT NOT NULL,
			normal INTEGER NOT NULL,
			panicked INTEGER NOT NULL,
			sick INTEGER NOT NULL,
			zombie INTEGER NOT NULL,
			bites INTEGER NOT NULL,
			turned INTEGER NOT NULL,
			panics INTEGER NOT NULL,
			calmed INTEGER NOT NULL,
			transfers INTEGER NOT NULL,
			bounces INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $n for postgres.
func (s *SQLIndex) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLIndex) WriteRun(entry world.RunEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqRun, run: entry}:
	default:
		s.dropRuns.Add(1)
	}
	return nil
}

func (s *SQLIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTicks.Add(1)
	}
	return nil
}

// Flush waits until everything queued before it is committed.
func (s *SQLIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, flush: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropRunTotal:  s.dropRuns.Load(),
		DropTickTotal: s.dropTicks.Load(),
		WriteErrTotal: s.writeErrs.Load(),
	}
}

func (s *SQLIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(s.rebind(`INSERT INTO runs(run_id,world_id,started_unix_ms,map_seed,seed,deterministic,width,height,gen_json,digest)
		VALUES(?,?,?,?,?,?,?,?,?,?) ON CONFLICT (run_id) DO NOTHING`))
	insertTick, _ := s.db.Prepare(s.rebind(`INSERT INTO ticks(run_id,tick,normal,panicked,sick,zombie,bites,turned,panics,calmed,transfers,bounces,digest)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?) ON CONFLICT (run_id,tick) DO NOTHING`))
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertTick != nil {
			_ = insertTick.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrs.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrs.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeErrs.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// Idle commits: a quiet queue must not leave rows sitting in an open tx.
	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var r req
		var ok bool
		select {
		case r, ok = <-s.ch:
		case <-idle.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}
		if !ok {
			break
		}
		if r.kind == reqFlush {
			commit()
			close(r.flush)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			if insertRun == nil {
				continue
			}
			e := r.run
			genJSON, _ := json.Marshal(e.Gen)
			det := 0
			if e.Deterministic {
				det = 1
			}
			if _, err := tx.Stmt(insertRun).Exec(
				e.RunID, e.WorldID, e.StartedUnixMS, e.MapSeed, e.Seed, det,
				e.Width, e.Height, string(genJSON), e.Digest,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqTick:
			if insertTick == nil {
				continue
			}
			e := r.tick
			if _, err := tx.Stmt(insertTick).Exec(
				e.RunID, int64(e.Tick),
				e.Census.Normal, e.Census.Panicked, e.Census.Sick, e.Census.Zombie,
				e.Stats.Bites, e.Stats.Turned, e.Stats.Panics, e.Stats.Calmed, e.Stats.Transfers, e.Stats.Bounces,
				e.Digest,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
