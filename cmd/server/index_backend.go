package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"outbreak.sim/internal/persistence/indexdb"
	"outbreak.sim/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.RunLogger
	Close() error
}

// runQuerier is implemented by the SQL backends; the ingest backend is
// write-only.
type runQuerier interface {
	Runs(ctx context.Context, limit int) ([]indexdb.RunRow, error)
	Curve(ctx context.Context, runID string, every int) ([]indexdb.CurvePoint, error)
}

func openRuntimeIndex(worldDir, worldID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("OB_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "runs.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "postgres":
		dsn := strings.TrimSpace(os.Getenv("OB_INDEX_POSTGRES_DSN"))
		if dsn == "" {
			return nil, fmt.Errorf("OB_INDEX_BACKEND=postgres but OB_INDEX_POSTGRES_DSN is empty")
		}
		idx, err := indexdb.OpenPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "http":
		endpoint := strings.TrimSpace(os.Getenv("OB_INDEX_INGEST_URL"))
		token := strings.TrimSpace(os.Getenv("OB_INDEX_INGEST_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("OB_INDEX_BACKEND=http but OB_INDEX_INGEST_URL is empty")
		}
		flushMS := envInt("OB_INDEX_INGEST_FLUSH_MS", 500)
		batchSize := envInt("OB_INDEX_INGEST_BATCH_SIZE", 128)
		idx, err := indexdb.OpenIngest(indexdb.IngestConfig{
			Endpoint:      endpoint,
			Token:         token,
			WorldID:       worldID,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported OB_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
