// Package log writes and reads the zstd-compressed JSONL run and tick logs.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"outbreak.sim/internal/sim/world"
)

// JSONLZstdWriter appends one JSON document per line to
// <baseDir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst, one file per UTC hour of the
// clock in now. Every line is pushed through the encoder before Write
// returns, so a reader sees all entries of a run that is still going.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu  sync.Mutex
	seg *segment
}

// segment is the open file of one hour.
type segment struct {
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	seg, err := w.segmentFor(w.now().UTC().Format("2006-01-02-15"))
	if err != nil {
		return err
	}
	if _, err := seg.buf.Write(line); err != nil {
		return err
	}
	if err := seg.buf.Flush(); err != nil {
		return err
	}
	return seg.enc.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.seg.close()
	w.seg = nil
	return err
}

// segmentFor returns the segment for hour, closing the previous one when the
// hour has moved on. Reopening an hour appends a new zstd frame to its file.
func (w *JSONLZstdWriter) segmentFor(hour string) (*segment, error) {
	if w.seg != nil && w.seg.hour == hour {
		return w.seg, nil
	}
	if err := w.seg.close(); err != nil {
		return nil, err
	}
	w.seg = nil

	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return nil, err
	}
	name := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer %s: %w", name, err)
	}
	w.seg = &segment{hour: hour, f: f, enc: enc, buf: bufio.NewWriterSize(enc, 64*1024)}
	return w.seg, nil
}

func (s *segment) close() error {
	if s == nil {
		return nil
	}
	flushErr := s.buf.Flush()
	encErr := s.enc.Close()
	return errors.Join(flushErr, encErr, s.f.Close())
}

// RunLogger writes one JSONL entry per run (compressed).
type RunLogger struct{ w *JSONLZstdWriter }

func NewRunLogger(worldDir string) *RunLogger {
	return &RunLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "runs"), "runs")}
}

func (l *RunLogger) WriteRun(v world.RunEntry) error { return l.w.Write(v) }
func (l *RunLogger) Close() error                    { return l.w.Close() }

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }
