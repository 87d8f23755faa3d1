package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"outbreak.sim/internal/sim/world"
)

// IngestConfig configures the HTTP ingest backend, which forwards runs and
// ticks in JSON batches to a remote index service.
type IngestConfig struct {
	Endpoint      string
	Token         string
	WorldID       string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxRetained bounds how many undelivered events are kept for retry.
	MaxRetained int
	Logger      *log.Logger
}

type IngestIndex struct {
	cfg        IngestConfig
	httpClient *http.Client

	ch   chan ingestEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	queueDropped atomic.Uint64
	flushFail    atomic.Uint64
	flushOK      atomic.Uint64
}

type ingestEvent struct {
	Kind    string `json:"kind"`
	WorldID string `json:"world_id"`
	Payload any    `json:"payload"`
}

type IngestStats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueDroppedTotal uint64 `json:"queue_dropped_total"`
	FlushFailTotal    uint64 `json:"flush_fail_total"`
	FlushOKTotal      uint64 `json:"flush_ok_total"`
}

func OpenIngest(cfg IngestConfig) (*IngestIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.WorldID = strings.TrimSpace(cfg.WorldID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty ingest endpoint")
	}
	if cfg.WorldID == "" {
		return nil, fmt.Errorf("empty world id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = 16 * cfg.BatchSize
	}

	d := &IngestIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan ingestEvent, 32768),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *IngestIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *IngestIndex) WriteRun(entry world.RunEntry) error {
	if d == nil {
		return nil
	}
	d.enqueue(ingestEvent{Kind: "run", WorldID: d.cfg.WorldID, Payload: entry})
	return nil
}

func (d *IngestIndex) WriteTick(entry world.TickLogEntry) error {
	if d == nil {
		return nil
	}
	d.enqueue(ingestEvent{Kind: "tick", WorldID: d.cfg.WorldID, Payload: entry})
	return nil
}

func (d *IngestIndex) Stats() IngestStats {
	if d == nil {
		return IngestStats{}
	}
	return IngestStats{
		QueueDepth:        len(d.ch),
		QueueDroppedTotal: d.queueDropped.Load(),
		FlushFailTotal:    d.flushFail.Load(),
		FlushOKTotal:      d.flushOK.Load(),
	}
}

func (d *IngestIndex) enqueue(ev ingestEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- ev:
	default:
		d.queueDropped.Add(1)
		d.printf("ingest queue full; drop kind=%s world=%s", ev.Kind, ev.WorldID)
	}
}

func (d *IngestIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	// A failed batch stays at the front of pending and is retried on the next
	// flush; beyond MaxRetained the oldest events are dropped.
	pending := make([]ingestEvent, 0, d.cfg.BatchSize)
	flush := func() {
		for len(pending) > 0 {
			n := min(len(pending), d.cfg.BatchSize)
			if err := d.sendBatch(pending[:n]); err != nil {
				d.flushFail.Add(1)
				d.printf("ingest flush failed batch=%d err=%v", n, err)
				if over := len(pending) - d.cfg.MaxRetained; over > 0 {
					d.queueDropped.Add(uint64(over))
					pending = append(pending[:0], pending[over:]...)
				}
				return
			}
			d.flushOK.Add(1)
			pending = append(pending[:0], pending[n:]...)
		}
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			pending = append(pending, ev)
			if len(pending) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *IngestIndex) sendBatch(events []ingestEvent) error {
	body := struct {
		Events []ingestEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	if d.cfg.Token != "" {
		req.Header.Set("x-ob-index-token", d.cfg.Token)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func (d *IngestIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
