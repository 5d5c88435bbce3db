package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/telemetry"
)

const (
	defaultBufferSize    = 1024
	defaultFlushInterval = 5 * time.Second
	flushBatchSize       = 64
	insertTimeout        = 5 * time.Second
)

const insertEventSQL = `
	INSERT INTO gateway_events
		(caller_id, capability, outcome, provider, providers_attempted,
		 cache_hit, latency_ms, prompt_tokens, completion_tokens, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// PGSink buffers events in memory and batch-inserts them into PostgreSQL
// from a background goroutine. When the buffer is full new events are
// dropped and counted, never queued on the request path.
type PGSink struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *telemetry.Metrics

	flushEvery time.Duration
	events     chan Event
	quit       chan struct{}
	done       chan struct{}
	once       sync.Once
}

func NewPGSink(pool *pgxpool.Pool, cfg config.AnalyticsConfig, logger *slog.Logger, metrics *telemetry.Metrics) *PGSink {
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	every := cfg.FlushInterval
	if every <= 0 {
		every = defaultFlushInterval
	}

	s := &PGSink{
		pool:       pool,
		logger:     logger,
		metrics:    metrics,
		flushEvery: every,
		events:     make(chan Event, buffer),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.drain()
	return s
}

// Record queues an event for insertion. Never blocks.
func (s *PGSink) Record(ev Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	select {
	case s.events <- ev:
	default:
		s.metrics.RecordAnalyticsDrop()
	}
}

// Close flushes buffered events and stops the background goroutine. Safe to
// call more than once.
func (s *PGSink) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.quit) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PGSink) drain() {
	defer close(s.done)

	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	batch := make([]Event, 0, flushBatchSize)
	for {
		select {
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) >= flushBatchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-s.quit:
			// Take whatever is still buffered, then do a final flush.
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					s.flush(batch)
					return
				}
			}
		}
	}
}

func (s *PGSink) flush(events []Event) {
	if len(events) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	b := &pgx.Batch{}
	for _, ev := range events {
		attempted, err := json.Marshal(ev.ProvidersAttempted)
		if err != nil {
			attempted = []byte("[]")
		}
		b.Queue(insertEventSQL,
			ev.CallerID, ev.Capability, ev.Outcome, ev.Provider, attempted,
			ev.CacheHit, ev.LatencyMs, ev.PromptTokens, ev.CompletionTokens, ev.CreatedAt,
		)
	}

	if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
		s.logger.Error("analytics flush failed", "events", len(events), "error", err)
	}
}
