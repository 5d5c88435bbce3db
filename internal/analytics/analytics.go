package analytics

import (
	"context"
	"log/slog"
	"time"
)

// Event is one terminal gateway outcome, recorded after the response is
// written. Events are advisory: losing one must never fail a request.
type Event struct {
	CallerID           string
	Capability         string
	Outcome            string
	Provider           string
	ProvidersAttempted []string
	CacheHit           bool
	LatencyMs          int64
	PromptTokens       int
	CompletionTokens   int
	CreatedAt          time.Time
}

// Sink accepts events without blocking the request path.
type Sink interface {
	Record(Event)
	Close(ctx context.Context) error
}

// LogSink writes events to the structured log. Used when no analytics
// database is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ev Event) {
	s.logger.Info("gateway event",
		"caller", ev.CallerID,
		"capability", ev.Capability,
		"outcome", ev.Outcome,
		"provider", ev.Provider,
		"providers_attempted", ev.ProvidersAttempted,
		"cache_hit", ev.CacheHit,
		"latency_ms", ev.LatencyMs,
	)
}

func (s *LogSink) Close(ctx context.Context) error {
	return nil
}
