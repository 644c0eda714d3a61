// Package eventlog provides the append-only risk event log. Events are
// buffered in memory and flushed to the backing store when a size
// threshold is reached or on an explicit flush. The bounded loss window
// on ungraceful termination is acceptable for an audit trail.
package eventlog

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/idhash"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// DefaultFlushThreshold is the buffer size that forces a flush.
const DefaultFlushThreshold = 100

// Logger buffers risk events and flushes them in batches.
type Logger struct {
	mu        sync.Mutex
	store     storage.RiskEventStore
	buf       []*domain.RiskEvent
	threshold int
	logger    *log.Logger
	nowFn     func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithFlushThreshold overrides the flush threshold.
func WithFlushThreshold(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.threshold = n
		}
	}
}

// WithNowFn overrides the time provider (useful for tests).
func WithNowFn(fn func() time.Time) Option {
	return func(l *Logger) {
		if fn != nil {
			l.nowFn = fn
		}
	}
}

// New creates a Logger writing to the given store.
func New(store storage.RiskEventStore, logger *log.Logger, opts ...Option) *Logger {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	l := &Logger{
		store:     store,
		threshold: DefaultFlushThreshold,
		logger:    logger,
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.buf = make([]*domain.RiskEvent, 0, l.threshold)
	return l
}

// Record buffers one event, assigning its timestamp and deterministic
// event ID if unset, and flushes when the threshold is reached.
func (l *Logger) Record(ctx context.Context, e *domain.RiskEvent) error {
	if e == nil || e.Component == "" || e.Type == "" {
		return storage.ErrInvalidInput
	}
	if _, err := domain.ParseRiskEventType(string(e.Type)); err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e.TimestampMs == 0 {
		e.TimestampMs = l.nowFn().UnixMilli()
	}
	if e.EventID == "" {
		e.EventID = idhash.ComputeEventID(e.Component, string(e.Type), e.ExecutionID, e.TimestampMs)
	}

	l.buf = append(l.buf, e)
	observability.SetEventLogBuffered(len(l.buf))

	if len(l.buf) >= l.threshold {
		return l.flushLocked(ctx)
	}
	return nil
}

// Flush writes all buffered events to the store.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked(ctx)
}

// Close flushes remaining events. Must be called at shutdown.
func (l *Logger) Close(ctx context.Context) error {
	return l.Flush(ctx)
}

// Buffered returns the number of events awaiting flush.
func (l *Logger) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}

func (l *Logger) flushLocked(ctx context.Context) error {
	if len(l.buf) == 0 {
		return nil
	}

	batch := l.buf
	l.buf = make([]*domain.RiskEvent, 0, l.threshold)

	if err := l.store.InsertBulk(ctx, batch); err != nil {
		// Put the batch back so a later flush can retry.
		l.buf = append(batch, l.buf...)
		observability.SetEventLogBuffered(len(l.buf))
		return fmt.Errorf("flush %d risk events: %w", len(batch), err)
	}

	l.logger.Printf("flushed %d risk events", len(batch))
	observability.RecordEventLogFlush(len(batch))
	observability.SetEventLogBuffered(len(l.buf))
	return nil
}
