// Package alerting defines the operator alert channel consumed by the
// risk core. Transport (Telegram, email, dashboard) lives outside this
// module; the core only emits (severity, message) pairs.
package alerting

import (
	"context"
	"log"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Sink accepts alerts. Implementations must be safe for concurrent use.
type Sink interface {
	Alert(ctx context.Context, severity Severity, message string) error
}

// LogSink writes alerts to a standard logger. Used as the default sink
// and in tests.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Alert implements Sink.
func (s *LogSink) Alert(_ context.Context, severity Severity, message string) error {
	if s.logger != nil {
		s.logger.Printf("[%s] %s", severity, message)
	}
	return nil
}

var _ Sink = (*LogSink)(nil)
