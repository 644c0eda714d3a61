package trailing

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/eventlog"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// Manager owns the trailing stops of all open positions, keyed by
// execution ID. Stops are created at position entry, updated once per
// monitoring cycle, and discarded when the position closes.
type Manager struct {
	mu     sync.Mutex
	stops  map[string]*Stop
	store  storage.TrailingStopStore // nil disables persistence
	events *eventlog.Logger
	logger *log.Logger
	nowFn  func() time.Time
}

// NewManager creates a Manager. The store may be nil for in-memory
// operation; events may be nil to skip audit logging (tests only).
func NewManager(store storage.TrailingStopStore, events *eventlog.Logger, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		stops:  make(map[string]*Stop),
		store:  store,
		events: events,
		logger: logger,
		nowFn:  time.Now,
	}
}

// Enable registers a trailing stop for a position. A nil config uses
// the defaults. Returns an error if a stop is already registered.
func (m *Manager) Enable(ctx context.Context, executionID string, entryPremium float64, cfg *Config) error {
	if executionID == "" {
		return fmt.Errorf("execution id is required")
	}

	config := DefaultConfig()
	if cfg != nil {
		config = *cfg
	}
	stop, err := NewStop(entryPremium, config)
	if err != nil {
		return fmt.Errorf("enable trailing stop for %s: %w", executionID, err)
	}

	m.mu.Lock()
	if _, exists := m.stops[executionID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("trailing stop already enabled for %s", executionID)
	}
	m.stops[executionID] = stop
	m.mu.Unlock()

	m.logger.Printf("trailing stop enabled for %s (entry %.4f, activation %.2f%%, trail %.2f%%)",
		executionID, entryPremium, config.ActivationPct, config.TrailPct)
	return m.persist(ctx, executionID, stop)
}

// Update advances the stop for a position with the current premium and
// records the resulting transition. Returns storage.ErrNotFound if no
// stop is registered.
func (m *Manager) Update(ctx context.Context, executionID string, premium float64) (Outcome, error) {
	m.mu.Lock()
	stop, ok := m.stops[executionID]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("trailing stop for %s: %w", executionID, storage.ErrNotFound)
	}

	outcome, err := stop.Update(premium)
	if err != nil {
		return "", fmt.Errorf("update trailing stop for %s: %w", executionID, err)
	}

	observability.RecordTrailingOutcome(string(outcome))

	if outcome != OutcomeHold {
		m.recordEvent(ctx, executionID, stop, outcome, premium)
		if err := m.persist(ctx, executionID, stop); err != nil {
			m.logger.Printf("persist trailing stop for %s: %v", executionID, err)
		}
	}
	return outcome, nil
}

// Reset re-arms a position's stop (manual override).
func (m *Manager) Reset(ctx context.Context, executionID string) error {
	m.mu.Lock()
	stop, ok := m.stops[executionID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("trailing stop for %s: %w", executionID, storage.ErrNotFound)
	}

	stop.Reset()
	m.recordEvent(ctx, executionID, stop, Outcome(""), 0)
	return m.persist(ctx, executionID, stop)
}

// Disable removes a position's stop once the position closes.
func (m *Manager) Disable(ctx context.Context, executionID string) {
	m.mu.Lock()
	delete(m.stops, executionID)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(ctx, executionID); err != nil {
			m.logger.Printf("delete trailing stop state for %s: %v", executionID, err)
		}
	}
}

// Get returns the stop for a position, if registered.
func (m *Manager) Get(executionID string) (*Stop, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stops[executionID]
	return s, ok
}

// Restore reloads persisted stop state after a restart.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	states, err := m.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("restore trailing stops: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range states {
		stop, err := Restore(st)
		if err != nil {
			m.logger.Printf("skipping corrupt trailing stop state: %v", err)
			continue
		}
		m.stops[st.ExecutionID] = stop
	}
	m.logger.Printf("restored %d trailing stops", len(m.stops))
	return nil
}

func (m *Manager) persist(ctx context.Context, executionID string, stop *Stop) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(ctx, stop.State(executionID, m.nowFn().UnixMilli()))
}

func (m *Manager) recordEvent(ctx context.Context, executionID string, stop *Stop, outcome Outcome, premium float64) {
	if m.events == nil {
		return
	}

	var eventType domain.RiskEventType
	var value float64
	if sp := stop.StopPremium(); sp != nil {
		value = *sp
	}

	switch outcome {
	case OutcomeActivated:
		eventType = domain.EventTrailingActivated
	case OutcomeUpdated:
		eventType = domain.EventTrailingUpdated
	case OutcomeTriggered:
		eventType = domain.EventTrailingTriggered
	default:
		eventType = domain.EventTrailingReset
		value = stop.EntryPremium()
	}

	err := m.events.Record(ctx, &domain.RiskEvent{
		Component:   "trailing_stop",
		Type:        eventType,
		ExecutionID: executionID,
		Reason:      fmt.Sprintf("premium %.4f, peak %.4f", premium, stop.HighestPremium()),
		Value:       value,
	})
	if err != nil {
		m.logger.Printf("record trailing event for %s: %v", executionID, err)
	}
}
