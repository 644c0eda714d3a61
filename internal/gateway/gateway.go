// Package gateway defines the order-execution surface and a guarded
// wrapper that refuses automated executions while the circuit breaker
// is open.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/breaker"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

// ErrBreakerOpen is returned when the circuit breaker refuses an
// automated execution.
var ErrBreakerOpen = errors.New("circuit breaker open")

// OrderStatus is the broker-side state of a submitted order.
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// Gateway places and manages broker orders for built strategies.
type Gateway interface {
	// PlaceOrder submits the strategy's legs as one combo order and
	// returns the execution id.
	PlaceOrder(ctx context.Context, s *domain.Strategy) (string, error)

	// CancelOrder cancels a working order.
	CancelOrder(ctx context.Context, executionID string) error

	// OrderStatus queries the broker-side order state.
	OrderStatus(ctx context.Context, executionID string) (OrderStatus, error)
}

// GuardedGateway wraps a Gateway with the circuit breaker: placements
// are refused while the breaker is open, and every outcome feeds the
// breaker's failure counter. Status queries pass through unguarded
// since they are read-only.
type GuardedGateway struct {
	inner   Gateway
	breaker *breaker.Breaker
	logger  *log.Logger
}

// NewGuardedGateway wraps a gateway with breaker protection.
func NewGuardedGateway(inner Gateway, b *breaker.Breaker, logger *log.Logger) (*GuardedGateway, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner gateway is required")
	}
	if b == nil {
		return nil, fmt.Errorf("breaker is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &GuardedGateway{inner: inner, breaker: b, logger: logger}, nil
}

// PlaceOrder submits the order if the breaker admits it and reports
// the outcome back to the breaker.
func (g *GuardedGateway) PlaceOrder(ctx context.Context, s *domain.Strategy) (string, error) {
	if !g.breaker.Allow(ctx) {
		g.logger.Printf("order for %s refused: breaker %s", s.Symbol, g.breaker.State())
		return "", fmt.Errorf("place order for %s: %w", s.Symbol, ErrBreakerOpen)
	}

	executionID, err := g.inner.PlaceOrder(ctx, s)
	if err != nil {
		g.breaker.RecordFailure(ctx)
		return "", fmt.Errorf("place order for %s: %w", s.Symbol, err)
	}
	g.breaker.RecordSuccess(ctx)
	return executionID, nil
}

// CancelOrder cancels a working order and reports the outcome to the
// breaker.
func (g *GuardedGateway) CancelOrder(ctx context.Context, executionID string) error {
	if !g.breaker.Allow(ctx) {
		return fmt.Errorf("cancel order %s: %w", executionID, ErrBreakerOpen)
	}

	if err := g.inner.CancelOrder(ctx, executionID); err != nil {
		g.breaker.RecordFailure(ctx)
		return fmt.Errorf("cancel order %s: %w", executionID, err)
	}
	g.breaker.RecordSuccess(ctx)
	return nil
}

// OrderStatus queries the broker-side order state.
func (g *GuardedGateway) OrderStatus(ctx context.Context, executionID string) (OrderStatus, error) {
	return g.inner.OrderStatus(ctx, executionID)
}

var _ Gateway = (*GuardedGateway)(nil)
