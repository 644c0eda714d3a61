package marketdata

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

func TestModelProvider_DeltaSigns(t *testing.T) {
	p := NewModelProvider(0.04)
	p.SetSymbol("SPY", 450.0, 0.20)
	ctx := context.Background()

	callDelta, err := p.Sensitivity(ctx, "SPY", 450.0, domain.RightCall, 30)
	if err != nil {
		t.Fatalf("Sensitivity failed: %v", err)
	}
	if callDelta <= 0 || callDelta >= 1 {
		t.Errorf("ATM call delta = %.4f, want in (0, 1)", callDelta)
	}

	putDelta, err := p.Sensitivity(ctx, "SPY", 450.0, domain.RightPut, 30)
	if err != nil {
		t.Fatalf("Sensitivity failed: %v", err)
	}
	if putDelta >= 0 || putDelta <= -1 {
		t.Errorf("ATM put delta = %.4f, want in (-1, 0)", putDelta)
	}

	// Put-call parity on deltas: call - put = 1.
	if diff := callDelta - putDelta; math.Abs(diff-1.0) > 1e-9 {
		t.Errorf("call delta - put delta = %.6f, want 1.0", diff)
	}
}

func TestModelProvider_DeltaMonotonicInStrike(t *testing.T) {
	p := NewModelProvider(0.04)
	p.SetSymbol("SPY", 450.0, 0.25)
	ctx := context.Background()

	prev := math.Inf(1)
	for strike := 400.0; strike <= 500.0; strike += 5 {
		delta, err := p.Sensitivity(ctx, "SPY", strike, domain.RightCall, 45)
		if err != nil {
			t.Fatalf("Sensitivity(%v) failed: %v", strike, err)
		}
		if delta >= prev {
			t.Fatalf("call delta not decreasing in strike: %.4f then %.4f at %.0f", prev, delta, strike)
		}
		prev = delta
	}
}

func TestModelProvider_UnknownSymbol(t *testing.T) {
	p := NewModelProvider(0.04)

	_, err := p.Sensitivity(context.Background(), "NOPE", 100, domain.RightCall, 30)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	_, err = p.ImpliedVol(context.Background(), "NOPE", 100, domain.RightCall, 30)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestFeed_HandleMessageCachesLatest(t *testing.T) {
	f := &Feed{
		latest: make(map[string]Quote),
		done:   make(chan struct{}),
		logger: log.New(io.Discard, "", 0),
	}

	f.handleMessage([]byte(`{"symbol":"SPY","execution_id":"exec-1","premium":1.25,"timestamp_ms":2000}`))
	q, ok := f.Latest("exec-1")
	if !ok {
		t.Fatal("expected cached quote")
	}
	if q.Premium != 1.25 {
		t.Errorf("premium = %.2f, want 1.25", q.Premium)
	}

	// Older quote must not regress the cache.
	f.handleMessage([]byte(`{"symbol":"SPY","execution_id":"exec-1","premium":9.99,"timestamp_ms":1000}`))
	q, _ = f.Latest("exec-1")
	if q.Premium != 1.25 {
		t.Errorf("stale quote overwrote the cache: premium = %.2f", q.Premium)
	}

	// Malformed and anonymous messages are dropped.
	f.handleMessage([]byte(`not json`))
	f.handleMessage([]byte(`{"symbol":"SPY","premium":3.0,"timestamp_ms":5000}`))
	if _, ok := f.Latest(""); ok {
		t.Error("quote without execution id should not be cached")
	}
}
