// Package main runs the position monitor service:
// - Monitoring (continuous): quote refresh, trailing stops, exit rules
// - Portfolio health (scheduled): risk limit checks against open positions
// - Audit trail: buffered risk event log flushed to ClickHouse
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/alerting"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/eventlog"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/marketdata"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/monitor"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/risk"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
	chstore "github.com/rainermokros/IBKR-BOT-sub002/internal/storage/clickhouse"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage/memory"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage/migrations"
	pgstore "github.com/rainermokros/IBKR-BOT-sub002/internal/storage/postgres"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/trailing"
)

// Service holds all components of the monitor service.
type Service struct {
	// Configuration
	postgresDSN    string
	clickhouseDSN  string
	feedEndpoint   string
	useMemory      bool
	healthInterval time.Duration

	// Components
	mon     *monitor.Monitor
	limiter *risk.Limiter
	events  *eventlog.Logger
	logger  *log.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastHealthCheck time.Time
	healthChecks    int
	healthWarnings  []string
}

// serviceStores holds all storage implementations.
type serviceStores struct {
	positionStore        storage.PositionStore
	positionHistoryStore storage.PositionHistoryStore
	trailingStopStore    storage.TrailingStopStore
	riskEventStore       storage.RiskEventStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	feedEndpoint := flag.String("feed-endpoint", os.Getenv("QUOTE_FEED_ENDPOINT"), "Quote feed WebSocket endpoint (empty disables live quotes)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	interval := flag.Duration("interval", 30*time.Second, "Monitoring cycle interval")
	healthInterval := flag.Duration("health-interval", 5*time.Minute, "Portfolio health check interval")
	profitTarget := flag.Float64("profit-target-pct", 50, "Close when this percent of entry credit is captured")
	lossMultiple := flag.Float64("loss-multiple", 2.0, "Close when the loss reaches this multiple of entry credit")
	rollBelowDays := flag.Float64("roll-below-days", 7, "Roll when days to expiry falls below this")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[monitor] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Risk event log shared by every component
	events := eventlog.New(stores.riskEventStore, log.New(os.Stdout, "[eventlog] ", log.LstdFlags))

	// Trailing stops with crash recovery
	tm := trailing.NewManager(stores.trailingStopStore, events, log.New(os.Stdout, "[trailing] ", log.LstdFlags))
	if err := tm.Restore(ctx); err != nil {
		logger.Fatalf("Failed to restore trailing stops: %v", err)
	}

	// Exit rules
	evaluator, err := monitor.NewRuleEvaluator(monitor.RuleConfig{
		ProfitTargetPct: *profitTarget,
		LossMultiple:    *lossMultiple,
		RollBelowDays:   *rollBelowDays,
	})
	if err != nil {
		logger.Fatalf("Invalid rule config: %v", err)
	}

	// Live quote feed (optional)
	var quotes monitor.QuoteSource
	var feed *marketdata.Feed
	if *feedEndpoint != "" {
		feed, err = marketdata.NewFeed(ctx, *feedEndpoint, nil,
			log.New(os.Stdout, "[feed] ", log.LstdFlags))
		if err != nil {
			logger.Fatalf("Failed to connect quote feed: %v", err)
		}
		defer feed.Close()
		quotes = feed
	} else {
		logger.Println("No quote feed endpoint, monitoring on stored premiums")
	}

	alerts := alerting.NewLogSink(log.New(os.Stdout, "[alert] ", log.LstdFlags))

	mon, err := monitor.New(monitor.Config{Interval: *interval},
		stores.positionStore, stores.positionHistoryStore, tm, evaluator, quotes, events, alerts, logger)
	if err != nil {
		logger.Fatalf("Failed to create monitor: %v", err)
	}

	// Portfolio limits checked against live open positions
	limiter, err := risk.NewLimiter(risk.DefaultLimits(), risk.NewPositionAggregator(stores.positionStore),
		events, log.New(os.Stdout, "[limiter] ", log.LstdFlags))
	if err != nil {
		logger.Fatalf("Failed to create limiter: %v", err)
	}

	service := &Service{
		postgresDSN:    *postgresDSN,
		clickhouseDSN:  *clickhouseDSN,
		feedEndpoint:   *feedEndpoint,
		useMemory:      *useMemory,
		healthInterval: *healthInterval,
		mon:            mon,
		limiter:        limiter,
		events:         events,
		logger:         logger,
		started:        time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go service.startHTTPServer(*metricsAddr)

	// Run the service
	err = service.Run(ctx)
	done <- err
	cancel()

	// Flush remaining audit events before exit
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if flushErr := events.Close(flushCtx); flushErr != nil {
		logger.Printf("Failed to flush risk events: %v", flushErr)
	}
	flushCancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Service error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*serviceStores, func(), error) {
	if useMemory {
		stores := &serviceStores{
			positionStore:        memory.NewPositionStore(),
			positionHistoryStore: memory.NewPositionHistoryStore(),
			trailingStopStore:    memory.NewTrailingStopStore(),
			riskEventStore:       memory.NewRiskEventStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	// ClickHouse (migration runner returns a ready connection)
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
	}

	stores := &serviceStores{
		// PostgreSQL stores (mutable working set)
		positionStore:     pgstore.NewPositionStore(pool),
		trailingStopStore: pgstore.NewTrailingStopStore(pool),

		// ClickHouse stores (append-only analytics)
		positionHistoryStore: chstore.NewPositionHistoryStore(chConn),
		riskEventStore:       chstore.NewRiskEventStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run starts the monitor loop and the health check scheduler.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Println("Starting position monitor...")

	errCh := make(chan error, 2)

	go func() {
		err := s.mon.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("monitor: %w", err)
		}
	}()

	go func() {
		err := s.runHealthScheduler(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("health scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runHealthScheduler checks portfolio limits on schedule.
func (s *Service) runHealthScheduler(ctx context.Context) error {
	s.logger.Printf("Starting health scheduler (interval: %v)...", s.healthInterval)

	// Run immediately on start
	s.runHealthCheck(ctx)

	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runHealthCheck(ctx)
		}
	}
}

// runHealthCheck evaluates all portfolio limits against open positions.
func (s *Service) runHealthCheck(ctx context.Context) {
	warnings, err := s.limiter.HealthCheck(ctx)
	if err != nil {
		s.logger.Printf("Health check error: %v", err)
		return
	}

	if len(warnings) > 0 {
		s.logger.Printf("Portfolio limit warnings: %v", warnings)
	}

	s.mu.Lock()
	s.lastHealthCheck = time.Now()
	s.healthChecks++
	s.healthWarnings = warnings
	s.mu.Unlock()
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Service) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// Remaining per-symbol headroom, e.g. /capacity?symbol=SPY
	mux.HandleFunc("/capacity", s.handleCapacity)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	LastHealthCheck time.Time `json:"last_health_check,omitempty"`
	HealthChecks    int       `json:"health_checks"`
	HealthWarnings  []string  `json:"health_warnings,omitempty"`
	BufferedEvents  int       `json:"buffered_events"`
}

// handleStatus returns service status as JSON.
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		LastHealthCheck: s.lastHealthCheck,
		HealthChecks:    s.healthChecks,
		HealthWarnings:  s.healthWarnings,
		BufferedEvents:  s.events.Buffered(),
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleCapacity returns the remaining risk headroom for one symbol.
func (s *Service) handleCapacity(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol query parameter is required", http.StatusBadRequest)
		return
	}

	capacity, err := s.limiter.SymbolCapacity(r.Context(), symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// ExposureHeadroom is +Inf when no cap is set, which JSON cannot
	// carry; an absent field means unlimited.
	resp := struct {
		Symbol           string   `json:"symbol"`
		PortfolioDelta   float64  `json:"portfolio_delta"`
		PortfolioGamma   float64  `json:"portfolio_gamma"`
		SymbolDelta      float64  `json:"symbol_delta"`
		ExposureHeadroom *float64 `json:"exposure_headroom,omitempty"`
	}{
		Symbol:         capacity.Symbol,
		PortfolioDelta: capacity.PortfolioDelta,
		PortfolioGamma: capacity.PortfolioGamma,
		SymbolDelta:    capacity.SymbolDelta,
	}
	if !math.IsInf(capacity.ExposureHeadroom, 1) {
		resp.ExposureHeadroom = &capacity.ExposureHeadroom
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
