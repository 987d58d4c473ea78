// Package main is the entry point for the pharmastock background worker.
// It relays the event outbox and purges expired bookkeeping rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pharmastock/internal/domain/documents/inventory"
	"pharmastock/internal/infrastructure/config"
	"pharmastock/internal/infrastructure/storage/postgres"
	"pharmastock/pkg/logger"
)

func main() {
	configFile := flag.String("config", "", "path to config.toml")
	envFile := flag.String("env", ".env", "path to a .env file")
	flag.Parse()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting pharmastock worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.ApplicationName = "pharmastock-worker"
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.Database.StatementTimeout)

	worker, err := NewWorker(txm, cfg, log)
	if err != nil {
		log.Fatalw("failed to create worker", "error", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the outbox relay and the periodic cleanups.
type Worker struct {
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	cfg         config.OutboxConfig
	log         *logger.Logger
}

// NewWorker wires the relay to a handler that logs every delivered event.
func NewWorker(txm *postgres.TxManager, cfg *config.Config, log *logger.Logger) (*Worker, error) {
	codec, err := postgres.NewOutboxCodec(cfg.Outbox.CompressThreshold)
	if err != nil {
		return nil, err
	}
	w := &Worker{
		idempotency: postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		cfg:         cfg.Outbox,
		log:         log.WithComponent("worker"),
	}
	w.relay = postgres.NewOutboxRelay(txm, codec, postgres.OutboxHandlerFunc(w.deliver), postgres.RelayConfig{
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetries,
		Backoff:    cfg.Outbox.Backoff,
	})
	return w, nil
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.relay.Run(ctx, w.cfg.Interval)
	}()

	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	w.cleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) deliver(_ context.Context, msg *postgres.OutboxMessage, event inventory.Event) error {
	w.log.Infow("inventory event",
		"outbox_id", msg.ID,
		"kind", event.Kind,
		"session_id", event.SessionID,
		"reference", event.Reference,
		"status", event.Status,
		"attempt", msg.RetryCount+1,
	)
	return nil
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}

	if n, err := w.relay.Purge(ctx, w.cfg.Retention); err != nil {
		w.log.Errorw("failed to purge outbox", "error", err)
	} else if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}
}
