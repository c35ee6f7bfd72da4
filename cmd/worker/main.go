// Package main is the entry point for the lotledger background worker.
// It relays label requests from the outbox to RabbitMQ and keeps lot
// expiration statuses current.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lotledger/internal/app"
	appctx "lotledger/internal/core/context"
	"lotledger/internal/domain/lot"
	"lotledger/internal/infrastructure/labels"
	"lotledger/internal/infrastructure/messaging"
	"lotledger/internal/infrastructure/storage/postgres"
	"lotledger/pkg/config"
	"lotledger/pkg/logger"
)

func main() {
	cfg, err := config.LoadWithValidation("worker")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting lotledger worker")

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	pg, deps, err := app.NewPostgres(pool, *cfg)
	if err != nil {
		log.Fatalw("failed to wire storage", "error", err)
	}
	services := app.New(deps)

	rmq, err := messaging.New(ctx, cfg.RabbitMQ)
	if err != nil {
		log.Fatalw("failed to connect to rabbitmq", "error", err)
	}
	defer func() {
		if err := rmq.Close(context.Background()); err != nil {
			log.Warnw("failed to close rabbitmq", "error", err)
		}
	}()

	publisher, err := messaging.NewPublisher(rmq, cfg.RabbitMQ.LabelExchange)
	if err != nil {
		log.Fatalw("failed to create label publisher", "error", err)
	}

	relay := postgres.NewOutboxRelay(pg.TxManager, cfg.Worker.OutboxBatchSize, cfg.RabbitMQ.MaxRetries,
		labels.NewRelayHandler(publisher))

	worker := NewWorker(relay, services.Lots, pool, cfg.Worker, log)

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

// Worker runs the periodic background jobs.
type Worker struct {
	relay *postgres.OutboxRelay
	lots  *lot.Store
	pool  *postgres.Pool
	cfg   config.WorkerConfig
	log   *logger.Logger
}

// NewWorker creates a worker.
func NewWorker(relay *postgres.OutboxRelay, lots *lot.Store, pool *postgres.Pool, cfg config.WorkerConfig, log *logger.Logger) *Worker {
	return &Worker{
		relay: relay,
		lots:  lots,
		pool:  pool,
		cfg:   cfg,
		log:   log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	outboxTicker := time.NewTicker(w.cfg.OutboxPollInterval)
	defer outboxTicker.Stop()

	statusTicker := time.NewTicker(w.cfg.StatusRefreshInterval)
	defer statusTicker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	// Statuses may be stale after downtime.
	w.refreshStatuses(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-outboxTicker.C:
			w.processOutbox(ctx)
		case <-statusTicker.C:
			w.refreshStatuses(ctx)
		case <-cleanupTicker.C:
			w.cleanupOutbox(ctx)
			postgres.LogPoolStats(ctx, w.pool.Pool)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	// Drain full batches before waiting for the next tick.
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(jobContext(ctx))
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("relayed outbox batch", "count", n)
		}
		if n < w.cfg.OutboxBatchSize {
			return
		}
	}
}

func (w *Worker) refreshStatuses(ctx context.Context) {
	changed, err := w.lots.RefreshStatuses(jobContext(ctx))
	if err != nil {
		w.log.Errorw("lot status refresh failed", "error", err)
		return
	}
	if changed > 0 {
		w.log.Infow("lot statuses refreshed", "count", changed)
	}
}

func (w *Worker) cleanupOutbox(ctx context.Context) {
	purged, err := w.relay.PurgePublished(jobContext(ctx), w.cfg.OutboxRetention)
	if err != nil {
		w.log.Errorw("outbox cleanup failed", "error", err)
		return
	}
	if purged > 0 {
		w.log.Infow("purged published outbox messages", "count", purged)
	}
}

// jobContext gives each run its own trace ids.
func jobContext(ctx context.Context) context.Context {
	return appctx.WithTrace(ctx, appctx.NewTraceContext())
}
