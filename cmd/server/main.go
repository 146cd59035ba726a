// Package main runs the wallet tracker service:
// - HTTP API for wallets, transactions, trading stats, watchlists and alerts
// - Confirmation watcher over the Solana WebSocket feed (optional)
// - Scheduled sweep of pending transactions
// - Kafka event intake (optional)
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"solana-wallet-tracker/internal/api"
	"solana-wallet-tracker/internal/config"
	"solana-wallet-tracker/internal/events"
	"solana-wallet-tracker/internal/keylock"
	"solana-wallet-tracker/internal/ledger"
	"solana-wallet-tracker/internal/logging"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/reconciler"
	"solana-wallet-tracker/internal/solana"
	"solana-wallet-tracker/internal/stats"
	"solana-wallet-tracker/internal/storage"
	chstore "solana-wallet-tracker/internal/storage/clickhouse"
	"solana-wallet-tracker/internal/storage/memory"
	"solana-wallet-tracker/internal/storage/migrations"
	pgstore "solana-wallet-tracker/internal/storage/postgres"
	"solana-wallet-tracker/internal/wallet"
	"solana-wallet-tracker/internal/watch"
)

const shutdownTimeout = 30 * time.Second

// Server holds all components of the service.
type Server struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	stores *allStores
	locker keylock.Locker

	cache      *ledger.CachedClient
	reconciler *reconciler.Service
	watcher    *reconciler.Watcher
	apiServer  *api.Server
	httpServer *http.Server
	consumer   *events.Consumer
}

// allStores holds all storage implementations.
type allStores struct {
	users   storage.UserStore
	txs     storage.TransactionStore
	archive storage.TradeArchive
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(cfg.MetricsNamespace, reg)

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer cleanup()

	locker, closeLocker, err := createLocker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("create locker", zap.Error(err))
	}
	defer closeLocker()

	server := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		stores:  stores,
		locker:  locker,
	}
	if err := server.build(ctx); err != nil {
		logger.Fatal("build server", zap.Error(err))
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn("second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Error("graceful shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func createStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*allStores, func(), error) {
	stores := &allStores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresURL == "" {
		logger.Warn("POSTGRES_URL not set, using in-memory stores")
		stores.users = memory.NewUserStore()
		stores.txs = memory.NewTransactionStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.users = pgstore.NewUserStore(pool)
		stores.txs = pgstore.NewTransactionStore(pool)
	}

	if cfg.ClickHouseURL == "" {
		stores.archive = memory.NewTradeArchive()
		return stores, cleanup, nil
	}

	if err := chstore.EnsureDatabase(ctx, cfg.ClickHouseURL); err != nil {
		cleanup()
		return nil, nil, err
	}
	conn, err := chstore.NewConn(ctx, cfg.ClickHouseURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	closers = append(closers, func() { _ = conn.Close() })

	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	stores.archive = chstore.NewTradeArchive(conn)
	return stores, cleanup, nil
}

// createLocker returns a Redis lock when REDIS_ADDR is set, so several
// replicas can share one store, and an in-process lock otherwise.
func createLocker(ctx context.Context, cfg config.Config, logger *zap.Logger) (keylock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return keylock.NewMap(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	locker := keylock.NewRedisLocker(client, logger, keylock.WithTTL(cfg.LockTTL))
	return locker, func() { _ = client.Close() }, nil
}

// build wires the ledger, the services and the outer surfaces.
func (s *Server) build(ctx context.Context) error {
	rpc := solana.NewHTTPClient(s.cfg.SolanaRPCURL,
		solana.WithTimeout(s.cfg.LedgerTimeout),
		solana.WithMaxRetries(s.cfg.LedgerRetries),
	)
	rpcLedger := ledger.NewRPCLedger(rpc, ledger.Config{
		Timeout:       s.cfg.LedgerTimeout,
		MinCommitment: s.cfg.MinCommitment,
		Logger:        s.logger,
		Metrics:       s.metrics,
	})
	cached, err := ledger.NewCachedClient(rpcLedger, s.cfg.StatusCacheSize, s.cfg.StatusCacheTTL, s.metrics)
	if err != nil {
		return fmt.Errorf("status cache: %w", err)
	}
	s.cache = cached

	s.reconciler = reconciler.NewService(s.stores.txs, cached, reconciler.Config{
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	wallets := wallet.NewService(s.stores.users, s.locker, cached, wallet.Config{Logger: s.logger})
	aggregator := stats.NewAggregator(s.stores.users, s.locker, stats.Config{
		Archive: s.stores.archive,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	evaluator := watch.NewEvaluator(s.stores.users, s.locker, watch.Config{
		Logger:  s.logger,
		Metrics: s.metrics,
	})

	if s.cfg.SolanaWSURL != "" {
		ws, err := solana.NewWSClient(ctx, s.cfg.SolanaWSURL, nil, s.logger)
		if err != nil {
			return fmt.Errorf("create websocket client: %w", err)
		}
		go func() {
			<-ctx.Done()
			_ = ws.Close()
		}()
		s.watcher = reconciler.NewWatcher(ctx, ws, s.reconciler, reconciler.WatcherConfig{
			Commitment: s.cfg.MinCommitment,
			MaxWait:    s.cfg.WatchMaxWait,
			Logger:     s.logger,
		})
	}

	deps := api.Deps{
		Wallets:    wallets,
		Reconciler: s.reconciler,
		Ledger:     cached,
		Stats:      aggregator,
		Watch:      evaluator,
		Logger:     s.logger,
		Metrics:    s.metrics,
	}
	if s.watcher != nil {
		deps.Watcher = s.watcher
	}
	s.apiServer = api.NewServer(deps)
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if len(s.cfg.KafkaBrokers) > 0 {
		cc := events.ConsumerConfig{
			Brokers: s.cfg.KafkaBrokers,
			Topic:   s.cfg.KafkaTopic,
			GroupID: s.cfg.KafkaGroupID,
			Logger:  s.logger,
			Metrics: s.metrics,
		}
		if s.watcher != nil {
			cc.Tracker = s.watcher
		}
		s.consumer = events.NewConsumer(cc, aggregator, s.reconciler)
	}
	return nil
}

// Run serves until ctx is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting wallet tracker", zap.String("addr", s.cfg.HTTPAddr))

	errCh := make(chan error, 2)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if s.consumer != nil {
		go func() {
			if err := s.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("event consumer: %w", err)
			}
		}()
	}

	sched := cron.New()
	if _, err := sched.AddFunc(s.cfg.SweepCron, func() { s.sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.cfg.SweepCron, err)
	}
	sched.Start()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
	}

	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
	s.apiServer.Wait()
	if s.watcher != nil {
		s.watcher.Wait()
	}
	s.cache.Close()
	return runErr
}

func (s *Server) sweep(ctx context.Context) {
	// SweepPending records its own metrics and summary.
	if _, err := s.reconciler.SweepPending(ctx, s.cfg.SweepOlderThan, s.cfg.SweepBatch); err != nil {
		s.logger.Error("sweep pending", zap.Error(err))
	}
}
