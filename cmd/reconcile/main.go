// Package main runs one sweep of pending transactions against the ledger
// and prints the report as JSON.
//
// Usage:
//
//	reconcile [--older-than 30s] [--batch 100] [--signature SIG]
//
// With --signature only that transaction is settled from the ledger.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"solana-wallet-tracker/internal/config"
	"solana-wallet-tracker/internal/ledger"
	"solana-wallet-tracker/internal/logging"
	"solana-wallet-tracker/internal/reconciler"
	"solana-wallet-tracker/internal/solana"
	"solana-wallet-tracker/internal/storage/migrations"
	pgstore "solana-wallet-tracker/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	olderThan := flag.Duration("older-than", cfg.SweepOlderThan, "Only sweep transactions submitted at least this long ago")
	batch := flag.Int("batch", cfg.SweepBatch, "Maximum transactions to check")
	signature := flag.String("signature", "", "Settle a single transaction instead of sweeping")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.PostgresURL == "" {
		logger.Fatal("POSTGRES_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgstore.NewPool(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatal("postgres migrations", zap.Error(err))
	}

	rpc := solana.NewHTTPClient(cfg.SolanaRPCURL,
		solana.WithTimeout(cfg.LedgerTimeout),
		solana.WithMaxRetries(cfg.LedgerRetries),
	)
	svc := reconciler.NewService(pgstore.NewTransactionStore(pool), ledger.NewRPCLedger(rpc, ledger.Config{
		Timeout:       cfg.LedgerTimeout,
		MinCommitment: cfg.MinCommitment,
		Logger:        logger,
	}), reconciler.Config{Logger: logger})

	var out any
	if *signature != "" {
		res, err := svc.SettleFromLedger(ctx, *signature)
		if err != nil {
			logger.Fatal("settle", zap.String("signature", *signature), zap.Error(err))
		}
		out = res
	} else {
		report, err := svc.SweepPending(ctx, *olderThan, *batch)
		if err != nil {
			logger.Fatal("sweep", zap.Error(err))
		}
		out = report
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Fatal("write report", zap.Error(err))
	}
}
