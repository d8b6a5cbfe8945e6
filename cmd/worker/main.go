package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/app"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/docnum"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/invoice"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/db"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/shared"
	"github.com/crmorbit-ai/crm-v1-sub002/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	numbers := docnum.New(docnum.NewPGStore(pool))
	audit := shared.NewAuditLogger(pool, logger)
	idem := shared.NewIdempotencyStore(pool)
	invoices := invoice.NewService(invoice.NewRepository(pool), numbers, audit, nil, nil, idem, logger)

	var mailer jobs.Mailer
	if cfg.SMTPHost != "" {
		mailer = jobs.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		mailer = &jobs.LogMailer{Logger: logger}
	}

	worker := jobs.NewWorker(cfg.RedisAddr, cfg.WorkerConcurrency, jobs.NewHandlers(logger, mailer, invoices), logger)

	logger.Info("worker starting", "redis", cfg.RedisAddr, "concurrency", cfg.WorkerConcurrency)
	if err := worker.Run(ctx); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
