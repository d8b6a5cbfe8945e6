package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/notify"
)

// OverdueScanSchedule is the cron entry for the invoice sweep.
const OverdueScanSchedule = "@every 1h"

// Worker runs the asynq server and the periodic task scheduler.
type Worker struct {
	logger    *slog.Logger
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
}

// NewWorker wires the task handlers into an asynq server.
func NewWorker(redisAddr string, concurrency int, handlers *Handlers, logger *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 10
	}
	opt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", slog.String("type", task.Type()), slog.Any("error", err))
		}),
	})

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TaskTypeSendDocument, handlers.HandleSendDocument)
	mux.HandleFunc(TaskTypeOverdueScan, handlers.HandleOverdueScan)

	return &Worker{logger: logger, server: server, scheduler: scheduler, mux: mux}
}

// Run starts the server and scheduler and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if _, err := w.scheduler.Register(OverdueScanSchedule, asynq.NewTask(TaskTypeOverdueScan, nil)); err != nil {
		return fmt.Errorf("jobs: register overdue scan: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		return fmt.Errorf("jobs: start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("worker shutting down")
		w.scheduler.Shutdown()
		w.server.Shutdown()
		return nil
	case err := <-errCh:
		w.scheduler.Shutdown()
		return err
	}
}
