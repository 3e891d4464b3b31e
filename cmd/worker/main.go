package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikolomin/siterag/internal/bootstrap"
	"github.com/ikolomin/siterag/internal/config"
	"github.com/ikolomin/siterag/internal/observability/logging"
	"github.com/ikolomin/siterag/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeCaptureRequested(ctx, func(handlerCtx context.Context, jobID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		workerMetrics.StartCapture()
		start := time.Now()
		if job, err := app.CaptureUC.GetByID(processCtx, jobID); err == nil {
			workerMetrics.ObserveQueueLag("worker", start.Sub(job.CreatedAt))
		}
		processErr := app.ProcessUC.ProcessByID(processCtx, jobID)

		pages := 0
		if processErr == nil {
			if job, err := app.CaptureUC.GetByID(processCtx, jobID); err == nil {
				pages = job.PagesIndexed
			}
		}
		workerMetrics.FinishCapture("worker", time.Since(start), pages, processErr)
		if processErr != nil {
			logger.Error("capture processing failed", "job_id", jobID, "error", processErr)
		}
		return processErr
	})
	if err != nil {
		logger.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}
