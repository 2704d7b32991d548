// TaskMiner API — HTTP-фасад контроллера.
//
// Принимает tasks по HTTP, отправляет их worker'ам через RabbitMQ
// и опрашивает статус. Если RabbitMQ недоступен, запускает встроенный
// Miner и обрабатывает tasks в своём процессе.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/TaskMiner/internal/api"
	"github.com/shaiso/TaskMiner/internal/config"
	"github.com/shaiso/TaskMiner/internal/controller"
	"github.com/shaiso/TaskMiner/internal/miner"
	"github.com/shaiso/TaskMiner/internal/mq"
	"github.com/shaiso/TaskMiner/internal/repo"
	"github.com/shaiso/TaskMiner/internal/retention"
	"github.com/shaiso/TaskMiner/internal/telemetry"
)

var startTime = time.Now()

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting taskminer-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Архив (опционально)
	var taskRepo *repo.TaskRepo
	if cfg.DatabaseURL != "" {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		taskRepo = repo.NewTaskRepo(pool)
		logger.Info("connected to database")
	}

	client, shutdownClient, err := newMinerClient(ctx, cfg, taskRepo, metrics, logger)
	if err != nil {
		logger.Error("failed to create miner client", "error", err)
		os.Exit(1)
	}
	defer shutdownClient()

	ctrl := controller.New(controller.Config{
		Client:            client,
		PollInterval:      cfg.API.PollInterval,
		MaxSubmitAttempts: cfg.API.MaxSubmitAttempts,
		Metrics:           metrics,
		Logger:            logger,
	})

	handlerCfg := api.Config{
		Controller: ctrl,
		Metrics:    metrics,
		Logger:     logger,
	}
	if taskRepo != nil {
		handlerCfg.Archive = taskRepo
	}
	handler := api.NewHandler(handlerCfg)

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.APIAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// newMinerClient возвращает транспорт контроллера и функцию его остановки.
//
// Основной режим — RPC через RabbitMQ. Если брокер недоступен,
// tasks обрабатываются встроенным Miner'ом.
func newMinerClient(ctx context.Context, cfg *config.Config, taskRepo *repo.TaskRepo, metrics *telemetry.Metrics, logger *slog.Logger) (controller.MinerClient, func(), error) {
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err == nil {
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			mqConn.Close()
			return nil, nil, fmt.Errorf("setup topology: %w", err)
		}

		rpc := mq.NewRPCClient(mqConn, logger, mq.RPCClientConfig{Timeout: cfg.API.RequestTimeout})
		if err := rpc.Start(ctx); err != nil {
			mqConn.Close()
			return nil, nil, fmt.Errorf("start rpc client: %w", err)
		}

		logger.Info("RabbitMQ connected, dispatching tasks to workers")
		return rpc, func() {
			rpc.Stop()
			mqConn.Close()
		}, nil
	}

	logger.Warn("RabbitMQ not available, running embedded miner", "error", err)

	var archiver miner.Archiver
	var purger retention.ArchivePurger
	if taskRepo != nil {
		archiver = taskRepo
		purger = taskRepo
	}

	m := miner.New(miner.Config{
		MaxActive:       cfg.Worker.MaxActiveTasks,
		DefaultExecutor: cfg.Worker.DefaultExecutor,
		MinuteUnit:      cfg.Worker.MinuteUnit,
		WorkerID:        cfg.Worker.ID,
		Archiver:        archiver,
		Metrics:         metrics,
		Logger:          logger,
	})

	reclaimer := retention.New(retention.Config{
		Registry:   m.Registry(),
		TTL:        cfg.Retention.TTL,
		Archive:    purger,
		ArchiveTTL: cfg.Retention.ArchiveTTL,
		Schedule:   cfg.Retention.Schedule,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err := reclaimer.Start(ctx); err != nil {
		m.Stop()
		return nil, nil, fmt.Errorf("start reclaimer: %w", err)
	}

	return m, func() {
		reclaimer.Stop()
		m.Stop()
	}, nil
}
