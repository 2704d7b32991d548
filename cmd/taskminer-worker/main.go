// TaskMiner Worker — процесс с mining actor'ами.
//
// Worker:
//   - Получает TaskInitRequest из общей очереди tasks.init
//   - Обрабатывает каждый task отдельным Actor'ом с дедлайном
//   - Отвечает на запросы статуса из своей очереди tasks.status.<worker_id>
//   - Архивирует завершённые tasks в PostgreSQL (если задан DB_URL)
//   - Удаляет старые записи из реестра по cron-расписанию
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/TaskMiner/internal/config"
	"github.com/shaiso/TaskMiner/internal/miner"
	"github.com/shaiso/TaskMiner/internal/mq"
	"github.com/shaiso/TaskMiner/internal/repo"
	"github.com/shaiso/TaskMiner/internal/retention"
	"github.com/shaiso/TaskMiner/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Архив (опционально)
	var archiver miner.Archiver
	var purger retention.ArchivePurger
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

		taskRepo := repo.NewTaskRepo(pool)
		archiver = taskRepo
		purger = taskRepo
		logger.Info("archive enabled")
	} else {
		logger.Info("archive disabled, DB_URL not set")
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
	logger = telemetry.WithWorkerID(logger, m.WorkerID())
	logger.Info("starting taskminer-worker")

	// RabbitMQ — единственный транспорт worker'а
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Debug("topology declared", "topology", mq.TopologyInfo())

	server := mq.NewServer(mqConn, logger, mq.ServerConfig{
		Handler:  m,
		WorkerID: m.WorkerID(),
	})
	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start mq server", "error", err)
		os.Exit(1)
	}

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
		logger.Error("failed to start reclaimer", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /stats + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() || m.IsStopped() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Registry().Stats())
	})
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    cfg.WorkerAddr(),
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Сначала перестаём принимать запросы, затем убиваем actor'ов
	server.Stop()
	reclaimer.Stop()
	m.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("taskminer-worker stopped")
}
