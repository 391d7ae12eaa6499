package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/fulfilq/priority-engine/internal/modules/profiles"
	"github.com/fulfilq/priority-engine/internal/modules/queueconfig"
	"github.com/fulfilq/priority-engine/internal/modules/rebalance"
	"github.com/fulfilq/priority-engine/internal/modules/rules"
	"github.com/fulfilq/priority-engine/internal/modules/scoring"
	"github.com/fulfilq/priority-engine/internal/modules/snapshot"
	"github.com/fulfilq/priority-engine/internal/platform/cachex"
	"github.com/fulfilq/priority-engine/internal/platform/logx"
	"github.com/fulfilq/priority-engine/internal/platform/metricsx"
)

const (
	taskRebalanceScan = "rebalance.scan"
	taskRebalanceRun  = "rebalance.run"

	asynqQueue = "rebalance"
)

type runPayload struct {
	QueueID string `json:"queue_id"`
}

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal("Error loading .env file")
	}

	logger := logx.New("priority-engine-worker", envOr("APP_ENV", "dev"), version, os.Getenv("LOG_LEVEL"))

	databaseURL := os.Getenv("DATABASE_URL")
	redisAddr := os.Getenv("REDIS_ADDR")
	if databaseURL == "" || redisAddr == "" {
		logger.Error(context.Background(), "config_invalid", "DATABASE_URL and REDIS_ADDR are required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		logger.Error(context.Background(), "db_init_failed", "db init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error(context.Background(), "db_init_failed", "db ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer rdb.Close()

	metricsx.Register()

	snapshots := snapshot.NewPostgresProvider(db)
	ruleRepo := rules.NewPostgresRepository(db)
	profileRepo := profiles.NewPostgresRepository(db)
	configRepo := queueconfig.NewPostgresRepository(db)
	scoreRepo := scoring.NewPostgresRepository(db)
	scoringService := scoring.NewService(scoreRepo, ruleRepo, profileRepo, configRepo, snapshots, cachex.New(rdb), logger)
	rebalanceRepo := rebalance.NewPostgresRepository(db)
	rebalanceService := rebalance.NewService(rebalanceRepo, snapshots, configRepo, scoringService, logger, rebalance.WithRedis(rdb))

	redisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	concurrency := envInt("WORKER_CONCURRENCY", 4)
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			asynqQueue: 1,
		},
	})
	defer server.Shutdown()

	mux := asynq.NewServeMux()
	mux.HandleFunc(taskRebalanceScan, func(ctx context.Context, t *asynq.Task) error {
		configs, err := configRepo.ListRebalanceEnabled(ctx)
		if err != nil {
			return err
		}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		for _, cfg := range configs {
			payload, _ := json.Marshal(runPayload{QueueID: cfg.QueueID.String()})
			task := asynq.NewTask(taskRebalanceRun, payload, asynq.Queue(asynqQueue))
			uniqueFor := time.Duration(cfg.RebalanceIntervalSeconds) * time.Second
			if _, err := client.Enqueue(task, asynq.Unique(uniqueFor)); err != nil {
				if errors.Is(err, asynq.ErrDuplicateTask) {
					continue
				}
				logger.Error(ctx, "enqueue_failed", "failed to enqueue rebalance run",
					slog.String("queue_id", cfg.QueueID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
		return nil
	})
	mux.HandleFunc(taskRebalanceRun, func(ctx context.Context, t *asynq.Task) error {
		var payload runPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return err
		}
		queueID, err := uuid.Parse(strings.TrimSpace(payload.QueueID))
		if err != nil {
			return err
		}
		result, err := rebalanceService.RebalanceQueue(ctx, queueID)
		if err != nil {
			var aborted *rebalance.Aborted
			if errors.As(err, &aborted) {
				// nothing was persisted; the next scan retries
				logger.Warn(ctx, "rebalance_aborted", "rebalance pass aborted",
					slog.String("queue_id", queueID.String()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			return err
		}
		if result.Reordered {
			logger.Info(ctx, "rebalance_done", "rebalance pass reordered queue",
				slog.String("queue_id", queueID.String()),
				slog.Int("items_reordered", result.ItemsReordered),
			)
		}
		return nil
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
	})
	defer scheduler.Shutdown()
	scanSec := envInt("REBALANCE_SCAN_SEC", 30)
	if _, err := scheduler.Register("@every "+strconv.Itoa(scanSec)+"s", asynq.NewTask(taskRebalanceScan, nil, asynq.Queue(asynqQueue))); err != nil {
		logger.Error(context.Background(), "scheduler_init_failed", "scheduler init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error(context.Background(), "scheduler_start_failed", "scheduler start failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "worker_start", "rebalance worker started",
			slog.String("queue", asynqQueue),
			slog.Int("concurrency", concurrency),
		)
		errCh <- server.Run(mux)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info(context.Background(), "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, asynq.ErrServerClosed) {
			logger.Error(context.Background(), "worker_failed", "worker failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info(context.Background(), "worker_stop", "rebalance worker stopped")
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
