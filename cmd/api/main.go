package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
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

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal("Error loading .env file")
	}

	logger := logx.New("priority-engine-api", envOr("APP_ENV", "dev"), version, os.Getenv("LOG_LEVEL"))

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		defer rdb.Close()
	}
	cache := cachex.New(rdb)
	if rdb != nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := cache.Ping(pingCtx); err != nil {
			logger.Warn(pingCtx, "redis_unreachable", "score caching degraded: "+err.Error())
		}
		cancel()
	}

	metricsx.Register()

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(metricsx.Instrument)
	router.Handle("/metrics", metricsx.Handler())

	// ── Phase 1: Fulfillment Snapshots ──────────────────────
	snapshots := snapshot.NewPostgresProvider(db)

	// ── Phase 2: Rules, Profiles & Queue Configuration ──────
	ruleRepo := rules.NewPostgresRepository(db)
	ruleService := rules.NewService(ruleRepo)
	rules.NewHandler(ruleService).RegisterRoutes(router)

	profileRepo := profiles.NewPostgresRepository(db)
	profileService := profiles.NewService(profileRepo, ruleRepo)
	profiles.NewHandler(profileService).RegisterRoutes(router)

	configRepo := queueconfig.NewPostgresRepository(db)
	configService := queueconfig.NewService(configRepo, profileRepo)
	queueconfig.NewHandler(configService).RegisterRoutes(router)

	// ── Phase 3: Priority Scoring ───────────────────────────
	scoreRepo := scoring.NewPostgresRepository(db)
	scoringService := scoring.NewService(scoreRepo, ruleRepo, profileRepo, configRepo, snapshots, cache, logger)
	scoring.NewHandler(scoringService).RegisterRoutes(router)

	// ── Phase 4: Queue Rebalancing ──────────────────────────
	rebalanceRepo := rebalance.NewPostgresRepository(db)
	var rebalanceOpts []rebalance.Option
	if rdb != nil {
		rebalanceOpts = append(rebalanceOpts, rebalance.WithRedis(rdb))
	}
	rebalanceService := rebalance.NewService(rebalanceRepo, snapshots, configRepo, scoringService, logger, rebalanceOpts...)
	rebalance.NewHandler(rebalanceService).RegisterRoutes(router)

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	scheduler := rebalance.NewScheduler(rebalanceService, configRepo, logger)
	go scheduler.Run(schedCtx)

	// ── Start Server ────────────────────────────────────────
	port := envOr("APP_PORT", "8080")
	server := &http.Server{Addr: ":" + port, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "api_start", "priority engine API listening on :"+port)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}

	stopScheduler()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	logger.Info(context.Background(), "api_stop", "priority engine API stopped")
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
