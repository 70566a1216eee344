package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/enrollhq/triage-engine/internal/config"
	"github.com/enrollhq/triage-engine/internal/optimizer"
	"github.com/enrollhq/triage-engine/internal/queue"
	"github.com/enrollhq/triage-engine/internal/repository/postgres"
	"github.com/enrollhq/triage-engine/internal/scoring"
	"github.com/enrollhq/triage-engine/internal/service/execution"
	"github.com/enrollhq/triage-engine/internal/service/triage"
	"github.com/enrollhq/triage-engine/internal/service/weights"
	"github.com/enrollhq/triage-engine/internal/worker"

	_ "github.com/lib/pq"
)

func main() {
	log.Println("Starting Triage Engine worker...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v - running without batch locks", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s (batch locks enabled)", cfg.Redis.Addr)
		}
	}

	// Repositories
	leadRepo := postgres.NewLeadRepo(db)
	weightsRepo := postgres.NewWeightsRepo(db)
	queueRepo := postgres.NewQueueRepo(db)
	execRepo := postgres.NewExecutionRepo(db)
	programmeRepo := postgres.NewProgrammeRepo(db)

	// Services
	weightsSvc := weights.NewService(weightsRepo, redisClient)
	triageSvc := triage.NewService(leadRepo, programmeRepo, weightsSvc)
	triageSvc.SetBlockerConfig(scoring.BlockerConfig{
		StallThresholdDays: cfg.Triage.EngagementStallDays,
		SourceQualityFloor: cfg.Triage.SourceQualityFloor,
	})

	queueCfg := queue.DefaultConfig()
	queueCfg.MaxLeadsPerRun = cfg.Queue.MaxLeadsPerRun
	queueBuilder := queue.NewBuilder(leadRepo, triageSvc, queueRepo, queueCfg)

	execSvc := execution.NewService(execRepo, leadRepo, triageSvc, queueRepo)

	opt := optimizer.New(execRepo, weightsSvc, optimizer.Config{
		MinSampleSize:        cfg.Optimizer.MinSampleSize,
		PerformanceTolerance: cfg.Optimizer.PerformanceTolerance,
		Window:               time.Duration(cfg.Optimizer.WindowDays) * 24 * time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locker := worker.NewOrgLocker(redisClient, 10*time.Minute)

	buildInterval := time.Duration(cfg.Queue.BuildIntervalMinutes) * time.Minute
	queueWorker := worker.NewQueueBuilderWorker(queueBuilder, leadRepo, locker, buildInterval)
	go queueWorker.Start(ctx)
	log.Printf("Queue builder worker started (every %s)", buildInterval)

	sweepWorker := worker.NewSweepWorker(queueBuilder, time.Duration(cfg.Queue.SweepIntervalMinutes)*time.Minute)
	go sweepWorker.Start(ctx)
	log.Println("Queue sweep worker started")

	outcomeWorker := worker.NewOutcomeWorker(execSvc, cfg.Triage.ObservationWindow(), time.Duration(cfg.Triage.MeasureIntervalMinutes)*time.Minute)
	go outcomeWorker.Start(ctx)
	log.Println("Outcome measurement worker started")

	optInterval := time.Duration(cfg.Optimizer.IntervalHours) * time.Hour
	optWorker := worker.NewOptimizerWorker(opt, leadRepo, locker, optInterval)
	go optWorker.Start(ctx)
	log.Printf("Optimizer worker started (every %s)", optInterval)

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	// Give in-flight batches time to finish
	time.Sleep(2 * time.Second)

	log.Println("Worker stopped")
}
