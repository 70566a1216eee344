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

	"github.com/redis/go-redis/v9"

	"github.com/enrollhq/triage-engine/internal/api"
	"github.com/enrollhq/triage-engine/internal/config"
	"github.com/enrollhq/triage-engine/internal/queue"
	"github.com/enrollhq/triage-engine/internal/repository/postgres"
	"github.com/enrollhq/triage-engine/internal/scoring"
	"github.com/enrollhq/triage-engine/internal/service/execution"
	"github.com/enrollhq/triage-engine/internal/service/triage"
	"github.com/enrollhq/triage-engine/internal/service/weights"

	_ "github.com/lib/pq"
)

func main() {
	log.Println("Starting Triage Engine API server...")

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
			log.Printf("Warning: Redis connection failed (%s): %v - weights cache disabled", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s (weights cache enabled)", cfg.Redis.Addr)
		}
	}

	// Repositories
	leadRepo := postgres.NewLeadRepo(db)
	weightsRepo := postgres.NewWeightsRepo(db)
	queueRepo := postgres.NewQueueRepo(db)
	execRepo := postgres.NewExecutionRepo(db)
	programmeRepo := postgres.NewProgrammeRepo(db)
	statsRepo := postgres.NewStatsRepo(db)

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

	handlers := api.NewHandlers(triageSvc, queueBuilder, execSvc, weightsSvc, statsRepo)
	server := api.NewServer(cfg.Server, handlers)

	go func() {
		log.Printf("API server listening on %s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
