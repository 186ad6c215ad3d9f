package main

import (
	"auction-engine/internal/config"
	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/mysql"
	"auction-engine/internal/infrastructure/redis"
	"auction-engine/pkg/logger"
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
)

// AnalyticsService tails the lifecycle event stream and writes the audit
// trail every auction leaves behind.
type AnalyticsService struct {
	subscriber *redis.RedisEventSubscriber
	auditRepo  domain.AuditRepository
	log        logger.Logger
}

func NewAnalyticsService(subscriber *redis.RedisEventSubscriber, auditRepo domain.AuditRepository, log logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		subscriber: subscriber,
		auditRepo:  auditRepo,
		log:        log,
	}
}

func (as *AnalyticsService) Start(ctx context.Context) error {
	as.log.Info("Starting analytics service")

	return as.subscriber.SubscribeToLifecycleEvents(ctx, func(event *domain.LifecycleEvent) error {
		as.log.Debug("Recording lifecycle event", "event", event.Event, "auction_id", event.AuctionID)
		return as.auditRepo.RecordEvent(context.Background(), event)
	})
}

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}

	eventSubscriber := redis.NewRedisEventSubscriber(rdb, log)
	auditRepo := mysql.NewMySQLAuditRepository(db)

	analyticsService := NewAnalyticsService(eventSubscriber, auditRepo, log)

	go func() {
		if err := analyticsService.Start(context.Background()); err != nil {
			log.Error("Analytics service failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down analytics service...")
	log.Info("Analytics service stopped")
}
