package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-service/config"
	"shop-service/internal/api"
	"shop-service/internal/bootstrap"
	"shop-service/internal/broker"
	"shop-service/internal/redisclient"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/util"
	"shop-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shop service", zap.String("env", cfg.Server.Env))

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	tp, err := util.InitTracer("shop-service", cfg.Server.Env, cfg.Observ.JaegerEndpoint, cfg.Observ.TraceSampleRatio)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()
	if err := bootstrap.EnsureStaff(ctx, db, cfg.Auth.StaffUsernames, logger); err != nil {
		logger.Fatal("Failed to seed staff accounts", zap.Error(err))
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)
	keyTTL := time.Duration(cfg.Business.IdempotencyTTLSeconds) * time.Second

	ledger := service.NewStockLedger()
	discounts := service.NewDiscountCatalog(db)
	cartService := service.NewCartService(db, discounts)
	checkoutService := service.NewCheckoutService(db, ledger, eventPublisher, redisClient, keyTTL)
	orderService := service.NewOrderService(db, ledger, eventPublisher)
	inventoryService := service.NewInventoryService(db, redisClient)

	if err := inventoryService.SyncMirror(ctx); err != nil {
		logger.Warn("Failed to sync inventory to Redis", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	mirrorConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	mirrorWorker := worker.NewInventoryMirrorWorker(mirrorConsumer, redisClient, keyTTL)
	go func() {
		if err := mirrorWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Inventory mirror worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Carts:     cartService,
		Discounts: discounts,
		Checkout:  checkoutService,
		Orders:    orderService,
		Inventory: inventoryService,
		Users:     db,
		DB:        db,
	}, []byte(cfg.Auth.JWTSecret), time.Duration(cfg.Server.RequestTimeoutSeconds)*time.Second)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := mirrorWorker.Stop(); err != nil {
		logger.Warn("Error stopping inventory mirror worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
