package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forest-fashion/config"
	"forest-fashion/internal/api"
	"forest-fashion/internal/auth"
	"forest-fashion/internal/broker"
	"forest-fashion/internal/redisclient"
	"forest-fashion/internal/service"
	"forest-fashion/internal/store"
	"forest-fashion/internal/util"
	"forest-fashion/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const serviceName = "forest-fashion"

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting Forest Fashion API")

	decimal.MarshalJSONWithoutQuotes = true

	tp, err := util.InitTracer(serviceName, cfg.Server.Env, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	inventoryService := service.NewInventoryService(db, db, redisClient, eventPublisher)
	orderService := service.NewOrderService(db, db, db, inventoryService, redisClient, eventPublisher,
		service.OrderOptions{
			StockEnforcement: cfg.Business.StockEnforcement,
			IdempotencyTTL:   cfg.Business.IdempotencyTTL,
			HoldTTL:          cfg.Business.CartHoldTTL,
		})
	sagaOrchestrator := service.NewSagaOrchestrator(db, inventoryService)

	svc := api.Services{
		Products:  service.NewProductService(db, inventoryService, eventPublisher),
		Inventory: inventoryService,
		Orders:    orderService,
		Auth:      service.NewAuthService(db, tokens, cfg.Storefront.FrontendURL, cfg.Auth.ResetTokenTTL),
		Profiles:  service.NewProfileService(db),
		Contacts:  service.NewContactService(db, db),
		WhatsApp:  service.NewWhatsAppService(db, db, cfg.Storefront.WhatsAppNumber, cfg.Storefront.CurrencySymbol),
		Stats:     service.NewStatsService(db, db, db),
	}

	if _, err := orderService.FixLegacyOrders(ctx); err != nil {
		logger.Error("Failed to fix legacy orders", zap.Error(err))
	}
	if n, err := inventoryService.SyncAll(ctx); err != nil {
		logger.Error("Failed to sync stock to Redis", zap.Error(err))
	} else {
		logger.Info("Stock mirror synced", zap.Int("products", n))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	eventsWorker := worker.NewOrderEventsWorker(consumer, sagaOrchestrator)
	go func() {
		if err := eventsWorker.Start(workerCtx); err != nil {
			logger.Error("Order events worker error", zap.Error(err))
		}
	}()

	sweeper := worker.NewReservationSweeper(inventoryService, redisClient, cfg.Business.SweepInterval)
	go sweeper.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(svc, api.Options{
		CartHoldTTL: cfg.Business.CartHoldTTL,
		Admin: api.AdminAccount{
			Name:     cfg.Storefront.AdminName,
			Email:    cfg.Storefront.AdminEmail,
			Password: cfg.Storefront.AdminPassword,
		},
		Checks: map[string]api.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if port := cfg.Observ.PrometheusPort; port != "" && port != cfg.Server.Port {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: fmt.Sprintf(":%s", port), Handler: mux}
		go func() {
			logger.Info("Starting metrics server", zap.String("port", port))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	workerCancel()
	if err := eventsWorker.Stop(); err != nil {
		logger.Warn("Failed to close consumer", zap.Error(err))
	}

	logger.Info("Server exited")
}
