package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/climastore/backend/internal/cache"
	"github.com/climastore/backend/internal/config"
	deliveryhttp "github.com/climastore/backend/internal/delivery/http"
	"github.com/climastore/backend/internal/messaging"
	messagingkafka "github.com/climastore/backend/internal/messaging/kafka"
	"github.com/climastore/backend/internal/metrics"
	"github.com/climastore/backend/internal/repository/postgres"
	"github.com/climastore/backend/internal/service"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	cfg := config.Load()

	// --- Database ---
	db, err := postgres.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to init database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := postgres.NewStore(db)

	// --- Cart cache ---
	var cartCache service.CartCache
	if cfg.CacheEnabled() {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cartCache = cache.NewCartCache(client, 15*time.Minute)
		slog.Info("Cart cache enabled", "addr", cfg.RedisAddr)
	}

	// --- Messaging ---
	logger := watermill.NewSlogLogger(slog.Default())

	var publisher messaging.Publisher = messaging.NopPublisher{}
	var router *message.Router
	if cfg.MessagingEnabled() {
		eventBus, err := messagingkafka.NewEventBus(cfg.KafkaBrokers, logger)
		if err != nil {
			slog.Error("Failed to create event bus", "err", err)
			os.Exit(1)
		}
		defer eventBus.Close()
		publisher = eventBus

		router, err = message.NewRouter(message.RouterConfig{}, logger)
		if err != nil {
			slog.Error("Failed to create message router", "err", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("No Kafka brokers configured, events will not be published")
	}

	// --- Services ---
	workflowMetrics := metrics.NewWorkflowMetrics()
	rates := service.DefaultShippingRates()

	cartSvc := service.NewCartService(store, cartCache)
	checkoutSvc := service.NewCheckoutService(store, rates, publisher, cartCache, workflowMetrics)
	orderSvc := service.NewOrderService(store, publisher, workflowMetrics)
	reorderSvc := service.NewReorderService(store, cartCache, workflowMetrics)

	// Consumer: PaymentCaptured -> order moves pending -> paid.
	if router != nil {
		processor, err := messagingkafka.NewEventProcessor(router, cfg.KafkaBrokers, cfg.ConsumerGroup, logger)
		if err != nil {
			slog.Error("Failed to create event processor", "err", err)
			os.Exit(1)
		}
		err = processor.AddHandlers(
			cqrs.NewEventHandler("MarkOrderPaidOnPaymentCaptured", orderSvc.HandlePaymentCaptured),
		)
		if err != nil {
			slog.Error("Failed to register event handlers", "err", err)
			os.Exit(1)
		}
	}

	// --- HTTP API ---
	handler := deliveryhttp.NewHandler(cartSvc, checkoutSvc, orderSvc, reorderSvc, rates)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: deliveryhttp.EnableCORS(mux),
	}

	// --- Start everything ---
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if router != nil {
		go func() {
			if err := router.Run(ctx); err != nil {
				slog.Error("Message router stopped", "err", err)
				cancel()
			}
		}()
		slog.Info("Event consumers started")
	}

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
