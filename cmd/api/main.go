package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/wirashauma/FoodDelivery-app-sub000/api/routes"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/drivers"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/merchants"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/notify"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/offers"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/orders"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/payments"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/pricing"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/vouchers"
	"github.com/wirashauma/FoodDelivery-app-sub000/internal/wallets"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/config"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/db"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/metrics"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/migrate"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/payment"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/pubsub"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/queue"
	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	broker, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}

	events, err := buildDispatcher(cfg, broker, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire event dispatcher", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	fulfillmentMetrics := metrics.NewFulfillmentMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	offersRepo := offers.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	vouchersRepo := vouchers.NewRepository(dbClient.DB())
	walletsRepo := wallets.NewRepository(dbClient.DB())
	merchantsRepo := merchants.NewRepository(dbClient.DB())
	driversRepo := drivers.NewRepository(dbClient.DB())

	pricingSvc, err := pricing.NewService(merchantsRepo, cfg.Pricing)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	walletsSvc, err := wallets.NewService(walletsRepo, dbClient, fulfillmentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	vouchersSvc, err := vouchers.NewService(vouchersRepo, ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orders.Deps{
		Repo:          ordersRepo,
		Tx:            dbClient,
		Catalog:       merchantsRepo,
		Drivers:       driversRepo,
		Pricing:       pricingSvc,
		Vouchers:      vouchersSvc,
		VoucherFinder: vouchersRepo,
		Wallets:       walletsSvc,
		Payments:      paymentsRepo,
		Events:        events,
		Metrics:       fulfillmentMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	offersSvc, err := offers.NewService(offers.Deps{
		Repo:         offersRepo,
		Tx:           dbClient,
		OrderRepo:    ordersRepo,
		OrderService: ordersSvc,
		Drivers:      driversRepo,
		Events:       events,
		Metrics:      fulfillmentMetrics,
		Logger:       logg,
		ExpiryWindow: cfg.Offers.ExpiryWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create offer service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.Deps{
		Repo:           paymentsRepo,
		Tx:             dbClient,
		OrderRepo:      ordersRepo,
		OrderService:   ordersSvc,
		Dedupe:         redisClient,
		Events:         events,
		Logger:         logg,
		IdempotencyTTL: cfg.Payment.IdempotencyTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	verifier, err := payment.NewHMACVerifier(cfg.Payment.WebhookSecret)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook verifier", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		broker,
		ordersSvc,
		offersSvc,
		vouchersSvc,
		walletsSvc,
		paymentsSvc,
		verifier,
		registry,
	)

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ctx := logg.WithField(context.Background(), "addr", server.Addr)
		logg.Info(ctx, "api server listening")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logg.Info(logg.WithField(context.Background(), "signal", sig.String()), "shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(context.Background(), "server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "graceful shutdown failed", err)
	}

	closeErr := multierr.Combine(
		broker.Close(),
		redisClient.Close(),
		dbClient.Close(),
	)
	if closeErr != nil {
		logg.Error(context.Background(), "error closing resources", closeErr)
		os.Exit(1)
	}
}

// buildDispatcher fans domain events onto the jobs and notification topics.
// A topic left unconfigured degrades that leg to a noop.
func buildDispatcher(cfg *config.Config, broker *pubsub.Client, logg *logger.Logger) (queue.Publisher, error) {
	var jobs, pushes queue.Publisher = queue.NoopPublisher{}, queue.NoopPublisher{}

	if topic := broker.JobsPublisher(); topic != nil {
		publisher, err := queue.NewPubSubPublisher(topic, logg)
		if err != nil {
			return nil, err
		}
		jobs = publisher
	}
	if topic := broker.NotificationPublisher(); topic != nil {
		publisher, err := queue.NewPubSubPublisher(topic, logg)
		if err != nil {
			return nil, err
		}
		pushes = publisher
	}

	return notify.NewDispatcher(jobs, pushes, logg)
}
