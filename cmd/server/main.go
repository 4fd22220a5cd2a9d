package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/handler"
	"storefront/internal/infrastructure/events"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/repo"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.Env, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	dbService := database.New(db)
	defer func() {
		if err := dbService.Close(); err != nil {
			logger.Error("database_close_error", zap.Error(err))
		}
	}()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	gateway, err := payment.NewGateway(cfg.Payment)
	if err != nil {
		return err
	}
	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("event_publisher_close_error", zap.Error(err))
		}
	}()

	m := metrics.New(cfg.ServiceName)

	orderRepo := repo.NewOrderRepo(db)
	cartRepo := repo.NewCartRepo(db)
	productRepo := repo.NewProductRepo(db)

	orderService := service.NewOrderService(service.OrderServiceDeps{
		DB:        db,
		Orders:    orderRepo,
		Carts:     cartRepo,
		Products:  productRepo,
		Verifier:  payment.NewVerifier(cfg.Payment.KeySecret),
		Gateway:   gateway,
		Publisher: publisher,
		Metrics:   m,
		Policy:    domain.Policy{CancelWindow: cfg.Policy.CancelWindow, ReturnWindow: cfg.Policy.ReturnWindow},
	})
	cartService := service.NewCartService(db, cartRepo, productRepo, nil)
	paymentService := service.NewPaymentService(gateway, cfg.Payment.Currency, cfg.Payment.Timeout, m)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.Deps{
		Orders:      orderService,
		Carts:       cartService,
		Payments:    paymentService,
		Health:      dbService,
		Metrics:     m,
		Logger:      logger,
		JWTSecret:   cfg.Auth.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Contact:     cfg.Contact,
		RateRPS:     cfg.Payment.RateRPS,
		RateBurst:   cfg.Payment.RateBurst,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("payment_gateway", cfg.Payment.Gateway),
			zap.Bool("events_enabled", len(cfg.Kafka.Brokers) > 0),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
		return err
	}
	logger.Info("http_server_stopped")
	return nil
}
