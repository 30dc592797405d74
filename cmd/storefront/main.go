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

	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/config"
	"github.com/fjod/foodcart/internal/events"
	h "github.com/fjod/foodcart/internal/http"
	"github.com/fjod/foodcart/internal/order"
	"github.com/fjod/foodcart/internal/payment"
	"github.com/fjod/foodcart/internal/pricing"
	"github.com/fjod/foodcart/internal/storage"
	"github.com/fjod/foodcart/internal/storefront"
	"github.com/fjod/foodcart/pkg/circuitbreaker"
	"github.com/fjod/foodcart/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx := context.Background()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open storage")
	}
	defer store.Close()
	log.Info().Str("driver", cfg.StorageDriver).Msg("storage ready")

	broker, err := openPublisher(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.EventsDriver).Msg("failed to open event publisher")
	}
	publisher := events.NewAsyncPublisher(broker, cfg.EventsQueueSize, cfg.EventsTimeout)
	defer publisher.Close()

	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:        "order-backend",
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	})
	client, err := backend.NewClient(cfg.BackendURL, cfg.PublicBaseURL, cfg.RequestTimeout, breaker)
	if err != nil {
		log.Fatal().Err(err).Str("backend_url", cfg.BackendURL).Msg("invalid backend url")
	}

	policy := pricing.Policy{
		DeliveryFee: cfg.DeliveryFeeAmount(),
		TaxRate:     cfg.TaxRateFraction(),
		Currency:    cfg.Currency,
	}
	gateways := payment.NewRegistry(payment.Cash{}, payment.NewHostedCard(client), payment.NewRedirectGateway(client))

	registry := storefront.NewRegistry(storefront.Deps{
		Storage:     store,
		Orders:      client,
		History:     client,
		Gateways:    gateways,
		Pending:     payment.NewSessionStore(store),
		Publisher:   publisher,
		Policy:      policy,
		ClearPolicy: order.ClearPolicy(cfg.CartClearPolicy),
		IdleTTL:     cfg.SessionIdleTTL,
	})
	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	go registry.RunEviction(evictCtx, time.Minute)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(h.NewRouter(registry, registry, cfg.RequestTimeout), "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("backend_url", cfg.BackendURL).
			Str("cart_clear_policy", cfg.CartClearPolicy).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		s, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := s.RunMigrations(cfg.MigrationsPath); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case config.StoragePostgres:
		cred := &storage.Credentials{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.MigrationsPath,
		}
		s, err := storage.NewPostgresStore(cred)
		if err != nil {
			return nil, err
		}
		if err := s.RunMigrations(cred); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return storage.NewRedisStore(client, storage.DefaultRedisTTL), nil
	case config.StorageMongo:
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		s := storage.NewMongoStore(db)
		if err := s.CreateIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		log.Warn().Msg("memory storage: carts and pending payments are lost on restart")
		return storage.NewMemoryStore(), nil
	}
}

func openPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...), nil
	case config.EventsRabbitMQ:
		return events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
	default:
		return events.NopPublisher{}, nil
	}
}
