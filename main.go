package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medigo/internal/app"
	"medigo/internal/cart"
	"medigo/internal/config"
	"medigo/internal/database"
	"medigo/internal/events"
	"medigo/internal/logger"
	"medigo/internal/repositories"
	"medigo/internal/services"
	"medigo/pkg/kafka"
	"medigo/pkg/rabbitmq"

	"go.uber.org/zap"
)

// stores is the repository set for one backend plus how to release it.
type stores struct {
	users    repositories.UserRepository
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	carts    cart.Persister
	close    func(context.Context) error
}

// openStores connects the backend cfg.DatabaseDriver names and prepares
// its schema or indexes.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres, config.DriverSQLite:
		db, err := database.OpenGORM(cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		return &stores{
			users:    repositories.NewGORMUserRepository(db),
			products: repositories.NewGORMProductRepository(db),
			orders:   repositories.NewGORMOrderRepository(db),
			carts:    repositories.NewGORMCartRepository(db),
			close: func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil

	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &stores{
			users:    repositories.NewMongoUserRepository(db),
			products: repositories.NewMongoProductRepository(db),
			orders:   repositories.NewMongoOrderRepository(db),
			carts:    repositories.NewMongoCartRepository(db),
			close:    client.Disconnect,
		}, nil

	case config.DriverMemory:
		mem := repositories.NewMemoryStore()
		return &stores{
			users:    mem.Users(),
			products: mem.Products(),
			orders:   mem.Orders(),
			carts:    cart.NewMemoryPersister(),
			close:    func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
}

// startEvents builds the publisher for cfg.EventsBroker and starts the
// notification consumer on ctx. Without a broker events are handled inline.
func startEvents(ctx context.Context, cfg *config.Config, log *zap.Logger) (events.Publisher, func() error, error) {
	notifier := events.NewNotificationHandler(log.Named("notifications"))

	switch cfg.EventsBroker {
	case config.BrokerRabbitMQ:
		client, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: events.AMQPExchange,
			Queue:    events.AMQPQueue,
			Logger:   log.Named("rabbitmq"),
		})
		if err != nil {
			return nil, nil, err
		}
		if err := events.ConsumeAMQP(ctx, client, notifier.Handle); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to start RabbitMQ consumer: %w", err)
		}
		return events.NewAMQPPublisher(client), client.Close, nil

	case config.BrokerKafka:
		client := kafka.NewClient(kafka.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: events.ConsumerGroup,
			Logger:  log.Named("kafka"),
		})
		go func() {
			if err := events.ConsumeKafka(ctx, client, notifier.Handle); err != nil {
				log.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
		return events.NewKafkaPublisher(client), client.Close, nil
	}
	return events.NewInlinePublisher(notifier.Handle), func() error { return nil }, nil
}

// newServices wires every service over st.
func newServices(cfg *config.Config, st *stores, publisher events.Publisher) app.Services {
	orders := services.NewOrderService(st.orders, st.products, st.users, publisher)
	return app.Services{
		Auth:     services.NewAuthService(st.users, cfg.JWTSecret, cfg.JWTExpiry),
		Products: services.NewProductService(st.products, publisher),
		Orders:   orders,
		Users:    services.NewUserService(st.users),
		Carts:    services.NewCartService(cart.NewStore(st.carts), st.products, orders),
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.AppEnv, cfg.LogLevel); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.DatabaseDriver, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Warn("failed to close store", zap.Error(err))
		}
	}()
	log.Info("store ready", zap.String("driver", cfg.DatabaseDriver))

	publisher, closeEvents, err := startEvents(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to start %s events: %w", cfg.EventsBroker, err)
	}
	defer closeEvents()

	svc := newServices(cfg, st, publisher)
	if cfg.AdminEmail != "" {
		if err := svc.Auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return err
		}
	}

	server := app.New(cfg, svc)
	listenErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.AppPort), zap.String("env", cfg.AppEnv))
		listenErr <- server.Listen(cfg.AppPort)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("error during shutdown", zap.Error(err))
	}
	log.Info("server gracefully stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "medigo:", err)
		os.Exit(1)
	}
}
