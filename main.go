package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shoestore/internal/config"
	"shoestore/internal/database"
	"shoestore/internal/events"
	"shoestore/internal/handlers"
	"shoestore/internal/idempotency"
	"shoestore/internal/models"
	"shoestore/internal/observability"
	"shoestore/internal/repositories"
	"shoestore/internal/services"
	"shoestore/pkg/kafka"
	"shoestore/pkg/rabbitmq"
)

// App is the assembled HTTP server and the resources it owns.
type App struct {
	Fiber    *fiber.App
	db       *gorm.DB
	store    repositories.Store
	mqClient *rabbitmq.Client
	producer *kafka.Producer
	redis    *redis.Client
	logger   *zap.Logger
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	app, err := NewApp(cfg, log)
	if err != nil {
		log.Fatal("failed to initialise application", zap.Error(err))
	}

	// --- Start RabbitMQ audit consumer ---
	if app.mqClient != nil {
		if err := app.mqClient.ConsumeOrderEvents(auditHandler(log)); err != nil {
			log.Warn("failed to start order event consumer", zap.Error(err))
		}
	}

	// --- Start HTTP Server ---
	log.Info("starting server", zap.String("addr", cfg.AppPort))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Info("shutting down server")

	if err := app.Shutdown(10 * time.Second); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server gracefully stopped")
}

// NewApp connects every backing service named by cfg and mounts the routes.
func NewApp(cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{logger: log}

	// --- Database ---
	db, err := database.Open(database.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseDSN,
		MaxOpenConns: cfg.DBMaxOpenConns,
		LogQueries:   cfg.DBLogQueries,
	})
	if err != nil {
		return nil, err
	}
	a.db = db
	if err := database.Migrate(db); err != nil {
		_ = a.Shutdown(time.Second)
		return nil, err
	}
	a.store = repositories.NewGORMStore(db)

	if cfg.SeedDemoData {
		if err := seedDemoData(context.Background(), a.store, log); err != nil {
			_ = a.Shutdown(time.Second)
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	// --- Event publisher ---
	var publisher events.Publisher = events.NopPublisher{}
	switch cfg.EventsBroker {
	case config.BrokerRabbitMQ:
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Logger: log})
		if err != nil {
			_ = a.Shutdown(time.Second)
			return nil, err
		}
		a.mqClient = mqClient
		publisher = events.NewRabbitMQPublisher(mqClient)
	case config.BrokerKafka:
		a.producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 0, log)
		a.producer.Start()
		publisher = events.NewKafkaPublisher(a.producer)
	}

	// --- Idempotency store ---
	var idemStore idempotency.Store = idempotency.NewMemoryStore()
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.Shutdown(time.Second)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		idemStore = idempotency.NewRedisStore(a.redis)
	}

	// --- Initialize Fiber App ---
	a.Fiber = fiber.New(fiber.Config{
		AppName:               "shoestore",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	a.Fiber.Use(recover.New())
	a.Fiber.Use(logger.New())

	a.Fiber.Get("/health", a.handleHealth)

	handlers.RegisterRoutes(a.Fiber.Group("/api/v1"), handlers.Dependencies{
		Products:         services.NewProductService(a.store.Products()),
		Carts:            services.NewCartService(a.store),
		Discounts:        services.NewDiscountService(a.store.DiscountCodes()),
		Orders:           services.NewOrderService(a.store, publisher, log),
		IdempotencyStore: idemStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		JWTSecret:        cfg.JWTSecret,
		Logger:           log,
	})

	return a, nil
}

func (a *App) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, dbState := fiber.StatusOK, "up"
	if err := a.store.Ping(ctx); err != nil {
		a.logger.Warn("health check database ping failed", zap.Error(err))
		status, dbState = fiber.StatusServiceUnavailable, "down"
	}
	health := "healthy"
	if status != fiber.StatusOK {
		health = "unhealthy"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   health,
		"database": dbState,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// Shutdown stops the HTTP server and releases every connection in reverse
// order of acquisition.
func (a *App) Shutdown(timeout time.Duration) error {
	var errs []error
	if a.Fiber != nil {
		if err := a.Fiber.ShutdownWithTimeout(timeout); err != nil {
			errs = append(errs, fmt.Errorf("fiber: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.producer != nil {
		a.producer.Close()
	}
	if a.mqClient != nil {
		if err := a.mqClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rabbitmq: %w", err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// auditHandler logs every order event read back from the queue.
func auditHandler(log *zap.Logger) func(amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		event, err := events.Decode(msg.Body)
		if err != nil {
			return err
		}
		log.Info("order event",
			zap.String("event_id", event.EventID),
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.String("status", event.Status),
			zap.String("previous_status", event.PreviousStatus),
			zap.String("actor", event.Actor),
		)
		return nil
	}
}

// seedDemoData populates an empty catalog with a few products, a discount
// code and two accounts.
func seedDemoData(ctx context.Context, store repositories.Store, log *zap.Logger) error {
	existing, err := store.Products().GetAll(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	return store.WithinTransaction(ctx, func(tx repositories.Store) error {
		users := []models.User{
			{Email: "customer@shoestore.local", FirstName: "Demo", LastName: "Customer", Role: models.RoleCustomer},
			{Email: "admin@shoestore.local", FirstName: "Demo", LastName: "Admin", Role: models.RoleAdmin},
		}
		for i := range users {
			if _, err := tx.Users().GetByEmail(ctx, users[i].Email); err == nil {
				continue
			} else if !errors.Is(err, repositories.ErrRecordNotFound) {
				return err
			}
			if err := tx.Users().Create(ctx, &users[i]); err != nil {
				return err
			}
			log.Info("seeded user", zap.String("email", users[i].Email), zap.String("id", users[i].ID))
		}

		products := []models.Product{
			{Name: "Court Classic", Model: "CC-1", Description: "Leather court sneaker", Price: decimal.RequireFromString("89.90"),
				Variants: []models.Variant{{Size: "41", Color: "white", Quantity: 12}, {Size: "42", Color: "white", Quantity: 10}, {Size: "43", Color: "black", Quantity: 6}}},
			{Name: "Trail Pro", Model: "TP-2", Description: "Waterproof trail runner", Price: decimal.RequireFromString("129.00"),
				Variants: []models.Variant{{Size: "42", Color: "olive", Quantity: 8}, {Size: "44", Color: "olive", Quantity: 4}}},
			{Name: "City Loafer", Model: "CL-7", Description: "Suede loafer", Price: decimal.RequireFromString("74.50"),
				Variants: []models.Variant{{Size: "39", Color: "brown", Quantity: 5}, {Size: "40", Color: "brown", Quantity: 5}}},
		}
		for i := range products {
			if err := tx.Products().Create(ctx, &products[i]); err != nil {
				return err
			}
			log.Info("seeded product", zap.String("name", products[i].Name), zap.String("id", products[i].ID))
		}

		return tx.DiscountCodes().Create(ctx, &models.DiscountCode{
			Code:               "WELCOME10",
			DiscountPercentage: decimal.NewFromInt(10),
			ExpiryDate:         time.Now().AddDate(1, 0, 0),
			IsActive:           true,
			MinOrderAmount:     decimal.NewFromInt(50),
			MaxDiscountAmount:  decimal.NewNullDecimal(decimal.NewFromInt(25)),
		})
	})
}
