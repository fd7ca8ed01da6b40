package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	_ "github.com/Himu336/MockManch-Backend-Gateway/docs"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/aiclient"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/catalog"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/config"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/db"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/events"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/purchase"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/room"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/server"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/wallet"
)

// @title MockManch Gateway API
// @version 1.0
// @description Token wallet, ledger and charge-gated interview practice endpoints.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	logger.Info("Starting MockManch gateway")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalogService := catalog.NewService(catalog.NewRepository(database), cfg.CatalogCacheTTL)
	if err := catalogService.SeedDefaults(ctx); err != nil {
		logger.Fatalf("Failed to seed service costs: %v", err)
	}

	publisher := events.New(cfg.KafkaBrokers, cfg.LedgerEventsTopic)
	defer publisher.Close()

	wallets := wallet.NewManager(database, wallet.NewRepository(), catalogService,
		wallet.WithWelcomeTokens(cfg.WelcomeTokens),
		wallet.WithPublisher(publisher),
	)
	purchases := purchase.NewProcessor(purchase.NewRepository(database), catalogService, wallets)

	aiTimeouts := make(map[aiclient.Endpoint]time.Duration, len(aiclient.InterviewEndpoints))
	for _, ep := range aiclient.InterviewEndpoints {
		aiTimeouts[ep] = cfg.AIServiceTimeout
	}
	ai := aiclient.New(aiclient.Config{
		BaseURL:    cfg.AIServiceURL,
		MaxRetries: cfg.AIServiceMaxRetries,
		Timeouts:   aiTimeouts,
	})

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	rooms := room.NewService(room.NewRepository(database), room.NewRedisBroadcaster(rdb))

	srv := server.New(server.Deps{
		Config:    cfg,
		Catalog:   catalogService,
		Wallets:   wallets,
		Purchases: purchases,
		AI:        ai,
		Rooms:     rooms,
		Checks: []server.Check{
			{Name: "postgres", Fn: database.PingContext},
			{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
			{Name: "ai_service", Fn: func(context.Context) error {
				if !ai.Available() {
					return aiclient.ErrCircuitOpen
				}
				return nil
			}},
		},
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
