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

	"freshkeep-api/internal/cache"
	"freshkeep-api/internal/config"
	"freshkeep-api/internal/handler"
	"freshkeep-api/internal/middleware"
	"freshkeep-api/internal/repository"
	"freshkeep-api/internal/router"
	"freshkeep-api/internal/service"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting FreshKeep API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize the inventory store based on config
	var store repository.Store
	switch cfg.StoreDB.Type {
	case "memory":
		store = repository.NewMemoryStore()
		log.Println("In-memory store initialized")
	case "mongodb", "mongo":
		mongoStore, err := repository.NewMongoStore(
			cfg.StoreDB.MongoURI,
			cfg.StoreDB.MongoDatabase,
		)
		if err != nil {
			log.Fatalf("Failed to initialize MongoDB: %v", err)
		}
		store = mongoStore
		log.Println("MongoDB store initialized")
	case "postgres", "postgresql":
		pgStore, err := repository.NewPostgresStore(cfg.StoreDB.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		store = pgStore
		log.Println("PostgreSQL store initialized")
	default: // sqlite
		sqliteStore, err := repository.NewSQLiteStore(cfg.StoreDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite store initialized")
	}
	defer store.Close()

	// Initialize Redis client (optional; in-memory fallbacks take over)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddress(),
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		redisClient = nil
	} else {
		log.Println("Redis client initialized")
	}
	cancel()

	// Pick the cache backend for sessions and the expiring projection
	var appCache cache.Cache
	if redisClient != nil {
		appCache = cache.NewRedisCache(redisClient, "freshkeep:")
	} else {
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		appCache = memCache
	}

	// Initialize services
	notifier := service.NewChangeNotifier()
	historyRecorder := service.NewHistoryRecorder(store)

	undoService := service.NewUndoService(store, historyRecorder, notifier, cfg.Undo.Window)
	defer undoService.Stop()

	inventoryService := service.NewInventoryService(store, historyRecorder, undoService, notifier)
	backupService := service.NewBackupService(store, historyRecorder, notifier)

	expiryService := service.NewExpiryService(store, appCache, notifier, cfg.Expiry.WindowDays, cfg.Expiry.CacheTTL)
	defer expiryService.Close()

	recipeService := service.NewRecipeService(
		cfg.AI.Endpoint,
		cfg.AI.APIKey,
		cfg.AI.Timeout,
		cfg.AI.FreeLimit,
		redisClient,
	)
	sessionService := service.NewSessionService(appCache, cfg.Cache.SessionTTL)

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version)
	itemHandler := handler.NewItemHandler(inventoryService, expiryService)
	historyHandler := handler.NewHistoryHandler(historyRecorder, undoService)
	backupHandler := handler.NewBackupHandler(backupService)
	recipeHandler := handler.NewRecipeHandler(recipeService, inventoryService)
	authHandler := handler.NewAuthHandler(sessionService)
	adminHandler := handler.NewAdminHandler(store)

	// Create session middleware with injected dependencies (NO GLOBALS!)
	sessionMiddleware := middleware.NewSessionMiddleware(middleware.SessionConfig{
		Sessions:            sessionService,
		AllowHeaderIdentity: cfg.App.IsDevelopment(),
	})

	// Create router
	r := router.New(router.Config{
		Handler:           healthHandler,
		ItemHandler:       itemHandler,
		HistoryHandler:    historyHandler,
		BackupHandler:     backupHandler,
		RecipeHandler:     recipeHandler,
		AuthHandler:       authHandler,
		AdminHandler:      adminHandler,
		SessionMiddleware: sessionMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
