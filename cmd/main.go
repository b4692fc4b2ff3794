package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marimaya/config"
	"marimaya/internal/pkg/cache"
	"marimaya/internal/pkg/database"
	"marimaya/internal/pkg/logger"

	"marimaya/internal/api/assistant"
	"marimaya/internal/api/inventory"
	"marimaya/internal/api/router"
	"marimaya/internal/repository/storerepo"
	"marimaya/internal/service/assistantservice"
	"marimaya/internal/service/inventoryservice"
)

func main() {
	// The .env file is optional; in containers the variables come from
	// the environment itself.
	if err := godotenv.Load(); err != nil {
		stdlog.Println("warning: no .env file found, loading configuration from the system environment only")
	}

	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("configuration loaded", map[string]interface{}{"env": cfg.Environment})

	// Infrastructure: record store and cache.
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to the record store", err)
	}
	defer db.Close()
	log.Info("PostgreSQL connection pool ready", nil)

	cacheClient := cache.NewRedisClient(cfg.RedisAddr)
	log.Info("Redis cache client ready", nil)

	// Dependency injection: repository -> services -> handlers.
	store := storerepo.NewStoreRepository(db, cacheClient, cfg.DBTimeout, cfg.CacheTTL, log)

	engine := inventoryservice.NewService(store, log)
	assistantSvc := assistantservice.NewService(
		cfg.AssistantEndpoint, cfg.AssistantModel, cfg.AssistantAPIKey,
		cfg.AssistantTimeout, log,
	)

	inventoryHandler := inventory.NewHandler(engine, log)
	assistantHandler := assistant.NewHandler(assistantSvc, engine, log)

	// Initial load of both collections. A failure is not fatal: the
	// service starts unloaded and a later /v1/refresh can recover.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.Load(loadCtx); err != nil {
		log.Error("initial load failed, starting unloaded", err)
	}
	loadCancel()

	r := router.NewRouter(inventoryHandler, assistantHandler, cacheClient, cfg.RateLimitMaxRequests, cfg.RateLimitPeriod)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Marimaya service listening", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, stopping server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced server shutdown", err)
	}

	log.Info("server stopped", nil)
}
