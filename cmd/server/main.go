package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/netgrid/mesh-acl-manager/internal/api"
	"github.com/netgrid/mesh-acl-manager/internal/config"
	"github.com/netgrid/mesh-acl-manager/internal/rules"
	"github.com/netgrid/mesh-acl-manager/internal/service"
	"github.com/netgrid/mesh-acl-manager/internal/storage/sql"
	"github.com/netgrid/mesh-acl-manager/internal/upstream"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg.Log)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if err := os.MkdirAll("data", 0755); err != nil {
			log.Fatal().Err(err).Msg("failed to create data directory")
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	// Initialize upstream controller client (or file shim for testing)
	var client upstream.InventoryClient
	if cfg.UseFileShim() {
		log.Info().Str("path", cfg.Upstream.FileShim).Msg("using file shim for upstream inventory")
		client = upstream.NewFileShim(cfg.Upstream.FileShim)
	} else {
		c, err := upstream.New(cfg.Upstream.URL, cfg.Upstream.Token)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize upstream client")
		}
		client = c
	}

	// Initialize services
	dirSync := service.NewDirectorySync(store, client, cfg.Sync.Debounce, cfg.Sync.AutoSync, log)
	aclService := service.NewACLService(store, log)
	ruleService := rules.New(store)

	// Create router
	router := api.NewRouter(store, aclService, ruleService, dirSync, cfg.Sync.BootstrapAPIKey, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", cfg.Server.Addr()).Msg("starting mesh ACL manager")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Pull the directory once at startup so the API has inventory to serve
	if cfg.Sync.AutoSync {
		go func() {
			if err := dirSync.ForceSync(context.Background()); err != nil {
				log.Warn().Err(err).Msg("initial directory sync failed")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = zerolog.New(os.Stderr)
	if cfg.Pretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return out.Level(level).With().Timestamp().Logger()
}
