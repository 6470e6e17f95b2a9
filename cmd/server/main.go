/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the charge ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, .env, CONFIG_FILE, environment)
  2. Apply command-line flag overrides
  3. Build the zap logger
  4. Initialize SQLite store
  5. Build the charging program and its reward minter
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT / http.port)
  -db      SQLite database path (overrides DB_PATH / db_path)
           Use ":memory:" for in-memory database
  -dev     Enable airdrop, identity derivation and reset endpoints

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/charge-ledger.db"

  # Local demo with dev endpoints
  ./server -db=":memory:" -dev

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/warp/charge-ledger/api"
	"github.com/warp/charge-ledger/charging"
	"github.com/warp/charge-ledger/config"
	"github.com/warp/charge-ledger/logging"
	"github.com/warp/charge-ledger/rewards"
	"github.com/warp/charge-ledger/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.String("port", cfg.HTTP.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	dev := flag.Bool("dev", cfg.EnableDevEndpoints, "enable dev-only endpoints")
	flag.Parse()
	cfg.HTTP.Port, cfg.DBPath, cfg.EnableDevEndpoints = *port, *dbPath, *dev

	logger, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Program: cfg.ProgramID().String(),
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	policy, err := cfg.Rewards.Build()
	if err != nil {
		return err
	}
	minter := rewards.NewMinter(policy, rewards.NewMintAuthority(cfg.MintAuthority()))

	program := charging.NewProgram(charging.Options{
		ProgramID: cfg.ProgramID(),
		Store:     store,
		Rent:      cfg.Rent,
		Minter:    minter,
		Logger:    logger.Named("charging"),
	})

	handler := api.NewHandler(program, logger.Named("api"))
	handler.DefaultCreditValue = cfg.DefaultCreditValue
	handler.DevEndpoints = cfg.EnableDevEndpoints
	handler.Resetter = store

	router := api.NewRouter(handler, cfg.HTTP.CORSOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.DBPath),
			zap.Stringer("program", program.ID()),
			zap.Bool("dev_endpoints", cfg.EnableDevEndpoints),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
