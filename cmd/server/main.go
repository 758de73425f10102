/*
main.go - Application entry point

PURPOSE:
  Starts the vote rotation engine: the boundary scheduler that resets the
  daily/weekly/monthly counters and records winners, plus a small admin API.

STARTUP SEQUENCE:
  1. Load .env (if present), flags and config
  2. Initialize SQLite document store
  3. Build one rotation job per period kind
  4. Start the scheduler
  5. Start HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a config file (default: ./config/config.yaml or ./config.yaml if present)
  -port    HTTP server port, overrides server.address
  -db      SQLite database path, overrides store.path
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (in-flight rotation runs finish)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with in-memory database, no automatic rotations
  ROTATION_SCHEDULE_ENABLED=false ./server -db=":memory:"

  # Stricter monthly bar
  ROTATION_ROTATION_MONTHLY_MINIMUMVOTES=10 ./server

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/scheduler.go: Boundary trigger
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/warp/rotation-engine/api"
	"github.com/warp/rotation-engine/config"
	"github.com/warp/rotation-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides server.address)")
	dbPath := flag.String("db", "", "SQLite database path (overrides store.path)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Address = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.Store.Path, cfg.Store.MaxBatchOps)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Rotation jobs and their trigger
	jobs, err := cfg.Jobs(store)
	if err != nil {
		log.Fatalf("Invalid rotation settings: %v", err)
	}
	loc, _ := cfg.Location()
	weekStart, _ := cfg.WeekStart()

	scheduler := api.NewRotationScheduler(jobs, loc, weekStart)
	scheduler.Retries = cfg.Schedule.Retries
	scheduler.RetryDelay = cfg.Schedule.RetryDelay
	scheduler.Enabled = cfg.Schedule.Enabled
	scheduler.Start()

	handler := api.NewHandler(store, scheduler)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s (timezone %s, week starts %s)", cfg.Server.Address, loc, weekStart)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
