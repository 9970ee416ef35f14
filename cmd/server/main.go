/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Read environment config, then command-line flags (flags win)
  2. Initialize SQLite store and migrate the schema
  3. Seed the default leave catalog (idempotent upserts)
  4. Configure HTTP router and start the accrual scheduler
  5. Start server with graceful shutdown

CONFIGURATION:
  Environment variables (prefix LEAVE_):
    LEAVE_PORT          HTTP server port (default: 8080)
    LEAVE_DB            SQLite database path (default: leave.db)
    LEAVE_ANNUAL_DAYS   Yearly paid-leave entitlement (default: 25)
    LEAVE_SCHEDULER     Enable the accrual scheduler (default: true)
  Flags -port, -db, -annual-days override the environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the accrual scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/store/sqlite"
)

// Config is read from LEAVE_* environment variables.
type Config struct {
	Port       int     `default:"8080"`
	DB         string  `default:"leave.db"`
	AnnualDays float64 `default:"25" split_words:"true"`
	Scheduler  bool    `default:"true"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("leave", &cfg); err != nil {
		log.Fatalf("Failed to read configuration: %v", err)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB, "SQLite database path")
	annualDays := flag.Float64("annual-days", cfg.AnnualDays, "Yearly paid-leave entitlement in days")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed the default leave catalog (upserts, safe on restart)
	if err := factory.SeedDefaults(context.Background(), store); err != nil {
		log.Fatalf("Failed to seed leave catalog: %v", err)
	}

	// Wire handler and router
	handler := api.NewHandler(store)
	router := api.NewRouter(handler)

	// Accrual scheduler
	scheduler := api.NewAccrualScheduler(handler, decimal.NewFromFloat(*annualDays))
	scheduler.Enabled = cfg.Scheduler
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
