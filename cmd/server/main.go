/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the bonus engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Load tier configuration
  4. Create API handler with dependencies
  5. Start sweep scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: bonus.db)
           Use ":memory:" for in-memory database
  -tiers   Tier table JSON path (default: built-in table)
  -notify  Comma-separated notification recipients

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/bonus.db"

  # Run with a custom tier table
  ./server -tiers="./config/tiers.json"

  # Run on different port
  ./server -port=3000

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
	"strings"
	"syscall"
	"time"

	"github.com/warp/bonus-engine/api"
	"github.com/warp/bonus-engine/bonus"
	"github.com/warp/bonus-engine/factory"
	"github.com/warp/bonus-engine/notify"
	"github.com/warp/bonus-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "bonus.db", "SQLite database path")
	tiersPath := flag.String("tiers", "", "tier table JSON path (empty = built-in table)")
	recipients := flag.String("notify", "", "comma-separated notification recipients")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Tier configuration
	var tiers bonus.TierTable
	if *tiersPath != "" {
		tiers, err = factory.LoadTierTable(*tiersPath)
		if err != nil {
			log.Fatalf("Failed to load tier table %s: %v", *tiersPath, err)
		}
		log.Printf("Loaded tier table from %s", *tiersPath)
	} else {
		tiers = factory.DefaultTierTable()
	}

	var to []string
	if *recipients != "" {
		to = strings.Split(*recipients, ",")
	}

	// Initialize handler
	handler := api.NewHandler(store, tiers, notify.NewLogNotifier(), to)

	// Background sweep keeps bonus records current on closing days
	scheduler := api.NewSweepScheduler(handler)
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
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
