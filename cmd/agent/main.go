// The agent is the device-side sync daemon: it owns the local SQLite
// store and runs the periodic push-then-pull cycle against the server
// while a session token is configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkarpuk/finsync/internal/localstore"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/syncclient"
)

func main() {
	configPath := parseFlags()

	serverURL, dbPath, token, logLevel, syncIntervalSecond, err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), serverURL, dbPath, token, logLevel, syncIntervalSecond); err != nil {
		log.Fatalf("agent stopped with error: %v", err)
	}
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "agent.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// parseConfig loads environment variables from a file and returns the
// agent configuration.
func parseConfig(path string) (
	serverURL, dbPath, token, logLevel string,
	syncIntervalSecond int,
	err error,
) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}

	serverURL = getEnv("AGENT_SERVER_URL", "http://localhost:8080")
	dbPath = getEnv("AGENT_DB_PATH", "finsync-agent.db")
	token = getEnv("AGENT_TOKEN", "")
	logLevel = getEnv("AGENT_LOG_LEVEL", "info")
	if syncIntervalSecond, err = strconv.Atoi(getEnv("AGENT_SYNC_INTERVAL_SECOND", "30")); err != nil {
		return
	}
	if token == "" {
		err = fmt.Errorf("AGENT_TOKEN is required")
	}

	return
}

// run opens the local store, starts the sync scheduler and blocks until a
// shutdown signal arrives. The scheduler is stopped before the store is
// closed so no cycle runs against a closed database.
func run(ctx context.Context, serverURL, dbPath, token, logLevel string, syncIntervalSecond int) error {
	if err := logger.Initialize(logLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()

	store, err := localstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Log.Infof("Local store opened at %s", dbPath)

	client := syncclient.New(store, serverURL, func(ctx context.Context) (string, error) {
		return token, nil
	}, nil)

	scheduler := syncclient.NewScheduler(client, time.Duration(syncIntervalSecond)*time.Second)
	scheduler.Start(ctx)
	defer scheduler.Stop()
	logger.Log.Infof("Sync scheduler started, interval %ds", syncIntervalSecond)

	// One immediate cycle so a fresh device hydrates without waiting
	// for the first tick.
	if result, err := client.PerformSync(ctx); err != nil {
		logger.Log.Errorw("initial sync failed", "error", err)
	} else {
		logger.Log.Infow("initial sync finished", "success", result.Success, "pulled", result.Pulled)
	}

	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	<-ctxShutdown.Done()

	logger.Log.Info("Shutdown signal received, stopping sync scheduler...")
	return nil
}
