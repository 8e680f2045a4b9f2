// cmd/meal-journal/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-journal/internal/config"
	"meal-journal/internal/logging"
	"meal-journal/internal/server"
)

const appVersion = "1.0.0"

var (
	configPath = flag.String("config", "", "Path to the YAML config (defaults to $CONFIG_FILE_PATH)")
	port       = flag.Int("port", 8011, "Port for HTTP transport")
	host       = flag.String("host", "0.0.0.0", "Host address")
	dbPath     = flag.String("db-path", "", "SQLite database path; selects the sqlite store")
	version    = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("meal-journal version " + appVersion)
		os.Exit(0)
	}

	conf, err := config.Read(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			conf.HTTP.Port = *port
		case "host":
			conf.HTTP.Host = *host
		case "db-path":
			conf.Store.Driver = config.DriverSQLite
			conf.Store.SQLite.Path = *dbPath
		}
	})
	if err := conf.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logging.InitLogger(conf.Logging, appVersion)

	srv, err := server.NewMealJournalServer(conf)
	if err != nil {
		slog.Error("Failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		slog.Info("Received shutdown signal")
	case err := <-errCh:
		slog.Error("Server error", slog.String("error", err.Error()))
	}

	slog.Info("Shutting down...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", slog.String("error", err.Error()))
	}
}
