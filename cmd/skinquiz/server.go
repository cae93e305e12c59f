package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/baseplus/skinquiz/internal/api"
	"github.com/baseplus/skinquiz/internal/catalog"
	"github.com/baseplus/skinquiz/internal/checkout"
	"github.com/baseplus/skinquiz/internal/config"
	"github.com/baseplus/skinquiz/internal/reconcile"
	"github.com/baseplus/skinquiz/internal/records"
	"github.com/baseplus/skinquiz/internal/saga"
	"github.com/baseplus/skinquiz/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the checkout HTTP API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

// newCoordinator wires the saga to the configured backends. nav decides
// what the final redirect does. The store records attempts and queues
// failed side records.
func newCoordinator(cfg config.Config, nav checkout.Navigator, store *storage.Store) *saga.Coordinator {
	return saga.New(saga.Deps{
		Catalog:     catalog.NewClient(cfg.Services.BaseURL),
		Tracker:     records.NewTracker(cfg.Analytics.Endpoint, cfg.Analytics.Token),
		Records:     records.NewClient(cfg.Services.BaseURL),
		Redirector:  checkout.NewRedirector(cfg.Storefront.BaseURL, cfg.Storefront.BundleSKU, nav),
		Ledger:      store,
		Retries:     store,
		CallTimeout: cfg.Saga.Timeout(),
	})
}

func newReconcileWorker(cfg config.Config, store *storage.Store) *reconcile.Worker {
	return reconcile.NewWorker(
		store,
		records.NewTracker(cfg.Analytics.Endpoint, cfg.Analytics.Token),
		records.NewClient(cfg.Services.BaseURL),
		cfg.Saga.PollInterval(),
	)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIToken(); err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)
	slog.Info("starting skinquiz", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	// The browser performs the redirect; the API hands it the URL.
	coord := newCoordinator(cfg, &checkout.Capture{}, store)

	handler := api.NewAppHandler(api.AppDeps{
		Saga:     coord,
		Attempts: store,
		Retries:  store,
		Token:    cfg.API.Token,
	})

	go newReconcileWorker(cfg, store).Run(ctx)
	slog.Info("reconcile worker started")

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs stay on stderr.
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Saga:     newCoordinator(cfg, &checkout.Capture{}, store),
		Attempts: store,
	})
	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Quiz services", "%s", cfg.Services.BaseURL)
	printStatus("Storefront", "%s", cfg.Storefront.BaseURL)
	printStatus("Analytics", "%s", cfg.Analytics.Endpoint)
	if cfg.Analytics.Token == "" {
		printWarning("analytics token not set; events may be rejected")
	}
	if cfg.API.Token == "" {
		printWarning("API token not set; serve will refuse to start")
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
