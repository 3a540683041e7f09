package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/laundrydash/internal/authclient"
	"github.com/dukerupert/laundrydash/internal/config"
	"github.com/dukerupert/laundrydash/internal/database"
	"github.com/dukerupert/laundrydash/internal/handler"
	"github.com/dukerupert/laundrydash/internal/identity"
	"github.com/dukerupert/laundrydash/internal/laundry"
	"github.com/dukerupert/laundrydash/internal/logging"
	"github.com/dukerupert/laundrydash/internal/server"
	"github.com/dukerupert/laundrydash/internal/store"
	"github.com/dukerupert/laundrydash/web"
)

const cleanupInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "laundrydash.yaml", "path to the YAML config file")
	envPath := flag.String("env", ".env", "path to the .env file")
	flag.Parse()

	cfg, err := config.Load(config.Options{File: *configPath, EnvFile: *envPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "laundrydash: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("laundrydash stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	tokens, err := identity.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	provider := identity.NewProvider(
		store.NewSessionStore(db, cfg.SessionTTL),
		tokens,
		logger.With("component", "identity"),
	)

	backend := laundry.New(
		cfg.APIBase,
		authclient.NewClient(cfg.ForceTokenRefresh, cfg.APITimeout, logger.With("component", "backend")),
		&http.Client{Timeout: cfg.APITimeout},
	)

	rd, err := handler.NewRenderer(web.Templates, logger.With("component", "render"))
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	srv := server.New(provider, backend, rd, server.Options{
		GoogleClientID: cfg.GoogleClientID,
		SessionTTL:     cfg.SessionTTL,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("laundrydash running", "addr", "http://localhost:"+cfg.Port, "api_base", backend.BaseURL())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n, err := provider.ExpireSessions(); err != nil {
					logger.Error("expire sessions", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
