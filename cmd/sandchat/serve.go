package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/firespoon/sandchat/api/config"
	"github.com/firespoon/sandchat/api/sandbox"
	"github.com/firespoon/sandchat/api/server"
	"github.com/firespoon/sandchat/api/services"
	"github.com/firespoon/sandchat/api/store"
	"github.com/firespoon/sandchat/api/ws"
	"github.com/firespoon/sandchat/pkg/otel"
	"github.com/firespoon/sandchat/shared/db"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the backend server",
		Long: `Start the sandchat backend: the REST API, the browser WebSocket, the
internal container WebSocket, and the idle-container reaper.

Required configuration:
  SANDCHAT_JWT_SECRET      signing secret for access and container tokens
  SANDCHAT_ENCRYPTION_KEY  64-char hex key for provider API keys at rest

Common options:
  SANDCHAT_POSTGRES_URL    database (default local sandchat)
  SANDCHAT_CONTAINER_IMAGE agent image started per conversation
  SANDCHAT_DOCKER_HOST     docker socket path or tcp:// endpoint`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	cfg := config.Load()

	if cfg.Otel.Endpoint != "" {
		result, err := otel.Init(otel.Config{
			ServiceName:  "sandchat-api",
			Environment:  cfg.Otel.Environment,
			OTLPEndpoint: cfg.Otel.Endpoint,
		})
		if err != nil {
			slog.Error("failed to initialize opentelemetry", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				result.Shutdown(shutdownCtx)
			}()
			slog.SetDefault(result.Logger)
			slog.Info("opentelemetry initialized", "endpoint", cfg.Otel.Endpoint)
		}
	} else {
		slog.SetDefault(slog.New(otel.NewPrettyHandler()))
	}

	slog.Info("starting sandchat backend", "host", cfg.Server.Host, "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := db.Connect(ctx, db.Config{
		URL:      cfg.Database.URL,
		Timezone: "UTC",
		MaxConns: int32(cfg.Database.MaxConns),
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	s := store.New(pool)
	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	slog.Info("database ready")

	engine, err := sandbox.NewDockerEngine(cfg.Sandbox.DockerHost)
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	defer engine.Close()
	if err := engine.Ping(ctx); err != nil {
		slog.Warn("docker daemon unreachable; container starts will fail until it is", "error", err)
	}

	registry := sandbox.NewRegistry()
	orch := sandbox.NewOrchestrator(engine, registry, sandbox.Config{
		Image:        cfg.Sandbox.Image,
		DataDir:      cfg.Sandbox.DataDir,
		BackendWSURL: cfg.Sandbox.BackendWSURL,
		JWTSecret:    cfg.Auth.JWTSecret,
		TokenTTL:     cfg.Auth.ContainerTokenTTL,
		IdleTimeout:  cfg.Sandbox.IdleTimeout,
	})

	hub := ws.NewHub()

	accountSvc := services.NewAccountService(s, cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	convSvc := services.NewConversationService(s, cfg.Sandbox.DataDir)
	providerSvc := services.NewProviderService(s, cfg.Auth.EncryptionKey)
	presetSvc := services.NewPresetService(s)
	mcpSvc := services.NewMCPService(s)

	srv := server.NewServer(cfg, s, hub, orch, accountSvc, convSvc, providerSvc, presetSvc, mcpSvc)

	// Idle reaper: containers with no activity past the timeout are stopped.
	reaper := cron.New()
	if _, err := reaper.AddFunc(fmt.Sprintf("@every %s", cfg.Sandbox.CleanupInterval), func() {
		orch.CleanupIdleContainers(ctx)
	}); err != nil {
		return fmt.Errorf("schedule idle cleanup: %w", err)
	}
	reaper.Start()
	defer reaper.Stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		slog.Info("server stopped")
		return nil
	}
}
