package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/feastline/feastline/server/internal/api"
	"github.com/feastline/feastline/server/internal/auth"
	"github.com/feastline/feastline/server/internal/config"
	"github.com/feastline/feastline/server/internal/hub"
	"github.com/feastline/feastline/server/internal/track"
	"github.com/feastline/feastline/server/internal/webhook"
	"github.com/feastline/feastline/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("feastline-hub starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"heartbeat_interval", cfg.Server.Hub.HeartbeatInterval,
		"heartbeat_timeout", cfg.Server.Hub.HeartbeatTimeout(),
		"send_buffer", cfg.Server.Hub.SendBuffer,
		"webhooks", len(cfg.Server.Webhooks),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Driver location store with background TTL eviction.
	locations := track.New(cfg.Server.Locations.TTL)
	go locations.Run(ctx)

	// Webhook sink — secondary consumer of every emitted event.
	sink := webhook.New(cfg.Server.Webhooks)

	// Notification hub: registry + router behind the Emit entry point.
	h := hub.New(sink)
	go h.Run(ctx)

	wsHandler := ws.NewHandler(h, locations, ws.Tuning{
		HeartbeatInterval: cfg.Server.Hub.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Server.Hub.HeartbeatTimeout(),
		SendBuffer:        cfg.Server.Hub.SendBuffer,
	})

	// Config hot-reload: liveness tuning applies to connections accepted
	// after the change; webhook targets swap immediately. Listener and auth
	// changes need a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			wsHandler.SetTuning(ws.Tuning{
				HeartbeatInterval: next.Server.Hub.HeartbeatInterval,
				HeartbeatTimeout:  next.Server.Hub.HeartbeatTimeout(),
				SendBuffer:        next.Server.Hub.SendBuffer,
			})
			sink.SetTargets(next.Server.Webhooks)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	authMW := auth.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	// Combined HTTP server: WebSocket endpoint + REST API on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/ws", wsHandler)
	httpMux.Handle("/", api.New(h, locations, authMW))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("feastline-hub shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
