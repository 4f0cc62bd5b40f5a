package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pocketlm/core/internal/analysis/history"
	"github.com/pocketlm/core/internal/config"
	"github.com/pocketlm/core/internal/handler"
	"github.com/pocketlm/core/internal/middleware"
	"github.com/pocketlm/core/internal/model/chat"
	"github.com/pocketlm/core/internal/model/llm"
	chatService "github.com/pocketlm/core/internal/service/chat"
	"github.com/pocketlm/core/internal/service/prompt"
	"github.com/pocketlm/core/internal/service/runtime"
	"github.com/pocketlm/core/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using system environment", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	st, err := openStore(cfg.Storage)
	if err != nil {
		slog.Error("failed to open transcript store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	catalog := llm.NewMemoryStore(llm.Seed())

	registry := prompt.NewRegistry(prompt.Builtins()...)
	if cfg.Templates.OverlayPath != "" {
		if err := prompt.ApplyOverlay(registry, cfg.Templates.OverlayPath); err != nil {
			slog.Error("failed to apply template overlay", "path", cfg.Templates.OverlayPath, "err", err)
			os.Exit(1)
		}
		slog.Info("template overlay applied", "path", cfg.Templates.OverlayPath)
	}
	engine := prompt.NewEngine(registry)

	chatSvc := chatService.NewService(st, catalog)

	// The runtime is optional: without one the API still serves
	// transcripts and prompt previews, only generation is off.
	var rt *runtime.Client
	if cfg.Runtime.BaseURL != "" {
		rt = runtime.NewClient(cfg.Runtime.BaseURL, cfg.Runtime.Timeout)
		slog.Info("runtime configured", "baseURL", cfg.Runtime.BaseURL, "stream", cfg.Runtime.Stream)
	} else {
		slog.Warn("no runtime configured, generation endpoints disabled")
	}

	router := handler.NewRouter(catalog, chatSvc, engine, rt, handler.Options{
		History: history.Options{
			ShowUserNames: cfg.History.ShowUserNames,
			DateFormat:    cfg.History.DateFormat,
			TimeFormat:    cfg.History.TimeFormat,
		},
		Overrides: cfg.Sampling.Options(),
		Streaming: cfg.Runtime.Stream,
		Assistant: chat.User{ID: "assistant", FirstName: cfg.AssistantName},
		Limits: middleware.LimitConfig{
			RPS:   cfg.Limits.RPS,
			Burst: cfg.Limits.Burst,
		},
	})

	startServer(ctx, cfg.Server, router)
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	if cfg.DBPath == "" {
		slog.Info("using in-memory transcript store")
		return store.NewMemory(), nil
	}
	slog.Info("using sqlite transcript store", "path", cfg.DBPath)
	return store.NewSQLite(cfg.DBPath)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr, err := serverCfg.Addr()
	if err != nil {
		slog.Error("invalid listen address", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("pocketlm api listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
