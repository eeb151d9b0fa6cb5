package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/speaco/backend/internal/config"
	"github.com/zhouzirui/speaco/backend/internal/handler"
	"github.com/zhouzirui/speaco/backend/internal/handler/ws"
	chatService "github.com/zhouzirui/speaco/backend/internal/service/chat"
	"github.com/zhouzirui/speaco/backend/internal/storage/backup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "speaco: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load .env file
	dotenvErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ApplyArgs(os.Args[1:]); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
		logger.Warn("failed to load .env file, continuing with system environment variables only", zap.Error(dotenvErr))
	}

	store, err := backup.Open(cfg.Backup.Driver, cfg.Backup.Path, logger.Named("backup"))
	if err != nil {
		return fmt.Errorf("failed to open backup store: %w", err)
	}
	gateway := backup.NewGateway(store, logger.Named("backup"))
	defer gateway.Close()

	hub := ws.NewHub(cfg.Server.SendQueueSize, logger.Named("websocket"))
	engine := chatService.NewEngine(hub,
		chatService.WithLimits(cfg.Limits.Protocol()),
		chatService.WithLogger(logger.Named("engine")),
		chatService.WithPersister(gateway),
	)
	engine.Restore(gateway.Load())

	wsHandler := ws.NewWebSocketHandler(hub, engine, cfg.Limits.EventSize, logger.Named("websocket"))
	router := handler.NewRouter(engine, wsHandler, cfg.Server.WSPath, logger.Named("http"))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("speaco listening", zap.String("addr", srv.Addr), zap.String("path", cfg.Server.WSPath))
	return runServer(ctx, srv, func(shutdownCtx context.Context) {
		hub.Stop()
		engine.Shutdown()
		if err := hub.Wait(shutdownCtx); err != nil {
			logger.Warn("connections did not drain in time", zap.Int("remaining", hub.Len()), zap.Error(err))
		}
	}, cfg.Server.ShutdownTimeout)
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

// runServer serves until ctx is cancelled, then stops the chat before the HTTP server.
func runServer(ctx context.Context, srv *http.Server, beforeShutdown func(context.Context), timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		beforeShutdown(shutdownCtx)
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
