// Command saistats serves the analysis pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"saistats/internal/config"
	"saistats/internal/engine"
	"saistats/internal/faults"
	"saistats/internal/handoff"
	"saistats/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	store := handoff.NewStore(cfg.Handoff.TTL, log)
	store.StartSweeper(cfg.Handoff.SweepInterval)
	defer store.Close()

	invoker := engine.NewInvoker(cfg.Engine.Path, cfg.Engine.Timeout, faults.NewRegistry(), log)

	runLog, err := server.OpenRunLog(cfg.Log.Dir)
	if err != nil {
		log.Warn("run log disabled", zap.String("dir", cfg.Log.Dir), zap.Error(err))
		runLog = nil
	}

	srv := server.New(invoker, store, runLog, cfg.Upload.MaxBytes, log)
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	log.Info("server listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("engine", cfg.Engine.Path))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("listen", zap.Error(err))
	}
	log.Info("server stopped")
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
