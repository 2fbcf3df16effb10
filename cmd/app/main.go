package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"minigame_bot/internal/auth"
	"minigame_bot/internal/config"
	"minigame_bot/internal/dispatcher"
	"minigame_bot/internal/engine"
	"minigame_bot/internal/gateway"
	httpServer "minigame_bot/internal/http"
	"minigame_bot/internal/logger"
	"minigame_bot/internal/scheduler"
	"minigame_bot/internal/session"
	"minigame_bot/internal/store"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	auth.InitJWT(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("store open failed", "backend", cfg.StoreBackend, "error", err)
	}
	defer st.Close()
	logger.Info("store opened", "backend", cfg.StoreBackend)

	locks := store.NewKeyLocks(cfg.Timeouts.LockWait)
	reg := engine.NewRegistry(cfg.Timeouts)
	sched := scheduler.New()

	// the gateway's handler closes over the dispatcher, which is built
	// after the manager; the closure only runs once gw.Run starts
	var disp *dispatcher.Dispatcher
	gw := gateway.New(cfg.GatewayURL, cfg.GatewayToken, func(ctx context.Context, ev session.CommandEvent) {
		disp.Handle(ctx, ev)
	})
	mgr := session.NewManager(st, locks, reg, sched, gw, cfg.Timeouts)
	disp = dispatcher.New(mgr)

	if err := mgr.Restore(ctx); err != nil {
		logger.Warn("restore failed", "error", err)
	}

	go gw.Run(ctx)
	go mgr.RunReaper(ctx)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	httpServer.RegisterRoutes(r, st, mgr, version)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}
	go func() {
		logger.Info("admin server started", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	mgr.Shutdown()

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}
