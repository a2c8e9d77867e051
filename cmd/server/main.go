package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httpadapter "cv-builder/internal/adapter/http"
	"cv-builder/internal/app"
	"cv-builder/internal/config"
	"cv-builder/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CVBUILDER_CONFIG")
	if cfgPath == "" {
		cfgPath = "cvbuilder.yml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	a, err := app.Open(ctx, cfg, logger, httpadapter.LogNotifier{Log: logger.Named("notify")}, nil)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	srv := fiber.New(fiber.Config{DisableStartupMessage: true})
	httpadapter.NewHandler(a.Builder, a.Sessions, logger).Register(srv)

	go func() {
		logger.Info("form server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.Listen(":" + cfg.Server.Port); err != nil {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	if err := srv.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
