package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cargoflow/audittrail/internal/config"
	"github.com/cargoflow/audittrail/internal/database"
	"github.com/cargoflow/audittrail/internal/logger"
	"github.com/cargoflow/audittrail/internal/server"
	"github.com/cargoflow/audittrail/internal/services"
	"github.com/cargoflow/audittrail/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Logging with rotation, to both stdout and file.
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Fatalf("ensure log directory: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "audittrail.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	logger.Log().Infof("starting %s version %s", version.Name, version.Full())

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	srv, err := server.New(db, cfg)
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	rollup := services.NewRollupService(db)
	if err := rollup.Start(); err != nil {
		log.Fatalf("start stats rollup: %v", err)
	}
	defer rollup.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log().Infof("listening on :%s", cfg.HTTPPort)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
