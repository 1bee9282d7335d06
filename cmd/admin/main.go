package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"coursetrack/internal/attendance"
	"coursetrack/internal/config"
	"coursetrack/internal/logging"
	"coursetrack/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Production())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}

	cli := commandLine{
		svc:      attendance.NewService(attendance.NewRepository(db.Client)),
		migrator: db,
		log:      logger,
	}
	err = cli.run(context.Background(), os.Args)
	_ = db.Close()
	_ = logger.Sync()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
