package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"codeshare/internal/app"
	"codeshare/pkg/config"
)

// build metadata - set via ldflags during release
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	addr := flag.String("addr", "", "listen address, overrides config")
	dbPath := flag.String("db", "", "pebble database path, overrides config")
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// flags win over env and config file
	if *addr != "" {
		cfg.Server.Address = *addr
		cfg.Server.Port = 0
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}

	a, err := app.New(cfg, version)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
