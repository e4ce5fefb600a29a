package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/SeanMcGrath/ScopeOut"
)

func main() {
	cfg, err := scopeout.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	eng, err := scopeout.NewEngine(cfg)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("engine exited: %v", err)
	}
}
