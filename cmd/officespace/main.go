package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iammatthias/office-space/internal/config"
	"github.com/iammatthias/office-space/internal/observability"
	"github.com/iammatthias/office-space/pkg/cache"
	"github.com/iammatthias/office-space/pkg/dashboard"
	"github.com/iammatthias/office-space/pkg/remote"
	"github.com/iammatthias/office-space/pkg/sensors"
	"github.com/iammatthias/office-space/pkg/syncer"
)

const (
	version = "0.1.0"
)

func main() {
	fmt.Printf("office-space v%s\n", version)
	fmt.Println("Environmental sensor dashboard")
	fmt.Println()

	// Load configuration
	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Configuration loaded:")
	log.Printf("  Listen Address: %s", cfg.Server.ListenAddr)
	log.Printf("  Cache Path: %s (generation %d)", cfg.Cache.Path, cfg.Cache.Generation)
	log.Printf("  Remote DB: %s", cfg.Sync.RemoteDBPath)
	log.Printf("  Page Size: %d", cfg.Sync.PageSize)
	log.Printf("  Refresh Interval: %s", cfg.Sync.RefreshInterval)

	metrics := observability.NewMetrics()

	// Open the local series cache
	store, err := cache.New(cfg.ToCacheConfig())
	if err != nil {
		log.Fatalf("Failed to open series cache: %v", err)
	}
	defer store.Close()

	// Open the remote sensor store
	fetcher, err := remote.Open(cfg.Sync.RemoteDBPath)
	if err != nil {
		log.Fatalf("Failed to open remote store: %v", err)
	}
	defer fetcher.Close()

	// One sync controller per registered sensor
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controllers := make(map[string]*syncer.Controller)
	for _, d := range sensors.All() {
		ctrl := syncer.New(syncer.Config{
			SeriesID: d.ID,
			PageSize: cfg.Sync.PageSize,
			Throttle: cfg.Sync.Throttle,
		}, fetcher, store, metrics)
		controllers[d.ID] = ctrl

		go ctrl.Run(ctx, cfg.Sync.RefreshInterval)
	}
	log.Printf("Started %d series controllers", len(controllers))

	// Create dashboard server
	log.Println("Starting dashboard server...")
	server := dashboard.NewServer(cfg.Server.ListenAddr, controllers, metrics)

	go func() {
		log.Printf("Dashboard listening on %s", cfg.Server.ListenAddr)
		if err := server.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped successfully")
}
