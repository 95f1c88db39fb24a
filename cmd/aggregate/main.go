package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/n1fdx/spotstream/internal/aggregator"
	"github.com/n1fdx/spotstream/internal/config"
	"github.com/n1fdx/spotstream/internal/db"
	"github.com/n1fdx/spotstream/internal/natsbus"
	"github.com/n1fdx/spotstream/internal/redis"
	"github.com/n1fdx/spotstream/internal/types"
)

func main() {
	if err := runAggregate(); err != nil {
		log.Printf("Aggregate failed: %v", err)
		os.Exit(1)
	}
}

// runAggregate contains the main application logic and can be tested
func runAggregate() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database client
	store, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create database client: %w", err)
	}
	defer store.Close()

	// Create Redis client for the cached snapshot
	cache, err := redis.New(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to create Redis client: %w", err)
	}
	defer cache.Close()

	// Create NATS client for change events
	bus, err := natsbus.New(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("failed to create NATS client: %w", err)
	}
	defer bus.Close()

	agg := aggregator.New(store, &fanoutNotifier{targets: []aggregator.Notifier{cache, bus}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run one cycle immediately so the cache is warm before the first tick
	if err := agg.RunCycle(ctx); err != nil {
		log.Printf("Aggregation cycle failed: %v", err)
	}

	ticker := time.NewTicker(cfg.AggregateInterval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := agg.RunCycle(ctx); err != nil {
				log.Printf("Aggregation cycle failed: %v", err)
			}
		case <-sigChan:
			log.Println("Shutting down...")
			return nil
		}
	}
}

// fanoutNotifier publishes each snapshot to every target, keeping going past
// failures so one slow sink does not starve the others.
type fanoutNotifier struct {
	targets []aggregator.Notifier
}

func (f *fanoutNotifier) PublishBandActivity(ctx context.Context, activities map[string]types.BandActivity) error {
	var firstErr error
	for _, target := range f.targets {
		if err := target.PublishBandActivity(ctx, activities); err != nil {
			log.Printf("Failed to publish band activity: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
