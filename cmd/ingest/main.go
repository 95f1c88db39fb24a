package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/n1fdx/spotstream/internal/config"
	"github.com/n1fdx/spotstream/internal/db"
	"github.com/n1fdx/spotstream/internal/feed"
	"github.com/n1fdx/spotstream/internal/observability"
	"github.com/n1fdx/spotstream/internal/pipeline"
)

func main() {
	if err := runIngest(); err != nil {
		log.Printf("Ingest failed: %v", err)
		os.Exit(1)
	}
}

// runIngest contains the main application logic and can be tested
func runIngest() error {
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

	// Connect the feed transport through the reconnecting source
	transport := feed.NewNATSTransport(cfg.NATSURL, cfg.FeedSubject, cfg.FeedName)
	source := feed.NewSource(transport)

	p := pipeline.New(source, store, pipeline.Config{
		BatchSize:      cfg.BatchSize,
		BatchTimeout:   cfg.BatchTimeout,
		BufferCapacity: cfg.BufferCapacity,
		Parallelism:    cfg.Parallelism,
		DrainTimeout:   cfg.DrainTimeout,
	}, observability.NewMetrics())

	p.Start()

	// Serve Prometheus metrics
	go serveMetrics(cfg.MetricsAddr)

	// Periodic stats logging
	statsDone := make(chan struct{})
	go logStats(p, statsDone)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	close(statsDone)
	p.Stop()

	return nil
}

// serveMetrics exposes the Prometheus registry over HTTP
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server failed: %v", err)
	}
}

// logStats prints processing statistics once a minute until done is closed
func logStats(p *pipeline.Pipeline, done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Printf("Stats: processed=%d batches=%d dropped=%d",
				p.GetSpotsProcessed(), p.GetBatchesPersisted(), p.GetDroppedMessages())
		case <-done:
			return
		}
	}
}
