package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/simplytransit/arrivals/internal/api"
	"github.com/simplytransit/arrivals/internal/config"
	"github.com/simplytransit/arrivals/internal/events"
	"github.com/simplytransit/arrivals/internal/feed"
	"github.com/simplytransit/arrivals/internal/metrics"
	"github.com/simplytransit/arrivals/internal/query"
	"github.com/simplytransit/arrivals/internal/reconcile"
	"github.com/simplytransit/arrivals/internal/schedule"
)

var configPath = flag.String("config", "config.yml", "path to configuration file")

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	collector := metrics.NewCollector()

	publisher, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject)
	if err != nil {
		log.Fatalf("Failed to connect event publisher: %v", err)
	}
	defer publisher.Close()

	// Initial static schedule load
	store := schedule.NewStore()
	loader := schedule.NewLoader(cfg.Dataset.Path)
	snap, err := loader.Load(context.Background())
	if err != nil {
		log.Fatalf("Failed to load initial schedule dataset: %v", err)
	}
	store.Replace(snap)
	collector.ObserveRefresh(snap.LoadedAt(), nil)

	// Realtime feed ingestor
	ingestor := feed.NewIngestor(feed.Config{
		URL:         cfg.Feed.URL,
		Timeout:     cfg.Feed.Timeout(),
		GraceWindow: cfg.Feed.GraceWindow(),
	}, collector, publisher)

	if cfg.Feed.URL != "" {
		if err := ingestor.Poll(context.Background()); err != nil {
			log.Printf("Failed to load initial realtime data: %v", err)
		}
	}

	// Reconciler and query facade
	reconciler := reconcile.New(store, ingestor, cfg.Reconcile.OnTimeBand(), cfg.Reconcile.DueThreshold(), collector)
	svc := query.NewService(store, reconciler, ingestor, cfg.Reconcile.DueThreshold(), cfg.Query.CacheSize, cfg.Query.CacheTTL())

	apiServer := api.NewServer(svc, collector.Handler())
	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: apiServer.Router(),
	}

	// Handle graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	// Static dataset refresher (nightly). A rejected refresh keeps the
	// previous snapshot serving.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.Dataset.RefreshInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				snap, err := loader.Load(context.Background())
				if err != nil {
					collector.ObserveRefresh(time.Time{}, err)
					log.Printf("Dataset refresh rejected, keeping previous snapshot: %v", err)
					publisher.Publish(events.TypeStaticRefreshFailed, err.Error())
					continue
				}
				store.Replace(snap)
				collector.ObserveRefresh(snap.LoadedAt(), nil)
				publisher.Publish(events.TypeStaticRefreshed, "")
				log.Println("Schedule dataset refreshed")
			case <-done:
				return
			}
		}
	}()

	// Realtime feed poller
	if cfg.Feed.URL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(cfg.Feed.PollInterval())
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if err := ingestor.Poll(context.Background()); err != nil {
						log.Printf("Realtime poll failed: %v", err)
					}
				case <-done:
					return
				}
			}
		}()
	}

	// Start server
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Server listening on %s", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for termination signal
	<-quit
	log.Println("Shutting down server...")

	close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	wg.Wait()
	log.Println("Server exited properly")
}
