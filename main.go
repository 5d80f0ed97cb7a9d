package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/catalog"
	"github.com/LexiconIndonesia/catalog-sync-service/common/config"
	"github.com/LexiconIndonesia/catalog-sync-service/common/crawler"
	"github.com/LexiconIndonesia/catalog-sync-service/common/db"
	"github.com/LexiconIndonesia/catalog-sync-service/common/logger"
	"github.com/LexiconIndonesia/catalog-sync-service/common/messaging"
	"github.com/LexiconIndonesia/catalog-sync-service/common/realtime"
	"github.com/LexiconIndonesia/catalog-sync-service/common/services"
	"github.com/LexiconIndonesia/catalog-sync-service/common/storage"
	"github.com/LexiconIndonesia/catalog-sync-service/common/work"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/LexiconIndonesia/catalog-sync-service/docs"
)

//go:generate swag init -g main.go -o docs

// @title       Catalog Sync Service API
// @version     1.0
// @description Product catalog kept in sync with a scraped storefront, with live change events over websocket.

// @host     localhost:8080
// @BasePath /v1
// @schemes  http https

func main() {
	// INITIATE CONFIGURATION
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Error loading .env file, using environment variables")
	}

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()
	logger.Setup(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Create a base context with cancel for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// INITIATE DATABASES
	dbConn, err := db.SetupDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup database")
	}
	defer dbConn.Close()

	products := services.NewProductRepository(dbConn.Pool, dbConn.Queries)
	manager := work.NewManager(dbConn.Redis, cfg.Sync.LockTTL)

	broadcaster := realtime.NewBroadcaster(realtime.Options{
		QueueSize:    cfg.Broadcast.QueueSize,
		WriteTimeout: cfg.Broadcast.WriteTimeout,
	})
	defer broadcaster.Close()

	// INITIATE NATS CLIENT
	var natsClient *messaging.NatsBroker
	if cfg.Nats.Enabled {
		natsClient, err = messaging.NewNatsBroker(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup NATS client")
		}
		defer natsClient.Close()

		if _, err := natsClient.EnsureEventStream(ctx, 7*24*time.Hour); err != nil {
			log.Fatal().Err(err).Msg("Failed to setup event stream")
		}
		broadcaster.SetMirror(natsClient)
	}

	// gcs
	var archive catalog.Archive
	var snapshots *storage.SnapshotArchive
	if cfg.GCS.Enabled() {
		gcsStorage, err := storage.NewGCSStorage(ctx, cfg.GCS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup GCS storage")
		}
		defer gcsStorage.Close()
		snapshots = storage.NewSnapshotArchive(gcsStorage, cfg.GCS.Bucket)
		archive = snapshots
	}

	// INITIATE SYNC PIPELINE
	browserCfg := crawler.DefaultBrowserConfig()
	browserCfg.Headless = cfg.Scraper.Headless
	browserCfg.Bin = cfg.Scraper.BrowserBin
	renderer := crawler.NewRodRenderer(browserCfg)
	defer func() {
		if err := renderer.Teardown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to close browser")
		}
	}()

	scraper := crawler.NewScraper(renderer, crawler.ScraperConfig{
		Selectors: crawler.Selectors{
			Item:  cfg.Scraper.ItemSelector,
			Name:  cfg.Scraper.NameSelector,
			Price: cfg.Scraper.PriceSelector,
		},
		RenderTimeout: cfg.Scraper.RenderTimeout,
		SettleDelay:   cfg.Scraper.SettleDelay,
	})
	syncer := catalog.NewSyncer(
		scraper,
		catalog.NewReconciler(products, broadcaster, cfg.Sync.Notify),
		manager,
		archive,
		catalog.SyncConfig{URL: cfg.Scraper.URL, Cap: cfg.Scraper.Cap},
	)
	scheduler := work.NewScheduler(syncer.RunCycle, work.SchedulerConfig{
		Interval:      cfg.Sync.Interval,
		RunOnStart:    cfg.Sync.RunOnStart,
		ShutdownGrace: cfg.Sync.ShutdownGrace,
	})

	if natsClient != nil {
		if _, err := natsClient.SubscribeSyncRequests(scheduler.Trigger); err != nil {
			log.Fatal().Err(err).Msg("Failed to subscribe to sync requests")
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	// INITIATE SERVER
	server, err := NewAppHttpServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the server")
	}

	// Inject dependencies
	server.SetDB(dbConn)
	server.SetProducts(products)
	server.SetBroadcaster(broadcaster)
	server.SetSync(scheduler, manager)
	if snapshots != nil {
		server.SetSnapshots(snapshots)
	}

	server.setupRoute()

	go func() {
		if err := server.start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			shutdown <- syscall.SIGTERM
		}
	}()

	log.Info().Str("address", cfg.Listen.Addr()).Msg("Server started successfully")
	log.Info().Str("swagger", fmt.Sprintf("http://%s/swagger/index.html", cfg.Listen.Addr())).Msg("Swagger documentation available at")

	<-shutdown
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	// stop the scheduler and let the in-flight cycle finish within its grace
	cancel()
	wg.Wait()

	log.Info().Msg("Server gracefully stopped")
}
