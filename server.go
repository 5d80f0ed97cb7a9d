package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/config"
	"github.com/LexiconIndonesia/catalog-sync-service/common/db"
	"github.com/LexiconIndonesia/catalog-sync-service/common/realtime"
	"github.com/LexiconIndonesia/catalog-sync-service/common/services"
	"github.com/LexiconIndonesia/catalog-sync-service/common/work"
	"github.com/LexiconIndonesia/catalog-sync-service/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type AppHttpServer struct {
	router      *chi.Mux
	cfg         config.Config
	server      *http.Server
	db          *db.DB
	products    services.ProductService
	broadcaster *realtime.Broadcaster
	scheduler   *work.Scheduler
	manager     *work.Manager
	snapshots   handler.SnapshotReader
}

func NewAppHttpServer(cfg config.Config) (*AppHttpServer, error) {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	server := &AppHttpServer{
		router: r,
		cfg:    cfg,
	}
	return server, nil
}

// SetDB sets the database dependency
func (s *AppHttpServer) SetDB(db *db.DB) {
	s.db = db
}

func (s *AppHttpServer) SetProducts(products services.ProductService) {
	s.products = products
}

func (s *AppHttpServer) SetBroadcaster(b *realtime.Broadcaster) {
	s.broadcaster = b
}

// SetSync sets the scheduler and the cycle tracker behind /v1/sync
func (s *AppHttpServer) SetSync(scheduler *work.Scheduler, manager *work.Manager) {
	s.scheduler = scheduler
	s.manager = manager
}

// SetSnapshots enables the snapshot route; leave unset when archiving is off
func (s *AppHttpServer) SetSnapshots(snapshots handler.SnapshotReader) {
	s.snapshots = snapshots
}

func (s *AppHttpServer) setupRoute() {
	r := s.router

	// API Documentation with Swagger
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // The URL pointing to API definition
	))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"catalog-sync-service"}`))
	})

	// long lived, so kept out of the request timeout below
	r.Handle("/ws", realtime.NewWSHandler(s.broadcaster))

	r.Route("/v1", func(r chi.Router) {
		// Set a timeout value on the request context (ctx), that will signal
		// through ctx.Done() that the request has timed out and further
		// processing should be stopped.
		r.Use(middleware.Timeout(2 * time.Minute))

		productHandler := handler.NewProductHandler(s.products, s.broadcaster)
		syncHandler := handler.NewSyncHandler(s.scheduler.Trigger, s.manager, s.snapshots)
		healthHandler := handler.NewHealthHandler(s.db)

		r.Mount("/products", productHandler.Router())
		r.Mount("/sync", syncHandler.Router())
		r.Mount("/health", healthHandler.Router())
	})
}

func (s *AppHttpServer) start() error {
	r := s.router
	cfg := s.cfg
	log.Info().Msg("Starting up server...")

	s.server = &http.Server{
		Addr:         cfg.Listen.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// stop gracefully shuts down the server
func (s *AppHttpServer) stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
