package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/db"
	"github.com/LexiconIndonesia/catalog-sync-service/common/utils"
	"github.com/go-chi/chi/v5"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	database Pinger
	cache    Pinger
	stats    func() map[string]interface{}
	router   *chi.Mux
}

func NewHealthHandler(dbConn *db.DB) *HealthHandler {
	return newHealthHandler(dbConn, dbConn.Redis, func() map[string]interface{} {
		s := dbConn.Pool.Stat()
		return map[string]interface{}{
			"total_conns":    s.TotalConns(),
			"idle_conns":     s.IdleConns(),
			"acquired_conns": s.AcquiredConns(),
			"max_conns":      s.MaxConns(),
		}
	})
}

func newHealthHandler(database, cache Pinger, stats func() map[string]interface{}) *HealthHandler {
	h := &HealthHandler{
		database: database,
		cache:    cache,
		stats:    stats,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleHealthCheck)
	r.Get("/database", h.handleDatabaseHealth)
	r.Get("/redis", h.handleRedisHealth)

	h.router = r
	return h
}

func (h *HealthHandler) Router() *chi.Mux {
	return h.router
}

func (h *HealthHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "catalog-sync-service",
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

func (h *HealthHandler) handleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	details := map[string]interface{}{}
	if h.stats != nil {
		details["stats"] = h.stats()
	}
	h.writeComponentHealth(w, r, "database", h.database, details)
}

func (h *HealthHandler) handleRedisHealth(w http.ResponseWriter, r *http.Request) {
	h.writeComponentHealth(w, r, "redis", h.cache, map[string]interface{}{})
}

func (h *HealthHandler) writeComponentHealth(w http.ResponseWriter, r *http.Request, name string, p Pinger, details map[string]interface{}) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	details["status"] = "healthy"
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		name:        details,
	}

	if err := p.Ping(ctx); err != nil {
		response["status"] = "unhealthy"
		details["status"] = "unhealthy"
		details["error"] = err.Error()
		utils.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	utils.WriteJSON(w, http.StatusOK, response)
}
