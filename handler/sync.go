package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/LexiconIndonesia/catalog-sync-service/common/storage"
	"github.com/LexiconIndonesia/catalog-sync-service/common/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SyncStatusReader exposes what the cycle tracker knows
type SyncStatusReader interface {
	LastStatus(ctx context.Context) (models.SyncStatus, bool, error)
	Running(ctx context.Context) (string, bool, error)
}

// SnapshotReader loads the archived page of a cycle
type SnapshotReader interface {
	Load(ctx context.Context, cycleID string) ([]byte, error)
}

type SyncHandler struct {
	trigger   func() bool
	status    SyncStatusReader
	snapshots SnapshotReader
	router    *chi.Mux
}

// NewSyncHandler builds the sync routes; snapshots may be nil when archiving is off
func NewSyncHandler(trigger func() bool, status SyncStatusReader, snapshots SnapshotReader) *SyncHandler {
	h := &SyncHandler{
		trigger:   trigger,
		status:    status,
		snapshots: snapshots,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleSyncStatus)
	r.Post("/", h.handleTriggerSync)
	r.Get("/{cycleID}/snapshot", h.handleSnapshot)

	h.router = r
	return h
}

func (h *SyncHandler) Router() *chi.Mux {
	return h.router
}

type syncStatusResponse struct {
	Running      bool               `json:"running"`
	RunningCycle string             `json:"running_cycle,omitempty"`
	Last         *models.SyncStatus `json:"last"`
}

// handleSyncStatus godoc
// @Summary  Last sync cycle
// @Tags     sync
// @Produce  json
// @Success  200 {object} models.BaseResponse
// @Router   /sync [get]
func (h *SyncHandler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	var resp syncStatusResponse

	cycleID, running, err := h.status.Running(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read running cycle")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to read sync status")
		return
	}
	resp.Running = running
	resp.RunningCycle = cycleID

	last, ok, err := h.status.LastStatus(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read last cycle")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to read sync status")
		return
	}
	if ok {
		resp.Last = &last
	}

	utils.WriteJSON(w, http.StatusOK, resp)
}

// handleTriggerSync godoc
// @Summary  Run a sync cycle now
// @Tags     sync
// @Produce  json
// @Success  202 {object} models.BaseResponse
// @Router   /sync [post]
func (h *SyncHandler) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	queued := h.trigger()
	log.Info().Bool("queued", queued).Msg("Sync requested over HTTP")
	utils.WriteJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

// handleSnapshot godoc
// @Summary  Rendered catalog page of a cycle
// @Tags     sync
// @Produce  html
// @Param    cycleID path string true "Cycle id"
// @Success  200
// @Failure  404 {object} models.ErrorResponse
// @Router   /sync/{cycleID}/snapshot [get]
func (h *SyncHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		utils.WriteError(w, http.StatusNotFound, "Snapshot archiving is disabled")
		return
	}

	data, err := h.snapshots.Load(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		log.Error().Err(err).Msg("Failed to load snapshot")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to load snapshot")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write snapshot")
	}
}
