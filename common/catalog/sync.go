package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/crawler"
	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/LexiconIndonesia/catalog-sync-service/common/work"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// Scraper produces the latest catalog
type Scraper interface {
	ScrapePage(ctx context.Context, url string, limit int) (crawler.Result, error)
}

// Tracker holds the cross-process cycle lock and the last cycle status
type Tracker interface {
	Start(ctx context.Context, cycleID string) error
	Finish(ctx context.Context, cycleID string) error
	SaveStatus(ctx context.Context, status models.SyncStatus) error
}

// Archive stores the rendered page a cycle scraped from
type Archive interface {
	Save(ctx context.Context, cycleID, document string) (string, error)
}

type SyncConfig struct {
	URL string
	Cap int
}

// Syncer runs one scrape-and-reconcile cycle
type Syncer struct {
	scraper    Scraper
	reconciler *Reconciler
	tracker    Tracker
	archive    Archive
	config     SyncConfig
	now        func() time.Time
}

// NewSyncer wires a cycle. tracker and archive may be nil.
func NewSyncer(scraper Scraper, reconciler *Reconciler, tracker Tracker, archive Archive, config SyncConfig) *Syncer {
	if config.Cap <= 0 {
		config.Cap = crawler.DefaultCap
	}
	return &Syncer{
		scraper:    scraper,
		reconciler: reconciler,
		tracker:    tracker,
		archive:    archive,
		config:     config,
		now:        time.Now,
	}
}

// RunCycle scrapes the catalog and replaces the stored one with it. A cycle
// that finds another one holding the lock is skipped without error; one that
// cannot reach the lock store runs unlocked. Any scrape or store failure
// leaves the stored catalog as it was.
func (s *Syncer) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	logger := log.With().Str("cycleID", cycleID).Str("url", s.config.URL).Logger()

	status := models.SyncStatus{
		CycleID:   cycleID,
		State:     StateRunning,
		StartedAt: s.timestamp(),
	}

	if s.tracker != nil {
		err := s.tracker.Start(ctx, cycleID)
		switch {
		case errors.Is(err, work.ErrCycleRunning):
			logger.Info().Msg("Another sync cycle is running, skipping")
			return nil
		case err != nil:
			logger.Warn().Err(err).Msg("Cycle lock unavailable, running unlocked")
		default:
			defer func() {
				// release even when ctx was cancelled mid-cycle
				if err := s.tracker.Finish(context.WithoutCancel(ctx), cycleID); err != nil {
					logger.Warn().Err(err).Msg("Failed to release cycle lock")
				}
			}()
		}
		s.saveStatus(ctx, status)
	}

	logger.Info().Msg("Sync cycle started")

	result, err := s.scraper.ScrapePage(ctx, s.config.URL, s.config.Cap)
	if err != nil {
		s.fail(ctx, status, err)
		return err
	}

	n, err := s.reconciler.Reconcile(ctx, result.Records)
	if err != nil {
		s.fail(ctx, status, err)
		return err
	}

	if s.archive != nil {
		if object, err := s.archive.Save(ctx, cycleID, result.Snapshot); err != nil {
			logger.Warn().Err(err).Msg("Failed to archive catalog snapshot")
		} else {
			logger.Debug().Str("object", object).Msg("Catalog snapshot archived")
		}
	}

	status.State = StateSucceeded
	status.Records = int(n)
	status.FinishedAt = s.timestamp()
	s.saveStatus(ctx, status)

	logger.Info().Int64("records", n).Msg("Catalog reconciled")
	return nil
}

func (s *Syncer) fail(ctx context.Context, status models.SyncStatus, err error) {
	status.State = StateFailed
	status.Error = err.Error()
	status.FinishedAt = s.timestamp()
	s.saveStatus(context.WithoutCancel(ctx), status)
}

func (s *Syncer) saveStatus(ctx context.Context, status models.SyncStatus) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.SaveStatus(ctx, status); err != nil {
		log.Warn().Err(err).Str("cycleID", status.CycleID).Msg("Failed to save sync status")
	}
}

func (s *Syncer) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
