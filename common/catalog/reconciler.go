package catalog

import (
	"context"
	"fmt"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/LexiconIndonesia/catalog-sync-service/common/realtime"
	"github.com/rs/zerolog/log"
)

// Store is the part of the product store reconciliation needs
type Store interface {
	List(ctx context.Context) ([]models.Product, error)
	ReplaceCatalog(ctx context.Context, records []models.ProductRecord) (int64, error)
}

// Publisher fans change events out to subscribers
type Publisher interface {
	Publish(ctx context.Context, event realtime.ChangeEvent) error
}

// Reconciler overwrites the persisted catalog with the latest scrape
type Reconciler struct {
	store     Store
	publisher Publisher
	notify    bool
}

// NewReconciler creates a reconciler. With notify set and a non-nil publisher,
// every successful replace is followed by a get_products event with the new catalog.
func NewReconciler(store Store, publisher Publisher, notify bool) *Reconciler {
	return &Reconciler{
		store:     store,
		publisher: publisher,
		notify:    notify,
	}
}

// Reconcile replaces the whole catalog with records. On failure the previous
// catalog is left untouched.
func (r *Reconciler) Reconcile(ctx context.Context, records []models.ProductRecord) (int64, error) {
	n, err := r.store.ReplaceCatalog(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("replacing catalog: %w", err)
	}

	if r.notify && r.publisher != nil {
		r.announce(ctx)
	}
	return n, nil
}

// announce is best effort; the replace has already committed
func (r *Reconciler) announce(ctx context.Context) {
	products, err := r.store.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list catalog for change notification")
		return
	}
	if err := r.publisher.Publish(ctx, realtime.ProductsEvent(products)); err != nil {
		log.Warn().Err(err).Msg("Failed to publish catalog change")
	}
}
