package services

import (
	"context"
	"errors"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
)

var (
	// ErrNotFound is returned when a single-item operation references a missing id
	ErrNotFound = errors.New("product not found")

	// ErrStoreUnavailable is returned when the catalog replacement could not commit
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ProductService defines the product store operations
type ProductService interface {
	// List returns every product ordered by id
	List(ctx context.Context) ([]models.Product, error)

	// GetByID gets a product by id
	GetByID(ctx context.Context, id int64) (models.Product, error)

	// Create inserts a single product and returns it with its generated id
	Create(ctx context.Context, record models.ProductRecord) (models.Product, error)

	// Update overwrites name and price of an existing product
	Update(ctx context.Context, id int64, record models.ProductRecord) (models.Product, error)

	// Delete removes a product
	Delete(ctx context.Context, id int64) error

	// ReplaceCatalog deletes every product and inserts records in one transaction
	ReplaceCatalog(ctx context.Context, records []models.ProductRecord) (int64, error)
}
