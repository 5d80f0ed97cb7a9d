package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/LexiconIndonesia/catalog-sync-service/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// TxBeginner is satisfied by *pgxpool.Pool
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ProductRepository is a PostgreSQL implementation of ProductService
type ProductRepository struct {
	db   *repository.Queries
	pool TxBeginner
}

// NewProductRepository creates a new PostgreSQL ProductRepository
func NewProductRepository(pool TxBeginner, db *repository.Queries) *ProductRepository {
	return &ProductRepository{
		db:   db,
		pool: pool,
	}
}

func toModel(p repository.Product) models.Product {
	return models.Product{ID: p.ID, Name: p.Name, Price: p.Price}
}

// List returns every product ordered by id
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	products, err := r.db.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	return lo.Map(products, func(p repository.Product, _ int) models.Product {
		return toModel(p)
	}), nil
}

// GetByID gets a product by id
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (models.Product, error) {
	product, err := r.db.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, ErrNotFound
		}
		return models.Product{}, fmt.Errorf("getting product %d: %w", id, err)
	}

	return toModel(product), nil
}

// Create inserts a single product
func (r *ProductRepository) Create(ctx context.Context, record models.ProductRecord) (models.Product, error) {
	product, err := r.db.CreateProduct(ctx, repository.CreateProductParams{
		Name:  record.Name,
		Price: record.Price,
	})
	if err != nil {
		return models.Product{}, fmt.Errorf("creating product: %w", err)
	}

	return toModel(product), nil
}

// Update overwrites an existing product
func (r *ProductRepository) Update(ctx context.Context, id int64, record models.ProductRecord) (models.Product, error) {
	product, err := r.db.UpdateProduct(ctx, repository.UpdateProductParams{
		ID:    id,
		Name:  record.Name,
		Price: record.Price,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, ErrNotFound
		}
		return models.Product{}, fmt.Errorf("updating product %d: %w", id, err)
	}

	return toModel(product), nil
}

// Delete removes a product
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.db.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceCatalog wipes the products table and bulk inserts records. Readers
// see either the old or the new catalog; on any failure the transaction is
// rolled back and the previous catalog stays in place.
func (r *ProductRepository) ReplaceCatalog(ctx context.Context, records []models.ProductRecord) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrStoreUnavailable, err)
	}
	defer func() {
		// no-op after a successful commit
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Warn().Err(rbErr).Msg("Failed to roll back catalog replacement")
		}
	}()

	q := r.db.WithTx(tx)

	// EXCLUSIVE still admits plain SELECTs, so readers keep seeing the old catalog
	if err := q.LockProducts(ctx); err != nil {
		return 0, fmt.Errorf("%w: lock: %v", ErrStoreUnavailable, err)
	}

	deleted, err := q.DeleteAllProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: wipe: %v", ErrStoreUnavailable, err)
	}

	params := lo.Map(records, func(rec models.ProductRecord, _ int) repository.InsertProductsParams {
		return repository.InsertProductsParams{Name: rec.Name, Price: rec.Price}
	})

	var inserted int64
	if len(params) > 0 {
		inserted, err = q.InsertProducts(ctx, params)
		if err != nil {
			return 0, fmt.Errorf("%w: insert: %v", ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}

	log.Debug().Int64("deleted", deleted).Int64("inserted", inserted).Msg("Catalog replaced")
	return inserted, nil
}
