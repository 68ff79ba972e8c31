package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
)

// PostgresProductRepository implements ProductRepository using PostgreSQL
type PostgresProductRepository struct {
	db *sqlx.DB
}

// NewPostgresProductRepository creates a new PostgresProductRepository
func NewPostgresProductRepository(db *sqlx.DB) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

// postgresProduct represents a product in the database
type postgresProduct struct {
	ID            string     `db:"id"`
	SKU           string     `db:"sku"`
	Name          string     `db:"name"`
	PriceAmount   int64      `db:"price_amount"`
	Currency      string     `db:"currency"`
	StockQuantity int        `db:"stock_quantity"`
	MinStockLevel int        `db:"min_stock_level"`
	Active        bool       `db:"active"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
	Version       int        `db:"version"`
}

// Save saves a product to the database
func (r *PostgresProductRepository) Save(ctx context.Context, product *domain.Product) error {
	for _, event := range product.Events() {
		if event.EventType == events.ProductCreatedEvent {
			return r.insertProduct(ctx, product)
		}
	}
	return r.updateProduct(ctx, r.db, product)
}

func (r *PostgresProductRepository) insertProduct(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (
			id, sku, name, price_amount, currency, stock_quantity,
			min_stock_level, active, created_at, updated_at, version
		) VALUES (
			:id, :sku, :name, :price_amount, :currency, :stock_quantity,
			:min_stock_level, :active, :created_at, :updated_at, :version
		)`

	pgProduct := r.toPostgres(product)
	if _, err := r.db.NamedExecContext(ctx, query, pgProduct); err != nil {
		return errors.Wrap(err, "failed to insert product")
	}

	return nil
}

func (r *PostgresProductRepository) updateProduct(ctx context.Context, execer sqlx.ExtContext, product *domain.Product) error {
	query := `
		UPDATE products
		SET stock_quantity = :stock_quantity, active = :active,
			updated_at = :updated_at, version = :version
		WHERE id = :id AND version = :old_version AND deleted_at IS NULL`

	result, err := sqlx.NamedExecContext(ctx, execer, query, map[string]interface{}{
		"id":             product.ID.String(),
		"stock_quantity": product.StockQuantity,
		"active":         product.Active,
		"updated_at":     product.Timestamps.UpdatedAt,
		"version":        product.Version.Value,
		"old_version":    product.Version.Value - 1, // Optimistic locking
	})
	if err != nil {
		return errors.Wrap(err, "failed to update product")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return faults.Newf(faults.KindConflict, "product %s was modified concurrently", product.ID)
	}

	return nil
}

// FindByID finds a product by ID
func (r *PostgresProductRepository) FindByID(ctx context.Context, id models.ID) (*domain.Product, error) {
	query := `
		SELECT id, sku, name, price_amount, currency, stock_quantity,
			   min_stock_level, active, created_at, updated_at, deleted_at, version
		FROM products
		WHERE id = $1 AND deleted_at IS NULL`

	var pgProduct postgresProduct
	err := r.db.GetContext(ctx, &pgProduct, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Product not found
		}
		return nil, errors.Wrap(err, "failed to find product")
	}

	return r.toDomain(&pgProduct)
}

// FindByIDs finds all products with the given IDs. Missing IDs are simply
// absent from the result.
func (r *PostgresProductRepository) FindByIDs(ctx context.Context, ids []models.ID) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}

	query := `
		SELECT id, sku, name, price_amount, currency, stock_quantity,
			   min_stock_level, active, created_at, updated_at, deleted_at, version
		FROM products
		WHERE id = ANY($1) AND deleted_at IS NULL`

	var pgProducts []postgresProduct
	if err := r.db.SelectContext(ctx, &pgProducts, query, pq.Array(keys)); err != nil {
		return nil, errors.Wrap(err, "failed to find products")
	}

	products := make([]*domain.Product, 0, len(pgProducts))
	for i := range pgProducts {
		product, err := r.toDomain(&pgProducts[i])
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	return products, nil
}

// FindBySKU finds a product by its SKU
func (r *PostgresProductRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := `
		SELECT id, sku, name, price_amount, currency, stock_quantity,
			   min_stock_level, active, created_at, updated_at, deleted_at, version
		FROM products
		WHERE sku = $1 AND deleted_at IS NULL`

	var pgProduct postgresProduct
	err := r.db.GetContext(ctx, &pgProduct, query, sku)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Product not found
		}
		return nil, errors.Wrap(err, "failed to find product by SKU")
	}

	return r.toDomain(&pgProduct)
}

// toPostgres converts domain product to postgres model
func (r *PostgresProductRepository) toPostgres(product *domain.Product) *postgresProduct {
	return &postgresProduct{
		ID:            product.ID.String(),
		SKU:           product.SKU,
		Name:          product.Name,
		PriceAmount:   product.Price.Amount,
		Currency:      product.Price.Currency,
		StockQuantity: product.StockQuantity,
		MinStockLevel: product.MinStockLevel,
		Active:        product.Active,
		CreatedAt:     product.Timestamps.CreatedAt,
		UpdatedAt:     product.Timestamps.UpdatedAt,
		DeletedAt:     product.Timestamps.DeletedAt,
		Version:       product.Version.Value,
	}
}

// toDomain converts postgres model to domain product
func (r *PostgresProductRepository) toDomain(pgProduct *postgresProduct) (*domain.Product, error) {
	id, err := models.NewID(pgProduct.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid product ID")
	}

	product := &domain.Product{
		ID:            id,
		SKU:           pgProduct.SKU,
		Name:          pgProduct.Name,
		Price:         models.NewMoney(pgProduct.PriceAmount, pgProduct.Currency),
		StockQuantity: pgProduct.StockQuantity,
		MinStockLevel: pgProduct.MinStockLevel,
		Active:        pgProduct.Active,
		Timestamps: models.Timestamps{
			CreatedAt: pgProduct.CreatedAt,
			UpdatedAt: pgProduct.UpdatedAt,
			DeletedAt: pgProduct.DeletedAt,
		},
		Version: models.Version{Value: pgProduct.Version},
	}

	return product, nil
}
