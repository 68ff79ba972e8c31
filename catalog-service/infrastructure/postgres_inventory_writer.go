package infrastructure

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/pkg/errors"
)

// PostgresInventoryWriter commits a reservation and its product stock
// changes in one transaction. A version conflict on any row rolls back
// the whole write, so stock can never drift from the reservation record.
type PostgresInventoryWriter struct {
	db           *sqlx.DB
	products     *PostgresProductRepository
	reservations *PostgresReservationRepository
}

// NewPostgresInventoryWriter creates a PostgresInventoryWriter
func NewPostgresInventoryWriter(db *sqlx.DB, products *PostgresProductRepository, reservations *PostgresReservationRepository) *PostgresInventoryWriter {
	return &PostgresInventoryWriter{db: db, products: products, reservations: reservations}
}

// SaveReservationAndStock implements domain.InventoryWriter
func (w *PostgresInventoryWriter) SaveReservationAndStock(ctx context.Context, reservation *domain.InventoryReservation, products []*domain.Product) error {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	// The reservation row carries the status, write it first so a stale
	// writer fails before any stock is touched
	if err := w.reservations.saveTx(ctx, tx, reservation); err != nil {
		return err
	}

	for _, product := range products {
		if err := w.products.updateProduct(ctx, tx, product); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit inventory changes")
	}

	return nil
}
