package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
)

// PostgresReservationRepository implements ReservationRepository using PostgreSQL
type PostgresReservationRepository struct {
	db *sqlx.DB
}

// NewPostgresReservationRepository creates a new PostgresReservationRepository
func NewPostgresReservationRepository(db *sqlx.DB) *PostgresReservationRepository {
	return &PostgresReservationRepository{db: db}
}

// postgresReservation represents a reservation in the database
type postgresReservation struct {
	ID              string    `db:"id"`
	ReservationCode string    `db:"reservation_code"`
	OrderReference  string    `db:"order_reference"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	Version         int       `db:"version"`
}

// postgresReservationItem represents a reservation line in the database
type postgresReservationItem struct {
	ReservationID string `db:"reservation_id"`
	ProductID     string `db:"product_id"`
	ProductName   string `db:"product_name"`
	SKU           string `db:"sku"`
	Quantity      int    `db:"quantity"`
	UnitPrice     int64  `db:"unit_price"`
	Currency      string `db:"currency"`
}

// Save saves a reservation to the database
func (r *PostgresReservationRepository) Save(ctx context.Context, reservation *domain.InventoryReservation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := r.saveTx(ctx, tx, reservation); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit reservation")
	}

	return nil
}

// saveTx writes the reservation inside a caller-owned transaction, so the
// stock changes of the same operation can share the commit
func (r *PostgresReservationRepository) saveTx(ctx context.Context, tx *sqlx.Tx, reservation *domain.InventoryReservation) error {
	for _, event := range reservation.Events() {
		if event.EventType == events.ReservationCreatedEvent {
			return r.insertReservation(ctx, tx, reservation)
		}
	}
	return r.updateReservation(ctx, tx, reservation)
}

// insertReservation inserts a reservation and its items. The unique index
// on order_reference is the last line of defense against two reservations
// for the same order.
func (r *PostgresReservationRepository) insertReservation(ctx context.Context, tx *sqlx.Tx, reservation *domain.InventoryReservation) error {
	reservationQuery := `
		INSERT INTO inventory_reservations (
			id, reservation_code, order_reference, status,
			created_at, updated_at, version
		) VALUES (
			:id, :reservation_code, :order_reference, :status,
			:created_at, :updated_at, :version
		)`

	pgReservation := r.toPostgres(reservation)
	if _, err := tx.NamedExecContext(ctx, reservationQuery, pgReservation); err != nil {
		return errors.Wrap(err, "failed to insert reservation")
	}

	itemQuery := `
		INSERT INTO inventory_reservation_items (
			reservation_id, product_id, product_name, sku,
			quantity, unit_price, currency
		) VALUES (
			:reservation_id, :product_id, :product_name, :sku,
			:quantity, :unit_price, :currency
		)`

	for _, item := range reservation.Items {
		pgItem := &postgresReservationItem{
			ReservationID: reservation.ID.String(),
			ProductID:     item.ProductID.String(),
			ProductName:   item.ProductName,
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice.Amount,
			Currency:      item.UnitPrice.Currency,
		}
		if _, err := tx.NamedExecContext(ctx, itemQuery, pgItem); err != nil {
			return errors.Wrap(err, "failed to insert reservation item")
		}
	}

	return nil
}

func (r *PostgresReservationRepository) updateReservation(ctx context.Context, execer sqlx.ExtContext, reservation *domain.InventoryReservation) error {
	query := `
		UPDATE inventory_reservations
		SET status = :status, updated_at = :updated_at, version = :version
		WHERE id = :id AND version = :old_version`

	result, err := sqlx.NamedExecContext(ctx, execer, query, map[string]interface{}{
		"id":          reservation.ID.String(),
		"status":      string(reservation.Status),
		"updated_at":  reservation.Timestamps.UpdatedAt,
		"version":     reservation.Version.Value,
		"old_version": reservation.Version.Value - 1, // Optimistic locking
	})
	if err != nil {
		return errors.Wrap(err, "failed to update reservation")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return faults.Newf(faults.KindConflict, "reservation %s was modified concurrently", reservation.ID)
	}

	return nil
}

// FindByOrderReference finds a reservation by its order reference
func (r *PostgresReservationRepository) FindByOrderReference(ctx context.Context, orderReference string) (*domain.InventoryReservation, error) {
	query := `
		SELECT id, reservation_code, order_reference, status,
			   created_at, updated_at, version
		FROM inventory_reservations
		WHERE order_reference = $1`

	var pgReservation postgresReservation
	err := r.db.GetContext(ctx, &pgReservation, query, orderReference)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Reservation not found
		}
		return nil, errors.Wrap(err, "failed to find reservation")
	}

	itemQuery := `
		SELECT reservation_id, product_id, product_name, sku,
			   quantity, unit_price, currency
		FROM inventory_reservation_items
		WHERE reservation_id = $1
		ORDER BY product_id`

	var pgItems []postgresReservationItem
	if err := r.db.SelectContext(ctx, &pgItems, itemQuery, pgReservation.ID); err != nil {
		return nil, errors.Wrap(err, "failed to find reservation items")
	}

	return r.toDomain(&pgReservation, pgItems)
}

// toPostgres converts domain reservation to postgres model
func (r *PostgresReservationRepository) toPostgres(reservation *domain.InventoryReservation) *postgresReservation {
	return &postgresReservation{
		ID:              reservation.ID.String(),
		ReservationCode: reservation.ReservationCode,
		OrderReference:  reservation.OrderReference,
		Status:          string(reservation.Status),
		CreatedAt:       reservation.Timestamps.CreatedAt,
		UpdatedAt:       reservation.Timestamps.UpdatedAt,
		Version:         reservation.Version.Value,
	}
}

// toDomain converts postgres model to domain reservation
func (r *PostgresReservationRepository) toDomain(pgReservation *postgresReservation, pgItems []postgresReservationItem) (*domain.InventoryReservation, error) {
	id, err := models.NewID(pgReservation.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid reservation ID")
	}

	items := make([]domain.ReservationItem, 0, len(pgItems))
	for _, pgItem := range pgItems {
		productID, err := models.NewID(pgItem.ProductID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid product ID")
		}
		items = append(items, domain.ReservationItem{
			ProductID:   productID,
			ProductName: pgItem.ProductName,
			SKU:         pgItem.SKU,
			Quantity:    pgItem.Quantity,
			UnitPrice:   models.NewMoney(pgItem.UnitPrice, pgItem.Currency),
		})
	}

	reservation := &domain.InventoryReservation{
		ID:              id,
		ReservationCode: pgReservation.ReservationCode,
		OrderReference:  pgReservation.OrderReference,
		Status:          domain.ReservationStatus(pgReservation.Status),
		Items:           items,
		Timestamps: models.Timestamps{
			CreatedAt: pgReservation.CreatedAt,
			UpdatedAt: pgReservation.UpdatedAt,
		},
		Version: models.Version{Value: pgReservation.Version},
	}

	return reservation, nil
}
