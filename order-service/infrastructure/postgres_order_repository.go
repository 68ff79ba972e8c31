package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/orderflow/fulfillment-system/order-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
)

// PostgresOrderRepository implements OrderRepository using PostgreSQL
type PostgresOrderRepository struct {
	db *sqlx.DB
}

// NewPostgresOrderRepository creates a new PostgresOrderRepository
func NewPostgresOrderRepository(db *sqlx.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// postgresOrder represents an order in the database
type postgresOrder struct {
	ID                 string     `db:"id"`
	OrderNumber        string     `db:"order_number"`
	CustomerID         string     `db:"customer_id"`
	Status             string     `db:"status"`
	TotalAmount        int64      `db:"total_amount"`
	Currency           string     `db:"currency"`
	ShippingLine1      string     `db:"shipping_line1"`
	ShippingLine2      string     `db:"shipping_line2"`
	ShippingCity       string     `db:"shipping_city"`
	ShippingState      string     `db:"shipping_state"`
	ShippingPostalCode string     `db:"shipping_postal_code"`
	ShippingCountry    string     `db:"shipping_country"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	DeletedAt          *time.Time `db:"deleted_at"`
	Version            int        `db:"version"`
}

// postgresOrderItem represents an order line in the database
type postgresOrderItem struct {
	OrderID     string `db:"order_id"`
	ProductID   string `db:"product_id"`
	ProductName string `db:"product_name"`
	SKU         string `db:"sku"`
	Quantity    int    `db:"quantity"`
	UnitPrice   int64  `db:"unit_price"`
	TotalPrice  int64  `db:"total_price"`
	Currency    string `db:"currency"`
}

// Save saves an order to the database
func (r *PostgresOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	// Process events to determine operation type
	for _, event := range order.Events() {
		switch event.EventType {
		case events.OrderCreatedEvent:
			return r.insertOrder(ctx, order)
		case events.OrderStatusChangedEvent, events.OrderCancelledEvent:
			return r.updateOrder(ctx, order)
		}
	}
	return nil
}

// insertOrder inserts a new order and its items in one transaction
func (r *PostgresOrderRepository) insertOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (
			id, order_number, customer_id, status, total_amount, currency,
			shipping_line1, shipping_line2, shipping_city, shipping_state,
			shipping_postal_code, shipping_country,
			created_at, updated_at, version
		) VALUES (
			:id, :order_number, :customer_id, :status, :total_amount, :currency,
			:shipping_line1, :shipping_line2, :shipping_city, :shipping_state,
			:shipping_postal_code, :shipping_country,
			:created_at, :updated_at, :version
		)`

	pgOrder := r.toPostgres(order)
	if _, err := tx.NamedExecContext(ctx, orderQuery, pgOrder); err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	itemQuery := `
		INSERT INTO order_items (
			order_id, product_id, product_name, sku,
			quantity, unit_price, total_price, currency
		) VALUES (
			:order_id, :product_id, :product_name, :sku,
			:quantity, :unit_price, :total_price, :currency
		)`

	for _, item := range order.Items {
		pgItem := &postgresOrderItem{
			OrderID:     order.ID.String(),
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.Amount,
			TotalPrice:  item.TotalPrice.Amount,
			Currency:    item.UnitPrice.Currency,
		}
		if _, err := tx.NamedExecContext(ctx, itemQuery, pgItem); err != nil {
			return errors.Wrap(err, "failed to insert order item")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit order insert")
	}

	return nil
}

// updateOrder updates an existing order with optimistic locking
func (r *PostgresOrderRepository) updateOrder(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = :status, updated_at = :updated_at, version = :version
		WHERE id = :id AND version = :old_version AND deleted_at IS NULL`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          order.ID.String(),
		"status":      string(order.Status),
		"updated_at":  order.Timestamps.UpdatedAt,
		"version":     order.Version.Value,
		"old_version": order.Version.Value - 1, // Optimistic locking
	})
	if err != nil {
		return errors.Wrap(err, "failed to update order")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return faults.Newf(faults.KindConflict, "order %s was modified concurrently", order.ID)
	}

	return nil
}

// FindByID finds an order by ID
func (r *PostgresOrderRepository) FindByID(ctx context.Context, id models.ID) (*domain.Order, error) {
	query := `
		SELECT id, order_number, customer_id, status, total_amount, currency,
			   shipping_line1, shipping_line2, shipping_city, shipping_state,
			   shipping_postal_code, shipping_country,
			   created_at, updated_at, deleted_at, version
		FROM orders
		WHERE id = $1 AND deleted_at IS NULL`

	var pgOrder postgresOrder
	err := r.db.GetContext(ctx, &pgOrder, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Order not found
		}
		return nil, errors.Wrap(err, "failed to find order")
	}

	items, err := r.findItems(ctx, id)
	if err != nil {
		return nil, err
	}

	return r.toDomain(&pgOrder, items)
}

// FindByOrderNumber finds an order by its human-readable order number
func (r *PostgresOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	query := `
		SELECT id, order_number, customer_id, status, total_amount, currency,
			   shipping_line1, shipping_line2, shipping_city, shipping_state,
			   shipping_postal_code, shipping_country,
			   created_at, updated_at, deleted_at, version
		FROM orders
		WHERE order_number = $1 AND deleted_at IS NULL`

	var pgOrder postgresOrder
	err := r.db.GetContext(ctx, &pgOrder, query, orderNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Order not found
		}
		return nil, errors.Wrap(err, "failed to find order by order number")
	}

	id, err := models.NewID(pgOrder.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	items, err := r.findItems(ctx, id)
	if err != nil {
		return nil, err
	}

	return r.toDomain(&pgOrder, items)
}

// Delete removes an order and its items. Used only by saga compensation,
// which rolls back an order nothing else has seen yet, so a hard delete
// is the right call here.
func (r *PostgresOrderRepository) Delete(ctx context.Context, id models.ID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id.String()); err != nil {
		return errors.Wrap(err, "failed to delete order items")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id.String()); err != nil {
		return errors.Wrap(err, "failed to delete order")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit order delete")
	}

	return nil
}

func (r *PostgresOrderRepository) findItems(ctx context.Context, orderID models.ID) ([]postgresOrderItem, error) {
	query := `
		SELECT order_id, product_id, product_name, sku,
			   quantity, unit_price, total_price, currency
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id`

	var pgItems []postgresOrderItem
	if err := r.db.SelectContext(ctx, &pgItems, query, orderID.String()); err != nil {
		return nil, errors.Wrap(err, "failed to find order items")
	}
	return pgItems, nil
}

// toPostgres converts domain order to postgres model
func (r *PostgresOrderRepository) toPostgres(order *domain.Order) *postgresOrder {
	return &postgresOrder{
		ID:                 order.ID.String(),
		OrderNumber:        order.OrderNumber,
		CustomerID:         order.CustomerID.String(),
		Status:             string(order.Status),
		TotalAmount:        order.TotalAmount.Amount,
		Currency:           order.TotalAmount.Currency,
		ShippingLine1:      order.ShippingAddress.Line1,
		ShippingLine2:      order.ShippingAddress.Line2,
		ShippingCity:       order.ShippingAddress.City,
		ShippingState:      order.ShippingAddress.State,
		ShippingPostalCode: order.ShippingAddress.PostalCode,
		ShippingCountry:    order.ShippingAddress.Country,
		CreatedAt:          order.Timestamps.CreatedAt,
		UpdatedAt:          order.Timestamps.UpdatedAt,
		DeletedAt:          order.Timestamps.DeletedAt,
		Version:            order.Version.Value,
	}
}

// toDomain converts postgres model to domain order
func (r *PostgresOrderRepository) toDomain(pgOrder *postgresOrder, pgItems []postgresOrderItem) (*domain.Order, error) {
	id, err := models.NewID(pgOrder.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	customerID, err := models.NewID(pgOrder.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid customer ID")
	}

	items := make([]domain.OrderItem, 0, len(pgItems))
	for _, pgItem := range pgItems {
		productID, err := models.NewID(pgItem.ProductID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid product ID")
		}
		items = append(items, domain.OrderItem{
			ProductID:   productID,
			ProductName: pgItem.ProductName,
			SKU:         pgItem.SKU,
			Quantity:    pgItem.Quantity,
			UnitPrice:   models.NewMoney(pgItem.UnitPrice, pgItem.Currency),
			TotalPrice:  models.NewMoney(pgItem.TotalPrice, pgItem.Currency),
		})
	}

	order := &domain.Order{
		ID:          id,
		OrderNumber: pgOrder.OrderNumber,
		CustomerID:  customerID,
		Status:      domain.OrderStatus(pgOrder.Status),
		TotalAmount: models.NewMoney(pgOrder.TotalAmount, pgOrder.Currency),
		ShippingAddress: domain.ShippingAddress{
			Line1:      pgOrder.ShippingLine1,
			Line2:      pgOrder.ShippingLine2,
			City:       pgOrder.ShippingCity,
			State:      pgOrder.ShippingState,
			PostalCode: pgOrder.ShippingPostalCode,
			Country:    pgOrder.ShippingCountry,
		},
		Items: items,
		Timestamps: models.Timestamps{
			CreatedAt: pgOrder.CreatedAt,
			UpdatedAt: pgOrder.UpdatedAt,
			DeletedAt: pgOrder.DeletedAt,
		},
		Version: models.Version{Value: pgOrder.Version},
	}

	return order, nil
}
