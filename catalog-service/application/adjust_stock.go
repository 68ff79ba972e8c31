package application

import (
	"context"

	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AdjustStockCommand sets a product's absolute stock level
type AdjustStockCommand struct {
	ProductID   string `json:"product_id"`
	NewQuantity int    `json:"new_quantity"`
}

// AdjustStock performs a manual stock correction. It takes the product lock
// so adjustments cannot interleave with in-flight reservations.
type AdjustStock struct {
	products       domain.ProductRepository
	locks          *domain.ProductLockManager
	eventPublisher events.Publisher
	logger         *zap.Logger
}

// NewAdjustStock creates an AdjustStock use case
func NewAdjustStock(products domain.ProductRepository, locks *domain.ProductLockManager, eventPublisher events.Publisher, logger *zap.Logger) *AdjustStock {
	return &AdjustStock{products: products, locks: locks, eventPublisher: eventPublisher, logger: logger}
}

// Execute applies the stock adjustment
func (uc *AdjustStock) Execute(ctx context.Context, cmd *AdjustStockCommand) (*ProductResponse, error) {
	if cmd == nil {
		return nil, faults.New(faults.KindValidation, "command is required")
	}

	id, err := models.NewID(cmd.ProductID)
	if err != nil {
		return nil, faults.Wrapf(faults.KindValidation, err, "invalid product ID %q", cmd.ProductID)
	}

	unlock := uc.locks.Lock([]models.ID{id})
	defer unlock()

	product, err := uc.products.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load product")
	}
	if product == nil {
		return nil, faults.Newf(faults.KindNotFound, "product %s not found", cmd.ProductID)
	}

	if err := product.AdjustStock(cmd.NewQuantity); err != nil {
		return nil, err
	}

	if err := uc.products.Save(ctx, product); err != nil {
		return nil, errors.Wrap(err, "failed to persist product")
	}

	if err := uc.eventPublisher.Publish(ctx, product.Events()...); err != nil {
		uc.logger.Error("failed to publish stock adjustment events",
			zap.String("product_id", product.ID.String()),
			zap.String("sku", product.SKU),
			zap.Error(err),
		)
	}
	product.ClearEvents()

	return newProductResponse(product), nil
}
