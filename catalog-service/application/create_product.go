package application

import (
	"context"
	"time"

	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/shared/events"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CreateProductCommand adds a product to the catalog
type CreateProductCommand struct {
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	PriceAmount   int64  `json:"price_amount"`
	Currency      string `json:"currency"`
	StockQuantity int    `json:"stock_quantity"`
	MinStockLevel int    `json:"min_stock_level"`
}

// ProductResponse is the projection returned by product queries and commands
type ProductResponse struct {
	ProductID     string       `json:"product_id"`
	SKU           string       `json:"sku"`
	Name          string       `json:"name"`
	Price         models.Money `json:"price"`
	StockQuantity int          `json:"stock_quantity"`
	MinStockLevel int          `json:"min_stock_level"`
	Active        bool         `json:"active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// CreateProduct adds a new product to the catalog. SKUs are unique across
// the catalog.
type CreateProduct struct {
	products       domain.ProductRepository
	eventPublisher events.Publisher
	logger         *zap.Logger
}

// NewCreateProduct creates a CreateProduct use case
func NewCreateProduct(products domain.ProductRepository, eventPublisher events.Publisher, logger *zap.Logger) *CreateProduct {
	return &CreateProduct{products: products, eventPublisher: eventPublisher, logger: logger}
}

// Execute validates and persists the new product
func (uc *CreateProduct) Execute(ctx context.Context, cmd *CreateProductCommand) (*ProductResponse, error) {
	if cmd == nil {
		return nil, faults.New(faults.KindValidation, "command is required")
	}
	if cmd.Currency == "" {
		return nil, faults.New(faults.KindValidation, "currency is required")
	}

	existing, err := uc.products.FindBySKU(ctx, cmd.SKU)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check for existing SKU")
	}
	if existing != nil {
		return nil, faults.Newf(faults.KindConflict, "a product with SKU %s already exists", cmd.SKU)
	}

	product, err := domain.NewProduct(
		cmd.SKU,
		cmd.Name,
		models.NewMoney(cmd.PriceAmount, cmd.Currency),
		cmd.StockQuantity,
		cmd.MinStockLevel,
	)
	if err != nil {
		return nil, err
	}

	if err := uc.products.Save(ctx, product); err != nil {
		return nil, errors.Wrap(err, "failed to persist product")
	}

	if err := uc.eventPublisher.Publish(ctx, product.Events()...); err != nil {
		uc.logger.Error("failed to publish product events",
			zap.String("product_id", product.ID.String()),
			zap.String("sku", product.SKU),
			zap.Error(err),
		)
	}
	product.ClearEvents()

	return newProductResponse(product), nil
}

func newProductResponse(product *domain.Product) *ProductResponse {
	return &ProductResponse{
		ProductID:     product.ID.String(),
		SKU:           product.SKU,
		Name:          product.Name,
		Price:         product.Price,
		StockQuantity: product.StockQuantity,
		MinStockLevel: product.MinStockLevel,
		Active:        product.Active,
		CreatedAt:     product.Timestamps.CreatedAt,
		UpdatedAt:     product.Timestamps.UpdatedAt,
	}
}
