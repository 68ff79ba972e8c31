package application

import (
	"context"

	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
	"github.com/pkg/errors"
)

// GetProduct retrieves a single product by its ID
type GetProduct struct {
	products domain.ProductRepository
}

// NewGetProduct creates a GetProduct use case
func NewGetProduct(products domain.ProductRepository) *GetProduct {
	return &GetProduct{products: products}
}

// Execute looks up the product and returns its projection
func (uc *GetProduct) Execute(ctx context.Context, productID string) (*ProductResponse, error) {
	id, err := models.NewID(productID)
	if err != nil {
		return nil, faults.Wrapf(faults.KindValidation, err, "invalid product ID %q", productID)
	}

	product, err := uc.products.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load product")
	}
	if product == nil {
		return nil, faults.Newf(faults.KindNotFound, "product %s not found", productID)
	}

	return newProductResponse(product), nil
}
