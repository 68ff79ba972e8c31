package domain

import (
	"context"

	"github.com/orderflow/fulfillment-system/shared/models"
)

// ReservationRequestItem is one line of a stock reservation request
type ReservationRequestItem struct {
	ProductID models.ID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// ReservationItemDetail is the per-item outcome of a reservation attempt.
// Product name, SKU and price are the catalog's values at reservation time
// and are the single source of truth for the order lines built from them.
type ReservationItemDetail struct {
	ProductID         models.ID    `json:"product_id"`
	ProductName       string       `json:"product_name"`
	SKU               string       `json:"sku"`
	RequestedQuantity int          `json:"requested_quantity"`
	AvailableQuantity int          `json:"available_quantity"`
	Price             models.Money `json:"price"`
	Available         bool         `json:"available"`
	Message           string       `json:"message,omitempty"`
}

// ReservationResult is the outcome of a reservation attempt. Success false
// is a well-formed business rejection, distinct from a transport failure.
type ReservationResult struct {
	Success        bool                    `json:"success"`
	Message        string                  `json:"message,omitempty"`
	OrderReference string                  `json:"order_reference"`
	Items          []ReservationItemDetail `json:"items"`
}

// ItemForProduct returns the detail for the given product, or nil
func (r *ReservationResult) ItemForProduct(productID models.ID) *ReservationItemDetail {
	for i := range r.Items {
		if r.Items[i].ProductID == productID {
			return &r.Items[i]
		}
	}
	return nil
}

// InventoryService is the reservation protocol of the catalog service,
// reached over the network by the order saga
type InventoryService interface {
	Reserve(ctx context.Context, orderReference string, items []ReservationRequestItem) (*ReservationResult, error)
	Confirm(ctx context.Context, orderReference string) error
	Release(ctx context.Context, orderReference string) error
}
