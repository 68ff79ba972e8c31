package infrastructure

import (
	"context"
	"sync"

	"github.com/orderflow/fulfillment-system/catalog-service/domain"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/orderflow/fulfillment-system/shared/models"
)

// MemoryProductRepository is an in-memory ProductRepository for local runs
// and tests. It enforces the same optimistic locking rules as the postgres
// implementation.
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[models.ID]*domain.Product
}

// NewMemoryProductRepository creates a MemoryProductRepository
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{products: make(map[models.ID]*domain.Product)}
}

// Save stores a product snapshot
func (r *MemoryProductRepository) Save(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(product); err != nil {
		return err
	}
	r.products[product.ID] = copyProduct(product)
	return nil
}

// checkLocked enforces the same optimistic rule as the postgres UPDATE:
// a write must carry exactly the stored version plus one
func (r *MemoryProductRepository) checkLocked(product *domain.Product) error {
	if existing, ok := r.products[product.ID]; ok {
		if product.Version.Value != existing.Version.Value+1 {
			return faults.Newf(faults.KindConflict, "product %s was modified concurrently", product.ID)
		}
	}
	return nil
}

// FindByID returns a copy of the stored product, or nil
func (r *MemoryProductRepository) FindByID(ctx context.Context, id models.ID) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return copyProduct(product), nil
}

// FindByIDs returns copies of every stored product with a matching ID
func (r *MemoryProductRepository) FindByIDs(ctx context.Context, ids []models.ID) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := r.products[id]; ok {
			products = append(products, copyProduct(product))
		}
	}
	return products, nil
}

// FindBySKU returns a copy of the product with the given SKU, or nil
func (r *MemoryProductRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, product := range r.products {
		if product.SKU == sku {
			return copyProduct(product), nil
		}
	}
	return nil, nil
}

func copyProduct(product *domain.Product) *domain.Product {
	clone := *product
	clone.ClearEvents()
	return &clone
}

// MemoryReservationRepository is an in-memory ReservationRepository. The
// order reference is the lookup key, mirroring the unique index in postgres.
type MemoryReservationRepository struct {
	mu           sync.RWMutex
	reservations map[string]*domain.InventoryReservation
}

// NewMemoryReservationRepository creates a MemoryReservationRepository
func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{reservations: make(map[string]*domain.InventoryReservation)}
}

// Save stores a reservation snapshot
func (r *MemoryReservationRepository) Save(ctx context.Context, reservation *domain.InventoryReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(reservation); err != nil {
		return err
	}
	r.reservations[reservation.OrderReference] = copyReservation(reservation)
	return nil
}

func (r *MemoryReservationRepository) checkLocked(reservation *domain.InventoryReservation) error {
	if existing, ok := r.reservations[reservation.OrderReference]; ok {
		if existing.ID != reservation.ID {
			return faults.Newf(faults.KindConflict, "order %s already has a reservation", reservation.OrderReference)
		}
		if reservation.Version.Value != existing.Version.Value+1 {
			return faults.Newf(faults.KindConflict, "reservation %s was modified concurrently", reservation.ID)
		}
	}
	return nil
}

// FindByOrderReference returns a copy of the reservation for the order, or nil
func (r *MemoryReservationRepository) FindByOrderReference(ctx context.Context, orderReference string) (*domain.InventoryReservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reservation, ok := r.reservations[orderReference]
	if !ok {
		return nil, nil
	}
	return copyReservation(reservation), nil
}

func copyReservation(reservation *domain.InventoryReservation) *domain.InventoryReservation {
	clone := *reservation
	clone.Items = make([]domain.ReservationItem, len(reservation.Items))
	copy(clone.Items, reservation.Items)
	clone.ClearEvents()
	return &clone
}

// MemoryInventoryWriter applies a reservation and its stock changes as one
// step across the two in-memory repositories, mirroring the single
// transaction of the postgres writer.
type MemoryInventoryWriter struct {
	products     *MemoryProductRepository
	reservations *MemoryReservationRepository
}

// NewMemoryInventoryWriter creates a MemoryInventoryWriter
func NewMemoryInventoryWriter(products *MemoryProductRepository, reservations *MemoryReservationRepository) *MemoryInventoryWriter {
	return &MemoryInventoryWriter{products: products, reservations: reservations}
}

// SaveReservationAndStock implements domain.InventoryWriter. Every version
// is verified before anything is written, so a stale writer changes nothing.
func (w *MemoryInventoryWriter) SaveReservationAndStock(ctx context.Context, reservation *domain.InventoryReservation, products []*domain.Product) error {
	w.products.mu.Lock()
	defer w.products.mu.Unlock()
	w.reservations.mu.Lock()
	defer w.reservations.mu.Unlock()

	if err := w.reservations.checkLocked(reservation); err != nil {
		return err
	}
	for _, product := range products {
		if err := w.products.checkLocked(product); err != nil {
			return err
		}
	}

	w.reservations.reservations[reservation.OrderReference] = copyReservation(reservation)
	for _, product := range products {
		w.products.products[product.ID] = copyProduct(product)
	}
	return nil
}
