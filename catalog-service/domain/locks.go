package domain

import (
	"sort"
	"sync"

	"github.com/orderflow/fulfillment-system/shared/models"
)

// ProductLockManager serializes stock mutations per product. Locks are
// always acquired in sorted product ID order so two reservations touching
// overlapping product sets cannot deadlock.
type ProductLockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProductLockManager creates a ProductLockManager
func NewProductLockManager() *ProductLockManager {
	return &ProductLockManager{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the locks for all given products and returns a function
// that releases them. Duplicate IDs are collapsed before acquisition.
func (m *ProductLockManager) Lock(ids []models.ID) func() {
	keys := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		key := id.String()
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	acquired := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		lock := m.lockFor(key)
		lock.Lock()
		acquired = append(acquired, lock)
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

func (m *ProductLockManager) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}
