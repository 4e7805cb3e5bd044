package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vyrodovalexey/productstore/internal/model"
)

// MemoryStore implements CatalogStore with in-memory storage.
// IDs are assigned from a counter and never reused.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]model.Product
	nextID   int64
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]model.Product),
		nextID:   1,
	}
}

// List returns all products ordered by ID.
func (s *MemoryStore) List(ctx context.Context) ([]model.StoredProduct, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list products: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]model.StoredProduct, 0, len(s.products))
	for id, p := range s.products {
		products = append(products, model.StoredProduct{ID: id, Product: p})
	}

	slices.SortFunc(products, func(a, b model.StoredProduct) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return products, nil
}

// Get retrieves a product by its ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*model.StoredProduct, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get product: %w", ctx.Err())
	default:
	}

	if id <= 0 {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, ErrNotFound
	}

	return &model.StoredProduct{ID: id, Product: p}, nil
}

// Create adds a new product and returns it with its generated ID.
func (s *MemoryStore) Create(ctx context.Context, p *model.Product) (*model.StoredProduct, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create product: %w", ctx.Err())
	default:
	}

	if p == nil {
		return nil, fmt.Errorf("create product: %w", ErrNilProduct)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.products[id] = *p

	return &model.StoredProduct{ID: id, Product: *p}, nil
}

// Update modifies an existing product.
func (s *MemoryStore) Update(ctx context.Context, id int64, p *model.Product) (*model.StoredProduct, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("update product: %w", ctx.Err())
	default:
	}

	if id <= 0 {
		return nil, ErrInvalidID
	}

	if p == nil {
		return nil, fmt.Errorf("update product: %w", ErrNilProduct)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return nil, ErrNotFound
	}

	s.products[id] = *p

	return &model.StoredProduct{ID: id, Product: *p}, nil
}

// Delete removes a product by its ID.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("delete product: %w", ctx.Err())
	default:
	}

	if id <= 0 {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return ErrNotFound
	}

	delete(s.products, id)

	return nil
}
