package handler

import (
	"context"
	"io"
	"sync"

	"github.com/vyrodovalexey/productstore/internal/importer"
	"github.com/vyrodovalexey/productstore/internal/model"
	"github.com/vyrodovalexey/productstore/internal/store"
)

// mockRecordStore implements store.RecordStore for testing.
type mockRecordStore struct {
	records   []model.Product
	listErr   error
	insertErr error
	updateErr error
	deleteErr error

	lastOld    model.Product
	lastNew    model.Product
	lastDelete model.Product
}

func (m *mockRecordStore) Insert(_ context.Context, p model.Product) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.records = append(m.records, p)
	return nil
}

func (m *mockRecordStore) ListAll(_ context.Context) ([]model.Product, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]model.Product, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *mockRecordStore) Update(_ context.Context, old, updated model.Product) error {
	m.lastOld, m.lastNew = old, updated
	return m.updateErr
}

func (m *mockRecordStore) Delete(_ context.Context, p model.Product) error {
	m.lastDelete = p
	return m.deleteErr
}

func (m *mockRecordStore) ReplaceAll(_ context.Context, products []model.Product) error {
	m.records = products
	return nil
}

// mockImporter implements RecordImporter for testing.
type mockImporter struct {
	report *importer.Report
	err    error
	body   string
}

func (m *mockImporter) Import(_ context.Context, r io.Reader) (*importer.Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.body = string(data)
	return m.report, m.err
}

// mockCatalog implements store.CatalogStore for testing.
type mockCatalog struct {
	products  map[int64]model.Product
	nextID    int64
	listErr   error
	createErr error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{products: make(map[int64]model.Product), nextID: 1}
}

func (m *mockCatalog) List(_ context.Context) ([]model.StoredProduct, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]model.StoredProduct, 0, len(m.products))
	for id := int64(1); id < m.nextID; id++ {
		if p, ok := m.products[id]; ok {
			out = append(out, model.StoredProduct{ID: id, Product: p})
		}
	}
	return out, nil
}

func (m *mockCatalog) Get(_ context.Context, id int64) (*model.StoredProduct, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &model.StoredProduct{ID: id, Product: p}, nil
}

func (m *mockCatalog) Create(_ context.Context, p *model.Product) (*model.StoredProduct, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	id := m.nextID
	m.nextID++
	m.products[id] = *p
	return &model.StoredProduct{ID: id, Product: *p}, nil
}

func (m *mockCatalog) Update(_ context.Context, id int64, p *model.Product) (*model.StoredProduct, error) {
	if _, ok := m.products[id]; !ok {
		return nil, store.ErrNotFound
	}
	m.products[id] = *p
	return &model.StoredProduct{ID: id, Product: *p}, nil
}

func (m *mockCatalog) Delete(_ context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

// recordingNotifier collects broadcast events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (n *recordingNotifier) Broadcast(event model.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []model.ChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.ChangeEvent(nil), n.events...)
}
