// Package store provides product storage backends.
//
// Two backends with different identity models live here. RecordStore is the
// flat-file backend: records have no identity and are addressed by value.
// CatalogStore is the relational backend: products are addressed by an
// auto-increment integer ID.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/productstore/internal/model"
)

// Store errors.
var (
	ErrNotFound      = errors.New("product not found")
	ErrInvalidID     = errors.New("invalid product ID")
	ErrNilProduct    = errors.New("product cannot be nil")
	ErrNoMatch       = errors.New("no record matches the given values")
	ErrMalformedLine = errors.New("malformed record line")
	ErrIO            = errors.New("record file I/O failed")
	ErrInvalidPath   = errors.New("record file path cannot be empty")
)

// RecordStore defines value-addressed storage of products in a flat file.
// Update and Delete act on the first record, in file order, whose values
// match the given product.
type RecordStore interface {
	// Insert appends a record.
	Insert(ctx context.Context, p model.Product) error

	// ListAll returns every well-formed record in file order.
	ListAll(ctx context.Context) ([]model.Product, error)

	// Update replaces the first record matching old with updated.
	Update(ctx context.Context, old, updated model.Product) error

	// Delete removes the first record matching p.
	Delete(ctx context.Context, p model.Product) error

	// ReplaceAll rewrites the whole store with the given records.
	ReplaceAll(ctx context.Context, products []model.Product) error
}

// CatalogStore defines ID-addressed product storage.
type CatalogStore interface {
	// List returns all products ordered by ID.
	List(ctx context.Context) ([]model.StoredProduct, error)

	// Get retrieves a product by its ID.
	Get(ctx context.Context, id int64) (*model.StoredProduct, error)

	// Create adds a new product and returns it with its generated ID.
	Create(ctx context.Context, p *model.Product) (*model.StoredProduct, error)

	// Update modifies an existing product.
	Update(ctx context.Context, id int64, p *model.Product) (*model.StoredProduct, error)

	// Delete removes a product by its ID.
	Delete(ctx context.Context, id int64) error
}
