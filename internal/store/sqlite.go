package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	// Registers the pure-Go "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/vyrodovalexey/productstore/internal/model"
)

const createProductsTable = `CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	price REAL NOT NULL,
	quantity INTEGER NOT NULL
)`

const (
	insertProductSQL = `INSERT INTO products (name, price, quantity) VALUES (?, ?, ?)`
	selectProductSQL = `SELECT id, name, price, quantity FROM products WHERE id = ?`
	selectAllSQL     = `SELECT id, name, price, quantity FROM products ORDER BY id`
	updateProductSQL = `UPDATE products SET name = ?, price = ?, quantity = ? WHERE id = ?`
	deleteProductSQL = `DELETE FROM products WHERE id = ?`
)

// SQLStore implements CatalogStore on a SQLite database.
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLStore opens (or creates) the SQLite database at path and makes sure
// the products table exists.
func OpenSQLStore(ctx context.Context, path string, logger *zap.Logger) (*SQLStore, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createProductsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create products table: %w", err)
	}

	logger.Info("sqlite catalog opened", zap.String("path", path))

	return &SQLStore{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// List returns all products ordered by ID.
func (s *SQLStore) List(ctx context.Context) (products []model.StoredProduct, err error) {
	defer func(start time.Time) { observe(backendSQLite, "list", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, selectAllSQL)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products = make([]model.StoredProduct, 0)
	for rows.Next() {
		var sp model.StoredProduct
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Price, &sp.Quantity); err != nil {
			return nil, fmt.Errorf("list products: scan: %w", err)
		}
		products = append(products, sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return products, nil
}

// Get retrieves a product by its ID.
func (s *SQLStore) Get(ctx context.Context, id int64) (sp *model.StoredProduct, err error) {
	defer func(start time.Time) { observe(backendSQLite, "get", start, err) }(time.Now())

	if id <= 0 {
		return nil, ErrInvalidID
	}

	var found model.StoredProduct
	err = s.db.QueryRowContext(ctx, selectProductSQL, id).
		Scan(&found.ID, &found.Name, &found.Price, &found.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	return &found, nil
}

// Create adds a new product and returns it with its generated ID.
func (s *SQLStore) Create(ctx context.Context, p *model.Product) (sp *model.StoredProduct, err error) {
	defer func(start time.Time) { observe(backendSQLite, "create", start, err) }(time.Now())

	if p == nil {
		return nil, fmt.Errorf("create product: %w", ErrNilProduct)
	}

	res, err := s.db.ExecContext(ctx, insertProductSQL, p.Name, p.Price, p.Quantity)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create product: last insert id: %w", err)
	}

	return &model.StoredProduct{ID: id, Product: *p}, nil
}

// Update modifies an existing product.
func (s *SQLStore) Update(ctx context.Context, id int64, p *model.Product) (sp *model.StoredProduct, err error) {
	defer func(start time.Time) { observe(backendSQLite, "update", start, err) }(time.Now())

	if id <= 0 {
		return nil, ErrInvalidID
	}
	if p == nil {
		return nil, fmt.Errorf("update product: %w", ErrNilProduct)
	}

	res, err := s.db.ExecContext(ctx, updateProductSQL, p.Name, p.Price, p.Quantity, id)
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}

	if err := requireAffected(res); err != nil {
		return nil, err
	}

	return &model.StoredProduct{ID: id, Product: *p}, nil
}

// Delete removes a product by its ID.
func (s *SQLStore) Delete(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { observe(backendSQLite, "delete", start, err) }(time.Now())

	if id <= 0 {
		return ErrInvalidID
	}

	res, err := s.db.ExecContext(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	return requireAffected(res)
}

// requireAffected maps a statement that touched no rows to ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
