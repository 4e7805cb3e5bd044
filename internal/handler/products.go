package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/productstore/internal/model"
	"github.com/vyrodovalexey/productstore/internal/store"
)

// ProductsHandler exposes the id-addressed product catalog.
type ProductsHandler struct {
	catalog  store.CatalogStore
	notifier Notifier
	responder
}

// NewProductsHandler creates a ProductsHandler. notifier may be nil.
func NewProductsHandler(catalog store.CatalogStore, notifier Notifier, logger *zap.Logger) *ProductsHandler {
	return &ProductsHandler{
		catalog:   catalog,
		notifier:  notifier,
		responder: responder{logger: logger},
	}
}

// RegisterRoutes registers the /api/v1/products routes.
func (h *ProductsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/products", h.ListProducts).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/products", h.CreateProduct).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/products/{id}", h.GetProduct).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/products/{id}", h.UpdateProduct).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/products/{id}", h.DeleteProduct).Methods(http.MethodDelete)
}

// ListProducts handles GET /api/v1/products.
func (h *ProductsHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "list products")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(products))
}

// GetProduct handles GET /api/v1/products/{id}.
func (h *ProductsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, "get product")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(product))
}

// CreateProduct handles POST /api/v1/products.
func (h *ProductsHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input model.Product
	if !h.decodeBody(w, r, &input) {
		return
	}

	input = input.Normalized()
	if !h.validate(w, &input) {
		return
	}

	created, err := h.catalog.Create(r.Context(), &input)
	if err != nil {
		h.handleStoreError(w, err, "create product")
		return
	}

	h.notify(model.ChangeInserted, created)
	h.writeJSON(w, http.StatusCreated, model.NewSuccessResponse(created))
}

// UpdateProduct handles PUT /api/v1/products/{id}.
func (h *ProductsHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var input model.Product
	if !h.decodeBody(w, r, &input) {
		return
	}

	input = input.Normalized()
	if !h.validate(w, &input) {
		return
	}

	updated, err := h.catalog.Update(r.Context(), id, &input)
	if err != nil {
		h.handleStoreError(w, err, "update product")
		return
	}

	h.notify(model.ChangeUpdated, updated)
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(updated))
}

// DeleteProduct handles DELETE /api/v1/products/{id}.
func (h *ProductsHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.handleStoreError(w, err, "delete product")
		return
	}

	h.notify(model.ChangeDeleted, &model.StoredProduct{ID: id})
	h.writeJSON(w, http.StatusNoContent, nil)
}

func (h *ProductsHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid product ID")
		return 0, false
	}
	return id, true
}

func (h *ProductsHandler) notify(changeType string, sp *model.StoredProduct) {
	var p *model.Product
	if sp.Name != "" {
		p = &sp.Product
	}
	event := model.NewChangeEvent(model.SourceProducts, changeType, p)
	event.ID = sp.ID
	notify(h.notifier, event)
}

func (h *ProductsHandler) handleStoreError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, store.ErrInvalidID):
		h.writeError(w, http.StatusBadRequest, "invalid product ID")
	default:
		h.logger.Error("catalog operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
