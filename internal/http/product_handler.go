package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductHandler struct {
	catalog *service.CatalogService
	log     *zap.Logger
	timeout time.Duration
}

func NewProductHandler(catalog *service.CatalogService, log *zap.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{catalog: catalog, log: log, timeout: orDefault(timeout)}
}

type ProductRequest struct {
	ID          string          `json:"id,omitempty"`
	SellerID    string          `json:"sellerId,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Images      []string        `json:"images"`
	Colors      []string        `json:"colors"`
	Sizes       []string        `json:"sizes"`
	Features    []string        `json:"features"`
}

func (req ProductRequest) toDomain(sellerID string) *domain.Product {
	return &domain.Product{
		ID:          req.ID,
		SellerID:    sellerID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Brand:       req.Brand,
		Images:      req.Images,
		Colors:      req.Colors,
		Sizes:       req.Sizes,
		Features:    req.Features,
	}
}

type PartitionKeyResponse struct {
	ID           string `json:"id"`
	PartitionKey string `json:"partitionKey"`
}

// ListProducts handles GET /api/v1/products. The body is the cached catalog payload.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payload, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondRaw(w, http.StatusOK, payload)
}

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sellerID := identity(r).Email
	if req.SellerID != "" && req.SellerID != sellerID {
		if !allowSelf(w, r, req.SellerID) {
			return
		}
		sellerID = req.SellerID
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.CreateProduct(ctx, req.toDomain(sellerID))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// GetProduct handles GET /api/v1/products/{productID}/sellers/{sellerID}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"), chi.URLParam(r, "sellerID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// GetPartitionKey handles GET /api/v1/products/{productID}/partition-key
func (h *ProductHandler) GetPartitionKey(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "productID")
	pk, err := h.catalog.GetProductPartitionKey(ctx, id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, PartitionKeyResponse{ID: id, PartitionKey: pk})
}

// ListBySeller handles GET /api/v1/products/sellers/{sellerID}
func (h *ProductHandler) ListBySeller(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.GetProductsBySellerID(ctx, chi.URLParam(r, "sellerID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// UpdateProduct handles PUT /api/v1/products/{productID}/sellers/{sellerID}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	if !allowSelf(w, r, sellerID) {
		return
	}
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p := req.toDomain(sellerID)
	p.ID = chi.URLParam(r, "productID")

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	updated, err := h.catalog.UpdateProduct(ctx, p)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteProduct handles DELETE /api/v1/products/{productID}/sellers/{sellerID}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	if !allowSelf(w, r, sellerID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	deleted, err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productID"), sellerID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
