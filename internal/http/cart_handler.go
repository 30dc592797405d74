package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	timeout time.Duration
}

func NewCartHandler(timeout time.Duration) *CartHandler {
	return &CartHandler{timeout: timeout}
}

type AddItemRequestDTO struct {
	ItemID string          `json:"itemId"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Image  string          `json:"image,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFromContext(r.Context()).CartView())
}

// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ItemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "itemId is required")
		return
	}

	h.mutate(w, r, http.StatusCreated, func(ctx context.Context) error {
		return sessionFromContext(ctx).Cart.AddItem(ctx, domain.CartLineItem{
			ItemID:    req.ItemID,
			Name:      req.Name,
			UnitPrice: req.Price,
			ImageRef:  req.Image,
		})
	})
}

// PUT /api/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}
	itemID := chi.URLParam(r, "item_id")
	h.mutate(w, r, http.StatusOK, func(ctx context.Context) error {
		return sessionFromContext(ctx).Cart.SetQuantity(ctx, itemID, req.Quantity)
	})
}

// POST /api/cart/items/{item_id}/increment
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	h.mutate(w, r, http.StatusOK, func(ctx context.Context) error {
		return sessionFromContext(ctx).Cart.Increment(ctx, itemID)
	})
}

// POST /api/cart/items/{item_id}/decrement
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	h.mutate(w, r, http.StatusOK, func(ctx context.Context) error {
		return sessionFromContext(ctx).Cart.Decrement(ctx, itemID)
	})
}

// DELETE /api/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	h.mutate(w, r, http.StatusOK, func(ctx context.Context) error {
		return sessionFromContext(ctx).Cart.RemoveItem(ctx, itemID)
	})
}

// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, http.StatusOK, func(ctx context.Context) error {
		return sessionFromContext(ctx).Cart.Clear(ctx)
	})
}

func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, status, sessionFromContext(ctx).CartView())
}
