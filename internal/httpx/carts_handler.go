package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adiwijaya/go-cart-orders/internal/cart"
	"github.com/adiwijaya/go-cart-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type CartsHandler struct {
	Service   *cart.Service
	Processor *cart.Processor
	Redis     *redis.Client // optional, for the status endpoint fast path
}

type CreateCartReq struct {
	UserID string `json:"user_id"`
}

type AddItemReq struct {
	ProductCode string `json:"product_code"`
	Quantity    int    `json:"quantity"`
}

type CartResp struct {
	CartID    string `json:"cart_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	Total     string `json:"total,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

type ItemResp struct {
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *CartsHandler) Register(r *chi.Mux) {
	r.Post("/api/carts", h.createCart)
	r.Post("/api/carts/{cartId}/items", h.addItem)
	r.Delete("/api/carts/{cartId}/items/{productId}", h.removeItem)
	r.Get("/api/carts/{cartId}/items", h.listItems)
	r.Get("/api/carts/{cartId}/status", h.cartStatus)
	r.Post("/api/carts/{cartId}/process", h.processCart)
	r.Get("/api/carts/user/{userId}", h.listCartsByUser)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, cart.ErrUserNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrProductNotFound),
		errors.Is(err, cart.ErrItemNotInCart):
		code = http.StatusNotFound
	case errors.Is(err, cart.ErrCartNotActive):
		code = http.StatusConflict
	case errors.Is(err, cart.ErrInvalidQuantity):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func toCartResp(c cart.Cart) CartResp {
	resp := CartResp{
		CartID:    c.ID,
		UserID:    c.UserID,
		Status:    string(c.Status),
		Error:     c.ProcessErr,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
	if c.Status == cart.StatusProcessed {
		resp.Total = c.Total.String()
	}
	return resp
}

func (h *CartsHandler) createCart(w http.ResponseWriter, r *http.Request) {
	var req CreateCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Service.CreateCart(ctx, req.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResp(c))
}

func (h *CartsHandler) addItem(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")
	var req AddItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_code"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Service.AddItem(ctx, cartID, req.ProductCode, req.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ItemResp{ItemID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity})
}

func (h *CartsHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")
	productID := chi.URLParam(r, "productId")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.RemoveItem(ctx, cartID, productID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartsHandler) listItems(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Service.ListItems(ctx, cartID)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]ItemResp, 0, len(items))
	for _, it := range items {
		out = append(out, ItemResp{ItemID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity})
	}
	writeJSON(w, http.StatusOK, out)
}

// cartStatus serves the processing outcome: Redis fast path, store fallback.
func (h *CartsHandler) cartStatus(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyCartStatus, cartID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	c, err := h.Service.FindCart(ctx, cartID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(c))
}

func (h *CartsHandler) processCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")

	// Fire and forget: the outcome channel is dropped here, completion is
	// observable via the status endpoint and the processed/failed events.
	if _, err := h.Processor.Submit(r.Context(), cartID); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "processing unavailable"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

func (h *CartsHandler) listCartsByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	carts, err := h.Service.ListCartsByUser(ctx, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]CartResp, 0, len(carts))
	for _, c := range carts {
		out = append(out, toCartResp(c))
	}
	writeJSON(w, http.StatusOK, out)
}
