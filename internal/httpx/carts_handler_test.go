package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adiwijaya/go-cart-orders/internal/cart"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router http.Handler
	store  *cart.MemoryStore
	proc   *cart.Processor
	user   cart.User
	prods  []cart.Product
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := cart.NewMemoryStore()
	u, ps := store.SeedDemo()
	locks := cart.NewLockRegistry()
	svc := cart.NewService(store, locks, logger)

	proc := cart.NewProcessor(store, locks, 1, 8, logger)
	proc.SettleDelay = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	proc.Start(ctx)
	t.Cleanup(func() {
		proc.Close()
		proc.WaitClosed()
		cancel()
	})

	r := NewRouter()
	h := &CartsHandler{Service: svc, Processor: proc}
	h.Register(r)
	return &testAPI{router: r, store: store, proc: proc, user: u, prods: ps}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) createCart(t *testing.T) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/carts", `{"user_id":"`+a.user.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp CartResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.CartID
}

func TestCreateCartEndpoint(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/carts", `{"user_id":"`+a.user.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp CartResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "ACTIVE", resp.Status)

	w = a.do(t, http.MethodPost, "/api/carts", `{"user_id":"ghost"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/api/carts", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddAndRemoveItemEndpoints(t *testing.T) {
	a := newTestAPI(t)
	cartID := a.createCart(t)

	w := a.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_code":"PROD001","quantity":2}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var item ItemResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	require.Equal(t, 2, item.Quantity)

	w = a.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_code":"PROD001","quantity":0}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_code":"GHOST","quantity":1}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodDelete, "/api/carts/"+cartID+"/items/"+item.ProductID, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	// removing again: no longer in the cart
	w = a.do(t, http.MethodDelete, "/api/carts/"+cartID+"/items/"+item.ProductID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessEndpointAcceptsImmediately(t *testing.T) {
	a := newTestAPI(t)
	cartID := a.createCart(t)

	w := a.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_code":"PROD002","quantity":1}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodPost, "/api/carts/"+cartID+"/process", "")
	require.Equal(t, http.StatusAccepted, w.Code, "process must ack without waiting for completion")

	// poll the status endpoint until the async pipeline lands
	require.Eventually(t, func() bool {
		w := a.do(t, http.MethodGet, "/api/carts/"+cartID+"/status", "")
		if w.Code != http.StatusOK {
			return false
		}
		var resp CartResp
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			return false
		}
		return resp.Status == "PROCESSED" && resp.Total == "22.5"
	}, 5*time.Second, 10*time.Millisecond)

	// mutations after processing are rejected, not swallowed
	w = a.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_code":"PROD001","quantity":1}`)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestListEndpoints(t *testing.T) {
	a := newTestAPI(t)
	cartID := a.createCart(t)

	w := a.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_code":"PROD001","quantity":1}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodGet, "/api/carts/"+cartID+"/items", "")
	require.Equal(t, http.StatusOK, w.Code)
	var items []ItemResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)

	w = a.do(t, http.MethodGet, "/api/carts/user/"+a.user.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var carts []CartResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &carts))
	require.Len(t, carts, 1)

	w = a.do(t, http.MethodGet, "/api/carts/unknown/items", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, "/api/carts/user/unknown", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}
