package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tableside/api/internal/cart"
	"github.com/tableside/api/internal/handler"
)

func setupCartRouter(carts *cart.Store, catalog handler.CartCatalog) http.Handler {
	h := handler.NewCartHandler(carts, catalog)
	r := chi.NewRouter()
	r.Route("/tables/{tid}/cart", h.RegisterRoutes)
	return r
}

func addItemBody(t *testing.T, mealID uuid.UUID) *bytes.Reader {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"meal_id": mealID.String()})
	return bytes.NewReader(body)
}

func TestCartAddItem(t *testing.T) {
	adobo := testMenuItem("Chicken Adobo", "120.00", 3, "mains")
	catalog := newMockMenuStore(adobo)
	carts := cart.NewStore()
	router := setupCartRouter(carts, catalog)

	// Three single-unit adds group into one line.
	var rr *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/tables/4/cart/items", addItemBody(t, adobo.ID))
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("add %d: expected status 200, got %d: %s", i+1, rr.Code, rr.Body.String())
		}
	}

	var got struct {
		TableID   int32 `json:"table_id"`
		ItemCount int   `json:"item_count"`
		Total     string
		Lines     []struct {
			Name     string `json:"name"`
			Quantity int32  `json:"quantity"`
			Subtotal string `json:"subtotal"`
		} `json:"lines"`
	}
	decodeBody(t, rr, &got)

	if got.ItemCount != 3 || len(got.Lines) != 1 {
		t.Errorf("expected 3 units in 1 line, got %d units in %d lines", got.ItemCount, len(got.Lines))
	}
	if got.Lines[0].Quantity != 3 || got.Lines[0].Subtotal != "360.00" {
		t.Errorf("line: got %+v", got.Lines[0])
	}
}

func TestCartAddItem_StockExceeded(t *testing.T) {
	adobo := testMenuItem("Chicken Adobo", "120.00", 1, "mains")
	catalog := newMockMenuStore(adobo)
	carts := cart.NewStore()
	router := setupCartRouter(carts, catalog)

	req := httptest.NewRequest(http.MethodPost, "/tables/4/cart/items", addItemBody(t, adobo.ID))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first add: expected status 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/tables/4/cart/items", addItemBody(t, adobo.ID))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}

	// The rejected add leaves the cart as it was.
	if carts.ItemCount(4) != 1 {
		t.Errorf("item count: got %d, want 1", carts.ItemCount(4))
	}
}

func TestCartAddItem_UnknownMeal(t *testing.T) {
	catalog := newMockMenuStore()
	router := setupCartRouter(cart.NewStore(), catalog)

	req := httptest.NewRequest(http.MethodPost, "/tables/4/cart/items", addItemBody(t, uuid.New()))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestCartAddItem_InvalidTable(t *testing.T) {
	catalog := newMockMenuStore()
	router := setupCartRouter(cart.NewStore(), catalog)

	for _, tid := range []string{"0", "-2", "abc"} {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/tables/%s/cart/items", tid), addItemBody(t, uuid.New()))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("table %q: expected status 400, got %d", tid, rr.Code)
		}
	}
}

func TestCartRemoveItem(t *testing.T) {
	adobo := testMenuItem("Chicken Adobo", "120.00", 5, "mains")
	catalog := newMockMenuStore(adobo)
	carts := cart.NewStore()
	router := setupCartRouter(carts, catalog)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/tables/4/cart/items", addItemBody(t, adobo.ID))
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/tables/4/cart/items/%s", adobo.ID), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var got map[string]any
	decodeBody(t, rr, &got)
	if got["item_count"].(float64) != 1 {
		t.Errorf("item count: got %v, want 1", got["item_count"])
	}

	// Removing an item that isn't in the cart is a quiet no-op.
	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/tables/4/cart/items/%s", uuid.New()), nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("no-op remove: expected status 200, got %d", rr.Code)
	}
}

func TestCartGet_Empty(t *testing.T) {
	router := setupCartRouter(cart.NewStore(), newMockMenuStore())

	req := httptest.NewRequest(http.MethodGet, "/tables/9/cart", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var got struct {
		ItemCount int    `json:"item_count"`
		Total     string `json:"total"`
	}
	decodeBody(t, rr, &got)
	if got.ItemCount != 0 || got.Total != "0.00" {
		t.Errorf("empty cart: got count %d total %s", got.ItemCount, got.Total)
	}
}
