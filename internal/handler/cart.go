package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/cart"
	"github.com/tableside/api/internal/database"
)

// CartCatalog is the slice of the menu store the cart needs to snapshot
// items from. Satisfied by *database.Queries.
type CartCatalog interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
}

// CartHandler exposes the shared cart store to the customer view.
type CartHandler struct {
	carts   *cart.Store
	catalog CartCatalog
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(carts *cart.Store, catalog CartCatalog) *CartHandler {
	return &CartHandler{carts: carts, catalog: catalog}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
// Expected to be mounted inside a table-scoped subrouter: /tables/{tid}/cart
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/items", h.AddItem)
	r.Delete("/items/{itemID}", h.RemoveItem)
}

// --- Request / Response types ---

type addCartItemRequest struct {
	MealID string `json:"meal_id"`
}

type cartLineResponse struct {
	MealID   uuid.UUID `json:"meal_id"`
	Name     string    `json:"name"`
	Price    string    `json:"price"`
	Quantity int32     `json:"quantity"`
	Subtotal string    `json:"subtotal"`
}

type cartResponse struct {
	TableID   int32              `json:"table_id"`
	Lines     []cartLineResponse `json:"lines"`
	ItemCount int                `json:"item_count"`
	Total     string             `json:"total"`
}

func (h *CartHandler) toCartResponse(tableID int32) cartResponse {
	lines := h.carts.Lines(tableID)
	resp := cartResponse{
		TableID:   tableID,
		Lines:     make([]cartLineResponse, len(lines)),
		ItemCount: h.carts.ItemCount(tableID),
		Total:     h.carts.Total(tableID).StringFixed(2),
	}
	for i, line := range lines {
		resp.Lines[i] = cartLineResponse{
			MealID:   line.Item.ID,
			Name:     line.Item.Name,
			Price:    line.Item.Price.StringFixed(2),
			Quantity: line.Quantity,
			Subtotal: line.Item.Price.Mul(decimal.NewFromInt32(line.Quantity)).StringFixed(2),
		}
	}
	return resp
}

// --- Handlers ---

// Get handles GET /tables/{tid}/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	tableID, err := parseTableID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(tableID))
}

// AddItem handles POST /tables/{tid}/cart/items: one unit per call.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	tableID, err := parseTableID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	mealID, err := uuid.Parse(req.MealID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid meal_id"})
		return
	}

	item, err := h.catalog.GetMenuItem(r.Context(), mealID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item for cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := h.carts.AddSelection(tableID, cart.Item{
		ID:        item.ID,
		Name:      item.Name,
		Price:     numericToDecimal(item.Price),
		Available: item.Quantity,
	}); err != nil {
		var stockErr *cart.StockExceededError
		if errors.As(err, &stockErr) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": stockErr.Error()})
			return
		}
		log.Printf("ERROR: add cart selection: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, h.toCartResponse(tableID))
}

// RemoveItem handles DELETE /tables/{tid}/cart/items/{itemID}: removes one
// unit. Removing an absent item is a no-op.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	tableID, err := parseTableID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	h.carts.RemoveOneUnit(tableID, itemID)
	writeJSON(w, http.StatusOK, h.toCartResponse(tableID))
}
