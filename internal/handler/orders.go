package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/cart"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/service"
	"github.com/tableside/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Checkout(ctx context.Context, tableID int32, lines []cart.Line) (*service.OrderDetail, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next string) (*service.OrderDetail, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*service.OrderDetail, error)
	AttachFeedback(ctx context.Context, orderID uuid.UUID, fb service.Feedback) (database.Order, error)
	OrdersForTable(ctx context.Context, tableID int32) ([]service.OrderDetail, error)
	LatestOrderForTable(ctx context.Context, tableID int32) (*service.OrderDetail, error)
	PendingOrders(ctx context.Context) ([]service.OrderDetail, error)
	KitchenOrders(ctx context.Context) ([]service.OrderDetail, error)
}

// Broadcaster pushes live-update events to subscribed staff and table views.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(channel string, event ws.Event)
}

// OrderHandler handles order lifecycle endpoints.
type OrderHandler struct {
	svc          OrderServicer
	carts        *cart.Store
	hub          Broadcaster
	imageBaseURL string
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, carts *cart.Store, hub Broadcaster, imageBaseURL string) *OrderHandler {
	return &OrderHandler{svc: svc, carts: carts, hub: hub, imageBaseURL: imageBaseURL}
}

// RegisterTableRoutes registers the customer-facing order endpoints.
// Expected to be mounted inside a table-scoped subrouter: /tables/{tid}/orders
func (h *OrderHandler) RegisterTableRoutes(r chi.Router) {
	r.Post("/", h.Checkout)
	r.Get("/", h.ListForTable)
	r.Get("/latest", h.Latest)
}

// RegisterRoutes registers the staff-facing order endpoints.
// Expected to be mounted at /orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/pending", h.Pending)
	r.Get("/kitchen", h.Kitchen)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
	r.Post("/{id}/feedback", h.Feedback)
}

// --- Request / Response types ---

type updateStatusRequest struct {
	Status string `json:"status"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type feedbackRequest struct {
	FoodRating    int    `json:"food_rating"`
	ServiceRating int    `json:"service_rating"`
	Comments      string `json:"comments"`
}

type orderLineResponse struct {
	ID       uuid.UUID `json:"id"`
	MealID   uuid.UUID `json:"meal_id"`
	Name     string    `json:"name"`
	Price    string    `json:"price"`
	ImageURL *string   `json:"image_url"`
	Category *string   `json:"category"`
	Quantity int32     `json:"quantity"`
	Subtotal string    `json:"subtotal"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	TableID     int32               `json:"table_id"`
	Status      string              `json:"status"`
	TotalAmount string              `json:"total_amount"`
	Feedback    *json.RawMessage    `json:"feedback"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Items       []orderLineResponse `json:"items"`
}

func (h *OrderHandler) toOrderResponse(d *service.OrderDetail) orderResponse {
	o := d.Order
	resp := orderResponse{
		ID:          o.ID,
		TableID:     o.TableID,
		Status:      o.Status,
		TotalAmount: numericToString(o.TotalAmount),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Items:       make([]orderLineResponse, len(d.Lines)),
	}
	if o.Feedback.Valid {
		raw := json.RawMessage(o.Feedback.String)
		resp.Feedback = &raw
	}
	for i, line := range d.Lines {
		price := numericToDecimal(line.Price)
		lr := orderLineResponse{
			ID:       line.ID,
			MealID:   line.MealID,
			Name:     line.MealName,
			Price:    price.StringFixed(2),
			Quantity: line.Quantity,
			Subtotal: price.Mul(decimal.NewFromInt32(line.Quantity)).StringFixed(2),
		}
		if line.ImageUrl.Valid {
			url := resolveImageURL(h.imageBaseURL, line.ImageUrl.String)
			lr.ImageURL = &url
		}
		if line.Category.Valid {
			lr.Category = &line.Category.String
		}
		resp.Items[i] = lr
	}
	return resp
}

// --- Handlers ---

// Checkout handles POST /tables/{tid}/orders: places (or replaces) the
// table's pending order from its current cart, then clears the cart.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	tableID, err := parseTableID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	lines := h.carts.Lines(tableID)
	detail, err := h.svc.Checkout(r.Context(), tableID, lines)
	if err != nil {
		h.writeOrderError(w, "checkout", err)
		return
	}
	h.carts.Clear(tableID)

	resp := h.toOrderResponse(detail)
	h.notify(enum.EventOrderCreated, resp)

	writeJSON(w, http.StatusCreated, resp)
}

// ListForTable handles GET /tables/{tid}/orders.
func (h *OrderHandler) ListForTable(w http.ResponseWriter, r *http.Request) {
	tableID, err := parseTableID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	details, err := h.svc.OrdersForTable(r.Context(), tableID)
	if err != nil {
		h.writeOrderError(w, "list orders for table", err)
		return
	}

	writeJSON(w, http.StatusOK, h.toOrderResponses(details))
}

// Latest handles GET /tables/{tid}/orders/latest, the waiting-room poll.
func (h *OrderHandler) Latest(w http.ResponseWriter, r *http.Request) {
	tableID, err := parseTableID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	detail, err := h.svc.LatestOrderForTable(r.Context(), tableID)
	if err != nil {
		h.writeOrderError(w, "latest order for table", err)
		return
	}

	writeJSON(w, http.StatusOK, h.toOrderResponse(detail))
}

// Pending handles GET /orders/pending, the cashier review queue.
func (h *OrderHandler) Pending(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.PendingOrders(r.Context())
	if err != nil {
		h.writeOrderError(w, "list pending orders", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrderResponses(details))
}

// Kitchen handles GET /orders/kitchen: confirmed and preparing orders.
func (h *OrderHandler) Kitchen(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.KitchenOrders(r.Context())
	if err != nil {
		h.writeOrderError(w, "list kitchen orders", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrderResponses(details))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	detail, err := h.svc.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		h.writeOrderError(w, "update order status", err)
		return
	}

	resp := h.toOrderResponse(detail)
	h.notify(enum.EventOrderStatusChanged, resp)

	writeJSON(w, http.StatusOK, resp)
}

// Cancel handles DELETE /orders/{id} with an optional JSON reason body.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req cancelRequest
	// The body is optional; ignore decode failures on an empty body.
	_ = json.NewDecoder(r.Body).Decode(&req)

	detail, err := h.svc.Cancel(r.Context(), orderID, req.Reason)
	if err != nil {
		h.writeOrderError(w, "cancel order", err)
		return
	}

	resp := h.toOrderResponse(detail)
	h.notify(enum.EventOrderStatusChanged, resp)

	writeJSON(w, http.StatusOK, resp)
}

// Feedback handles POST /orders/{id}/feedback.
func (h *OrderHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.AttachFeedback(r.Context(), orderID, service.Feedback{
		FoodRating:    req.FoodRating,
		ServiceRating: req.ServiceRating,
		Comments:      req.Comments,
	})
	if err != nil {
		h.writeOrderError(w, "attach feedback", err)
		return
	}

	var raw *json.RawMessage
	if order.Feedback.Valid {
		m := json.RawMessage(order.Feedback.String)
		raw = &m
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       order.ID,
		"status":   order.Status,
		"feedback": raw,
	})
}

// --- Helpers ---

func (h *OrderHandler) toOrderResponses(details []service.OrderDetail) []orderResponse {
	resp := make([]orderResponse, len(details))
	for i := range details {
		resp[i] = h.toOrderResponse(&details[i])
	}
	return resp
}

// notify broadcasts an order event to the staff queues and the table's
// waiting room.
func (h *OrderHandler) notify(eventType string, resp orderResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	event := ws.Event{Type: eventType, Payload: payload}
	h.hub.Broadcast(ws.ChannelPending, event)
	h.hub.Broadcast(ws.ChannelKitchen, event)
	h.hub.Broadcast(fmt.Sprintf("table:%d", resp.TableID), event)
}

// writeOrderError maps service errors to HTTP status codes.
func (h *OrderHandler) writeOrderError(w http.ResponseWriter, op string, err error) {
	var stockErr *cart.StockExceededError
	var transitionErr *service.InvalidTransitionError

	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": stockErr.Error()})
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": transitionErr.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrNotCompleted), errors.Is(err, service.ErrFeedbackExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case isOrderValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isOrderValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyCart) ||
		errors.Is(err, service.ErrInvalidTableID) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrMenuItemNotFound) ||
		errors.Is(err, service.ErrInvalidRating) ||
		errors.Is(err, service.ErrCommentTooLong)
}
