package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/cart"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order lifecycle needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetMenuItemForUpdate(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetPendingOrderForTable(ctx context.Context, tableID int32) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ApplyOrderCompletion(ctx context.Context, arg database.ApplyOrderCompletionParams) (database.MenuItem, error)
	SetOrderFeedback(ctx context.Context, arg database.SetOrderFeedbackParams) (database.Order, error)
	ListOrdersByTable(ctx context.Context, tableID int32) ([]database.Order, error)
	GetLatestOrderForTable(ctx context.Context, tableID int32) (database.Order, error)
	ListPendingOrders(ctx context.Context) ([]database.Order, error)
	ListKitchenOrders(ctx context.Context) ([]database.Order, error)
	ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderLinesRow, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// OrderDetail is the richest read shape: an order with its line items and the
// referenced menu items resolved. Consumers project what they need.
type OrderDetail struct {
	Order database.Order
	Lines []database.ListOrderLinesRow
}

// Feedback is the rating payload a customer submits after completion.
type Feedback struct {
	FoodRating    int    `json:"food_rating"`
	ServiceRating int    `json:"service_rating"`
	Comments      string `json:"comments"`
	SubmittedAt   string `json:"submitted_at"`
}

// allowedTransitions defines the order status state machine. PENDING is the
// initial status; COMPLETED and CANCELLED are terminal.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusConfirmed, enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed: {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusCompleted},
}

// validateTransition checks the transition table before any write happens.
func validateTransition(current, next string) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return &InvalidTransitionError{From: current, To: next}
}

// OrderService owns the order lifecycle: checkout upserts, status transitions,
// the completion side effect, feedback, and the nested read operations.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService. store runs plain reads against
// the pool; newStore builds transaction-scoped stores for the write paths.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, store: store, newStore: newStore}
}

// Checkout turns the table's grouped cart lines into a persisted order.
//
// Every line is validated against current stock inside the transaction with
// the menu rows locked, so two tables racing for the last unit serialize; a
// violation aborts the whole checkout with *cart.StockExceededError. If the
// table already has a PENDING order its line items are replaced wholesale and
// the total updated in place, keeping at most one pending order per table.
func (s *OrderService) Checkout(ctx context.Context, tableID int32, lines []cart.Line) (*OrderDetail, error) {
	if tableID <= 0 {
		return nil, ErrInvalidTableID
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persist("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Validate stock and compute the total from authoritative menu prices.
	total := decimal.Zero
	for i, line := range lines {
		item, err := store.GetMenuItemForUpdate(ctx, line.Item.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("lines[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, persist(fmt.Sprintf("lines[%d]: get menu item", i), err)
		}
		if line.Quantity > item.Quantity {
			return nil, &cart.StockExceededError{Name: item.Name, Available: item.Quantity}
		}
		total = total.Add(numericToDecimal(item.Price).Mul(decimal.NewFromInt32(line.Quantity)))
	}

	// Upsert: reuse the table's PENDING order when one exists.
	order, err := store.GetPendingOrderForTable(ctx, tableID)
	switch {
	case err == nil:
		if err := store.DeleteOrderItems(ctx, order.ID); err != nil {
			return nil, persist("delete order items", err)
		}
		order, err = store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
			ID:          order.ID,
			TotalAmount: decimalToNumeric(total),
		})
		if err != nil {
			return nil, persist("update order total", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		order, err = store.CreateOrder(ctx, database.CreateOrderParams{
			TableID:     tableID,
			TotalAmount: decimalToNumeric(total),
		})
		if err != nil {
			return nil, persist("create order", err)
		}
	default:
		return nil, persist("get pending order", err)
	}

	for i, line := range lines {
		if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:  order.ID,
			MealID:   line.Item.ID,
			Quantity: line.Quantity,
		}); err != nil {
			return nil, persist(fmt.Sprintf("lines[%d]: create order item", i), err)
		}
	}

	detail, err := s.orderDetail(ctx, store, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persist("commit tx", err)
	}
	return detail, nil
}

// UpdateStatus advances an order through the state machine. Transitions are
// validated against the table first, then persisted with a compare-and-set on
// the current status; a write raced by another transition fails as
// *InvalidTransitionError rather than being applied twice.
//
// A transition into COMPLETED applies the inventory side effect in the same
// transaction as the status write, so it runs exactly once per order.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next string) (*OrderDetail, error) {
	if !enum.IsValidOrderStatus(next) {
		return nil, ErrInvalidStatus
	}

	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, persist("get order", err)
	}

	if err := validateTransition(current.Status, next); err != nil {
		return nil, err
	}

	if next == enum.OrderStatusCompleted {
		return s.complete(ctx, current)
	}

	order, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:      orderID,
		Current: current.Status,
		Next:    next,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Status changed between our read and write.
			return nil, &InvalidTransitionError{From: current.Status, To: next}
		}
		return nil, persist("update order status", err)
	}

	return s.orderDetail(ctx, s.store, order)
}

// Cancel rejects an order with an optional free-text reason. The reason is
// logged, not persisted; cancellation is only a status write.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*OrderDetail, error) {
	if reason != "" {
		log.Printf("order %s cancelled: %s", orderID, reason)
	}
	return s.UpdateStatus(ctx, orderID, enum.OrderStatusCancelled)
}

// complete performs READY -> COMPLETED atomically with the inventory/sales
// side effect: per line item, sales += quantity and stock -= quantity clamped
// at zero. The CAS status write guards the whole transaction, so a repeated
// or raced completion applies nothing.
func (s *OrderService) complete(ctx context.Context, current database.Order) (*OrderDetail, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persist("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:      current.ID,
		Current: enum.OrderStatusReady,
		Next:    enum.OrderStatusCompleted,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &InvalidTransitionError{From: current.Status, To: enum.OrderStatusCompleted}
		}
		return nil, persist("complete order", err)
	}

	lines, err := store.ListOrderLines(ctx, order.ID)
	if err != nil {
		return nil, persist("list order lines", err)
	}

	for _, line := range lines {
		if line.Quantity > line.MealQuantity {
			// Recorded stock was already inconsistent; tolerate the drift and clamp.
			log.Printf("WARN: order %s: clamping stock of %q (have %d, sold %d)",
				order.ID, line.MealName, line.MealQuantity, line.Quantity)
		}
		if _, err := store.ApplyOrderCompletion(ctx, database.ApplyOrderCompletionParams{
			MealID:   line.MealID,
			Quantity: line.Quantity,
		}); err != nil {
			return nil, persist("apply order completion", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persist("commit tx", err)
	}
	return &OrderDetail{Order: order, Lines: lines}, nil
}

// AttachFeedback serializes the rating payload into the order's feedback
// column. Valid only once, and only on COMPLETED orders; the status is never
// touched.
func (s *OrderService) AttachFeedback(ctx context.Context, orderID uuid.UUID, fb Feedback) (database.Order, error) {
	if fb.FoodRating < enum.RatingMin || fb.FoodRating > enum.RatingMax ||
		fb.ServiceRating < enum.RatingMin || fb.ServiceRating > enum.RatingMax {
		return database.Order{}, ErrInvalidRating
	}
	if len(fb.Comments) > enum.FeedbackMaxChars {
		return database.Order{}, ErrCommentTooLong
	}

	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, persist("get order", err)
	}
	if current.Status != enum.OrderStatusCompleted {
		return database.Order{}, ErrNotCompleted
	}
	if current.Feedback.Valid {
		return database.Order{}, ErrFeedbackExists
	}

	fb.SubmittedAt = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(fb)
	if err != nil {
		return database.Order{}, fmt.Errorf("marshal feedback: %w", err)
	}

	order, err := s.store.SetOrderFeedback(ctx, database.SetOrderFeedbackParams{
		ID:       orderID,
		Feedback: string(payload),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Raced by another submission between our read and write.
			return database.Order{}, ErrFeedbackExists
		}
		return database.Order{}, persist("set order feedback", err)
	}
	return order, nil
}

// OrdersForTable returns every order for a table, newest first, each with its
// lines and resolved menu items.
func (s *OrderService) OrdersForTable(ctx context.Context, tableID int32) ([]OrderDetail, error) {
	orders, err := s.store.ListOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, persist("list orders by table", err)
	}
	return s.orderDetails(ctx, orders)
}

// LatestOrderForTable returns the table's most recent order with its lines,
// or ErrOrderNotFound when the table has never ordered. This is the read the
// customer waiting room polls.
func (s *OrderService) LatestOrderForTable(ctx context.Context, tableID int32) (*OrderDetail, error) {
	order, err := s.store.GetLatestOrderForTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, persist("get latest order", err)
	}
	return s.orderDetail(ctx, s.store, order)
}

// PendingOrders returns the staff review queue, oldest first.
func (s *OrderService) PendingOrders(ctx context.Context) ([]OrderDetail, error) {
	orders, err := s.store.ListPendingOrders(ctx)
	if err != nil {
		return nil, persist("list pending orders", err)
	}
	return s.orderDetails(ctx, orders)
}

// KitchenOrders returns approved orders awaiting or under preparation,
// oldest first.
func (s *OrderService) KitchenOrders(ctx context.Context) ([]OrderDetail, error) {
	orders, err := s.store.ListKitchenOrders(ctx)
	if err != nil {
		return nil, persist("list kitchen orders", err)
	}
	return s.orderDetails(ctx, orders)
}

func (s *OrderService) orderDetail(ctx context.Context, store OrderStore, order database.Order) (*OrderDetail, error) {
	lines, err := store.ListOrderLines(ctx, order.ID)
	if err != nil {
		return nil, persist("list order lines", err)
	}
	return &OrderDetail{Order: order, Lines: lines}, nil
}

func (s *OrderService) orderDetails(ctx context.Context, orders []database.Order) ([]OrderDetail, error) {
	details := make([]OrderDetail, len(orders))
	for i, order := range orders {
		d, err := s.orderDetail(ctx, s.store, order)
		if err != nil {
			return nil, err
		}
		details[i] = *d
	}
	return details, nil
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
