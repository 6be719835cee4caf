package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/cart"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	commits     int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getMenuItemForUpdateFn    func(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	getPendingOrderForTableFn func(ctx context.Context, tableID int32) (database.Order, error)
	createOrderFn             func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	updateOrderTotalFn        func(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	deleteOrderItemsFn        func(ctx context.Context, orderID uuid.UUID) error
	createOrderItemFn         func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderFn                func(ctx context.Context, id uuid.UUID) (database.Order, error)
	updateOrderStatusFn       func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	applyOrderCompletionFn    func(ctx context.Context, arg database.ApplyOrderCompletionParams) (database.MenuItem, error)
	setOrderFeedbackFn        func(ctx context.Context, arg database.SetOrderFeedbackParams) (database.Order, error)
	listOrdersByTableFn       func(ctx context.Context, tableID int32) ([]database.Order, error)
	getLatestOrderForTableFn  func(ctx context.Context, tableID int32) (database.Order, error)
	listPendingOrdersFn       func(ctx context.Context) ([]database.Order, error)
	listKitchenOrdersFn       func(ctx context.Context) ([]database.Order, error)
	listOrderLinesFn          func(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderLinesRow, error)
}

func (m *mockOrderStore) GetMenuItemForUpdate(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	return m.getMenuItemForUpdateFn(ctx, id)
}
func (m *mockOrderStore) GetPendingOrderForTable(ctx context.Context, tableID int32) (database.Order, error) {
	return m.getPendingOrderForTableFn(ctx, tableID)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
	return m.updateOrderTotalFn(ctx, arg)
}
func (m *mockOrderStore) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	return m.deleteOrderItemsFn(ctx, orderID)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderFn(ctx, id)
}
func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockOrderStore) ApplyOrderCompletion(ctx context.Context, arg database.ApplyOrderCompletionParams) (database.MenuItem, error) {
	return m.applyOrderCompletionFn(ctx, arg)
}
func (m *mockOrderStore) SetOrderFeedback(ctx context.Context, arg database.SetOrderFeedbackParams) (database.Order, error) {
	return m.setOrderFeedbackFn(ctx, arg)
}
func (m *mockOrderStore) ListOrdersByTable(ctx context.Context, tableID int32) ([]database.Order, error) {
	return m.listOrdersByTableFn(ctx, tableID)
}
func (m *mockOrderStore) GetLatestOrderForTable(ctx context.Context, tableID int32) (database.Order, error) {
	return m.getLatestOrderForTableFn(ctx, tableID)
}
func (m *mockOrderStore) ListPendingOrders(ctx context.Context) ([]database.Order, error) {
	return m.listPendingOrdersFn(ctx)
}
func (m *mockOrderStore) ListKitchenOrders(ctx context.Context) ([]database.Order, error) {
	return m.listKitchenOrdersFn(ctx)
}
func (m *mockOrderStore) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderLinesRow, error) {
	return m.listOrderLinesFn(ctx, orderID)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

// newTestService creates an OrderService with mocked dependencies.
// store backs both the plain reads and the transaction-scoped writes.
func newTestService(store *mockOrderStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, store, newStore), tx
}

// defaultStore returns a mockOrderStore with sensible defaults for a fresh
// table ordering one known menu item. Individual tests override the
// functions they care about.
func defaultStore(mealID uuid.UUID) *mockOrderStore {
	return &mockOrderStore{
		getMenuItemForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
			if id == mealID {
				return database.MenuItem{
					ID:       mealID,
					Name:     "Chicken Adobo",
					Price:    makeNumeric("120.00"),
					Quantity: 3,
					Sales:    0,
				}, nil
			}
			return database.MenuItem{}, pgx.ErrNoRows
		},
		getPendingOrderForTableFn: func(ctx context.Context, tableID int32) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:          uuid.New(),
				TableID:     arg.TableID,
				Status:      enum.OrderStatusPending,
				TotalAmount: arg.TotalAmount,
			}, nil
		},
		updateOrderTotalFn: func(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
			return database.Order{
				ID:          arg.ID,
				Status:      enum.OrderStatusPending,
				TotalAmount: arg.TotalAmount,
			}, nil
		},
		deleteOrderItemsFn: func(ctx context.Context, orderID uuid.UUID) error {
			return nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:       uuid.New(),
				OrderID:  arg.OrderID,
				MealID:   arg.MealID,
				Quantity: arg.Quantity,
			}, nil
		},
		listOrderLinesFn: func(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderLinesRow, error) {
			return nil, nil
		},
	}
}

func cartLine(mealID uuid.UUID, qty int32) cart.Line {
	return cart.Line{
		Item:     cart.Item{ID: mealID, Name: "Chicken Adobo", Price: decimal.NewFromInt(120), Available: 3},
		Quantity: qty,
	}
}

// =====================
// Checkout tests
// =====================

func TestCheckout_EmptyCart(t *testing.T) {
	store := defaultStore(uuid.New())
	svc, _ := newTestService(store)

	_, err := svc.Checkout(context.Background(), 4, nil)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got: %v", err)
	}
}

func TestCheckout_InvalidTable(t *testing.T) {
	mealID := uuid.New()
	store := defaultStore(mealID)
	svc, _ := newTestService(store)

	_, err := svc.Checkout(context.Background(), 0, []cart.Line{cartLine(mealID, 1)})
	if !errors.Is(err, ErrInvalidTableID) {
		t.Fatalf("expected ErrInvalidTableID, got: %v", err)
	}
}

func TestCheckout_CreatesOrder(t *testing.T) {
	mealID := uuid.New()
	store := defaultStore(mealID)

	var capturedOrder database.CreateOrderParams
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		capturedOrder = arg
		return database.Order{
			ID: uuid.New(), TableID: arg.TableID,
			Status: enum.OrderStatusPending, TotalAmount: arg.TotalAmount,
		}, nil
	}

	var capturedItems []database.CreateOrderItemParams
	store.createOrderItemFn = func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
		capturedItems = append(capturedItems, arg)
		return database.OrderItem{ID: uuid.New(), OrderID: arg.OrderID, MealID: arg.MealID, Quantity: arg.Quantity}, nil
	}

	svc, tx := newTestService(store)
	detail, err := svc.Checkout(context.Background(), 4, []cart.Line{cartLine(mealID, 3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if capturedOrder.TableID != 4 {
		t.Errorf("table_id: got %d, want 4", capturedOrder.TableID)
	}
	// total = 120.00 * 3 = 360.00, priced from the menu row, not the cart
	if !numericEquals(capturedOrder.TotalAmount, "360.00") {
		t.Errorf("total_amount: got %v, want 360.00", numericToDecimal(capturedOrder.TotalAmount))
	}
	if len(capturedItems) != 1 || capturedItems[0].MealID != mealID || capturedItems[0].Quantity != 3 {
		t.Errorf("order items: got %+v", capturedItems)
	}
	if detail.Order.Status != enum.OrderStatusPending {
		t.Errorf("status: got %s, want PENDING", detail.Order.Status)
	}
	if tx.commits != 1 {
		t.Errorf("expected 1 commit, got %d", tx.commits)
	}
}

func TestCheckout_StockExceededAborts(t *testing.T) {
	mealID := uuid.New()
	store := defaultStore(mealID) // only 3 in stock

	createCalled := false
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		createCalled = true
		return database.Order{}, nil
	}

	svc, tx := newTestService(store)
	_, err := svc.Checkout(context.Background(), 4, []cart.Line{cartLine(mealID, 4)})

	var stockErr *cart.StockExceededError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockExceededError, got: %v", err)
	}
	if stockErr.Available != 3 {
		t.Errorf("available: got %d, want 3", stockErr.Available)
	}
	if createCalled {
		t.Error("order should not be created when stock is exceeded")
	}
	if tx.commits != 0 {
		t.Errorf("expected 0 commits, got %d", tx.commits)
	}
}

func TestCheckout_MenuItemGone(t *testing.T) {
	store := defaultStore(uuid.New()) // store knows a different item
	svc, _ := newTestService(store)

	_, err := svc.Checkout(context.Background(), 4, []cart.Line{cartLine(uuid.New(), 1)})
	if !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("expected ErrMenuItemNotFound, got: %v", err)
	}
}

func TestCheckout_ReplacesPendingOrder(t *testing.T) {
	mealID := uuid.New()
	existingID := uuid.New()
	store := defaultStore(mealID)

	store.getPendingOrderForTableFn = func(ctx context.Context, tableID int32) (database.Order, error) {
		return database.Order{ID: existingID, TableID: tableID, Status: enum.OrderStatusPending}, nil
	}

	var deletedFor uuid.UUID
	store.deleteOrderItemsFn = func(ctx context.Context, orderID uuid.UUID) error {
		deletedFor = orderID
		return nil
	}

	var capturedTotal database.UpdateOrderTotalParams
	store.updateOrderTotalFn = func(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
		capturedTotal = arg
		return database.Order{ID: arg.ID, Status: enum.OrderStatusPending, TotalAmount: arg.TotalAmount}, nil
	}

	createCalled := false
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		createCalled = true
		return database.Order{}, nil
	}

	svc, _ := newTestService(store)
	detail, err := svc.Checkout(context.Background(), 4, []cart.Line{cartLine(mealID, 2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if createCalled {
		t.Error("existing pending order should be reused, not replaced by a new row")
	}
	if deletedFor != existingID {
		t.Errorf("deleted items for order %s, want %s", deletedFor, existingID)
	}
	if capturedTotal.ID != existingID {
		t.Errorf("updated total for order %s, want %s", capturedTotal.ID, existingID)
	}
	if !numericEquals(capturedTotal.TotalAmount, "240.00") {
		t.Errorf("total_amount: got %v, want 240.00", numericToDecimal(capturedTotal.TotalAmount))
	}
	if detail.Order.ID != existingID {
		t.Errorf("result order ID: got %s, want %s", detail.Order.ID, existingID)
	}
}

// =====================
// Status transition tests
// =====================

func knownOrder(id uuid.UUID, status string) func(ctx context.Context, oid uuid.UUID) (database.Order, error) {
	return func(ctx context.Context, oid uuid.UUID) (database.Order, error) {
		if oid == id {
			return database.Order{ID: id, TableID: 4, Status: status}, nil
		}
		return database.Order{}, pgx.ErrNoRows
	}
}

func TestUpdateStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending to confirmed", enum.OrderStatusPending, enum.OrderStatusConfirmed, true},
		{"pending to cancelled", enum.OrderStatusPending, enum.OrderStatusCancelled, true},
		{"confirmed to preparing", enum.OrderStatusConfirmed, enum.OrderStatusPreparing, true},
		{"confirmed to cancelled", enum.OrderStatusConfirmed, enum.OrderStatusCancelled, true},
		{"preparing to ready", enum.OrderStatusPreparing, enum.OrderStatusReady, true},
		{"preparing to cancelled", enum.OrderStatusPreparing, enum.OrderStatusCancelled, true},
		{"pending to preparing skips confirm", enum.OrderStatusPending, enum.OrderStatusPreparing, false},
		{"pending to ready", enum.OrderStatusPending, enum.OrderStatusReady, false},
		{"ready to cancelled", enum.OrderStatusReady, enum.OrderStatusCancelled, false},
		{"ready backwards to preparing", enum.OrderStatusReady, enum.OrderStatusPreparing, false},
		{"completed is terminal", enum.OrderStatusCompleted, enum.OrderStatusCancelled, false},
		{"cancelled is terminal", enum.OrderStatusCancelled, enum.OrderStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orderID := uuid.New()
			store := defaultStore(uuid.New())
			store.getOrderFn = knownOrder(orderID, tt.from)
			store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
				return database.Order{ID: arg.ID, TableID: 4, Status: arg.Next}, nil
			}

			svc, _ := newTestService(store)
			detail, err := svc.UpdateStatus(context.Background(), orderID, tt.to)

			if tt.allowed {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if detail.Order.Status != tt.to {
					t.Errorf("status: got %s, want %s", detail.Order.Status, tt.to)
				}
				return
			}

			var transErr *InvalidTransitionError
			if !errors.As(err, &transErr) {
				t.Fatalf("expected InvalidTransitionError, got: %v", err)
			}
			if transErr.From != tt.from || transErr.To != tt.to {
				t.Errorf("transition error: got %s -> %s, want %s -> %s", transErr.From, transErr.To, tt.from, tt.to)
			}
		})
	}
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	store := defaultStore(uuid.New())
	svc, _ := newTestService(store)

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), "SHIPPED")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got: %v", err)
	}
}

func TestUpdateStatus_OrderNotFound(t *testing.T) {
	store := defaultStore(uuid.New())
	store.getOrderFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		return database.Order{}, pgx.ErrNoRows
	}

	svc, _ := newTestService(store)
	_, err := svc.UpdateStatus(context.Background(), uuid.New(), enum.OrderStatusConfirmed)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got: %v", err)
	}
}

func TestUpdateStatus_RacedWriteRejected(t *testing.T) {
	orderID := uuid.New()
	store := defaultStore(uuid.New())
	store.getOrderFn = knownOrder(orderID, enum.OrderStatusPending)
	// Another transition landed between our read and write: the
	// compare-and-set matches zero rows.
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		return database.Order{}, pgx.ErrNoRows
	}

	svc, _ := newTestService(store)
	_, err := svc.UpdateStatus(context.Background(), orderID, enum.OrderStatusConfirmed)

	var transErr *InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidTransitionError, got: %v", err)
	}
}

// =====================
// Completion side effect tests
// =====================

func TestUpdateStatus_CompletionAppliesInventory(t *testing.T) {
	orderID := uuid.New()
	mealID := uuid.New()
	store := defaultStore(mealID)
	store.getOrderFn = knownOrder(orderID, enum.OrderStatusReady)

	var capturedCAS database.UpdateOrderStatusParams
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		capturedCAS = arg
		return database.Order{ID: arg.ID, TableID: 4, Status: arg.Next}, nil
	}
	store.listOrderLinesFn = func(ctx context.Context, oid uuid.UUID) ([]database.ListOrderLinesRow, error) {
		return []database.ListOrderLinesRow{
			{OrderID: oid, MealID: mealID, Quantity: 3, MealName: "Chicken Adobo", MealQuantity: 3},
		}, nil
	}

	var applied []database.ApplyOrderCompletionParams
	store.applyOrderCompletionFn = func(ctx context.Context, arg database.ApplyOrderCompletionParams) (database.MenuItem, error) {
		applied = append(applied, arg)
		return database.MenuItem{ID: arg.MealID, Quantity: 0, Sales: arg.Quantity}, nil
	}

	svc, tx := newTestService(store)
	detail, err := svc.UpdateStatus(context.Background(), orderID, enum.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if capturedCAS.Current != enum.OrderStatusReady || capturedCAS.Next != enum.OrderStatusCompleted {
		t.Errorf("CAS params: got %s -> %s, want READY -> COMPLETED", capturedCAS.Current, capturedCAS.Next)
	}
	if len(applied) != 1 || applied[0].MealID != mealID || applied[0].Quantity != 3 {
		t.Errorf("inventory side effect: got %+v", applied)
	}
	if detail.Order.Status != enum.OrderStatusCompleted {
		t.Errorf("status: got %s, want COMPLETED", detail.Order.Status)
	}
	if tx.commits != 1 {
		t.Errorf("expected 1 commit, got %d", tx.commits)
	}
}

func TestUpdateStatus_DoubleCompletionRejected(t *testing.T) {
	orderID := uuid.New()
	mealID := uuid.New()
	store := defaultStore(mealID)
	store.getOrderFn = knownOrder(orderID, enum.OrderStatusReady)
	// The first completion already landed; the CAS matches nothing.
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		return database.Order{}, pgx.ErrNoRows
	}

	applyCalled := false
	store.applyOrderCompletionFn = func(ctx context.Context, arg database.ApplyOrderCompletionParams) (database.MenuItem, error) {
		applyCalled = true
		return database.MenuItem{}, nil
	}

	svc, tx := newTestService(store)
	_, err := svc.UpdateStatus(context.Background(), orderID, enum.OrderStatusCompleted)

	var transErr *InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidTransitionError, got: %v", err)
	}
	if applyCalled {
		t.Error("inventory side effect must not run twice")
	}
	if tx.commits != 0 {
		t.Errorf("expected 0 commits, got %d", tx.commits)
	}
}

func TestCancel_DelegatesToStatusUpdate(t *testing.T) {
	orderID := uuid.New()
	store := defaultStore(uuid.New())
	store.getOrderFn = knownOrder(orderID, enum.OrderStatusPending)
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		return database.Order{ID: arg.ID, TableID: 4, Status: arg.Next}, nil
	}

	svc, _ := newTestService(store)
	detail, err := svc.Cancel(context.Background(), orderID, "customer left")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Order.Status != enum.OrderStatusCancelled {
		t.Errorf("status: got %s, want CANCELLED", detail.Order.Status)
	}
}

// =====================
// Feedback tests
// =====================

func completedOrder(id uuid.UUID) database.Order {
	return database.Order{ID: id, TableID: 4, Status: enum.OrderStatusCompleted}
}

func TestAttachFeedback_Valid(t *testing.T) {
	orderID := uuid.New()
	store := defaultStore(uuid.New())
	store.getOrderFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		return completedOrder(orderID), nil
	}

	var captured database.SetOrderFeedbackParams
	store.setOrderFeedbackFn = func(ctx context.Context, arg database.SetOrderFeedbackParams) (database.Order, error) {
		captured = arg
		out := completedOrder(arg.ID)
		out.Feedback = pgtype.Text{String: arg.Feedback, Valid: true}
		return out, nil
	}

	svc, _ := newTestService(store)
	order, err := svc.AttachFeedback(context.Background(), orderID, Feedback{
		FoodRating:    5,
		ServiceRating: 4,
		Comments:      "great adobo",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.Feedback.Valid {
		t.Fatal("feedback should be set on the returned order")
	}

	var fb Feedback
	if err := json.Unmarshal([]byte(captured.Feedback), &fb); err != nil {
		t.Fatalf("stored feedback is not valid JSON: %v", err)
	}
	if fb.FoodRating != 5 || fb.ServiceRating != 4 || fb.Comments != "great adobo" {
		t.Errorf("stored feedback: got %+v", fb)
	}
	if fb.SubmittedAt == "" {
		t.Error("submitted_at should be stamped")
	}
}

func TestAttachFeedback_RatingOutOfRange(t *testing.T) {
	store := defaultStore(uuid.New())
	svc, _ := newTestService(store)

	for _, fb := range []Feedback{
		{FoodRating: 0, ServiceRating: 3},
		{FoodRating: 3, ServiceRating: 6},
		{FoodRating: -1, ServiceRating: 3},
	} {
		if _, err := svc.AttachFeedback(context.Background(), uuid.New(), fb); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("feedback %+v: expected ErrInvalidRating, got: %v", fb, err)
		}
	}
}

func TestAttachFeedback_CommentTooLong(t *testing.T) {
	store := defaultStore(uuid.New())
	svc, _ := newTestService(store)

	long := make([]byte, enum.FeedbackMaxChars+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.AttachFeedback(context.Background(), uuid.New(), Feedback{
		FoodRating:    3,
		ServiceRating: 3,
		Comments:      string(long),
	})
	if !errors.Is(err, ErrCommentTooLong) {
		t.Fatalf("expected ErrCommentTooLong, got: %v", err)
	}
}

func TestAttachFeedback_NotCompleted(t *testing.T) {
	orderID := uuid.New()
	store := defaultStore(uuid.New())
	store.getOrderFn = knownOrder(orderID, enum.OrderStatusReady)

	svc, _ := newTestService(store)
	_, err := svc.AttachFeedback(context.Background(), orderID, Feedback{FoodRating: 4, ServiceRating: 4})
	if !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got: %v", err)
	}
}

func TestAttachFeedback_OnlyOnce(t *testing.T) {
	orderID := uuid.New()
	store := defaultStore(uuid.New())
	store.getOrderFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		out := completedOrder(orderID)
		out.Feedback = pgtype.Text{String: `{"food_rating":5}`, Valid: true}
		return out, nil
	}

	svc, _ := newTestService(store)
	_, err := svc.AttachFeedback(context.Background(), orderID, Feedback{FoodRating: 4, ServiceRating: 4})
	if !errors.Is(err, ErrFeedbackExists) {
		t.Fatalf("expected ErrFeedbackExists, got: %v", err)
	}
}

func TestAttachFeedback_RacedSubmission(t *testing.T) {
	orderID := uuid.New()
	store := defaultStore(uuid.New())
	store.getOrderFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		return completedOrder(orderID), nil
	}
	// Another submission landed between our read and write.
	store.setOrderFeedbackFn = func(ctx context.Context, arg database.SetOrderFeedbackParams) (database.Order, error) {
		return database.Order{}, pgx.ErrNoRows
	}

	svc, _ := newTestService(store)
	_, err := svc.AttachFeedback(context.Background(), orderID, Feedback{FoodRating: 4, ServiceRating: 4})
	if !errors.Is(err, ErrFeedbackExists) {
		t.Fatalf("expected ErrFeedbackExists, got: %v", err)
	}
}

// =====================
// Read operation tests
// =====================

func TestLatestOrderForTable_NotFound(t *testing.T) {
	store := defaultStore(uuid.New())
	store.getLatestOrderForTableFn = func(ctx context.Context, tableID int32) (database.Order, error) {
		return database.Order{}, pgx.ErrNoRows
	}

	svc, _ := newTestService(store)
	_, err := svc.LatestOrderForTable(context.Background(), 7)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got: %v", err)
	}
}

func TestOrdersForTable_ResolvesLines(t *testing.T) {
	mealID := uuid.New()
	orderA := uuid.New()
	orderB := uuid.New()
	store := defaultStore(mealID)
	store.listOrdersByTableFn = func(ctx context.Context, tableID int32) ([]database.Order, error) {
		return []database.Order{
			{ID: orderA, TableID: tableID, Status: enum.OrderStatusCompleted},
			{ID: orderB, TableID: tableID, Status: enum.OrderStatusPending},
		}, nil
	}
	store.listOrderLinesFn = func(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderLinesRow, error) {
		return []database.ListOrderLinesRow{
			{OrderID: orderID, MealID: mealID, Quantity: 2, MealName: "Chicken Adobo", Price: makeNumeric("120.00")},
		}, nil
	}

	svc, _ := newTestService(store)
	details, err := svc.OrdersForTable(context.Background(), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(details))
	}
	if details[0].Order.ID != orderA || details[1].Order.ID != orderB {
		t.Error("order sequence should follow the store's ordering")
	}
	if len(details[0].Lines) != 1 || details[0].Lines[0].MealName != "Chicken Adobo" {
		t.Errorf("lines: got %+v", details[0].Lines)
	}
}

func TestPendingOrders_PersistenceError(t *testing.T) {
	store := defaultStore(uuid.New())
	store.listPendingOrdersFn = func(ctx context.Context) ([]database.Order, error) {
		return nil, errors.New("connection refused")
	}

	svc, _ := newTestService(store)
	_, err := svc.PendingOrders(context.Background())

	var pErr *PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PersistenceError, got: %v", err)
	}
}
