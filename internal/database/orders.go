package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, status, total_amount, feedback, created_at, updated_at`

const createOrderSQL = `
INSERT INTO orders (table_id, status, total_amount)
VALUES ($1, 'PENDING', $2)
RETURNING ` + orderColumns

// CreateOrderParams holds the fields of a fresh checkout.
type CreateOrderParams struct {
	TableID     int32
	TotalAmount pgtype.Numeric
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrderSQL, arg.TableID, arg.TotalAmount))
}

const getOrderSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderSQL, id))
}

const getPendingOrderForTableSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE table_id = $1 AND status = 'PENDING'
FOR UPDATE`

// GetPendingOrderForTable row-locks the table's PENDING order (if any) so a
// second checkout from the same table serializes with the first.
func (q *Queries) GetPendingOrderForTable(ctx context.Context, tableID int32) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getPendingOrderForTableSQL, tableID))
}

const updateOrderTotalSQL = `
UPDATE orders
SET total_amount = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

// UpdateOrderTotalParams replaces the total of an existing PENDING order
// whose line items are being rewritten.
type UpdateOrderTotalParams struct {
	ID          uuid.UUID
	TotalAmount pgtype.Numeric
}

func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotalSQL, arg.ID, arg.TotalAmount))
}

const updateOrderStatusSQL = `
UPDATE orders
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + orderColumns

// UpdateOrderStatusParams is a compare-and-set status write: the update only
// lands if the order is still in the expected current status.
type UpdateOrderStatusParams struct {
	ID      uuid.UUID
	Current string
	Next    string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatusSQL, arg.ID, arg.Current, arg.Next))
}

const setOrderFeedbackSQL = `
UPDATE orders
SET feedback = $2, updated_at = now()
WHERE id = $1 AND status = 'COMPLETED' AND feedback IS NULL
RETURNING ` + orderColumns

// SetOrderFeedbackParams attaches the serialized rating payload. The WHERE
// clause makes the write once-only and completed-only.
type SetOrderFeedbackParams struct {
	ID       uuid.UUID
	Feedback string
}

func (q *Queries) SetOrderFeedback(ctx context.Context, arg SetOrderFeedbackParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderFeedbackSQL, arg.ID, arg.Feedback))
}

const listOrdersByTableSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE table_id = $1
ORDER BY created_at DESC`

func (q *Queries) ListOrdersByTable(ctx context.Context, tableID int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByTableSQL, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const getLatestOrderForTableSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE table_id = $1
ORDER BY created_at DESC
LIMIT 1`

func (q *Queries) GetLatestOrderForTable(ctx context.Context, tableID int32) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getLatestOrderForTableSQL, tableID))
}

const listPendingOrdersSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE status = 'PENDING'
ORDER BY created_at ASC`

// ListPendingOrders returns the staff review queue, oldest first.
func (q *Queries) ListPendingOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, listPendingOrdersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const listKitchenOrdersSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE status IN ('CONFIRMED', 'PREPARING')
ORDER BY created_at ASC`

// ListKitchenOrders returns approved orders awaiting or under preparation.
func (q *Queries) ListKitchenOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, listKitchenOrdersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const createOrderItemSQL = `
INSERT INTO order_items (order_id, meal_id, quantity)
VALUES ($1, $2, $3)
RETURNING id, order_id, meal_id, quantity`

// CreateOrderItemParams is one line item of a checkout.
type CreateOrderItemParams struct {
	OrderID  uuid.UUID
	MealID   uuid.UUID
	Quantity int32
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var item OrderItem
	err := q.db.QueryRow(ctx, createOrderItemSQL, arg.OrderID, arg.MealID, arg.Quantity).
		Scan(&item.ID, &item.OrderID, &item.MealID, &item.Quantity)
	return item, err
}

const deleteOrderItemsSQL = `
DELETE FROM order_items
WHERE order_id = $1`

// DeleteOrderItems removes all line items of an order. Pending-order updates
// replace lines wholesale rather than mutating them.
func (q *Queries) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItemsSQL, orderID)
	return err
}

const listOrderItemsByOrderSQL = `
SELECT id, order_id, meal_id, quantity
FROM order_items
WHERE order_id = $1`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrderSQL, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MealID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const listOrderLinesSQL = `
SELECT oi.id, oi.order_id, oi.meal_id, oi.quantity,
       m.name, m.description, m.price, m.image_url, m.quantity, m.sales, m.category
FROM order_items oi
JOIN menu m ON m.id = oi.meal_id
WHERE oi.order_id = $1`

// ListOrderLinesRow is an order line with its referenced menu item resolved.
// This is the richest read shape; consumers project what they need from it.
type ListOrderLinesRow struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	MealID       uuid.UUID
	Quantity     int32
	MealName     string
	Description  pgtype.Text
	Price        pgtype.Numeric
	ImageUrl     pgtype.Text
	MealQuantity int32
	MealSales    int32
	Category     pgtype.Text
}

func (q *Queries) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]ListOrderLinesRow, error) {
	rows, err := q.db.Query(ctx, listOrderLinesSQL, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ListOrderLinesRow
	for rows.Next() {
		var l ListOrderLinesRow
		if err := rows.Scan(
			&l.ID, &l.OrderID, &l.MealID, &l.Quantity,
			&l.MealName, &l.Description, &l.Price, &l.ImageUrl,
			&l.MealQuantity, &l.MealSales, &l.Category,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanOrder(row scannable) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.TableID,
		&o.Status,
		&o.TotalAmount,
		&o.Feedback,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

func collectOrders(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
