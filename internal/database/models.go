package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// MenuItem is a row of the menu table. Quantity is stock on hand and is only
// decremented by order completion, clamped at zero. Sales is cumulative units sold.
type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
	Quantity    int32
	Sales       int32
	Category    pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Order is a row of the orders table: one ordering session for one table.
// Feedback holds the serialized rating payload once the customer submits one.
type Order struct {
	ID          uuid.UUID
	TableID     int32
	Status      string
	TotalAmount pgtype.Numeric
	Feedback    pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem is a row of the order_items table linking an order to a menu item.
type OrderItem struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	MealID   uuid.UUID
	Quantity int32
}
