package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, name, description, price, image_url, quantity, sales, category, created_at, updated_at`

const createMenuItemSQL = `
INSERT INTO menu (name, description, price, image_url, quantity, category)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + menuItemColumns

// CreateMenuItemParams holds the writable fields of a new menu item.
type CreateMenuItemParams struct {
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
	Quantity    int32
	Category    pgtype.Text
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItemSQL,
		arg.Name, arg.Description, arg.Price, arg.ImageUrl, arg.Quantity, arg.Category)
	return scanMenuItem(row)
}

const getMenuItemSQL = `
SELECT ` + menuItemColumns + `
FROM menu
WHERE id = $1`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItemSQL, id))
}

const getMenuItemForUpdateSQL = `
SELECT ` + menuItemColumns + `
FROM menu
WHERE id = $1
FOR UPDATE`

// GetMenuItemForUpdate row-locks the menu item so checkout stock validation
// serializes against concurrent checkouts and completions.
func (q *Queries) GetMenuItemForUpdate(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItemForUpdateSQL, id))
}

const listMenuItemsSQL = `
SELECT ` + menuItemColumns + `
FROM menu
ORDER BY created_at ASC`

func (q *Queries) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const listMenuItemsByCategorySQL = `
SELECT ` + menuItemColumns + `
FROM menu
WHERE category = $1
ORDER BY created_at ASC`

func (q *Queries) ListMenuItemsByCategory(ctx context.Context, category string) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByCategorySQL, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const updateMenuItemSQL = `
UPDATE menu
SET name = $2,
    description = $3,
    price = $4,
    image_url = $5,
    quantity = $6,
    category = $7,
    updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

// UpdateMenuItemParams holds the full replacement state for a menu item.
type UpdateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
	Quantity    int32
	Category    pgtype.Text
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItemSQL,
		arg.ID, arg.Name, arg.Description, arg.Price, arg.ImageUrl, arg.Quantity, arg.Category)
	return scanMenuItem(row)
}

const deleteMenuItemSQL = `
DELETE FROM menu
WHERE id = $1
RETURNING id`

func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteMenuItemSQL, id).Scan(&deleted)
	return deleted, err
}

const applyOrderCompletionSQL = `
UPDATE menu
SET sales = sales + $2,
    quantity = GREATEST(quantity - $2, 0),
    updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

// ApplyOrderCompletionParams identifies the menu item and the line quantity
// to fold into sales/stock when an order completes.
type ApplyOrderCompletionParams struct {
	MealID   uuid.UUID
	Quantity int32
}

// ApplyOrderCompletion increments sales and decrements stock for one order
// line, clamping stock at zero.
func (q *Queries) ApplyOrderCompletion(ctx context.Context, arg ApplyOrderCompletionParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, applyOrderCompletionSQL, arg.MealID, arg.Quantity))
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMenuItem(row scannable) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Price,
		&m.ImageUrl,
		&m.Quantity,
		&m.Sales,
		&m.Category,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}
