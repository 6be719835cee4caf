package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Revenue figures count COMPLETED and READY orders: a READY order is
// provisionally treated as a sale before it is formally served.
const revenueStatuses = `('COMPLETED', 'READY')`

const getSalesSummarySQL = `
WITH window_orders AS (
    SELECT id, total_amount
    FROM orders
    WHERE status IN ` + revenueStatuses + `
      AND created_at >= $1 AND created_at < $2
)
SELECT
    (SELECT COUNT(*) FROM window_orders),
    (SELECT COALESCE(SUM(total_amount), 0) FROM window_orders),
    (SELECT COALESCE(SUM(oi.quantity), 0)
       FROM order_items oi
       JOIN window_orders w ON w.id = oi.order_id)`

// GetSalesSummaryParams bounds the reporting window; End is exclusive.
type GetSalesSummaryParams struct {
	Start time.Time
	End   time.Time
}

// GetSalesSummaryRow aggregates one reporting window.
type GetSalesSummaryRow struct {
	OrderCount   int64
	TotalRevenue pgtype.Numeric
	UnitsSold    int64
}

func (q *Queries) GetSalesSummary(ctx context.Context, arg GetSalesSummaryParams) (GetSalesSummaryRow, error) {
	var row GetSalesSummaryRow
	err := q.db.QueryRow(ctx, getSalesSummarySQL, arg.Start, arg.End).
		Scan(&row.OrderCount, &row.TotalRevenue, &row.UnitsSold)
	return row, err
}

const getTopSellingItemsSQL = `
SELECT m.id, m.name, m.category,
       SUM(oi.quantity) AS units_sold,
       SUM(oi.quantity * m.price) AS total_revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN menu m ON m.id = oi.meal_id
WHERE o.status IN ` + revenueStatuses + `
  AND o.created_at >= $1 AND o.created_at < $2
GROUP BY m.id, m.name, m.category
ORDER BY total_revenue DESC, MIN(o.created_at) ASC
LIMIT $3`

// GetTopSellingItemsParams bounds the window and truncates the ranking.
type GetTopSellingItemsParams struct {
	Start time.Time
	End   time.Time
	Limit int32
}

// GetTopSellingItemsRow is one ranked menu item.
type GetTopSellingItemsRow struct {
	MealID       uuid.UUID
	Name         string
	Category     pgtype.Text
	UnitsSold    int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetTopSellingItems(ctx context.Context, arg GetTopSellingItemsParams) ([]GetTopSellingItemsRow, error) {
	rows, err := q.db.Query(ctx, getTopSellingItemsSQL, arg.Start, arg.End, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetTopSellingItemsRow
	for rows.Next() {
		var r GetTopSellingItemsRow
		if err := rows.Scan(&r.MealID, &r.Name, &r.Category, &r.UnitsSold, &r.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

const getCategoryBreakdownSQL = `
SELECT COALESCE(m.category, 'uncategorized') AS category,
       SUM(oi.quantity) AS units_sold,
       SUM(oi.quantity * m.price) AS total_revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN menu m ON m.id = oi.meal_id
WHERE o.status IN ` + revenueStatuses + `
  AND o.created_at >= $1 AND o.created_at < $2
GROUP BY COALESCE(m.category, 'uncategorized')
ORDER BY total_revenue DESC`

// GetCategoryBreakdownParams bounds the reporting window; End is exclusive.
type GetCategoryBreakdownParams struct {
	Start time.Time
	End   time.Time
}

// GetCategoryBreakdownRow aggregates one menu category within the window.
type GetCategoryBreakdownRow struct {
	Category     string
	UnitsSold    int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetCategoryBreakdown(ctx context.Context, arg GetCategoryBreakdownParams) ([]GetCategoryBreakdownRow, error) {
	rows, err := q.db.Query(ctx, getCategoryBreakdownSQL, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetCategoryBreakdownRow
	for rows.Next() {
		var r GetCategoryBreakdownRow
		if err := rows.Scan(&r.Category, &r.UnitsSold, &r.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

const getDailyTrendSQL = `
SELECT DATE(created_at) AS day,
       COUNT(*) AS order_count,
       COALESCE(SUM(total_amount), 0) AS total_revenue
FROM orders
WHERE status IN ` + revenueStatuses + `
  AND created_at >= $1 AND created_at < $2
GROUP BY DATE(created_at)
ORDER BY day ASC`

// GetDailyTrendParams bounds the reporting window; End is exclusive.
type GetDailyTrendParams struct {
	Start time.Time
	End   time.Time
}

// GetDailyTrendRow is one calendar day with orders.
type GetDailyTrendRow struct {
	Day          time.Time
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetDailyTrend(ctx context.Context, arg GetDailyTrendParams) ([]GetDailyTrendRow, error) {
	rows, err := q.db.Query(ctx, getDailyTrendSQL, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetDailyTrendRow
	for rows.Next() {
		var r GetDailyTrendRow
		if err := rows.Scan(&r.Day, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
