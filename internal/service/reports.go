package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableside/api/internal/database"
)

// ReportsStore defines the DB aggregate queries the rollup needs.
// Satisfied by *database.Queries.
type ReportsStore interface {
	GetSalesSummary(ctx context.Context, arg database.GetSalesSummaryParams) (database.GetSalesSummaryRow, error)
	GetTopSellingItems(ctx context.Context, arg database.GetTopSellingItemsParams) ([]database.GetTopSellingItemsRow, error)
	GetCategoryBreakdown(ctx context.Context, arg database.GetCategoryBreakdownParams) ([]database.GetCategoryBreakdownRow, error)
	GetDailyTrend(ctx context.Context, arg database.GetDailyTrendParams) ([]database.GetDailyTrendRow, error)
}

// Summary compares a reporting window against the immediately preceding
// window of equal length. Growth figures are percentages; they are zero when
// the prior window has no orders.
type Summary struct {
	TotalRevenue    decimal.Decimal
	OrderCount      int64
	AverageOrder    decimal.Decimal
	UnitsSold       int64
	RevenueGrowth   decimal.Decimal
	OrderGrowth     decimal.Decimal
	AverageGrowth   decimal.Decimal
	UnitsSoldGrowth decimal.Decimal
}

// TopItem is one entry of the revenue-ranked item report.
type TopItem struct {
	MealID       uuid.UUID
	Name         string
	Category     string
	UnitsSold    int64
	TotalRevenue decimal.Decimal
}

// CategoryStat aggregates one menu category over the window.
type CategoryStat struct {
	Category     string
	UnitsSold    int64
	TotalRevenue decimal.Decimal
	AveragePrice decimal.Decimal
	RevenueShare decimal.Decimal
}

// TrendPoint is one calendar day of the trend report.
type TrendPoint struct {
	Date       time.Time
	Revenue    decimal.Decimal
	OrderCount int64
}

// ReportsService derives read-only sales and inventory rollups from persisted
// orders. Only COMPLETED and READY orders count toward revenue.
type ReportsService struct {
	store ReportsStore
}

// NewReportsService creates a new ReportsService.
func NewReportsService(store ReportsStore) *ReportsService {
	return &ReportsService{store: store}
}

var hundred = decimal.NewFromInt(100)

// Summary aggregates the window [start, end) and computes growth against the
// preceding equal-length window.
func (s *ReportsService) Summary(ctx context.Context, start, end time.Time) (*Summary, error) {
	cur, err := s.store.GetSalesSummary(ctx, database.GetSalesSummaryParams{Start: start, End: end})
	if err != nil {
		return nil, persist("get sales summary", err)
	}

	prevStart := start.Add(-end.Sub(start))
	prev, err := s.store.GetSalesSummary(ctx, database.GetSalesSummaryParams{Start: prevStart, End: start})
	if err != nil {
		return nil, persist("get prior sales summary", err)
	}

	out := &Summary{
		TotalRevenue: numericToDecimal(cur.TotalRevenue),
		OrderCount:   cur.OrderCount,
		UnitsSold:    cur.UnitsSold,
	}
	if cur.OrderCount > 0 {
		out.AverageOrder = out.TotalRevenue.Div(decimal.NewFromInt(cur.OrderCount)).Round(2)
	}

	// Growth is zero when the prior window has no orders, avoiding a
	// division by zero on a fresh dataset.
	if prev.OrderCount > 0 {
		prevRevenue := numericToDecimal(prev.TotalRevenue)
		prevAverage := prevRevenue.Div(decimal.NewFromInt(prev.OrderCount))
		out.RevenueGrowth = growth(out.TotalRevenue, prevRevenue)
		out.OrderGrowth = growth(decimal.NewFromInt(cur.OrderCount), decimal.NewFromInt(prev.OrderCount))
		out.AverageGrowth = growth(out.AverageOrder, prevAverage)
		out.UnitsSoldGrowth = growth(decimal.NewFromInt(cur.UnitsSold), decimal.NewFromInt(prev.UnitsSold))
	}
	return out, nil
}

// TopSellingItems ranks items by revenue within the window, descending,
// truncated to limit.
func (s *ReportsService) TopSellingItems(ctx context.Context, start, end time.Time, limit int32) ([]TopItem, error) {
	rows, err := s.store.GetTopSellingItems(ctx, database.GetTopSellingItemsParams{
		Start: start,
		End:   end,
		Limit: limit,
	})
	if err != nil {
		return nil, persist("get top selling items", err)
	}

	items := make([]TopItem, len(rows))
	for i, row := range rows {
		items[i] = TopItem{
			MealID:       row.MealID,
			Name:         row.Name,
			Category:     row.Category.String,
			UnitsSold:    row.UnitsSold,
			TotalRevenue: numericToDecimal(row.TotalRevenue),
		}
	}
	return items, nil
}

// CategoryBreakdown reports per-category units, revenue, average unit price,
// and the category's share of the window's total revenue.
func (s *ReportsService) CategoryBreakdown(ctx context.Context, start, end time.Time) ([]CategoryStat, error) {
	rows, err := s.store.GetCategoryBreakdown(ctx, database.GetCategoryBreakdownParams{Start: start, End: end})
	if err != nil {
		return nil, persist("get category breakdown", err)
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(numericToDecimal(row.TotalRevenue))
	}

	stats := make([]CategoryStat, len(rows))
	for i, row := range rows {
		revenue := numericToDecimal(row.TotalRevenue)
		stat := CategoryStat{
			Category:     row.Category,
			UnitsSold:    row.UnitsSold,
			TotalRevenue: revenue,
		}
		if row.UnitsSold > 0 {
			stat.AveragePrice = revenue.Div(decimal.NewFromInt(row.UnitsSold)).Round(2)
		}
		if total.IsPositive() {
			stat.RevenueShare = revenue.Div(total).Mul(hundred).Round(2)
		}
		stats[i] = stat
	}
	return stats, nil
}

// Trend returns one point per calendar day in [start, end), ascending,
// zero-filling days with no orders for charting.
func (s *ReportsService) Trend(ctx context.Context, start, end time.Time) ([]TrendPoint, error) {
	rows, err := s.store.GetDailyTrend(ctx, database.GetDailyTrendParams{Start: start, End: end})
	if err != nil {
		return nil, persist("get daily trend", err)
	}

	byDay := make(map[string]database.GetDailyTrendRow, len(rows))
	for _, row := range rows {
		byDay[row.Day.Format("2006-01-02")] = row
	}

	var points []TrendPoint
	for day := truncateToDay(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		point := TrendPoint{Date: day, Revenue: decimal.Zero}
		if row, ok := byDay[day.Format("2006-01-02")]; ok {
			point.Revenue = numericToDecimal(row.TotalRevenue)
			point.OrderCount = row.OrderCount
		}
		points = append(points, point)
	}
	return points, nil
}

// growth returns the percentage change from prev to cur, rounded to 2 places.
func growth(cur, prev decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev).Mul(hundred).Round(2)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
