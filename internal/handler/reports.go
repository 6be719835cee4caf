package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tableside/api/internal/service"
)

// ReportsServicer defines the rollup methods needed by report handlers.
// Satisfied by *service.ReportsService; narrow interface for testability.
type ReportsServicer interface {
	Summary(ctx context.Context, start, end time.Time) (*service.Summary, error)
	TopSellingItems(ctx context.Context, start, end time.Time, limit int32) ([]service.TopItem, error)
	CategoryBreakdown(ctx context.Context, start, end time.Time) ([]service.CategoryStat, error)
	Trend(ctx context.Context, start, end time.Time) ([]service.TrendPoint, error)
}

// ReportsHandler handles sales/inventory rollup endpoints.
type ReportsHandler struct {
	svc ReportsServicer
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(svc ReportsServicer) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted at /reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.Summary)
	r.Get("/top-items", h.TopItems)
	r.Get("/category-breakdown", h.CategoryBreakdown)
	r.Get("/trend", h.Trend)
}

// --- Response types ---

type summaryResponse struct {
	TotalRevenue    string `json:"total_revenue"`
	OrderCount      int64  `json:"order_count"`
	AverageOrder    string `json:"average_order"`
	UnitsSold       int64  `json:"units_sold"`
	RevenueGrowth   string `json:"revenue_growth"`
	OrderGrowth     string `json:"order_growth"`
	AverageGrowth   string `json:"average_growth"`
	UnitsSoldGrowth string `json:"units_sold_growth"`
}

type topItemResponse struct {
	MealID       uuid.UUID `json:"meal_id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	UnitsSold    int64     `json:"units_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

type categoryStatResponse struct {
	Category     string `json:"category"`
	UnitsSold    int64  `json:"units_sold"`
	TotalRevenue string `json:"total_revenue"`
	AveragePrice string `json:"average_price"`
	RevenueShare string `json:"revenue_share"`
}

type trendPointResponse struct {
	Date       string `json:"date"`
	Revenue    string `json:"revenue"`
	OrderCount int64  `json:"order_count"`
}

// --- Handlers ---

// Summary handles GET /reports/summary.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s, err := h.svc.Summary(r.Context(), start, end)
	if err != nil {
		log.Printf("ERROR: sales summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		TotalRevenue:    s.TotalRevenue.StringFixed(2),
		OrderCount:      s.OrderCount,
		AverageOrder:    s.AverageOrder.StringFixed(2),
		UnitsSold:       s.UnitsSold,
		RevenueGrowth:   s.RevenueGrowth.StringFixed(2),
		OrderGrowth:     s.OrderGrowth.StringFixed(2),
		AverageGrowth:   s.AverageGrowth.StringFixed(2),
		UnitsSoldGrowth: s.UnitsSoldGrowth.StringFixed(2),
	})
}

// TopItems handles GET /reports/top-items.
func (h *ReportsHandler) TopItems(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	items, err := h.svc.TopSellingItems(r.Context(), start, end, int32(limit))
	if err != nil {
		log.Printf("ERROR: top selling items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]topItemResponse, len(items))
	for i, item := range items {
		resp[i] = topItemResponse{
			MealID:       item.MealID,
			Name:         item.Name,
			Category:     item.Category,
			UnitsSold:    item.UnitsSold,
			TotalRevenue: item.TotalRevenue.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CategoryBreakdown handles GET /reports/category-breakdown.
func (h *ReportsHandler) CategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stats, err := h.svc.CategoryBreakdown(r.Context(), start, end)
	if err != nil {
		log.Printf("ERROR: category breakdown: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]categoryStatResponse, len(stats))
	for i, stat := range stats {
		resp[i] = categoryStatResponse{
			Category:     stat.Category,
			UnitsSold:    stat.UnitsSold,
			TotalRevenue: stat.TotalRevenue.StringFixed(2),
			AveragePrice: stat.AveragePrice.StringFixed(2),
			RevenueShare: stat.RevenueShare.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Trend handles GET /reports/trend.
func (h *ReportsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	points, err := h.svc.Trend(r.Context(), start, end)
	if err != nil {
		log.Printf("ERROR: daily trend: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]trendPointResponse, len(points))
	for i, p := range points {
		resp[i] = trendPointResponse{
			Date:       p.Date.Format("2006-01-02"),
			Revenue:    p.Revenue.StringFixed(2),
			OrderCount: p.OrderCount,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
