package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tableside/api/internal/cart"
	"github.com/tableside/api/internal/config"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/handler"
	"github.com/tableside/api/internal/service"
	"github.com/tableside/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, carts *cart.Store, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",         // SvelteKit dev server
			"https://order.tableside.app",   // Guest ordering frontend
			"https://kitchen.tableside.app", // Kitchen display
			"https://admin.tableside.app",   // Reports dashboard
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// WebSocket route (channel selected via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, w, r)
	})

	// Menu
	menuHandler := handler.NewMenuHandler(queries, cfg.ImageBaseURL)
	r.Route("/menu", menuHandler.RegisterRoutes)

	// Orders
	orderService := service.NewOrderService(pool, queries, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	orderHandler := handler.NewOrderHandler(orderService, carts, hub, cfg.ImageBaseURL)
	r.Route("/orders", orderHandler.RegisterRoutes)

	// Table-scoped routes (cart and checkout)
	r.Route("/tables/{tid}", func(r chi.Router) {
		cartHandler := handler.NewCartHandler(carts, queries)
		r.Route("/cart", cartHandler.RegisterRoutes)
		r.Route("/orders", orderHandler.RegisterTableRoutes)
	})

	// Reports
	reportsHandler := handler.NewReportsHandler(service.NewReportsService(queries))
	r.Route("/reports", reportsHandler.RegisterRoutes)

	log.Println("Router initialized with all handlers")
	return r
}
