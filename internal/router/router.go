package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serai-hms/api/internal/config"
	"github.com/serai-hms/api/internal/database"
	"github.com/serai-hms/api/internal/enum"
	"github.com/serai-hms/api/internal/handler"
	mw "github.com/serai-hms/api/internal/middleware"
	"github.com/serai-hms/api/internal/notify"
	"github.com/serai-hms/api/internal/service"
	"github.com/serai-hms/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, branch scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"https://app.serai-hms.com",
			"https://stg-app.serai-hms.com",
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

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/branches/{bid}/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	notifier := notify.NewHubNotifier(hub)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Branch-scoped routes
		r.Route("/branches/{bid}", func(r chi.Router) {
			r.Use(mw.RequireBranch)

			// Orders
			newOrderStore := func(db database.DBTX) service.OrderStore {
				return database.New(db)
			}
			orderService := service.NewOrderService(pool, newOrderStore, notifier)
			orderHandler := handler.NewOrderHandler(orderService, queries)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Kitchen / service board
			boardHandler := handler.NewBoardHandler(queries)
			r.Route("/board", boardHandler.RegisterRoutes)

			// Stock ledger
			newStockStore := func(db database.DBTX) service.StockStore {
				return database.New(db)
			}
			stockService := service.NewStockService(pool, newStockStore, notifier)
			stockHandler := handler.NewStockHandler(stockService, queries)
			r.Route("/stock", func(r chi.Router) {
				stockHandler.RegisterReadRoutes(r)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.UserRoleStock, enum.UserRoleKitchen, enum.UserRoleManager))
					stockHandler.RegisterMutationRoutes(r)
				})
			})

			// Menu catalog
			menuHandler := handler.NewMenuHandler(queries)
			r.Route("/menu", func(r chi.Router) {
				menuHandler.RegisterReadRoutes(r)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.UserRoleManager))
					menuHandler.RegisterAdminRoutes(r)
				})
			})

			// Guest service requests
			requestService := service.NewRequestService(queries, notifier)
			requestHandler := handler.NewRequestHandler(requestService)
			r.Route("/requests", requestHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
