package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lmsledger/backend/internal/handlers"
	mW "github.com/lmsledger/backend/internal/middleware"
	"github.com/lmsledger/backend/internal/models"
	"github.com/lmsledger/backend/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

type Deps struct {
	Ledger         *services.LedgerService
	Auth           *mW.Authenticator
	AllowedOrigins []string
	SwaggerURL     string
	Logger         *zap.Logger
}

// New wires the HTTP surface of the ledger.
func New(d Deps) http.Handler {
	walletHandler := handlers.NewWalletHandler(d.Ledger, d.Logger)
	withdrawalHandler := handlers.NewWithdrawalHandler(d.Ledger, d.Logger)
	gradingHandler := handlers.NewGradingHandler(d.Ledger, d.Logger)
	adminHandler := handlers.NewAdminHandler(d.Ledger, d.Logger)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mW.Metrics)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Handle("/metrics", promhttp.Handler())

	swaggerURL := d.SwaggerURL
	if swaggerURL == "" {
		swaggerURL = "/swagger/doc.json"
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Auth.Middleware)

		r.Route("/wallet", func(r chi.Router) {
			r.Use(mW.RequireRole(models.RoleStudent))
			r.Get("/", walletHandler.GetWallet)
			r.Get("/transactions", walletHandler.ListTransactions)
			r.Get("/rewards", walletHandler.ListRewards)
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.With(mW.RequireRole(models.RoleStudent)).Post("/", withdrawalHandler.CreateWithdrawal)
			r.With(mW.RequireRole(models.RoleStudent, models.RoleAdmin)).Get("/", withdrawalHandler.ListWithdrawals)
			r.With(mW.RequireRole(models.RoleStudent, models.RoleAdmin)).Get("/{id}", withdrawalHandler.GetWithdrawal)

			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(models.RoleAdmin))
				r.Post("/{id}/approve", withdrawalHandler.ApproveWithdrawal)
				r.Post("/{id}/reject", withdrawalHandler.RejectWithdrawal)
			})
		})

		r.With(mW.RequireRole(models.RoleInstructor, models.RoleAdmin)).
			Post("/grading-events", gradingHandler.RecordGrading)

		r.Route("/admin/wallets/{studentID}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(models.RoleInstructor, models.RoleAdmin))
				r.Get("/", adminHandler.GetStudentWallet)
				r.Get("/transactions", adminHandler.ListStudentTransactions)
				r.Put("/balance", adminHandler.SetStudentBalance)
			})
			r.With(mW.RequireRole(models.RoleAdmin)).Get("/reconciliation", adminHandler.ReconcileStudent)
		})
	})

	return r
}
