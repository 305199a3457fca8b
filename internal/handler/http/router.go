package http

import (
	"context"
	"log/slog"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/config"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/handler/http/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// NewRouter wires the payroll API. ctx bounds the background work of the
// rate limiter.
func NewRouter(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	payrollHandler PayrollHandler,
	eventHandler EventHandler,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  LogLevel(cfg.App.LogLevel),
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	writeLimit := middleware.RateLimit(ctx, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.TrustProxy)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/employees/{employeeId}/accruals/{period}", payrollHandler.GetAccrual)
		r.Get("/payroll/{period}", payrollHandler.GetPayrollSheet)

		r.Route("/salary-payments", func(r chi.Router) {
			r.Get("/", payrollHandler.ListPayments)
			r.Get("/events", eventHandler.StreamSalaryPayments)
			r.Get("/{id}", payrollHandler.GetPayment)

			// Ledger writes
			r.Group(func(r chi.Router) {
				r.Use(writeLimit)
				r.Post("/", payrollHandler.RecordPayment)
				r.Put("/{id}", payrollHandler.EditPayment)
				r.Delete("/{id}", payrollHandler.DeletePayment)
			})
		})
	})

	return r
}

// LogLevel parses a LOG_LEVEL value, falling back to info.
func LogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
