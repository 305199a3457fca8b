package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/config"
	appHTTP "github.com/cmlabs-hris/backoffice-payroll-go/internal/handler/http"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/sse"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/backoffice-payroll-go/internal/service/payroll"
	"github.com/go-chi/httplog/v3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       appHTTP.LogLevel(cfg.App.LogLevel),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "backoffice-payroll"),
		slog.String("version", "v1.0.0"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDBWithOptions(cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database schema applied")
	}

	txManager := postgresql.NewTxManager(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	aggregateRepo := postgresql.NewPeriodAggregateRepository(db)
	paymentRepo := postgresql.NewSalaryPaymentRepository(db)

	hub := sse.NewHub()

	payrollSvc := payrollService.NewPayrollService(
		txManager,
		paymentRepo,
		aggregateRepo,
		employeeRepo,
		hub,
		cfg.Payroll,
		logger,
	)

	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)
	eventHandler := appHTTP.NewEventHandler(hub)

	router := appHTTP.NewRouter(ctx, logger, cfg, payrollHandler, eventHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// open event streams would otherwise hold Shutdown until its timeout
	srv.RegisterOnShutdown(hub.Close)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", "addr", srv.Addr, "edit_mode", cfg.Payroll.EditMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
