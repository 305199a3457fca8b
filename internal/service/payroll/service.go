package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/config"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/sse"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// EventPublisher delivers ledger change notifications to listening views.
type EventPublisher interface {
	Publish(topic string, event sse.Event)
}

type PayrollServiceImpl struct {
	transactor    payroll.Transactor
	paymentRepo   payroll.SalaryPaymentRepository
	aggregateRepo payroll.PeriodAggregateRepository
	employeeRepo  employee.EmployeeRepository
	events        EventPublisher
	cfg           config.PayrollConfig
	logger        *slog.Logger
}

func NewPayrollService(
	transactor payroll.Transactor,
	paymentRepo payroll.SalaryPaymentRepository,
	aggregateRepo payroll.PeriodAggregateRepository,
	employeeRepo employee.EmployeeRepository,
	events EventPublisher,
	cfg config.PayrollConfig,
	logger *slog.Logger,
) payroll.PayrollService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SheetConcurrency < 1 {
		cfg.SheetConcurrency = 1
	}
	return &PayrollServiceImpl{
		transactor:    transactor,
		paymentRepo:   paymentRepo,
		aggregateRepo: aggregateRepo,
		employeeRepo:  employeeRepo,
		events:        events,
		cfg:           cfg,
		logger:        logger,
	}
}

// ========== ACCRUAL ==========

func (s *PayrollServiceImpl) ComputeAccrual(ctx context.Context, employeeID string, period string) (payroll.AccrualResponse, error) {
	if validator.IsEmpty(employeeID) {
		return payroll.AccrualResponse{}, &payroll.ComputationError{Field: "employee_id", Reason: "is required"}
	}
	p, err := payroll.ParsePeriod(period)
	if err != nil {
		return payroll.AccrualResponse{}, err
	}

	accrual, err := s.accrue(ctx, employeeID, p, true)
	if err != nil {
		return payroll.AccrualResponse{}, err
	}

	return toAccrualResponse(accrual), nil
}

func (s *PayrollServiceImpl) GetPayrollSheet(ctx context.Context, period string) (payroll.PayrollSheetResponse, error) {
	p, err := payroll.ParsePeriod(period)
	if err != nil {
		return payroll.PayrollSheetResponse{}, err
	}

	employees, err := s.employeeRepo.ListActive(ctx)
	if err != nil {
		return payroll.PayrollSheetResponse{}, fmt.Errorf("failed to list employees: %w", err)
	}

	accruals := make([]payroll.Accrual, len(employees))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SheetConcurrency)

	for i, emp := range employees {
		g.Go(func() error {
			agg, err := s.aggregateRepo.GetPeriodAggregate(gCtx, emp.ID, p)
			if err != nil {
				return fmt.Errorf("failed to aggregate period %s for employee %s: %w", p, emp.ID, err)
			}
			accrual, err := ComputeAccrual(emp, p, agg)
			if err != nil {
				return fmt.Errorf("employee %s: %w", emp.ID, err)
			}
			accruals[i] = accrual
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return payroll.PayrollSheetResponse{}, err
	}

	sheet := payroll.PayrollSheetResponse{
		Period:                  p.String(),
		Data:                    make([]payroll.AccrualResponse, 0, len(accruals)),
		TotalEmployees:          len(accruals),
		TotalProratedSalary:     decimal.Zero,
		TotalNetRemainingSalary: decimal.Zero,
	}
	for _, a := range accruals {
		sheet.Data = append(sheet.Data, toAccrualResponse(a))
		sheet.TotalProratedSalary = sheet.TotalProratedSalary.Add(a.ProratedSalary)
		sheet.TotalNetRemainingSalary = sheet.TotalNetRemainingSalary.Add(a.NetRemainingSalary)
	}

	return sheet, nil
}

// accrue loads the employee and its period aggregate, then computes the accrual.
// parallel must be false when ctx carries a transaction.
func (s *PayrollServiceImpl) accrue(ctx context.Context, employeeID string, period payroll.Period, parallel bool) (payroll.Accrual, error) {
	var (
		emp employee.Employee
		agg payroll.PeriodAggregate
	)

	loadEmployee := func(ctx context.Context) error {
		e, err := s.employeeRepo.GetByID(ctx, employeeID)
		if err != nil {
			return employeeLookupError(err)
		}
		emp = e
		return nil
	}
	loadAggregate := func(ctx context.Context) error {
		a, err := s.aggregateRepo.GetPeriodAggregate(ctx, employeeID, period)
		if err != nil {
			return fmt.Errorf("failed to aggregate period %s: %w", period, err)
		}
		agg = a
		return nil
	}

	if parallel {
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error { return loadEmployee(gCtx) })
		g.Go(func() error { return loadAggregate(gCtx) })
		if err := g.Wait(); err != nil {
			return payroll.Accrual{}, err
		}
	} else {
		if err := loadEmployee(ctx); err != nil {
			return payroll.Accrual{}, err
		}
		if err := loadAggregate(ctx); err != nil {
			return payroll.Accrual{}, err
		}
	}

	return ComputeAccrual(emp, period, agg)
}

func employeeLookupError(err error) error {
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		return &payroll.ComputationError{Field: "employee_id", Reason: "employee not found", Err: err}
	}
	return fmt.Errorf("failed to get employee: %w", err)
}

// parsePaidDate keeps a malformed date from reaching storage as the zero time.
func parsePaidDate(date string) (time.Time, error) {
	paidDate, ok := validator.IsValidDate(date)
	if !ok {
		return time.Time{}, validator.ValidationErrors{{Field: "date", Message: "must be in YYYY-MM-DD format"}}
	}
	return paidDate, nil
}

// ========== SALARY PAYMENTS ==========

func (s *PayrollServiceImpl) RecordPayment(ctx context.Context, req payroll.RecordPaymentRequest) (payroll.SalaryPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.SalaryPaymentResponse{}, err
	}

	period, err := payroll.ParsePeriod(req.Period)
	if err != nil {
		return payroll.SalaryPaymentResponse{}, err
	}
	paidDate, err := parsePaidDate(req.Date)
	if err != nil {
		return payroll.SalaryPaymentResponse{}, err
	}

	accrual, err := s.accrue(ctx, req.EmployeeID, period, true)
	if err != nil {
		return payroll.SalaryPaymentResponse{}, err
	}

	var created payroll.SalaryPayment
	err = s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.LockPeriod(txCtx, req.EmployeeID, period); err != nil {
			return &payroll.PersistenceError{Op: "lock period", Err: err}
		}
		alreadyPaid, err := s.paymentRepo.SumPaidAmount(txCtx, req.EmployeeID, period)
		if err != nil {
			return &payroll.PersistenceError{Op: "sum payments", Err: err}
		}

		remaining := accrual.NetRemainingSalary.Sub(alreadyPaid)
		if !req.PaidAmount.LessThan(remaining) {
			return &payroll.OverpaymentError{PaidAmount: req.PaidAmount, Remaining: remaining}
		}

		created, err = s.paymentRepo.Create(txCtx, payroll.SalaryPayment{
			EmployeeID:              req.EmployeeID,
			Period:                  period,
			PaidDate:                paidDate,
			PaidAmount:              req.PaidAmount,
			AdjustedRemainingSalary: remaining,
			FinalRemainingBalance:   remaining.Sub(req.PaidAmount),
			Note:                    req.Note,
			CheckNumber:             req.CheckNumber,
		})
		if err != nil {
			if errors.Is(err, employee.ErrEmployeeNotFound) {
				return employeeLookupError(err)
			}
			return &payroll.PersistenceError{Op: "create", Err: err}
		}
		return nil
	})
	if err != nil {
		s.logLedgerFailure(ctx, "record", err, "employee_id", req.EmployeeID, "period", req.Period)
		return payroll.SalaryPaymentResponse{}, err
	}

	s.logger.InfoContext(ctx, "salary payment recorded",
		"payment_id", created.ID,
		"employee_id", created.EmployeeID,
		"period", created.Period.String(),
		"paid_amount", created.PaidAmount.StringFixed(2),
	)

	resp := toSalaryPaymentResponse(created)
	s.publish(payroll.EventSalaryPaymentCreated, resp)
	return resp, nil
}

func (s *PayrollServiceImpl) EditPayment(ctx context.Context, req payroll.EditPaymentRequest) (payroll.SalaryPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.SalaryPaymentResponse{}, err
	}
	paidDate, err := parsePaidDate(req.Date)
	if err != nil {
		return payroll.SalaryPaymentResponse{}, err
	}

	var updated payroll.SalaryPayment
	err = s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.paymentRepo.GetByID(txCtx, req.ID)
		if err != nil {
			if errors.Is(err, payroll.ErrSalaryPaymentNotFound) {
				return err
			}
			return &payroll.PersistenceError{Op: "get", Err: err}
		}
		if req.Version != nil && *req.Version != existing.Version {
			return payroll.ErrConcurrentModification
		}

		ceiling, adjusted, err := s.editCeiling(txCtx, existing)
		if err != nil {
			return err
		}
		if req.PaidAmount.GreaterThan(ceiling) {
			return &payroll.OverpaymentError{PaidAmount: req.PaidAmount, Remaining: ceiling, AllowEqual: true}
		}

		next := existing
		next.PaidAmount = req.PaidAmount
		next.PaidDate = paidDate
		next.Note = req.Note
		next.CheckNumber = req.CheckNumber
		next.AdjustedRemainingSalary = adjusted
		next.FinalRemainingBalance = ceiling.Sub(req.PaidAmount)

		updated, err = s.paymentRepo.Update(txCtx, next)
		if err != nil {
			if errors.Is(err, payroll.ErrConcurrentModification) || errors.Is(err, payroll.ErrSalaryPaymentNotFound) {
				return err
			}
			return &payroll.PersistenceError{Op: "update", Err: err}
		}
		return nil
	})
	if err != nil {
		s.logLedgerFailure(ctx, "edit", err, "payment_id", req.ID)
		return payroll.SalaryPaymentResponse{}, err
	}

	s.logger.InfoContext(ctx, "salary payment edited",
		"payment_id", updated.ID,
		"employee_id", updated.EmployeeID,
		"edit_mode", s.cfg.EditMode,
		"final_remaining_balance", updated.FinalRemainingBalance.StringFixed(2),
	)

	resp := toSalaryPaymentResponse(updated)
	s.publish(payroll.EventSalaryPaymentUpdated, resp)
	return resp, nil
}

// editCeiling returns the amount an edited payment may not exceed and the
// adjusted remaining salary to store with it.
//
// In snapshot mode the ceiling is the balance stored on the row, so repeated
// edits keep reducing it. In recompute mode the accrual is derived again and
// the other payments of the period are subtracted from it.
func (s *PayrollServiceImpl) editCeiling(ctx context.Context, existing payroll.SalaryPayment) (decimal.Decimal, decimal.Decimal, error) {
	if s.cfg.EditMode != config.EditModeRecompute {
		return existing.FinalRemainingBalance, existing.AdjustedRemainingSalary, nil
	}

	if err := s.paymentRepo.LockPeriod(ctx, existing.EmployeeID, existing.Period); err != nil {
		return decimal.Zero, decimal.Zero, &payroll.PersistenceError{Op: "lock period", Err: err}
	}
	accrual, err := s.accrue(ctx, existing.EmployeeID, existing.Period, false)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	paid, err := s.paymentRepo.SumPaidAmount(ctx, existing.EmployeeID, existing.Period)
	if err != nil {
		return decimal.Zero, decimal.Zero, &payroll.PersistenceError{Op: "sum payments", Err: err}
	}

	remaining := accrual.NetRemainingSalary.Sub(paid.Sub(existing.PaidAmount))
	return remaining, remaining, nil
}

func (s *PayrollServiceImpl) DeletePayment(ctx context.Context, id string) error {
	if validator.IsEmpty(id) {
		return validator.ValidationErrors{{Field: "id", Message: "is required"}}
	}

	if err := s.paymentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, payroll.ErrSalaryPaymentNotFound) {
			return err
		}
		err = &payroll.PersistenceError{Op: "delete", Err: err}
		s.logLedgerFailure(ctx, "delete", err, "payment_id", id)
		return err
	}

	s.logger.InfoContext(ctx, "salary payment deleted", "payment_id", id)
	s.publish(payroll.EventSalaryPaymentDeleted, map[string]string{"id": id})
	return nil
}

func (s *PayrollServiceImpl) GetPayment(ctx context.Context, id string) (payroll.SalaryPaymentResponse, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return payroll.SalaryPaymentResponse{}, err
	}
	return toSalaryPaymentResponse(payment), nil
}

func (s *PayrollServiceImpl) ListPayments(ctx context.Context, filter payroll.SalaryPaymentFilter) (payroll.ListSalaryPaymentResponse, error) {
	query, err := filter.ToQuery()
	if err != nil {
		return payroll.ListSalaryPaymentResponse{}, err
	}

	payments, total, err := s.paymentRepo.List(ctx, query)
	if err != nil {
		return payroll.ListSalaryPaymentResponse{}, fmt.Errorf("failed to list salary payments: %w", err)
	}

	resp := payroll.ListSalaryPaymentResponse{
		Data:       make([]payroll.SalaryPaymentResponse, 0, len(payments)),
		TotalCount: total,
		Page:       query.Offset/query.Limit + 1,
		Limit:      query.Limit,
	}
	for _, p := range payments {
		resp.Data = append(resp.Data, toSalaryPaymentResponse(p))
	}
	return resp, nil
}

// logLedgerFailure logs rejected or failed ledger writes at a level matching their kind.
func (s *PayrollServiceImpl) logLedgerFailure(ctx context.Context, op string, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "error", err)
	switch {
	case errors.Is(err, payroll.ErrOverpayment):
		s.logger.InfoContext(ctx, "salary payment rejected", attrs...)
	case errors.Is(err, payroll.ErrConcurrentModification):
		s.logger.WarnContext(ctx, "salary payment conflict", attrs...)
	case errors.Is(err, payroll.ErrPersistence):
		s.logger.ErrorContext(ctx, "salary payment write failed", attrs...)
	}
}

func (s *PayrollServiceImpl) publish(event string, data any) {
	if s.events == nil {
		return
	}
	s.events.Publish(payroll.TopicSalaryPayments, sse.Event{Event: event, Data: data})
}

// ========== MAPPING ==========

func toAccrualResponse(a payroll.Accrual) payroll.AccrualResponse {
	return payroll.AccrualResponse{
		EmployeeID:            a.EmployeeID,
		EmployeeName:          a.EmployeeName,
		Period:                a.Period.String(),
		WorkingDaysCount:      a.WorkingDaysCount,
		TotalOvertimeHours:    a.TotalOvertimeHours,
		TotalNonWorkingHours:  a.TotalNonWorkingHours,
		TotalVacationDays:     a.TotalVacationDays,
		ExcessVacationDays:    a.ExcessVacationDays,
		BaseSalary:            a.BaseSalary,
		ProratedSalary:        a.ProratedSalary,
		VacationPenalty:       a.VacationPenalty,
		NonWorkingHourPenalty: a.NonWorkingHourPenalty,
		OvertimeBonus:         a.OvertimeBonus,
		TotalDeductionAmount:  a.TotalDeductionAmount,
		TotalStaffFoodAmount:  a.TotalStaffFoodAmount,
		TotalWithdrawnAmount:  a.TotalWithdrawnAmount,
		NetRemainingSalary:    a.NetRemainingSalary,
	}
}

func toSalaryPaymentResponse(p payroll.SalaryPayment) payroll.SalaryPaymentResponse {
	return payroll.SalaryPaymentResponse{
		ID:                      p.ID,
		EmployeeID:              p.EmployeeID,
		EmployeeName:            p.EmployeeName,
		Period:                  p.Period.String(),
		Date:                    p.PaidDate.Format("2006-01-02"),
		PaidAmount:              p.PaidAmount,
		AdjustedRemainingSalary: p.AdjustedRemainingSalary,
		FinalRemainingBalance:   p.FinalRemainingBalance,
		Note:                    p.Note,
		CheckNumber:             p.CheckNumber,
		Version:                 p.Version,
		CreatedAt:               p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:               p.UpdatedAt.Format(time.RFC3339),
	}
}
