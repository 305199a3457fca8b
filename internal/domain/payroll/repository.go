package payroll

import (
	"context"

	"github.com/shopspring/decimal"
)

// PeriodAggregateRepository is the aggregation collaborator over attendance,
// vacations, deductions, staff food and withdrawals.
type PeriodAggregateRepository interface {
	// GetPeriodAggregate returns zero totals when no source rows exist.
	GetPeriodAggregate(ctx context.Context, employeeID string, period Period) (PeriodAggregate, error)
}

type SalaryPaymentRepository interface {
	Create(ctx context.Context, payment SalaryPayment) (SalaryPayment, error)
	GetByID(ctx context.Context, id string) (SalaryPayment, error)
	// Update writes the row only if its stored version equals payment.Version,
	// returning ErrConcurrentModification otherwise.
	Update(ctx context.Context, payment SalaryPayment) (SalaryPayment, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query SalaryPaymentQuery) ([]SalaryPayment, int64, error)

	// SumPaidAmount totals the payments already recorded for an employee period.
	SumPaidAmount(ctx context.Context, employeeID string, period Period) (decimal.Decimal, error)
	// LockPeriod serializes ledger writes for one employee period until the
	// surrounding transaction ends. It must run inside a transaction.
	LockPeriod(ctx context.Context, employeeID string, period Period) error
}

// Transactor runs fn inside one database transaction carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
