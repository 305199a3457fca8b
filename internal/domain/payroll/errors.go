package payroll

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput           = errors.New("invalid payroll input")
	ErrOverpayment            = errors.New("paid amount exceeds remaining salary")
	ErrSalaryPaymentNotFound  = errors.New("salary payment not found")
	ErrConcurrentModification = errors.New("salary payment was modified by another request")
	ErrPersistence            = errors.New("salary payment storage failure")
)

// OverpaymentMessageAR is the user-facing overpayment message shown by the payroll UI.
const OverpaymentMessageAR = "المبلغ المدفوع أكبر من الراتب المتبقي"

// ComputationError reports malformed or missing accrual input.
type ComputationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("payroll computation: %s: %s", e.Field, e.Reason)
}

func (e *ComputationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// OverpaymentError reports a paid amount above what the ledger allows.
// AllowEqual is false on creation (paid must be strictly below the remaining
// salary) and true on edits (paid may equal the stored remaining balance).
type OverpaymentError struct {
	PaidAmount decimal.Decimal
	Remaining  decimal.Decimal
	AllowEqual bool
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("%s: paid %s, remaining %s", ErrOverpayment, e.PaidAmount.StringFixed(2), e.Remaining.StringFixed(2))
}

func (e *OverpaymentError) Is(target error) bool {
	return target == ErrOverpayment
}

// PersistenceError wraps a storage failure of a single ledger write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s during %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
