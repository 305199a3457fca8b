package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var overErr *payroll.OverpaymentError
	if errors.As(err, &overErr) {
		Unprocessable(w, "OVERPAYMENT", payroll.ErrOverpayment.Error(), map[string]string{
			"message_ar":  payroll.OverpaymentMessageAR,
			"paid_amount": overErr.PaidAmount.StringFixed(2),
			"remaining":   overErr.Remaining.StringFixed(2),
		})
		return
	}

	var compErr *payroll.ComputationError

	// Not-found checks run before the computation check: a missing employee
	// is reported as a ComputationError wrapping ErrEmployeeNotFound.
	switch {
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, payroll.ErrSalaryPaymentNotFound):
		NotFound(w, "Salary payment not found")
	case errors.Is(err, payroll.ErrConcurrentModification):
		Conflict(w, "Salary payment was modified by another request, reload and retry")
	case errors.As(err, &compErr):
		Unprocessable(w, "COMPUTATION_ERROR", "Payroll could not be computed", map[string]string{
			compErr.Field: compErr.Reason,
		})

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
