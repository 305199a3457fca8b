package payroll

import "context"

type PayrollService interface {
	// Accrual
	ComputeAccrual(ctx context.Context, employeeID string, period string) (AccrualResponse, error)
	GetPayrollSheet(ctx context.Context, period string) (PayrollSheetResponse, error)

	// Salary payments
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (SalaryPaymentResponse, error)
	EditPayment(ctx context.Context, req EditPaymentRequest) (SalaryPaymentResponse, error)
	DeletePayment(ctx context.Context, id string) error
	GetPayment(ctx context.Context, id string) (SalaryPaymentResponse, error)
	ListPayments(ctx context.Context, filter SalaryPaymentFilter) (ListSalaryPaymentResponse, error)
}
