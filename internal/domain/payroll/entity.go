package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodAggregate - per employee/period totals from attendance, vacations,
// deductions, staff food and withdrawals. Always derived, never stored.
type PeriodAggregate struct {
	EmployeeID           string
	Period               Period
	WorkingDaysCount     int
	TotalOvertimeHours   decimal.Decimal
	TotalNonWorkingHours decimal.Decimal
	TotalVacationDays    int
	TotalDeductionAmount decimal.Decimal
	TotalStaffFoodAmount decimal.Decimal
	TotalWithdrawnAmount decimal.Decimal
}

// Validate rejects negative totals; absent sources are zero, not negative.
func (a PeriodAggregate) Validate() error {
	switch {
	case a.WorkingDaysCount < 0:
		return &ComputationError{Field: "working_days_count", Reason: "must be non-negative"}
	case a.TotalVacationDays < 0:
		return &ComputationError{Field: "total_vacation_days", Reason: "must be non-negative"}
	case a.TotalOvertimeHours.IsNegative():
		return &ComputationError{Field: "total_overtime_hours", Reason: "must be non-negative"}
	case a.TotalNonWorkingHours.IsNegative():
		return &ComputationError{Field: "total_non_working_hours", Reason: "must be non-negative"}
	}
	return nil
}

// Accrual - computed salary position of one employee for one period.
// Money fields are rounded to 2 decimal places.
type Accrual struct {
	EmployeeID   string
	EmployeeName string
	Period       Period

	WorkingDaysCount     int
	TotalOvertimeHours   decimal.Decimal
	TotalNonWorkingHours decimal.Decimal
	TotalVacationDays    int
	ExcessVacationDays   int

	BaseSalary            decimal.Decimal
	ProratedSalary        decimal.Decimal
	VacationPenalty       decimal.Decimal
	NonWorkingHourPenalty decimal.Decimal
	OvertimeBonus         decimal.Decimal
	TotalDeductionAmount  decimal.Decimal
	TotalStaffFoodAmount  decimal.Decimal
	TotalWithdrawnAmount  decimal.Decimal
	// NetRemainingSalary is signed; it is not floored at zero.
	NetRemainingSalary decimal.Decimal
}

// SalaryPayment - a payment recorded against an accrual
type SalaryPayment struct {
	ID         string
	EmployeeID string
	Period     Period
	PaidDate   time.Time
	PaidAmount decimal.Decimal
	// AdjustedRemainingSalary is the net remaining salary snapshot the payment was checked against.
	AdjustedRemainingSalary decimal.Decimal
	FinalRemainingBalance   decimal.Decimal
	Note                    *string
	CheckNumber             *string
	Version                 int
	CreatedAt               time.Time
	UpdatedAt               time.Time

	// Joined fields
	EmployeeName *string
}

// SalaryPaymentQuery is the parsed form of SalaryPaymentFilter.
type SalaryPaymentQuery struct {
	EmployeeID *string
	Period     *Period
	DateFrom   *time.Time
	DateTo     *time.Time // inclusive
	Limit      int
	Offset     int
}

// Change event names published on TopicSalaryPayments.
const (
	TopicSalaryPayments       = "salary_payments"
	EventSalaryPaymentCreated = "salary_payment.created"
	EventSalaryPaymentUpdated = "salary_payment.updated"
	EventSalaryPaymentDeleted = "salary_payment.deleted"
)
