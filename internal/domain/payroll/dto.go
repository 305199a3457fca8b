package payroll

import (
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const (
	maxNoteLength        = 500
	maxCheckNumberLength = 64
)

// ========== ACCRUAL DTOs ==========

type AccrualResponse struct {
	EmployeeID            string          `json:"employee_id"`
	EmployeeName          string          `json:"employee_name"`
	Period                string          `json:"period"`
	WorkingDaysCount      int             `json:"working_days_count"`
	TotalOvertimeHours    decimal.Decimal `json:"total_overtime_hours"`
	TotalNonWorkingHours  decimal.Decimal `json:"total_non_working_hours"`
	TotalVacationDays     int             `json:"total_vacation_days"`
	ExcessVacationDays    int             `json:"excess_vacation_days"`
	BaseSalary            decimal.Decimal `json:"base_salary"`
	ProratedSalary        decimal.Decimal `json:"prorated_salary"`
	VacationPenalty       decimal.Decimal `json:"vacation_penalty"`
	NonWorkingHourPenalty decimal.Decimal `json:"non_working_hour_penalty"`
	OvertimeBonus         decimal.Decimal `json:"overtime_bonus"`
	TotalDeductionAmount  decimal.Decimal `json:"total_deduction_amount"`
	TotalStaffFoodAmount  decimal.Decimal `json:"total_staff_food_amount"`
	TotalWithdrawnAmount  decimal.Decimal `json:"total_withdrawn_amount"`
	NetRemainingSalary    decimal.Decimal `json:"net_remaining_salary"`
}

type PayrollSheetResponse struct {
	Period                  string            `json:"period"`
	Data                    []AccrualResponse `json:"data"`
	TotalEmployees          int               `json:"total_employees"`
	TotalProratedSalary     decimal.Decimal   `json:"total_prorated_salary"`
	TotalNetRemainingSalary decimal.Decimal   `json:"total_net_remaining_salary"`
}

// ========== SALARY PAYMENT DTOs ==========

type RecordPaymentRequest struct {
	EmployeeID  string          `json:"employee_id"`
	Period      string          `json:"period"` // YYYY-MM
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Date        string          `json:"date"` // YYYY-MM-DD
	Note        *string         `json:"note,omitempty"`
	CheckNumber *string         `json:"check_number,omitempty"`
}

func (r *RecordPaymentRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "is required"})
	}
	if !validator.IsValidPeriod(r.Period) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "must be in YYYY-MM format"})
	}
	errs = append(errs, validatePaymentFields(r.PaidAmount, r.Date, r.Note, r.CheckNumber)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type EditPaymentRequest struct {
	ID          string          `json:"-"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Date        string          `json:"date"` // YYYY-MM-DD
	Note        *string         `json:"note,omitempty"`
	CheckNumber *string         `json:"check_number,omitempty"`
	// Version, when set, must match the stored row version.
	Version *int `json:"version,omitempty"`
}

func (r *EditPaymentRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "is required"})
	}
	errs = append(errs, validatePaymentFields(r.PaidAmount, r.Date, r.Note, r.CheckNumber)...)
	if r.Version != nil && *r.Version < 1 {
		errs = append(errs, validator.ValidationError{Field: "version", Message: "must be positive"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePaymentFields(amount decimal.Decimal, date string, note, checkNumber *string) validator.ValidationErrors {
	var errs validator.ValidationErrors

	if !amount.IsPositive() {
		errs = append(errs, validator.ValidationError{Field: "paid_amount", Message: "must be greater than zero"})
	} else if !amount.Equal(amount.Round(2)) {
		errs = append(errs, validator.ValidationError{Field: "paid_amount", Message: "must have at most 2 decimal places"})
	}
	if _, ok := validator.IsValidDate(date); !ok {
		errs = append(errs, validator.ValidationError{Field: "date", Message: "must be in YYYY-MM-DD format"})
	}
	if note != nil && !validator.MaxLength(*note, maxNoteLength) {
		errs = append(errs, validator.ValidationError{Field: "note", Message: "is too long"})
	}
	if checkNumber != nil && !validator.MaxLength(*checkNumber, maxCheckNumberLength) {
		errs = append(errs, validator.ValidationError{Field: "check_number", Message: "is too long"})
	}
	return errs
}

type SalaryPaymentResponse struct {
	ID                      string          `json:"id"`
	EmployeeID              string          `json:"employee_id"`
	EmployeeName            *string         `json:"employee_name,omitempty"`
	Period                  string          `json:"period"`
	Date                    string          `json:"date"`
	PaidAmount              decimal.Decimal `json:"paid_amount"`
	AdjustedRemainingSalary decimal.Decimal `json:"adjusted_remaining_salary"`
	FinalRemainingBalance   decimal.Decimal `json:"final_remaining_balance"`
	Note                    *string         `json:"note,omitempty"`
	CheckNumber             *string         `json:"check_number,omitempty"`
	Version                 int             `json:"version"`
	CreatedAt               string          `json:"created_at"`
	UpdatedAt               string          `json:"updated_at"`
}

type SalaryPaymentFilter struct {
	EmployeeID *string `json:"employee_id,omitempty"`
	Period     *string `json:"period,omitempty"`    // YYYY-MM
	DateFrom   *string `json:"date_from,omitempty"` // YYYY-MM-DD
	DateTo     *string `json:"date_to,omitempty"`   // YYYY-MM-DD
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}

// ToQuery validates the filter and converts it to a repository query.
func (f SalaryPaymentFilter) ToQuery() (SalaryPaymentQuery, error) {
	var errs validator.ValidationErrors
	q := SalaryPaymentQuery{EmployeeID: f.EmployeeID}

	if f.Period != nil {
		if p, err := ParsePeriod(*f.Period); err == nil {
			q.Period = &p
		} else {
			errs = append(errs, validator.ValidationError{Field: "period", Message: "must be in YYYY-MM format"})
		}
	}
	if f.DateFrom != nil {
		if d, ok := validator.IsValidDate(*f.DateFrom); ok {
			q.DateFrom = &d
		} else {
			errs = append(errs, validator.ValidationError{Field: "date_from", Message: "must be in YYYY-MM-DD format"})
		}
	}
	if f.DateTo != nil {
		if d, ok := validator.IsValidDate(*f.DateTo); ok {
			q.DateTo = &d
		} else {
			errs = append(errs, validator.ValidationError{Field: "date_to", Message: "must be in YYYY-MM-DD format"})
		}
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateTo.Before(*q.DateFrom) {
		errs = append(errs, validator.ValidationError{Field: "date_to", Message: "must not be before date_from"})
	}

	if len(errs) > 0 {
		return SalaryPaymentQuery{}, errs
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	q.Limit = f.Limit
	q.Offset = (f.Page - 1) * f.Limit

	return q, nil
}

type ListSalaryPaymentResponse struct {
	Data       []SalaryPaymentResponse `json:"data"`
	TotalCount int64                   `json:"total_count"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
}
