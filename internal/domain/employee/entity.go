package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the slice of the employee directory the payroll engine reads.
// Contract dates are calendar dates at midnight UTC.
type Employee struct {
	ID                string
	FullName          string
	BaseSalary        decimal.Decimal
	ContractStartDate time.Time
	ContractEndDate   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// IsDeleted reports whether the employee was soft-deleted.
func (e Employee) IsDeleted() bool {
	return e.DeletedAt != nil
}
