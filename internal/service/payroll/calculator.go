package payroll

import (
	"time"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

const (
	// StandardShiftHours and StandardMonthDays fix the hourly and daily rates.
	// They do not follow the calendar length of the period.
	StandardShiftHours  = 10
	StandardMonthDays   = 30
	AllowedVacationDays = 4
)

var (
	overtimeMultiplier = decimal.RequireFromString("1.25")
	hoursPerRateMonth  = decimal.NewFromInt(StandardShiftHours * StandardMonthDays)
	daysPerRateMonth   = decimal.NewFromInt(StandardMonthDays)
)

// ComputeProration scales base to the part of the period covered by the contract.
// A contract ending inside the period is paid through its end day. A contract
// starting inside the period is paid from the day after the start day.
func ComputeProration(base decimal.Decimal, contractStart time.Time, contractEnd *time.Time, period payroll.Period) (decimal.Decimal, error) {
	if base.IsNegative() {
		return decimal.Zero, &payroll.ComputationError{Field: "base_salary", Reason: "must be non-negative"}
	}
	if contractStart.IsZero() {
		return decimal.Zero, &payroll.ComputationError{Field: "contract_start_date", Reason: "is required"}
	}

	daysInPeriod := period.DaysIn()
	days := decimal.NewFromInt(int64(daysInPeriod))

	if contractEnd != nil && period.Contains(*contractEnd) && contractEnd.Day() < daysInPeriod {
		return base.Mul(decimal.NewFromInt(int64(contractEnd.Day()))).Div(days), nil
	}
	if period.Contains(contractStart) {
		return base.Mul(decimal.NewFromInt(int64(daysInPeriod - contractStart.Day()))).Div(days), nil
	}
	return base, nil
}

// ComputeOvertimeBonus pays overtime at 1.25x the hourly rate, prorated / (10 h * 30 d).
func ComputeOvertimeBonus(totalOvertimeHours, prorated decimal.Decimal) decimal.Decimal {
	return totalOvertimeHours.Mul(prorated).Mul(overtimeMultiplier).Div(hoursPerRateMonth)
}

// ExcessVacationDays counts vacation days beyond the allowance.
func ExcessVacationDays(totalVacationDays int) int {
	return max(0, totalVacationDays-AllowedVacationDays)
}

// ComputeVacationPenalty charges each excess day at the daily rate, prorated / 30 d.
func ComputeVacationPenalty(totalVacationDays int, prorated decimal.Decimal) decimal.Decimal {
	excess := ExcessVacationDays(totalVacationDays)
	if excess == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(excess)).Mul(prorated).Div(daysPerRateMonth)
}

// ComputeNonWorkingHourPenalty charges missed shift hours at the hourly rate, prorated / (10 h * 30 d).
func ComputeNonWorkingHourPenalty(totalNonWorkingHours, prorated decimal.Decimal) decimal.Decimal {
	return totalNonWorkingHours.Mul(prorated).Div(hoursPerRateMonth)
}

// ComputeNetRemainingSalary may return a negative amount. No floor is applied.
func ComputeNetRemainingSalary(prorated, vacationPenalty, nonWorkingPenalty, overtimeBonus, deduction, staffFood, withdrawn decimal.Decimal) decimal.Decimal {
	return prorated.
		Sub(vacationPenalty).
		Sub(nonWorkingPenalty).
		Add(overtimeBonus).
		Sub(deduction).
		Sub(staffFood).
		Sub(withdrawn)
}

// ComputeAccrual derives the salary position of emp for period from agg.
// Intermediate values keep full precision; only the returned amounts are rounded.
func ComputeAccrual(emp employee.Employee, period payroll.Period, agg payroll.PeriodAggregate) (payroll.Accrual, error) {
	if err := agg.Validate(); err != nil {
		return payroll.Accrual{}, err
	}

	prorated, err := ComputeProration(emp.BaseSalary, emp.ContractStartDate, emp.ContractEndDate, period)
	if err != nil {
		return payroll.Accrual{}, err
	}

	vacationPenalty := ComputeVacationPenalty(agg.TotalVacationDays, prorated)
	nonWorkingPenalty := ComputeNonWorkingHourPenalty(agg.TotalNonWorkingHours, prorated)
	overtimeBonus := ComputeOvertimeBonus(agg.TotalOvertimeHours, prorated)
	net := ComputeNetRemainingSalary(
		prorated,
		vacationPenalty,
		nonWorkingPenalty,
		overtimeBonus,
		agg.TotalDeductionAmount,
		agg.TotalStaffFoodAmount,
		agg.TotalWithdrawnAmount,
	)

	return payroll.Accrual{
		EmployeeID:            emp.ID,
		EmployeeName:          emp.FullName,
		Period:                period,
		WorkingDaysCount:      agg.WorkingDaysCount,
		TotalOvertimeHours:    agg.TotalOvertimeHours,
		TotalNonWorkingHours:  agg.TotalNonWorkingHours,
		TotalVacationDays:     agg.TotalVacationDays,
		ExcessVacationDays:    ExcessVacationDays(agg.TotalVacationDays),
		BaseSalary:            roundMoney(emp.BaseSalary),
		ProratedSalary:        roundMoney(prorated),
		VacationPenalty:       roundMoney(vacationPenalty),
		NonWorkingHourPenalty: roundMoney(nonWorkingPenalty),
		OvertimeBonus:         roundMoney(overtimeBonus),
		TotalDeductionAmount:  roundMoney(agg.TotalDeductionAmount),
		TotalStaffFoodAmount:  roundMoney(agg.TotalStaffFoodAmount),
		TotalWithdrawnAmount:  roundMoney(agg.TotalWithdrawnAmount),
		NetRemainingSalary:    roundMoney(net),
	}, nil
}

// roundMoney rounds half away from zero to cents.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
