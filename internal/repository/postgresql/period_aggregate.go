package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/database"
)

type periodAggregateRepositoryImpl struct {
	db *database.DB
}

func NewPeriodAggregateRepository(db *database.DB) payroll.PeriodAggregateRepository {
	return &periodAggregateRepositoryImpl{db: db}
}

// GetPeriodAggregate sums the source tables over [period start, next period start).
// Withdrawals are matched on the salary period they were booked against.
// Every subtotal falls back to zero when its table has no rows.
func (r *periodAggregateRepositoryImpl) GetPeriodAggregate(ctx context.Context, employeeID string, period payroll.Period) (payroll.PeriodAggregate, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			(SELECT COUNT(*) FROM attendances a
			  WHERE a.employee_id = $1 AND a.date >= $2 AND a.date < $3 AND a.check_out IS NOT NULL),
			(SELECT COALESCE(SUM(a.overtime_hours), 0) FROM attendances a
			  WHERE a.employee_id = $1 AND a.date >= $2 AND a.date < $3),
			(SELECT COALESCE(SUM(GREATEST(
					a.shift_hours - EXTRACT(EPOCH FROM (a.check_out - a.check_in))::numeric / 3600, 0)), 0)
			   FROM attendances a
			  WHERE a.employee_id = $1 AND a.date >= $2 AND a.date < $3
			    AND a.check_in IS NOT NULL AND a.check_out IS NOT NULL),
			(SELECT COUNT(*) FROM vacations v
			  WHERE v.employee_id = $1 AND v.vacation_date >= $2 AND v.vacation_date < $3),
			(SELECT COALESCE(SUM(d.amount), 0) FROM deductions d
			  WHERE d.employee_id = $1 AND d.date >= $2 AND d.date < $3),
			(SELECT COALESCE(SUM(f.amount), 0) FROM staff_food_expenses f
			  WHERE f.employee_id = $1 AND f.date >= $2 AND f.date < $3),
			(SELECT COALESCE(SUM(w.amount), 0) FROM employee_withdrawals w
			  WHERE w.employee_id = $1 AND w.salary_period = $4)
	`

	agg := payroll.PeriodAggregate{EmployeeID: employeeID, Period: period}
	var workingDays, vacationDays int64
	err := q.QueryRow(ctx, query, employeeID, period.Start(), period.End(), period.String()).Scan(
		&workingDays,
		&agg.TotalOvertimeHours,
		&agg.TotalNonWorkingHours,
		&vacationDays,
		&agg.TotalDeductionAmount,
		&agg.TotalStaffFoodAmount,
		&agg.TotalWithdrawnAmount,
	)
	if err != nil {
		return payroll.PeriodAggregate{}, fmt.Errorf("failed to aggregate period %s: %w", period, err)
	}
	agg.WorkingDaysCount = int(workingDays)
	agg.TotalVacationDays = int(vacationDays)

	return agg, nil
}
