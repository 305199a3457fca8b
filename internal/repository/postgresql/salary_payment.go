package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const pgForeignKeyViolation = "23503"

type salaryPaymentRepositoryImpl struct {
	db *database.DB
}

func NewSalaryPaymentRepository(db *database.DB) payroll.SalaryPaymentRepository {
	return &salaryPaymentRepositoryImpl{db: db}
}

const salaryPaymentColumns = `
	sp.id, sp.employee_id, sp.salary_period, sp.paid_date, sp.paid_amount,
	sp.adjusted_remaining_salary, sp.final_remaining_balance, sp.note, sp.check_number,
	sp.version, sp.created_at, sp.updated_at, e.full_name`

func scanSalaryPayment(row pgx.Row) (payroll.SalaryPayment, error) {
	var (
		p      payroll.SalaryPayment
		period string
	)
	err := row.Scan(
		&p.ID, &p.EmployeeID, &period, &p.PaidDate, &p.PaidAmount,
		&p.AdjustedRemainingSalary, &p.FinalRemainingBalance, &p.Note, &p.CheckNumber,
		&p.Version, &p.CreatedAt, &p.UpdatedAt, &p.EmployeeName,
	)
	if err != nil {
		return payroll.SalaryPayment{}, err
	}
	if p.Period, err = payroll.ParsePeriod(period); err != nil {
		return payroll.SalaryPayment{}, fmt.Errorf("stored salary period %q: %w", period, err)
	}
	return p, nil
}

func (r *salaryPaymentRepositoryImpl) Create(ctx context.Context, payment payroll.SalaryPayment) (payroll.SalaryPayment, error) {
	q := GetQuerier(ctx, r.db)

	if payment.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return payroll.SalaryPayment{}, fmt.Errorf("failed to generate salary payment id: %w", err)
		}
		payment.ID = id.String()
	}

	query := `
		WITH inserted AS (
			INSERT INTO salary_payments (
				id, employee_id, salary_period, paid_date, paid_amount,
				adjusted_remaining_salary, final_remaining_balance, note, check_number
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING *
		)
		SELECT ` + salaryPaymentColumns + `
		FROM inserted sp
		LEFT JOIN employees e ON e.id = sp.employee_id
	`

	created, err := scanSalaryPayment(q.QueryRow(ctx, query,
		payment.ID, payment.EmployeeID, payment.Period.String(), payment.PaidDate, payment.PaidAmount,
		payment.AdjustedRemainingSalary, payment.FinalRemainingBalance, payment.Note, payment.CheckNumber,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return payroll.SalaryPayment{}, employee.ErrEmployeeNotFound
		}
		return payroll.SalaryPayment{}, fmt.Errorf("failed to create salary payment: %w", err)
	}

	return created, nil
}

func (r *salaryPaymentRepositoryImpl) GetByID(ctx context.Context, id string) (payroll.SalaryPayment, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + salaryPaymentColumns + `
		FROM salary_payments sp
		LEFT JOIN employees e ON e.id = sp.employee_id
		WHERE sp.id = $1
	`

	p, err := scanSalaryPayment(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.SalaryPayment{}, payroll.ErrSalaryPaymentNotFound
		}
		return payroll.SalaryPayment{}, fmt.Errorf("failed to get salary payment by id: %w", err)
	}

	return p, nil
}

// Update is keyed by payment id and guarded by the row version.
func (r *salaryPaymentRepositoryImpl) Update(ctx context.Context, payment payroll.SalaryPayment) (payroll.SalaryPayment, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		WITH updated AS (
			UPDATE salary_payments SET
				paid_date = $3,
				paid_amount = $4,
				adjusted_remaining_salary = $5,
				final_remaining_balance = $6,
				note = $7,
				check_number = $8,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $1 AND version = $2
			RETURNING *
		)
		SELECT ` + salaryPaymentColumns + `
		FROM updated sp
		LEFT JOIN employees e ON e.id = sp.employee_id
	`

	updated, err := scanSalaryPayment(q.QueryRow(ctx, query,
		payment.ID, payment.Version, payment.PaidDate, payment.PaidAmount,
		payment.AdjustedRemainingSalary, payment.FinalRemainingBalance, payment.Note, payment.CheckNumber,
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return payroll.SalaryPayment{}, fmt.Errorf("failed to update salary payment: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM salary_payments WHERE id = $1)`, payment.ID).Scan(&exists); err != nil {
		return payroll.SalaryPayment{}, fmt.Errorf("failed to check salary payment: %w", err)
	}
	if !exists {
		return payroll.SalaryPayment{}, payroll.ErrSalaryPaymentNotFound
	}
	return payroll.SalaryPayment{}, payroll.ErrConcurrentModification
}

func (r *salaryPaymentRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	query := `DELETE FROM salary_payments WHERE id = $1 RETURNING id`

	var deletedID string
	err := q.QueryRow(ctx, query, id).Scan(&deletedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.ErrSalaryPaymentNotFound
		}
		return fmt.Errorf("failed to delete salary payment: %w", err)
	}

	return nil
}

func (r *salaryPaymentRepositoryImpl) List(ctx context.Context, query payroll.SalaryPaymentQuery) ([]payroll.SalaryPayment, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := `
		FROM salary_payments sp
		LEFT JOIN employees e ON e.id = sp.employee_id
		WHERE 1 = 1
	`
	args := []interface{}{}
	argIdx := 1

	if query.EmployeeID != nil {
		baseQuery += fmt.Sprintf(" AND sp.employee_id = $%d", argIdx)
		args = append(args, *query.EmployeeID)
		argIdx++
	}
	if query.Period != nil {
		baseQuery += fmt.Sprintf(" AND sp.salary_period = $%d", argIdx)
		args = append(args, query.Period.String())
		argIdx++
	}
	if query.DateFrom != nil {
		baseQuery += fmt.Sprintf(" AND sp.paid_date >= $%d", argIdx)
		args = append(args, *query.DateFrom)
		argIdx++
	}
	if query.DateTo != nil {
		baseQuery += fmt.Sprintf(" AND sp.paid_date <= $%d", argIdx)
		args = append(args, *query.DateTo)
		argIdx++
	}

	var totalCount int64
	countQuery := "SELECT COUNT(*) " + baseQuery
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count salary payments: %w", err)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		%s
		ORDER BY sp.paid_date DESC, sp.created_at DESC, sp.id DESC
		LIMIT $%d OFFSET $%d
	`, salaryPaymentColumns, baseQuery, argIdx, argIdx+1)

	args = append(args, limit, query.Offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list salary payments: %w", err)
	}
	defer rows.Close()

	var payments []payroll.SalaryPayment
	for rows.Next() {
		p, err := scanSalaryPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan salary payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate salary payments: %w", err)
	}

	return payments, totalCount, nil
}

func (r *salaryPaymentRepositoryImpl) SumPaidAmount(ctx context.Context, employeeID string, period payroll.Period) (decimal.Decimal, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COALESCE(SUM(paid_amount), 0)
		FROM salary_payments
		WHERE employee_id = $1 AND salary_period = $2
	`

	var total decimal.Decimal
	if err := q.QueryRow(ctx, query, employeeID, period.String()).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum salary payments: %w", err)
	}

	return total, nil
}

// LockPeriod takes a transaction-scoped advisory lock on the employee period.
func (r *salaryPaymentRepositoryImpl) LockPeriod(ctx context.Context, employeeID string, period payroll.Period) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, employeeID+"/"+period.String()); err != nil {
		return fmt.Errorf("failed to lock salary period: %w", err)
	}

	return nil
}
