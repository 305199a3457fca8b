package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/config"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/sse"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== FAKES ==========

type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeEmployeeRepo struct {
	employees map[string]employee.Employee
}

func (r *fakeEmployeeRepo) GetByID(_ context.Context, id string) (employee.Employee, error) {
	emp, ok := r.employees[id]
	if !ok || emp.IsDeleted() {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return emp, nil
}

func (r *fakeEmployeeRepo) ListActive(_ context.Context) ([]employee.Employee, error) {
	var result []employee.Employee
	for _, emp := range r.employees {
		if !emp.IsDeleted() {
			result = append(result, emp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, nil
}

type fakeAggregateRepo struct {
	aggregates map[string]payroll.PeriodAggregate
}

func (r *fakeAggregateRepo) GetPeriodAggregate(_ context.Context, employeeID string, period payroll.Period) (payroll.PeriodAggregate, error) {
	agg := r.aggregates[employeeID+"/"+period.String()]
	agg.EmployeeID = employeeID
	agg.Period = period
	return agg, nil
}

type fakePaymentRepo struct {
	mu        sync.Mutex
	payments  map[string]payroll.SalaryPayment
	seq       int
	createErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]payroll.SalaryPayment)}
}

func (r *fakePaymentRepo) Create(_ context.Context, p payroll.SalaryPayment) (payroll.SalaryPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return payroll.SalaryPayment{}, r.createErr
	}
	r.seq++
	p.ID = fmt.Sprintf("pay-%d", r.seq)
	p.Version = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.payments[p.ID] = p
	return p, nil
}

func (r *fakePaymentRepo) GetByID(_ context.Context, id string) (payroll.SalaryPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return payroll.SalaryPayment{}, payroll.ErrSalaryPaymentNotFound
	}
	return p, nil
}

func (r *fakePaymentRepo) Update(_ context.Context, p payroll.SalaryPayment) (payroll.SalaryPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[p.ID]
	if !ok {
		return payroll.SalaryPayment{}, payroll.ErrSalaryPaymentNotFound
	}
	if stored.Version != p.Version {
		return payroll.SalaryPayment{}, payroll.ErrConcurrentModification
	}
	p.Version++
	p.UpdatedAt = time.Now()
	r.payments[p.ID] = p
	return p, nil
}

func (r *fakePaymentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[id]; !ok {
		return payroll.ErrSalaryPaymentNotFound
	}
	delete(r.payments, id)
	return nil
}

func (r *fakePaymentRepo) List(_ context.Context, q payroll.SalaryPaymentQuery) ([]payroll.SalaryPayment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []payroll.SalaryPayment
	for _, p := range r.payments {
		if q.EmployeeID != nil && p.EmployeeID != *q.EmployeeID {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, int64(len(result)), nil
}

func (r *fakePaymentRepo) SumPaidAmount(_ context.Context, employeeID string, period payroll.Period) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, p := range r.payments {
		if p.EmployeeID == employeeID && p.Period == period {
			total = total.Add(p.PaidAmount)
		}
	}
	return total, nil
}

func (r *fakePaymentRepo) LockPeriod(context.Context, string, payroll.Period) error {
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordingPublisher) Publish(topic string, event sse.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	event.Topic = topic
	p.events = append(p.events, event)
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for _, e := range p.events {
		names = append(names, e.Event)
	}
	return names
}

// ========== HELPERS ==========

type testEnv struct {
	service  payroll.PayrollService
	payments *fakePaymentRepo
	events   *recordingPublisher
	aggs     *fakeAggregateRepo
}

func newTestEnv(t *testing.T, editMode string) *testEnv {
	t.Helper()

	employees := &fakeEmployeeRepo{employees: map[string]employee.Employee{
		"emp-1": {
			ID:                "emp-1",
			FullName:          "Basma Khalil",
			BaseSalary:        dec("300"),
			ContractStartDate: date(2021, time.March, 1),
		},
		"emp-2": {
			ID:                "emp-2",
			FullName:          "Adel Haddad",
			BaseSalary:        dec("600"),
			ContractStartDate: date(2024, time.June, 10),
		},
	}}
	env := &testEnv{
		payments: newFakePaymentRepo(),
		events:   &recordingPublisher{},
		aggs:     &fakeAggregateRepo{aggregates: map[string]payroll.PeriodAggregate{}},
	}
	env.service = NewPayrollService(
		fakeTransactor{},
		env.payments,
		env.aggs,
		employees,
		env.events,
		config.PayrollConfig{EditMode: editMode, SheetConcurrency: 2},
		nil,
	)
	return env
}

func recordReq(amount string) payroll.RecordPaymentRequest {
	return payroll.RecordPaymentRequest{
		EmployeeID: "emp-1",
		Period:     "2024-06",
		PaidAmount: dec(amount),
		Date:       "2024-06-30",
	}
}

func editReq(id, amount string) payroll.EditPaymentRequest {
	return payroll.EditPaymentRequest{
		ID:         id,
		PaidAmount: dec(amount),
		Date:       "2024-07-01",
	}
}

// ========== ACCRUAL ==========

func TestComputeAccrualService(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	env.aggs.aggregates["emp-1/2024-06"] = payroll.PeriodAggregate{
		TotalVacationDays:    5,
		TotalWithdrawnAmount: dec("40"),
	}

	resp, err := env.service.ComputeAccrual(context.Background(), "emp-1", "2024-06")
	require.NoError(t, err)

	assert.Equal(t, "2024-06", resp.Period)
	assertMoney(t, "10", resp.VacationPenalty)
	assertMoney(t, "250", resp.NetRemainingSalary)
}

func TestComputeAccrualService_InvalidInput(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)

	_, err := env.service.ComputeAccrual(context.Background(), "emp-1", "2024-13")
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)

	_, err = env.service.ComputeAccrual(context.Background(), "missing", "2024-06")
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}

func TestGetPayrollSheet(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	env.aggs.aggregates["emp-1/2024-06"] = payroll.PeriodAggregate{TotalOvertimeHours: dec("10")}

	sheet, err := env.service.GetPayrollSheet(context.Background(), "2024-06")
	require.NoError(t, err)

	require.Len(t, sheet.Data, 2)
	assert.Equal(t, "Adel Haddad", sheet.Data[0].EmployeeName)
	assert.Equal(t, "Basma Khalil", sheet.Data[1].EmployeeName)
	// emp-2 starts on the 10th: 600*20/30
	assertMoney(t, "400", sheet.Data[0].ProratedSalary)
	assertMoney(t, "312.5", sheet.Data[1].NetRemainingSalary)
	assertMoney(t, "700", sheet.TotalProratedSalary)
	assertMoney(t, "712.5", sheet.TotalNetRemainingSalary)
	assert.Equal(t, 2, sheet.TotalEmployees)
}

// ========== RECORD ==========

func TestRecordPayment_RejectsOverpaymentWithoutWriting(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)

	for _, amount := range []string{"300", "300.01", "1000"} {
		_, err := env.service.RecordPayment(context.Background(), recordReq(amount))

		var overErr *payroll.OverpaymentError
		require.True(t, errors.As(err, &overErr), "amount %s", amount)
		assert.False(t, overErr.AllowEqual)
		assertMoney(t, "300", overErr.Remaining)
	}

	assert.Empty(t, env.payments.payments)
	assert.Empty(t, env.events.names())
}

func TestRecordPayment_JustBelowNetSucceeds(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)

	resp, err := env.service.RecordPayment(context.Background(), recordReq("299.99"))
	require.NoError(t, err)

	assertMoney(t, "300", resp.AdjustedRemainingSalary)
	assertMoney(t, "0.01", resp.FinalRemainingBalance)
	assert.Equal(t, "2024-06", resp.Period)
	assert.Equal(t, "2024-06-30", resp.Date)
	assert.Equal(t, 1, resp.Version)
	assert.Equal(t, []string{payroll.EventSalaryPaymentCreated}, env.events.names())
}

func TestRecordPayment_CumulativePaymentsStayBelowNet(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	ctx := context.Background()

	_, err := env.service.RecordPayment(ctx, recordReq("200"))
	require.NoError(t, err)

	_, err = env.service.RecordPayment(ctx, recordReq("100"))
	assert.ErrorIs(t, err, payroll.ErrOverpayment)

	second, err := env.service.RecordPayment(ctx, recordReq("99.99"))
	require.NoError(t, err)
	assertMoney(t, "100", second.AdjustedRemainingSalary)
	assertMoney(t, "0.01", second.FinalRemainingBalance)
}

func TestRecordPayment_Validation(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)

	req := recordReq("0")
	req.Period = "June"
	req.Date = "30/06/2024"

	_, err := env.service.RecordPayment(context.Background(), req)

	var vErrs validator.ValidationErrors
	require.True(t, errors.As(err, &vErrs))
	fields := vErrs.ToMap()
	assert.Contains(t, fields, "paid_amount")
	assert.Contains(t, fields, "period")
	assert.Contains(t, fields, "date")
}

func TestRecordPayment_UnknownEmployee(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)

	req := recordReq("10")
	req.EmployeeID = "missing"

	_, err := env.service.RecordPayment(context.Background(), req)
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
	assert.Empty(t, env.payments.payments)
}

func TestRecordPayment_PersistenceFailure(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	env.payments.createErr = errors.New("connection reset")

	_, err := env.service.RecordPayment(context.Background(), recordReq("10"))

	assert.ErrorIs(t, err, payroll.ErrPersistence)
	assert.ErrorContains(t, err, "connection reset")
	assert.Empty(t, env.events.names())
}

// ========== EDIT ==========

func TestEditPayment_SnapshotCompoundsOnRepeatedEdits(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	ctx := context.Background()

	created, err := env.service.RecordPayment(ctx, recordReq("100"))
	require.NoError(t, err)
	assertMoney(t, "200", created.FinalRemainingBalance)

	first, err := env.service.EditPayment(ctx, editReq(created.ID, "50"))
	require.NoError(t, err)
	assertMoney(t, "150", first.FinalRemainingBalance)

	second, err := env.service.EditPayment(ctx, editReq(created.ID, "50"))
	require.NoError(t, err)
	assertMoney(t, "100", second.FinalRemainingBalance)
	assertMoney(t, "300", second.AdjustedRemainingSalary)
	assert.Equal(t, "2024-07-01", second.Date)
	assert.Equal(t, 3, second.Version)
}

func TestEditPayment_AllowsAmountEqualToStoredBalance(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	ctx := context.Background()

	created, err := env.service.RecordPayment(ctx, recordReq("100"))
	require.NoError(t, err)

	_, err = env.service.EditPayment(ctx, editReq(created.ID, "200.01"))
	var overErr *payroll.OverpaymentError
	require.True(t, errors.As(err, &overErr))
	assert.True(t, overErr.AllowEqual)

	edited, err := env.service.EditPayment(ctx, editReq(created.ID, "200"))
	require.NoError(t, err)
	assertMoney(t, "0", edited.FinalRemainingBalance)
}

func TestEditPayment_SnapshotCanExceedNetAcrossPayments(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	ctx := context.Background()

	first, err := env.service.RecordPayment(ctx, recordReq("10"))
	require.NoError(t, err)
	_, err = env.service.RecordPayment(ctx, recordReq("280"))
	require.NoError(t, err)

	// the ceiling is the row's stored balance, other payments are not consulted
	edited, err := env.service.EditPayment(ctx, editReq(first.ID, "290"))
	require.NoError(t, err)
	assertMoney(t, "0", edited.FinalRemainingBalance)

	total, err := env.payments.SumPaidAmount(ctx, "emp-1", payroll.Period{Year: 2024, Month: time.June})
	require.NoError(t, err)
	assertMoney(t, "570", total)
}

func TestEditPayment_RecomputeModeKeepsCumulativeWithinNet(t *testing.T) {
	env := newTestEnv(t, config.EditModeRecompute)
	ctx := context.Background()

	first, err := env.service.RecordPayment(ctx, recordReq("10"))
	require.NoError(t, err)
	_, err = env.service.RecordPayment(ctx, recordReq("280"))
	require.NoError(t, err)

	_, err = env.service.EditPayment(ctx, editReq(first.ID, "290"))
	assert.ErrorIs(t, err, payroll.ErrOverpayment)

	edited, err := env.service.EditPayment(ctx, editReq(first.ID, "20"))
	require.NoError(t, err)
	assertMoney(t, "0", edited.FinalRemainingBalance)
}

func TestEditPayment_RecomputeModeIsIdempotent(t *testing.T) {
	env := newTestEnv(t, config.EditModeRecompute)
	ctx := context.Background()

	created, err := env.service.RecordPayment(ctx, recordReq("100"))
	require.NoError(t, err)

	for range 2 {
		edited, err := env.service.EditPayment(ctx, editReq(created.ID, "50"))
		require.NoError(t, err)
		assertMoney(t, "250", edited.FinalRemainingBalance)
		assertMoney(t, "300", edited.AdjustedRemainingSalary)
	}

	// the whole net is available to a single payment in this mode
	_, err = env.service.EditPayment(ctx, editReq(created.ID, "300"))
	require.NoError(t, err)
	_, err = env.service.EditPayment(ctx, editReq(created.ID, "300.01"))
	assert.ErrorIs(t, err, payroll.ErrOverpayment)
}

func TestEditPayment_StaleVersion(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	ctx := context.Background()

	created, err := env.service.RecordPayment(ctx, recordReq("100"))
	require.NoError(t, err)
	_, err = env.service.EditPayment(ctx, editReq(created.ID, "90"))
	require.NoError(t, err)

	req := editReq(created.ID, "80")
	stale := created.Version
	req.Version = &stale

	_, err = env.service.EditPayment(ctx, req)
	assert.ErrorIs(t, err, payroll.ErrConcurrentModification)
}

func TestEditPayment_NotFound(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)

	_, err := env.service.EditPayment(context.Background(), editReq("missing", "10"))
	assert.ErrorIs(t, err, payroll.ErrSalaryPaymentNotFound)
}

func TestParsePaidDate(t *testing.T) {
	got, err := parsePaidDate("2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.June, 30), got)

	_, err = parsePaidDate("")
	var vErrs validator.ValidationErrors
	require.True(t, errors.As(err, &vErrs))
	assert.Contains(t, vErrs.ToMap(), "date")
}

// ========== DELETE / READ ==========

func TestDeletePayment(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	ctx := context.Background()

	created, err := env.service.RecordPayment(ctx, recordReq("100"))
	require.NoError(t, err)

	require.NoError(t, env.service.DeletePayment(ctx, created.ID))
	assert.ErrorIs(t, env.service.DeletePayment(ctx, created.ID), payroll.ErrSalaryPaymentNotFound)

	_, err = env.service.GetPayment(ctx, created.ID)
	assert.ErrorIs(t, err, payroll.ErrSalaryPaymentNotFound)

	assert.Equal(t, []string{payroll.EventSalaryPaymentCreated, payroll.EventSalaryPaymentDeleted}, env.events.names())
}

func TestListPayments(t *testing.T) {
	env := newTestEnv(t, config.EditModeSnapshot)
	ctx := context.Background()

	_, err := env.service.RecordPayment(ctx, recordReq("10"))
	require.NoError(t, err)
	_, err = env.service.RecordPayment(ctx, recordReq("20"))
	require.NoError(t, err)

	empID := "emp-1"
	resp, err := env.service.ListPayments(ctx, payroll.SalaryPaymentFilter{EmployeeID: &empID})
	require.NoError(t, err)

	assert.Equal(t, int64(2), resp.TotalCount)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.Limit)
	assertMoney(t, "290", resp.Data[0].FinalRemainingBalance)
	assertMoney(t, "270", resp.Data[1].FinalRemainingBalance)

	bad := "2024/06"
	_, err = env.service.ListPayments(ctx, payroll.SalaryPaymentFilter{Period: &bad})
	var vErrs validator.ValidationErrors
	assert.True(t, errors.As(err, &vErrs))
}
