package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodyBytes = 1 << 20

type PayrollHandler interface {
	// Accruals
	GetAccrual(w http.ResponseWriter, r *http.Request)
	GetPayrollSheet(w http.ResponseWriter, r *http.Request)

	// Salary payments
	RecordPayment(w http.ResponseWriter, r *http.Request)
	ListPayments(w http.ResponseWriter, r *http.Request)
	GetPayment(w http.ResponseWriter, r *http.Request)
	EditPayment(w http.ResponseWriter, r *http.Request)
	DeletePayment(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// ========== ACCRUALS ==========

func (h *payrollHandlerImpl) GetAccrual(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")
	period := chi.URLParam(r, "period")

	result, err := h.payrollService.ComputeAccrual(r.Context(), employeeID, period)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) GetPayrollSheet(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.GetPayrollSheet(r.Context(), chi.URLParam(r, "period"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== SALARY PAYMENTS ==========

func (h *payrollHandlerImpl) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req payroll.RecordPaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.RecordPayment(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Salary payment recorded", result)
}

func (h *payrollHandlerImpl) ListPayments(w http.ResponseWriter, r *http.Request) {
	filter := payroll.SalaryPaymentFilter{
		Page:  1,
		Limit: 20,
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if employeeID := query.Get("employee_id"); employeeID != "" {
		filter.EmployeeID = &employeeID
	}
	if period := query.Get("period"); period != "" {
		filter.Period = &period
	}
	if dateFrom := query.Get("date_from"); dateFrom != "" {
		filter.DateFrom = &dateFrom
	}
	if dateTo := query.Get("date_to"); dateTo != "" {
		filter.DateTo = &dateTo
	}

	result, err := h.payrollService.ListPayments(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.TotalCount + int64(result.Limit) - 1) / int64(result.Limit))
	}
	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages,
	})
}

func (h *payrollHandlerImpl) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payment ID is required", nil)
		return
	}

	result, err := h.payrollService.GetPayment(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) EditPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payment ID is required", nil)
		return
	}

	var req payroll.EditPaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.ID = id

	result, err := h.payrollService.EditPayment(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salary payment updated", result)
}

func (h *payrollHandlerImpl) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payment ID is required", nil)
		return
	}

	if err := h.payrollService.DeletePayment(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salary payment deleted", nil)
}
