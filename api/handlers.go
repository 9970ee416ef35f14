/*
handlers.go - HTTP API handlers for the leave management engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization and input validation, and delegates everything else
  to the leave package.

ENDPOINTS:
  Validation / requests:
    POST   /api/leave/validate           Dry-run: duration + allocation + warnings
    POST   /api/requests                 Submit (validate + persist pending)
    GET    /api/requests/pending         List pending requests
    POST   /api/requests/{id}/approve    Approve and debit the ledger
    POST   /api/requests/{id}/reject     Reject, no ledger write
    POST   /api/requests/{id}/cancel     Cancel; approved requests are refunded

  Employees / balances:
    GET    /api/employees                List active employees
    POST   /api/employees                Create employee
    GET    /api/employees/{id}/balance   Per-type balance summary
    GET    /api/employees/{id}/transactions  Ledger history

  Admin:
    POST   /api/admin/accruals/yearly    Idempotent yearly accrual run
    POST   /api/admin/accruals/employee  Pro-rated single-employee accrual

  Calendar / catalog:
    GET    /api/calendar/overrides       Overrides in a date range
    POST   /api/calendar/overrides       Add holiday or working override
    GET    /api/leave-types              Active leave types

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate accrual, illegal transition)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the handlers need from persistence. Satisfied by
// store/sqlite.Store and leave/store.Memory.
type Store interface {
	leave.LeaveTypeProvider
	leave.PolicyProvider
	leave.ConversionProvider
	leave.CalendarProvider
	leave.LedgerStore
	leave.PendingStore
	leave.EmployeeStore
	leave.RequestStore

	SaveOverride(ctx context.Context, o leave.CalendarOverride) error
	SaveEmployee(ctx context.Context, e leave.Employee) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       Store
	Engine      *leave.ValidationEngine
	Requests    *leave.RequestService
	Ledger      *leave.BalanceLedger
	Initializer *leave.BalanceInitializer

	validate *validator.Validate
}

// NewHandler wires the engine services on top of the given store.
func NewHandler(store Store) *Handler {
	ledger := leave.NewBalanceLedger(store, store, store, store)
	engine := leave.NewValidationEngine(store, store, store, store, ledger)
	return &Handler{
		Store:       store,
		Engine:      engine,
		Requests:    leave.NewRequestService(engine, ledger, store),
		Ledger:      ledger,
		Initializer: leave.NewBalanceInitializer(store, store, store),
		validate:    validator.New(),
	}
}

// decode unmarshals and validates a request body.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// =============================================================================
// VALIDATION / REQUEST HANDLERS
// =============================================================================

// ValidateLeave dry-runs a request: duration, allocation breakdown and
// warnings, without persisting anything.
func (h *Handler) ValidateLeave(w http.ResponseWriter, r *http.Request) {
	var body ValidateLeaveRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	in, err := body.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.Engine.ValidateAndPrepare(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SubmitRequest validates and persists a pending leave request.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitLeaveRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	in, err := body.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	req, result, err := h.Requests.Submit(r.Context(), in, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req, result.Warnings))
}

// ListPendingRequests returns all pending requests, oldest first.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.ListPendingRequests(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending requests", err)
		return
	}
	dtos := make([]RequestDTO, len(reqs))
	for i := range reqs {
		dtos[i] = toRequestDTO(&reqs[i], nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveRequest approves a pending request and debits the ledger.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req, err := h.Requests.Approve(r.Context(), leave.RequestID(chi.URLParam(r, "id")), body.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req, nil))
}

// RejectRequest rejects a pending request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req, err := h.Requests.Reject(r.Context(), leave.RequestID(chi.URLParam(r, "id")), body.ActorID, body.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req, nil))
}

// CancelRequest cancels a pending or approved request; approved requests
// get their debited days refunded.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req, err := h.Requests.Cancel(r.Context(), leave.RequestID(chi.URLParam(r, "id")), body.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req, nil))
}

// =============================================================================
// EMPLOYEE / BALANCE HANDLERS
// =============================================================================

// ListEmployees returns all active employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListActiveEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{
			ID: string(e.ID), Name: e.Name, Email: e.Email,
			HireDate: e.HireDate.String(), IsActive: e.IsActive,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates an employee record.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var body CreateEmployeeRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	hireDate, err := leave.ParseDate(body.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hire date", err)
		return
	}
	emp := leave.Employee{
		ID:       leave.EmployeeID(body.ID),
		Name:     body.Name,
		Email:    body.Email,
		HireDate: hireDate,
		IsActive: true,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, EmployeeDTO{
		ID: body.ID, Name: body.Name, Email: body.Email,
		HireDate: hireDate.String(), IsActive: true,
	})
}

// GetBalance returns the per-leave-type balance summary. Query params
// year and month default to the current date.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	employeeID := leave.EmployeeID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetEmployee(r.Context(), employeeID); err != nil {
		writeDomainError(w, err)
		return
	}

	now := time.Now()
	year := queryInt(r, "year", now.Year())
	month := queryInt(r, "month", int(now.Month()))
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1-12", nil)
		return
	}

	infos, err := h.Ledger.EmployeeSummary(r.Context(), employeeID, month, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceSummaryDTO{
		EmployeeID: string(employeeID),
		Year:       year,
		Month:      month,
		Balances:   toBalanceDTOs(infos),
	})
}

// GetTransactions returns the employee's ledger rows for a year.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	employeeID := leave.EmployeeID(chi.URLParam(r, "id"))
	year := queryInt(r, "year", time.Now().Year())

	txs, err := h.Store.Transactions(r.Context(), employeeID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load transactions", err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = TransactionDTO{
			ID:          string(t.ID),
			LeaveTypeID: string(t.LeaveTypeID),
			PeriodYear:  t.PeriodYear,
			PeriodMonth: t.PeriodMonth,
			Direction:   string(t.Direction),
			AmountDays:  t.AmountDays,
			SourceType:  string(t.SourceType),
			SourceID:    t.SourceID,
			Note:        t.Note,
			CreatedAt:   t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunYearlyAccrual credits annual leave to every active employee who has
// none for the year. Safe to call repeatedly.
func (h *Handler) RunYearlyAccrual(w http.ResponseWriter, r *http.Request) {
	var body YearlyAccrualRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	result, err := h.Initializer.InitializeYearly(r.Context(), body.Year, decimal.NewFromFloat(body.AnnualDays))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccrualRunDTO{
		Year:     body.Year,
		Credited: result.Credited,
		Skipped:  result.Skipped,
		Total:    result.Total,
	})
}

// RunEmployeeAccrual credits one employee, pro-rated by the current month.
func (h *Handler) RunEmployeeAccrual(w http.ResponseWriter, r *http.Request) {
	var body EmployeeAccrualRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	credited, skipped, err := h.Initializer.InitializeEmployee(
		r.Context(), leave.EmployeeID(body.EmployeeID), body.Year, decimal.NewFromFloat(body.AnnualDays))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EmployeeAccrualDTO{
		EmployeeID: body.EmployeeID,
		Year:       body.Year,
		Credited:   credited,
		Skipped:    skipped,
	})
}

// =============================================================================
// CALENDAR / CATALOG HANDLERS
// =============================================================================

// ListOverrides returns calendar overrides; query params from/to default
// to the current calendar year.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	from := leave.NewDate(year, time.January, 1)
	to := leave.NewDate(year, time.December, 31)
	if s := r.URL.Query().Get("from"); s != "" {
		d, err := leave.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date", err)
			return
		}
		from = d
	}
	if s := r.URL.Query().Get("to"); s != "" {
		d, err := leave.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date", err)
			return
		}
		to = d
	}

	overrides, err := h.Store.Overrides(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list overrides", err)
		return
	}
	dtos := make([]OverrideDTO, len(overrides))
	for i, o := range overrides {
		dtos[i] = OverrideDTO{Date: o.Date.String(), Type: string(o.Type)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOverride marks a date as a holiday or as a working day.
func (h *Handler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	var body CreateOverrideRequest
	if err := h.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	date, err := leave.ParseDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	o := leave.CalendarOverride{Date: date, Type: leave.OverrideType(body.Type)}
	if err := h.Store.SaveOverride(r.Context(), o); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save override", err)
		return
	}
	writeJSON(w, http.StatusCreated, OverrideDTO{Date: body.Date, Type: body.Type})
}

// ListLeaveTypes returns active, non-system leave types.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list leave types", err)
		return
	}
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = LeaveTypeDTO{
			ID:       string(lt.ID),
			Code:     lt.Code,
			Name:     lt.Name,
			Category: string(lt.CategoryCode),
			IsActive: lt.IsActive,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := ErrorDTO{Error: msg}
	if err != nil {
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}

// writeDomainError maps leave package errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case leave.IsNotFound(err) || errors.Is(err, leave.ErrEmployeeNotFound):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, leave.ErrDuplicateAccrual) || errors.Is(err, leave.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "conflict", err)
	case leave.IsClientError(err):
		writeError(w, http.StatusBadRequest, "validation failed", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}
