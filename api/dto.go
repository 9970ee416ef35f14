/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry go-playground/validator struct tags and are run
  through one shared validator instance in handlers.go. Domain rules
  (balance checks, conversion chains) stay in the leave package; the
  tags only reject structurally broken input.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/waterfall.go: ValidationResult, the engine-side response shape
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ParentalOptionsRequest carries childbirth details for PARENTAL requests.
type ParentalOptionsRequest struct {
	Gender           string `json:"gender" validate:"required,oneof=FEMALE MALE"`
	NumberOfChildren int    `json:"number_of_children" validate:"omitempty,min=1,max=10"`
	Delivery         string `json:"delivery" validate:"omitempty,oneof=NATURAL CESAREAN"`
}

// ValidateLeaveRequest is the body of POST /api/leave/validate and the
// core of POST /api/requests.
type ValidateLeaveRequest struct {
	EmployeeID   string                  `json:"employee_id" validate:"required"`
	LeaveTypeID  string                  `json:"leave_type_id" validate:"required"`
	StartDate    string                  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string                  `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartSession string                  `json:"start_session" validate:"required,oneof=AM PM"`
	EndSession   string                  `json:"end_session" validate:"required,oneof=AM PM"`
	Parental     *ParentalOptionsRequest `json:"parental,omitempty" validate:"omitempty"`
}

// SubmitLeaveRequest is the body of POST /api/requests.
type SubmitLeaveRequest struct {
	ValidateLeaveRequest
	Reason string `json:"reason" validate:"max=500"`
}

// DecisionRequest is the body of approve/reject/cancel calls.
type DecisionRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Note    string `json:"note" validate:"max=500"`
}

// YearlyAccrualRequest is the body of POST /api/admin/accruals/yearly.
type YearlyAccrualRequest struct {
	Year       int     `json:"year" validate:"required,min=2000,max=2100"`
	AnnualDays float64 `json:"annual_days" validate:"required,gt=0"`
}

// EmployeeAccrualRequest is the body of POST /api/admin/accruals/employee.
type EmployeeAccrualRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	Year       int     `json:"year" validate:"required,min=2000,max=2100"`
	AnnualDays float64 `json:"annual_days" validate:"required,gt=0"`
}

// CreateOverrideRequest is the body of POST /api/calendar/overrides.
type CreateOverrideRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Type string `json:"type" validate:"required,oneof=HOLIDAY WORKING_OVERRIDE"`
}

// CreateEmployeeRequest is the body of POST /api/employees.
type CreateEmployeeRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	HireDate string `json:"hire_date" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LeaveTypeDTO represents a leave type in API responses.
type LeaveTypeDTO struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	IsActive bool   `json:"is_active"`
}

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID           string                 `json:"id"`
	EmployeeID   string                 `json:"employee_id"`
	LeaveTypeID  string                 `json:"leave_type_id"`
	StartDate    string                 `json:"start_date"`
	EndDate      string                 `json:"end_date"`
	StartSession string                 `json:"start_session"`
	EndSession   string                 `json:"end_session"`
	DurationDays decimal.Decimal        `json:"duration_days"`
	Items        []leave.ConversionItem `json:"items"`
	Status       string                 `json:"status"`
	Reason       string                 `json:"reason,omitempty"`
	DecidedBy    string                 `json:"decided_by,omitempty"`
	DecisionNote string                 `json:"decision_note,omitempty"`
	Warnings     []leave.Warning        `json:"warnings,omitempty"`
	CreatedAt    string                 `json:"created_at"`
}

// BalanceDTO is one per-leave-type balance row.
type BalanceDTO struct {
	LeaveTypeID  string           `json:"leave_type_id"`
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	TotalCredit  decimal.Decimal  `json:"total_credit"`
	TotalDebit   decimal.Decimal  `json:"total_debit"`
	PendingDays  decimal.Decimal  `json:"pending_days"`
	Balance      decimal.Decimal  `json:"balance"`
	MonthlyLimit *decimal.Decimal `json:"monthly_limit,omitempty"`
	AnnualLimit  *decimal.Decimal `json:"annual_limit,omitempty"`
}

// BalanceSummaryDTO is the response of GET /api/employees/{id}/balance.
type BalanceSummaryDTO struct {
	EmployeeID string       `json:"employee_id"`
	Year       int          `json:"year"`
	Month      int          `json:"month"`
	Balances   []BalanceDTO `json:"balances"`
}

// TransactionDTO represents a ledger row in API responses.
type TransactionDTO struct {
	ID          string          `json:"id"`
	LeaveTypeID string          `json:"leave_type_id"`
	PeriodYear  int             `json:"period_year"`
	PeriodMonth *int            `json:"period_month,omitempty"`
	Direction   string          `json:"direction"`
	AmountDays  decimal.Decimal `json:"amount_days"`
	SourceType  string          `json:"source_type"`
	SourceID    string          `json:"source_id,omitempty"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// AccrualRunDTO is the response of POST /api/admin/accruals/yearly.
type AccrualRunDTO struct {
	Year     int `json:"year"`
	Credited int `json:"credited"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// EmployeeAccrualDTO is the response of POST /api/admin/accruals/employee.
type EmployeeAccrualDTO struct {
	EmployeeID string          `json:"employee_id"`
	Year       int             `json:"year"`
	Credited   decimal.Decimal `json:"credited"`
	Skipped    bool            `json:"skipped"`
}

// OverrideDTO represents a calendar override in API responses.
type OverrideDTO struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	HireDate string `json:"hire_date"`
	IsActive bool   `json:"is_active"`
}

// ErrorDTO is the uniform error body.
type ErrorDTO struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func (r ValidateLeaveRequest) toInput() (leave.ValidationInput, error) {
	start, err := leave.ParseDate(r.StartDate)
	if err != nil {
		return leave.ValidationInput{}, err
	}
	end, err := leave.ParseDate(r.EndDate)
	if err != nil {
		return leave.ValidationInput{}, err
	}

	in := leave.ValidationInput{
		EmployeeID:  leave.EmployeeID(r.EmployeeID),
		LeaveTypeID: leave.LeaveTypeID(r.LeaveTypeID),
		Span: leave.Span{
			Start:        start,
			End:          end,
			StartSession: leave.Session(r.StartSession),
			EndSession:   leave.Session(r.EndSession),
		},
	}
	if r.Parental != nil {
		in.Parental = &leave.ParentalOptions{
			Gender:           leave.Gender(r.Parental.Gender),
			NumberOfChildren: r.Parental.NumberOfChildren,
			Delivery:         leave.DeliveryMethod(r.Parental.Delivery),
		}
	}
	return in, nil
}

func toRequestDTO(req *leave.Request, warnings []leave.Warning) RequestDTO {
	items := make([]leave.ConversionItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = leave.ConversionItem{
			LeaveTypeID: item.LeaveTypeID,
			Days:        item.Days,
			Note:        item.Note,
		}
	}
	return RequestDTO{
		ID:           string(req.ID),
		EmployeeID:   string(req.EmployeeID),
		LeaveTypeID:  string(req.LeaveTypeID),
		StartDate:    req.Span.Start.String(),
		EndDate:      req.Span.End.String(),
		StartSession: string(req.Span.StartSession),
		EndSession:   string(req.Span.EndSession),
		DurationDays: req.DurationDays,
		Items:        items,
		Status:       string(req.Status),
		Reason:       req.Reason,
		DecidedBy:    req.DecidedBy,
		DecisionNote: req.DecisionNote,
		Warnings:     warnings,
		CreatedAt:    req.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func toBalanceDTOs(infos []leave.BalanceInfo) []BalanceDTO {
	out := make([]BalanceDTO, len(infos))
	for i, info := range infos {
		out[i] = BalanceDTO{
			LeaveTypeID:  string(info.LeaveTypeID),
			Code:         info.Code,
			Name:         info.Name,
			TotalCredit:  info.TotalCredit,
			TotalDebit:   info.TotalDebit,
			PendingDays:  info.PendingDays,
			Balance:      info.Balance,
			MonthlyLimit: info.MonthlyLimit,
			AnnualLimit:  info.AnnualLimit,
		}
	}
	return out
}
