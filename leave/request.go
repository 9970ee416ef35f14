/*
request.go - Leave request lifecycle

PURPOSE:
  Carries a validated allocation through the approval workflow:

    Submit      validate, persist request + items as pending
    Approve     pending -> approved, debit the ledger per item
    Reject      pending -> rejected (reservation vanishes with status)
    Cancel      pending -> cancelled, or approved -> cancelled + refund

  A pending request's items are the soft reservation that GetBalance
  subtracts; no ledger row exists until approval, and cancellation of an
  approved request writes offsetting REFUND credits rather than touching
  the original debits.

SEE ALSO:
  - waterfall.go: produces the allocation persisted here
  - ledger.go: the two mutations invoked on approve/cancel
*/
package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST - One leave request with its allocation breakdown
// =============================================================================

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

// RequestItem is one persisted slice of the breakdown. Pending items are
// soft-reserved against balance but not yet in the ledger.
type RequestItem struct {
	LeaveTypeID LeaveTypeID
	Days        decimal.Decimal
	Note        string
}

// Request is a leave request and its decided or still-pending breakdown.
type Request struct {
	ID          RequestID
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Span        Span
	PeriodYear  int

	DurationDays decimal.Decimal
	Items        []RequestItem

	Status       RequestStatus
	Reason       string
	DecidedBy    string
	DecisionNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// REQUEST SERVICE
// =============================================================================

type RequestService struct {
	Engine   *ValidationEngine
	Ledger   *BalanceLedger
	Requests RequestStore

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewRequestService(engine *ValidationEngine, ledger *BalanceLedger, requests RequestStore) *RequestService {
	return &RequestService{Engine: engine, Ledger: ledger, Requests: requests, Now: time.Now}
}

func (s *RequestService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Submit validates the request and persists it as pending. The returned
// ValidationResult carries the warnings the caller should surface before
// approval.
func (s *RequestService) Submit(ctx context.Context, in ValidationInput, reason string) (*Request, *ValidationResult, error) {
	result, err := s.Engine.ValidateAndPrepare(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	items := make([]RequestItem, len(result.Items))
	for i, item := range result.Items {
		items[i] = RequestItem{LeaveTypeID: item.LeaveTypeID, Days: item.Days, Note: item.Note}
	}

	now := s.now()
	req := &Request{
		ID:           RequestID(uuid.NewString()),
		EmployeeID:   in.EmployeeID,
		LeaveTypeID:  in.LeaveTypeID,
		Span:         in.Span,
		PeriodYear:   in.Span.Start.Year,
		DurationDays: result.DurationDays,
		Items:        items,
		Status:       StatusPending,
		Reason:       reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Requests.CreateRequest(ctx, req); err != nil {
		return nil, nil, err
	}
	return req, result, nil
}

// Approve debits the ledger per item and marks the request approved.
func (s *RequestService) Approve(ctx context.Context, id RequestID, approverID string) (*Request, error) {
	req, err := s.Requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, &TransitionError{RequestID: id, From: req.Status, To: StatusApproved}
	}

	if err := s.Ledger.DebitForApproval(ctx, req.EmployeeID, req.ID, req.Items, req.PeriodYear); err != nil {
		return nil, err
	}
	if err := s.Requests.SetRequestStatus(ctx, id, StatusApproved, approverID, ""); err != nil {
		return nil, err
	}
	req.Status = StatusApproved
	req.DecidedBy = approverID
	req.UpdatedAt = s.now()
	return req, nil
}

// Reject marks a pending request rejected. No ledger write: the soft
// reservation disappears with the status change.
func (s *RequestService) Reject(ctx context.Context, id RequestID, rejecterID, note string) (*Request, error) {
	req, err := s.Requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, &TransitionError{RequestID: id, From: req.Status, To: StatusRejected}
	}
	if err := s.Requests.SetRequestStatus(ctx, id, StatusRejected, rejecterID, note); err != nil {
		return nil, err
	}
	req.Status = StatusRejected
	req.DecidedBy = rejecterID
	req.DecisionNote = note
	req.UpdatedAt = s.now()
	return req, nil
}

// Cancel withdraws a request. Cancelling an approved request refunds the
// debited days with offsetting CREDIT rows.
func (s *RequestService) Cancel(ctx context.Context, id RequestID, actorID string) (*Request, error) {
	req, err := s.Requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case StatusPending:
		// nothing in the ledger yet
	case StatusApproved:
		if err := s.Ledger.RefundForCancellation(ctx, req.EmployeeID, req.ID, req.Items, req.PeriodYear); err != nil {
			return nil, err
		}
	default:
		return nil, &TransitionError{RequestID: id, From: req.Status, To: StatusCancelled}
	}

	if err := s.Requests.SetRequestStatus(ctx, id, StatusCancelled, actorID, ""); err != nil {
		return nil, err
	}
	req.Status = StatusCancelled
	req.DecidedBy = actorID
	req.UpdatedAt = s.now()
	return req, nil
}
