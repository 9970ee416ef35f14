// Package store provides an in-memory implementation of every leave
// engine port, used by tests and local development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - implements all ports behind one mutex
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	types        map[leave.LeaveTypeID]leave.LeaveType
	policies     []leave.LeaveTypePolicy
	conversions  []leave.Conversion
	overrides    []leave.CalendarOverride
	employees    map[leave.EmployeeID]leave.Employee
	transactions []leave.Transaction
	requests     map[leave.RequestID]*leave.Request
}

func NewMemory() *Memory {
	return &Memory{
		types:     make(map[leave.LeaveTypeID]leave.LeaveType),
		employees: make(map[leave.EmployeeID]leave.Employee),
		requests:  make(map[leave.RequestID]*leave.Request),
	}
}

// =============================================================================
// CATALOG WRITES - same surface as the SQLite store
// =============================================================================

func (m *Memory) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[lt.ID] = lt
	return nil
}

func (m *Memory) SavePolicy(_ context.Context, p leave.LeaveTypePolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.policies {
		if m.policies[i].ID == p.ID {
			m.policies[i] = p
			return nil
		}
	}
	m.policies = append(m.policies, p)
	return nil
}

func (m *Memory) SaveConversion(_ context.Context, c leave.Conversion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.conversions {
		if m.conversions[i].FromLeaveTypeID == c.FromLeaveTypeID &&
			m.conversions[i].ToLeaveTypeID == c.ToLeaveTypeID &&
			m.conversions[i].Reason == c.Reason {
			m.conversions[i] = c
			return nil
		}
	}
	m.conversions = append(m.conversions, c)
	return nil
}

func (m *Memory) SaveOverride(_ context.Context, o leave.CalendarOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.overrides {
		if m.overrides[i].Date == o.Date {
			m.overrides[i] = o
			return nil
		}
	}
	m.overrides = append(m.overrides, o)
	return nil
}

func (m *Memory) SaveEmployee(_ context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

// =============================================================================
// LeaveTypeProvider
// =============================================================================

func (m *Memory) GetByID(_ context.Context, id leave.LeaveTypeID) (leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lt, ok := m.types[id]
	if !ok {
		return leave.LeaveType{}, leave.ErrUnknownLeaveType
	}
	return lt, nil
}

func (m *Memory) GetByCode(_ context.Context, code string) (leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, lt := range m.types {
		if lt.Code == code {
			return lt, nil
		}
	}
	return leave.LeaveType{}, leave.ErrUnknownLeaveType
}

func (m *Memory) ListActive(_ context.Context) ([]leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.LeaveType
	for _, lt := range m.types {
		if lt.IsActive && !lt.IsSystem {
			out = append(out, lt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// =============================================================================
// PolicyProvider / ConversionProvider / CalendarProvider
// =============================================================================

func (m *Memory) ActivePolicy(_ context.Context, leaveTypeID leave.LeaveTypeID, at leave.Date) (*leave.LeaveTypePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rows []leave.LeaveTypePolicy
	for _, p := range m.policies {
		if p.LeaveTypeID == leaveTypeID {
			rows = append(rows, p)
		}
	}
	return leave.SelectActivePolicy(rows, at), nil
}

func (m *Memory) Conversions(_ context.Context, from leave.LeaveTypeID) ([]leave.Conversion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rows []leave.Conversion
	for _, c := range m.conversions {
		if c.FromLeaveTypeID == from {
			rows = append(rows, c)
		}
	}
	return leave.OrderConversions(rows), nil
}

func (m *Memory) Overrides(_ context.Context, from, to leave.Date) ([]leave.CalendarOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.CalendarOverride
	for _, o := range m.overrides {
		if !o.Date.Before(from) && !o.Date.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

// =============================================================================
// LedgerStore - append-only
// =============================================================================

func (m *Memory) Sum(_ context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, year int, month *int, direction leave.Direction) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, tx := range m.transactions {
		if tx.EmployeeID != employeeID || tx.LeaveTypeID != leaveTypeID ||
			tx.PeriodYear != year || tx.Direction != direction {
			continue
		}
		// Annual-scope rows (nil month) always count.
		if month != nil && tx.PeriodMonth != nil && *tx.PeriodMonth != *month {
			continue
		}
		total = total.Add(tx.AmountDays)
	}
	return total, nil
}

func (m *Memory) Append(_ context.Context, txs []leave.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		if tx.SourceType == leave.SourceAccrual && m.hasAccrualLocked(tx.EmployeeID, tx.LeaveTypeID, tx.PeriodYear) {
			return leave.ErrDuplicateAccrual
		}
	}
	m.transactions = append(m.transactions, txs...)
	return nil
}

func (m *Memory) HasAccrual(_ context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, year int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasAccrualLocked(employeeID, leaveTypeID, year), nil
}

func (m *Memory) hasAccrualLocked(employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, year int) bool {
	for _, tx := range m.transactions {
		if tx.EmployeeID == employeeID && tx.LeaveTypeID == leaveTypeID &&
			tx.PeriodYear == year && tx.SourceType == leave.SourceAccrual {
			return true
		}
	}
	return false
}

func (m *Memory) Transactions(_ context.Context, employeeID leave.EmployeeID, year int) ([]leave.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.Transaction
	for _, tx := range m.transactions {
		if tx.EmployeeID == employeeID && tx.PeriodYear == year {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// PendingStore - soft reservation over pending requests
// =============================================================================

func (m *Memory) SumPendingDays(_ context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, year int, excludeRequestID *leave.RequestID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, req := range m.requests {
		if req.Status != leave.StatusPending || req.EmployeeID != employeeID || req.PeriodYear != year {
			continue
		}
		if excludeRequestID != nil && req.ID == *excludeRequestID {
			continue
		}
		for _, item := range req.Items {
			if item.LeaveTypeID == leaveTypeID {
				total = total.Add(item.Days)
			}
		}
	}
	return total, nil
}

// =============================================================================
// EmployeeStore / RequestStore
// =============================================================================

func (m *Memory) ListActiveEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.Employee
	for _, e := range m.employees {
		if e.IsActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetEmployee(_ context.Context, id leave.EmployeeID) (leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return leave.Employee{}, leave.ErrEmployeeNotFound
	}
	return e, nil
}

func (m *Memory) CreateRequest(_ context.Context, req *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *req
	clone.Items = append([]leave.RequestItem(nil), req.Items...)
	m.requests[req.ID] = &clone
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, leave.ErrRequestNotFound
	}
	clone := *req
	clone.Items = append([]leave.RequestItem(nil), req.Items...)
	return &clone, nil
}

func (m *Memory) ListPendingRequests(_ context.Context) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.Request
	for _, req := range m.requests {
		if req.Status == leave.StatusPending {
			clone := *req
			clone.Items = append([]leave.RequestItem(nil), req.Items...)
			out = append(out, clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SetRequestStatus(_ context.Context, id leave.RequestID, status leave.RequestStatus, decidedBy, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return leave.ErrRequestNotFound
	}
	req.Status = status
	req.DecidedBy = decidedBy
	req.DecisionNote = note
	return nil
}
