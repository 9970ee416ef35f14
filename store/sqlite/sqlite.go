/*
Package sqlite provides a SQLite-backed implementation of the leave
engine ports.

PURPOSE:
  Implements every interface in leave/ports.go - leave type, policy,
  conversion and calendar lookups, the append-only transaction ledger,
  the pending-item reservation sum, and request persistence - plus the
  catalog writes the HTTP layer and the seed factory need.

APPEND-ONLY ENFORCEMENT:
  No UPDATE and no DELETE statement ever touches
  leave_balance_transactions. Corrections are offsetting rows.

IDEMPOTENT ACCRUAL:
  A partial unique index on (employee_id, leave_type_id, period_year)
  WHERE source_type = 'ACCRUAL' guarantees at most one accrual credit
  per employee/type/year even when two initializer runs race past the
  existence check.

AMOUNTS:
  Day amounts are stored as TEXT and summed with decimal arithmetic in
  Go - never as REAL, so half-day values stay exact across thousands of
  rows.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/leave.db")   // ":memory:" for tests
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  ledger := leave.NewBalanceLedger(st, st, st, st)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/ports.go: the contracts implemented here
  - leave/store/memory.go: the in-memory twin used by engine tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// Store implements all leave engine ports on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category_code TEXT NOT NULL,
		is_system BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS leave_type_policies (
		id TEXT PRIMARY KEY,
		leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		max_per_request_days TEXT,
		min_duration_days TEXT,
		allow_negative BOOLEAN NOT NULL DEFAULT FALSE,
		max_negative_limit_days TEXT,
		annual_limit_days TEXT,
		monthly_limit_days TEXT,
		auto_calculate_end_date BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_policies_type_from
		ON leave_type_policies(leave_type_id, effective_from);

	CREATE TABLE IF NOT EXISTS leave_type_conversions (
		from_leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
		to_leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
		priority INTEGER NOT NULL,
		reason TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (from_leave_type_id, to_leave_type_id, reason)
	);

	-- Append-only ledger. No UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS leave_balance_transactions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
		period_year INTEGER NOT NULL,
		period_month INTEGER,
		direction TEXT NOT NULL CHECK (direction IN ('CREDIT','DEBIT')),
		amount_days TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_id TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tx_balance_key
		ON leave_balance_transactions(employee_id, leave_type_id, period_year, direction);

	-- At most one ACCRUAL credit per employee/type/year. Closes the
	-- check-then-insert race in the balance initializer.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_unique_accrual
		ON leave_balance_transactions(employee_id, leave_type_id, period_year)
		WHERE source_type = 'ACCRUAL';

	CREATE TABLE IF NOT EXISTS calendar_overrides (
		date TEXT PRIMARY KEY,
		type TEXT NOT NULL CHECK (type IN ('HOLIDAY','WORKING_OVERRIDE'))
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		hire_date TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_session TEXT NOT NULL,
		end_session TEXT NOT NULL,
		period_year INTEGER NOT NULL,
		duration_days TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT,
		decided_by TEXT,
		decision_note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_employee_year
		ON leave_requests(employee_id, period_year);

	CREATE TABLE IF NOT EXISTS leave_request_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
		amount_days TEXT NOT NULL,
		note TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_request
		ON leave_request_items(request_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = "2006-01-02T15:04:05.000Z"

// =============================================================================
// LeaveTypeProvider
// =============================================================================

func (s *Store) GetByID(ctx context.Context, id leave.LeaveTypeID) (leave.LeaveType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, category_code, is_system, is_active
		 FROM leave_types WHERE id = ?`, string(id))
	return scanLeaveType(row)
}

func (s *Store) GetByCode(ctx context.Context, code string) (leave.LeaveType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, category_code, is_system, is_active
		 FROM leave_types WHERE code = ?`, code)
	return scanLeaveType(row)
}

func scanLeaveType(row *sql.Row) (leave.LeaveType, error) {
	var lt leave.LeaveType
	var id, category string
	err := row.Scan(&id, &lt.Code, &lt.Name, &category, &lt.IsSystem, &lt.IsActive)
	if err == sql.ErrNoRows {
		return leave.LeaveType{}, leave.ErrUnknownLeaveType
	}
	if err != nil {
		return leave.LeaveType{}, err
	}
	lt.ID = leave.LeaveTypeID(id)
	lt.CategoryCode = leave.Category(category)
	return lt, nil
}

func (s *Store) ListActive(ctx context.Context) ([]leave.LeaveType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, category_code, is_system, is_active
		 FROM leave_types WHERE is_active AND NOT is_system ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.LeaveType
	for rows.Next() {
		var lt leave.LeaveType
		var id, category string
		if err := rows.Scan(&id, &lt.Code, &lt.Name, &category, &lt.IsSystem, &lt.IsActive); err != nil {
			return nil, err
		}
		lt.ID = leave.LeaveTypeID(id)
		lt.CategoryCode = leave.Category(category)
		out = append(out, lt)
	}
	return out, rows.Err()
}

// SaveLeaveType inserts or updates a catalog entry.
func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leave_types (id, code, name, category_code, is_system, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, is_active = excluded.is_active`,
		string(lt.ID), lt.Code, lt.Name, string(lt.CategoryCode), lt.IsSystem, lt.IsActive)
	return err
}

// =============================================================================
// PolicyProvider
// =============================================================================

func (s *Store) ActivePolicy(ctx context.Context, leaveTypeID leave.LeaveTypeID, at leave.Date) (*leave.LeaveTypePolicy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, leave_type_id, effective_from, effective_to,
		        max_per_request_days, min_duration_days, allow_negative,
		        max_negative_limit_days, annual_limit_days, monthly_limit_days,
		        auto_calculate_end_date
		 FROM leave_type_policies WHERE leave_type_id = ?`, string(leaveTypeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []leave.LeaveTypePolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leave.SelectActivePolicy(candidates, at), nil
}

func scanPolicy(rows *sql.Rows) (leave.LeaveTypePolicy, error) {
	var p leave.LeaveTypePolicy
	var typeID, from string
	var to, maxReq, minDur, maxNeg, annual, monthly sql.NullString
	if err := rows.Scan(&p.ID, &typeID, &from, &to, &maxReq, &minDur,
		&p.AllowNegative, &maxNeg, &annual, &monthly, &p.AutoCalculateEndDate); err != nil {
		return p, err
	}
	p.LeaveTypeID = leave.LeaveTypeID(typeID)

	var err error
	if p.EffectiveFrom, err = leave.ParseDate(from); err != nil {
		return p, err
	}
	if to.Valid {
		d, err := leave.ParseDate(to.String)
		if err != nil {
			return p, err
		}
		p.EffectiveTo = &d
	}
	if p.MaxPerRequestDays, err = nullDecimal(maxReq); err != nil {
		return p, err
	}
	if p.MinDurationDays, err = nullDecimal(minDur); err != nil {
		return p, err
	}
	if p.MaxNegativeLimitDays, err = nullDecimal(maxNeg); err != nil {
		return p, err
	}
	if p.AnnualLimitDays, err = nullDecimal(annual); err != nil {
		return p, err
	}
	if p.MonthlyLimitDays, err = nullDecimal(monthly); err != nil {
		return p, err
	}
	return p, nil
}

// SavePolicy inserts or replaces a policy row.
func (s *Store) SavePolicy(ctx context.Context, p leave.LeaveTypePolicy) error {
	var to any
	if p.EffectiveTo != nil {
		to = p.EffectiveTo.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO leave_type_policies
		 (id, leave_type_id, effective_from, effective_to, max_per_request_days,
		  min_duration_days, allow_negative, max_negative_limit_days,
		  annual_limit_days, monthly_limit_days, auto_calculate_end_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.LeaveTypeID), p.EffectiveFrom.String(), to,
		decimalOrNil(p.MaxPerRequestDays), decimalOrNil(p.MinDurationDays),
		p.AllowNegative, decimalOrNil(p.MaxNegativeLimitDays),
		decimalOrNil(p.AnnualLimitDays), decimalOrNil(p.MonthlyLimitDays),
		p.AutoCalculateEndDate)
	return err
}

// =============================================================================
// ConversionProvider
// =============================================================================

func (s *Store) Conversions(ctx context.Context, from leave.LeaveTypeID) ([]leave.Conversion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_leave_type_id, to_leave_type_id, priority, reason, is_active
		 FROM leave_type_conversions WHERE from_leave_type_id = ?`, string(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Conversion
	for rows.Next() {
		var c leave.Conversion
		var fromID, toID, reason string
		if err := rows.Scan(&fromID, &toID, &c.Priority, &reason, &c.IsActive); err != nil {
			return nil, err
		}
		c.FromLeaveTypeID = leave.LeaveTypeID(fromID)
		c.ToLeaveTypeID = leave.LeaveTypeID(toID)
		c.Reason = leave.ConversionReason(reason)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leave.OrderConversions(out), nil
}

// SaveConversion inserts or replaces a conversion rule.
func (s *Store) SaveConversion(ctx context.Context, c leave.Conversion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO leave_type_conversions
		 (from_leave_type_id, to_leave_type_id, priority, reason, is_active)
		 VALUES (?, ?, ?, ?, ?)`,
		string(c.FromLeaveTypeID), string(c.ToLeaveTypeID), c.Priority, string(c.Reason), c.IsActive)
	return err
}

// =============================================================================
// CalendarProvider
// =============================================================================

func (s *Store) Overrides(ctx context.Context, from, to leave.Date) ([]leave.CalendarOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, type FROM calendar_overrides WHERE date >= ? AND date <= ? ORDER BY date`,
		from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.CalendarOverride
	for rows.Next() {
		var dateStr, typ string
		if err := rows.Scan(&dateStr, &typ); err != nil {
			return nil, err
		}
		d, err := leave.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		out = append(out, leave.CalendarOverride{Date: d, Type: leave.OverrideType(typ)})
	}
	return out, rows.Err()
}

// SaveOverride inserts or replaces a calendar override for its date.
func (s *Store) SaveOverride(ctx context.Context, o leave.CalendarOverride) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO calendar_overrides (date, type) VALUES (?, ?)`,
		o.Date.String(), string(o.Type))
	return err
}

// =============================================================================
// LedgerStore - append-only
// =============================================================================

func (s *Store) Sum(ctx context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, year int, month *int, direction leave.Direction) (decimal.Decimal, error) {
	query := `SELECT amount_days FROM leave_balance_transactions
	          WHERE employee_id = ? AND leave_type_id = ? AND period_year = ? AND direction = ?`
	args := []any{string(employeeID), string(leaveTypeID), year, string(direction)}
	if month != nil {
		// Annual-scope rows (NULL period_month) always count.
		query += ` AND (period_month IS NULL OR period_month = ?)`
		args = append(args, *month)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()
	return sumAmountRows(rows)
}

func (s *Store) Append(ctx context.Context, txs []leave.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range txs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO leave_balance_transactions
			 (id, employee_id, leave_type_id, period_year, period_month,
			  direction, amount_days, source_type, source_id, note, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(t.ID), string(t.EmployeeID), string(t.LeaveTypeID),
			t.PeriodYear, intOrNil(t.PeriodMonth), string(t.Direction),
			t.AmountDays.String(), string(t.SourceType), t.SourceID, t.Note,
			t.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			if t.SourceType == leave.SourceAccrual && isUniqueViolation(err) {
				return leave.ErrDuplicateAccrual
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) HasAccrual(ctx context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, year int) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM leave_balance_transactions
		 WHERE employee_id = ? AND leave_type_id = ? AND period_year = ? AND source_type = ?
		 LIMIT 1`,
		string(employeeID), string(leaveTypeID), year, string(leave.SourceAccrual)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Transactions(ctx context.Context, employeeID leave.EmployeeID, year int) ([]leave.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee_id, leave_type_id, period_year, period_month,
		        direction, amount_days, source_type, source_id, note, created_at
		 FROM leave_balance_transactions
		 WHERE employee_id = ? AND period_year = ?
		 ORDER BY created_at, id`,
		string(employeeID), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(rows *sql.Rows) (leave.Transaction, error) {
	var t leave.Transaction
	var id, empID, typeID, direction, amount, source, createdAt string
	var month sql.NullInt64
	var sourceID, note sql.NullString
	if err := rows.Scan(&id, &empID, &typeID, &t.PeriodYear, &month,
		&direction, &amount, &source, &sourceID, &note, &createdAt); err != nil {
		return t, err
	}
	t.ID = leave.TransactionID(id)
	t.EmployeeID = leave.EmployeeID(empID)
	t.LeaveTypeID = leave.LeaveTypeID(typeID)
	t.Direction = leave.Direction(direction)
	t.SourceType = leave.SourceType(source)
	t.SourceID = sourceID.String
	t.Note = note.String
	if month.Valid {
		m := int(month.Int64)
		t.PeriodMonth = &m
	}
	var err error
	if t.AmountDays, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return t, nil
}

// =============================================================================
// PendingStore - soft reservation over pending request items
// =============================================================================

func (s *Store) SumPendingDays(ctx context.Context, employeeID leave.EmployeeID, leaveTypeID leave.LeaveTypeID, year int, excludeRequestID *leave.RequestID) (decimal.Decimal, error) {
	query := `SELECT i.amount_days
	          FROM leave_request_items i
	          JOIN leave_requests r ON r.id = i.request_id
	          WHERE r.status = 'pending' AND r.employee_id = ?
	            AND i.leave_type_id = ? AND r.period_year = ?`
	args := []any{string(employeeID), string(leaveTypeID), year}
	if excludeRequestID != nil {
		query += ` AND r.id != ?`
		args = append(args, string(*excludeRequestID))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()
	return sumAmountRows(rows)
}

// =============================================================================
// EmployeeStore
// =============================================================================

func (s *Store) ListActiveEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, hire_date, is_active FROM employees WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (leave.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, hire_date, is_active FROM employees WHERE id = ?`, string(id))
	if err != nil {
		return leave.Employee{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return leave.Employee{}, err
		}
		return leave.Employee{}, leave.ErrEmployeeNotFound
	}
	return scanEmployee(rows)
}

func scanEmployee(rows *sql.Rows) (leave.Employee, error) {
	var e leave.Employee
	var id, hireDate string
	var email sql.NullString
	if err := rows.Scan(&id, &e.Name, &email, &hireDate, &e.IsActive); err != nil {
		return e, err
	}
	e.ID = leave.EmployeeID(id)
	e.Email = email.String
	var err error
	if e.HireDate, err = leave.ParseDate(hireDate); err != nil {
		return e, err
	}
	return e, nil
}

// SaveEmployee inserts or updates an employee record.
func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO employees (id, name, email, hire_date, is_active)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name,
		   email = excluded.email, is_active = excluded.is_active`,
		string(e.ID), e.Name, e.Email, e.HireDate.String(), e.IsActive)
	return err
}

// =============================================================================
// RequestStore
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, req *leave.Request) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO leave_requests
		 (id, employee_id, leave_type_id, start_date, end_date, start_session,
		  end_session, period_year, duration_days, status, reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(req.ID), string(req.EmployeeID), string(req.LeaveTypeID),
		req.Span.Start.String(), req.Span.End.String(),
		string(req.Span.StartSession), string(req.Span.EndSession),
		req.PeriodYear, req.DurationDays.String(), string(req.Status), req.Reason,
		req.CreatedAt.UTC().Format(timeLayout),
		req.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return err
	}

	for _, item := range req.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO leave_request_items (request_id, leave_type_id, amount_days, note)
			 VALUES (?, ?, ?, ?)`,
			string(req.ID), string(item.LeaveTypeID), item.Days.String(), item.Note)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	req, err := s.getRequestRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Store) getRequestRow(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	rows, err := s.db.QueryContext(ctx, requestSelect+` WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, leave.ErrRequestNotFound
	}
	return scanRequest(rows)
}

func (s *Store) ListPendingRequests(ctx context.Context) ([]leave.Request, error) {
	rows, err := s.db.QueryContext(ctx, requestSelect+` WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}

	var pending []*leave.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pending = append(pending, req)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]leave.Request, 0, len(pending))
	for _, req := range pending {
		if err := s.loadItems(ctx, req); err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, nil
}

func (s *Store) SetRequestStatus(ctx context.Context, id leave.RequestID, status leave.RequestStatus, decidedBy, note string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leave_requests
		 SET status = ?, decided_by = ?, decision_note = ?, updated_at = ?
		 WHERE id = ?`,
		string(status), decidedBy, note, time.Now().UTC().Format(timeLayout), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return leave.ErrRequestNotFound
	}
	return nil
}

const requestSelect = `SELECT id, employee_id, leave_type_id, start_date, end_date,
       start_session, end_session, period_year, duration_days, status,
       reason, decided_by, decision_note, created_at, updated_at
FROM leave_requests`

func scanRequest(rows *sql.Rows) (*leave.Request, error) {
	var req leave.Request
	var id, empID, typeID, start, end, startSess, endSess, duration, status, createdAt, updatedAt string
	var reason, decidedBy, decisionNote sql.NullString
	if err := rows.Scan(&id, &empID, &typeID, &start, &end, &startSess, &endSess,
		&req.PeriodYear, &duration, &status, &reason, &decidedBy, &decisionNote,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	req.ID = leave.RequestID(id)
	req.EmployeeID = leave.EmployeeID(empID)
	req.LeaveTypeID = leave.LeaveTypeID(typeID)
	req.Status = leave.RequestStatus(status)
	req.Reason = reason.String
	req.DecidedBy = decidedBy.String
	req.DecisionNote = decisionNote.String

	var err error
	if req.Span.Start, err = leave.ParseDate(start); err != nil {
		return nil, err
	}
	if req.Span.End, err = leave.ParseDate(end); err != nil {
		return nil, err
	}
	req.Span.StartSession = leave.Session(startSess)
	req.Span.EndSession = leave.Session(endSess)
	if req.DurationDays, err = decimal.NewFromString(duration); err != nil {
		return nil, fmt.Errorf("corrupt duration %q: %w", duration, err)
	}
	req.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	req.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &req, nil
}

func (s *Store) loadItems(ctx context.Context, req *leave.Request) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT leave_type_id, amount_days, note FROM leave_request_items
		 WHERE request_id = ? ORDER BY id`,
		string(req.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var typeID, amount string
		var note sql.NullString
		if err := rows.Scan(&typeID, &amount, &note); err != nil {
			return err
		}
		days, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		req.Items = append(req.Items, leave.RequestItem{
			LeaveTypeID: leave.LeaveTypeID(typeID),
			Days:        days,
			Note:        note.String,
		})
	}
	return rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func sumAmountRows(rows *sql.Rows) (decimal.Decimal, error) {
	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

func nullDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, fmt.Errorf("corrupt decimal %q: %w", v.String, err)
	}
	return &d, nil
}

func decimalOrNil(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// isUniqueViolation matches on the error text so this package does not
// depend on the driver's error type.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
