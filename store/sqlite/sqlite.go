/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (DirectoryStore, RevenueStore,
  BonusStore, AuditStore) using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  branches, employees:       Directory the sweep iterates
  revenue_entries:           One row per branch-day (UNIQUE branch_id+date)
  revenue_contributions:     Per-employee share of an entry
  weekly_bonuses:            One row per bucket (UNIQUE branch+year+month+week)
  bonus_lines:               Per-employee lines, regenerated each sync
  bonus_audit_log:           Append-only trail; no UPDATE or DELETE ever

ATOMICITY:
  - SaveEntry writes entry + contributions in one SQL transaction.
  - UpsertPending runs select-check-rewrite in one SQL transaction: the
    unique bucket index makes two concurrent syncs converge to a single
    record, and the delete+insert of lines is invisible to readers until
    commit.
  - Transition is a single UPDATE ... WHERE status = ? compare-and-set.

CONCURRENCY:
  Uses sync.RWMutex on top of WAL mode, mirroring SQLite's single-writer
  model. With PostgreSQL, database-level concurrency control would handle
  this instead.

USAGE:
  store, err := sqlite.New("./data/bonus.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - bonus/store.go: Interface definitions and contracts
  - bonus/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/bonus-engine/bonus"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Directory
	CREATE TABLE IF NOT EXISTS branches (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_branch
		ON employees(branch_id, active);

	-- Daily revenue (written once by the entry workflow, read-only after)
	CREATE TABLE IF NOT EXISTS revenue_entries (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		date TEXT NOT NULL,
		cash TEXT NOT NULL,
		network TEXT NOT NULL,
		total TEXT NOT NULL,
		balance TEXT NOT NULL,
		matched INTEGER NOT NULL,
		mismatch_reason TEXT,
		created_at TEXT NOT NULL
	);

	-- One entry per branch-day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_branch_day
		ON revenue_entries(branch_id, date);

	CREATE TABLE IF NOT EXISTS revenue_contributions (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		cash TEXT NOT NULL,
		network TEXT NOT NULL,
		total TEXT NOT NULL
	);

	-- Hot path: bucket aggregation
	CREATE INDEX IF NOT EXISTS idx_contributions_branch_date
		ON revenue_contributions(branch_id, date);
	CREATE INDEX IF NOT EXISTS idx_contributions_entry
		ON revenue_contributions(entry_id);

	-- Weekly bonuses (the single shared mutable resource)
	CREATE TABLE IF NOT EXISTS weekly_bonuses (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		week INTEGER NOT NULL,
		total_amount TEXT NOT NULL,
		employee_count INTEGER NOT NULL,
		eligible_count INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		requested_by TEXT,
		requested_at TEXT,
		approved_by TEXT,
		approved_at TEXT,
		rejected_by TEXT,
		rejected_at TEXT,
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: concurrent syncs for the same bucket must converge to one row
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bonuses_bucket
		ON weekly_bonuses(branch_id, year, month, week);
	CREATE INDEX IF NOT EXISTS idx_bonuses_status
		ON weekly_bonuses(status);

	CREATE TABLE IF NOT EXISTS bonus_lines (
		id TEXT PRIMARY KEY,
		bonus_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		employee_code TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		weekly_revenue TEXT NOT NULL,
		tier TEXT NOT NULL,
		amount TEXT NOT NULL,
		eligible INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lines_bonus
		ON bonus_lines(bonus_id);

	-- Audit trail (append-only; no UPDATE or DELETE statements exist)
	CREATE TABLE IF NOT EXISTS bonus_audit_log (
		id TEXT PRIMARY KEY,
		bonus_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		detail_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_bonus
		ON bonus_audit_log(bonus_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DIRECTORY STORE (bonus.DirectoryStore interface)
// =============================================================================

func (s *Store) SaveBranch(ctx context.Context, b bonus.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, code, name, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET code = excluded.code, name = excluded.name, active = excluded.active
	`, b.ID, b.Code, b.Name, boolInt(b.Active), formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save branch: %w", err)
	}
	return nil
}

func (s *Store) GetBranch(ctx context.Context, id bonus.BranchID) (*bonus.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, code, name, active, created_at FROM branches WHERE id = ?", id)

	var b bonus.Branch
	var active int
	var createdAt string
	if err := row.Scan(&b.ID, &b.Code, &b.Name, &active, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bonus.ErrBranchNotFound
		}
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	b.Active = active != 0
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}

func (s *Store) ListActiveBranches(ctx context.Context) ([]bonus.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, code, name, active, created_at FROM branches WHERE active = 1 ORDER BY code ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	var out []bonus.Branch
	for rows.Next() {
		var b bonus.Branch
		var active int
		var createdAt string
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &active, &createdAt); err != nil {
			return nil, err
		}
		b.Active = active != 0
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) SaveEmployee(ctx context.Context, e bonus.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, branch_id, code, name, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET branch_id = excluded.branch_id, code = excluded.code,
			name = excluded.name, active = excluded.active
	`, e.ID, e.BranchID, e.Code, e.Name, boolInt(e.Active), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) ListActiveEmployees(ctx context.Context, branchID bonus.BranchID) ([]bonus.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, code, name, active, created_at
		FROM employees
		WHERE branch_id = ? AND active = 1
		ORDER BY code ASC
	`, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []bonus.Employee
	for rows.Next() {
		var e bonus.Employee
		var active int
		var createdAt string
		if err := rows.Scan(&e.ID, &e.BranchID, &e.Code, &e.Name, &active, &createdAt); err != nil {
			return nil, err
		}
		e.Active = active != 0
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// REVENUE STORE (bonus.RevenueStore interface)
// =============================================================================

// SaveEntry persists an entry and its contributions in one SQL transaction.
func (s *Store) SaveEntry(ctx context.Context, entry bonus.DailyRevenueEntry, contribs []bonus.EmployeeRevenueContribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO revenue_entries
		(id, branch_id, date, cash, network, total, balance, matched, mismatch_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.BranchID,
		formatDay(entry.Date),
		entry.Cash.String(),
		entry.Network.String(),
		entry.Total.String(),
		entry.Balance.String(),
		boolInt(entry.Matched),
		nullString(entry.MismatchReason),
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return bonus.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	for _, c := range contribs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO revenue_contributions
			(id, entry_id, branch_id, employee_id, date, cash, network, total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			c.ID, c.EntryID, c.BranchID, c.EmployeeID, formatDay(c.Date),
			c.Cash.String(), c.Network.String(), c.Total.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert contribution: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetEntry(ctx context.Context, id bonus.EntryID) (*bonus.DailyRevenueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, branch_id, date, cash, network, total, balance, matched, mismatch_reason, created_at
		FROM revenue_entries WHERE id = ?
	`, id)

	var e bonus.DailyRevenueEntry
	var date, cash, network, total, balance, createdAt string
	var matched int
	var reason sql.NullString
	err := row.Scan(&e.ID, &e.BranchID, &date, &cash, &network, &total, &balance, &matched, &reason, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bonus.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	e.Date = parseTime(date)
	e.Cash = parseDecimal(cash)
	e.Network = parseDecimal(network)
	e.Total = parseDecimal(total)
	e.Balance = parseDecimal(balance)
	e.Matched = matched != 0
	e.MismatchReason = reason.String
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

func (s *Store) ListContributions(ctx context.Context, branchID bonus.BranchID, from, to time.Time) ([]bonus.EmployeeRevenueContribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry_id, branch_id, employee_id, date, cash, network, total
		FROM revenue_contributions
		WHERE branch_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, employee_id ASC
	`, branchID, formatDay(from), formatDay(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	var out []bonus.EmployeeRevenueContribution
	for rows.Next() {
		var c bonus.EmployeeRevenueContribution
		var date, cash, network, total string
		if err := rows.Scan(&c.ID, &c.EntryID, &c.BranchID, &c.EmployeeID, &date, &cash, &network, &total); err != nil {
			return nil, err
		}
		c.Date = parseTime(date)
		c.Cash = parseDecimal(cash)
		c.Network = parseDecimal(network)
		c.Total = parseDecimal(total)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// BONUS STORE (bonus.BonusStore interface)
// =============================================================================

// UpsertPending creates or rewrites the bucket's record while pending.
// The whole select-check-rewrite runs in one SQL transaction; the unique
// bucket index makes two racing syncs converge to a single row.
func (s *Store) UpsertPending(ctx context.Context, record bonus.WeeklyBonusRecord, lines []bonus.EmployeeBonusLine) (*bonus.WeeklyBonusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID bonus.BonusID
	var existingStatus bonus.BonusStatus
	var existingCreated string
	row := tx.QueryRowContext(ctx, `
		SELECT id, status, created_at FROM weekly_bonuses
		WHERE branch_id = ? AND year = ? AND month = ? AND week = ?
	`, record.Bucket.BranchID, record.Bucket.Year, int(record.Bucket.Month), record.Bucket.Week)

	err = row.Scan(&existingID, &existingStatus, &existingCreated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO weekly_bonuses
			(id, branch_id, year, month, week, total_amount, employee_count, eligible_count,
			 status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			record.ID, record.Bucket.BranchID, record.Bucket.Year, int(record.Bucket.Month), record.Bucket.Week,
			record.TotalAmount.String(), record.EmployeeCount, record.EligibleCount,
			string(bonus.StatusPending), formatTime(record.CreatedAt), formatTime(record.UpdatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert bonus record: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up bonus record: %w", err)
	default:
		if existingStatus != bonus.StatusPending {
			return nil, &bonus.FrozenError{BonusID: existingID, Status: existingStatus}
		}
		// Converge onto the existing row: identity and creation time survive.
		record.ID = existingID
		record.CreatedAt = parseTime(existingCreated)

		_, err = tx.ExecContext(ctx, `
			UPDATE weekly_bonuses
			SET total_amount = ?, employee_count = ?, eligible_count = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'
		`,
			record.TotalAmount.String(), record.EmployeeCount, record.EligibleCount,
			formatTime(record.UpdatedAt), record.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update bonus record: %w", err)
		}
	}

	// Atomic replace of the line set: invisible to readers until commit.
	if _, err := tx.ExecContext(ctx, "DELETE FROM bonus_lines WHERE bonus_id = ?", record.ID); err != nil {
		return nil, fmt.Errorf("failed to clear bonus lines: %w", err)
	}
	for _, l := range lines {
		lineID := fmt.Sprintf("%s/%s", record.ID, l.EmployeeID)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bonus_lines
			(id, bonus_id, employee_id, employee_code, employee_name, weekly_revenue, tier, amount, eligible)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			lineID, record.ID, l.EmployeeID, l.EmployeeCode, l.EmployeeName,
			l.WeeklyRevenue.String(), string(l.Tier), l.Amount.String(), boolInt(l.Eligible),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert bonus line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bonus upsert: %w", err)
	}

	saved := record
	return &saved, nil
}

func (s *Store) GetBonus(ctx context.Context, id bonus.BonusID) (*bonus.WeeklyBonusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBonusWhere(ctx, "id = ?", id)
}

func (s *Store) GetBonusByBucket(ctx context.Context, bucket bonus.Bucket) (*bonus.WeeklyBonusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBonusWhere(ctx, "branch_id = ? AND year = ? AND month = ? AND week = ?",
		bucket.BranchID, bucket.Year, int(bucket.Month), bucket.Week)
}

const bonusColumns = `id, branch_id, year, month, week, total_amount, employee_count, eligible_count,
	status, requested_by, requested_at, approved_by, approved_at, rejected_by, rejected_at,
	rejection_reason, created_at, updated_at`

func (s *Store) getBonusWhere(ctx context.Context, where string, args ...any) (*bonus.WeeklyBonusRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+bonusColumns+" FROM weekly_bonuses WHERE "+where, args...)

	r, err := scanBonus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bonus.ErrBonusNotFound
		}
		return nil, fmt.Errorf("failed to get bonus record: %w", err)
	}
	return r, nil
}

func (s *Store) ListLines(ctx context.Context, id bonus.BonusID) ([]bonus.EmployeeBonusLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bonus_id, employee_id, employee_code, employee_name, weekly_revenue, tier, amount, eligible
		FROM bonus_lines
		WHERE bonus_id = ?
		ORDER BY employee_code ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query bonus lines: %w", err)
	}
	defer rows.Close()

	var out []bonus.EmployeeBonusLine
	for rows.Next() {
		var l bonus.EmployeeBonusLine
		var revenue, tier, amount string
		var eligible int
		if err := rows.Scan(&l.ID, &l.BonusID, &l.EmployeeID, &l.EmployeeCode, &l.EmployeeName,
			&revenue, &tier, &amount, &eligible); err != nil {
			return nil, err
		}
		l.WeeklyRevenue = parseDecimal(revenue)
		l.Tier = bonus.Tier(tier)
		l.Amount = parseDecimal(amount)
		l.Eligible = eligible != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

// Transition applies a compare-and-set status change. Zero rows affected
// means either the id is unknown or the status already moved; the follow-up
// read distinguishes the two.
func (s *Store) Transition(ctx context.Context, id bonus.BonusID, apply bonus.StatusChange) (*bonus.WeeklyBonusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := formatTime(apply.At)
	var res sql.Result
	var err error

	switch apply.To {
	case bonus.StatusRequested:
		res, err = s.db.ExecContext(ctx, `
			UPDATE weekly_bonuses
			SET status = ?, requested_by = ?, requested_at = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(apply.To), apply.Actor, at, at, id, string(apply.From))
	case bonus.StatusApproved:
		res, err = s.db.ExecContext(ctx, `
			UPDATE weekly_bonuses
			SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(apply.To), apply.Actor, at, at, id, string(apply.From))
	case bonus.StatusRejected:
		res, err = s.db.ExecContext(ctx, `
			UPDATE weekly_bonuses
			SET status = ?, rejected_by = ?, rejected_at = ?, rejection_reason = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(apply.To), apply.Actor, at, apply.Reason, at, id, string(apply.From))
	default:
		return nil, &bonus.TransitionError{BonusID: id, From: apply.From, To: apply.To}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply transition: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		current, getErr := s.getBonusWhere(ctx, "id = ?", id)
		if getErr != nil {
			return nil, getErr // ErrBonusNotFound for unknown ids
		}
		return nil, &bonus.TransitionError{BonusID: id, From: current.Status, To: apply.To}
	}

	return s.getBonusWhere(ctx, "id = ?", id)
}

func (s *Store) ListBonuses(ctx context.Context, filter bonus.HistoryFilter) ([]bonus.WeeklyBonusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	var args []any
	if filter.BranchID != "" {
		where = append(where, "branch_id = ?")
		args = append(args, filter.BranchID)
	}
	if filter.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, filter.Year)
	}
	if filter.Month != 0 {
		where = append(where, "month = ?")
		args = append(args, int(filter.Month))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + bonusColumns + " FROM weekly_bonuses WHERE " + strings.Join(where, " AND ") +
		" ORDER BY year DESC, month DESC, week DESC, branch_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bonus history: %w", err)
	}
	defer rows.Close()

	var out []bonus.WeeklyBonusRecord
	for rows.Next() {
		r, err := scanBonus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) GetStatistics(ctx context.Context, branchID bonus.BranchID) (*bonus.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := ""
	var args []any
	if branchID != "" {
		where = " WHERE branch_id = ?"
		args = append(args, branchID)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, total_amount, employee_count FROM weekly_bonuses"+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	// Totals are summed in decimal, not SQL, to keep float64 out of money.
	stats := &bonus.Statistics{}
	approved, rejected, approvedEmployees := 0, 0, 0
	for rows.Next() {
		var status, total string
		var employees int
		if err := rows.Scan(&status, &total, &employees); err != nil {
			return nil, err
		}
		stats.TotalRecords++
		switch bonus.BonusStatus(status) {
		case bonus.StatusApproved:
			approved++
			approvedEmployees += employees
			stats.TotalPaid = stats.TotalPaid.Add(parseDecimal(total))
		case bonus.StatusRejected:
			rejected++
		case bonus.StatusPending:
			stats.PendingCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if approvedEmployees > 0 {
		stats.AveragePerEmployee = stats.TotalPaid.Div(decimal.NewFromInt(int64(approvedEmployees))).Round(2)
	}
	if approved+rejected > 0 {
		stats.ApprovalRate = decimal.NewFromInt(int64(approved)).
			Div(decimal.NewFromInt(int64(approved + rejected))).Round(4)
	}
	return stats, nil
}

// =============================================================================
// AUDIT STORE (bonus.AuditStore interface)
// =============================================================================

// Append adds an audit entry. This is the only write path; there is no
// UPDATE or DELETE on bonus_audit_log anywhere in this package.
func (s *Store) Append(ctx context.Context, entry bonus.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailJSON, _ := json.Marshal(entry.Detail)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bonus_audit_log (id, bonus_id, action, actor_id, detail_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.BonusID, string(entry.Action), entry.ActorID, string(detailJSON), formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// List returns the audit trail for a bonus record, oldest first.
func (s *Store) List(ctx context.Context, bonusID bonus.BonusID) ([]bonus.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bonus_id, action, actor_id, detail_json, created_at
		FROM bonus_audit_log
		WHERE bonus_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, bonusID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []bonus.AuditEntry
	for rows.Next() {
		var e bonus.AuditEntry
		var action, detail, createdAt string
		if err := rows.Scan(&e.ID, &e.BonusID, &action, &e.ActorID, &detail, &createdAt); err != nil {
			return nil, err
		}
		e.Action = bonus.AuditAction(action)
		e.CreatedAt = parseTime(createdAt)
		if detail != "" && detail != "null" {
			_ = json.Unmarshal([]byte(detail), &e.Detail)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBonus(row rowScanner) (*bonus.WeeklyBonusRecord, error) {
	var r bonus.WeeklyBonusRecord
	var month, week int
	var total, createdAt, updatedAt string
	var requestedBy, requestedAt, approvedBy, approvedAt, rejectedBy, rejectedAt, reason sql.NullString

	err := row.Scan(&r.ID, &r.Bucket.BranchID, &r.Bucket.Year, &month, &week,
		&total, &r.EmployeeCount, &r.EligibleCount, &r.Status,
		&requestedBy, &requestedAt, &approvedBy, &approvedAt, &rejectedBy, &rejectedAt,
		&reason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.Bucket.Month = time.Month(month)
	r.Bucket.Week = week
	r.TotalAmount = parseDecimal(total)
	r.RequestedBy = requestedBy.String
	r.RequestedAt = nullTime(requestedAt)
	r.ApprovedBy = approvedBy.String
	r.ApprovedAt = nullTime(approvedAt)
	r.RejectedBy = rejectedBy.String
	r.RejectedAt = nullTime(rejectedAt)
	r.RejectionReason = reason.String
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatDay(t time.Time) string {
	return bonus.Day(t).Format("2006-01-02")
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func nullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
