/*
store.go - Persistence interfaces for revenue and bonus data

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage; the engine never
  touches a database handle directly (every component takes its stores as
  explicit constructor dependencies, no process-wide handles).

KEY INTERFACES:
  DirectoryStore: Branches and employees (the sweep's iteration set)
  RevenueStore:   Daily entries and per-employee contributions
  BonusStore:     Weekly bonus records and their lines
  AuditStore:     Append-only audit trail

ATOMICITY CONTRACT:
  - RevenueStore.SaveEntry writes the entry and its contributions in one
    transaction.
  - BonusStore.UpsertPending is the single shared mutable operation in the
    system: it must upsert by bucket key under a unique constraint so that
    two concurrent syncs converge to one record, must refuse with
    ErrBonusFrozen when the existing record is not pending, and must
    replace the line set atomically (a reader never sees a mixed old/new
    set).
  - BonusStore.Transition is a compare-and-set on status so that
    concurrent lifecycle calls cannot both succeed.

APPEND-ONLY CONTRACT:
  AuditStore has Append and List only. No Update, no Delete. Ever.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
  - bonus/store/memory.go:  in-memory for testing
*/
package bonus

import (
	"context"
	"time"
)

// =============================================================================
// DIRECTORY STORE - Branches and employees
// =============================================================================

type DirectoryStore interface {
	SaveBranch(ctx context.Context, b Branch) error
	GetBranch(ctx context.Context, id BranchID) (*Branch, error)

	// ListActiveBranches returns every branch the sweep must visit.
	ListActiveBranches(ctx context.Context) ([]Branch, error)

	SaveEmployee(ctx context.Context, e Employee) error

	// ListActiveEmployees returns the active employees of one branch,
	// ordered by employee code.
	ListActiveEmployees(ctx context.Context, branchID BranchID) ([]Employee, error)
}

// =============================================================================
// REVENUE STORE - Daily entries and contributions (written once, read-only after)
// =============================================================================

type RevenueStore interface {
	// SaveEntry persists an entry and its contributions atomically.
	// Returns ErrDuplicateEntry if the branch already has an entry for
	// that day.
	SaveEntry(ctx context.Context, entry DailyRevenueEntry, contribs []EmployeeRevenueContribution) error

	GetEntry(ctx context.Context, id EntryID) (*DailyRevenueEntry, error)

	// ListContributions returns every contribution whose parent entry's
	// date falls in [from, to] for the branch.
	ListContributions(ctx context.Context, branchID BranchID, from, to time.Time) ([]EmployeeRevenueContribution, error)
}

// =============================================================================
// BONUS STORE - The single shared mutable resource
// =============================================================================

// HistoryFilter bounds a bonus history query.
type HistoryFilter struct {
	BranchID BranchID
	Year     int         // 0 = any
	Month    time.Month  // 0 = any
	Status   BonusStatus // "" = any
}

type BonusStore interface {
	// UpsertPending creates the record for its bucket if absent (status
	// pending), or rewrites totals and lines if present and still pending.
	// Returns a FrozenError if the existing record is not pending; the
	// record and its lines are left untouched in that case.
	UpsertPending(ctx context.Context, record WeeklyBonusRecord, lines []EmployeeBonusLine) (*WeeklyBonusRecord, error)

	GetBonus(ctx context.Context, id BonusID) (*WeeklyBonusRecord, error)
	GetBonusByBucket(ctx context.Context, bucket Bucket) (*WeeklyBonusRecord, error)
	ListLines(ctx context.Context, id BonusID) ([]EmployeeBonusLine, error)

	// Transition is a compare-and-set: the update applies only if the
	// record's current status equals apply.From. Returns a TransitionError
	// when the status has moved, ErrBonusNotFound when the id is unknown.
	Transition(ctx context.Context, id BonusID, apply StatusChange) (*WeeklyBonusRecord, error)

	ListBonuses(ctx context.Context, filter HistoryFilter) ([]WeeklyBonusRecord, error)
	GetStatistics(ctx context.Context, branchID BranchID) (*Statistics, error)
}

// StatusChange describes one lifecycle transition for BonusStore.Transition.
type StatusChange struct {
	From   BonusStatus
	To     BonusStatus
	Actor  string
	At     time.Time
	Reason string // rejections only
}

// =============================================================================
// AUDIT STORE - Append-only
// =============================================================================

type AuditStore interface {
	// Append persists one audit entry. This is the only write operation.
	Append(ctx context.Context, entry AuditEntry) error

	// List returns all entries for a bonus record ordered by time, oldest
	// first. Unknown ids yield an empty slice, never an error.
	List(ctx context.Context, bonusID BonusID) ([]AuditEntry, error)
}
