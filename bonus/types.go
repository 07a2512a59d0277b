/*
Package bonus provides the revenue reconciliation and weekly bonus engine.

PURPOSE:
  This package contains the domain types and algorithms for deriving weekly
  employee bonuses from branch-level daily revenue. The engine aggregates
  per-employee revenue contributions into weekly buckets, assigns bonus
  tiers, and keeps the derived weekly bonus records idempotently in sync
  whenever the underlying revenue changes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money values: decimal.Decimal everywhere, never float64
  - Bucket: a (branch, year, month, weekNumber) aggregation window
  - DailyRevenueEntry / EmployeeRevenueContribution: the revenue inputs
  - WeeklyBonusRecord / EmployeeBonusLine: the derived bonus outputs
  - Branch/Employee: the minimal directory records the sweep iterates

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing branch/employee IDs
  3. Idempotency: Re-running a sync with unchanged inputs produces
     byte-identical records
  4. Auditability: Every sync and lifecycle transition is recorded in an
     append-only audit log

SEE ALSO:
  - week.go: Calendar day to week bucket mapping
  - tier.go: Weekly revenue to bonus tier mapping
  - sync.go: The sync orchestrator
  - lifecycle.go: Bonus request/approve/reject state machine
*/
package bonus

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BranchID string
type EmployeeID string
type EntryID string
type BonusID string

// =============================================================================
// BUCKET - One weekly aggregation window
// =============================================================================

// Bucket identifies one weekly aggregation window. Weekly bonus records are
// keyed by bucket: there is at most one record per bucket.
type Bucket struct {
	BranchID BranchID
	Year     int
	Month    time.Month
	Week     int
}

func (b Bucket) String() string {
	return fmt.Sprintf("%s/%d-%02d/w%d", b.BranchID, b.Year, b.Month, b.Week)
}

// Validate checks the calendar coordinates of the bucket.
func (b Bucket) Validate() error {
	if b.BranchID == "" {
		return &InputError{Field: "branch_id", Message: "branch id is required"}
	}
	if b.Month < time.January || b.Month > time.December {
		return &InputError{Field: "month", Message: fmt.Sprintf("month %d outside 1-12", b.Month)}
	}
	if b.Week < 1 || b.Week > WeeksPerMonth {
		return &InputError{Field: "week", Message: fmt.Sprintf("week %d outside 1-%d", b.Week, WeeksPerMonth)}
	}
	if b.Year < 2000 || b.Year > 2200 {
		return &InputError{Field: "year", Message: fmt.Sprintf("year %d out of range", b.Year)}
	}
	return nil
}

// =============================================================================
// DIRECTORY - Branches and employees (owned by an external workflow;
// consumed read-mostly here so the sweep has something to iterate)
// =============================================================================

type Branch struct {
	ID        BranchID
	Code      string
	Name      string
	Active    bool
	CreatedAt time.Time
}

type Employee struct {
	ID        EmployeeID
	BranchID  BranchID
	Code      string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// REVENUE INPUTS - Created by the revenue-entry workflow, read-only here
// =============================================================================

// DailyRevenueEntry is one branch-day of cash/network revenue.
// Invariant: Total == Cash + Network (checked by the accounting validator
// at entry time; entries that violate it are persisted with Matched=false
// and a human-supplied MismatchReason).
type DailyRevenueEntry struct {
	ID       EntryID
	BranchID BranchID
	Date     time.Time // day granularity, UTC

	Cash    decimal.Decimal
	Network decimal.Decimal
	Total   decimal.Decimal
	Balance decimal.Decimal

	Matched        bool
	MismatchReason string

	CreatedAt time.Time
}

// EmployeeRevenueContribution is one employee's share of a daily entry.
// For a given entry, sum(contribution.Total) must equal the entry's
// employee total submitted to the validator.
type EmployeeRevenueContribution struct {
	ID         string
	EntryID    EntryID
	BranchID   BranchID
	EmployeeID EmployeeID
	Date       time.Time // denormalized from the entry for bucket queries

	Cash    decimal.Decimal
	Network decimal.Decimal
	Total   decimal.Decimal
}

// =============================================================================
// BONUS OUTPUTS - Derived, kept in sync by the orchestrator
// =============================================================================

type BonusStatus string

const (
	StatusPending   BonusStatus = "pending"
	StatusRequested BonusStatus = "requested"
	StatusApproved  BonusStatus = "approved"
	StatusRejected  BonusStatus = "rejected"
)

// WeeklyBonusRecord is the derived bonus for one bucket. It is created
// lazily by the first sync, mutated in place by every subsequent sync while
// Status is pending, and frozen once requested/approved/rejected.
type WeeklyBonusRecord struct {
	ID     BonusID
	Bucket Bucket

	TotalAmount   decimal.Decimal
	EmployeeCount int
	EligibleCount int

	Status BonusStatus

	RequestedBy     string
	RequestedAt     *time.Time
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectedBy      string
	RejectedAt      *time.Time
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Frozen reports whether the record may no longer be rewritten by a sync.
func (r *WeeklyBonusRecord) Frozen() bool {
	return r.Status != StatusPending
}

// EmployeeBonusLine is one employee's share of a WeeklyBonusRecord.
// Lines are regenerated wholesale by each sync while the parent is pending.
type EmployeeBonusLine struct {
	ID      string
	BonusID BonusID

	EmployeeID   EmployeeID
	EmployeeCode string
	EmployeeName string

	WeeklyRevenue decimal.Decimal
	Tier          Tier
	Amount        decimal.Decimal
	Eligible      bool
}

// =============================================================================
// STATISTICS - Aggregate view over a branch's bonus history
// =============================================================================

type Statistics struct {
	TotalRecords       int
	TotalPaid          decimal.Decimal // sum of approved bonus amounts
	AveragePerEmployee decimal.Decimal // total paid / employees on approved records
	ApprovalRate       decimal.Decimal // approved / (approved + rejected), 0..1
	PendingCount       int             // records still pending
}
