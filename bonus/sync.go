/*
sync.go - The sync orchestrator

PURPOSE:
  The central coordinator. Given a bucket it re-runs aggregation and
  tiering, idempotently upserts the weekly bonus record and its
  per-employee lines, and appends an audit entry. It also drives the
  all-branches sweep that an external daily timer triggers.

SYNC FLOW:
  aggregate contributions -> assign tiers per employee -> upsert record
  and replace lines (while pending) -> append revenue_synced audit entry

FAILURE SEMANTICS:
  - Data absence (no employees / no revenue) is a structured failure:
    SyncResult.Synced=false with a human-readable reason, error nil.
  - A record that is already requested/approved/rejected is never
    rewritten: the sync reports a conflict and leaves it untouched.
    Approved bonuses are not recomputed retroactively.
  - Store failures propagate and abort the sync; committed state from
    earlier syncs is unaffected.

SWEEP:
  Sweep visits every active branch once, targeting the bucket that closes
  "today" (or, on a non-closing day, the bucket containing today). Each
  branch is an independent failure domain: one branch's failure never
  blocks the others, and the caller receives a per-branch result list with
  success/failure counts.

IDEMPOTENCY:
  Re-running a sync with unchanged revenue produces a byte-identical
  record and line set: line IDs are derived from (bonusID, employeeID)
  rather than drawn fresh, and aggregation output is code-ordered.

SEE ALSO:
  - aggregate.go, tier.go: the two computations this coordinates
  - store.go: UpsertPending atomicity contract
  - api/scheduler.go: the daily timer that calls Sweep
*/
package bonus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SYNC RESULTS
// =============================================================================

// SyncResult reports the outcome of one bucket sync. Synced=false with a
// Reason covers both data-absence and frozen-record conditions; Err is set
// only for genuine faults (store failures).
type SyncResult struct {
	Bucket Bucket
	Synced bool
	Reason string
	Err    error

	BonusID       BonusID
	TotalAmount   decimal.Decimal
	EmployeeCount int
	EligibleCount int
}

// SweepResult is the per-branch outcome list of one all-branches sweep.
type SweepResult struct {
	RanAt     time.Time
	Attempted int
	Succeeded int
	Failed    int
	Results   []SyncResult
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator coordinates aggregation, tiering, upsert and audit.
type Orchestrator struct {
	Aggregator *Aggregator
	Tiers      TierTable
	Directory  DirectoryStore
	Bonuses    BonusStore
	Audit      *AuditLogger

	// Now is the clock; overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func NewOrchestrator(agg *Aggregator, tiers TierTable, directory DirectoryStore, bonuses BonusStore, audit *AuditLogger) *Orchestrator {
	return &Orchestrator{
		Aggregator: agg,
		Tiers:      tiers,
		Directory:  directory,
		Bonuses:    bonuses,
		Audit:      audit,
		Now:        time.Now,
	}
}

// SyncWeeklyRevenue recomputes and upserts the bonus record for one bucket.
// The actor is recorded on the audit entry ("system" for scheduled runs).
func (o *Orchestrator) SyncWeeklyRevenue(ctx context.Context, bucket Bucket, actor string) (*SyncResult, error) {
	if err := bucket.Validate(); err != nil {
		return nil, err
	}

	contribs, err := o.Aggregator.Aggregate(ctx, bucket)
	if err != nil {
		if IsNoData(err) {
			return &SyncResult{Bucket: bucket, Reason: noDataReason(err)}, nil
		}
		return nil, err
	}

	lines, total, eligible := o.buildLines(contribs)

	record := WeeklyBonusRecord{
		ID:            BonusID(uuid.NewString()),
		Bucket:        bucket,
		TotalAmount:   total,
		EmployeeCount: len(lines),
		EligibleCount: eligible,
		Status:        StatusPending,
		CreatedAt:     o.Now().UTC(),
		UpdatedAt:     o.Now().UTC(),
	}

	saved, err := o.Bonuses.UpsertPending(ctx, record, lines)
	if err != nil {
		var frozen *FrozenError
		if errors.As(err, &frozen) {
			return &SyncResult{
				Bucket:  bucket,
				Reason:  frozen.Error(),
				BonusID: frozen.BonusID,
			}, nil
		}
		return nil, fmt.Errorf("failed to upsert bonus record: %w", err)
	}

	if err := o.Audit.Log(ctx, saved.ID, ActionRevenueSynced, actor, map[string]any{
		"bucket":         bucket.String(),
		"total_amount":   total.String(),
		"employee_count": len(lines),
		"eligible_count": eligible,
	}); err != nil {
		return nil, err
	}

	return &SyncResult{
		Bucket:        bucket,
		Synced:        true,
		BonusID:       saved.ID,
		TotalAmount:   total,
		EmployeeCount: len(lines),
		EligibleCount: eligible,
	}, nil
}

// buildLines assigns a tier per contribution. Line IDs are deterministic
// placeholders; UpsertPending rewrites them against the surviving record ID.
func (o *Orchestrator) buildLines(contribs []WeeklyContribution) ([]EmployeeBonusLine, decimal.Decimal, int) {
	lines := make([]EmployeeBonusLine, 0, len(contribs))
	total := decimal.Zero
	eligible := 0

	for _, c := range contribs {
		a := o.Tiers.Assign(c.WeeklyRevenue)
		if a.Eligible {
			eligible++
			total = total.Add(a.Amount)
		}
		lines = append(lines, EmployeeBonusLine{
			EmployeeID:    c.EmployeeID,
			EmployeeCode:  c.EmployeeCode,
			EmployeeName:  c.EmployeeName,
			WeeklyRevenue: c.WeeklyRevenue,
			Tier:          a.Tier,
			Amount:        a.Amount,
			Eligible:      a.Eligible,
		})
	}
	return lines, total, eligible
}

// =============================================================================
// SWEEP - All-branches daily invocation
// =============================================================================

// Sweep syncs every active branch for the bucket that closes today (or the
// bucket containing today when it is not a closing day). Manual and
// scheduled invocations share this one entry point; it is idempotent and
// re-entrant.
func (o *Orchestrator) Sweep(ctx context.Context, today time.Time, actor string) (*SweepResult, error) {
	today = Day(today)
	branches, err := o.Directory.ListActiveBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	_, week := ClosingDay(today)

	result := &SweepResult{RanAt: o.Now().UTC()}
	for _, b := range branches {
		bucket := Bucket{BranchID: b.ID, Year: today.Year(), Month: today.Month(), Week: week}
		result.Attempted++

		sync, err := o.SyncWeeklyRevenue(ctx, bucket, actor)
		if err != nil {
			// Isolated failure domain: record and move on.
			log.Printf("[Sync] branch %s: %v", b.ID, err)
			result.Failed++
			result.Results = append(result.Results, SyncResult{Bucket: bucket, Reason: err.Error(), Err: err})
			continue
		}
		if sync.Synced {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, *sync)
	}
	return result, nil
}

func noDataReason(err error) string {
	if errors.Is(err, ErrNoActiveEmployees) {
		return "No active employees"
	}
	return "No daily revenues found"
}
