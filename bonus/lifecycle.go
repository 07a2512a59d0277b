/*
lifecycle.go - Weekly bonus lifecycle state machine

PURPOSE:
  Governs the transitions of a weekly bonus record:

      pending ──▶ requested ──▶ approved
                      │
                      └───────▶ rejected

  Any transition attempted from an invalid source state fails with a
  descriptive TransitionError and leaves the record untouched. The
  compare-and-set in BonusStore.Transition enforces this under concurrent
  callers.

BULK SEMANTICS:
  ApproveAll / RejectAll apply the single-record transition per id and
  collect a success/failure tally. One bad id never aborts the rest.
  Bulk items are audited with the bulk_approved / bulk_rejected actions so
  the trail distinguishes them from single transitions.

NOTIFICATIONS:
  After a successful transition a notification is fired best-effort in a
  goroutine. Delivery failures are logged and swallowed; they never roll
  back the transition.

SEE ALSO:
  - store.go: Transition CAS contract
  - audit.go: the per-transition audit entries
*/
package bonus

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// =============================================================================
// NOTIFIER - Narrow external collaborator
// =============================================================================

// Notifier delivers best-effort notifications after lifecycle transitions.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, body string) error
}

// =============================================================================
// LIFECYCLE SERVICE
// =============================================================================

// Lifecycle applies bonus state transitions and records them.
type Lifecycle struct {
	Bonuses  BonusStore
	Audit    *AuditLogger
	Notifier Notifier

	// Recipients for transition notifications (finance/manager inboxes).
	Recipients []string

	// Now is the clock; overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func NewLifecycle(bonuses BonusStore, audit *AuditLogger, notifier Notifier, recipients []string) *Lifecycle {
	return &Lifecycle{
		Bonuses:    bonuses,
		Audit:      audit,
		Notifier:   notifier,
		Recipients: recipients,
		Now:        time.Now,
	}
}

// Request moves a pending bonus to requested.
func (l *Lifecycle) Request(ctx context.Context, id BonusID, actorID string) (*WeeklyBonusRecord, error) {
	record, err := l.Bonuses.Transition(ctx, id, StatusChange{
		From:  StatusPending,
		To:    StatusRequested,
		Actor: actorID,
		At:    l.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := l.Audit.Log(ctx, id, ActionRequested, actorID, transitionDetail(record, "")); err != nil {
		return nil, err
	}
	l.notify(record, "Weekly bonus requested",
		fmt.Sprintf("Bonus %s for %s was submitted for approval by %s.", id, record.Bucket, actorID))
	return record, nil
}

// Approve moves a requested bonus to approved.
func (l *Lifecycle) Approve(ctx context.Context, id BonusID, actorID string) (*WeeklyBonusRecord, error) {
	return l.approve(ctx, id, actorID, ActionApproved)
}

// Reject moves a requested bonus to rejected. The reason is mandatory.
func (l *Lifecycle) Reject(ctx context.Context, id BonusID, actorID, reason string) (*WeeklyBonusRecord, error) {
	return l.reject(ctx, id, actorID, reason, ActionRejected)
}

func (l *Lifecycle) approve(ctx context.Context, id BonusID, actorID string, action AuditAction) (*WeeklyBonusRecord, error) {
	record, err := l.Bonuses.Transition(ctx, id, StatusChange{
		From:  StatusRequested,
		To:    StatusApproved,
		Actor: actorID,
		At:    l.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := l.Audit.Log(ctx, id, action, actorID, transitionDetail(record, "")); err != nil {
		return nil, err
	}
	l.notify(record, "Weekly bonus approved",
		fmt.Sprintf("Bonus %s for %s (%s) was approved by %s.", id, record.Bucket, record.TotalAmount, actorID))
	return record, nil
}

func (l *Lifecycle) reject(ctx context.Context, id BonusID, actorID, reason string, action AuditAction) (*WeeklyBonusRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrMissingReason
	}
	record, err := l.Bonuses.Transition(ctx, id, StatusChange{
		From:   StatusRequested,
		To:     StatusRejected,
		Actor:  actorID,
		At:     l.Now().UTC(),
		Reason: reason,
	})
	if err != nil {
		return nil, err
	}
	if err := l.Audit.Log(ctx, id, action, actorID, transitionDetail(record, reason)); err != nil {
		return nil, err
	}
	l.notify(record, "Weekly bonus rejected",
		fmt.Sprintf("Bonus %s for %s was rejected by %s: %s", id, record.Bucket, actorID, reason))
	return record, nil
}

// =============================================================================
// BULK TRANSITIONS - Per-item failure isolation
// =============================================================================

// BulkResult tallies a bulk transition. Failures carry the offending id so
// the caller can surface them without re-deriving anything.
type BulkResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Failures  []BulkFailure
}

type BulkFailure struct {
	BonusID BonusID
	Reason  string
}

// ApproveAll approves each requested bonus in ids. One bad id never aborts
// the others.
func (l *Lifecycle) ApproveAll(ctx context.Context, ids []BonusID, actorID string) *BulkResult {
	result := &BulkResult{Attempted: len(ids)}
	for _, id := range ids {
		if _, err := l.approve(ctx, id, actorID, ActionBulkApproved); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, BulkFailure{BonusID: id, Reason: err.Error()})
			continue
		}
		result.Succeeded++
	}
	return result
}

// RejectAll rejects each requested bonus in ids with one shared reason.
func (l *Lifecycle) RejectAll(ctx context.Context, ids []BonusID, actorID, reason string) *BulkResult {
	result := &BulkResult{Attempted: len(ids)}
	for _, id := range ids {
		if _, err := l.reject(ctx, id, actorID, reason, ActionBulkRejected); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, BulkFailure{BonusID: id, Reason: err.Error()})
			continue
		}
		result.Succeeded++
	}
	return result
}

// =============================================================================
// HELPERS
// =============================================================================

// notify fires a best-effort notification. Failures are logged, never
// propagated: the state transition has already committed.
func (l *Lifecycle) notify(record *WeeklyBonusRecord, subject, body string) {
	if l.Notifier == nil || len(l.Recipients) == 0 {
		return
	}
	recipients := make([]string, len(l.Recipients))
	copy(recipients, l.Recipients)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := l.Notifier.Notify(ctx, recipients, subject, body); err != nil {
			log.Printf("[Lifecycle] notification failed for bonus %s: %v", record.ID, err)
		}
	}()
}

func transitionDetail(record *WeeklyBonusRecord, reason string) map[string]any {
	detail := map[string]any{
		"bucket":       record.Bucket.String(),
		"status":       string(record.Status),
		"total_amount": record.TotalAmount.String(),
	}
	if reason != "" {
		detail["reason"] = reason
	}
	return detail
}
