/*
audit.go - Append-only audit trail for bonus state transitions

PURPOSE:
  Records every orchestrator and state-machine transition against a weekly
  bonus record: syncs, requests, approvals, rejections, and their bulk
  variants. Entries are immutable; corrections are new entries, never edits.

ORDERING:
  History returns entries oldest first. Callers that want newest-first
  reverse at the presentation layer.

SEE ALSO:
  - store.go: AuditStore interface
  - sync.go / lifecycle.go: the writers
*/
package bonus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// AUDIT ACTIONS
// =============================================================================

type AuditAction string

const (
	ActionRevenueSynced AuditAction = "revenue_synced"
	ActionRequested     AuditAction = "requested"
	ActionApproved      AuditAction = "approved"
	ActionRejected      AuditAction = "rejected"
	ActionBulkApproved  AuditAction = "bulk_approved"
	ActionBulkRejected  AuditAction = "bulk_rejected"
)

// AuditEntry is one immutable audit record.
type AuditEntry struct {
	ID        string
	BonusID   BonusID
	Action    AuditAction
	ActorID   string
	Detail    map[string]any
	CreatedAt time.Time
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// AuditLogger appends transition records and reads them back in order.
type AuditLogger struct {
	Store AuditStore

	// Now is the clock; overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func NewAuditLogger(store AuditStore) *AuditLogger {
	return &AuditLogger{Store: store, Now: time.Now}
}

// Log appends one entry. There is no update or delete path.
func (a *AuditLogger) Log(ctx context.Context, bonusID BonusID, action AuditAction, actorID string, detail map[string]any) error {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		BonusID:   bonusID,
		Action:    action,
		ActorID:   actorID,
		Detail:    detail,
		CreatedAt: a.Now().UTC(),
	}
	if err := a.Store.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// History returns the full trail for a bonus record, oldest first.
// A non-existent id yields an empty slice.
func (a *AuditLogger) History(ctx context.Context, bonusID BonusID) ([]AuditEntry, error) {
	entries, err := a.Store.List(ctx, bonusID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
