// Package store provides in-memory implementations of the bonus engine's
// persistence interfaces, for testing and dev runs.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/bonus-engine/bonus"
)

// =============================================================================
// MEMORY STORE - Implements DirectoryStore, RevenueStore, BonusStore, AuditStore
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	branches  map[bonus.BranchID]bonus.Branch
	employees map[bonus.EmployeeID]bonus.Employee

	entries      map[bonus.EntryID]bonus.DailyRevenueEntry
	entryByDay   map[dayKey]bonus.EntryID
	contribs     []bonus.EmployeeRevenueContribution

	bonuses  map[bonus.BonusID]bonus.WeeklyBonusRecord
	byBucket map[bonus.Bucket]bonus.BonusID
	lines    map[bonus.BonusID][]bonus.EmployeeBonusLine

	audit []bonus.AuditEntry
}

type dayKey struct {
	Branch bonus.BranchID
	Day    time.Time
}

func NewMemory() *Memory {
	return &Memory{
		branches:   make(map[bonus.BranchID]bonus.Branch),
		employees:  make(map[bonus.EmployeeID]bonus.Employee),
		entries:    make(map[bonus.EntryID]bonus.DailyRevenueEntry),
		entryByDay: make(map[dayKey]bonus.EntryID),
		bonuses:    make(map[bonus.BonusID]bonus.WeeklyBonusRecord),
		byBucket:   make(map[bonus.Bucket]bonus.BonusID),
		lines:      make(map[bonus.BonusID][]bonus.EmployeeBonusLine),
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) SaveBranch(_ context.Context, b bonus.Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[b.ID] = b
	return nil
}

func (m *Memory) GetBranch(_ context.Context, id bonus.BranchID) (*bonus.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.branches[id]
	if !ok {
		return nil, bonus.ErrBranchNotFound
	}
	return &b, nil
}

func (m *Memory) ListActiveBranches(_ context.Context) ([]bonus.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bonus.Branch
	for _, b := range m.branches {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) SaveEmployee(_ context.Context, e bonus.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) ListActiveEmployees(_ context.Context, branchID bonus.BranchID) ([]bonus.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bonus.Employee
	for _, e := range m.employees {
		if e.BranchID == branchID && e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// =============================================================================
// REVENUE
// =============================================================================

func (m *Memory) SaveEntry(_ context.Context, entry bonus.DailyRevenueEntry, contribs []bonus.EmployeeRevenueContribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := dayKey{Branch: entry.BranchID, Day: bonus.Day(entry.Date)}
	if _, exists := m.entryByDay[k]; exists {
		return bonus.ErrDuplicateEntry
	}

	m.entries[entry.ID] = entry
	m.entryByDay[k] = entry.ID
	m.contribs = append(m.contribs, contribs...)
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id bonus.EntryID) (*bonus.DailyRevenueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, bonus.ErrEntryNotFound
	}
	return &e, nil
}

func (m *Memory) ListContributions(_ context.Context, branchID bonus.BranchID, from, to time.Time) ([]bonus.EmployeeRevenueContribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bonus.EmployeeRevenueContribution
	for _, c := range m.contribs {
		if c.BranchID != branchID {
			continue
		}
		if c.Date.Before(from) || c.Date.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// =============================================================================
// BONUS RECORDS
// =============================================================================

func (m *Memory) UpsertPending(_ context.Context, record bonus.WeeklyBonusRecord, lines []bonus.EmployeeBonusLine) (*bonus.WeeklyBonusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byBucket[record.Bucket]; ok {
		existing := m.bonuses[existingID]
		if existing.Frozen() {
			return nil, &bonus.FrozenError{BonusID: existing.ID, Status: existing.Status}
		}
		// Converge onto the existing record: identity and creation time survive.
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	}

	m.bonuses[record.ID] = record
	m.byBucket[record.Bucket] = record.ID
	m.lines[record.ID] = rekeyLines(record.ID, lines)

	saved := record
	return &saved, nil
}

// rekeyLines gives every line a deterministic ID derived from the surviving
// record ID, so repeated syncs regenerate byte-identical line sets.
func rekeyLines(id bonus.BonusID, lines []bonus.EmployeeBonusLine) []bonus.EmployeeBonusLine {
	out := make([]bonus.EmployeeBonusLine, len(lines))
	for i, l := range lines {
		l.ID = fmt.Sprintf("%s/%s", id, l.EmployeeID)
		l.BonusID = id
		out[i] = l
	}
	return out
}

func (m *Memory) GetBonus(_ context.Context, id bonus.BonusID) (*bonus.WeeklyBonusRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.bonuses[id]
	if !ok {
		return nil, bonus.ErrBonusNotFound
	}
	return &r, nil
}

func (m *Memory) GetBonusByBucket(_ context.Context, bucket bonus.Bucket) (*bonus.WeeklyBonusRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byBucket[bucket]
	if !ok {
		return nil, bonus.ErrBonusNotFound
	}
	r := m.bonuses[id]
	return &r, nil
}

func (m *Memory) ListLines(_ context.Context, id bonus.BonusID) ([]bonus.EmployeeBonusLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bonus.EmployeeBonusLine, len(m.lines[id]))
	copy(out, m.lines[id])
	return out, nil
}

func (m *Memory) Transition(_ context.Context, id bonus.BonusID, apply bonus.StatusChange) (*bonus.WeeklyBonusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.bonuses[id]
	if !ok {
		return nil, bonus.ErrBonusNotFound
	}
	if r.Status != apply.From {
		return nil, &bonus.TransitionError{BonusID: id, From: r.Status, To: apply.To}
	}

	at := apply.At
	switch apply.To {
	case bonus.StatusRequested:
		r.RequestedBy = apply.Actor
		r.RequestedAt = &at
	case bonus.StatusApproved:
		r.ApprovedBy = apply.Actor
		r.ApprovedAt = &at
	case bonus.StatusRejected:
		r.RejectedBy = apply.Actor
		r.RejectedAt = &at
		r.RejectionReason = apply.Reason
	default:
		return nil, &bonus.TransitionError{BonusID: id, From: r.Status, To: apply.To}
	}
	r.Status = apply.To
	r.UpdatedAt = at
	m.bonuses[id] = r

	saved := r
	return &saved, nil
}

func (m *Memory) ListBonuses(_ context.Context, filter bonus.HistoryFilter) ([]bonus.WeeklyBonusRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bonus.WeeklyBonusRecord
	for _, r := range m.bonuses {
		if filter.BranchID != "" && r.Bucket.BranchID != filter.BranchID {
			continue
		}
		if filter.Year != 0 && r.Bucket.Year != filter.Year {
			continue
		}
		if filter.Month != 0 && r.Bucket.Month != filter.Month {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	// Newest bucket first, matching the sqlite implementation.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Bucket, out[j].Bucket
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		if a.Week != b.Week {
			return a.Week > b.Week
		}
		return a.BranchID < b.BranchID
	})
	return out, nil
}

func (m *Memory) GetStatistics(_ context.Context, branchID bonus.BranchID) (*bonus.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &bonus.Statistics{}
	approved, rejected, approvedEmployees := 0, 0, 0
	for _, r := range m.bonuses {
		if branchID != "" && r.Bucket.BranchID != branchID {
			continue
		}
		stats.TotalRecords++
		switch r.Status {
		case bonus.StatusApproved:
			approved++
			approvedEmployees += r.EmployeeCount
			stats.TotalPaid = stats.TotalPaid.Add(r.TotalAmount)
		case bonus.StatusRejected:
			rejected++
		case bonus.StatusPending:
			stats.PendingCount++
		}
	}
	stats.AveragePerEmployee = avg(stats.TotalPaid, approvedEmployees)
	stats.ApprovalRate = rate(approved, approved+rejected)
	return stats, nil
}

func avg(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(2)
}

func rate(num, den int) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(num)).Div(decimal.NewFromInt(int64(den))).Round(4)
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) Append(_ context.Context, entry bonus.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) List(_ context.Context, bonusID bonus.BonusID) ([]bonus.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bonus.AuditEntry
	for _, e := range m.audit {
		if e.BonusID == bonusID {
			out = append(out, e)
		}
	}
	// Append order is insertion order; keep it stable for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
