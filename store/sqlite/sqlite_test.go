package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bonus-engine/bonus"
	"github.com/warp/bonus-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func pendingRecord(id bonus.BonusID, week int) bonus.WeeklyBonusRecord {
	now := time.Date(2025, time.March, 22, 12, 0, 0, 0, time.UTC)
	return bonus.WeeklyBonusRecord{
		ID: id,
		Bucket: bonus.Bucket{
			BranchID: "b1", Year: 2025, Month: time.March, Week: week,
		},
		TotalAmount:   dec("70"),
		EmployeeCount: 2,
		EligibleCount: 2,
		Status:        bonus.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func sampleLines(bonusID bonus.BonusID) []bonus.EmployeeBonusLine {
	return []bonus.EmployeeBonusLine{
		{
			BonusID: bonusID, EmployeeID: "emp-a", EmployeeCode: "E01", EmployeeName: "Employee A",
			WeeklyRevenue: dec("900"), Tier: bonus.Tier2, Amount: dec("20"), Eligible: true,
		},
		{
			BonusID: bonusID, EmployeeID: "emp-b", EmployeeCode: "E02", EmployeeName: "Employee B",
			WeeklyRevenue: dec("1950"), Tier: bonus.Tier4, Amount: dec("50"), Eligible: true,
		},
	}
}

// =============================================================================
// DIRECTORY TESTS
// =============================================================================

func TestStore_BranchRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := bonus.Branch{
		ID: "b1", Code: "BR-01", Name: "Main Street", Active: true,
		CreatedAt: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveBranch(ctx, b))

	got, err := s.GetBranch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, b.Code, got.Code)
	assert.True(t, got.Active)
	assert.Equal(t, b.CreatedAt, got.CreatedAt)

	_, err = s.GetBranch(ctx, "missing")
	assert.ErrorIs(t, err, bonus.ErrBranchNotFound)
}

func TestStore_SaveBranchUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := bonus.Branch{ID: "b1", Code: "BR-01", Name: "Main", Active: true, CreatedAt: time.Now()}
	require.NoError(t, s.SaveBranch(ctx, b))

	b.Active = false
	require.NoError(t, s.SaveBranch(ctx, b))

	branches, err := s.ListActiveBranches(ctx)
	require.NoError(t, err)
	assert.Empty(t, branches)
}

func TestStore_EmployeesOrderedByCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, e := range []bonus.Employee{
		{ID: "e2", BranchID: "b1", Code: "E02", Name: "Second", Active: true, CreatedAt: now},
		{ID: "e1", BranchID: "b1", Code: "E01", Name: "First", Active: true, CreatedAt: now},
		{ID: "e3", BranchID: "b1", Code: "E03", Name: "Inactive", Active: false, CreatedAt: now},
		{ID: "e4", BranchID: "b2", Code: "E04", Name: "Other branch", Active: true, CreatedAt: now},
	} {
		require.NoError(t, s.SaveEmployee(ctx, e))
	}

	employees, err := s.ListActiveEmployees(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, "E01", employees[0].Code)
	assert.Equal(t, "E02", employees[1].Code)
}

// =============================================================================
// REVENUE TESTS
// =============================================================================

func revenueEntry(branch bonus.BranchID, day time.Time) (bonus.DailyRevenueEntry, []bonus.EmployeeRevenueContribution) {
	entry := bonus.DailyRevenueEntry{
		ID: bonus.EntryID("entry-" + string(branch) + "-" + day.Format("2006-01-02")), BranchID: branch, Date: day,
		Cash: dec("300"), Network: dec("200"), Total: dec("500"), Balance: dec("200"),
		Matched: true, CreatedAt: time.Now().UTC(),
	}
	contribs := []bonus.EmployeeRevenueContribution{
		{ID: string(entry.ID) + "/emp-a", EntryID: entry.ID, BranchID: branch, EmployeeID: "emp-a",
			Date: day, Cash: dec("300"), Network: dec("200"), Total: dec("500")},
	}
	return entry, contribs
}

func TestStore_SaveEntry_DuplicateDayRejected(t *testing.T) {
	// GIVEN: A branch-day already recorded
	// WHEN: Saving another entry for the same branch and day
	// THEN: ErrDuplicateEntry; the first entry survives

	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	entry, contribs := revenueEntry("b1", day)
	require.NoError(t, s.SaveEntry(ctx, entry, contribs))

	dup, dupContribs := revenueEntry("b1", day)
	dup.ID = "entry-duplicate"
	err := s.SaveEntry(ctx, dup, dupContribs)
	assert.ErrorIs(t, err, bonus.ErrDuplicateEntry)

	got, err := s.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(dec("500")))
}

func TestStore_SaveEntry_SameDayOtherBranchAllowed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	e1, c1 := revenueEntry("b1", day)
	require.NoError(t, s.SaveEntry(ctx, e1, c1))

	e2, c2 := revenueEntry("b2", day)
	require.NoError(t, s.SaveEntry(ctx, e2, c2))
}

func TestStore_ListContributions_WindowAndDecimals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, day := range []int{15, 16, 22, 23} {
		d := time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC)
		entry, contribs := revenueEntry("b1", d)
		require.NoError(t, s.SaveEntry(ctx, entry, contribs))
	}

	// Week 3 window is the 16th through the 22nd
	from, to, ok := bonus.BucketRange(2025, time.March, 3)
	require.True(t, ok)

	contribs, err := s.ListContributions(ctx, "b1", from, to)
	require.NoError(t, err)
	require.Len(t, contribs, 2)
	assert.Equal(t, 16, contribs[0].Date.Day())
	assert.Equal(t, 22, contribs[1].Date.Day())
	assert.True(t, contribs[0].Total.Equal(dec("500")), "decimals survive the round trip")
}

// =============================================================================
// BONUS UPSERT TESTS
// =============================================================================

func TestStore_UpsertPending_InsertThenConverge(t *testing.T) {
	// GIVEN: A bucket synced once
	// WHEN: Upserting the same bucket with a fresh candidate id
	// THEN: The original id and creation time survive; totals are rewritten

	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertPending(ctx, pendingRecord("bonus-1", 3), sampleLines("bonus-1"))
	require.NoError(t, err)
	assert.Equal(t, bonus.BonusID("bonus-1"), first.ID)

	rewrite := pendingRecord("bonus-candidate-2", 3)
	rewrite.TotalAmount = dec("95")
	rewrite.UpdatedAt = rewrite.UpdatedAt.Add(time.Hour)

	second, err := s.UpsertPending(ctx, rewrite, sampleLines("bonus-candidate-2"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "identity converges onto the existing row")
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.TotalAmount.Equal(dec("95")))

	got, err := s.GetBonusByBucket(ctx, first.Bucket)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("95")))

	lines, err := s.ListLines(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Equal(t, first.ID, l.BonusID, "lines re-keyed to the surviving id")
	}
}

func TestStore_UpsertPending_LineIDsDeterministic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertPending(ctx, pendingRecord("bonus-1", 3), sampleLines("bonus-1"))
	require.NoError(t, err)
	firstLines, err := s.ListLines(ctx, "bonus-1")
	require.NoError(t, err)

	_, err = s.UpsertPending(ctx, pendingRecord("bonus-other", 3), sampleLines("bonus-other"))
	require.NoError(t, err)
	secondLines, err := s.ListLines(ctx, "bonus-1")
	require.NoError(t, err)

	assert.Equal(t, firstLines, secondLines)
}

func TestStore_UpsertPending_FrozenRefused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record, err := s.UpsertPending(ctx, pendingRecord("bonus-1", 3), sampleLines("bonus-1"))
	require.NoError(t, err)

	_, err = s.Transition(ctx, record.ID, bonus.StatusChange{
		From: bonus.StatusPending, To: bonus.StatusRequested,
		Actor: "manager-1", At: time.Now().UTC(),
	})
	require.NoError(t, err)

	rewrite := pendingRecord("bonus-candidate", 3)
	rewrite.TotalAmount = dec("999")
	_, err = s.UpsertPending(ctx, rewrite, nil)

	var frozen *bonus.FrozenError
	require.True(t, errors.As(err, &frozen))
	assert.Equal(t, record.ID, frozen.BonusID)
	assert.Equal(t, bonus.StatusRequested, frozen.Status)

	// Record and lines untouched
	got, err := s.GetBonus(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("70")))
	lines, err := s.ListLines(ctx, record.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

// =============================================================================
// TRANSITION TESTS
// =============================================================================

func TestStore_Transition_CompareAndSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.March, 23, 9, 0, 0, 0, time.UTC)

	_, err := s.UpsertPending(ctx, pendingRecord("bonus-1", 3), nil)
	require.NoError(t, err)

	requested, err := s.Transition(ctx, "bonus-1", bonus.StatusChange{
		From: bonus.StatusPending, To: bonus.StatusRequested, Actor: "manager-1", At: now,
	})
	require.NoError(t, err)
	assert.Equal(t, bonus.StatusRequested, requested.Status)
	assert.Equal(t, "manager-1", requested.RequestedBy)
	require.NotNil(t, requested.RequestedAt)
	assert.Equal(t, now, requested.RequestedAt.UTC())

	// Stale From loses the race
	_, err = s.Transition(ctx, "bonus-1", bonus.StatusChange{
		From: bonus.StatusPending, To: bonus.StatusRequested, Actor: "manager-2", At: now,
	})
	var transErr *bonus.TransitionError
	require.True(t, errors.As(err, &transErr))
	assert.Equal(t, bonus.StatusRequested, transErr.From)
}

func TestStore_Transition_RejectionFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, err := s.UpsertPending(ctx, pendingRecord("bonus-1", 3), nil)
	require.NoError(t, err)
	_, err = s.Transition(ctx, "bonus-1", bonus.StatusChange{
		From: bonus.StatusPending, To: bonus.StatusRequested, Actor: "manager-1", At: now,
	})
	require.NoError(t, err)

	rejected, err := s.Transition(ctx, "bonus-1", bonus.StatusChange{
		From: bonus.StatusRequested, To: bonus.StatusRejected,
		Actor: "finance-1", At: now, Reason: "week totals disputed",
	})
	require.NoError(t, err)
	assert.Equal(t, bonus.StatusRejected, rejected.Status)
	assert.Equal(t, "finance-1", rejected.RejectedBy)
	assert.Equal(t, "week totals disputed", rejected.RejectionReason)
}

func TestStore_Transition_UnknownID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Transition(context.Background(), "missing", bonus.StatusChange{
		From: bonus.StatusPending, To: bonus.StatusRequested, Actor: "x", At: time.Now(),
	})
	assert.ErrorIs(t, err, bonus.ErrBonusNotFound)
}

// =============================================================================
// HISTORY AND STATISTICS TESTS
// =============================================================================

func TestStore_ListBonuses_FilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for week := 1; week <= 3; week++ {
		_, err := s.UpsertPending(ctx, pendingRecord(bonus.BonusID("bonus-"+string(rune('0'+week))), week), nil)
		require.NoError(t, err)
	}

	feb := pendingRecord("bonus-feb", 2)
	feb.Bucket.Month = time.February
	_, err := s.UpsertPending(ctx, feb, nil)
	require.NoError(t, err)

	all, err := s.ListBonuses(ctx, bonus.HistoryFilter{BranchID: "b1"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Newest bucket first
	assert.Equal(t, 3, all[0].Bucket.Week)
	assert.Equal(t, time.February, all[3].Bucket.Month)

	march, err := s.ListBonuses(ctx, bonus.HistoryFilter{BranchID: "b1", Month: time.March})
	require.NoError(t, err)
	assert.Len(t, march, 3)

	none, err := s.ListBonuses(ctx, bonus.HistoryFilter{BranchID: "b1", Status: bonus.StatusApproved})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_Statistics(t *testing.T) {
	// GIVEN: Two approved records (70 + 30 over 2+1 employees), one
	//        rejected, one pending
	// THEN: TotalPaid 100, average 33.33, approval rate 0.6667, 1 pending

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	approve := func(id bonus.BonusID, week int, total string, employees int) {
		r := pendingRecord(id, week)
		r.TotalAmount = dec(total)
		r.EmployeeCount = employees
		_, err := s.UpsertPending(ctx, r, nil)
		require.NoError(t, err)
		_, err = s.Transition(ctx, id, bonus.StatusChange{From: bonus.StatusPending, To: bonus.StatusRequested, Actor: "m", At: now})
		require.NoError(t, err)
		_, err = s.Transition(ctx, id, bonus.StatusChange{From: bonus.StatusRequested, To: bonus.StatusApproved, Actor: "f", At: now})
		require.NoError(t, err)
	}

	approve("bonus-a", 1, "70", 2)
	approve("bonus-b", 2, "30", 1)

	_, err := s.UpsertPending(ctx, pendingRecord("bonus-c", 3), nil)
	require.NoError(t, err)
	_, err = s.Transition(ctx, "bonus-c", bonus.StatusChange{From: bonus.StatusPending, To: bonus.StatusRequested, Actor: "m", At: now})
	require.NoError(t, err)
	_, err = s.Transition(ctx, "bonus-c", bonus.StatusChange{From: bonus.StatusRequested, To: bonus.StatusRejected, Actor: "f", At: now, Reason: "no"})
	require.NoError(t, err)

	_, err = s.UpsertPending(ctx, pendingRecord("bonus-d", 4), nil)
	require.NoError(t, err)

	stats, err := s.GetStatistics(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRecords)
	assert.Equal(t, 1, stats.PendingCount)
	assert.True(t, stats.TotalPaid.Equal(dec("100")), "got %s", stats.TotalPaid)
	assert.True(t, stats.AveragePerEmployee.Equal(dec("33.33")), "got %s", stats.AveragePerEmployee)
	assert.True(t, stats.ApprovalRate.Equal(dec("0.6667")), "got %s", stats.ApprovalRate)
}

func TestStore_Statistics_EmptyBranch(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.GetStatistics(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRecords)
	assert.True(t, stats.TotalPaid.IsZero())
	assert.True(t, stats.ApprovalRate.IsZero())
}

// =============================================================================
// AUDIT TESTS
// =============================================================================

func TestStore_Audit_AppendOnlyOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.March, 22, 10, 0, 0, 0, time.UTC)

	for i, action := range []bonus.AuditAction{bonus.ActionRevenueSynced, bonus.ActionRequested, bonus.ActionApproved} {
		err := s.Append(ctx, bonus.AuditEntry{
			ID:        "audit-" + string(rune('a'+i)),
			BonusID:   "bonus-1",
			Action:    action,
			ActorID:   "actor-1",
			Detail:    map[string]any{"step": float64(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	entries, err := s.List(ctx, "bonus-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, bonus.ActionRevenueSynced, entries[0].Action)
	assert.Equal(t, bonus.ActionApproved, entries[2].Action)
	assert.Equal(t, float64(1), entries[1].Detail["step"], "detail survives the JSON round trip")
}

func TestStore_Audit_UnknownBonusEmpty(t *testing.T) {
	s := newTestStore(t)
	entries, err := s.List(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
