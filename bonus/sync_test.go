package bonus_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bonus-engine/bonus"
	"github.com/warp/bonus-engine/bonus/store"
	"github.com/warp/bonus-engine/factory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	store *store.Memory
	orch  *bonus.Orchestrator
	audit *bonus.AuditLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	audit := bonus.NewAuditLogger(mem)
	agg := bonus.NewAggregator(mem, mem)
	orch := bonus.NewOrchestrator(agg, factory.DefaultTierTable(), mem, mem, audit)
	return &fixture{store: mem, orch: orch, audit: audit}
}

func (f *fixture) seedBranch(t *testing.T, id bonus.BranchID) {
	t.Helper()
	err := f.store.SaveBranch(context.Background(), bonus.Branch{
		ID: id, Code: string(id), Name: "Branch " + string(id), Active: true,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func (f *fixture) seedEmployee(t *testing.T, branch bonus.BranchID, id bonus.EmployeeID, code string) {
	t.Helper()
	err := f.store.SaveEmployee(context.Background(), bonus.Employee{
		ID: id, BranchID: branch, Code: code, Name: "Employee " + code, Active: true,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

// seedRevenue records one matched day of contributions, one row per employee.
func (f *fixture) seedRevenue(t *testing.T, branch bonus.BranchID, date time.Time, amounts map[bonus.EmployeeID]string) {
	t.Helper()
	day := bonus.Day(date)
	entryID := bonus.EntryID(string(branch) + "/" + day.Format("2006-01-02"))

	var contribs []bonus.EmployeeRevenueContribution
	total := decimal.Zero
	for id, amount := range amounts {
		a := dec(amount)
		total = total.Add(a)
		contribs = append(contribs, bonus.EmployeeRevenueContribution{
			ID:         string(entryID) + "/" + string(id),
			EntryID:    entryID,
			BranchID:   branch,
			EmployeeID: id,
			Date:       day,
			Cash:       a,
			Network:    decimal.Zero,
			Total:      a,
		})
	}

	entry := bonus.DailyRevenueEntry{
		ID: entryID, BranchID: branch, Date: day,
		Cash: total, Network: decimal.Zero, Total: total, Balance: decimal.Zero,
		Matched: true, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.SaveEntry(context.Background(), entry, contribs))
}

func marchWeek3(branch bonus.BranchID) bonus.Bucket {
	return bonus.Bucket{BranchID: branch, Year: 2025, Month: time.March, Week: 3}
}

// =============================================================================
// SYNC TESTS
// =============================================================================

func TestSync_TwoEmployees_TierAssignment(t *testing.T) {
	// GIVEN: emp-a earns 900 across the week, emp-b earns 1950
	// WHEN: Syncing the bucket
	// THEN: tier_2 (20) + tier_4 (50) = 70 total, both eligible

	f := newFixture(t)
	ctx := context.Background()
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")
	f.seedEmployee(t, "b1", "emp-b", "E02")

	f.seedRevenue(t, "b1", time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "400", "emp-b": "1000"})
	f.seedRevenue(t, "b1", time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "500", "emp-b": "950"})

	result, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err)
	require.True(t, result.Synced)

	assert.Equal(t, 2, result.EmployeeCount)
	assert.Equal(t, 2, result.EligibleCount)
	assert.True(t, result.TotalAmount.Equal(dec("70")), "got %s", result.TotalAmount)

	lines, err := f.store.ListLines(ctx, result.BonusID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// Lines follow employee code order
	assert.Equal(t, bonus.Tier2, lines[0].Tier)
	assert.True(t, lines[0].WeeklyRevenue.Equal(dec("900")))
	assert.Equal(t, bonus.Tier4, lines[1].Tier)
	assert.True(t, lines[1].WeeklyRevenue.Equal(dec("1950")))
}

func TestSync_BelowThresholdEmployeeStillListed(t *testing.T) {
	// Ineligible employees appear in the breakdown with TierNone and zero.
	f := newFixture(t)
	ctx := context.Background()
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")
	f.seedEmployee(t, "b1", "emp-b", "E02")

	f.seedRevenue(t, "b1", time.Date(2025, time.March, 18, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "499.99", "emp-b": "500"})

	result, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err)
	require.True(t, result.Synced)

	assert.Equal(t, 2, result.EmployeeCount)
	assert.Equal(t, 1, result.EligibleCount)
	assert.True(t, result.TotalAmount.Equal(dec("10")))

	lines, err := f.store.ListLines(ctx, result.BonusID)
	require.NoError(t, err)
	assert.Equal(t, bonus.TierNone, lines[0].Tier)
	assert.False(t, lines[0].Eligible)
	assert.True(t, lines[0].Amount.IsZero())
}

func TestSync_Idempotent_RepeatedRunsConverge(t *testing.T) {
	// GIVEN: A bucket already synced
	// WHEN: Syncing again with unchanged revenue
	// THEN: The stored record and its lines come out identical

	f := newFixture(t)
	ctx := context.Background()
	f.orch.Now = func() time.Time {
		return time.Date(2025, time.March, 22, 9, 0, 0, 0, time.UTC)
	}
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")
	f.seedRevenue(t, "b1", time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "800"})

	first, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err)
	require.True(t, first.Synced)

	firstRecord, err := f.store.GetBonus(ctx, first.BonusID)
	require.NoError(t, err)
	firstLines, err := f.store.ListLines(ctx, first.BonusID)
	require.NoError(t, err)

	second, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err)
	require.True(t, second.Synced)

	assert.Equal(t, first.BonusID, second.BonusID, "record identity survives re-sync")

	secondRecord, err := f.store.GetBonus(ctx, second.BonusID)
	require.NoError(t, err)
	assert.Equal(t, firstRecord, secondRecord, "repeated syncs regenerate an identical record")
	assert.Equal(t, bonus.StatusPending, secondRecord.Status)

	secondLines, err := f.store.ListLines(ctx, second.BonusID)
	require.NoError(t, err)
	assert.Equal(t, firstLines, secondLines, "repeated syncs regenerate identical lines")
}

func TestSync_ResyncPicksUpLateRevenue(t *testing.T) {
	// A pending record is rewritten when new revenue lands in its week.
	f := newFixture(t)
	ctx := context.Background()
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")
	f.seedRevenue(t, "b1", time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "600"})

	first, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err)
	assert.True(t, first.TotalAmount.Equal(dec("10")))

	// Late entry pushes the week over the tier_3 threshold
	f.seedRevenue(t, "b1", time.Date(2025, time.March, 22, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "500"})

	second, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err)
	assert.Equal(t, first.BonusID, second.BonusID)
	assert.True(t, second.TotalAmount.Equal(dec("35")), "got %s", second.TotalAmount)
}

func TestSync_FrozenRecordRefused(t *testing.T) {
	// GIVEN: A bucket whose record has been requested
	// WHEN: Syncing that bucket again
	// THEN: Refused with a reason; the record keeps its old totals

	f := newFixture(t)
	ctx := context.Background()
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")
	f.seedRevenue(t, "b1", time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "800"})

	first, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err)

	lifecycle := bonus.NewLifecycle(f.store, f.audit, nil, nil)
	_, err = lifecycle.Request(ctx, first.BonusID, "manager-1")
	require.NoError(t, err)

	f.seedRevenue(t, "b1", time.Date(2025, time.March, 22, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "5000"})

	refused, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err, "a frozen bucket is an outcome, not a fault")
	assert.False(t, refused.Synced)
	assert.NotEmpty(t, refused.Reason)
	assert.Equal(t, first.BonusID, refused.BonusID)

	record, err := f.store.GetBonus(ctx, first.BonusID)
	require.NoError(t, err)
	assert.True(t, record.TotalAmount.Equal(first.TotalAmount), "frozen totals untouched")
}

func TestSync_NoActiveEmployees(t *testing.T) {
	f := newFixture(t)
	f.seedBranch(t, "b1")

	result, err := f.orch.SyncWeeklyRevenue(context.Background(), marchWeek3("b1"), "system")
	require.NoError(t, err)
	assert.False(t, result.Synced)
	assert.Equal(t, "No active employees", result.Reason)
}

func TestSync_NoRevenueData(t *testing.T) {
	f := newFixture(t)
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")

	result, err := f.orch.SyncWeeklyRevenue(context.Background(), marchWeek3("b1"), "system")
	require.NoError(t, err)
	assert.False(t, result.Synced)
	assert.Equal(t, "No daily revenues found", result.Reason)
}

func TestSync_Week5OfFebruaryHasNoData(t *testing.T) {
	// Week 5 does not exist in February; the sync reports no revenue rather
	// than erroring.
	f := newFixture(t)
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")

	bucket := bonus.Bucket{BranchID: "b1", Year: 2025, Month: time.February, Week: 5}
	result, err := f.orch.SyncWeeklyRevenue(context.Background(), bucket, "system")
	require.NoError(t, err)
	assert.False(t, result.Synced)
	assert.Equal(t, "No daily revenues found", result.Reason)
}

func TestSync_InvalidBucketRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.SyncWeeklyRevenue(context.Background(),
		bonus.Bucket{BranchID: "", Year: 2025, Month: time.March, Week: 3}, "system")
	require.Error(t, err)
	assert.True(t, bonus.IsClientError(err))
}

func TestSync_WritesAuditEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")
	f.seedRevenue(t, "b1", time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "800"})

	result, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err)

	entries, err := f.audit.History(ctx, result.BonusID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, bonus.ActionRevenueSynced, entries[0].Action)
	assert.Equal(t, "manager-1", entries[0].ActorID)
	assert.Equal(t, marchWeek3("b1").String(), entries[0].Detail["bucket"])
}

func TestSync_InactiveEmployeeContributionsIgnored(t *testing.T) {
	// Contributions from a deactivated employee drop out of the aggregate.
	f := newFixture(t)
	ctx := context.Background()
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")
	f.seedEmployee(t, "b1", "emp-b", "E02")
	f.seedRevenue(t, "b1", time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
		map[bonus.EmployeeID]string{"emp-a": "800", "emp-b": "800"})

	// Deactivate emp-b after the revenue landed
	require.NoError(t, f.store.SaveEmployee(ctx, bonus.Employee{
		ID: "emp-b", BranchID: "b1", Code: "E02", Name: "Employee E02", Active: false,
	}))

	result, err := f.orch.SyncWeeklyRevenue(ctx, marchWeek3("b1"), "manager-1")
	require.NoError(t, err)
	require.True(t, result.Synced)
	assert.Equal(t, 1, result.EmployeeCount)
}

// =============================================================================
// SWEEP TESTS
// =============================================================================

func TestSweep_PerBranchIsolation(t *testing.T) {
	// GIVEN: Three branches; one has revenue, one has no employees, one has
	//        employees but no revenue
	// WHEN: Sweeping on a closing day
	// THEN: One succeeds, two report reasons; nothing aborts

	f := newFixture(t)
	ctx := context.Background()
	f.seedBranch(t, "b1")
	f.seedBranch(t, "b2")
	f.seedBranch(t, "b3")
	f.seedEmployee(t, "b1", "emp-a", "E01")
	f.seedEmployee(t, "b3", "emp-c", "E03")

	closing := time.Date(2025, time.March, 22, 0, 0, 0, 0, time.UTC)
	f.seedRevenue(t, "b1", closing, map[bonus.EmployeeID]string{"emp-a": "800"})

	result, err := f.orch.Sweep(ctx, closing, "system")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Results, 3)

	// Branches are swept in code order
	assert.True(t, result.Results[0].Synced)
	assert.Equal(t, "No active employees", result.Results[1].Reason)
	assert.Equal(t, "No daily revenues found", result.Results[2].Reason)
}

func TestSweep_TargetsBucketOfToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")

	day := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC) // closes week 2
	f.seedRevenue(t, "b1", day, map[bonus.EmployeeID]string{"emp-a": "800"})

	result, err := f.orch.Sweep(ctx, day, "system")
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, 2, result.Results[0].Bucket.Week)
	assert.True(t, result.Results[0].Synced)
}

func TestSweep_RerunSameDayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedBranch(t, "b1")
	f.seedEmployee(t, "b1", "emp-a", "E01")

	day := time.Date(2025, time.March, 22, 0, 0, 0, 0, time.UTC)
	f.seedRevenue(t, "b1", day, map[bonus.EmployeeID]string{"emp-a": "800"})

	first, err := f.orch.Sweep(ctx, day, "system")
	require.NoError(t, err)
	second, err := f.orch.Sweep(ctx, day, "system")
	require.NoError(t, err)

	assert.Equal(t, first.Results[0].BonusID, second.Results[0].BonusID)
	assert.Equal(t, 1, second.Succeeded)
}
