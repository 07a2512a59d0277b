/*
aggregate.go - Weekly revenue aggregation per employee

PURPOSE:
  Sums each active employee's revenue contributions across all daily
  entries belonging to one bucket. The output feeds the tier engine.

NO-DATA SEMANTICS:
  "No data" is distinguishable from "zero revenue": a bucket with no
  active employees fails with ErrNoActiveEmployees and a bucket with no
  contribution rows fails with ErrNoRevenueData, so the orchestrator can
  report a descriptive failure instead of silently producing an empty
  bonus record. An employee whose contributions sum to zero still appears
  with a zero total.

ORDERING:
  Output is ordered by employee code. The orchestrator depends on this for
  idempotent, byte-identical line regeneration.

SEE ALSO:
  - week.go: BucketRange bounds the contribution query
  - sync.go: the only caller
*/
package bonus

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// WeeklyContribution is one employee's aggregated revenue for a bucket.
type WeeklyContribution struct {
	EmployeeID    EmployeeID
	EmployeeCode  string
	EmployeeName  string
	WeeklyRevenue decimal.Decimal
}

// Aggregator computes per-employee weekly revenue totals.
type Aggregator struct {
	Directory DirectoryStore
	Revenue   RevenueStore
}

func NewAggregator(directory DirectoryStore, revenue RevenueStore) *Aggregator {
	return &Aggregator{Directory: directory, Revenue: revenue}
}

// Aggregate sums contributions per active employee for the bucket.
// Only employees with at least one contribution row that week appear in
// the result; contributions from employees no longer active are ignored.
func (a *Aggregator) Aggregate(ctx context.Context, bucket Bucket) ([]WeeklyContribution, error) {
	if err := bucket.Validate(); err != nil {
		return nil, err
	}

	employees, err := a.Directory.ListActiveEmployees(ctx, bucket.BranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	if len(employees) == 0 {
		return nil, fmt.Errorf("branch %s: %w", bucket.BranchID, ErrNoActiveEmployees)
	}

	from, to, ok := BucketRange(bucket.Year, bucket.Month, bucket.Week)
	if !ok {
		// Week 5 of a short month has no days, hence no revenue.
		return nil, fmt.Errorf("bucket %s: %w", bucket, ErrNoRevenueData)
	}

	contribs, err := a.Revenue.ListContributions(ctx, bucket.BranchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	if len(contribs) == 0 {
		return nil, fmt.Errorf("bucket %s: %w", bucket, ErrNoRevenueData)
	}

	totals := make(map[EmployeeID]decimal.Decimal, len(employees))
	for _, c := range contribs {
		totals[c.EmployeeID] = totals[c.EmployeeID].Add(c.Total)
	}

	// employees is already ordered by code (DirectoryStore contract).
	var out []WeeklyContribution
	for _, e := range employees {
		total, contributed := totals[e.ID]
		if !contributed {
			continue
		}
		out = append(out, WeeklyContribution{
			EmployeeID:    e.ID,
			EmployeeCode:  e.Code,
			EmployeeName:  e.Name,
			WeeklyRevenue: total,
		})
	}
	if len(out) == 0 {
		// Every contribution row belongs to an inactive employee.
		return nil, fmt.Errorf("bucket %s: %w", bucket, ErrNoActiveEmployees)
	}
	return out, nil
}
