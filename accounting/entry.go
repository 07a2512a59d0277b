/*
entry.go - Daily revenue entry construction

PURPOSE:
  Turns a submitted day of figures (branch totals plus per-employee
  contributions) into a validated DailyRevenueEntry ready for persistence.
  The builder runs the validator and enforces the mismatch-reason rule:
  unmatched entries persist, but only with an explanation.

OWNERSHIP:
  Entries are created once per branch/day by the revenue-entry workflow
  and consumed read-only by the bonus engine afterwards.

SEE ALSO:
  - validator.go: the identity checks
  - api/handlers.go: SubmitRevenue wires this to the HTTP surface
*/
package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/bonus-engine/bonus"
)

// ContributionInput is one employee's share of the submitted day.
type ContributionInput struct {
	EmployeeID bonus.EmployeeID
	Cash       decimal.Decimal
	Network    decimal.Decimal
}

// EntryInput is one submitted branch-day of figures. Total and Balance are
// computed upstream and re-checked here, not derived.
type EntryInput struct {
	BranchID bonus.BranchID
	Date     time.Time

	Cash    decimal.Decimal
	Network decimal.Decimal
	Total   decimal.Decimal
	Balance decimal.Decimal

	Contributions []ContributionInput

	// MismatchReason is mandatory when the identities do not hold.
	MismatchReason string
}

// BuildEntry validates the submitted figures and assembles the entry and
// its contribution rows. When the identities fail and no mismatch reason
// was supplied, an InputError is returned and nothing may be persisted.
func BuildEntry(in EntryInput, now time.Time) (bonus.DailyRevenueEntry, []bonus.EmployeeRevenueContribution, Result, error) {
	if in.BranchID == "" {
		return bonus.DailyRevenueEntry{}, nil, Result{}, &bonus.InputError{Field: "branch_id", Message: "branch id is required"}
	}
	if len(in.Contributions) == 0 {
		return bonus.DailyRevenueEntry{}, nil, Result{}, &bonus.InputError{Field: "contributions", Message: "at least one contribution is required"}
	}

	employeeTotal := decimal.Zero
	for _, c := range in.Contributions {
		employeeTotal = employeeTotal.Add(c.Cash).Add(c.Network)
	}

	result := Validate(in.Cash, in.Network, in.Total, in.Balance, employeeTotal)
	if !result.Matched && in.MismatchReason == "" {
		return bonus.DailyRevenueEntry{}, nil, result, &bonus.InputError{
			Field:   "mismatch_reason",
			Message: "mismatch reason is required when the accounting identity does not hold",
		}
	}

	day := bonus.Day(in.Date)
	entry := bonus.DailyRevenueEntry{
		ID:        bonus.EntryID(uuid.NewString()),
		BranchID:  in.BranchID,
		Date:      day,
		Cash:      in.Cash,
		Network:   in.Network,
		Total:     in.Total,
		Balance:   in.Balance,
		Matched:   result.Matched,
		CreatedAt: now.UTC(),
	}
	if !result.Matched {
		entry.MismatchReason = in.MismatchReason
	}

	contribs := make([]bonus.EmployeeRevenueContribution, 0, len(in.Contributions))
	for _, c := range in.Contributions {
		contribs = append(contribs, bonus.EmployeeRevenueContribution{
			ID:         uuid.NewString(),
			EntryID:    entry.ID,
			BranchID:   in.BranchID,
			EmployeeID: c.EmployeeID,
			Date:       day,
			Cash:       c.Cash,
			Network:    c.Network,
			Total:      c.Cash.Add(c.Network),
		})
	}

	return entry, contribs, result, nil
}
