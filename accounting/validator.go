/*
Package accounting validates daily revenue entries against the
double-entry-style balance identity.

PURPOSE:
  Before a day's revenue entry is persisted, three identities must hold:

    1. balance        == network
    2. total          == cash + network
    3. employee total == total

  Each rule is checked and reported independently. A violation does not
  block persistence: the entry is stored flagged unmatched, but a
  human-supplied mismatch reason becomes mandatory.

PRECISION:
  All amounts are decimal.Decimal. Comparisons use an absolute tolerance
  of 0.01 to absorb rounding from upstream systems; monetary values are
  never compared with exact equality and never pass through float64.

SEE ALSO:
  - entry.go: builds a DailyRevenueEntry from submitted figures
  - bonus/sync.go: consumes the persisted entries downstream
*/
package accounting

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tolerance is the absolute difference within which two monetary amounts
// are considered equal.
var Tolerance = decimal.NewFromFloat(0.01)

// Result is the validator's verdict. Reasons lists every violated
// identity; an empty list means Matched=true.
type Result struct {
	Matched bool
	Reasons []string
}

// Validate checks the three accounting identities independently.
func Validate(cash, network, total, balance, employeeTotal decimal.Decimal) Result {
	var reasons []string

	if !within(balance, network) {
		reasons = append(reasons, fmt.Sprintf(
			"balance %s does not equal network %s", balance, network))
	}
	if !within(total, cash.Add(network)) {
		reasons = append(reasons, fmt.Sprintf(
			"total %s does not equal cash %s + network %s", total, cash, network))
	}
	if !within(employeeTotal, total) {
		reasons = append(reasons, fmt.Sprintf(
			"employee total %s does not equal total %s", employeeTotal, total))
	}

	return Result{Matched: len(reasons) == 0, Reasons: reasons}
}

// within reports |a-b| <= Tolerance.
func within(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}
