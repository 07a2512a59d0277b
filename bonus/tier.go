/*
tier.go - Weekly revenue to bonus tier mapping

PURPOSE:
  Maps an employee's aggregated weekly revenue onto a discrete bonus tier
  and a bonus amount. Tier boundaries and their amounts are configuration,
  not constants baked into this package: the table is passed in, so
  thresholds can change without touching aggregation logic.

TIER MODEL:
  A TierTable holds five bands ordered by ascending threshold. Revenue at
  or above a band's threshold (and below the next band's) earns that band's
  bonus. Revenue below the lowest threshold maps to TierNone with a zero
  bonus and Eligible=false; such employees still appear in the per-employee
  breakdown for visibility.

EXAMPLE:
  table, _ := bonus.NewTierTable([]bonus.Band{
      {Tier: bonus.Tier1, Threshold: dec("500"),  Amount: dec("10")},
      {Tier: bonus.Tier2, Threshold: dec("750"),  Amount: dec("20")},
      ...
  })
  a := table.Assign(dec("900")) // => Tier2, 20, eligible

SEE ALSO:
  - factory/tiers.go: builds a TierTable from JSON configuration
  - sync.go: applies the table per aggregated employee
*/
package bonus

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIERS
// =============================================================================

type Tier string

const (
	TierNone Tier = "none"
	Tier1    Tier = "tier_1"
	Tier2    Tier = "tier_2"
	Tier3    Tier = "tier_3"
	Tier4    Tier = "tier_4"
	Tier5    Tier = "tier_5"
)

// Band is one tier boundary: revenue at or above Threshold earns Amount.
type Band struct {
	Tier      Tier
	Threshold decimal.Decimal
	Amount    decimal.Decimal
}

// TierTable is an ordered set of bands, ascending by threshold.
// Construct via NewTierTable, which validates the ordering.
type TierTable struct {
	bands []Band
}

// NewTierTable validates the bands and returns a table. Bands must be
// strictly ascending by threshold, with exactly one band per tier 1-5 in
// order, non-negative thresholds and amounts.
func NewTierTable(bands []Band) (TierTable, error) {
	expected := []Tier{Tier1, Tier2, Tier3, Tier4, Tier5}
	if len(bands) != len(expected) {
		return TierTable{}, &InputError{Field: "tiers", Message: fmt.Sprintf("expected %d bands, got %d", len(expected), len(bands))}
	}
	for i, b := range bands {
		if b.Tier != expected[i] {
			return TierTable{}, &InputError{Field: "tiers", Message: fmt.Sprintf("band %d: expected %s, got %s", i, expected[i], b.Tier)}
		}
		if b.Threshold.IsNegative() || b.Amount.IsNegative() {
			return TierTable{}, &InputError{Field: "tiers", Message: fmt.Sprintf("band %s: negative threshold or amount", b.Tier)}
		}
		if i > 0 && !b.Threshold.GreaterThan(bands[i-1].Threshold) {
			return TierTable{}, &InputError{Field: "tiers", Message: fmt.Sprintf("band %s: threshold must exceed %s", b.Tier, bands[i-1].Tier)}
		}
	}
	out := make([]Band, len(bands))
	copy(out, bands)
	return TierTable{bands: out}, nil
}

// Bands returns a copy of the table's bands, ascending by threshold.
func (t TierTable) Bands() []Band {
	out := make([]Band, len(t.bands))
	copy(out, t.bands)
	return out
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

// Assignment is the tier decision for one employee-week.
type Assignment struct {
	Tier     Tier
	Amount   decimal.Decimal
	Eligible bool
}

// Assign maps weekly revenue to a tier. Revenue below the lowest threshold
// yields TierNone, a zero amount and Eligible=false.
func (t TierTable) Assign(weeklyRevenue decimal.Decimal) Assignment {
	// Walk from the highest band down; the first threshold met wins.
	for i := len(t.bands) - 1; i >= 0; i-- {
		b := t.bands[i]
		if weeklyRevenue.GreaterThanOrEqual(b.Threshold) {
			return Assignment{Tier: b.Tier, Amount: b.Amount, Eligible: true}
		}
	}
	return Assignment{Tier: TierNone, Amount: decimal.Zero, Eligible: false}
}
