package bonus_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/bonus-engine/bonus"
	"github.com/warp/bonus-engine/factory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// ASSIGNMENT TESTS
// =============================================================================

func TestTierTable_Assign_DefaultTable(t *testing.T) {
	table := factory.DefaultTierTable()

	cases := []struct {
		revenue  string
		tier     bonus.Tier
		amount   string
		eligible bool
	}{
		{"0", bonus.TierNone, "0", false},
		{"499.99", bonus.TierNone, "0", false},
		{"500", bonus.Tier1, "10", true}, // exact threshold is inclusive
		{"749.99", bonus.Tier1, "10", true},
		{"750", bonus.Tier2, "20", true},
		{"900", bonus.Tier2, "20", true},
		{"1000", bonus.Tier3, "35", true},
		{"1499.99", bonus.Tier3, "35", true},
		{"1500", bonus.Tier4, "50", true},
		{"1950", bonus.Tier4, "50", true},
		{"2000", bonus.Tier5, "75", true},
		{"99999", bonus.Tier5, "75", true},
	}

	for _, c := range cases {
		a := table.Assign(dec(c.revenue))
		if a.Tier != c.tier {
			t.Errorf("revenue %s: got tier %s, want %s", c.revenue, a.Tier, c.tier)
		}
		if !a.Amount.Equal(dec(c.amount)) {
			t.Errorf("revenue %s: got amount %s, want %s", c.revenue, a.Amount, c.amount)
		}
		if a.Eligible != c.eligible {
			t.Errorf("revenue %s: got eligible %v, want %v", c.revenue, a.Eligible, c.eligible)
		}
	}
}

func TestTierTable_Assign_NegativeRevenue(t *testing.T) {
	// Refund-heavy weeks can push revenue below zero; never eligible.
	table := factory.DefaultTierTable()
	a := table.Assign(dec("-120.50"))
	if a.Eligible || a.Tier != bonus.TierNone || !a.Amount.IsZero() {
		t.Fatalf("negative revenue: got %+v, want ineligible TierNone", a)
	}
}

// =============================================================================
// TABLE VALIDATION TESTS
// =============================================================================

func validBands() []bonus.Band {
	return []bonus.Band{
		{Tier: bonus.Tier1, Threshold: dec("500"), Amount: dec("10")},
		{Tier: bonus.Tier2, Threshold: dec("750"), Amount: dec("20")},
		{Tier: bonus.Tier3, Threshold: dec("1000"), Amount: dec("35")},
		{Tier: bonus.Tier4, Threshold: dec("1500"), Amount: dec("50")},
		{Tier: bonus.Tier5, Threshold: dec("2000"), Amount: dec("75")},
	}
}

func TestNewTierTable_Valid(t *testing.T) {
	table, err := bonus.NewTierTable(validBands())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Bands()) != 5 {
		t.Fatalf("expected 5 bands, got %d", len(table.Bands()))
	}
}

func TestNewTierTable_WrongBandCount(t *testing.T) {
	_, err := bonus.NewTierTable(validBands()[:3])
	if err == nil {
		t.Fatal("expected error for 3 bands")
	}
	if !bonus.IsClientError(err) {
		t.Errorf("expected a client error, got %v", err)
	}
}

func TestNewTierTable_NonAscendingThresholds(t *testing.T) {
	bands := validBands()
	bands[2].Threshold = dec("700") // below tier_2
	if _, err := bonus.NewTierTable(bands); err == nil {
		t.Fatal("expected error for non-ascending thresholds")
	}

	bands = validBands()
	bands[1].Threshold = dec("500") // equal to tier_1, must be strictly greater
	if _, err := bonus.NewTierTable(bands); err == nil {
		t.Fatal("expected error for equal thresholds")
	}
}

func TestNewTierTable_NegativeValues(t *testing.T) {
	bands := validBands()
	bands[0].Amount = dec("-10")
	if _, err := bonus.NewTierTable(bands); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestNewTierTable_OutOfOrderTiers(t *testing.T) {
	bands := validBands()
	bands[0].Tier, bands[1].Tier = bands[1].Tier, bands[0].Tier
	if _, err := bonus.NewTierTable(bands); err == nil {
		t.Fatal("expected error for out-of-order tier names")
	}
}

func TestNewTierTable_CopiesInput(t *testing.T) {
	// Mutating the caller's slice after construction must not leak in.
	bands := validBands()
	table, err := bonus.NewTierTable(bands)
	if err != nil {
		t.Fatal(err)
	}
	bands[4].Amount = dec("9999")
	if !table.Bands()[4].Amount.Equal(dec("75")) {
		t.Fatal("table shares memory with caller's band slice")
	}
}
