package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bonus-engine/bonus"
	"github.com/warp/bonus-engine/factory"
)

func TestParseTierTable_Valid(t *testing.T) {
	table, err := factory.ParseTierTable([]byte(`{
		"tiers": [
			{"tier": "tier_1", "threshold": "100", "bonus": "5"},
			{"tier": "tier_2", "threshold": "200", "bonus": "10"},
			{"tier": "tier_3", "threshold": "300", "bonus": "15"},
			{"tier": "tier_4", "threshold": "400", "bonus": "20"},
			{"tier": "tier_5", "threshold": "500", "bonus": "25"}
		]
	}`))
	require.NoError(t, err)

	a := table.Assign(decimal.RequireFromString("250"))
	assert.Equal(t, bonus.Tier2, a.Tier)
	assert.Equal(t, "10", a.Amount.String())
}

func TestParseTierTable_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"malformed JSON", `{"tiers": [`},
		{"non-decimal threshold", `{"tiers": [
			{"tier": "tier_1", "threshold": "abc", "bonus": "5"},
			{"tier": "tier_2", "threshold": "200", "bonus": "10"},
			{"tier": "tier_3", "threshold": "300", "bonus": "15"},
			{"tier": "tier_4", "threshold": "400", "bonus": "20"},
			{"tier": "tier_5", "threshold": "500", "bonus": "25"}
		]}`},
		{"missing bands", `{"tiers": [
			{"tier": "tier_1", "threshold": "100", "bonus": "5"}
		]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := factory.ParseTierTable([]byte(c.json))
			assert.Error(t, err)
		})
	}
}

func TestDefaultTierTable_Boundaries(t *testing.T) {
	table := factory.DefaultTierTable()
	bands := table.Bands()
	require.Len(t, bands, 5)
	assert.Equal(t, "500", bands[0].Threshold.String())
	assert.Equal(t, "2000", bands[4].Threshold.String())
	assert.Equal(t, "75", bands[4].Amount.String())
}

func TestLoadTierTable_MissingFile(t *testing.T) {
	_, err := factory.LoadTierTable("/nonexistent/tiers.json")
	assert.Error(t, err)
}
