/*
Package factory provides JSON to Go tier-table conversion.

PURPOSE:
  Converts JSON tier definitions into a bonus.TierTable. Tier boundaries
  and bonus amounts are configuration, not code: finance can adjust the
  thresholds in JSON without a deploy, and the engine only ever sees a
  validated table.

JSON SCHEMA:
  {
    "tiers": [
      {"tier": "tier_1", "threshold": "500",  "bonus": "10"},
      {"tier": "tier_2", "threshold": "750",  "bonus": "20"},
      {"tier": "tier_3", "threshold": "1000", "bonus": "35"},
      {"tier": "tier_4", "threshold": "1500", "bonus": "50"},
      {"tier": "tier_5", "threshold": "2000", "bonus": "75"}
    ]
  }

  Thresholds and bonuses are JSON strings so they parse through decimal
  without ever touching float64.

USAGE:
  table, err := factory.ParseTierTable(jsonBytes)
  table, err := factory.LoadTierTable("./tiers.json")
  table := factory.DefaultTierTable() // built-in defaults

SEE ALSO:
  - bonus/tier.go: TierTable validation and assignment
  - cmd/server/main.go: loads the table at startup via -tiers
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/warp/bonus-engine/bonus"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TierTableJSON is the JSON representation of a tier table.
type TierTableJSON struct {
	Tiers []TierJSON `json:"tiers"`
}

// TierJSON is one tier band. Threshold and Bonus are decimal strings.
type TierJSON struct {
	Tier      string `json:"tier"`
	Threshold string `json:"threshold"`
	Bonus     string `json:"bonus"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseTierTable parses and validates a JSON tier table.
func ParseTierTable(data []byte) (bonus.TierTable, error) {
	var cfg TierTableJSON
	if err := json.Unmarshal(data, &cfg); err != nil {
		return bonus.TierTable{}, fmt.Errorf("invalid tier config JSON: %w", err)
	}

	bands := make([]bonus.Band, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		threshold, err := decimal.NewFromString(t.Threshold)
		if err != nil {
			return bonus.TierTable{}, fmt.Errorf("tier %s: invalid threshold %q: %w", t.Tier, t.Threshold, err)
		}
		amount, err := decimal.NewFromString(t.Bonus)
		if err != nil {
			return bonus.TierTable{}, fmt.Errorf("tier %s: invalid bonus %q: %w", t.Tier, t.Bonus, err)
		}
		bands = append(bands, bonus.Band{
			Tier:      bonus.Tier(t.Tier),
			Threshold: threshold,
			Amount:    amount,
		})
	}

	return bonus.NewTierTable(bands)
}

// LoadTierTable reads and parses a tier table from a JSON file.
func LoadTierTable(path string) (bonus.TierTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bonus.TierTable{}, fmt.Errorf("failed to read tier config: %w", err)
	}
	return ParseTierTable(data)
}

// DefaultTierTable returns the built-in tier table, used when no config
// file is supplied.
func DefaultTierTable() bonus.TierTable {
	table, err := ParseTierTable([]byte(`{
		"tiers": [
			{"tier": "tier_1", "threshold": "500",  "bonus": "10"},
			{"tier": "tier_2", "threshold": "750",  "bonus": "20"},
			{"tier": "tier_3", "threshold": "1000", "bonus": "35"},
			{"tier": "tier_4", "threshold": "1500", "bonus": "50"},
			{"tier": "tier_5", "threshold": "2000", "bonus": "75"}
		]
	}`))
	if err != nil {
		panic(err) // built-in config is under test
	}
	return table
}
