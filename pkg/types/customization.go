package types

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomizationSelection is one selected option frozen at resolve time.
// Later catalog price or name changes never alter an existing snapshot.
type CustomizationSelection struct {
	OptionID   uuid.UUID       `json:"option_id"`
	OptionName string          `json:"option_name"`
	GroupID    uuid.UUID       `json:"group_id"`
	GroupName  string          `json:"group_name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// CustomizationSnapshot is the ordered selection list persisted as jsonb on
// cart lines and order lines.
type CustomizationSnapshot []CustomizationSelection

// Canonical returns a copy sorted by option id. Two customers picking the
// same options in different click order produce the same canonical snapshot,
// which is what cart-line deduplication compares.
func (s CustomizationSnapshot) Canonical() CustomizationSnapshot {
	out := make(CustomizationSnapshot, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool {
		return out[i].OptionID.String() < out[j].OptionID.String()
	})
	return out
}

// Fingerprint returns a stable string key for the canonical snapshot,
// suitable as a dedupe key alongside the menu item id.
func (s CustomizationSnapshot) Fingerprint() string {
	canonical := s.Canonical()
	raw, err := json.Marshal(canonical)
	if err != nil {
		return ""
	}
	return string(raw)
}

// PriceDeltaSum totals the price adjustments of every selected option.
func (s CustomizationSnapshot) PriceDeltaSum() decimal.Decimal {
	sum := decimal.Zero
	for _, sel := range s {
		sum = sum.Add(sel.PriceDelta)
	}
	return sum
}
