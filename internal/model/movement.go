package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Movement is one transaction row from the bank's movement listing.
// The enrichment fields are nil unless a detail row was matched.
type Movement struct {
	DateExecution string          `json:"dateExecution"`
	DateValue     string          `json:"dateValue"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"` // negative = charge, positive = credit
	Operation     *string         `json:"operation"`
	Establishment *string         `json:"establishment"`
	Concept       *string         `json:"concept"`
	RefN          *string         `json:"refN"`
}

// HasDetails reports whether any enrichment field is set.
func (m Movement) HasDetails() bool {
	return m.Operation != nil || m.Establishment != nil || m.Concept != nil || m.RefN != nil
}

// MarshalJSON writes Amount as a JSON number instead of decimal's quoted string.
func (m Movement) MarshalJSON() ([]byte, error) {
	type plain Movement
	return json.Marshal(struct {
		plain
		Amount json.Number `json:"amount"`
	}{
		plain:  plain(m),
		Amount: json.Number(m.Amount.String()),
	})
}

// Reverse reverses movements in place.
func Reverse(movs []Movement) {
	for i, j := 0, len(movs)-1; i < j; i, j = i+1, j-1 {
		movs[i], movs[j] = movs[j], movs[i]
	}
}

// Deref returns the value of an optional field, or "" when absent.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
