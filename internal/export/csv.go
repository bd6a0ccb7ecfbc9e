package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/movements-dev/triodos-movements/internal/model"
)

// Header is the CSV header row.
const Header = "date_execution,date_value,description,amount,operation,establishment,concept,ref_n"

// WriteCSV writes movs (including header). Absent enrichment fields are empty cells.
func WriteCSV(w io.Writer, movs []model.Movement) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, m := range movs {
		if err := cw.Write(MarshalMovement(m)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalMovement converts a movement to a CSV record.
func MarshalMovement(m model.Movement) []string {
	return []string{
		m.DateExecution,
		m.DateValue,
		m.Description,
		m.Amount.StringFixed(2),
		model.Deref(m.Operation),
		model.Deref(m.Establishment),
		model.Deref(m.Concept),
		model.Deref(m.RefN),
	}
}
