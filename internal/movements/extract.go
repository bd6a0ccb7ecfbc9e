package movements

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/movements-dev/triodos-movements/internal/config"
	"github.com/movements-dev/triodos-movements/internal/model"
)

// ErrMissingCell is returned when a summary row has fewer cells than the column map needs.
var ErrMissingCell = errors.New("missing cell")

// Schema describes how rendered rows map onto Movement fields.
type Schema struct {
	DetailClass string
	Columns     config.ColumnsConfig
	Labels      map[string]string // detail label -> config.Field*
}

// SchemaFromConfig builds the extraction schema from a loaded config.
func SchemaFromConfig(cfg *config.Config) Schema {
	return Schema{
		DetailClass: cfg.DetailClass,
		Columns:     cfg.Columns,
		Labels:      cfg.DetailLabels,
	}
}

// Extractor turns one rendered results page into Movements.
type Extractor struct {
	schema  Schema
	workers int
}

// NewExtractor creates an Extractor for schema.
func NewExtractor(schema Schema) *Extractor {
	return &Extractor{schema: schema, workers: runtime.GOMAXPROCS(0)}
}

// Extract parses the movements table HTML and returns one Movement per
// summary row, in document order. Rows are converted concurrently.
func (e *Extractor) Extract(ctx context.Context, tableHTML string) ([]model.Movement, error) {
	rows, err := ParseRows(strings.NewReader(tableHTML))
	if err != nil {
		return nil, err
	}
	pairs := PairRows(rows, e.schema.DetailClass)

	out := make([]model.Movement, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := e.movement(p)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Extractor) movement(p Pair) (model.Movement, error) {
	cells := p.Summary.Cells()
	cell := func(name string, idx int) (string, error) {
		if idx >= len(cells) {
			return "", fmt.Errorf("%w: %s is column %d but row has %d cells", ErrMissingCell, name, idx, len(cells))
		}
		return cells[idx], nil
	}

	cols := e.schema.Columns
	execution, err := cell("date_execution", cols.DateExecution)
	if err != nil {
		return model.Movement{}, err
	}
	value, err := cell("date_value", cols.DateValue)
	if err != nil {
		return model.Movement{}, err
	}
	desc, err := cell("description", cols.Description)
	if err != nil {
		return model.Movement{}, err
	}
	rawAmount, err := cell("amount", cols.Amount)
	if err != nil {
		return model.Movement{}, err
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return model.Movement{}, err
	}

	m := model.Movement{
		DateExecution: execution,
		DateValue:     value,
		Description:   desc,
		Amount:        amount,
	}
	if p.Detail == nil {
		return m, nil
	}

	details, err := p.Detail.Details()
	if err != nil {
		return model.Movement{}, err
	}
	for _, d := range details {
		v := d.Value
		switch e.schema.Labels[d.Label] {
		case config.FieldOperation:
			m.Operation = &v
		case config.FieldEstablishment:
			m.Establishment = &v
		case config.FieldConcept:
			m.Concept = &v
		case config.FieldRefN:
			m.RefN = &v
		}
	}
	return m, nil
}
