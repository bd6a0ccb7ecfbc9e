package movements

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDetail is returned when a detail dl lacks its dt or dd.
var ErrMalformedDetail = errors.New("malformed detail entry")

// labelSeparator trails every dt label ("Concepto:").
const labelSeparator = ":"

// Detail is one label/value entry of a detail row.
type Detail struct {
	Label string
	Value string
}

// Details reads the dl entries of a detail row. Each dl contributes its
// first dt as the label (separator stripped) and its first dd as the value.
// Values are only trimmed; line breaks inside them are kept.
func (r Row) Details() ([]Detail, error) {
	var details []Detail
	for i, dl := range findAll(r.node, "dl") {
		dt := findFirst(dl, "dt")
		dd := findFirst(dl, "dd")
		if dt == nil || dd == nil {
			return nil, fmt.Errorf("%w: dl %d", ErrMalformedDetail, i+1)
		}
		label := strings.TrimSpace(strings.TrimSuffix(textContent(dt), labelSeparator))
		details = append(details, Detail{Label: label, Value: strings.TrimSpace(rawText(dd))})
	}
	return details, nil
}
