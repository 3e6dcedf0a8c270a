// Package blocks parses packed "label + numeric run" blocks out of raw grid
// rows, along with the financial number formats found in statements.
package blocks

import (
	"strings"

	"github.com/shopspring/decimal"

	"statement_stitch/pkg/models"
)

// Outcome classifies the result of parsing one cell as a financial number.
type Outcome int

const (
	// NotNumeric means the text is not a number (labels, blanks, percentages).
	NotNumeric Outcome = iota
	// Numeric means a value was parsed.
	Numeric
	// Missing means the text is a placeholder such as "—" or "N/A". The
	// value is absent but the cell still belongs to a numeric run.
	Missing
)

// placeholders are the texts that stand for a missing value. Compared
// lower-cased after trimming.
var placeholders = map[string]bool{
	"—":   true,
	"–":   true,
	"-":   true,
	"--":  true,
	"n/a": true,
	"na":  true,
	"n/m": true,
	"nm":  true,
}

var currencySymbols = []string{"$", "€", "£", "¥", "₹"}

// ParseNumber parses accounting-formatted text.
//
//   - thousands separators: "1,234" -> 1234
//   - leading currency symbol: "$1,234" -> 1234
//   - parentheses negatives: "(1,234)" or "($1,234)" -> -1234
//   - leading minus: "-12.5" -> -12.5
//   - trailing percent is rejected: "12%" is NotNumeric
//   - placeholders ("—", "–", "-", "N/A", "n/m") are Missing
func ParseNumber(text string) (float64, Outcome) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, NotNumeric
	}
	if placeholders[strings.ToLower(s)] {
		return 0, Missing
	}
	if strings.HasSuffix(s, "%") {
		return 0, NotNumeric
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = trimCurrency(s)
	if strings.HasPrefix(s, "-") {
		if negative {
			return 0, NotNumeric
		}
		negative = true
		s = trimCurrency(strings.TrimSpace(s[1:]))
	}
	s = strings.ReplaceAll(s, ",", "")

	if !plainDecimal(s) {
		return 0, NotNumeric
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, NotNumeric
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), Numeric
}

func trimCurrency(s string) string {
	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			return strings.TrimSpace(strings.TrimPrefix(s, sym))
		}
	}
	return s
}

// plainDecimal accepts digits with at most one decimal point and at least one
// digit.
func plainDecimal(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// CellValue parses a grid cell. Number cells are Numeric as-is, text cells go
// through ParseNumber, empty cells are NotNumeric.
func CellValue(c models.Cell) (float64, Outcome) {
	switch c.Kind {
	case models.CellNumber:
		return c.Number, Numeric
	case models.CellText:
		return ParseNumber(c.Text)
	}
	return 0, NotNumeric
}

// IsNumeric reports whether a cell holds a parsed (non-missing) number.
func IsNumeric(c models.Cell) bool {
	_, outcome := CellValue(c)
	return outcome == Numeric
}
