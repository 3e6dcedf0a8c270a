package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedGrid indicates a grid whose shape (not content) is invalid.
var ErrMalformedGrid = errors.New("malformed grid")

// ErrMissingFilingID indicates a filing without a source identifier.
var ErrMissingFilingID = errors.New("filing has no id")

// Filing is one entity's raw tabular data for one reporting period.
type Filing struct {
	ID          string    `json:"id"`
	Entity      string    `json:"entity"`
	PeriodLabel string    `json:"period_label,omitempty"` // optional, e.g. "FY2023"
	Title       string    `json:"title,omitempty"`        // sheet or table title when known
	FiledAt     time.Time `json:"filed_at,omitempty"`
	Source      string    `json:"source"` // provenance, e.g. file path + sheet
	Grid        Grid      `json:"grid"`
}

// Validate checks the filing shape.
func (f Filing) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("filing from %q: %w", f.Source, ErrMissingFilingID)
	}
	if err := f.Grid.Validate(); err != nil {
		return fmt.Errorf("filing %s: %w", f.ID, err)
	}
	return nil
}

// =============================================================================
// STATEMENT TYPES
// =============================================================================

// StatementType identifies a financial statement family.
type StatementType string

const (
	IncomeStatement StatementType = "income_statement"
	BalanceSheet    StatementType = "balance_sheet"
	CashFlow        StatementType = "cash_flow"
	Unknown         StatementType = "unknown"
)

// StatementTypes returns the concrete statement types in the order they
// usually appear in a report.
func StatementTypes() []StatementType {
	return []StatementType{IncomeStatement, BalanceSheet, CashFlow}
}

// PriorityOrder returns the concrete types most-specific first. Title
// matching and tie-breaking walk this order.
func PriorityOrder() []StatementType {
	return []StatementType{CashFlow, BalanceSheet, IncomeStatement}
}

// ParseStatementType accepts the canonical names plus a few common aliases.
func ParseStatementType(s string) StatementType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income_statement", "income", "is", "p&l", "pl":
		return IncomeStatement
	case "balance_sheet", "balance", "bs":
		return BalanceSheet
	case "cash_flow", "cashflow", "cash", "cf":
		return CashFlow
	}
	return Unknown
}

// Title returns a human readable statement name.
func (t StatementType) Title() string {
	switch t {
	case IncomeStatement:
		return "Income Statement"
	case BalanceSheet:
		return "Balance Sheet"
	case CashFlow:
		return "Cash Flow Statement"
	}
	return "Unknown"
}

// =============================================================================
// REGIONS
// =============================================================================

// Region is a statement's row range inside one filing's grid. EndRow is
// inclusive.
type Region struct {
	Type     StatementType `json:"type"`
	StartRow int           `json:"start_row"`
	EndRow   int           `json:"end_row"`
	Columns  int           `json:"columns"`
}

// Len returns the number of rows covered.
func (r Region) Len() int {
	if r.EndRow < r.StartRow {
		return 0
	}
	return r.EndRow - r.StartRow + 1
}

// Overlaps reports whether two regions share at least one row.
func (r Region) Overlaps(o Region) bool {
	return r.StartRow <= o.EndRow && o.StartRow <= r.EndRow
}

// =============================================================================
// PERIODS
// =============================================================================

// UnknownPeriodLabel is the sentinel label for values whose period could not
// be recovered.
const UnknownPeriodLabel = "Unknown"

// Period is a fiscal year, optionally narrowed to a quarter (1-4).
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter,omitempty"`
}

// UnknownPeriod is the undetected-period sentinel.
var UnknownPeriod = Period{}

// IsUnknown reports whether p is the sentinel.
func (p Period) IsUnknown() bool {
	return p.Year == 0
}

// Label renders "2023" or "2023-Q1".
func (p Period) Label() string {
	if p.IsUnknown() {
		return UnknownPeriodLabel
	}
	if p.Quarter > 0 {
		return fmt.Sprintf("%d-Q%d", p.Year, p.Quarter)
	}
	return strconv.Itoa(p.Year)
}

// Before reports whether p is chronologically earlier than o. A full year
// sorts after its own quarters. Unknown sorts first.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	pq, oq := p.Quarter, o.Quarter
	if pq == 0 {
		pq = 5
	}
	if oq == 0 {
		oq = 5
	}
	return pq < oq
}

// ComparePeriods orders periods chronologically: -1 when a is earlier, 1 when
// later, 0 when equal. Usable with slices.SortFunc.
func ComparePeriods(a, b Period) int {
	switch {
	case a == b:
		return 0
	case a.Before(b):
		return -1
	}
	return 1
}

// Prev returns the period one step earlier at the same granularity.
func (p Period) Prev() Period {
	if p.IsUnknown() {
		return p
	}
	if p.Quarter == 0 {
		return Period{Year: p.Year - 1}
	}
	if p.Quarter == 1 {
		return Period{Year: p.Year - 1, Quarter: 4}
	}
	return Period{Year: p.Year, Quarter: p.Quarter - 1}
}

var periodLabelPattern = regexp.MustCompile(`(?i)^\s*(?:FY\s*)?((?:19|20)\d{2})(?:\s*[-_ ]?\s*Q([1-4]))?\s*$`)
var quarterFirstPattern = regexp.MustCompile(`(?i)^\s*Q([1-4])\s*[-_ ]?\s*(?:FY\s*)?((?:19|20)\d{2})\s*$`)

// ParsePeriodLabel parses labels such as "2023", "FY2023", "2023-Q1" and
// "Q1 2023". Anything else yields the sentinel and false.
func ParsePeriodLabel(s string) (Period, bool) {
	if m := periodLabelPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		q := 0
		if m[2] != "" {
			q, _ = strconv.Atoi(m[2])
		}
		return Period{Year: year, Quarter: q}, true
	}
	if m := quarterFirstPattern.FindStringSubmatch(s); m != nil {
		q, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		return Period{Year: year, Quarter: q}, true
	}
	return UnknownPeriod, false
}
