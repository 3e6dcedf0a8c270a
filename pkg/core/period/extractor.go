// Package period recovers reporting periods from statement header rows, and
// infers them from table structure when headers are missing.
package period

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"statement_stitch/pkg/core/blocks"
	"statement_stitch/pkg/core/vocab"
	"statement_stitch/pkg/models"
)

// Result holds the periods of one statement region, most recent first when
// they were inferred and in header order otherwise.
type Result struct {
	Periods    []models.Period `json:"periods"`
	HeaderRows []int           `json:"header_rows,omitempty"` // absolute rows that carried period labels
	Inferred   bool            `json:"inferred,omitempty"`
	Undetected bool            `json:"undetected,omitempty"`
}

// Labels renders the periods.
func (r Result) Labels() []string {
	out := make([]string, len(r.Periods))
	for i, p := range r.Periods {
		out[i] = p.Label()
	}
	return out
}

// Options tune period inference.
type Options struct {
	// ProcessingYear anchors inferred periods when the filing has no period
	// label. Injected so extraction stays deterministic.
	ProcessingYear int
	// AnchorOffset shifts the first inferred year, e.g. -1 when the
	// processing year is one past the latest reported year.
	AnchorOffset int
}

// Extractor finds periods in the first rows of a region.
type Extractor struct {
	th     vocab.Thresholds
	opts   Options
	logger *zap.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(th vocab.Thresholds, opts Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{th: th, opts: opts, logger: logger}
}

// =============================================================================
// PATTERNS
// =============================================================================

// yearList captures the trailing years of "December 31, 2023, 2022 and 2021".
const yearList = `((?:\s*,\s*(?:and\s+)?\d{4}\b|\s+and\s+\d{4}\b)*)`

const monthNames = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	threeMonthsPattern = regexp.MustCompile(`(?i)three\s+months\s+ended\s+` + monthNames + `\.?\s+\d{1,2},?\s+(\d{4})`)
	endedPattern       = regexp.MustCompile(`(?i)(?:years?|twelve\s+months|six\s+months|nine\s+months|fiscal\s+years?)\s+ended\s+(?:` + monthNames + `\.?\s+\d{1,2},?\s+)?(\d{4})` + yearList)
	asOfPattern        = regexp.MustCompile(`(?i)as\s+of\s+(?:` + monthNames + `\.?\s+\d{1,2},?\s+)?(\d{4})` + yearList)
	fiscalYearPattern  = regexp.MustCompile(`(?i)fiscal\s+(?:year\s*)?(\d{4})`)
	fyPattern          = regexp.MustCompile(`(?i)\bfy\s*'?(\d{4})\b`)
	quarterYearPattern = regexp.MustCompile(`(?i)\bq([1-4])\s*(?:fy\s*)?'?(\d{4})\b`)
	yearQuarterPattern = regexp.MustCompile(`(?i)\b(\d{4})\s*[-_ ]?\s*q([1-4])\b`)
	datePattern        = regexp.MustCompile(`(?i)\b` + monthNames + `\.?\s+\d{1,2},?\s+(\d{4})\b` + yearList)
	bareYearPattern    = regexp.MustCompile(`\b(\d{4})\b`)
)

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

func quarterOfMonth(name string) int {
	name = strings.ToLower(name)
	if len(name) > 3 {
		name = name[:3]
	}
	m, ok := monthIndex[name]
	if !ok {
		return 0
	}
	return (m-1)/3 + 1
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract finds the periods of region. filingPeriod is the filing's optional
// period label, used only to anchor inference.
func (e *Extractor) Extract(grid models.Grid, region models.Region, typ models.StatementType, filingPeriod string) Result {
	var res Result
	seen := make(map[models.Period]bool)

	add := func(p models.Period) bool {
		if p.Year < e.th.MinYear || p.Year > e.th.MaxYear {
			return false
		}
		if !seen[p] {
			seen[p] = true
			res.Periods = append(res.Periods, p)
		}
		return true
	}

	lastRow := min(region.StartRow+e.th.ScanRows-1, region.EndRow, grid.NumRows()-1)
	for r := region.StartRow; r <= lastRow; r++ {
		row := grid.Rows[r]
		years, others := countNumeric(row, e.th)
		if others > 0 {
			// A data row; years in its label ("Repayment of 2019 notes") are
			// not periods.
			continue
		}
		yearRow := years > 0
		contributed := false

		for c := 0; c < len(row) && c < e.th.ScanCols; c++ {
			cell := row[c]
			if cell.IsBlank() {
				continue
			}
			if v, outcome := blocks.CellValue(cell); outcome == blocks.Numeric {
				if yearRow && add(models.Period{Year: int(v)}) {
					contributed = true
				}
				continue
			}
			if cell.Kind != models.CellText {
				continue
			}
			for _, p := range e.textPeriods(cell.Text, typ) {
				if add(p) {
					contributed = true
				}
			}
		}
		if contributed {
			res.HeaderRows = append(res.HeaderRows, r)
		}
	}

	if len(res.Periods) > 0 {
		return res
	}

	if inferred, ok := e.infer(grid, region, filingPeriod); ok {
		e.logger.Debug("periods inferred from structure",
			zap.String("type", string(typ)),
			zap.Strings("periods", inferred.Labels()))
		return inferred
	}

	e.logger.Debug("periods undetected", zap.String("type", string(typ)), zap.Int("start_row", region.StartRow))
	return Result{Periods: []models.Period{models.UnknownPeriod}, Undetected: true}
}

// textPeriods extracts periods from one text cell. Phrases win over bare
// year tokens; bare tokens in balance sheets need a short cell.
func (e *Extractor) textPeriods(text string, typ models.StatementType) []models.Period {
	var out []models.Period

	for _, m := range threeMonthsPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, models.Period{Year: atoi(m[2]), Quarter: quarterOfMonth(m[1])})
	}
	for _, m := range quarterYearPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, models.Period{Year: atoi(m[2]), Quarter: atoi(m[1])})
	}
	for _, m := range yearQuarterPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, models.Period{Year: atoi(m[1]), Quarter: atoi(m[2])})
	}
	if len(out) > 0 {
		return out
	}

	for _, re := range []*regexp.Regexp{endedPattern, asOfPattern, datePattern} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, models.Period{Year: atoi(m[len(m)-2])})
			for _, y := range bareYearPattern.FindAllStringSubmatch(m[len(m)-1], -1) {
				out = append(out, models.Period{Year: atoi(y[1])})
			}
		}
	}
	for _, re := range []*regexp.Regexp{fiscalYearPattern, fyPattern} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, models.Period{Year: atoi(m[len(m)-1])})
		}
	}
	if len(out) > 0 {
		return out
	}

	if typ == models.BalanceSheet && len([]rune(strings.TrimSpace(text))) > e.th.BalanceTokenMaxChars {
		return nil
	}
	for _, m := range bareYearPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, models.Period{Year: atoi(m[1])})
	}
	return out
}

// countNumeric counts the numeric cells of a row that are whole years within
// range, and those that are not. A row is a year header row when it has
// years and nothing else numeric.
func countNumeric(row []models.Cell, th vocab.Thresholds) (years, others int) {
	for _, cell := range row {
		v, outcome := blocks.CellValue(cell)
		if outcome != blocks.Numeric {
			continue
		}
		y := int(v)
		if float64(y) == v && y >= th.MinYear && y <= th.MaxYear {
			years++
		} else {
			others++
		}
	}
	return years, others
}

// infer synthesizes yearly periods from the number of value columns.
func (e *Extractor) infer(grid models.Grid, region models.Region, filingPeriod string) (Result, bool) {
	lastRow := min(region.StartRow+e.th.InferenceRows-1, region.EndRow, grid.NumRows()-1)
	counts := make(map[int]int)
	for r := region.StartRow; r <= lastRow; r++ {
		for c, cell := range grid.Rows[r] {
			if c == 0 {
				continue
			}
			if blocks.IsNumeric(cell) {
				counts[c]++
			}
		}
	}
	columns := 0
	for _, n := range counts {
		if n >= e.th.InferenceMinNumeric {
			columns++
		}
	}
	if columns < e.th.InferenceMinColumns || columns > e.th.InferenceMaxColumns {
		return Result{}, false
	}

	anchor := e.opts.ProcessingYear
	if p, ok := models.ParsePeriodLabel(filingPeriod); ok {
		anchor = p.Year
	}
	if anchor == 0 {
		return Result{}, false
	}
	anchor += e.opts.AnchorOffset

	res := Result{Inferred: true}
	for i := 0; i < columns; i++ {
		res.Periods = append(res.Periods, models.Period{Year: anchor - i})
	}
	return res, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
