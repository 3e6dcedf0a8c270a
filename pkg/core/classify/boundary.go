package classify

import (
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"statement_stitch/pkg/core/blocks"
	"statement_stitch/pkg/core/vocab"
	"statement_stitch/pkg/models"
)

// =============================================================================
// BOUNDARY LOCATOR - statement regions inside a bundled filing grid
// =============================================================================

// Header is a row recognised as the title row of a statement.
type Header struct {
	Row  int                  `json:"row"`
	Type models.StatementType `json:"type"`
}

// Boundaries is the located layout of one filing. A type missing from ByType
// was not found.
type Boundaries struct {
	ByType  map[models.StatementType]models.Region `json:"by_type"`
	Regions []models.Region                        `json:"regions"` // sorted by start row, non-overlapping
	Headers []Header                               `json:"headers"`
}

// Found reports whether a region of type t exists.
func (b Boundaries) Found(t models.StatementType) bool {
	_, ok := b.ByType[t]
	return ok
}

// Locator finds statement header rows using the vocabulary's header phrases.
type Locator struct {
	vocab          *vocab.Vocabulary
	maxHeaderChars int
	logger         *zap.Logger
}

// NewLocator creates a locator. A nil cfg uses the built-in vocabulary.
func NewLocator(cfg *vocab.Config, logger *zap.Logger) *Locator {
	if cfg == nil {
		cfg = vocab.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{vocab: &cfg.Vocabulary, maxHeaderChars: cfg.Thresholds.MaxHeaderChars, logger: logger}
}

// HeaderType classifies a single row. Only short rows without numbers can be
// headers; cash flow phrases are checked first, then balance sheet, then
// income statement.
func (l *Locator) HeaderType(grid models.Grid, r int) (models.StatementType, bool) {
	if r < 0 || r >= grid.NumRows() {
		return models.Unknown, false
	}
	for _, cell := range grid.Rows[r] {
		if blocks.IsNumeric(cell) {
			return models.Unknown, false
		}
	}
	text := grid.RowText(r)
	if text == "" || utf8.RuneCountInString(text) > l.maxHeaderChars {
		return models.Unknown, false
	}
	lower := strings.ToLower(text)
	for _, t := range models.PriorityOrder() {
		if _, ok := vocab.ContainsAny(lower, l.vocab.Entry(t).HeaderPhrases); ok {
			return t, true
		}
	}
	return models.Unknown, false
}

// Locate returns the statement regions of grid.
//
// A type's region starts at its first header row and runs until the row
// before the next header of a different type. The first repeated header of
// the same type is treated as a sub-header; a second one closes the region.
// Without a terminating header the region runs to the last row. When regions
// overlap the later one keeps the disputed rows.
func (l *Locator) Locate(grid models.Grid) Boundaries {
	out := Boundaries{ByType: make(map[models.StatementType]models.Region)}

	for r := 0; r < grid.NumRows(); r++ {
		if t, ok := l.HeaderType(grid, r); ok {
			out.Headers = append(out.Headers, Header{Row: r, Type: t})
		}
	}
	if len(out.Headers) == 0 {
		return out
	}

	last := grid.NumRows() - 1
	var regions []models.Region
	for _, t := range models.StatementTypes() {
		start := -1
		for i, h := range out.Headers {
			if h.Type != t {
				continue
			}
			start = i
			break
		}
		if start < 0 {
			continue
		}

		end := last
		skipped := false
		for _, h := range out.Headers[start+1:] {
			if h.Type == t && !skipped {
				skipped = true
				continue
			}
			end = h.Row - 1
			break
		}
		regions = append(regions, models.Region{Type: t, StartRow: out.Headers[start].Row, EndRow: end})
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].StartRow < regions[j].StartRow
	})
	for i := 0; i+1 < len(regions); i++ {
		if regions[i].EndRow >= regions[i+1].StartRow {
			l.logger.Debug("clipping overlapping region",
				zap.String("type", string(regions[i].Type)),
				zap.Int("end", regions[i].EndRow),
				zap.Int("next_start", regions[i+1].StartRow))
			regions[i].EndRow = regions[i+1].StartRow - 1
		}
	}

	for i := range regions {
		regions[i].Columns = grid.Slice(regions[i].StartRow, regions[i].EndRow).NumCols()
		out.ByType[regions[i].Type] = regions[i]
	}
	out.Regions = regions
	return out
}
