// Package classify identifies financial statement types: whole sub-grids via
// keyword scoring (Classifier) and statement header rows inside bundled
// filings (Locator).
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"statement_stitch/pkg/core/blocks"
	"statement_stitch/pkg/core/vocab"
	"statement_stitch/pkg/models"
)

// Reason names the rule that produced a classification.
type Reason string

const (
	ReasonTitleExact   Reason = "title_exact"
	ReasonTitlePartial Reason = "title_partial"
	ReasonKeywordScore Reason = "keyword_score"
	// ReasonAmbiguous means no type cleared its minimum; the result type is
	// Unknown and the region should be excluded.
	ReasonAmbiguous Reason = "ambiguous"
)

// Result is the outcome of classifying one sub-grid.
type Result struct {
	Type   models.StatementType             `json:"type"`
	Score  float64                          `json:"score"`
	Scores map[models.StatementType]float64 `json:"scores"`
	Reason Reason                           `json:"reason"`
}

// Ambiguous reports whether no type could be chosen.
func (r Result) Ambiguous() bool {
	return r.Type == models.Unknown
}

// Classifier scores sub-grids against the vocabulary.
type Classifier struct {
	vocab  *vocab.Vocabulary
	th     vocab.Thresholds
	logger *zap.Logger
}

// NewClassifier creates a classifier. A nil cfg uses the built-in vocabulary.
func NewClassifier(cfg *vocab.Config, logger *zap.Logger) *Classifier {
	if cfg == nil {
		cfg = vocab.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{vocab: &cfg.Vocabulary, th: cfg.Thresholds, logger: logger}
}

// Classify decides the statement type of grid. title is optional.
//
// Decision order:
//  1. an exact statement name in the title wins (cash flow, then balance
//     sheet, then income statement)
//  2. a partial title keyword wins for a type whose score clears its minimum
//  3. the highest score wins if it clears its minimum, ties broken by the
//     same priority order
//  4. otherwise Unknown
func (c *Classifier) Classify(grid models.Grid, title string) Result {
	text := flatten(grid)
	lowerTitle := strings.ToLower(strings.TrimSpace(title))
	structural := c.structuralBonus(grid)

	scores := make(map[models.StatementType]float64, 3)
	for _, t := range models.StatementTypes() {
		e := c.vocab.Entry(t)
		score := float64(vocab.CountPresent(text, e.Keywords)) + structural
		if lowerTitle != "" {
			if _, ok := vocab.ContainsAny(lowerTitle, e.TitleExact); ok {
				score += c.th.TitleBonus
			}
		}
		scores[t] = score
	}

	result := c.decide(lowerTitle, scores)
	c.logger.Debug("classified grid",
		zap.String("type", string(result.Type)),
		zap.String("reason", string(result.Reason)),
		zap.Float64("score", result.Score),
		zap.Int("rows", grid.NumRows()))
	return result
}

func (c *Classifier) decide(title string, scores map[models.StatementType]float64) Result {
	result := Result{Type: models.Unknown, Scores: scores, Reason: ReasonAmbiguous}
	order := models.PriorityOrder()

	if title != "" {
		for _, t := range order {
			if _, ok := vocab.ContainsAny(title, c.vocab.Entry(t).TitleExact); ok {
				result.Type, result.Score, result.Reason = t, scores[t], ReasonTitleExact
				return result
			}
		}
		for _, t := range order {
			if _, ok := vocab.ContainsAny(title, c.vocab.Entry(t).TitlePartial); ok && scores[t] >= c.vocab.Entry(t).MinScore {
				result.Type, result.Score, result.Reason = t, scores[t], ReasonTitlePartial
				return result
			}
		}
	}

	best := models.Unknown
	bestScore := -1.0
	for _, t := range order {
		if scores[t] > bestScore {
			best, bestScore = t, scores[t]
		}
	}
	if best != models.Unknown && bestScore >= c.vocab.Entry(best).MinScore {
		result.Type, result.Score, result.Reason = best, bestScore, ReasonKeywordScore
		return result
	}
	result.Score = bestScore
	return result
}

// structuralBonus scores table shape. The bonus is the same for every type
// so it only matters against the per-type minimum.
func (c *Classifier) structuralBonus(grid models.Grid) float64 {
	bonus := 0.0
	if yearHeaderColumns(grid, 3) >= 2 {
		bonus += c.th.YearHeaderBonus
	}
	if mostlyNumericColumns(grid) >= 2 {
		bonus += c.th.NumericColumnsBonus
	}
	if n := grid.NumRows(); n >= c.th.RowCountMin && n <= c.th.RowCountMax {
		bonus += c.th.RowCountBonus
	}
	return bonus
}

// flatten joins every text cell, lower-cased, one row per line.
func flatten(grid models.Grid) string {
	var sb strings.Builder
	for _, row := range grid.Rows {
		for _, cell := range row {
			if cell.Kind == models.CellText {
				sb.WriteString(strings.ToLower(cell.Text))
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

var fourDigitYear = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// yearHeaderColumns counts distinct columns holding a 4-digit year within the
// first n rows.
func yearHeaderColumns(grid models.Grid, n int) int {
	cols := make(map[int]bool)
	for r := 0; r < n && r < grid.NumRows(); r++ {
		for _, cell := range grid.Rows[r] {
			switch cell.Kind {
			case models.CellNumber:
				y := int(cell.Number)
				if float64(y) == cell.Number && fourDigitYear.MatchString(strconv.Itoa(y)) {
					cols[cell.Col] = true
				}
			case models.CellText:
				if fourDigitYear.MatchString(cell.Text) {
					cols[cell.Col] = true
				}
			}
		}
	}
	return len(cols)
}

// mostlyNumericColumns counts columns where more than half of the non-blank
// cells are numbers and at least two are.
func mostlyNumericColumns(grid models.Grid) int {
	width := grid.NumCols()
	count := 0
	for c := 0; c < width; c++ {
		filled, numeric := 0, 0
		for r := 0; r < grid.NumRows(); r++ {
			cell := grid.Cell(r, c)
			if cell.IsBlank() {
				continue
			}
			filled++
			if blocks.IsNumeric(cell) {
				numeric++
			}
		}
		if numeric >= 2 && numeric*2 > filled {
			count++
		}
	}
	return count
}
