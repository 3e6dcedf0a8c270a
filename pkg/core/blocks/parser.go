package blocks

import (
	"strings"

	"go.uber.org/zap"

	"statement_stitch/pkg/core/vocab"
	"statement_stitch/pkg/models"
)

// Block is one metric label with the numeric run that followed it in a row.
// Missing values (placeholders) are explicit nil entries.
type Block struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
	Row    int        `json:"row"`
	Col    int        `json:"col"`
}

// Present counts the non-missing values.
func (b Block) Present() int {
	n := 0
	for _, v := range b.Values {
		if v != nil {
			n++
		}
	}
	return n
}

// Parser extracts blocks from grid rows.
type Parser struct {
	primaryRunMax  int
	minBlockValues int
	logger         *zap.Logger
}

// NewParser creates a parser using the run limits from th.
func NewParser(th vocab.Thresholds, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		primaryRunMax:  th.PrimaryRunMax,
		minBlockValues: th.MinBlockValues,
		logger:         logger,
	}
}

// ParseRow scans one row left to right:
//  1. skip blanks; the next cell with a letter is a name
//  2. blank or lone currency cells right after the name are skipped
//  3. up to primaryRunMax numeric cells form the primary run, stopping at
//     the first unparseable cell
//  4. a full primary run extends over further contiguous numeric cells
//  5. the block is kept only with at least minBlockValues present values
//
// Scanning resumes after the consumed block.
func (p *Parser) ParseRow(row []models.Cell) []Block {
	var out []Block

	i := 0
	for i < len(row) {
		cell := row[i]
		if cell.IsBlank() || !cell.HasAlpha() {
			i++
			continue
		}

		j := i + 1
		for j < len(row) && isGap(row[j]) {
			j++
		}

		var values []*float64
		for j < len(row) && len(values) < p.primaryRunMax {
			v, outcome := CellValue(row[j])
			if outcome == NotNumeric {
				break
			}
			values = append(values, valuePtr(v, outcome))
			j++
		}
		if len(values) == p.primaryRunMax {
			for j < len(row) {
				v, outcome := CellValue(row[j])
				if outcome == NotNumeric {
					break
				}
				values = append(values, valuePtr(v, outcome))
				j++
			}
		}

		block := Block{Name: cleanName(cell.String()), Values: values, Row: cell.Row, Col: cell.Col}
		if block.Present() >= p.minBlockValues {
			out = append(out, block)
		} else if len(values) > 0 {
			p.logger.Debug("block rejected",
				zap.String("name", block.Name),
				zap.Int("row", cell.Row),
				zap.Int("present", block.Present()))
		}

		if j > i+1 && len(values) > 0 {
			i = j
		} else {
			i++
		}
	}
	return out
}

// ParseRegion applies ParseRow to every row of region except skipRows
// (absolute row indices, usually the period header rows).
func (p *Parser) ParseRegion(grid models.Grid, region models.Region, skipRows []int) []Block {
	skip := make(map[int]bool, len(skipRows))
	for _, r := range skipRows {
		skip[r] = true
	}

	var out []Block
	for r := region.StartRow; r <= region.EndRow && r < grid.NumRows(); r++ {
		if r < 0 || skip[r] {
			continue
		}
		out = append(out, p.ParseRow(grid.Rows[r])...)
	}
	return out
}

func valuePtr(v float64, outcome Outcome) *float64 {
	if outcome != Numeric {
		return nil
	}
	return &v
}

// isGap reports cells that may sit between a label and its numbers without
// ending the block: blanks and lone currency symbols.
func isGap(c models.Cell) bool {
	if c.IsBlank() {
		return true
	}
	if c.Kind != models.CellText {
		return false
	}
	s := strings.TrimSpace(c.Text)
	for _, sym := range currencySymbols {
		if s == sym {
			return true
		}
	}
	return false
}

// cleanName collapses inner whitespace and drops trailing colons.
func cleanName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ":")
}
