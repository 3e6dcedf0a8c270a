// Package models holds the shared data model: raw grids of cells as supplied by
// the ingestors, filings, statement regions and reporting periods.
package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// CellKind identifies the scalar held by a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell is a single scalar at a fixed row/column position of a Grid.
type Cell struct {
	Row    int      `json:"r"`
	Col    int      `json:"c"`
	Kind   CellKind `json:"kind"`
	Text   string   `json:"text,omitempty"`
	Number float64  `json:"number,omitempty"`
}

// TextCell builds a text cell. Whitespace-only text yields an empty cell.
func TextCell(row, col int, text string) Cell {
	if strings.TrimSpace(text) == "" {
		return Cell{Row: row, Col: col, Kind: CellEmpty}
	}
	return Cell{Row: row, Col: col, Kind: CellText, Text: text}
}

// NumberCell builds a numeric cell.
func NumberCell(row, col int, n float64) Cell {
	return Cell{Row: row, Col: col, Kind: CellNumber, Number: n}
}

// IsBlank reports whether the cell carries no usable content.
func (c Cell) IsBlank() bool {
	switch c.Kind {
	case CellEmpty:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	}
	return false
}

// String renders the cell the way it would appear in a sheet.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return strings.TrimSpace(c.Text)
	case CellNumber:
		return FormatNumber(c.Number)
	}
	return ""
}

// HasAlpha reports whether the cell text contains at least one letter.
// Numeric cells never do.
func (c Cell) HasAlpha() bool {
	if c.Kind != CellText {
		return false
	}
	for _, r := range c.Text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// FormatNumber renders integers without a fractional part and everything
// else with the shortest exact representation.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// =============================================================================
// GRID
// =============================================================================

// Grid is an ordered sequence of rows of positioned cells. Rows may have
// different lengths.
type Grid struct {
	Rows [][]Cell `json:"rows"`
}

// NewGrid converts raw scalars into a positioned grid. Supported scalars are
// string, the Go integer and float types, bool and nil; anything else is
// rendered with fmt.
func NewGrid(raw [][]any) Grid {
	rows := make([][]Cell, len(raw))
	for r, line := range raw {
		cells := make([]Cell, len(line))
		for c, v := range line {
			cells[c] = scalarCell(r, c, v)
		}
		rows[r] = cells
	}
	return Grid{Rows: rows}
}

// NewTextGrid builds a grid from plain strings, keeping every value as text.
func NewTextGrid(raw [][]string) Grid {
	rows := make([][]Cell, len(raw))
	for r, line := range raw {
		cells := make([]Cell, len(line))
		for c, v := range line {
			cells[c] = TextCell(r, c, v)
		}
		rows[r] = cells
	}
	return Grid{Rows: rows}
}

func scalarCell(r, c int, v any) Cell {
	switch x := v.(type) {
	case nil:
		return Cell{Row: r, Col: c, Kind: CellEmpty}
	case string:
		return TextCell(r, c, x)
	case float64:
		return NumberCell(r, c, x)
	case float32:
		return NumberCell(r, c, float64(x))
	case int:
		return NumberCell(r, c, float64(x))
	case int64:
		return NumberCell(r, c, float64(x))
	case int32:
		return NumberCell(r, c, float64(x))
	case uint:
		return NumberCell(r, c, float64(x))
	case uint64:
		return NumberCell(r, c, float64(x))
	case bool:
		return TextCell(r, c, strconv.FormatBool(x))
	case Cell:
		x.Row, x.Col = r, c
		return x
	}
	return TextCell(r, c, fmt.Sprint(v))
}

// NumRows returns the number of rows.
func (g Grid) NumRows() int {
	return len(g.Rows)
}

// NumCols returns the width of the widest row.
func (g Grid) NumCols() int {
	width := 0
	for _, row := range g.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// Cell returns the cell at (r, c) or an empty cell when out of range.
func (g Grid) Cell(r, c int) Cell {
	if r < 0 || r >= len(g.Rows) || c < 0 || c >= len(g.Rows[r]) {
		return Cell{Row: r, Col: c, Kind: CellEmpty}
	}
	return g.Rows[r][c]
}

// RowText joins the non-blank cells of row r with single spaces.
func (g Grid) RowText(r int) string {
	if r < 0 || r >= len(g.Rows) {
		return ""
	}
	parts := make([]string, 0, len(g.Rows[r]))
	for _, cell := range g.Rows[r] {
		if !cell.IsBlank() {
			parts = append(parts, cell.String())
		}
	}
	return strings.Join(parts, " ")
}

// Slice returns rows start..end (inclusive) as a new grid whose cells are
// re-positioned relative to start.
func (g Grid) Slice(start, end int) Grid {
	if start < 0 {
		start = 0
	}
	if end >= len(g.Rows) {
		end = len(g.Rows) - 1
	}
	if start > end {
		return Grid{}
	}
	rows := make([][]Cell, 0, end-start+1)
	for r := start; r <= end; r++ {
		src := g.Rows[r]
		dst := make([]Cell, len(src))
		for c, cell := range src {
			cell.Row, cell.Col = r-start, c
			dst[c] = cell
		}
		rows = append(rows, dst)
	}
	return Grid{Rows: rows}
}

// Validate checks the grid shape: every cell must sit at the position its
// coordinates claim. Content is never validated here.
func (g Grid) Validate() error {
	for r, row := range g.Rows {
		for c, cell := range row {
			if cell.Row != r || cell.Col != c {
				return fmt.Errorf("cell at (%d,%d) claims position (%d,%d): %w", r, c, cell.Row, cell.Col, ErrMalformedGrid)
			}
			if cell.Kind < CellEmpty || cell.Kind > CellNumber {
				return fmt.Errorf("cell at (%d,%d) has unknown kind %d: %w", r, c, cell.Kind, ErrMalformedGrid)
			}
		}
	}
	return nil
}
