package ingest

import (
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"statement_stitch/pkg/models"
)

// maxTitleChars bounds the heading and paragraph text carried into the grid
// as a single-cell row. Longer prose is never a statement title.
const maxTitleChars = 200

// LoadHTML flattens every <table> of the document into one bundled grid, in
// document order. The heading, caption or short paragraph preceding a table
// becomes a single-cell row above it so the boundary locator can see
// statement titles. Adjacent tables are separated by a blank row.
func LoadHTML(r io.Reader, source string) ([]models.Filing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse html %s", source)
	}

	var rows [][]any
	afterTable := false
	doc.Find("h1, h2, h3, h4, h5, h6, p, caption, table").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "table" {
			if s.ParentsFiltered("table").Length() > 0 {
				return
			}
			if afterTable {
				rows = append(rows, nil)
			}
			afterTable = true
			if caption := cleanText(s.ChildrenFiltered("caption").First().Text()); caption != "" {
				rows = append(rows, []any{caption})
			}
			rows = append(rows, textRows(virtualGrid(s))...)
			return
		}
		// Captions are emitted with their table.
		if goquery.NodeName(s) == "caption" || s.ParentsFiltered("table").Length() > 0 {
			return
		}
		text := cleanText(s.Text())
		if text == "" || len([]rune(text)) > maxTitleChars {
			return
		}
		rows = append(rows, []any{text})
		afterTable = false
	})

	filing, err := newFiling(source, cleanText(doc.Find("title").First().Text()), rows)
	if err != nil {
		return nil, err
	}
	return []models.Filing{filing}, nil
}

// virtualGrid expands a table into a rectangular grid, honouring colspan and
// rowspan. A spanned cell keeps its text in the top-left slot and leaves the
// covered slots empty so numeric columns stay aligned.
func virtualGrid(table *goquery.Selection) [][]string {
	trs := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
	rowCount := trs.Length()
	if rowCount == 0 {
		return nil
	}

	maxCols := 0
	trs.Each(func(_ int, tr *goquery.Selection) {
		cols := 0
		tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			cols += spanAttr(cell, "colspan")
		})
		maxCols = max(maxCols, cols)
	})

	grid := make([][]string, rowCount)
	taken := make([][]bool, rowCount)
	for i := range grid {
		grid[i] = make([]string, maxCols)
		taken[i] = make([]bool, maxCols)
	}

	trs.Each(func(rowIdx int, tr *goquery.Selection) {
		colIdx := 0
		next := func() {
			for colIdx < maxCols && taken[rowIdx][colIdx] {
				colIdx++
			}
		}
		next()
		tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			colspan, rowspan := spanAttr(cell, "colspan"), spanAttr(cell, "rowspan")
			text := cleanText(cell.Text())
			for r := 0; r < rowspan; r++ {
				for c := 0; c < colspan; c++ {
					gr, gc := rowIdx+r, colIdx+c
					if gr >= rowCount || gc >= maxCols {
						continue
					}
					taken[gr][gc] = true
					if r == 0 && c == 0 {
						grid[gr][gc] = text
					}
				}
			}
			colIdx += colspan
			next()
		})
	})
	return grid
}

func spanAttr(cell *goquery.Selection, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell.AttrOr(name, "1")))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// cleanText collapses whitespace, including the non-breaking spaces filings
// use for indentation.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}
