package ingest

import (
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"

	"statement_stitch/pkg/core/utils"
	"statement_stitch/pkg/models"
)

// LoadMarkdown reads a Markdown filing: headings and paragraphs become
// single-cell rows, GFM table rows become cell rows, all in document order.
func LoadMarkdown(src []byte, source string) ([]models.Filing, error) {
	doc := utils.ParseMarkdown(src)

	var rows [][]any
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch n.Kind() {
		case ast.KindHeading, ast.KindParagraph:
			text := utils.InlineText(n, src)
			if text != "" && len([]rune(text)) <= maxTitleChars {
				rows = append(rows, []any{text})
			}
		case extast.KindTable:
			rows = append(rows, tableRows(n, src)...)
		}
	}

	filing, err := newFiling(source, "", rows)
	if err != nil {
		return nil, err
	}
	return []models.Filing{filing}, nil
}

// tableRows flattens a table node; the header row is kept as a data row
// because it usually carries the period labels.
func tableRows(table ast.Node, src []byte) [][]any {
	var rows [][]any
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var line []any
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			line = append(line, scalar(utils.InlineText(cell, src)))
		}
		rows = append(rows, line)
	}
	return rows
}
