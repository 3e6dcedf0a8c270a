// Package ingest turns spreadsheet, HTML, Markdown and JSON sources into
// filings: one flat grid of cells per reporting period, no schema assumed.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"statement_stitch/pkg/models"
)

var (
	// ErrUnsupportedFormat is returned for sources no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported source format")
	// ErrEmptyGrid is returned when a source holds no non-blank cell.
	ErrEmptyGrid = errors.New("source has no cells")
)

// Format names a source encoding.
type Format string

const (
	FormatXLSX     Format = "xlsx"
	FormatXLS      Format = "xls"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// DetectFormat maps a file extension (or an explicit format name) to a
// Format.
func DetectFormat(pathOrName string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(pathOrName))
	if ext := filepath.Ext(name); ext != "" {
		name = ext[1:]
	}
	// URLs may carry a query string after the extension.
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch name {
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	case "xls":
		return FormatXLS, nil
	case "html", "htm":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json", "hjson":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%q: %w", pathOrName, ErrUnsupportedFormat)
}

// Decode reads filings from in-memory bytes.
func Decode(data []byte, format Format, source string) ([]models.Filing, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(bytes.NewReader(data), source)
	case FormatXLS:
		return ReadXLS(bytes.NewReader(data), source)
	case FormatHTML:
		return LoadHTML(bytes.NewReader(data), source)
	case FormatMarkdown:
		return LoadMarkdown(data, source)
	case FormatJSON:
		return LoadJSON(data, source)
	}
	return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
}

// FilingID derives a stable ID from a source string, so re-ingesting the same
// file yields the same filing and consolidation stays idempotent.
func FilingID(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)).String()
}

// scalar converts cell text into a grid scalar: plain numbers become
// float64, everything else stays text for the block parser to interpret.
func scalar(text string) any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}

func textRows(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for r, row := range rows {
		line := make([]any, len(row))
		for c, v := range row {
			line[c] = scalar(v)
		}
		out[r] = line
	}
	return out
}

// trimRows drops trailing blank cells of every row and trailing blank rows.
func trimRows(rows [][]any) [][]any {
	for r, row := range rows {
		end := len(row)
		for end > 0 && isBlankScalar(row[end-1]) {
			end--
		}
		rows[r] = row[:end]
	}
	end := len(rows)
	for end > 0 && len(rows[end-1]) == 0 {
		end--
	}
	return rows[:end]
}

func isBlankScalar(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// newFiling builds a filing around raw rows. The ID defaults to FilingID of
// the source.
func newFiling(source, title string, rows [][]any) (models.Filing, error) {
	rows = trimRows(rows)
	if len(rows) == 0 {
		return models.Filing{}, fmt.Errorf("%s: %w", source, ErrEmptyGrid)
	}
	return models.Filing{
		ID:     FilingID(source),
		Title:  title,
		Source: source,
		Grid:   models.NewGrid(rows),
	}, nil
}
