package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"statement_stitch/pkg/core/utils"
	"statement_stitch/pkg/models"
)

// jsonFiling is the grid dump format:
//
//	{"entity": "ACME", "period": "FY2023", "title": "...", "rows": [["Revenue", 100, 90]]}
type jsonFiling struct {
	ID      string  `json:"id"`
	Entity  string  `json:"entity"`
	Period  string  `json:"period"`
	Title   string  `json:"title"`
	Source  string  `json:"source"`
	FiledAt string  `json:"filed_at"`
	Rows    [][]any `json:"rows"`
}

// LoadJSON reads one grid dump or an array of them. Malformed JSON is
// repaired and Hjson is accepted.
func LoadJSON(data []byte, source string) ([]models.Filing, error) {
	text := utils.CleanMarkdown(string(data))

	var docs []jsonFiling
	if strings.HasPrefix(text, "[") {
		if _, err := utils.SmartParse(text, &docs); err != nil {
			return nil, eris.Wrapf(err, "failed to parse json filings %s", source)
		}
	} else {
		var one jsonFiling
		if _, err := utils.SmartParse(text, &one); err != nil {
			return nil, eris.Wrapf(err, "failed to parse json filing %s", source)
		}
		docs = []jsonFiling{one}
	}

	filings := make([]models.Filing, 0, len(docs))
	for i, d := range docs {
		src := d.Source
		if src == "" {
			src = source
			if len(docs) > 1 {
				src = fmt.Sprintf("%s[%d]", source, i)
			}
		}
		rows := make([][]any, len(d.Rows))
		for r, row := range d.Rows {
			rows[r] = make([]any, len(row))
			for c, v := range row {
				if s, ok := v.(string); ok {
					rows[r][c] = scalar(s)
					continue
				}
				rows[r][c] = v
			}
		}
		filing, err := newFiling(src, d.Title, rows)
		if err != nil {
			return nil, err
		}
		if d.ID != "" {
			filing.ID = d.ID
		}
		filing.Entity = d.Entity
		filing.PeriodLabel = d.Period
		if d.FiledAt != "" {
			at, err := ParseDate(d.FiledAt)
			if err != nil {
				return nil, eris.Wrapf(err, "filing %s", src)
			}
			filing.FiledAt = at
		}
		filings = append(filings, filing)
	}
	return filings, nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
