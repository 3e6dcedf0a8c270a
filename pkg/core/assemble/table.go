// Package assemble renders consolidated statements as period-aligned tables.
package assemble

import (
	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/models"
)

// MetricHeader is the label of the first column.
const MetricHeader = "Metric"

// Row is one metric across every period. Cells is empty where the value is
// missing.
type Row struct {
	Name    string     `json:"name"`
	Aliases []string   `json:"aliases,omitempty"`
	Cells   []string   `json:"cells"`
	Values  []*float64 `json:"values"`
}

// Table is a statement laid out as rows of metrics by period columns,
// oldest period first.
type Table struct {
	Title  string               `json:"title"`
	Type   models.StatementType `json:"type"`
	Header []string             `json:"header"`
	Rows   []Row                `json:"rows"`
}

// Build lays out one consolidated statement.
func Build(st synthesis.ConsolidatedStatement) Table {
	t := Table{
		Title:  st.Type.Title(),
		Type:   st.Type,
		Header: append([]string{MetricHeader}, st.Periods...),
	}
	for _, m := range st.Metrics {
		row := Row{
			Name:    m.Name,
			Aliases: m.Aliases,
			Cells:   make([]string, len(st.Periods)),
			Values:  make([]*float64, len(st.Periods)),
		}
		for i := range st.Periods {
			if i < len(m.Values) && m.Values[i] != nil {
				row.Values[i] = m.Values[i]
				row.Cells[i] = models.FormatNumber(*m.Values[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// formatValues renders values the way table cells do, "" for nil.
func formatValues(vs []*float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		if v != nil {
			out[i] = models.FormatNumber(*v)
		}
	}
	return out
}
