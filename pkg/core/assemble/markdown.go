package assemble

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/models"
)

// RenderMarkdown writes every statement as a GFM pipe table, followed by its
// restatements, conflicts and unresolved blocks when there are any.
func RenderMarkdown(w io.Writer, statements []synthesis.ConsolidatedStatement) error {
	bw := bufio.NewWriter(w)
	for i, st := range statements {
		if i > 0 {
			bw.WriteString("\n")
		}
		writeStatement(bw, st)
	}
	return bw.Flush()
}

func writeStatement(w *bufio.Writer, st synthesis.ConsolidatedStatement) {
	t := Build(st)
	fmt.Fprintf(w, "## %s\n\n", t.Title)
	if len(t.Rows) == 0 {
		w.WriteString("_No metrics consolidated._\n")
	} else {
		cells := make([][]string, 0, len(t.Rows))
		for _, r := range t.Rows {
			cells = append(cells, append([]string{r.Name}, r.Cells...))
		}
		writeTable(w, t.Header, cells, true)
	}

	if len(st.Restatements) > 0 {
		fmt.Fprintf(w, "\n### Restatements\n\n")
		var rows [][]string
		for _, e := range st.Restatements {
			rows = append(rows, []string{
				e.Metric, e.Period,
				models.FormatNumber(e.OldValue), models.FormatNumber(e.NewValue),
				fmt.Sprintf("%.2f%%", e.RelDelta*100),
				e.OldFiling, e.NewFiling,
			})
		}
		writeTable(w, []string{"Metric", "Period", "Old", "New", "Change", "Old filing", "New filing"}, rows, false)
	}

	if len(st.Conflicts) > 0 {
		fmt.Fprintf(w, "\n### Conflicts\n\n")
		var rows [][]string
		for _, c := range st.Conflicts {
			for j, o := range c.Observations {
				shown := ""
				if j == 0 {
					shown = "yes"
				}
				rows = append(rows, []string{c.Metric, c.Period, o.FilingID, models.FormatNumber(o.Value), shown})
			}
		}
		writeTable(w, []string{"Metric", "Period", "Filing", "Value", "Displayed"}, rows, false)
	}

	if len(st.Unresolved) > 0 {
		fmt.Fprintf(w, "\n### Unresolved\n\n")
		var rows [][]string
		for _, u := range st.Unresolved {
			rows = append(rows, []string{u.Name, u.FilingID, strings.Join(formatValues(u.Values), ", ")})
		}
		writeTable(w, []string{"Block", "Filing", "Values"}, rows, false)
	}
}

// writeTable renders a pipe table. numeric right-aligns every column after
// the first.
func writeTable(w *bufio.Writer, header []string, rows [][]string, numeric bool) {
	w.WriteString("|")
	for _, h := range header {
		w.WriteString(" " + escapeCell(h) + " |")
	}
	w.WriteString("\n|")
	for i := range header {
		if numeric && i > 0 {
			w.WriteString(" ---: |")
		} else {
			w.WriteString(" --- |")
		}
	}
	w.WriteString("\n")
	for _, row := range rows {
		w.WriteString("|")
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			w.WriteString(" " + escapeCell(cell) + " |")
		}
		w.WriteString("\n")
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
