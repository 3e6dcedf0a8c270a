package assemble

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"statement_stitch/pkg/core/synthesis"
)

// Sheet names besides the per-statement sheets.
const (
	SheetRestatements = "Restatements"
	SheetConflicts    = "Conflicts"
	SheetUnresolved   = "Unresolved"
)

// WriteXLSX writes a workbook with one sheet per statement plus restatement,
// conflict and unresolved sheets. Values are written as numbers.
func WriteXLSX(w io.Writer, statements []synthesis.ConsolidatedStatement) error {
	f, err := buildWorkbook(statements)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "failed to write workbook")
	}
	return nil
}

// SaveXLSX writes the workbook to path.
func SaveXLSX(path string, statements []synthesis.ConsolidatedStatement) error {
	f, err := buildWorkbook(statements)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "failed to save workbook %s", path)
	}
	return nil
}

type sheetWriter struct {
	f    *excelize.File
	bold int
}

func buildWorkbook(statements []synthesis.ConsolidatedStatement) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, eris.Wrap(err, "failed to create header style")
	}
	sw := &sheetWriter{f: f, bold: bold}

	var restatements, conflicts, unresolved [][]any
	for _, st := range statements {
		t := Build(st)
		rows := make([][]any, 0, len(t.Rows))
		for _, r := range t.Rows {
			line := make([]any, 0, len(r.Values)+1)
			line = append(line, r.Name)
			for _, v := range r.Values {
				if v == nil {
					line = append(line, nil)
					continue
				}
				line = append(line, *v)
			}
			rows = append(rows, line)
		}
		if err := sw.sheet(t.Title, stringsToAny(t.Header), rows, 40); err != nil {
			f.Close()
			return nil, err
		}

		for _, e := range st.Restatements {
			restatements = append(restatements, []any{
				t.Title, e.Metric, e.Period, e.OldValue, e.NewValue, e.AbsDelta, e.RelDelta, e.OldFiling, e.NewFiling,
			})
		}
		for _, c := range st.Conflicts {
			for j, o := range c.Observations {
				conflicts = append(conflicts, []any{t.Title, c.Metric, c.Period, o.FilingID, o.Value, j == 0})
			}
		}
		for _, u := range st.Unresolved {
			line := []any{t.Title, u.Name, u.FilingID}
			for _, v := range formatValues(u.Values) {
				line = append(line, v)
			}
			unresolved = append(unresolved, line)
		}
	}

	extra := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetRestatements, []any{"Statement", "Metric", "Period", "Old", "New", "Abs change", "Rel change", "Old filing", "New filing"}, restatements},
		{SheetConflicts, []any{"Statement", "Metric", "Period", "Filing", "Value", "Displayed"}, conflicts},
		{SheetUnresolved, []any{"Statement", "Block", "Filing", "Values"}, unresolved},
	}
	for _, x := range extra {
		if err := sw.sheet(x.name, x.header, x.rows, 24); err != nil {
			f.Close()
			return nil, err
		}
	}

	// NewFile starts with Sheet1; drop it once real sheets exist.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, eris.Wrap(err, "failed to remove default sheet")
	}
	f.SetActiveSheet(0)
	return f, nil
}

// sheet creates a sheet with a bold header row and a wide first column.
func (sw *sheetWriter) sheet(name string, header []any, rows [][]any, firstColWidth float64) error {
	if _, err := sw.f.NewSheet(name); err != nil {
		return eris.Wrapf(err, "failed to create sheet %q", name)
	}
	if err := sw.f.SetSheetRow(name, "A1", &header); err != nil {
		return eris.Wrapf(err, "failed to write header of %q", name)
	}
	last, _ := excelize.CoordinatesToCellName(max(len(header), 1), 1)
	if err := sw.f.SetCellStyle(name, "A1", last, sw.bold); err != nil {
		return eris.Wrapf(err, "failed to style header of %q", name)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.f.SetSheetRow(name, cell, &row); err != nil {
			return eris.Wrapf(err, "failed to write row %d of %q", i+2, name)
		}
	}
	if err := sw.f.SetColWidth(name, "A", "A", firstColWidth); err != nil {
		return eris.Wrapf(err, "failed to size %q", name)
	}
	return nil
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
