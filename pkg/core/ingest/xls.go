package ingest

import (
	"errors"
	"io"

	"github.com/extrame/xls"
	"github.com/rotisserie/eris"

	"statement_stitch/pkg/models"
)

// LoadXLS reads a legacy BIFF workbook from disk, one filing per non-empty
// sheet.
func LoadXLS(path string) ([]models.Filing, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open xls workbook %s", path)
	}
	return readXLSBook(wb, path)
}

// ReadXLS reads a legacy workbook from rs.
func ReadXLS(rs io.ReadSeeker, source string) ([]models.Filing, error) {
	wb, err := xls.OpenReader(rs, "utf-8")
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read xls workbook %s", source)
	}
	return readXLSBook(wb, source)
}

func readXLSBook(wb *xls.WorkBook, source string) ([]models.Filing, error) {
	var filings []models.Filing
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		filing, err := newFiling(source+"#"+sheet.Name, sheet.Name, xlsRows(sheet))
		if errors.Is(err, ErrEmptyGrid) {
			continue
		}
		if err != nil {
			return nil, err
		}
		filings = append(filings, filing)
	}
	if len(filings) == 0 {
		return nil, eris.Wrapf(ErrEmptyGrid, "xls workbook %s", source)
	}
	return filings, nil
}

// xlsRows copies the sheet into text rows. MaxRow is the last row index, and
// rows the file never wrote are kept as blank lines.
func xlsRows(sheet *xls.WorkSheet) [][]any {
	rows := make([][]any, 0, int(sheet.MaxRow)+1)
	for r := 0; r <= int(sheet.MaxRow); r++ {
		row := xlsRow(sheet, r)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		line := make([]any, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			line[c] = scalar(row.Col(c))
		}
		rows = append(rows, line)
	}
	return rows
}

// xlsRow returns nil for rows absent from the file; the library dereferences
// a missing row without checking.
func xlsRow(sheet *xls.WorkSheet, r int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(r)
}
