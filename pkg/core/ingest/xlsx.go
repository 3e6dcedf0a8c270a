package ingest

import (
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"statement_stitch/pkg/models"
)

// LoadXLSX reads a workbook from disk, one filing per non-empty sheet.
func LoadXLSX(path string) ([]models.Filing, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open workbook %s", path)
	}
	defer f.Close()
	return readWorkbook(f, path)
}

// ReadXLSX reads a workbook from r. source names it in filing provenance.
func ReadXLSX(r io.Reader, source string) ([]models.Filing, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read workbook %s", source)
	}
	defer f.Close()
	return readWorkbook(f, source)
}

func readWorkbook(f *excelize.File, source string) ([]models.Filing, error) {
	var filings []models.Filing
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to read sheet %q of %s", sheet, source)
		}
		filing, err := newFiling(source+"#"+sheet, sheet, textRows(rows))
		if errors.Is(err, ErrEmptyGrid) {
			continue
		}
		if err != nil {
			return nil, err
		}
		filings = append(filings, filing)
	}
	if len(filings) == 0 {
		return nil, eris.Wrapf(ErrEmptyGrid, "workbook %s", source)
	}
	return filings, nil
}
