package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"statement_stitch/pkg/models"
)

// ============================================================================
// Fixtures
// ============================================================================

func writeWorkbook(t *testing.T, dir string, sheets map[string][][]interface{}, order []string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		for r, row := range sheets[name] {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			values := row
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}
	path := filepath.Join(dir, "filing.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func cellText(g models.Grid, r, c int) string {
	return g.Cell(r, c).String()
}

// ============================================================================
// Formats and IDs
// ============================================================================

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"a/b/FY2023.XLSX", FormatXLSX, false},
		{"legacy.xls", FormatXLS, false},
		{"https://sec.gov/doc.htm?x=1", FormatHTML, false},
		{"notes.md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"dump.hjson", FormatJSON, false},
		{"scan.pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DetectFormat(tt.in)
			if tt.err {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("err = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("DetectFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestFilingID_Deterministic(t *testing.T) {
	if FilingID("a.xlsx#IS") != FilingID("a.xlsx#IS") {
		t.Error("same source must give the same id")
	}
	if FilingID("a.xlsx#IS") == FilingID("a.xlsx#BS") {
		t.Error("different sources must give different ids")
	}
}

// ============================================================================
// XLSX / XLS
// ============================================================================

func TestLoadXLSX_OneFilingPerSheet(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, map[string][][]interface{}{
		"Income": {
			{"Consolidated Statements of Operations"},
			{"", 2023, 2022},
			{"Revenue", 100, 90},
			{"Net loss", "(5)", "(3)"},
		},
		"Empty": {},
	}, []string{"Income", "Empty"})

	filings, err := LoadXLSX(path)
	if err != nil {
		t.Fatalf("LoadXLSX: %v", err)
	}
	if len(filings) != 1 {
		t.Fatalf("filings = %d, want 1 (empty sheet skipped)", len(filings))
	}
	f := filings[0]
	if f.Title != "Income" || f.Source != path+"#Income" || f.ID != FilingID(path+"#Income") {
		t.Errorf("metadata = %+v", f)
	}
	if got := f.Grid.Cell(2, 1); got.Kind != models.CellNumber || got.Number != 100 {
		t.Errorf("numeric cell = %+v", got)
	}
	if got := cellText(f.Grid, 3, 1); got != "(5)" {
		t.Errorf("accounting negative kept as text, got %q", got)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadXLSX_AllEmpty(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), map[string][][]interface{}{"S": {}}, []string{"S"})
	if _, err := LoadXLSX(path); !errors.Is(err, ErrEmptyGrid) {
		t.Errorf("err = %v, want ErrEmptyGrid", err)
	}
}

func TestXLSRows_MissingRowsAreBlank(t *testing.T) {
	rows := xlsRows(&xls.WorkSheet{Name: "S"})
	if len(rows) != 1 || rows[0] != nil {
		t.Errorf("rows = %v, want one blank row", rows)
	}
}

// ============================================================================
// HTML
// ============================================================================

func TestLoadHTML_VirtualGrid(t *testing.T) {
	doc := `<html><head><title>ACME 10-K</title></head><body>
<p>This long paragraph is narrative text that is well beyond any statement title length and therefore must not be carried into the grid because it would only add noise for the locator and the classifier downstream.</p>
<h2>CONSOLIDATED BALANCE SHEETS</h2>
<table>
  <tr><th></th><th colspan="2">December 31,</th></tr>
  <tr><td></td><td>2023</td><td>2022</td></tr>
  <tr><td rowspan="2">Cash</td><td>$ 1,200</td><td>1,100</td></tr>
  <tr><td>5</td><td>6</td></tr>
</table>
<table><caption>Statements of Cash Flows</caption>
  <tr><td>Net cash</td><td>10</td><td>9</td></tr>
</table>
</body></html>`

	filings, err := LoadHTML(strings.NewReader(doc), "acme.htm")
	if err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}
	g := filings[0].Grid
	if filings[0].Title != "ACME 10-K" {
		t.Errorf("title = %q", filings[0].Title)
	}

	// Input: heading, 4 table rows, blank separator, caption, 1 row.
	// Expected: 8 rows, long paragraph dropped.
	if g.NumRows() != 8 {
		t.Fatalf("rows = %d, want 8:\n%v", g.NumRows(), g.Rows)
	}
	if cellText(g, 0, 0) != "CONSOLIDATED BALANCE SHEETS" {
		t.Errorf("row 0 = %q", cellText(g, 0, 0))
	}
	if cellText(g, 1, 1) != "December 31," || !g.Cell(1, 2).IsBlank() {
		t.Errorf("colspan not expanded: %v", g.Rows[1])
	}
	if g.Cell(2, 1).Number != 2023 {
		t.Errorf("year header = %+v", g.Cell(2, 1))
	}
	// The rowspan covers column 0 of the next row, shifting 5 and 6 right.
	if !g.Cell(4, 0).IsBlank() || g.Cell(4, 1).Number != 5 || g.Cell(4, 2).Number != 6 {
		t.Errorf("rowspan row = %v", g.Rows[4])
	}
	if g.NumRows() > 5 && len(g.Rows[5]) != 0 {
		t.Errorf("expected blank separator row, got %v", g.Rows[5])
	}
	if cellText(g, 6, 0) != "Statements of Cash Flows" {
		t.Errorf("caption row = %q", cellText(g, 6, 0))
	}
}

func TestLoadHTML_NoContent(t *testing.T) {
	if _, err := LoadHTML(strings.NewReader("<html><body></body></html>"), "x.html"); !errors.Is(err, ErrEmptyGrid) {
		t.Errorf("err = %v, want ErrEmptyGrid", err)
	}
}

// ============================================================================
// Markdown / JSON
// ============================================================================

func TestLoadMarkdown(t *testing.T) {
	src := "# Income Statement\n\n| Item | 2023 | 2022 |\n|---|---|---|\n| Revenue | 1,000 | 900 |\n| Net income | 10 | 9 |\n"
	filings, err := LoadMarkdown([]byte(src), "is.md")
	if err != nil {
		t.Fatalf("LoadMarkdown: %v", err)
	}
	g := filings[0].Grid
	if g.NumRows() != 4 {
		t.Fatalf("rows = %d, want 4", g.NumRows())
	}
	if cellText(g, 0, 0) != "Income Statement" {
		t.Errorf("heading row = %q", cellText(g, 0, 0))
	}
	if g.Cell(1, 1).Number != 2023 {
		t.Errorf("header row should keep years, got %+v", g.Cell(1, 1))
	}
	if cellText(g, 2, 1) != "1,000" || g.Cell(3, 2).Number != 9 {
		t.Errorf("data rows = %v", g.Rows[2:])
	}
}

func TestLoadJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{"single", `{"entity":"ACME","period":"FY2023","filed_at":"2024-02-01","rows":[["Revenue",100,"90"]]}`, 1},
		{"array", `[{"id":"a","rows":[["Revenue",1,2]]},{"id":"b","rows":[["Revenue",3,4]]}]`, 2},
		{"repaired", `{"entity":"ACME","rows":[["Revenue",100,90],],}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filings, err := LoadJSON([]byte(tt.input), "dump.json")
			if err != nil {
				t.Fatalf("LoadJSON: %v", err)
			}
			if len(filings) != tt.count {
				t.Fatalf("filings = %d, want %d", len(filings), tt.count)
			}
			if got := filings[0].Grid.Cell(0, 2); got.Kind != models.CellNumber {
				t.Errorf("numeric string should become a number, got %+v", got)
			}
		})
	}

	filings, _ := LoadJSON([]byte(tests[0].input), "dump.json")
	f := filings[0]
	if f.Entity != "ACME" || f.PeriodLabel != "FY2023" || f.FiledAt.Year() != 2024 {
		t.Errorf("metadata = %+v", f)
	}

	if _, err := LoadJSON([]byte(`{"rows":[]}`), "e.json"); !errors.Is(err, ErrEmptyGrid) {
		t.Errorf("empty rows err = %v", err)
	}
}

// ============================================================================
// Manifest and fetcher
// ============================================================================

func TestLoader_Manifest(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, dir, map[string][][]interface{}{
		"IS": {{"Income Statement"}, {"Revenue", 10, 9}},
		"BS": {{"Balance Sheet"}, {"Cash", 5, 4}},
	}, []string{"IS", "BS"})
	if err := os.WriteFile(filepath.Join(dir, "q.md"), []byte("| Revenue | 1 | 2 |\n|---|---|---|\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := `entity: ACME
filings:
  - path: filing.xlsx
    id: fy23
    period: FY2023
    filed_at: 2024-02-01
  - path: q.md
    entity: ACME Holdings
  - path: missing.json
  - path: scan.pdf
`
	mpath := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(mpath, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(mpath)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	res := Load(context.Background(), m)

	if len(res.Failures) != 2 {
		t.Fatalf("failures = %v, want 2", res.Failures)
	}
	var unsupported *EntryError
	for _, f := range res.Failures {
		if errors.Is(f, ErrUnsupportedFormat) {
			unsupported = f
		}
	}
	if unsupported == nil || unsupported.Path != "scan.pdf" {
		t.Errorf("expected the pdf entry to fail as unsupported, got %v", res.Failures)
	}

	if len(res.Filings) != 3 {
		t.Fatalf("filings = %d, want 3", len(res.Filings))
	}
	if res.Filings[0].ID != "fy23/IS" || res.Filings[1].ID != "fy23/BS" {
		t.Errorf("sheet ids = %q, %q", res.Filings[0].ID, res.Filings[1].ID)
	}
	if res.Filings[0].PeriodLabel != "FY2023" || res.Filings[0].Entity != "ACME" || res.Filings[0].FiledAt.IsZero() {
		t.Errorf("entry metadata not applied: %+v", res.Filings[0])
	}
	if res.Filings[2].Entity != "ACME Holdings" {
		t.Errorf("entry entity = %q", res.Filings[2].Entity)
	}
}

func TestParseManifest_RequiresPath(t *testing.T) {
	if _, err := ParseManifest([]byte("filings:\n  - id: x\n")); err == nil {
		t.Error("entry without path should fail")
	}
}

func TestFetcher_CachesDocuments(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("<table><tr><td>Revenue</td><td>1</td><td>2</td></tr></table>"))
	}))
	defer srv.Close()

	loader := NewLoader(NewFetcher(t.TempDir()), nil)
	url := srv.URL + "/doc.htm"
	for i := 0; i < 2; i++ {
		filings, err := loader.LoadFile(context.Background(), url, "")
		if err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		if filings[0].Source != url {
			t.Errorf("source = %q", filings[0].Source)
		}
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1 (second read from cache)", hits)
	}
}

func TestFetcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	if _, err := NewFetcher("").Fetch(context.Background(), srv.URL+"/x.htm"); err == nil {
		t.Error("expected error for 404")
	}
}
