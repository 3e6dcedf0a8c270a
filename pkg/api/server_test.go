package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"statement_stitch/pkg/core/period"
	"statement_stitch/pkg/core/pipeline"
	"statement_stitch/pkg/core/store"
)

const filingsJSON = `[
  {"id": "fy22", "period": "FY2022", "filed_at": "2023-02-01", "rows": [
    ["Consolidated Statements of Operations"],
    ["", 2022, 2021],
    ["Revenue", 897, 800],
    ["Cost of revenue", 550, 500],
    ["Net income", 80, 70]
  ]},
  {"id": "fy23", "period": "FY2023", "filed_at": "2024-02-01", "rows": [
    ["Consolidated Statements of Operations"],
    ["", 2023, 2022],
    ["Revenue", 1000, 900],
    ["Cost of revenue", 600, 550],
    ["Net income", 100, 80]
  ]}
]`

func newTestServer(t *testing.T, repo store.Repository) *httptest.Server {
	t.Helper()
	ex := pipeline.NewExtractor(nil, period.Options{ProcessingYear: 2024}, nil)
	s := NewServer(Config{}, ex, pipeline.Options{Workers: 2}, repo, nil)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// =============================================================================
// Endpoints
// =============================================================================

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestConsolidate_JSONAndSave(t *testing.T) {
	repo, err := store.NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, repo)

	resp := postJSON(t, ts.URL+"/api/v1/consolidate", map[string]any{
		"entity":  "ACME",
		"save":    true,
		"filings": json.RawMessage(filingsJSON),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Success bool                `json:"success"`
		Data    ConsolidateResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || !out.Data.Saved {
		t.Fatalf("response = %+v", out)
	}
	report := out.Data.Report
	if len(report.Statements) != 1 {
		t.Fatalf("statements = %+v", report.Statements)
	}
	is := report.Statements[0]
	if v, ok := is.Value("Revenue", "2022"); !ok || v != 900 {
		t.Errorf("Revenue 2022 = %v, %v", v, ok)
	}
	if len(is.Restatements) != 1 {
		t.Errorf("restatements = %+v", is.Restatements)
	}

	get, err := http.Get(ts.URL + "/api/v1/statements/ACME?format=markdown")
	if err != nil {
		t.Fatal(err)
	}
	defer get.Body.Close()
	var md bytes.Buffer
	md.ReadFrom(get.Body)
	if get.StatusCode != http.StatusOK || !strings.Contains(md.String(), "| Revenue |") {
		t.Errorf("stored statements: %d\n%s", get.StatusCode, md.String())
	}
}

func TestConsolidate_Multipart(t *testing.T) {
	ts := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("entity", "ACME")
	fw, _ := mw.CreateFormFile("file", "filings.json")
	fw.Write([]byte(filingsJSON))
	bad, _ := mw.CreateFormFile("file", "scan.pdf")
	bad.Write([]byte("%PDF"))
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/v1/consolidate", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Data ConsolidateResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || len(out.Data.Report.Filings) != 2 {
		t.Fatalf("status %d, response %+v", resp.StatusCode, out)
	}
	if len(out.Data.Skipped) != 1 || !strings.HasPrefix(out.Data.Skipped[0], "scan.pdf") {
		t.Errorf("skipped = %v", out.Data.Skipped)
	}
}

func TestConsolidate_BadRequests(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		name string
		body any
		want int
	}{
		{"no filings", map[string]any{"entity": "ACME"}, http.StatusBadRequest},
		{"unknown order", map[string]any{"order": "sideways", "filings": json.RawMessage(filingsJSON)}, http.StatusBadRequest},
		{"save without store", map[string]any{"save": true, "filings": json.RawMessage(filingsJSON)}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := postJSON(t, ts.URL+"/api/v1/consolidate", tt.body); resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestConsolidate_UnknownFormatWritesNothing(t *testing.T) {
	repo, err := store.NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, repo)

	resp := postJSON(t, ts.URL+"/api/v1/consolidate?format=pdf", map[string]any{
		"entity":  "ACME",
		"save":    true,
		"filings": json.RawMessage(filingsJSON),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if _, err := repo.Load(context.Background(), "ACME"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load after rejected request: %v, want ErrNotFound", err)
	}

	get, err := http.Get(ts.URL + "/api/v1/statements/ACME?format=pdf")
	if err != nil {
		t.Fatal(err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusBadRequest {
		t.Errorf("statements status = %d, want 400", get.StatusCode)
	}
}

func TestInspect(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := postJSON(t, ts.URL+"/api/v1/inspect", map[string]any{"filings": json.RawMessage(filingsJSON)})
	var out struct {
		Data []inspection `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Data) != 2 || len(out.Data[0].Regions) == 0 {
		t.Errorf("inspection = %+v", out.Data)
	}
}

func TestStatements_NotFound(t *testing.T) {
	repo, err := store.NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, repo)
	resp, err := http.Get(ts.URL + "/api/v1/statements/nobody")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
