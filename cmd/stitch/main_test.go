package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/models"
)

func TestManifestFromArgs(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "filings.yaml")
	body := "entity: ACME\nfilings:\n  - path: fy23.xlsx\n    period: FY2023\n"
	if err := os.WriteFile(manifest, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := manifestFromArgs([]string{manifest})
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.Entity != "ACME" || len(m.Filings) != 1 || m.Filings[0].Period != "FY2023" {
		t.Errorf("manifest = %+v", m)
	}

	m, err = manifestFromArgs([]string{"a.xlsx", "b.html"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Filings) != 2 || m.Filings[1].Path != "b.html" {
		t.Errorf("file list manifest = %+v", m)
	}
}

func TestRender(t *testing.T) {
	v := 100.0
	statements := []synthesis.ConsolidatedStatement{{
		Type:    models.IncomeStatement,
		Periods: []string{"2023"},
		Metrics: []synthesis.MetricRow{{Name: "Revenue", Values: []*float64{&v}}},
	}}
	tests := []struct {
		format string
		want   string
	}{
		{"markdown", "| Revenue |"},
		{"html", "<table>"},
		{"json", `"name": "Revenue"`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := render(&buf, tt.format, "ACME", statements); err != nil {
				t.Fatalf("render: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}

	if err := render(&bytes.Buffer{}, "pdf", "", statements); err == nil {
		t.Error("unknown format must fail")
	}
	if err := render(&bytes.Buffer{}, "markdown", "", map[string]int{}); err == nil {
		t.Error("markdown of a non-statement value must fail")
	}
}
