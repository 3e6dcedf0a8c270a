package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"statement_stitch/pkg/core/period"
	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/models"
)

// ============================================================================
// Fixtures
// ============================================================================

func bundledFiling(id string, year int, revenuePrior float64, filedAt time.Time) models.Filing {
	return models.Filing{
		ID:          id,
		Entity:      "ACME",
		PeriodLabel: "FY" + itoa(year),
		FiledAt:     filedAt,
		Source:      id + ".xlsx",
		Grid: models.NewGrid([][]any{
			{"ACME Corp"},
			{"Consolidated Statements of Operations"},
			{"", year, year - 1},
			{"Revenue", 1000, revenuePrior},
			{"Cost of revenue", 600, 550},
			{"Gross profit", 400, 350},
			{"Net income", 100, 80},
			{"Consolidated Balance Sheets"},
			{"", year, year - 1},
			{"Total assets", 5000, 4500},
			{"Total liabilities", 3000, 2800},
			{"Consolidated Statements of Cash Flows"},
			{"", year, year - 1},
			{"Net cash provided by operating activities", 150, 120},
			{"Net change in cash", 20, 10},
		}),
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func newTestOrchestrator() *Orchestrator {
	return NewOrchestrator(NewExtractor(nil, period.Options{ProcessingYear: 2024}, nil), zap.NewNop())
}

// panickyExtractor fails one filing and delegates the rest.
type panickyExtractor struct {
	inner  FilingExtractor
	target string
}

func (p panickyExtractor) ExtractFiling(f models.Filing) FilingResult {
	if f.ID == p.target {
		panic("corrupt grid")
	}
	return p.inner.ExtractFiling(f)
}

// ============================================================================
// Extractor
// ============================================================================

func TestExtractFiling_BundledStatements(t *testing.T) {
	ex := NewExtractor(nil, period.Options{ProcessingYear: 2024}, nil)
	res := ex.ExtractFiling(bundledFiling("f23", 2023, 900, time.Time{}))
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if len(res.Statements) != 3 {
		t.Fatalf("statements = %d, want 3 (warnings %v)", len(res.Statements), res.Warnings)
	}

	want := []models.StatementType{models.IncomeStatement, models.BalanceSheet, models.CashFlow}
	for i, st := range res.Statements {
		if st.Type != want[i] {
			t.Errorf("statement %d type = %s, want %s", i, st.Type, want[i])
		}
		if len(st.Periods) != 2 || st.Periods[0].Year != 2023 || st.Periods[1].Year != 2022 {
			t.Errorf("%s periods = %v", st.Type, st.Periods)
		}
	}
	is := res.Statements[0]
	if len(is.Blocks) != 4 || is.Blocks[0].Name != "Revenue" {
		t.Errorf("income blocks = %+v", is.Blocks)
	}
	if is.PeriodLabel != "FY2023" || is.FilingID != "f23" {
		t.Errorf("provenance = %+v", is)
	}
}

func TestExtractFiling_WholeGridUsesTitle(t *testing.T) {
	f := models.Filing{
		ID:    "bs",
		Title: "Balance Sheet",
		Grid: models.NewGrid([][]any{
			{"", 2023, 2022},
			{"Cash", 10, 9},
			{"Receivables", 5, 4},
		}),
	}
	res := NewExtractor(nil, period.Options{}, nil).ExtractFiling(f)
	if len(res.Statements) != 1 || res.Statements[0].Type != models.BalanceSheet {
		t.Fatalf("statements = %+v", res.Statements)
	}
	if res.Regions[0].Classification.Reason == "" {
		t.Error("classification reason should be reported")
	}
}

func TestExtractFiling_AmbiguousExcluded(t *testing.T) {
	f := models.Filing{
		ID:   "noise",
		Grid: models.NewGrid([][]any{{"Widgets", 1, 2}, {"Gadgets", 3, 4}}),
	}
	res := NewExtractor(nil, period.Options{}, nil).ExtractFiling(f)
	if len(res.Statements) != 0 {
		t.Fatalf("ambiguous grid must not produce statements: %+v", res.Statements)
	}
	if len(res.Regions) != 1 || !res.Regions[0].Excluded {
		t.Errorf("regions = %+v", res.Regions)
	}
}

func TestExtractFiling_RecoversPanic(t *testing.T) {
	// A zero Extractor has no locator, so the first stage panics.
	res := (&Extractor{logger: zap.NewNop()}).ExtractFiling(bundledFiling("p", 2023, 900, time.Time{}))
	var fe *FilingError
	if !errors.As(res.Err, &fe) {
		t.Fatalf("Err = %v, want *FilingError", res.Err)
	}
	if fe.FilingID != "p" || fe.Stage != StageLocate {
		t.Errorf("FilingError = %+v", fe)
	}
}

// ============================================================================
// Orchestrator
// ============================================================================

// TestCase1_RestatementAcrossFilings
// Input: FY2023 filing reports 2022 revenue 900; FY2022 filing reported 897.
// Expected: one restatement event, displayed value from the newer filing.
func TestCase1_RestatementAcrossFilings(t *testing.T) {
	filings := []models.Filing{
		bundledFiling("f22", 2022, 800, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)),
		bundledFiling("f23", 2023, 900, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	}
	// The FY2022 filing reports 897 for its own current year.
	filings[0].Grid.Rows[3][1] = models.NumberCell(3, 1, 897)

	report, err := newTestOrchestrator().Run(context.Background(), filings, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	is, ok := report.Statement(models.IncomeStatement)
	if !ok {
		t.Fatal("income statement missing")
	}
	if !reflect.DeepEqual(is.Periods, []string{"2021", "2022", "2023"}) {
		t.Errorf("periods = %v", is.Periods)
	}
	if v, _ := is.Value("Revenue", "2022"); v != 900 {
		t.Errorf("Revenue 2022 = %v, want 900", v)
	}
	if len(is.Restatements) != 1 {
		t.Fatalf("restatements = %+v, want exactly 1", is.Restatements)
	}
	ev := is.Restatements[0]
	if ev.OldValue != 897 || ev.NewValue != 900 || ev.NewFiling != "f23" {
		t.Errorf("event = %+v", ev)
	}
	if report.RunID.String() == "" || len(report.Filings) != 2 {
		t.Errorf("report = %+v", report)
	}
}

// TestCase2_PartialSuccess
// Input: three filings, one of which panics during extraction.
// Expected: the run succeeds, the failing filing is reported.
func TestCase2_PartialSuccess(t *testing.T) {
	ex := panickyExtractor{inner: NewExtractor(nil, period.Options{}, nil), target: "bad"}
	o := NewOrchestrator(ex, nil)
	filings := []models.Filing{
		bundledFiling("f23", 2023, 900, time.Time{}),
		bundledFiling("bad", 2022, 800, time.Time{}),
		bundledFiling("f21", 2021, 700, time.Time{}),
	}
	report, err := o.Run(context.Background(), filings, Options{Workers: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].FilingID != "bad" {
		t.Fatalf("failed = %+v", failed)
	}
	if failed[0].Error == "" {
		t.Error("failure should carry the error text")
	}
	if is, _ := report.Statement(models.IncomeStatement); len(is.Filings) != 2 {
		t.Errorf("folded filings = %v", is.Filings)
	}
}

func TestRun_MalformedInputIsFatal(t *testing.T) {
	bad := bundledFiling("", 2023, 900, time.Time{})
	_, err := newTestOrchestrator().Run(context.Background(), []models.Filing{bad}, Options{})
	if !errors.Is(err, ErrMalformedInput) || !errors.Is(err, models.ErrMissingFilingID) {
		t.Errorf("err = %v", err)
	}

	shifted := bundledFiling("x", 2023, 900, time.Time{})
	shifted.Grid.Rows[0][0].Col = 5
	if _, err := newTestOrchestrator().Run(context.Background(), []models.Filing{shifted}, Options{}); !errors.Is(err, models.ErrMalformedGrid) {
		t.Errorf("err = %v, want ErrMalformedGrid", err)
	}
}

func TestRun_WorkerCountDoesNotChangeOutput(t *testing.T) {
	var filings []models.Filing
	for y := 2018; y <= 2023; y++ {
		filings = append(filings, bundledFiling("f"+itoa(y), y, float64(900-y%3), time.Date(y+1, 2, 1, 0, 0, 0, 0, time.UTC)))
	}
	o := newTestOrchestrator()
	one, err := o.Run(context.Background(), filings, Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	many, err := o.Run(context.Background(), filings, Options{Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(one.Statements, many.Statements) {
		t.Error("consolidated output depends on worker count")
	}
}

func TestRun_OrderChangesCanonicalNames(t *testing.T) {
	newer := bundledFiling("new", 2023, 900, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	older := bundledFiling("old", 2022, 800, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC))
	older.Grid.Rows[3][0] = models.TextCell(3, 0, "Total revenues")

	for _, tt := range []struct {
		order synthesis.Order
		want  string
	}{
		{synthesis.OrderNewestFirst, "Revenue"},
		{synthesis.OrderOldestFirst, "Total revenues"},
	} {
		report, err := newTestOrchestrator().Run(context.Background(), []models.Filing{older, newer}, Options{Order: tt.order})
		if err != nil {
			t.Fatal(err)
		}
		is, _ := report.Statement(models.IncomeStatement)
		if is.Metrics[0].Name != tt.want {
			t.Errorf("%s: first metric = %q, want %q", tt.order, is.Metrics[0].Name, tt.want)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestOrchestrator().Run(ctx, []models.Filing{bundledFiling("f", 2023, 900, time.Time{})}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
