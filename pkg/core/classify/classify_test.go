package classify

import (
	"math/rand"
	"reflect"
	"testing"

	"statement_stitch/pkg/models"
)

// =============================================================================
// HELPER FUNCTIONS FOR TEST DATA CREATION
// =============================================================================

func incomeRows() [][]any {
	return [][]any{
		{"", 2023, 2022, 2021},
		{"Revenue", 1000, 900, 800},
		{"Cost of sales", 600, 540, 480},
		{"Gross profit", 400, 360, 320},
		{"Research and development", 50, 45, 40},
		{"Operating income", 200, 180, 160},
		{"Interest expense", 10, 12, 14},
		{"Income before income taxes", 190, 168, 146},
		{"Provision for income taxes", 40, 35, 30},
		{"Net income", 150, 133, 116},
	}
}

func balanceRows() [][]any {
	return [][]any{
		{"", 2023, 2022},
		{"Cash and cash equivalents", 300, 250},
		{"Accounts receivable", 120, 110},
		{"Inventories", 90, 80},
		{"Total current assets", 510, 440},
		{"Goodwill", 200, 200},
		{"Total assets", 900, 820},
		{"Accounts payable", 70, 60},
		{"Total liabilities", 400, 380},
		{"Retained earnings", 300, 250},
	}
}

func cashRows() [][]any {
	return [][]any{
		{"", 2023, 2022, 2021},
		{"Net income", 150, 133, 116},
		{"Depreciation and amortization", 30, 28, 26},
		{"Stock-based compensation", 12, 10, 9},
		{"Net cash provided by operating activities", 190, 170, 150},
		{"Capital expenditures", -40, -35, -30},
		{"Net cash used in investing activities", -40, -35, -30},
		{"Dividends paid", -20, -18, -16},
		{"Net cash used in financing activities", -20, -18, -16},
		{"Cash, end of period", 300, 250, 200},
	}
}

// =============================================================================
// CLASSIFIER
// =============================================================================

func TestClassify_ByContent(t *testing.T) {
	c := NewClassifier(nil, nil)
	tests := []struct {
		name string
		rows [][]any
		want models.StatementType
	}{
		{"income", incomeRows(), models.IncomeStatement},
		{"balance", balanceRows(), models.BalanceSheet},
		{"cash flow", cashRows(), models.CashFlow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(models.NewGrid(tt.rows), "")
			if got.Type != tt.want {
				t.Errorf("Classify = %s (%s, scores %v), want %s", got.Type, got.Reason, got.Scores, tt.want)
			}
			if got.Reason != ReasonKeywordScore {
				t.Errorf("Reason = %s, want %s", got.Reason, ReasonKeywordScore)
			}
		})
	}
}

func TestClassify_TitleRules(t *testing.T) {
	c := NewClassifier(nil, nil)

	// Exact title beats content.
	got := c.Classify(models.NewGrid(incomeRows()), "Consolidated Statements of Cash Flows")
	if got.Type != models.CashFlow || got.Reason != ReasonTitleExact {
		t.Errorf("exact title: got %s/%s", got.Type, got.Reason)
	}
	if got.Scores[models.CashFlow] < 9 {
		t.Errorf("exact title must add the title bonus, score %v", got.Scores[models.CashFlow])
	}

	// Cash flow beats income when both names appear.
	got = c.Classify(models.NewGrid(nil), "Statement of Income and Statement of Cash Flows")
	if got.Type != models.CashFlow {
		t.Errorf("priority: got %s", got.Type)
	}

	// Partial keyword needs the minimum score.
	got = c.Classify(models.NewGrid(balanceRows()), "Assets")
	if got.Type != models.BalanceSheet || got.Reason != ReasonTitlePartial {
		t.Errorf("partial title: got %s/%s", got.Type, got.Reason)
	}
	got = c.Classify(models.NewGrid([][]any{{"Foo", 1, 2}}), "Earnings")
	if got.Type != models.Unknown || got.Reason != ReasonAmbiguous {
		t.Errorf("partial title below minimum: got %s/%s", got.Type, got.Reason)
	}
}

func TestClassify_Ambiguous(t *testing.T) {
	c := NewClassifier(nil, nil)
	g := models.NewGrid([][]any{
		{"Headcount", 10, 12},
		{"Offices", 3, 4},
	})
	got := c.Classify(g, "")
	if !got.Ambiguous() || got.Reason != ReasonAmbiguous {
		t.Errorf("expected ambiguous, got %s/%s", got.Type, got.Reason)
	}
}

// The same input must always give the same result.
func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(nil, nil)
	g := models.NewGrid(append(incomeRows(), cashRows()...))
	first := c.Classify(g, "Financial data")
	for i := 0; i < 50; i++ {
		if got := c.Classify(g, "Financial data"); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

// =============================================================================
// BOUNDARY LOCATOR
// =============================================================================

// =============================================================================
// TEST CASE: THREE STATEMENTS IN ONE 121-ROW GRID
// =============================================================================
// Headers at rows 2, 40, 75 -> income (2,39), balance (40,74), cash (75,120)

func bundledGrid(rows int, headers map[int]string) models.Grid {
	raw := make([][]any, rows)
	for r := range raw {
		if h, ok := headers[r]; ok {
			raw[r] = []any{h}
			continue
		}
		raw[r] = []any{"Line item", r, r + 1}
	}
	return models.NewGrid(raw)
}

func TestLocate_BundledStatements(t *testing.T) {
	g := bundledGrid(121, map[int]string{
		2:  "Consolidated Statements of Operations",
		40: "Consolidated Balance Sheets",
		75: "Consolidated Statements of Cash Flows",
	})

	b := NewLocator(nil, nil).Locate(g)

	want := map[models.StatementType][2]int{
		models.IncomeStatement: {2, 39},
		models.BalanceSheet:    {40, 74},
		models.CashFlow:        {75, 120},
	}
	for typ, rng := range want {
		got, ok := b.ByType[typ]
		if !ok {
			t.Fatalf("%s not found", typ)
		}
		if got.StartRow != rng[0] || got.EndRow != rng[1] {
			t.Errorf("%s = (%d,%d), want (%d,%d)", typ, got.StartRow, got.EndRow, rng[0], rng[1])
		}
		if got.Columns != 3 {
			t.Errorf("%s columns = %d", typ, got.Columns)
		}
	}
	if len(b.Regions) != 3 || b.Regions[0].Type != models.IncomeStatement || b.Regions[2].Type != models.CashFlow {
		t.Errorf("regions not ordered top to bottom: %+v", b.Regions)
	}
}

func TestLocate_SubHeaderAndRepeatedBlock(t *testing.T) {
	// Balance sheet title repeated once as a sub-header (continued page),
	// then a third time which closes the region.
	g := bundledGrid(30, map[int]string{
		0:  "Balance Sheet",
		10: "Balance Sheet (continued)",
		20: "Balance Sheet - Parent Company",
	})
	b := NewLocator(nil, nil).Locate(g)
	got := b.ByType[models.BalanceSheet]
	if got.StartRow != 0 || got.EndRow != 19 {
		t.Errorf("balance region = (%d,%d), want (0,19)", got.StartRow, got.EndRow)
	}
	if b.Found(models.CashFlow) || b.Found(models.IncomeStatement) {
		t.Error("absent statements must not be reported")
	}
}

func TestLocate_OutOfReportOrder(t *testing.T) {
	// Cash flow comes first and repeats after the income statement. The
	// repeated cash header closes the income region.
	g := bundledGrid(20, map[int]string{
		1:  "Statement of Cash Flows",
		8:  "Income Statement",
		14: "Statement of Cash Flows",
	})
	b := NewLocator(nil, nil).Locate(g)
	cf := b.ByType[models.CashFlow]
	is := b.ByType[models.IncomeStatement]
	if cf.StartRow != 1 || cf.EndRow != 7 {
		t.Errorf("cash = (%d,%d), want (1,7)", cf.StartRow, cf.EndRow)
	}
	if is.StartRow != 8 || is.EndRow != 13 {
		t.Errorf("income = (%d,%d), want (8,13)", is.StartRow, is.EndRow)
	}
}

func TestHeaderType_Rules(t *testing.T) {
	l := NewLocator(nil, nil)
	long := "Statement of Income "
	for len(long) <= 170 {
		long += "and other supplementary information "
	}
	g := models.NewGrid([][]any{
		{"Consolidated Statements of Income"},
		{"Statement of Income", 2023},
		{long},
		{"Statements of Cash Flows and Statements of Income"},
		{"Revenue"},
	})
	tests := []struct {
		row  int
		want models.StatementType
		ok   bool
	}{
		{0, models.IncomeStatement, true},
		{1, models.Unknown, false},
		{2, models.Unknown, false},
		{3, models.CashFlow, true},
		{4, models.Unknown, false},
	}
	for _, tt := range tests {
		got, ok := l.HeaderType(g, tt.row)
		if got != tt.want || ok != tt.ok {
			t.Errorf("row %d: got %s,%v want %s,%v", tt.row, got, ok, tt.want, tt.ok)
		}
	}
}

// Regions never overlap and are ordered, whatever the header layout.
func TestLocate_NeverOverlaps(t *testing.T) {
	titles := []string{"Income Statement", "Balance Sheet", "Statement of Cash Flows"}
	rng := rand.New(rand.NewSource(7))
	l := NewLocator(nil, nil)

	for iter := 0; iter < 200; iter++ {
		rows := 10 + rng.Intn(80)
		headers := make(map[int]string)
		for k := rng.Intn(7); k > 0; k-- {
			headers[rng.Intn(rows)] = titles[rng.Intn(len(titles))]
		}
		b := l.Locate(bundledGrid(rows, headers))
		for i, r := range b.Regions {
			if r.StartRow > r.EndRow || r.EndRow >= rows {
				t.Fatalf("iter %d: invalid region %+v", iter, r)
			}
			if i > 0 && (b.Regions[i-1].Overlaps(r) || b.Regions[i-1].StartRow >= r.StartRow) {
				t.Fatalf("iter %d: regions overlap or unordered: %+v", iter, b.Regions)
			}
		}
	}
}
