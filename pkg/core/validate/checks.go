package validate

import (
	"fmt"
	"strings"

	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/models"
)

// Kind names a check.
type Kind string

const (
	KindBalanceEquation  Kind = "balance_equation"
	KindCashFlowEquation Kind = "cash_flow_equation"
	KindNetIncomeLink    Kind = "net_income_linkage"
	KindOutlier          Kind = "outlier"
)

// Tolerance accepts a difference up to Abs units or Rel of the reference
// value, whichever is larger.
type Tolerance struct {
	Abs float64 `mapstructure:"abs" yaml:"abs" json:"abs"`
	Rel float64 `mapstructure:"rel" yaml:"rel" json:"rel"`
}

// Options configure Run. Zero fields take the defaults.
type Options struct {
	Tolerance  Tolerance `mapstructure:"tolerance" yaml:"tolerance"`
	OutlierPct float64   `mapstructure:"outlier_pct" yaml:"outlier_pct"` // period-over-period change, in percent, flagged as outlier
}

// DefaultOptions returns the defaults used for zero fields.
func DefaultOptions() Options {
	return Options{Tolerance: Tolerance{Abs: 1, Rel: 0.005}, OutlierPct: 500}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Tolerance.Abs == 0 && o.Tolerance.Rel == 0 {
		o.Tolerance = d.Tolerance
	}
	if o.OutlierPct == 0 {
		o.OutlierPct = d.OutlierPct
	}
	return o
}

// Check is the outcome of one check for one period.
type Check struct {
	Kind       Kind                 `json:"kind"`
	Statement  models.StatementType `json:"statement"`
	Metric     string               `json:"metric,omitempty"`
	Period     string               `json:"period"`
	Expected   float64              `json:"expected"`
	Actual     float64              `json:"actual"`
	Difference float64              `json:"difference"`
	Passed     bool                 `json:"passed"`
	Detail     string               `json:"detail,omitempty"`
}

// Report collects every check of a run.
type Report struct {
	Checks []Check `json:"checks"`
}

// Failures returns the checks that did not pass.
func (r Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Metric name candidates. Exact matches are compared after normalization.
var (
	totalAssetsNames      = []string{"total assets"}
	totalLiabilitiesNames = []string{"total liabilities"}
	totalEquityNames      = []string{
		"total equity", "total stockholders' equity", "total shareholders' equity",
		"total stockholders equity", "total shareholders equity",
	}
	liabilitiesAndEquityNames = []string{
		"total liabilities and equity", "total liabilities and stockholders' equity",
		"total liabilities and shareholders' equity", "total liabilities and stockholders equity",
		"total liabilities and shareholders equity",
	}
	netIncomeNames = []string{"net income", "net income (loss)", "net loss", "net earnings", "profit for the year"}
)

// Run checks every statement. Checks whose metrics are absent are skipped.
func Run(statements []synthesis.ConsolidatedStatement, opts Options) Report {
	opts = opts.withDefaults()
	var r Report
	byType := make(map[models.StatementType]synthesis.ConsolidatedStatement, len(statements))
	for _, st := range statements {
		byType[st.Type] = st
	}

	if bs, ok := byType[models.BalanceSheet]; ok {
		r.Checks = append(r.Checks, balanceChecks(bs, opts.Tolerance)...)
	}
	if cf, ok := byType[models.CashFlow]; ok {
		r.Checks = append(r.Checks, cashFlowChecks(cf, opts.Tolerance)...)
		if is, ok := byType[models.IncomeStatement]; ok {
			r.Checks = append(r.Checks, netIncomeChecks(is, cf, opts.Tolerance)...)
		}
	}
	for _, st := range statements {
		r.Checks = append(r.Checks, outlierChecks(st, opts.OutlierPct)...)
	}
	return r
}

func balanceChecks(bs synthesis.ConsolidatedStatement, tol Tolerance) []Check {
	assets := findExact(bs, totalAssetsNames)
	if assets == nil {
		return nil
	}
	liabilities := findExact(bs, totalLiabilitiesNames)
	equity := findExact(bs, totalEquityNames)
	combined := findExact(bs, liabilitiesAndEquityNames)

	var out []Check
	for i, p := range bs.Periods {
		a, ok := valueAt(assets, i)
		if !ok {
			continue
		}
		c := Check{Kind: KindBalanceEquation, Statement: bs.Type, Metric: assets.Name, Period: p, Actual: a}
		l, okL := valueAt(liabilities, i)
		e, okE := valueAt(equity, i)
		switch {
		case okL && okE:
			c.Expected, c.Difference, c.Passed = BalanceEquation(a, l, e, tol)
			c.Detail = "total liabilities + total equity"
		default:
			le, ok := valueAt(combined, i)
			if !ok {
				continue
			}
			c.Expected, c.Difference, c.Passed = BalanceEquation(a, le, 0, tol)
			c.Detail = combined.Name
		}
		out = append(out, c)
	}
	return out
}

func cashFlowChecks(cf synthesis.ConsolidatedStatement, tol Tolerance) []Check {
	cfo := findActivity(cf, "operating")
	cfi := findActivity(cf, "investing")
	cff := findActivity(cf, "financing")
	net := findNetChange(cf)
	if cfo == nil || cfi == nil || cff == nil || net == nil {
		return nil
	}

	var out []Check
	for i, p := range cf.Periods {
		o, ok1 := valueAt(cfo, i)
		v, ok2 := valueAt(cfi, i)
		f, ok3 := valueAt(cff, i)
		n, ok4 := valueAt(net, i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		c := Check{Kind: KindCashFlowEquation, Statement: cf.Type, Metric: net.Name, Period: p, Actual: n}
		c.Expected, c.Difference, c.Passed = CashFlowEquation(o, v, f, n, tol)
		c.Detail = "operating + investing + financing"
		out = append(out, c)
	}
	return out
}

func netIncomeChecks(is, cf synthesis.ConsolidatedStatement, tol Tolerance) []Check {
	isNI := findExact(is, netIncomeNames)
	cfNI := findExact(cf, netIncomeNames)
	if isNI == nil || cfNI == nil {
		return nil
	}
	cfIdx := make(map[string]int, len(cf.Periods))
	for i, p := range cf.Periods {
		cfIdx[p] = i
	}

	var out []Check
	for i, p := range is.Periods {
		j, ok := cfIdx[p]
		if !ok {
			continue
		}
		a, okA := valueAt(isNI, i)
		b, okB := valueAt(cfNI, j)
		if !okA || !okB {
			continue
		}
		diff := b - a
		out = append(out, Check{
			Kind:       KindNetIncomeLink,
			Statement:  cf.Type,
			Metric:     cfNI.Name,
			Period:     p,
			Expected:   a,
			Actual:     b,
			Difference: diff,
			Passed:     withinTolerance(diff, a, tol),
			Detail:     fmt.Sprintf("%s in the %s", isNI.Name, strings.ToLower(is.Type.Title())),
		})
	}
	return out
}

// outlierChecks reports failures only; a passing jump is not interesting.
func outlierChecks(st synthesis.ConsolidatedStatement, thresholdPct float64) []Check {
	var out []Check
	for mi := range st.Metrics {
		m := &st.Metrics[mi]
		prevIdx := -1
		for i := range st.Periods {
			cur, ok := valueAt(m, i)
			if !ok {
				continue
			}
			if prevIdx >= 0 {
				prior, _ := valueAt(m, prevIdx)
				if reason := Outlier(cur, prior, thresholdPct); reason != "" {
					out = append(out, Check{
						Kind:       KindOutlier,
						Statement:  st.Type,
						Metric:     m.Name,
						Period:     st.Periods[i],
						Expected:   prior,
						Actual:     cur,
						Difference: cur - prior,
						Detail:     fmt.Sprintf("%s since %s", reason, st.Periods[prevIdx]),
					})
				}
			}
			prevIdx = i
		}
	}
	return out
}

// =============================================================================
// LOOKUP
// =============================================================================

func normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	s = strings.ReplaceAll(s, "’", "'")
	return strings.TrimRight(s, ":;,. ")
}

func names(m *synthesis.MetricRow) []string {
	out := make([]string, 0, 1+len(m.Aliases))
	out = append(out, normalize(m.Name))
	for _, a := range m.Aliases {
		out = append(out, normalize(a))
	}
	return out
}

func findExact(st synthesis.ConsolidatedStatement, candidates []string) *synthesis.MetricRow {
	for _, want := range candidates {
		for i := range st.Metrics {
			for _, n := range names(&st.Metrics[i]) {
				if n == want {
					return &st.Metrics[i]
				}
			}
		}
	}
	return nil
}

// findActivity finds "net cash provided by (used in) <kind> activities" and
// its variants.
func findActivity(st synthesis.ConsolidatedStatement, kind string) *synthesis.MetricRow {
	return findFirst(st, func(n string) bool {
		return strings.Contains(n, kind+" activities") &&
			(strings.HasPrefix(n, "net cash") || strings.HasPrefix(n, "cash generated") || strings.HasPrefix(n, "cash flows"))
	})
}

func findNetChange(st synthesis.ConsolidatedStatement) *synthesis.MetricRow {
	return findFirst(st, func(n string) bool {
		if !strings.Contains(n, "cash") || strings.Contains(n, "activities") {
			return false
		}
		return strings.HasPrefix(n, "net increase") || strings.HasPrefix(n, "net decrease") ||
			strings.HasPrefix(n, "net change") || strings.HasPrefix(n, "increase (decrease)") ||
			strings.HasPrefix(n, "net (decrease) increase")
	})
}

func findFirst(st synthesis.ConsolidatedStatement, match func(string) bool) *synthesis.MetricRow {
	for i := range st.Metrics {
		for _, n := range names(&st.Metrics[i]) {
			if match(n) {
				return &st.Metrics[i]
			}
		}
	}
	return nil
}

func valueAt(m *synthesis.MetricRow, i int) (float64, bool) {
	if m == nil || i < 0 || i >= len(m.Values) || m.Values[i] == nil {
		return 0, false
	}
	return *m.Values[i], true
}
