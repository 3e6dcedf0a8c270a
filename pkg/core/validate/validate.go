// Package validate checks consolidated statements for arithmetic integrity:
// the balance sheet equation, the cash flow equation, net income linkage
// between statements and suspicious period-over-period jumps.
package validate

import (
	"fmt"
	"math"
)

// =============================================================================
// PERIOD-OVER-PERIOD
// =============================================================================

// ChangePct returns (current - prior) / |prior| * 100, +Inf when growing from
// zero and 0 when both are zero.
func ChangePct(current, prior float64) float64 {
	if prior == 0 {
		if current == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return (current - prior) / math.Abs(prior) * 100
}

// =============================================================================
// EQUATIONS
// =============================================================================

// withinTolerance is true when |diff| is at most abs or at most rel of the
// reference magnitude.
func withinTolerance(diff, reference float64, tol Tolerance) bool {
	d := math.Abs(diff)
	return d <= tol.Abs || d <= tol.Rel*math.Abs(reference)
}

// BalanceEquation compares assets with liabilities + equity.
func BalanceEquation(assets, liabilities, equity float64, tol Tolerance) (computed, diff float64, ok bool) {
	computed = liabilities + equity
	diff = assets - computed
	return computed, diff, withinTolerance(diff, assets, tol)
}

// CashFlowEquation compares the reported net change in cash with the sum of
// operating, investing and financing cash flows.
func CashFlowEquation(cfo, cfi, cff, reported float64, tol Tolerance) (computed, diff float64, ok bool) {
	computed = cfo + cfi + cff
	diff = reported - computed
	return computed, diff, withinTolerance(diff, reported, tol)
}

// =============================================================================
// OUTLIERS
// =============================================================================

// Outlier reports why the move from prior to current looks like an
// extraction error, or "" when it does not.
func Outlier(current, prior, thresholdPct float64) string {
	if current == 0 && prior != 0 {
		return "value dropped to zero"
	}
	if prior == 0 {
		return ""
	}
	if change := ChangePct(current, prior); math.Abs(change) > thresholdPct {
		return fmt.Sprintf("change of %.1f%% exceeds %.1f%%", change, thresholdPct)
	}
	return ""
}
