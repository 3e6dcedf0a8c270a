package synthesis

import "math"

// relativeDeviation is |a-b| scaled by the larger magnitude, 0 when both are
// zero.
func relativeDeviation(a, b float64) float64 {
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return 0
	}
	return math.Abs(a-b) / scale
}

// OverlapScore compares paired values on a 0-100 scale:
// 100 * (1 - mean relative deviation). Pairs where either side is nil are
// skipped. At least one pair must have a non-zero side, otherwise there is no
// evidence and the score is 0.
func OverlapScore(a, b []*float64) float64 {
	n := min(len(a), len(b))
	pairs, evidence := 0, false
	total := 0.0
	for i := 0; i < n; i++ {
		if a[i] == nil || b[i] == nil {
			continue
		}
		pairs++
		if *a[i] != 0 || *b[i] != 0 {
			evidence = true
		}
		total += relativeDeviation(*a[i], *b[i])
	}
	if pairs == 0 || !evidence {
		return 0
	}
	return 100 * (1 - total/float64(pairs))
}

// withinBand reports whether old and new differ by at most abs units or at
// most rel relative to old.
func withinBand(oldV, newV, abs, rel float64) bool {
	delta := math.Abs(newV - oldV)
	if delta <= abs {
		return true
	}
	return oldV != 0 && delta/math.Abs(oldV) <= rel
}
