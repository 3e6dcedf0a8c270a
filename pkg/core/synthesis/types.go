// Package synthesis stitches per-filing statement extractions into continuous
// per-metric time series.
//
// Extraction produces immutable snapshots, one per filing and statement type.
// Synthesis folds those snapshots, in a documented order, into one
// ConsolidatedStatement per type:
//  1. Continuity: a block joins an existing series by name, by overlapping
//     values, or by name similarity.
//  2. Recency: when two filings report different values for the same
//     period, the value from the more recent filing is displayed.
//  3. Restatement detection: small differences are logged as restatements,
//     large ones as conflicts that keep both values.
package synthesis

import (
	"time"

	"statement_stitch/pkg/core/blocks"
	"statement_stitch/pkg/models"
)

// =============================================================================
// INPUT
// =============================================================================

// FilingStatement is one statement extracted from one filing. It is the input
// of the consolidator.
type FilingStatement struct {
	FilingID    string               `json:"filing_id"`
	Source      string               `json:"source,omitempty"`
	FiledAt     time.Time            `json:"filed_at,omitempty"`
	PeriodLabel string               `json:"period_label,omitempty"`
	Recency     int                  `json:"recency"` // higher is more recent, see Arrange
	Type        models.StatementType `json:"type"`
	// Periods align positionally with each block's values. A single
	// UnknownPeriod means the periods were not detected.
	Periods []models.Period `json:"periods"`
	Blocks  []blocks.Block  `json:"blocks"`
}

// PeriodsKnown reports whether at least one period was detected.
func (fs FilingStatement) PeriodsKnown() bool {
	for _, p := range fs.Periods {
		if !p.IsUnknown() {
			return true
		}
	}
	return false
}

// =============================================================================
// OUTPUT
// =============================================================================

// Observation is one filing's report of one value.
type Observation struct {
	FilingID string  `json:"filing_id"`
	Recency  int     `json:"recency"`
	Value    float64 `json:"value"`
}

// RestatementEvent records a value revised by a later filing within the
// restatement band. NewValue comes from the more recent filing and is the one
// displayed.
type RestatementEvent struct {
	Metric    string  `json:"metric"`
	Period    string  `json:"period"`
	OldValue  float64 `json:"old_value"`
	NewValue  float64 `json:"new_value"`
	AbsDelta  float64 `json:"abs_delta"`
	RelDelta  float64 `json:"rel_delta"`
	OldFiling string  `json:"old_filing"`
	NewFiling string  `json:"new_filing"`
}

// MergeConflict records values for one period that differ beyond the
// restatement band. The displayed value is the first one folded.
type MergeConflict struct {
	Metric       string        `json:"metric"`
	Period       string        `json:"period"`
	Observations []Observation `json:"observations"`
}

// UnresolvedBlock is a block whose periods are unknown and which could not be
// spliced onto a known series.
type UnresolvedBlock struct {
	FilingID string     `json:"filing_id"`
	Name     string     `json:"name"`
	Period   string     `json:"period"`
	Values   []*float64 `json:"values"`
}

// MetricRow is one consolidated series. Values align with the statement's
// Periods; missing values are nil.
type MetricRow struct {
	Name    string     `json:"name"`
	Aliases []string   `json:"aliases,omitempty"`
	Values  []*float64 `json:"values"`
}

// ConsolidatedStatement is the stitched view of one statement type across
// every folded filing.
type ConsolidatedStatement struct {
	Type         models.StatementType `json:"type"`
	Periods      []string             `json:"periods"` // oldest to newest
	Metrics      []MetricRow          `json:"metrics"`
	Restatements []RestatementEvent   `json:"restatements"`
	Conflicts    []MergeConflict      `json:"conflicts"`
	Unresolved   []UnresolvedBlock    `json:"unresolved"`
	Filings      []string             `json:"filings"` // in fold order
}

// Metric returns the row named name (canonical or alias).
func (s ConsolidatedStatement) Metric(name string) (MetricRow, bool) {
	key := normalizeName(name)
	for _, m := range s.Metrics {
		if normalizeName(m.Name) == key {
			return m, true
		}
	}
	for _, m := range s.Metrics {
		for _, a := range m.Aliases {
			if normalizeName(a) == key {
				return m, true
			}
		}
	}
	return MetricRow{}, false
}

// Value returns the displayed value of metric for the period label.
func (s ConsolidatedStatement) Value(metric, period string) (float64, bool) {
	m, ok := s.Metric(metric)
	if !ok {
		return 0, false
	}
	for i, p := range s.Periods {
		if p == period && i < len(m.Values) && m.Values[i] != nil {
			return *m.Values[i], true
		}
	}
	return 0, false
}

// Empty reports whether nothing was consolidated.
func (s ConsolidatedStatement) Empty() bool {
	return len(s.Metrics) == 0 && len(s.Unresolved) == 0
}
