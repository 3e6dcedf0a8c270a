// Package vocab holds the phrase tables and numeric thresholds that drive
// classification, boundary location, period extraction and consolidation.
//
// Everything here is data: the built-in defaults can be overridden per
// statement type from a YAML or HJSON file (see LoadFile).
package vocab

import (
	"errors"
	"fmt"
	"strings"

	"statement_stitch/pkg/models"
)

// ErrInvalidThreshold is returned when a threshold is outside its allowed range.
var ErrInvalidThreshold = errors.New("invalid threshold")

// =============================================================================
// VOCABULARY
// =============================================================================

// Entry is the phrase table for one statement type. All phrases are matched
// case-insensitively as substrings.
type Entry struct {
	// Keywords are content phrases; each one present adds 1 to the score.
	Keywords []string `yaml:"keywords" json:"keywords"`
	// TitleExact are near-exact statement names. In a title they
	// short-circuit classification and add the title bonus.
	TitleExact []string `yaml:"title_exact" json:"title_exact"`
	// TitlePartial are weaker title keywords that only decide when the
	// content score clears the minimum.
	TitlePartial []string `yaml:"title_partial" json:"title_partial"`
	// HeaderPhrases mark the first row of a statement inside a bundled grid.
	HeaderPhrases []string `yaml:"header_phrases" json:"header_phrases"`
	// MinScore is the score a type must reach to be chosen.
	MinScore float64 `yaml:"min_score" json:"min_score"`
}

// Vocabulary maps each concrete statement type to its phrase table.
type Vocabulary struct {
	Statements map[models.StatementType]*Entry `yaml:"statements" json:"statements"`
}

// Entry returns the table for t, or an empty entry when t is not configured.
func (v *Vocabulary) Entry(t models.StatementType) *Entry {
	if v == nil || v.Statements == nil {
		return &Entry{}
	}
	if e, ok := v.Statements[t]; ok && e != nil {
		return e
	}
	return &Entry{}
}

// normalize lower-cases every phrase and drops blanks.
func (v *Vocabulary) normalize() {
	for _, e := range v.Statements {
		if e == nil {
			continue
		}
		e.Keywords = lowerAll(e.Keywords)
		e.TitleExact = lowerAll(e.TitleExact)
		e.TitlePartial = lowerAll(e.TitlePartial)
		e.HeaderPhrases = lowerAll(e.HeaderPhrases)
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ContainsAny reports whether text contains any phrase, returning the first
// one found. text must already be lower-cased.
func ContainsAny(text string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}

// CountPresent counts the phrases present in text. text must already be
// lower-cased.
func CountPresent(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

// =============================================================================
// THRESHOLDS
// =============================================================================

// Thresholds are the numeric knobs of every stage.
type Thresholds struct {
	// Classifier
	TitleBonus          float64 `yaml:"title_bonus" json:"title_bonus"`
	YearHeaderBonus     float64 `yaml:"year_header_bonus" json:"year_header_bonus"`
	NumericColumnsBonus float64 `yaml:"numeric_columns_bonus" json:"numeric_columns_bonus"`
	RowCountBonus       float64 `yaml:"row_count_bonus" json:"row_count_bonus"`
	RowCountMin         int     `yaml:"row_count_min" json:"row_count_min"`
	RowCountMax         int     `yaml:"row_count_max" json:"row_count_max"`

	// Boundary locator
	MaxHeaderChars int `yaml:"max_header_chars" json:"max_header_chars"`

	// Period extractor
	MinYear              int `yaml:"min_year" json:"min_year"`
	MaxYear              int `yaml:"max_year" json:"max_year"`
	ScanRows             int `yaml:"scan_rows" json:"scan_rows"`
	ScanCols             int `yaml:"scan_cols" json:"scan_cols"`
	BalanceTokenMaxChars int `yaml:"balance_token_max_chars" json:"balance_token_max_chars"`
	InferenceRows        int `yaml:"inference_rows" json:"inference_rows"`
	InferenceMinNumeric  int `yaml:"inference_min_numeric" json:"inference_min_numeric"`
	InferenceMinColumns  int `yaml:"inference_min_columns" json:"inference_min_columns"`
	InferenceMaxColumns  int `yaml:"inference_max_columns" json:"inference_max_columns"`

	// Row block parser
	PrimaryRunMax  int `yaml:"primary_run_max" json:"primary_run_max"`
	MinBlockValues int `yaml:"min_block_values" json:"min_block_values"`

	// Consolidator
	OverlapThreshold   float64 `yaml:"overlap_threshold" json:"overlap_threshold"`
	OverlapWindow      int     `yaml:"overlap_window" json:"overlap_window"`
	NameSimilarity     float64 `yaml:"name_similarity" json:"name_similarity"`
	RestatementAbs     float64 `yaml:"restatement_abs" json:"restatement_abs"`
	RestatementRel     float64 `yaml:"restatement_rel" json:"restatement_rel"`
	DuplicateTolerance float64 `yaml:"duplicate_tolerance" json:"duplicate_tolerance"`
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TitleBonus:          9,
		YearHeaderBonus:     2,
		NumericColumnsBonus: 1,
		RowCountBonus:       1,
		RowCountMin:         5,
		RowCountMax:         50,

		MaxHeaderChars: 160,

		MinYear:              2010,
		MaxYear:              2035,
		ScanRows:             15,
		ScanCols:             15,
		BalanceTokenMaxChars: 6,
		InferenceRows:        20,
		InferenceMinNumeric:  3,
		InferenceMinColumns:  2,
		InferenceMaxColumns:  3,

		PrimaryRunMax:  3,
		MinBlockValues: 2,

		OverlapThreshold:   95,
		OverlapWindow:      2,
		NameSimilarity:     0.85,
		RestatementAbs:     5,
		RestatementRel:     0.02,
		DuplicateTolerance: 1e-6,
	}
}

// Validate checks every threshold against its allowed range.
func (t Thresholds) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"title_bonus must be within [8,10]", t.TitleBonus >= 8 && t.TitleBonus <= 10},
		{"row_count_min must not exceed row_count_max", t.RowCountMin <= t.RowCountMax},
		{"max_header_chars must be positive", t.MaxHeaderChars > 0},
		{"min_year must not exceed max_year", t.MinYear > 0 && t.MinYear <= t.MaxYear},
		{"scan window must be positive", t.ScanRows > 0 && t.ScanCols > 0},
		{"inference column range is invalid", t.InferenceMinColumns > 0 && t.InferenceMinColumns <= t.InferenceMaxColumns},
		{"primary_run_max must be positive", t.PrimaryRunMax > 0},
		{"min_block_values must be positive", t.MinBlockValues > 0},
		{"overlap_threshold must be within (0,100]", t.OverlapThreshold > 0 && t.OverlapThreshold <= 100},
		{"overlap_window must be positive", t.OverlapWindow > 0},
		{"name_similarity must be within (0,1]", t.NameSimilarity > 0 && t.NameSimilarity <= 1},
		{"restatement band must not be negative", t.RestatementAbs >= 0 && t.RestatementRel >= 0},
		{"duplicate_tolerance must not be negative", t.DuplicateTolerance >= 0},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%s: %w", c.name, ErrInvalidThreshold)
		}
	}
	return nil
}

// =============================================================================
// CONFIG
// =============================================================================

// Config bundles the vocabulary with its thresholds. It is the unit that is
// loaded from disk and handed to every stage.
type Config struct {
	Vocabulary Vocabulary `yaml:"vocabulary" json:"vocabulary"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
}

// Default returns the built-in vocabulary and thresholds.
func Default() *Config {
	v := DefaultVocabulary()
	return &Config{Vocabulary: v, Thresholds: DefaultThresholds()}
}
