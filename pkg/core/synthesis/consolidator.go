package synthesis

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"go.uber.org/zap"

	"statement_stitch/pkg/core/blocks"
	"statement_stitch/pkg/core/vocab"
	"statement_stitch/pkg/models"
)

// =============================================================================
// INTERNAL STATE
// =============================================================================

type point struct {
	value    float64
	filingID string
	recency  int
	observed map[string]bool // filing IDs already applied to this period
	conflict int             // index into statementState.conflicts, -1 if none
}

func (p *point) observation() Observation {
	return Observation{FilingID: p.filingID, Recency: p.recency, Value: p.value}
}

type series struct {
	name    string // canonical name, also the similarity anchor
	aliases []string
	points  map[models.Period]*point
}

func (s *series) hasAlias(key string) bool {
	for _, a := range s.aliases {
		if normalizeName(a) == key {
			return true
		}
	}
	return false
}

func (s *series) addAlias(name string) {
	key := normalizeName(name)
	if key == normalizeName(s.name) || s.hasAlias(key) {
		return
	}
	s.aliases = append(s.aliases, name)
}

// periodsNewestFirst lists the periods that carry a value.
func (s *series) periodsNewestFirst() []models.Period {
	out := make([]models.Period, 0, len(s.points))
	for p := range s.points {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.Period) int { return models.ComparePeriods(b, a) })
	return out
}

type statementState struct {
	series       []*series
	restatements []RestatementEvent
	conflicts    []MergeConflict
	unresolved   []UnresolvedBlock
	filings      []string
	folded       map[string]bool
}

// =============================================================================
// CONSOLIDATOR
// =============================================================================

// Options configure a Consolidator.
type Options struct {
	Thresholds vocab.Thresholds
	// Encoder enables semantic name similarity. Optional; the owner
	// constructs and closes it.
	Encoder Encoder
	Logger  *zap.Logger
}

// Consolidator folds FilingStatements into per-type series. Folding is
// sequential; a Consolidator is not safe for concurrent use.
type Consolidator struct {
	th     vocab.Thresholds
	names  *NameMatcher
	logger *zap.Logger
	states map[models.StatementType]*statementState
}

// NewConsolidator creates an empty consolidator.
func NewConsolidator(opts Options) *Consolidator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Thresholds == (vocab.Thresholds{}) {
		opts.Thresholds = vocab.DefaultThresholds()
	}
	return &Consolidator{
		th:     opts.Thresholds,
		names:  NewNameMatcher(opts.Encoder, opts.Logger),
		logger: opts.Logger,
		states: make(map[models.StatementType]*statementState),
	}
}

func (c *Consolidator) state(t models.StatementType) *statementState {
	st, ok := c.states[t]
	if !ok {
		st = &statementState{folded: make(map[string]bool)}
		c.states[t] = st
	}
	return st
}

// Add folds one filing statement. It returns false when the filing was
// already folded for this statement type, in which case nothing changes.
//
// Matching runs over the whole filing before any value is merged: exact
// names first, then aliases, and only then numeric overlap and name
// similarity for the blocks and series still unclaimed. A renamed block can
// therefore never take a series that another block of the same filing names
// exactly.
func (c *Consolidator) Add(ctx context.Context, fs FilingStatement) bool {
	st := c.state(fs.Type)
	if st.folded[fs.FilingID] {
		c.logger.Debug("filing already folded", zap.String("filing", fs.FilingID), zap.String("type", string(fs.Type)))
		return false
	}
	st.folded[fs.FilingID] = true
	st.filings = append(st.filings, fs.FilingID)

	known := fs.PeriodsKnown()
	pending := make([]*pendingBlock, len(fs.Blocks))
	occurrences := make(map[string]int)
	for i, b := range fs.Blocks {
		name := b.Name
		key := normalizeName(name)
		occurrences[key]++
		if n := occurrences[key]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		pb := &pendingBlock{block: b, name: name}
		if known {
			pb.dated = align(fs.Periods, b.Values)
		}
		pending[i] = pb
	}

	c.assign(ctx, st, pending, known)

	for _, pb := range pending {
		if known {
			c.foldKnown(st, fs, pb)
		} else {
			c.foldPositional(st, fs, pb)
		}
	}
	return true
}

// pendingBlock is a block of the filing being folded and the series it was
// assigned to, nil when it starts a new one.
type pendingBlock struct {
	block  blocks.Block
	name   string
	dated  []datedValue
	series *series
	how    string
}

// datedValue pairs a value with its period.
type datedValue struct {
	period models.Period
	value  *float64
}

// align pairs block values with the filing's periods. Values beyond the
// known periods are dropped.
func align(periods []models.Period, values []*float64) []datedValue {
	out := make([]datedValue, 0, len(values))
	for i, v := range values {
		if i >= len(periods) {
			break
		}
		if periods[i].IsUnknown() {
			continue
		}
		out = append(out, datedValue{period: periods[i], value: v})
	}
	return out
}

// assign matches every pending block to at most one existing series, and
// every series to at most one block.
func (c *Consolidator) assign(ctx context.Context, st *statementState, pending []*pendingBlock, known bool) {
	claimed := make(map[*series]bool)
	take := func(pb *pendingBlock, s *series, how string) {
		pb.series, pb.how = s, how
		claimed[s] = true
	}

	for _, pb := range pending {
		key := normalizeName(pb.name)
		for _, s := range st.series {
			if !claimed[s] && normalizeName(s.name) == key {
				take(pb, s, "name")
				break
			}
		}
	}
	for _, pb := range pending {
		if pb.series != nil {
			continue
		}
		key := normalizeName(pb.name)
		for _, s := range st.series {
			if !claimed[s] && s.hasAlias(key) {
				take(pb, s, "alias")
				break
			}
		}
	}
	for _, pb := range pending {
		if pb.series != nil {
			continue
		}
		overlap := func(s *series) float64 {
			_, score := c.spliceWindow(s, pb.block.Values)
			return score
		}
		if known {
			overlap = func(s *series) float64 { return c.alignedOverlap(s, pb.dated) }
		}
		if s, how := c.matchFuzzy(ctx, st, pb.name, claimed, overlap); s != nil {
			take(pb, s, how)
		}
	}
}

func (c *Consolidator) foldKnown(st *statementState, fs FilingStatement, pb *pendingBlock) {
	if len(pb.block.Values) > len(fs.Periods) {
		c.logger.Debug("values beyond known periods dropped",
			zap.String("filing", fs.FilingID), zap.String("metric", pb.name),
			zap.Int("values", len(pb.block.Values)), zap.Int("periods", len(fs.Periods)))
	}

	s, how := pb.series, pb.how
	if s == nil {
		s = &series{name: pb.name, points: make(map[models.Period]*point)}
		st.series = append(st.series, s)
		how = "new"
	}
	s.addAlias(pb.name)
	c.logger.Debug("block folded",
		zap.String("filing", fs.FilingID), zap.String("metric", pb.name),
		zap.String("series", s.name), zap.String("match", how))

	for _, dv := range pb.dated {
		if dv.value != nil {
			c.merge(st, s, dv.period, *dv.value, fs)
		}
	}
}

func (c *Consolidator) foldPositional(st *statementState, fs FilingStatement, pb *pendingBlock) {
	s := pb.series
	window := 0
	if s != nil {
		window, _ = c.spliceWindow(s, pb.block.Values)
	}
	if window == 0 {
		st.unresolved = append(st.unresolved, UnresolvedBlock{
			FilingID: fs.FilingID,
			Name:     pb.name,
			Period:   models.UnknownPeriodLabel,
			Values:   pb.block.Values,
		})
		c.logger.Debug("block unresolved", zap.String("filing", fs.FilingID), zap.String("metric", pb.name))
		return
	}

	s.addAlias(pb.name)
	c.logger.Debug("block spliced",
		zap.String("filing", fs.FilingID), zap.String("metric", pb.name),
		zap.String("series", s.name), zap.String("match", pb.how), zap.Int("window", window))

	periods := s.periodsNewestFirst()
	next := periods[len(periods)-1].Prev()
	for i, v := range pb.block.Values {
		var p models.Period
		if i < window {
			p = periods[len(periods)-window+i]
		} else {
			p = next
			next = next.Prev()
		}
		if v != nil {
			c.merge(st, s, p, *v, fs)
		}
	}
}

// matchFuzzy finds the series a block continues when no name or alias
// matched: numeric overlap first, then name similarity with the anchor.
// Series already claimed in the current filing are skipped.
func (c *Consolidator) matchFuzzy(ctx context.Context, st *statementState, name string, claimed map[*series]bool, overlap func(*series) float64) (*series, string) {
	var best *series
	bestScore := 0.0
	for _, s := range st.series {
		if claimed[s] {
			continue
		}
		if score := overlap(s); score >= c.th.OverlapThreshold && score > bestScore {
			best, bestScore = s, score
		}
	}
	if best != nil {
		return best, "overlap"
	}

	bestSim := 0.0
	for _, s := range st.series {
		if claimed[s] {
			continue
		}
		if sim := c.names.Similarity(ctx, s.name, name); sim >= c.th.NameSimilarity && sim > bestSim {
			best, bestSim = s, sim
		}
	}
	if best != nil {
		return best, "similarity"
	}
	return nil, ""
}

// alignedOverlap scores the most recent common periods, up to the overlap
// window.
func (c *Consolidator) alignedOverlap(s *series, dated []datedValue) float64 {
	var common []datedValue
	for _, dv := range dated {
		if dv.value == nil {
			continue
		}
		if _, ok := s.points[dv.period]; ok {
			common = append(common, dv)
		}
	}
	sort.SliceStable(common, func(i, j int) bool {
		return common[j].period.Before(common[i].period)
	})
	if len(common) > c.th.OverlapWindow {
		common = common[:c.th.OverlapWindow]
	}

	a := make([]*float64, len(common))
	b := make([]*float64, len(common))
	for i, dv := range common {
		v := s.points[dv.period].value
		a[i], b[i] = &v, dv.value
	}
	return OverlapScore(a, b)
}

// spliceWindow finds how many leading block values repeat the series' oldest
// values, trying the full window first. It returns the window and its score,
// or 0 when nothing overlaps.
func (c *Consolidator) spliceWindow(s *series, values []*float64) (int, float64) {
	periods := s.periodsNewestFirst()
	for w := c.th.OverlapWindow; w >= 1; w-- {
		if len(periods) < w || len(values) < w {
			continue
		}
		tail := make([]*float64, w)
		for i, p := range periods[len(periods)-w:] {
			v := s.points[p].value
			tail[i] = &v
		}
		if score := OverlapScore(tail, values[:w]); score >= c.th.OverlapThreshold {
			return w, score
		}
	}
	return 0, 0
}

// merge applies one (period, value) observation from fs to s.
func (c *Consolidator) merge(st *statementState, s *series, p models.Period, v float64, fs FilingStatement) {
	pt, ok := s.points[p]
	if !ok {
		s.points[p] = &point{
			value:    v,
			filingID: fs.FilingID,
			recency:  fs.Recency,
			observed: map[string]bool{fs.FilingID: true},
			conflict: -1,
		}
		return
	}
	if pt.observed[fs.FilingID] {
		return
	}
	pt.observed[fs.FilingID] = true

	if math.Abs(pt.value-v) <= c.th.DuplicateTolerance {
		return
	}

	incoming := Observation{FilingID: fs.FilingID, Recency: fs.Recency, Value: v}
	older, newer := incoming, pt.observation()
	if fs.Recency > pt.recency {
		older, newer = pt.observation(), incoming
	}

	if withinBand(older.Value, newer.Value, c.th.RestatementAbs, c.th.RestatementRel) {
		delta := math.Abs(newer.Value - older.Value)
		rel := 1.0
		if older.Value != 0 {
			rel = delta / math.Abs(older.Value)
		}
		st.restatements = append(st.restatements, RestatementEvent{
			Metric:    s.name,
			Period:    p.Label(),
			OldValue:  older.Value,
			NewValue:  newer.Value,
			AbsDelta:  delta,
			RelDelta:  rel,
			OldFiling: older.FilingID,
			NewFiling: newer.FilingID,
		})
		pt.value, pt.filingID, pt.recency = newer.Value, newer.FilingID, newer.Recency
		c.logger.Debug("restatement detected",
			zap.String("metric", s.name), zap.String("period", p.Label()),
			zap.Float64("old", older.Value), zap.Float64("new", newer.Value))
		return
	}

	if pt.conflict < 0 {
		pt.conflict = len(st.conflicts)
		st.conflicts = append(st.conflicts, MergeConflict{
			Metric:       s.name,
			Period:       p.Label(),
			Observations: []Observation{pt.observation()},
		})
	}
	st.conflicts[pt.conflict].Observations = append(st.conflicts[pt.conflict].Observations, incoming)
	c.logger.Warn("merge conflict",
		zap.String("metric", s.name), zap.String("period", p.Label()),
		zap.Float64("displayed", pt.value), zap.Float64("incoming", v),
		zap.String("filing", fs.FilingID))
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Snapshot renders the consolidated view of one statement type. The result
// shares no memory with the consolidator.
func (c *Consolidator) Snapshot(t models.StatementType) ConsolidatedStatement {
	out := ConsolidatedStatement{Type: t}
	st, ok := c.states[t]
	if !ok {
		return out
	}

	set := make(map[models.Period]bool)
	for _, s := range st.series {
		for p := range s.points {
			set[p] = true
		}
	}
	periods := make([]models.Period, 0, len(set))
	for p := range set {
		periods = append(periods, p)
	}
	slices.SortFunc(periods, models.ComparePeriods)
	for _, p := range periods {
		out.Periods = append(out.Periods, p.Label())
	}

	for _, s := range st.series {
		row := MetricRow{
			Name:    s.name,
			Aliases: slices.Clone(s.aliases),
			Values:  make([]*float64, len(periods)),
		}
		for i, p := range periods {
			if pt, ok := s.points[p]; ok {
				v := pt.value
				row.Values[i] = &v
			}
		}
		out.Metrics = append(out.Metrics, row)
	}

	out.Restatements = slices.Clone(st.restatements)
	for _, mc := range st.conflicts {
		mc.Observations = slices.Clone(mc.Observations)
		out.Conflicts = append(out.Conflicts, mc)
	}
	for _, u := range st.unresolved {
		u.Values = slices.Clone(u.Values)
		out.Unresolved = append(out.Unresolved, u)
	}
	out.Filings = slices.Clone(st.filings)
	return out
}

// Snapshots renders every statement type that received at least one filing,
// in report order.
func (c *Consolidator) Snapshots() []ConsolidatedStatement {
	var out []ConsolidatedStatement
	for _, t := range models.StatementTypes() {
		if _, ok := c.states[t]; ok {
			out = append(out, c.Snapshot(t))
		}
	}
	return out
}

// Consolidate arranges statements by order, assigns recency ranks and folds
// them into a fresh consolidator.
func Consolidate(ctx context.Context, statements []FilingStatement, order Order, explicit []string, opts Options) []ConsolidatedStatement {
	var keys []FilingKey
	seen := make(map[string]bool)
	for i, fs := range statements {
		if seen[fs.FilingID] {
			continue
		}
		seen[fs.FilingID] = true
		keys = append(keys, FilingKey{ID: fs.FilingID, FiledAt: fs.FiledAt, PeriodLabel: fs.PeriodLabel, Position: i})
	}

	ranked := Arrange(keys, order, explicit)
	rank := make(map[string]int, len(ranked))
	pos := make(map[string]int, len(ranked))
	for i, r := range ranked {
		rank[r.ID] = r.Recency
		pos[r.ID] = i
	}

	sorted := slices.Clone(statements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return pos[sorted[i].FilingID] < pos[sorted[j].FilingID]
	})

	c := NewConsolidator(opts)
	for _, fs := range sorted {
		fs.Recency = rank[fs.FilingID]
		c.Add(ctx, fs)
	}
	return c.Snapshots()
}
