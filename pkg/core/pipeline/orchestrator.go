package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/core/validate"
	"statement_stitch/pkg/core/vocab"
	"statement_stitch/pkg/models"
)

// ErrMalformedInput is the only fatal run error: a filing whose shape is
// invalid. Content problems are reported per filing instead.
var ErrMalformedInput = errors.New("malformed input")

// DefaultWorkers bounds extraction concurrency when Options.Workers is unset.
const DefaultWorkers = 4

// Options configure one run.
type Options struct {
	Workers  int
	Order    synthesis.Order
	Explicit []string // filing IDs, newest first, for synthesis.OrderExplicit
	// Encoder enables semantic metric-name matching. Owned by the caller.
	Encoder    synthesis.Encoder
	Thresholds vocab.Thresholds
	// Checks tunes the integrity checks run on the consolidated statements.
	Checks validate.Options
}

// Filing statuses in a FilingReport.
const (
	StatusOK     = "ok"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// FilingReport summarizes one filing's extraction.
type FilingReport struct {
	FilingID   string                 `json:"filing_id"`
	Source     string                 `json:"source"`
	Status     string                 `json:"status"`
	Statements []models.StatementType `json:"statements,omitempty"`
	Regions    []RegionReport         `json:"regions,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// RunReport is the outcome of a run.
type RunReport struct {
	RunID      uuid.UUID                         `json:"run_id"`
	StartedAt  time.Time                         `json:"started_at"`
	Duration   time.Duration                     `json:"duration"`
	Order      string                            `json:"order"`
	Statements []synthesis.ConsolidatedStatement `json:"statements"`
	Filings    []FilingReport                    `json:"filings"`
	Checks     validate.Report                   `json:"checks"`
}

// Failed returns the reports of filings that did not extract.
func (r *RunReport) Failed() []FilingReport {
	var out []FilingReport
	for _, f := range r.Filings {
		if f.Status == StatusFailed {
			out = append(out, f)
		}
	}
	return out
}

// Statement returns the consolidated statement of type t.
func (r *RunReport) Statement(t models.StatementType) (synthesis.ConsolidatedStatement, bool) {
	for _, s := range r.Statements {
		if s.Type == t {
			return s, true
		}
	}
	return synthesis.ConsolidatedStatement{}, false
}

// Orchestrator fans extraction out over a bounded worker pool, then folds
// the results sequentially into the consolidator in the chosen order.
type Orchestrator struct {
	extractor FilingExtractor
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator around an extractor.
func NewOrchestrator(extractor FilingExtractor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{extractor: extractor, logger: logger}
}

// Run extracts and consolidates the filings. It fails only on malformed
// input or cancellation; per-filing failures are reported in the result.
func (o *Orchestrator) Run(ctx context.Context, filings []models.Filing, opts Options) (*RunReport, error) {
	for _, f := range filings {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
	}

	report := &RunReport{RunID: uuid.New(), StartedAt: time.Now(), Order: opts.Order.String()}
	log := o.logger.With(zap.String("run", report.RunID.String()))
	log.Info("run started", zap.Int("filings", len(filings)), zap.String("order", report.Order))

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]FilingResult, len(filings))
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range filings {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = FilingResult{FilingID: filings[i].ID, Source: filings[i].Source, Err: err}
				return nil
			}
			results[i] = o.extract(filings[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s cancelled: %w", report.RunID, err)
	}

	var statements []synthesis.FilingStatement
	for _, res := range results {
		fr := FilingReport{
			FilingID: res.FilingID,
			Source:   res.Source,
			Regions:  res.Regions,
			Warnings: res.Warnings,
		}
		switch {
		case res.Err != nil:
			fr.Status = StatusFailed
			fr.Error = res.Err.Error()
			log.Warn("filing failed", zap.String("filing", res.FilingID), zap.Error(res.Err))
		case len(res.Statements) == 0:
			fr.Status = StatusEmpty
			log.Warn("no statements found", zap.String("filing", res.FilingID), zap.Strings("warnings", res.Warnings))
		default:
			fr.Status = StatusOK
			for _, st := range res.Statements {
				fr.Statements = append(fr.Statements, st.Type)
			}
			statements = append(statements, res.Statements...)
		}
		report.Filings = append(report.Filings, fr)
	}

	report.Statements = synthesis.Consolidate(ctx, statements, opts.Order, opts.Explicit, synthesis.Options{
		Thresholds: opts.Thresholds,
		Encoder:    opts.Encoder,
		Logger:     o.logger,
	})
	report.Checks = validate.Run(report.Statements, opts.Checks)
	report.Duration = time.Since(report.StartedAt)

	for _, st := range report.Statements {
		log.Info("statement consolidated",
			zap.String("type", string(st.Type)),
			zap.Int("periods", len(st.Periods)),
			zap.Int("metrics", len(st.Metrics)),
			zap.Int("restatements", len(st.Restatements)),
			zap.Int("conflicts", len(st.Conflicts)))
	}
	for _, c := range report.Checks.Failures() {
		log.Warn("integrity check failed",
			zap.String("check", string(c.Kind)),
			zap.String("type", string(c.Statement)),
			zap.String("metric", c.Metric),
			zap.String("period", c.Period),
			zap.Float64("difference", c.Difference))
	}
	log.Info("run finished", zap.Duration("took", report.Duration), zap.Int("failed", len(report.Failed())))
	return report, nil
}

// extract guards extractors that do not recover their own panics.
func (o *Orchestrator) extract(f models.Filing) (res FilingResult) {
	res.FilingID, res.Source = f.ID, f.Source
	stage := StageExtract
	defer recoverInto(&res, &stage)
	return o.extractor.ExtractFiling(f)
}
