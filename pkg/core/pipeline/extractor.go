package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"statement_stitch/pkg/core/blocks"
	"statement_stitch/pkg/core/classify"
	"statement_stitch/pkg/core/period"
	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/core/vocab"
	"statement_stitch/pkg/models"
)

// Stage names the extraction step a filing error happened in.
type Stage string

const (
	StageExtract  Stage = "extract"
	StageLocate   Stage = "locate"
	StageClassify Stage = "classify"
	StagePeriods  Stage = "periods"
	StageBlocks   Stage = "blocks"
)

// FilingError isolates a failure to one filing.
type FilingError struct {
	FilingID string
	Stage    Stage
	Err      error
}

func (e *FilingError) Error() string {
	return fmt.Sprintf("filing %s: %s: %v", e.FilingID, e.Stage, e.Err)
}

func (e *FilingError) Unwrap() error { return e.Err }

// RegionReport describes what extraction saw in one statement region.
type RegionReport struct {
	Region         models.Region   `json:"region"`
	Classification classify.Result `json:"classification"`
	Periods        []string        `json:"periods"`
	Inferred       bool            `json:"inferred,omitempty"`
	Blocks         int             `json:"blocks"`
	Excluded       bool            `json:"excluded,omitempty"`
}

// FilingResult is the per-filing output of extraction.
type FilingResult struct {
	FilingID   string                      `json:"filing_id"`
	Source     string                      `json:"source"`
	Statements []synthesis.FilingStatement `json:"statements"`
	Regions    []RegionReport              `json:"regions"`
	Warnings   []string                    `json:"warnings,omitempty"`
	Err        error                       `json:"-"`
}

// FilingExtractor turns one filing into statements. Implementations must be
// safe for concurrent use across filings.
type FilingExtractor interface {
	ExtractFiling(f models.Filing) FilingResult
}

// Extractor runs the pure per-filing stages: boundary location,
// classification, period extraction and block parsing. It holds no mutable
// state and is safe for concurrent use.
type Extractor struct {
	locator    *classify.Locator
	classifier *classify.Classifier
	periods    *period.Extractor
	parser     *blocks.Parser
	logger     *zap.Logger
}

var _ FilingExtractor = (*Extractor)(nil)

// NewExtractor wires the stages from one vocabulary config. A nil cfg uses
// the built-in vocabulary.
func NewExtractor(cfg *vocab.Config, opts period.Options, logger *zap.Logger) *Extractor {
	if cfg == nil {
		cfg = vocab.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		locator:    classify.NewLocator(cfg, logger),
		classifier: classify.NewClassifier(cfg, logger),
		periods:    period.NewExtractor(cfg.Thresholds, opts, logger),
		parser:     blocks.NewParser(cfg.Thresholds, logger),
		logger:     logger,
	}
}

// recoverInto turns a panic in the current stage into the result's error.
func recoverInto(res *FilingResult, stage *Stage) {
	if r := recover(); r != nil {
		res.Statements = nil
		res.Err = &FilingError{FilingID: res.FilingID, Stage: *stage, Err: fmt.Errorf("panic: %v", r)}
	}
}

// ExtractFiling locates the statements of a filing and extracts their
// periods and blocks. When no header row is found the whole grid is
// classified as one region, using the filing title as a hint. Regions whose
// type stays unknown are excluded.
func (e *Extractor) ExtractFiling(f models.Filing) (res FilingResult) {
	res.FilingID, res.Source = f.ID, f.Source
	stage := StageLocate
	defer recoverInto(&res, &stage)

	log := e.logger.With(zap.String("filing", f.ID))
	grid := f.Grid

	regions := e.locator.Locate(grid).Regions
	stage = StageClassify
	whole := len(regions) == 0
	if whole && grid.NumRows() > 0 {
		regions = []models.Region{{
			Type:     models.Unknown,
			StartRow: 0,
			EndRow:   grid.NumRows() - 1,
			Columns:  grid.NumCols(),
		}}
	}

	for _, region := range regions {
		stage = StageClassify
		sub := grid.Slice(region.StartRow, region.EndRow)
		title := ""
		if whole {
			title = f.Title
		}
		cls := e.classifier.Classify(sub, title)
		report := RegionReport{Region: region, Classification: cls}

		if whole {
			region.Type = cls.Type
			report.Region.Type = cls.Type
		} else if cls.Type != region.Type {
			// The header phrase is the stronger signal; the content score
			// is kept as confidence.
			res.Warnings = append(res.Warnings, fmt.Sprintf("rows %d-%d: header says %s, content scores %s",
				region.StartRow, region.EndRow, region.Type, cls.Type))
		}
		if region.Type == models.Unknown {
			report.Excluded = true
			res.Regions = append(res.Regions, report)
			res.Warnings = append(res.Warnings, fmt.Sprintf("rows %d-%d: classification ambiguous, excluded", region.StartRow, region.EndRow))
			log.Debug("region excluded", zap.Int("start", region.StartRow), zap.Any("scores", cls.Scores))
			continue
		}

		stage = StagePeriods
		pr := e.periods.Extract(grid, region, region.Type, f.PeriodLabel)
		report.Periods = pr.Labels()
		report.Inferred = pr.Inferred
		if pr.Undetected {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: periods undetected", region.Type))
		}

		stage = StageBlocks
		bs := e.parser.ParseRegion(grid, region, pr.HeaderRows)
		report.Blocks = len(bs)
		res.Regions = append(res.Regions, report)
		if len(bs) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: no value blocks", region.Type))
			continue
		}

		res.Statements = append(res.Statements, synthesis.FilingStatement{
			FilingID:    f.ID,
			Source:      f.Source,
			FiledAt:     f.FiledAt,
			PeriodLabel: f.PeriodLabel,
			Type:        region.Type,
			Periods:     pr.Periods,
			Blocks:      bs,
		})
		log.Debug("statement extracted",
			zap.String("type", string(region.Type)),
			zap.Strings("periods", pr.Labels()),
			zap.Int("blocks", len(bs)))
	}
	return res
}
