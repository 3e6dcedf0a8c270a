package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"statement_stitch/pkg/core/ingest"
	"statement_stitch/pkg/core/llm"
	"statement_stitch/pkg/core/pipeline"
	"statement_stitch/pkg/core/store"
	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/models"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type consolidateFlags struct {
	format   string
	output   string
	order    string
	explicit []string
	workers  int
	entity   string
	save     bool
	report   string
}

func newConsolidateCmd(a *app) *cobra.Command {
	var fl consolidateFlags
	cmd := &cobra.Command{
		Use:   "consolidate <manifest.yaml | filing...>",
		Short: "Extract and consolidate statements from filings",
		Long: `consolidate reads a YAML manifest, or the filings given as arguments, and
writes one consolidated table per statement type.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.consolidate(cmd, args, fl)
		},
	}
	cmd.Flags().StringVarP(&fl.format, "format", "f", "", "Output format: markdown, html, json, xlsx (default from config)")
	cmd.Flags().StringVarP(&fl.output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&fl.order, "order", "", "Filing order: newest_first, oldest_first, explicit")
	cmd.Flags().StringSliceVar(&fl.explicit, "explicit", nil, "Filing IDs newest first, for --order explicit")
	cmd.Flags().IntVarP(&fl.workers, "workers", "w", 0, "Extraction workers")
	cmd.Flags().StringVarP(&fl.entity, "entity", "e", "", "Entity name (default from manifest)")
	cmd.Flags().BoolVar(&fl.save, "save", false, "Persist the consolidated statements")
	cmd.Flags().StringVar(&fl.report, "report", "", "Write the run report as JSON to this path")
	return cmd
}

func (a *app) consolidate(cmd *cobra.Command, args []string, fl consolidateFlags) error {
	ctx := cmd.Context()
	cfg := a.cfg

	manifest, err := manifestFromArgs(args)
	if err != nil {
		return err
	}
	entity := firstNonEmpty(fl.entity, manifest.Entity)

	loader := ingest.NewLoader(ingest.NewFetcher(cfg.Pipeline.CacheDir), a.logger)
	loaded := loader.Load(ctx, manifest)
	for _, f := range loaded.Failures {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", f.Path, f.Err)
	}
	if len(loaded.Filings) == 0 {
		return eris.New("no filings could be loaded")
	}

	vc, err := cfg.VocabularyConfig()
	if err != nil {
		return err
	}

	order := cfg.Order()
	if fl.order != "" {
		if order, err = synthesis.ParseOrder(fl.order); err != nil {
			return err
		}
	}
	explicit := cfg.Pipeline.Explicit
	if len(fl.explicit) > 0 {
		explicit = fl.explicit
	}
	workers := cfg.Pipeline.Workers
	if fl.workers > 0 {
		workers = fl.workers
	}

	encoder, err := llm.NewEncoderFromConfig(ctx, cfg.Embedding)
	if err != nil {
		return err
	}
	opts := pipeline.Options{
		Workers:    workers,
		Order:      order,
		Explicit:   explicit,
		Thresholds: vc.Thresholds,
		Checks:     cfg.Checks,
	}
	if encoder != nil {
		defer encoder.Close()
		opts.Encoder = encoder
	}

	extractor := pipeline.NewExtractor(vc, cfg.PeriodOptions(), a.logger)
	report, err := pipeline.NewOrchestrator(extractor, a.logger).Run(ctx, loaded.Filings, opts)
	if err != nil {
		return err
	}
	for _, f := range report.Failed() {
		fmt.Fprintf(os.Stderr, "failed %s: %s\n", f.Source, f.Error)
	}
	for _, c := range report.Checks.Failures() {
		fmt.Fprintf(os.Stderr, "check %s %s %s %s: expected %s, got %s (%s)\n",
			c.Kind, c.Statement, c.Metric, c.Period,
			models.FormatNumber(c.Expected), models.FormatNumber(c.Actual), c.Detail)
	}

	if fl.report != "" {
		if err := writeFile(fl.report, "json", entity, report); err != nil {
			return err
		}
	}

	format := firstNonEmpty(fl.format, cfg.Output.Format)
	path := firstNonEmpty(fl.output, cfg.Output.Path)
	if err := writeStatements(path, format, title(entity), report.Statements); err != nil {
		return err
	}

	if fl.save {
		repo, err := store.NewRepository(ctx, cfg.Store, a.logger)
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.Save(ctx, entity, report.RunID, report.Statements); err != nil {
			return err
		}
		a.logger.Info("saved consolidated statements",
			zap.String("entity", entity), zap.String("run_id", report.RunID.String()))
	}
	return nil
}

// manifestFromArgs reads a manifest when the only argument is a YAML file,
// otherwise treats every argument as one filing.
func manifestFromArgs(args []string) (*ingest.Manifest, error) {
	if len(args) == 1 {
		ext := strings.ToLower(filepath.Ext(args[0]))
		if ext == ".yaml" || ext == ".yml" {
			return ingest.LoadManifest(args[0])
		}
	}
	m := &ingest.Manifest{}
	for _, p := range args {
		m.Filings = append(m.Filings, ingest.ManifestEntry{Path: p})
	}
	return m, nil
}

func title(entity string) string {
	if entity == "" {
		return "Consolidated statements"
	}
	return entity + " consolidated statements"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
