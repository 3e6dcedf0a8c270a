package main

import (
	"os"

	"statement_stitch/pkg/core/assemble"
	"statement_stitch/pkg/core/ingest"
	"statement_stitch/pkg/core/pipeline"

	"github.com/spf13/cobra"
)

// inspection is what inspect prints for one filing.
type inspection struct {
	FilingID string                  `json:"filing_id"`
	Source   string                  `json:"source"`
	Title    string                  `json:"title,omitempty"`
	Rows     int                     `json:"rows"`
	Regions  []pipeline.RegionReport `json:"regions"`
	Warnings []string                `json:"warnings,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect <filing>",
		Short: "Show the statement regions, periods and blocks found in a filing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := ingest.NewLoader(ingest.NewFetcher(a.cfg.Pipeline.CacheDir), a.logger)
			filings, err := loader.LoadFile(cmd.Context(), args[0], ingest.Format(format))
			if err != nil {
				return err
			}
			vc, err := a.cfg.VocabularyConfig()
			if err != nil {
				return err
			}
			extractor := pipeline.NewExtractor(vc, a.cfg.PeriodOptions(), a.logger)

			out := make([]inspection, 0, len(filings))
			for _, f := range filings {
				res := extractor.ExtractFiling(f)
				in := inspection{
					FilingID: f.ID,
					Source:   f.Source,
					Title:    f.Title,
					Rows:     len(f.Grid.Rows),
					Regions:  res.Regions,
					Warnings: res.Warnings,
				}
				if res.Err != nil {
					in.Error = res.Err.Error()
				}
				out = append(out, in)
			}
			return assemble.WriteJSON(os.Stdout, out)
		},
	}
	cmd.Flags().StringVar(&format, "input-format", "", "Input format: xlsx, xls, html, markdown, json (default: detect)")
	return cmd
}
