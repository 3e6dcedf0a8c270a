package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"statement_stitch/pkg/api"
	"statement_stitch/pkg/core/llm"
	"statement_stitch/pkg/core/pipeline"
	"statement_stitch/pkg/core/store"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var noStore bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve consolidation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg := a.cfg

			vc, err := cfg.VocabularyConfig()
			if err != nil {
				return err
			}
			opts := pipeline.Options{
				Workers:    cfg.Pipeline.Workers,
				Order:      cfg.Order(),
				Explicit:   cfg.Pipeline.Explicit,
				Thresholds: vc.Thresholds,
				Checks:     cfg.Checks,
			}
			encoder, err := llm.NewEncoderFromConfig(ctx, cfg.Embedding)
			if err != nil {
				return err
			}
			if encoder != nil {
				defer encoder.Close()
				opts.Encoder = encoder
			}

			var repo store.Repository
			if !noStore {
				if repo, err = store.NewRepository(ctx, cfg.Store, a.logger); err != nil {
					return err
				}
				defer repo.Close()
			}

			apiCfg := cfg.API
			if addr != "" {
				apiCfg.Addr = addr
			}
			extractor := pipeline.NewExtractor(vc, cfg.PeriodOptions(), a.logger)
			return api.NewServer(apiCfg, extractor, opts, repo, a.logger).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Disable persistence endpoints")
	return cmd
}
