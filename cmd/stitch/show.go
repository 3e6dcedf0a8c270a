package main

import (
	"github.com/spf13/cobra"

	"statement_stitch/pkg/core/store"
)

func newShowCmd(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "show <entity>",
		Short: "Render the last saved consolidation of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := store.NewRepository(ctx, a.cfg.Store, a.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			snap, err := repo.Load(ctx, args[0])
			if err != nil {
				return err
			}
			return writeStatements(
				firstNonEmpty(output, a.cfg.Output.Path),
				firstNonEmpty(format, a.cfg.Output.Format),
				title(snap.Entity),
				snap.Statements,
			)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: markdown, html, json, xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: stdout)")
	return cmd
}
