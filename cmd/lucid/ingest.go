package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/lucid/internal/cognitive"
	"github.com/danielpatrickdp/lucid/internal/corpus"
)

func newIngestCmd(c *cli) *cobra.Command {
	var (
		prune bool
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "ingest [dataset.json]",
		Short: "Embed a cognitive-unit dataset into the corpus",
		Long: "Reads a JSON array of units (or an object with a \"units\" array), embeds new or changed\n" +
			"entries and stores them. Unchanged entries are skipped by content hash.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := c.cfg.Retrieval.Dataset
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no dataset: pass a path or set retrieval.dataset")
			}

			rt, err := c.newStorage()
			if err != nil {
				return err
			}
			defer rt.Close()
			store, err := rt.openCorpus(ctx)
			if err != nil {
				return err
			}

			records, err := cognitive.LoadDataset(path)
			if err != nil {
				return err
			}
			var stats corpus.IngestStats
			if prune || watch {
				stats, err = store.Sync(ctx, records)
			} else {
				stats, err = store.Ingest(ctx, records)
			}
			if err != nil {
				return err
			}
			total, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedded %d, unchanged %d, removed %d (corpus now %d units)\n",
				stats.Embedded, stats.Unchanged, stats.Removed, total)

			if !watch {
				return nil
			}
			c.log.Info("watching for changes, Ctrl-C to stop", zap.String("dataset", path))
			return store.Watch(ctx, path, corpus.DefaultDebounce)
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "remove corpus units missing from the dataset")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and re-sync when the file changes (implies --prune)")
	return cmd
}
