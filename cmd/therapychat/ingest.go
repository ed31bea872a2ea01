package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/therapychat-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/therapychat-go/internal/adapters/loader"
)

func ingestCmd() *cobra.Command {
	var (
		watch bool
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Chunk, embed and store knowledge-base documents",
		Long: `Ingest every .txt and .md file under dir (default: ingest.dir) into the
vector store. Re-ingesting a file replaces its previous chunks.

Examples:
  therapychat ingest ./documents
  therapychat ingest ./documents --watch    # keep the index in sync
  therapychat ingest --reset ./documents    # rebuild from scratch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			dir := a.cfg.Ingest.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			ctx := cmd.Context()

			if reset {
				if err := a.store.Clear(ctx); err != nil {
					return fmt.Errorf("clearing collection: %w", err)
				}
				a.logger.Info().Str("collection", a.cfg.VectorDB.Collection).Msg("collection cleared")
			}

			uc := a.newIngest()
			n, err := uc.IngestDir(ctx, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents from %s\n", n, dir)

			if !watch {
				return nil
			}

			watcher, err := filewatcher.NewFSNotifyWatcher(loader.NewTextLoader().SupportedExtensions(), a.logger)
			if err != nil {
				return err
			}
			defer watcher.Stop()

			events, err := watcher.Watch(ctx, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl+C to stop)\n", dir)
			if err := uc.Sync(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and re-ingest changed files")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the collection before ingesting")

	return cmd
}
