package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reindexForce       bool
	reindexBumpOnly    bool
	reindexOrphanSweep bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Bump last_scan_at and re-embed stale entities",
	Long: `reindex bumps last_scan_at on every catalog entity, then walks the
catalog re-writing FTS/vector index rows for any entity whose
(fts_indexed_at, vec_indexed_at) precede last_scan_at, or all entities if
--force is set.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "re-embed every entity regardless of index staleness")
	reindexCmd.Flags().BoolVar(&reindexBumpOnly, "bump-only", false, "only bump last_scan_at, skip the search-index pass")
	reindexCmd.Flags().BoolVar(&reindexOrphanSweep, "orphans", false, "also delete orphaned FTS/vector index rows")
}

func runReindex(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	p := a.pipeline()
	ctx := context.Background()

	bumped, err := p.Reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "bumped %d entities\n", bumped)

	if !reindexBumpOnly {
		reembedded, err := p.SearchIndex(ctx, a.gw.Embedder, reindexForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "re-embedded %d entities\n", reembedded)
	}

	if reindexOrphanSweep {
		if err := p.OrphanCleanup(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "orphan cleanup complete")
	}
	return nil
}
