package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/arkohut/screenmemory/internal/search"
	"github.com/spf13/cobra"
)

var (
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a hybrid lexical+vector query against the catalog",
	Long: `search runs full-text and vector retrieval over the catalog,
fuses the two ranked lists with reciprocal rank fusion, and prints the
resulting entities as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", search.DefaultLimit, "maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	searcher := search.New(a.store, a.gw.Embedder)
	entities, err := searcher.Hybrid(context.Background(), query, catalog.Filters{}, searchLimit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(entities); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}
