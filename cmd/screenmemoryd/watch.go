package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/arkohut/screenmemory/internal/ingest"
	"github.com/spf13/cobra"
)

var (
	watchLibrary string
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Continuously ingest a folder until interrupted",
	Long: `watch registers path as a watched folder (creating the library
and folder if needed) and then consumes filesystem events, coalescing
rapid writes behind a quiescence window and applying adaptive sparsity
under load.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchLibrary, "library", "", "library name (default_library from config if unset)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	libName := watchLibrary
	if libName == "" {
		libName = a.cfg.DefaultLibrary
	}

	libraryID, folderID, err := a.resolveLibraryFolder(libName, root, true)
	if err != nil {
		return fmt.Errorf("resolve library/folder: %w", err)
	}

	p := a.pipeline()
	w, err := ingest.NewWatcher(p, libraryID, folderID, root, a.cfg.SparsityFactor, nil)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
