package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	scanLibrary string
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Walk a folder once, reconciling it with the catalog",
	Long: `scan walks path, upserts every eligible image file into the
catalog (library created if absent, folder registered if absent), and
deletes catalog entities whose file has since disappeared.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanLibrary, "library", "", "library name (default_library from config if unset)")
}

func runScan(cmd *cobra.Command, args []string) error {
	root := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	libName := scanLibrary
	if libName == "" {
		libName = a.cfg.DefaultLibrary
	}

	libraryID, folderID, err := a.resolveLibraryFolder(libName, root, true)
	if err != nil {
		return fmt.Errorf("resolve library/folder: %w", err)
	}

	p := a.pipeline()
	ctx := context.Background()
	if err := p.Scan(ctx, libraryID, folderID, root); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scanned %s into library %q\n", root, libName)
	return nil
}
