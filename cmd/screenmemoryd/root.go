package main

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "screenmemoryd",
	Short:   "Personal screen-memory appliance",
	Long:    "screenmemoryd continuously captures screenshots, extracts OCR/caption/embedding metadata, and serves hybrid lexical+semantic search over the resulting corpus.",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.config/screenmemory/config.yaml)")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(libCmd)
	rootCmd.AddCommand(pluginCmd)
}
