// Command screenmemoryd runs the screen-memory appliance: capture loop,
// ingestion pipeline, hybrid search and the HTTP façade, as one binary
// with a subcommand per role.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
