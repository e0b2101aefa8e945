package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "statpack",
	Short: "statpack prepares static file trees for efficient serving over HTTP",
	Long: `Generates pre-compressed sibling files (".gz", ".br", "zst") next to
static assets so that the server can answer Accept-Encoding negotiation
without compressing on the fly. A YAML manifest of files may be provided
or generated on demand; or directories can be listed as arguments.

Trees can additionally be bundled into a single snapshot file that the
server maps into memory and serves without per-request filesystem
access.`,
}

func main() {
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(siblingsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
