package main

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lwithers/staticfile/pack"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Bundle a directory into a single snapshot file",
	Long: `Bundles every file under a directory, pre-compressed siblings
included, into a single snapshot file. The server maps a snapshot into
memory and serves it without touching the filesystem per request.`,
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("must specify exactly one directory")
		}

		out, err := c.Flags().GetString("out")
		if err != nil {
			return err
		}
		out, err = filepath.Abs(out)
		if err != nil {
			return err
		}

		return pack.Snapshot(args[0], out)
	},
}

func init() {
	snapshotCmd.Flags().StringP("out", "O", "",
		"Output filename")
	snapshotCmd.MarkFlagRequired("out")
}
