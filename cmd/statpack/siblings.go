package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/lwithers/staticfile/pack"
)

var siblingsCmd = &cobra.Command{
	Use:   "siblings",
	Short: "Generate pre-compressed sibling files from a manifest or directories",
	RunE: func(c *cobra.Command, args []string) error {
		spec, err := c.Flags().GetString("spec")
		if err != nil {
			return err
		}
		brotli, err := c.Flags().GetString("brotli")
		if err != nil {
			return err
		}
		pack.BrotliPath = brotli

		var ftp pack.FilesToPack
		switch {
		case spec != "":
			if len(args) != 0 {
				return errors.New("cannot mix --spec with directory arguments")
			}
			if ftp, err = pack.LoadManifest(spec); err != nil {
				return err
			}

		case len(args) != 0:
			if ftp, err = manifestFromArgs(args); err != nil {
				return err
			}

		default:
			return errors.New("need --spec, or one or more directories")
		}

		return pack.Siblings(ftp)
	},
}

func init() {
	siblingsCmd.Flags().StringP("spec", "y", "",
		"YAML manifest of files to process")
	siblingsCmd.Flags().String("brotli", "brotli",
		"Path to brotli executable; empty disables .br generation")
}
