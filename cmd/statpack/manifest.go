package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lwithers/staticfile/pack"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Build YAML manifest from a list of directories",
	Long: `Generates a YAML manifest from one or more directories, sniffing the
content type of each file. The manifest is suitable for passing to the
siblings command after editing.`,
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("must specify one or more directories")
		}

		// convert "out" to absolute path, in case we need to chdir
		out, err := c.Flags().GetString("out")
		if err != nil {
			return err
		}
		out, err = filepath.Abs(out)
		if err != nil {
			return err
		}

		// chdir if required
		chdir, err := c.Flags().GetString("chdir")
		if err != nil {
			return err
		}
		if chdir != "" {
			if err = os.Chdir(chdir); err != nil {
				return err
			}
		}

		ftp, err := manifestFromArgs(args)
		if err != nil {
			return err
		}
		return pack.SaveManifest(ftp, out)
	},
}

func init() {
	manifestCmd.Flags().StringP("out", "O", "",
		"Output filename")
	manifestCmd.MarkFlagRequired("out")
	manifestCmd.Flags().StringP("chdir", "C", "",
		"Change to directory before searching for input files")
}

func manifestFromArgs(args []string) (pack.FilesToPack, error) {
	ftp := make(pack.FilesToPack)
	for _, arg := range args {
		part, err := pack.ManifestFromDir(arg)
		if err != nil {
			return nil, err
		}
		for name, fileToPack := range part {
			ftp[name] = fileToPack
		}
	}
	return ftp, nil
}
