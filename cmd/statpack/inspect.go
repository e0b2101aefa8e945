package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/lwithers/staticfile/internal/packed"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "View contents of a snapshot file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("must specify one or more files")
		}

		var exitCode int
		for _, filename := range args {
			if err := inspect(filename); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n",
					filename, err)
				exitCode = 1
			}
		}
		os.Exit(exitCode)
		return nil
	},
}

func inspect(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr, dir, err := packed.Load(f)
	if hdr != nil {
		fmt.Printf("Header: %#v\n", hdr)
	}
	if dir != nil {
		names := make([]string, 0, len(dir.Files))
		for name := range dir.Files {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("%d files:\n", len(names))
		for _, name := range names {
			info := dir.Files[name]
			fmt.Printf(" • %s\n"+
				"    · Size:     %s (offset %d)\n"+
				"    · Modified: %s\n",
				name,
				printSize(info.Length), info.Offset,
				time.Unix(0, info.ModifiedUnixNano).UTC().
					Format(time.RFC3339),
			)
		}
	}
	return err
}

func printSize(size uint64) string {
	switch {
	case size < 1<<10:
		return fmt.Sprintf("%d bytes", size)
	case size < 1<<15:
		return fmt.Sprintf("%.2f KiB", float64(size)/(1<<10))
	case size < 1<<20:
		return fmt.Sprintf("%.1f KiB", float64(size)/(1<<10))
	case size < 1<<25:
		return fmt.Sprintf("%.2f MiB", float64(size)/(1<<20))
	case size < 1<<30:
		return fmt.Sprintf("%.1f MiB", float64(size)/(1<<20))
	case size < 1<<35:
		return fmt.Sprintf("%.2f GiB", float64(size)/(1<<30))
	default:
		return fmt.Sprintf("%.1f GiB", float64(size)/(1<<30))
	}
}
