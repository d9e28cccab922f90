package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hdfskit/file"
)

func Rm(ctx context.Context, out io.Writer, args []string) error {
	var (
		flags         flag.FlagSet
		verboseFlag   = flags.Bool("v", false, "Enable verbose logging")
		recursiveFlag = flags.Bool("R", false, "Recursive remove")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = expandGlobs(ctx, flags.Args())
	return traverse.Each(len(args), func(i int) error {
		path := args[i]
		if *verboseFlag {
			fmt.Fprintf(os.Stderr, "%s\n", path) // nolint: errcheck
		}
		if *recursiveFlag {
			return file.RemoveAll(ctx, path)
		}
		return file.Remove(ctx, path)
	})
}

// Mv renames a file or a directory.
func Mv(ctx context.Context, out io.Writer, args []string) error {
	var (
		flags       flag.FlagSet
		verboseFlag = flags.Bool("v", false, "Enable verbose logging")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = flags.Args()
	if len(args) != 2 {
		return fmt.Errorf("Usage: mv src dst")
	}
	if *verboseFlag {
		fmt.Fprintf(os.Stderr, "%s -> %s\n", args[0], args[1]) // nolint: errcheck
	}
	return file.Rename(ctx, args[0], args[1])
}

// Mkdir creates each directory.
func Mkdir(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("Usage: mkdir path...")
	}
	return traverse.Each(len(args), func(i int) error {
		return file.Mkdir(ctx, args[i])
	})
}
