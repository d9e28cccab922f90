package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hdfskit/file"
)

func Get(ctx context.Context, out io.Writer, args []string) error {
	var (
		flags         flag.FlagSet
		overwriteFlag = flags.Bool("f", false, "Replace existing local files")
		verboseFlag   = flags.Bool("v", false, "Enable verbose logging")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = flags.Args()
	if len(args) < 2 {
		return errors.New("Usage: get src... localdst")
	}
	dst := args[len(args)-1]
	if scheme, _, err := file.ParsePath(dst); err != nil || scheme != "" {
		return errors.E(errors.Invalid, fmt.Sprintf("get: destination %s is not a local path", dst))
	}
	srcs := expandGlobs(ctx, args[:len(args)-1])
	if len(srcs) > 1 {
		if err := os.MkdirAll(dst, 0777); err != nil {
			return errors.E(err, "get", dst)
		}
	}
	return traverse.Limit(parallelism).Each(len(srcs), func(i int) error {
		path, err := file.CopyFile(ctx, srcs[i], dst, file.Opts{Overwrite: *overwriteFlag})
		if err != nil {
			return errors.E(err, "get", srcs[i])
		}
		if *verboseFlag {
			fmt.Fprintf(os.Stderr, "%s -> %s\n", srcs[i], path) // nolint: errcheck
		}
		return nil
	})
}
