package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hdfskit/file"
	"golang.org/x/sync/errgroup"
)

func Put(ctx context.Context, out io.Writer, args []string) (err error) {
	var (
		flags         flag.FlagSet
		overwriteFlag = flags.Bool("f", false, "Replace existing destination files")
		verboseFlag   = flags.Bool("v", false, "Enable verbose logging")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = flags.Args()
	switch len(args) {
	case 0:
		return errors.New("Usage: put [-f] local... dst, or put dst")
	case 1:
		return putStdin(ctx, args[0])
	}
	dst := args[len(args)-1]
	srcs := args[:len(args)-1]
	if len(srcs) > 1 {
		// Several sources always land inside dst.
		if err := file.Mkdir(ctx, dst); err != nil {
			return errors.E(err, "put", dst)
		}
	}
	opts := file.Opts{Overwrite: *overwriteFlag}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, src := range srcs {
		src := src
		g.Go(func() error {
			path, err := file.CopyFile(ctx, src, dst, opts)
			if err != nil {
				return errors.E(err, "put", src)
			}
			if *verboseFlag {
				fmt.Fprintf(os.Stderr, "%s -> %s\n", src, path) // nolint: errcheck
			}
			return nil
		})
	}
	return g.Wait()
}

func putStdin(ctx context.Context, path string) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "put", path)
	}
	if _, err = file.Copy(ctx, f.Writer(ctx), os.Stdin); err != nil {
		f.Discard(ctx)
		return errors.E(err, "put", path)
	}
	return f.Close(ctx)
}
