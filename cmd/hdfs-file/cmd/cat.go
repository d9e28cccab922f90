package cmd

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hdfskit/file"
)

func Cat(ctx context.Context, out io.Writer, args []string) error {
	for _, arg := range expandGlobs(ctx, args) {
		if err := cat(ctx, out, arg); err != nil {
			return err
		}
	}
	return nil
}

func cat(ctx context.Context, out io.Writer, path string) (err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "cat", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	if _, err = file.Copy(ctx, out, f.Reader(ctx)); err != nil {
		return errors.E(err, "cat", path)
	}
	return nil
}

// Text is Cat for files that may be compressed.
func Text(ctx context.Context, out io.Writer, args []string) error {
	for _, arg := range expandGlobs(ctx, args) {
		if err := text(ctx, out, arg); err != nil {
			return err
		}
	}
	return nil
}

func text(ctx context.Context, out io.Writer, path string) (err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "text", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	r, _ := compress.NewReader(f.Reader(ctx))
	defer errors.CleanUp(r.Close, &err)
	if _, err = file.Copy(ctx, out, r); err != nil {
		return errors.E(err, "text", path)
	}
	return nil
}
