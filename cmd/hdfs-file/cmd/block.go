package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hdfskit/file"
	"github.com/grailbio/hdfskit/file/hdfsfile"
	"golang.org/x/sync/errgroup"
)

// Block copies one block of a file.
func Block(ctx context.Context, out io.Writer, args []string) (err error) {
	var (
		flags     flag.FlagSet
		indexFlag = flags.Int("i", 0, "Index of the block to read")
		chunks    = flags.Int("chunks", 0, "If positive, read this many chunks of -chunk-size bytes instead of the exact block")
		chunkSize = sizeFlag(1 << 20)
	)
	flags.Var(&chunkSize, "chunk-size", "Size of each chunk read with -chunks")
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = flags.Args()
	if len(args) != 2 {
		return errors.New("Usage: block [-i n] [-chunks n -chunk-size s] src dst")
	}
	src, dst := args[0], args[1]

	w, finish, err := createOutput(ctx, out, dst)
	if err != nil {
		return err
	}
	defer func() { err = finish(err) }()

	if *chunks <= 0 {
		n, err := file.ReadBlock(ctx, src, *indexFlag, w)
		if err != nil {
			return err
		}
		log.Debug.Printf("block %s[%d]: %d bytes", src, *indexFlag, n)
		return nil
	}
	info, err := file.Stat(ctx, src)
	if err != nil {
		return err
	}
	b, err := file.BlockAt(info, *indexFlag)
	if err != nil {
		return errors.E(err, "block", src)
	}
	in, err := file.Open(ctx, src)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r := in.Reader(ctx)
	if _, err := r.Seek(b.Offset, io.SeekStart); err != nil {
		return errors.E(err, "block", src)
	}
	n, err := file.ReadChunks(ctx, r, w, int(chunkSize), *chunks)
	if err != nil {
		return errors.E(err, "block", src)
	}
	log.Debug.Printf("block %s[%d]: %d chunks, %d bytes", src, *indexFlag, *chunks, n)
	return nil
}

// createOutput opens dst for writing; "-" is out. The returned function
// commits the output if err is nil, and discards it otherwise.
func createOutput(ctx context.Context, out io.Writer, dst string) (io.Writer, func(error) error, error) {
	if dst == "-" {
		return out, func(err error) error { return err }, nil
	}
	f, err := file.Create(ctx, dst)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), func(err error) error {
		if err != nil {
			f.Discard(ctx)
			return err
		}
		return f.Close(ctx)
	}, nil
}

// Split copies every block of a file into its own file, in parallel. An
// empty file yields one empty part, so the parts always concatenate to the
// source.
func Split(ctx context.Context, out io.Writer, args []string) error {
	var (
		flags       flag.FlagSet
		verboseFlag = flags.Bool("v", false, "Enable verbose logging")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = flags.Args()
	if len(args) != 2 {
		return errors.New("Usage: split src dstprefix")
	}
	src, prefix := args[0], args[1]
	info, err := file.Stat(ctx, src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.E(errors.Invalid, fmt.Sprintf("split %s: is a directory", src))
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := 0; i < file.NumReadBlocks(info); i++ {
		b, err := file.BlockAt(info, i)
		if err != nil {
			return err
		}
		g.Go(func() (err error) {
			dst := fmt.Sprintf("%s.part%d", prefix, b.Index)
			if *verboseFlag {
				fmt.Fprintf(os.Stderr, "%s %v -> %s\n", src, b, dst) // nolint: errcheck
			}
			f, err := file.Create(ctx, dst)
			if err != nil {
				return err
			}
			if _, err = file.ReadRange(ctx, src, b.Offset, b.Length, f.Writer(ctx)); err != nil {
				f.Discard(ctx)
				return errors.E(err, "split", src, b.String())
			}
			return f.Close(ctx)
		})
	}
	return g.Wait()
}

// Checksum prints the HDFS checksum of each file.
func Checksum(ctx context.Context, out io.Writer, args []string) error {
	for _, path := range expandGlobs(ctx, args) {
		if err := checksum(ctx, out, path); err != nil {
			return err
		}
	}
	return nil
}

func checksum(ctx context.Context, out io.Writer, path string) (err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, f, &err)
	sum, err := hdfsfile.Checksum(ctx, f)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%x\t%s\n", sum, path)
	return err
}
