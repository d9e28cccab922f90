package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/hdfskit/file"
)

func Ls(ctx context.Context, out io.Writer, args []string) error {
	var (
		flags          flag.FlagSet
		longOutputFlag = flags.Bool("l", false, "Print permission, replication, owner, group, size and last modification time")
		recursiveFlag  = flags.Bool("R", false, "Descend into directories recursively")
		blocksFlag     = flags.Bool("b", false, "Print the block layout of each file")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	type result struct {
		err   error
		lines chan string // stream of entries found for an arg, closed when done
	}
	output := func(path string, info file.Info) string {
		line := path
		if *longOutputFlag {
			const iso8601 = "2006-01-02T15:04:05-0700"
			line = fmt.Sprintf("%s\t%d\t%s\t%s\t%s\t%d\t%s",
				info.Mode(), info.Replication(), info.Owner(), info.Group(),
				path, info.Size(), info.ModTime().Format(iso8601))
		}
		if *blocksFlag {
			var blocks []string
			for _, b := range file.Blocks(info) {
				blocks = append(blocks, fmt.Sprintf("%d:%d+%d", b.Index, b.Offset, b.Length))
			}
			line += "\t" + strings.Join(blocks, ",")
		}
		return line
	}
	args = expandGlobs(ctx, flags.Args())
	results := make([]result, len(args))
	for i := range args {
		results[i].lines = make(chan string, 10000)
		go func(path string, r *result) {
			defer close(r.lines)
			// Check if the file is a regular file
			info, err := file.Stat(ctx, path)
			if err != nil {
				r.err = err
				return
			}
			if !info.IsDir() {
				r.lines <- output(path, info)
				return
			}
			lister := file.List(ctx, path, *recursiveFlag)
			for lister.Scan() {
				switch {
				case lister.IsDir():
					r.lines <- lister.Path() + "/"
				default:
					r.lines <- output(lister.Path(), lister.Info())
				}
			}
			r.err = lister.Err()
		}(args[i], &results[i])
	}
	// Print the results in order.
	var err error
	for i := range results {
		for line := range results[i].lines {
			_, _ = fmt.Fprintln(out, line)
		}
		if err2 := results[i].err; err2 != nil && err == nil {
			err = err2
		}
	}
	return err
}

// Stat prints whether each path is a file or a directory.
func Stat(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("Usage: stat path...")
	}
	for _, path := range args {
		info, err := file.Stat(ctx, path)
		if err != nil {
			return err
		}
		kind := "file"
		if info.IsDir() {
			kind = "directory"
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\t%d\n", path, kind, info.Size())
	}
	return nil
}
