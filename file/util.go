// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// ReadFile reads the given file and returns the contents. A successful call
// returns err == nil, not err == EOF. Arg opts is passed to file.Open.
func ReadFile(ctx context.Context, path string, opts ...Opts) (data []byte, err error) {
	in, err := Open(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	defer CloseAndReport(ctx, in, &err)
	return ioutil.ReadAll(in.Reader(ctx))
}

// WriteFile writes data to the given file. If the file does not exist,
// WriteFile creates it; otherwise WriteFile truncates it before writing.
func WriteFile(ctx context.Context, path string, data []byte, opts ...Opts) error {
	out, err := Create(ctx, path, opts...)
	if err != nil {
		return err
	}
	n, err := out.Writer(ctx).Write(data)
	if n != len(data) && err == nil {
		err = fmt.Errorf("writefile %s: requested to write %d bytes, actually wrote %d bytes", path, len(data), n)
	}
	if err != nil {
		out.Discard(ctx)
		return err
	}
	return out.Close(ctx)
}

// CopyFile copies the regular file src to dst. Either side may be on any
// registered file system, so CopyFile is both "upload" and "download".
//
// If dst is an existing directory, the file is written to
// Join(dst, Base(src)). Otherwise it is written to dst itself, so copying to
// a new name also renames the file. CopyFile refuses to replace an existing
// destination file unless Opts.Overwrite is set. The destination is written
// with the replication and block size in opts, if any.
//
// CopyFile returns the path of the file it wrote.
func CopyFile(ctx context.Context, src, dst string, opts ...Opts) (string, error) {
	o := MergeOpts(opts)
	srcInfo, err := Stat(ctx, src)
	if err != nil {
		return "", err
	}
	if srcInfo.IsDir() {
		return "", errors.E(errors.Invalid, fmt.Sprintf("copy %s: is a directory", src))
	}
	if info, err := Stat(ctx, dst); err == nil {
		if info.IsDir() {
			dst = Join(dst, Base(src))
			info, err = Stat(ctx, dst)
		}
		if err == nil && !o.Overwrite {
			if info.IsDir() {
				return "", errors.E(errors.Exists, fmt.Sprintf("copy %s -> %s: destination is a directory", src, dst))
			}
			return "", errors.E(errors.Exists, fmt.Sprintf("copy %s -> %s: destination exists", src, dst))
		}
		if err != nil && !errors.Is(errors.NotExist, err) {
			return "", err
		}
	} else if !errors.Is(errors.NotExist, err) {
		return "", err
	}

	in, err := Open(ctx, src)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := in.Close(ctx); err != nil {
			log.Error.Printf("copy %s: close: %v", src, err)
		}
	}()
	out, err := Create(ctx, dst, Opts{Replication: o.Replication, BlockSize: o.BlockSize})
	if err != nil {
		return "", err
	}
	if _, err := Copy(ctx, out.Writer(ctx), in.Reader(ctx)); err != nil {
		out.Discard(ctx)
		return "", errors.E(err, "copy", src, "->", dst)
	}
	if err := out.Close(ctx); err != nil {
		return "", errors.E(err, "copy", src, "->", dst)
	}
	return dst, nil
}
