// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package hdfsfile implements the grail file interface for HDFS on top of
// the native Go HDFS client, github.com/colinmarc/hdfs/v2.
//
// Paths have the form "hdfs://namenode[:port]/abs/path". An empty authority,
// as in "hdfs:///user/alice", refers to the file system named by
// fs.defaultFS in the Config. The namenode may also be an HA nameservice id
// listed in dfs.nameservices.
package hdfsfile

import (
	"context"
	"fmt"
	"os"
	pathpkg "path"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hdfskit/file"
)

// Scheme is the URL scheme handled by this package.
const Scheme = "hdfs"

const (
	dirPerm  os.FileMode = 0755
	filePerm os.FileMode = 0644
)

// Options defines options that can be given when creating an hdfsImpl.
type Options struct {
	// Config supplies fs.defaultFS and the default replication and block
	// size of created files. If nil, an empty Config is used.
	Config *Config
}

type hdfsImpl struct {
	provider ClientProvider
	conf     *Config
}

// NewImplementation creates a new file.Implementation for HDFS. The provider
// is called to obtain namenode clients.
func NewImplementation(provider ClientProvider, opts Options) file.Implementation {
	metricAutolog()
	conf := opts.Config
	if conf == nil {
		conf = NewConfig()
	}
	return &hdfsImpl{provider: provider, conf: conf}
}

// Run handler in a separate goroutine, then wait for either the handler to
// finish, or ctx to be cancelled. The namenode client takes no context.
//
// If ctx is cancelled first, the handler keeps running. When it later
// succeeds, release (if non-nil) is called to give back whatever the handler
// acquired, since no caller will.
func runRequest(ctx context.Context, handler func() error, release func()) error {
	ch := make(chan error, 1)
	go func() { ch <- handler() }()
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		if release != nil {
			go func() {
				if err := <-ch; err == nil {
					release()
				}
			}()
		}
		return errors.E(errors.Canceled, ctx.Err(), "hdfsfile: request cancelled")
	}
}

// String implements a human-readable description.
func (impl *hdfsImpl) String() string { return Scheme }

// ParseURL parses a path of form "hdfs://namenode:8020/dir/file" and returns
// ("hdfs", "namenode:8020", "/dir/file", nil). The returned path is cleaned
// and always absolute. The namenode is "" when the URL has an empty
// authority.
func ParseURL(url string) (scheme, namenode, path string, err error) {
	var suffix string
	scheme, suffix, err = file.ParsePath(url)
	if err != nil {
		return "", "", "", err
	}
	if scheme == "" {
		return "", "", "", errors.E(errors.Invalid, fmt.Sprintf("hdfsfile: %s is not a URL", url))
	}
	i := strings.IndexByte(suffix, '/')
	if i < 0 {
		return scheme, suffix, "/", nil
	}
	return scheme, suffix[:i], pathpkg.Clean(suffix[i:]), nil
}

// resolve splits url into the namenode to ask and the path to ask for.
func (impl *hdfsImpl) resolve(url string) (namenode, path string, err error) {
	_, namenode, path, err = ParseURL(url)
	if err != nil {
		return "", "", err
	}
	if namenode != "" {
		return namenode, path, nil
	}
	fs := impl.conf.DefaultFS()
	if fs == "" {
		return "", "", errors.E(errors.Invalid, fmt.Sprintf("hdfsfile: %s has no namenode and %s is not set", url, KeyDefaultFS))
	}
	scheme, namenode, _, err := ParseURL(fs)
	if err != nil {
		return "", "", errors.E(err, KeyDefaultFS, fs)
	}
	if scheme != Scheme || namenode == "" {
		return "", "", errors.E(errors.Invalid, fmt.Sprintf("hdfsfile: %s=%s is not an HDFS URL", KeyDefaultFS, fs))
	}
	return namenode, path, nil
}

// do runs fn with the client for url's namenode, retrying temporary
// failures. Errors are annotated with op and url.
func (impl *hdfsImpl) do(ctx context.Context, op, url string, fn func(c Client, path string) error) error {
	return impl.acquire(ctx, op, url, fn, nil)
}

// acquire is do for an fn that opens a handle. If ctx is cancelled while fn
// is still running, release is called once fn succeeds.
func (impl *hdfsImpl) acquire(ctx context.Context, op, url string, fn func(c Client, path string) error, release func()) (err error) {
	namenode, path, err := impl.resolve(url)
	if err != nil {
		return err
	}
	progress := metrics.Op(op).Start()
	defer func() { progress.Done(err) }()
	return runRequest(ctx, func() error {
		c, err := impl.provider.Get(ctx, namenode)
		if err != nil {
			return errors.E(err, "hdfsfile."+op, url)
		}
		r := newRetrier(progress)
		for {
			err := fn(c, path)
			if r.shouldRetry(ctx, err, url) {
				continue
			}
			if err != nil {
				return annotate(err, r, "hdfsfile."+op, url)
			}
			return nil
		}
	}, release)
}

// Stat implements file.Implementation interface.
func (impl *hdfsImpl) Stat(ctx context.Context, url string, _ ...file.Opts) (file.Info, error) {
	var info *hdfsInfo
	err := impl.do(ctx, "stat", url, func(c Client, path string) error {
		fi, err := c.Stat(path)
		if err != nil {
			return err
		}
		info = newInfo(fi)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Remove implements file.Implementation interface. It removes a file or an
// empty directory.
func (impl *hdfsImpl) Remove(ctx context.Context, url string) error {
	return impl.do(ctx, "remove", url, func(c Client, path string) error {
		return c.Remove(path)
	})
}

// RemoveAll implements file.Implementation interface.
func (impl *hdfsImpl) RemoveAll(ctx context.Context, url string) error {
	return impl.do(ctx, "removeall", url, func(c Client, path string) error {
		if path == "/" {
			return errors.E(errors.NotAllowed, "refusing to remove /")
		}
		if err := c.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

// Mkdir implements file.Implementation interface.
func (impl *hdfsImpl) Mkdir(ctx context.Context, url string) error {
	return impl.do(ctx, "mkdir", url, func(c Client, path string) error {
		return c.MkdirAll(path, dirPerm)
	})
}

// Rename implements file.Implementation interface. If dst is an existing
// directory, src is moved into it. An existing destination file is replaced.
func (impl *hdfsImpl) Rename(ctx context.Context, src, dst string) error {
	srcNN, _, err := impl.resolve(src)
	if err != nil {
		return err
	}
	dstNN, dstPath, err := impl.resolve(dst)
	if err != nil {
		return err
	}
	if srcNN != dstNN {
		return errors.E(errors.NotSupported, fmt.Sprintf("hdfsfile.rename %s -> %s: namenodes differ", src, dst))
	}
	return impl.do(ctx, "rename", src, func(c Client, srcPath string) error {
		to := dstPath
		if fi, err := c.Stat(to); err == nil && fi.IsDir() {
			to = pathpkg.Join(to, pathpkg.Base(srcPath))
		}
		return c.Rename(srcPath, to)
	})
}

// Checksum returns the HDFS checksum (an MD5 of the per-block CRCs) of a
// file opened by file.Open on an "hdfs://" path.
func Checksum(ctx context.Context, f file.File) ([]byte, error) {
	hf, ok := f.(*hdfsFile)
	if !ok || hf.mode != readonly {
		return nil, errors.E(errors.NotSupported, fmt.Sprintf("hdfsfile.checksum %s: not an HDFS file opened for reading", f.Name()))
	}
	var sum []byte
	err := runRequest(ctx, func() error {
		var err error
		sum, err = hf.reader.r.Checksum()
		return err
	}, nil)
	if err != nil {
		return nil, annotate(err, nil, "hdfsfile.checksum", f.Name())
	}
	return sum, nil
}
