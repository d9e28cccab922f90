// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

type localImpl struct{}

type accessMode int

const (
	readonly      accessMode = iota // file opened by Open.
	writeonlyFile                   // regular file opened by Create.
	writeonlyDev                    // device or socket opened by Create.
)

type localInfo struct {
	name    string
	size    int64
	modTime time.Time
	mode    os.FileMode
}

func newLocalInfo(fi os.FileInfo) *localInfo {
	size := fi.Size()
	if fi.IsDir() {
		size = 0
	}
	return &localInfo{name: fi.Name(), size: size, modTime: fi.ModTime(), mode: fi.Mode()}
}

func (i *localInfo) Name() string       { return i.name }
func (i *localInfo) Size() int64        { return i.size }
func (i *localInfo) ModTime() time.Time { return i.modTime }
func (i *localInfo) Mode() os.FileMode  { return i.mode }
func (i *localInfo) IsDir() bool        { return i.mode.IsDir() }
func (i *localInfo) Owner() string      { return "" }
func (i *localInfo) Group() string      { return "" }
func (i *localInfo) BlockSize() int64   { return 0 }

func (i *localInfo) Replication() int {
	if i.IsDir() {
		return 0
	}
	return 1
}

type localFile struct {
	f        *os.File
	mode     accessMode
	path     string // User-supplied path.
	realPath string // Path after symlink resolution.
}

type localLister struct {
	prefix  string
	err     error
	path    string
	info    os.FileInfo
	todo    []string
	recurse bool
}

// NewLocalImplementation returns a new file.Implementation for the local file
// system. Applications should normally use file.Open, file.Create and
// friends with a plain pathname instead.
func NewLocalImplementation() Implementation { return &localImpl{} }

func (impl *localImpl) String() string {
	return "local"
}

func localError(err error, args ...interface{}) error {
	if os.IsNotExist(err) {
		return errors.E(append([]interface{}{err, errors.NotExist}, args...)...)
	}
	if os.IsPermission(err) {
		return errors.E(append([]interface{}{err, errors.NotAllowed}, args...)...)
	}
	if os.IsExist(err) {
		return errors.E(append([]interface{}{err, errors.Exists}, args...)...)
	}
	return errors.E(append([]interface{}{err}, args...)...)
}

// Open implements file.Implementation.
func (impl *localImpl) Open(ctx context.Context, path string, _ ...Opts) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, localError(err)
	}
	return &localFile{f: f, mode: readonly, path: path}, nil
}

// Create implements file.Implementation.  To make writes appear atomic, it
// creates a temporary file next to <path>, then renames the temp file to
// <path> on Close.
func (*localImpl) Create(ctx context.Context, path string, _ ...Opts) (File, error) {
	if path == "" {
		return nil, errors.E(errors.Invalid, "file.Create: empty pathname")
	}
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		// The file or the symlink destination doesn't exist yet.
		realPath = path
	}
	stat, err := os.Stat(path)
	if err == nil && stat.IsDir() {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("file.Create %s: is a directory", path))
	}
	if err == nil && stat.Mode()&(os.ModeDevice|os.ModeNamedPipe|os.ModeSocket) != 0 {
		f, err := os.Create(path)
		if err != nil {
			return nil, localError(err)
		}
		return &localFile{f: f, mode: writeonlyDev, path: path, realPath: realPath}, nil
	}
	dir := filepath.Dir(realPath)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, localError(err, "create", path)
	}
	f, err := ioutil.TempFile(dir, filepath.Base(realPath)+".tmp")
	if err != nil {
		return nil, localError(err, "create", path)
	}
	return &localFile{f: f, mode: writeonlyFile, path: path, realPath: realPath}, nil
}

// Close implements file.File.
func (f *localFile) Close(ctx context.Context) error {
	switch f.mode {
	case readonly, writeonlyDev:
		return f.f.Close()
	}
	err := f.f.Sync()
	if e := f.f.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		_ = os.Remove(f.f.Name())
		return err
	}
	return os.Rename(f.f.Name(), f.realPath)
}

// Discard implements file.File.
func (f *localFile) Discard(ctx context.Context) {
	switch f.mode {
	case readonly, writeonlyDev:
		return
	}
	if err := f.f.Close(); err != nil {
		log.Printf("discard %s: close: %v", f.Name(), err)
	}
	if err := os.Remove(f.f.Name()); err != nil {
		log.Printf("discard %s: remove: %v", f.Name(), err)
	}
}

// String implements file.File.
func (f *localFile) String() string {
	return f.path
}

// Name implements file.File.
func (f *localFile) Name() string {
	return f.path
}

// Reader implements file.File
func (f *localFile) Reader(context.Context) io.ReadSeeker {
	if f.mode != readonly {
		return NewError(fmt.Errorf("reader %v: file is not opened in read mode", f.Name()))
	}
	return f.f
}

// Writer implements file.File
func (f *localFile) Writer(context.Context) io.Writer {
	if f.mode == readonly {
		return NewError(fmt.Errorf("writer %v: file is not opened in write mode", f.Name()))
	}
	return f.f
}

// Stat implements file.File
func (f *localFile) Stat(context.Context) (Info, error) {
	info, err := f.f.Stat()
	if err != nil {
		return nil, err
	}
	return newLocalInfo(info), nil
}

// List implements file.Implementation
func (impl *localImpl) List(ctx context.Context, prefix string, recurse bool) Lister {
	return &localLister{prefix: prefix, todo: []string{prefix}, recurse: recurse}
}

// Stat implements file.Implementation
func (impl *localImpl) Stat(ctx context.Context, path string, _ ...Opts) (Info, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, localError(err)
	}
	return newLocalInfo(info), nil
}

// Remove implements file.Implementation.
func (*localImpl) Remove(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil {
		return localError(err)
	}
	return nil
}

// RemoveAll implements file.Implementation.
func (*localImpl) RemoveAll(ctx context.Context, path string) error {
	return os.RemoveAll(path)
}

// Mkdir implements file.Implementation.
func (*localImpl) Mkdir(ctx context.Context, path string) error {
	if err := os.MkdirAll(path, 0777); err != nil {
		return localError(err, "mkdir", path)
	}
	return nil
}

// Rename implements file.Implementation.
func (*localImpl) Rename(ctx context.Context, src, dst string) error {
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if err := os.Rename(src, dst); err != nil {
		return localError(err, "rename", src, "->", dst)
	}
	return nil
}

// Scan implements Lister.Scan.
func (l *localLister) Scan() bool {
	for {
		if len(l.todo) == 0 || l.err != nil {
			return false
		}
		l.path, l.todo = l.todo[0], l.todo[1:]
		l.info, l.err = os.Stat(l.path)
		if os.IsNotExist(l.err) && l.path != l.prefix {
			// Removed since its parent was read.
			l.err = nil
			continue
		}
		if l.err != nil {
			l.err = localError(l.err, "list", l.path)
			return false
		}
		if !l.info.IsDir() {
			return true
		}
		if l.recurse || l.path == l.prefix {
			var paths []string
			paths, l.err = readDirNames(l.path)
			if l.err != nil {
				return false
			}
			for i := range paths {
				paths[i] = filepath.Join(l.path, paths[i])
			}
			l.todo = append(paths, l.todo...)
		}
		if !l.recurse && l.path != l.prefix {
			return true
		}
	}
}

// Path returns the most recent path that was scanned.
func (l *localLister) Path() string {
	return l.path
}

// Info returns the metadata of the most recent path scanned.
func (l *localLister) Info() Info {
	return newLocalInfo(l.info)
}

// IsDir reports whether the most recent path scanned is a directory.
func (l *localLister) IsDir() bool {
	return l.info.IsDir()
}

// Err returns the first error that occurred while scanning.
func (l *localLister) Err() error {
	return l.err
}

// readDirNames reads the directory named by dirname and returns
// a sorted list of directory entries.
func readDirNames(dirname string) ([]string, error) {
	f, err := os.Open(dirname)
	if err != nil {
		return nil, err
	}
	names, err := f.Readdirnames(-1)
	if e := f.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
