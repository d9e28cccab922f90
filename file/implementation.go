// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
)

// Implementation implements operations for a file-system type.
// Thread safe.
type Implementation interface {
	// String returns a diagnostic string.
	String() string

	// Open opens a file for reading. The pathname given to file.Open() is passed
	// here unchanged. Thus, it contains the URL prefix such as "hdfs://".
	//
	// Open returns an error of kind errors.NotExist if there is
	// no file at the provided path.
	Open(ctx context.Context, path string, opts ...Opts) (File, error)

	// Create opens a file for writing. If "path" already exists, the old contents
	// will be replaced when the file is closed. If the directory part of the path
	// does not exist already, it will be created.
	Create(ctx context.Context, path string, opts ...Opts) (File, error)

	// List finds files and directories. If "path" points to a regular file, the
	// lister will return information about the file itself and finishes.
	//
	// If "path" is a directory, the lister will list file and directory under the
	// given path.  When "recursive" is set to false, List finds files "one level"
	// below dir, directories included. With "recursive=true" List finds all the
	// files under "dir" or its subdirectories; directories are not returned as
	// separate entities. All the paths returned by the lister have the form
	// dir/something.
	List(ctx context.Context, path string, recursive bool) Lister

	// Stat returns the metadata of a file or a directory.
	//
	// Stat returns an error of kind errors.NotExist if there is
	// nothing at the provided path.
	Stat(ctx context.Context, path string, opts ...Opts) (Info, error)

	// Remove removes a file or an empty directory.
	Remove(ctx context.Context, path string) error

	// RemoveAll removes path and everything below it. It returns nil if the
	// path does not exist.
	RemoveAll(ctx context.Context, path string) error

	// Mkdir creates the directory and any missing parents. It is not an
	// error if the directory already exists.
	Mkdir(ctx context.Context, path string) error

	// Rename moves src to dst. If dst is an existing directory, src is moved
	// to dst/<base of src>. Both paths must belong to this implementation.
	Rename(ctx context.Context, src, dst string) error
}

// Lister lists files in a directory tree. Not thread safe.
type Lister interface {
	// Scan advances the lister to the next entry.  It returns
	// false either when the scan stops because we have reached the end of the input
	// or else because there was error.  After Scan returns, the Err method returns
	// any error that occurred during scanning.
	Scan() bool

	// Err returns the first error that occurred while scanning.
	Err() error

	// Path returns the last path that was scanned. The path always starts with
	// the directory path given to the List method.
	//
	// REQUIRES: Last call to Scan returned true.
	Path() string

	// IsDir returns true if Path() refers to a directory.
	//
	// REQUIRES: Last call to Scan returned true.
	IsDir() bool

	// Info returns metadata of the entry that was scanned.
	//
	// REQUIRES: Last call to Scan returned true.
	Info() Info
}

type implementationFactory func() Implementation

var (
	mu                sync.RWMutex
	implFactories     = make(map[string]implementationFactory)
	impls             = make(map[string]Implementation)
	localImplInstance = NewLocalImplementation()
)

// RegisterImplementation arranges so that ParsePath(schema + "://anystring")
// will return (impl, "anystring", nil) in the future. Schema is a string such
// as "hdfs".
//
// implFactory is invoked exactly once, upon the first request to this
// scheme, so it may depend on state (such as parsed flags) that is set up
// after registration.
//
// REQUIRES: This function has not been called with the same schema before.
func RegisterImplementation(scheme string, implFactory func() Implementation) {
	if implFactory == nil {
		panic("empty impl")
	}
	mu.Lock()
	defer mu.Unlock()
	if scheme == "" {
		panic("empty scheme")
	}
	if _, ok := implFactories[scheme]; ok {
		panic(fmt.Sprintf("register %s: file scheme already registered", scheme))
	}
	implFactories[scheme] = implFactory
}

// FindImplementation returns an Implementation object registered for the given
// scheme.  It returns nil if the scheme is not registered.
func FindImplementation(scheme string) Implementation {
	if scheme == "" {
		return localImplInstance
	}
	mu.RLock()
	if impl, ok := impls[scheme]; ok {
		mu.RUnlock()
		return impl
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	implFactory, ok := implFactories[scheme]
	if !ok {
		return nil
	}
	// Someone may have created the implementation while we upgraded to the
	// write lock.
	impl, ok := impls[scheme]
	if !ok {
		impl = implFactory()
		impls[scheme] = impl
	}
	return impl
}

func findImpl(path string) (Implementation, error) {
	scheme, _, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	impl := FindImplementation(scheme)
	if impl == nil {
		return nil, errors.E(errors.NotSupported, fmt.Sprintf("parsepath %s: no implementation registered for scheme %s", path, scheme))
	}
	return impl, nil
}

// Open opens the given file readonly.  It is a shortcut for calling
// ParsePath(), then FindImplementation, then Implementation.Open.
//
// Open returns an error of kind errors.NotExist if the file at the
// provided path does not exist.
func Open(ctx context.Context, path string, opts ...Opts) (File, error) {
	impl, err := findImpl(path)
	if err != nil {
		return nil, err
	}
	return impl.Open(ctx, path, opts...)
}

// Create opens the given file writeonly. It is a shortcut for calling
// ParsePath(), then FindImplementation, then Implementation.Create.
func Create(ctx context.Context, path string, opts ...Opts) (File, error) {
	impl, err := findImpl(path)
	if err != nil {
		return nil, err
	}
	return impl.Create(ctx, path, opts...)
}

// Stat returns the give file's metadata. Is a shortcut for calling ParsePath(),
// then FindImplementation, then Implementation.Stat.
func Stat(ctx context.Context, path string, opts ...Opts) (Info, error) {
	impl, err := findImpl(path)
	if err != nil {
		return nil, err
	}
	return impl.Stat(ctx, path, opts...)
}

type errorLister struct{ err error }

func (e *errorLister) Scan() bool   { return false }
func (e *errorLister) Path() string { panic("errorLister.Path " + e.err.Error()) }
func (e *errorLister) Info() Info   { panic("errorLister.Info " + e.err.Error()) }
func (e *errorLister) IsDir() bool  { panic("errorLister.IsDir " + e.err.Error()) }
func (e *errorLister) Err() error   { return e.err }

// List lists the entries under "dir". See Implementation.List for the
// semantics of "recursive".
//
// Example: file.List(ctx, "hdfs://namenode:8020/user/alice", false)
func List(ctx context.Context, dir string, recursive bool) Lister {
	impl, err := findImpl(dir)
	if err != nil {
		return &errorLister{err: err}
	}
	return impl.List(ctx, dir, recursive)
}

// Remove is a shortcut for calling ParsePath(), then calling
// Implementation.Remove method.
func Remove(ctx context.Context, path string) error {
	impl, err := findImpl(path)
	if err != nil {
		return err
	}
	return impl.Remove(ctx, path)
}

// RemoveAll removes path and any children it contains. If the path does not
// exist, RemoveAll returns nil.
func RemoveAll(ctx context.Context, path string) error {
	impl, err := findImpl(path)
	if err != nil {
		return err
	}
	return impl.RemoveAll(ctx, path)
}

// Mkdir creates the directory at path along with any missing parents.
func Mkdir(ctx context.Context, path string) error {
	impl, err := findImpl(path)
	if err != nil {
		return err
	}
	return impl.Mkdir(ctx, path)
}

// Rename moves src to dst. Both paths must be handled by the same
// implementation; renames across file systems return an error of kind
// errors.NotSupported. Use CopyFile followed by Remove instead.
func Rename(ctx context.Context, src, dst string) error {
	srcScheme, _, err := ParsePath(src)
	if err != nil {
		return err
	}
	dstScheme, _, err := ParsePath(dst)
	if err != nil {
		return err
	}
	if srcScheme != dstScheme {
		return errors.E(errors.NotSupported, fmt.Sprintf("rename %s -> %s: cross-filesystem rename", src, dst))
	}
	impl, err := findImpl(src)
	if err != nil {
		return err
	}
	return impl.Rename(ctx, src, dst)
}

// Opts controls the file access requests, such as Open, Create and Stat.
// Implementations ignore the fields that do not apply to them.
type Opts struct {
	// Replication is the number of copies kept of each block of a file
	// written by Create. Zero means the file system default.
	Replication int

	// BlockSize is the block size of a file written by Create. Zero means
	// the file system default.
	BlockSize int64

	// Overwrite allows CopyFile to replace an existing destination file.
	Overwrite bool
}

// MergeOpts returns the single Opts in opts, or the zero Opts. It panics if
// more than one is given.
func MergeOpts(opts []Opts) (o Opts) {
	switch len(opts) {
	case 0:
	case 1:
		o = opts[0]
	default:
		panic(fmt.Sprintf("more than one options specified: %+v", opts))
	}
	return
}
