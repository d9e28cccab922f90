// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
)

// File defines operations on a file. Implementations must be thread safe.
type File interface {
	// String returns a diagnostic string.
	String() string

	// Name returns the path name given to file.Open or file.Create when this
	// object was created.
	Name() string

	// Stat returns file metadata.
	//
	// REQUIRES: Close has not been called
	Stat(ctx context.Context) (Info, error)

	// Reader creates an io.ReadSeeker object that operates on the file.  If
	// Reader() is called multiple times, they share the seek pointer.
	//
	// REQUIRES: Close has not been called
	Reader(ctx context.Context) io.ReadSeeker

	// Writer creates a writer that writes to the file. If Writer() is called
	// multiple times, they share the seek pointer.
	//
	// REQUIRES: Close has not been called
	Writer(ctx context.Context) io.Writer

	// Discard abandons a file opened by Create, removing any partial
	// contents. It is a no-op for files opened for reading. Exactly one of
	// Discard or Close should be called.
	Discard(ctx context.Context)

	// Close commits the contents of a written file, or releases the reader of
	// a file opened by Open. No other methods shall be called after Close.
	Closer
}

// Closer cleans up a resource.
type Closer interface {
	// Close tries to clean up the resource.
	Close(context.Context) error
}

// CloseAndReport closes c and reports any error to *err. It is meant to be
// deferred right after a successful Open or Create:
//
//	f, err := file.Open(ctx, path)
//	if err != nil {
//		return err
//	}
//	defer file.CloseAndReport(ctx, f, &err)
//
// If the caller already returns an error, the close error is chained to it.
func CloseAndReport(ctx context.Context, c Closer, err *error) {
	errors.CleanUpCtx(ctx, c.Close, err)
}

// NewError returns a new io.ReadSeeker and io.Writer that returns "err" on
// any operation.
func NewError(err error) io.ReadWriteSeeker { return &errorReaderWriter{err: err} }

type errorReaderWriter struct{ err error }

func (r *errorReaderWriter) Read([]byte) (int, error) {
	return 0, r.err
}

func (r *errorReaderWriter) Seek(int64, int) (int64, error) {
	return 0, r.err
}

func (r *errorReaderWriter) Write([]byte) (int, error) {
	return 0, r.err
}
