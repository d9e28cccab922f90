// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hdfsfile

import (
	"context"
	"fmt"
	"io"
	pathpkg "path"
	"sync"

	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hdfskit/file"
)

type accessMode int

const (
	readonly  accessMode = iota // file is opened by Open.
	writeonly                   // file is opened by Create.
)

// copyingSuffix marks a file that is still being written. Hadoop's own
// tools use the same suffix.
const copyingSuffix = "._COPYING_."

// hdfsFile implements file.File.
type hdfsFile struct {
	impl *hdfsImpl
	name string // "hdfs://..." path given to Open or Create.
	mode accessMode
	path string // absolute HDFS path.

	mu     sync.Mutex
	client Client
	info   *hdfsInfo
	closed bool

	// For readonly files.
	reader *reader

	// For writeonly files.
	tmpPath string
	writer  *writer
}

// Open implements file.Implementation interface.
func (impl *hdfsImpl) Open(ctx context.Context, url string, _ ...file.Opts) (file.File, error) {
	f := &hdfsFile{impl: impl, name: url, mode: readonly}
	err := impl.acquire(ctx, "open", url, func(c Client, path string) error {
		fi, err := c.Stat(path)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return errors.E(errors.Invalid, "is a directory")
		}
		r, err := c.Open(path)
		if err != nil {
			return err
		}
		f.client, f.path, f.info = c, path, newInfo(fi)
		f.reader = &reader{f: f, r: r, size: fi.Size()}
		return nil
	}, f.abandon)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create implements file.Implementation interface. The contents are written
// to a temporary file next to the destination, which is renamed into place
// by Close. Parent directories are created as needed.
func (impl *hdfsImpl) Create(ctx context.Context, url string, opts ...file.Opts) (file.File, error) {
	o := file.MergeOpts(opts)
	replication, blockSize := o.Replication, o.BlockSize
	if replication <= 0 {
		replication = impl.conf.Replication()
	}
	if blockSize <= 0 {
		blockSize = impl.conf.BlockSize()
	}
	f := &hdfsFile{impl: impl, name: url, mode: writeonly}
	err := impl.acquire(ctx, "create", url, func(c Client, path string) error {
		if path == "/" {
			return errors.E(errors.Invalid, "is a directory")
		}
		if fi, err := c.Stat(path); err == nil && fi.IsDir() {
			return errors.E(errors.Invalid, "is a directory")
		}
		if err := c.MkdirAll(pathpkg.Dir(path), dirPerm); err != nil {
			return err
		}
		tmpPath := path + copyingSuffix + uuid.New().String()
		w, err := c.CreateFile(tmpPath, replication, blockSize, filePerm)
		if err != nil {
			return err
		}
		f.client, f.path, f.tmpPath = c, path, tmpPath
		f.writer = &writer{f: f, w: w}
		return nil
	}, f.abandon)
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("hdfsfile: create %s via %s (replication %d, block size %d)", url, f.tmpPath, replication, blockSize)
	return f, nil
}

// String implements file.File.
func (f *hdfsFile) String() string { return f.name }

// Name implements file.File.
func (f *hdfsFile) Name() string { return f.name }

// Stat implements file.File. For a file opened by Create, it reports the
// bytes written so far.
func (f *hdfsFile) Stat(ctx context.Context) (file.Info, error) {
	if f.mode == readonly {
		return f.info, nil
	}
	var info *hdfsInfo
	err := f.impl.do(ctx, "stat", f.name, func(c Client, _ string) error {
		fi, err := c.Stat(f.tmpPath)
		if err != nil {
			return err
		}
		info = newInfo(fi)
		info.name = pathpkg.Base(f.path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Reader implements file.File.
func (f *hdfsFile) Reader(context.Context) io.ReadSeeker {
	if f.mode != readonly {
		return file.NewError(fmt.Errorf("reader %v: file is not opened in read mode", f.name))
	}
	return f.reader
}

// Writer implements file.File.
func (f *hdfsFile) Writer(context.Context) io.Writer {
	if f.mode != writeonly {
		return file.NewError(fmt.Errorf("writer %v: file is not opened in write mode", f.name))
	}
	return f.writer
}

// Close implements file.File. For a file opened by Create, it waits until
// the namenode has the last block replicated, then renames the temporary file
// over the destination.
func (f *hdfsFile) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.E(errors.Invalid, "hdfsfile.close", f.name, "file already closed")
	}
	f.closed = true
	if f.mode == readonly {
		if err := f.reader.r.Close(); err != nil {
			return annotate(err, nil, "hdfsfile.close", f.name)
		}
		return nil
	}
	err := f.writer.close(ctx)
	if err == nil {
		err = f.impl.do(ctx, "commit", f.name, func(c Client, path string) error {
			return c.Rename(f.tmpPath, path)
		})
	}
	if err != nil {
		f.removeTemp()
		return err
	}
	return nil
}

// Discard implements file.File.
func (f *hdfsFile) Discard(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != writeonly || f.closed {
		return
	}
	f.closed = true
	if err := f.writer.w.Close(); err != nil {
		log.Debug.Printf("discard %s: close: %v", f.name, err)
	}
	f.removeTemp()
}

// abandon releases the handle of a file whose Open or Create was cancelled
// after the namenode had granted it. A created file's temporary is removed.
func (f *hdfsFile) abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	log.Debug.Printf("hdfsfile: releasing %s after cancellation", f.name)
	if f.mode == readonly {
		if err := f.reader.r.Close(); err != nil {
			log.Error.Printf("hdfsfile: close %s: %v", f.name, err)
		}
		return
	}
	if err := f.writer.w.Close(); err != nil {
		log.Debug.Printf("hdfsfile: close %s: %v", f.tmpPath, err)
	}
	f.removeTemp()
}

func (f *hdfsFile) removeTemp() {
	if err := f.client.Remove(f.tmpPath); err != nil {
		log.Error.Printf("hdfsfile: remove %s: %v", f.tmpPath, err)
	}
}

// reader implements io.ReadSeeker over an HDFS file. Unlike the underlying
// client, it allows seeking past the end of the file; reads there return EOF.
type reader struct {
	f    *hdfsFile
	r    Reader
	size int64
	off  int64
}

func (r *reader) Read(p []byte) (int, error) {
	if r.off >= r.size {
		return 0, io.EOF
	}
	progress := metrics.Op("read").Start()
	n, err := r.r.Read(p)
	r.off += int64(n)
	progress.Bytes(n)
	if err != nil && err != io.EOF {
		err = annotate(err, nil, "hdfsfile.read", r.f.name)
		progress.Done(err)
		return n, err
	}
	progress.Done(nil)
	return n, err
}

func (r *reader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.off + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return r.off, errors.E(errors.Invalid, fmt.Sprintf("hdfsfile.seek %s: bad whence %d", r.f.name, whence))
	}
	if abs < 0 {
		return r.off, errors.E(errors.Invalid, fmt.Sprintf("hdfsfile.seek %s: negative offset %d", r.f.name, abs))
	}
	if abs <= r.size {
		if _, err := r.r.Seek(abs, io.SeekStart); err != nil {
			return r.off, annotate(err, nil, "hdfsfile.seek", r.f.name)
		}
	}
	r.off = abs
	return abs, nil
}

type writer struct {
	f *hdfsFile
	w io.WriteCloser
}

func (w *writer) Write(p []byte) (int, error) {
	progress := metrics.Op("write").Start()
	n, err := w.w.Write(p)
	progress.Bytes(n)
	if err != nil {
		err = annotate(err, nil, "hdfsfile.write", w.f.name)
	}
	progress.Done(err)
	return n, err
}

// close finishes the temporary file. The namenode refuses to complete a file
// whose last block is still being replicated; closing again later succeeds.
func (w *writer) close(ctx context.Context) (err error) {
	progress := metrics.Op("close").Start()
	defer func() { progress.Done(err) }()
	r := newRetrier(progress)
	for {
		err = w.w.Close()
		if r.shouldRetry(ctx, err, w.f.name) {
			continue
		}
		if err != nil {
			return annotate(err, r, "hdfsfile.close", w.f.name)
		}
		return nil
	}
}
