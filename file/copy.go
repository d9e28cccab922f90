// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/grailbio/base/errors"
)

const (
	defaultBufferSize = 32 * 1024
)

// Copy is a context-aware version of io.Copy.
// Note that canceling the context doesn't undo the effects of a partial copy.
func Copy(ctx context.Context, dst io.Writer, src io.Reader) (written int64, err error) {
	return copyBuffer(ctx, dst, src, make([]byte, defaultBufferSize))
}

// CopyN is a context-aware version of io.CopyN. It copies n bytes, or until
// src is exhausted, whichever comes first. Unlike io.CopyN, reaching EOF
// before n bytes is not an error; the caller inspects "written".
func CopyN(ctx context.Context, dst io.Writer, src io.Reader, n int64) (written int64, err error) {
	if n <= 0 {
		return 0, nil
	}
	size := int64(defaultBufferSize)
	if n < size {
		size = n
	}
	return copyBuffer(ctx, dst, io.LimitReader(src, n), make([]byte, size))
}

func copyBuffer(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (written int64, err error) {
	var stop int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		for atomic.LoadInt32(&stop) == 0 {
			nr, er := src.Read(buf)
			if nr > 0 {
				nw, ew := dst.Write(buf[0:nr])
				if nw > 0 {
					atomic.AddInt64(&written, int64(nw))
				}
				if ew != nil {
					err = errors.E("file.Copy", ew)
					return
				}
				if nr != nw {
					err = errors.E("file.Copy", io.ErrShortWrite)
					return
				}
			}
			if er != nil {
				if er != io.EOF {
					err = errors.E("file.Copy", er)
				}
				return
			}
		}
	}()
	select {
	case <-ctx.Done():
		// Stop the copy goroutine and wait until it's done.
		atomic.StoreInt32(&stop, 1)
		<-done
		return atomic.LoadInt64(&written), ctx.Err()
	case <-done:
	}
	return written, err
}
