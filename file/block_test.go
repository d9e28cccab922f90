// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"testing/iotest"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hdfskit/file"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
)

type fakeInfo struct {
	size, blockSize int64
	dir             bool
}

func (i fakeInfo) Name() string       { return "fake" }
func (i fakeInfo) Size() int64        { return i.size }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) Mode() os.FileMode  { return 0644 }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Owner() string      { return "" }
func (i fakeInfo) Group() string      { return "" }
func (i fakeInfo) Replication() int   { return 3 }
func (i fakeInfo) BlockSize() int64   { return i.blockSize }

func TestBlocks(t *testing.T) {
	assert.EQ(t, []file.Block{
		{Index: 0, Offset: 0, Length: 128},
		{Index: 1, Offset: 128, Length: 128},
		{Index: 2, Offset: 256, Length: 44},
	}, file.Blocks(fakeInfo{size: 300, blockSize: 128}))
	assert.EQ(t, []file.Block{
		{Index: 0, Offset: 0, Length: 256},
	}, file.Blocks(fakeInfo{size: 256, blockSize: 256}))
	assert.EQ(t, []file.Block{
		{Index: 0, Offset: 0, Length: 300},
	}, file.Blocks(fakeInfo{size: 300}))
	assert.EQ(t, 0, len(file.Blocks(fakeInfo{size: 0, blockSize: 128})))
	assert.EQ(t, 0, len(file.Blocks(fakeInfo{dir: true, blockSize: 128})))

	b := file.Block{Index: 1, Offset: 128, Length: 128}
	assert.EQ(t, int64(256), b.End())
	assert.EQ(t, "block 1 [128,256)", b.String())
}

func TestBlockAt(t *testing.T) {
	info := fakeInfo{size: 300, blockSize: 128}
	assert.EQ(t, 3, file.NumReadBlocks(info))
	b, err := file.BlockAt(info, 2)
	assert.NoError(t, err)
	assert.EQ(t, file.Block{Index: 2, Offset: 256, Length: 44}, b)
	for _, i := range []int{-1, 3} {
		_, err = file.BlockAt(info, i)
		assert.True(t, errors.Is(errors.Invalid, err), "block %d: %v", i, err)
	}

	// An empty file has no stored blocks but reads as one empty block.
	empty := fakeInfo{size: 0, blockSize: 128}
	assert.EQ(t, 1, file.NumReadBlocks(empty))
	b, err = file.BlockAt(empty, 0)
	assert.NoError(t, err)
	assert.EQ(t, file.Block{}, b)
	_, err = file.BlockAt(empty, 1)
	assert.True(t, errors.Is(errors.Invalid, err), "err: %v", err)

	dir := fakeInfo{dir: true, blockSize: 128}
	assert.EQ(t, 0, file.NumReadBlocks(dir))
	_, err = file.BlockAt(dir, 0)
	assert.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
}

func TestReadChunks(t *testing.T) {
	ctx := context.Background()
	data := bytes.Repeat([]byte("abcdefgh"), 100)

	var w bytes.Buffer
	n, err := file.ReadChunks(ctx, bytes.NewReader(data), &w, 64, 3)
	assert.NoError(t, err)
	assert.EQ(t, int64(192), n)
	assert.EQ(t, data[:192], w.Bytes())

	// Short reads still fill whole chunks.
	w.Reset()
	n, err = file.ReadChunks(ctx, iotest.OneByteReader(bytes.NewReader(data)), &w, 64, 2)
	assert.NoError(t, err)
	assert.EQ(t, int64(128), n)
	assert.EQ(t, data[:128], w.Bytes())

	// EOF before the requested count ends the read without error.
	w.Reset()
	n, err = file.ReadChunks(ctx, bytes.NewReader(data[:100]), &w, 64, 10)
	assert.NoError(t, err)
	assert.EQ(t, int64(100), n)

	_, err = file.ReadChunks(ctx, bytes.NewReader(data), &w, 0, 10)
	assert.True(t, errors.Is(errors.Invalid, err))

	_, err = file.ReadChunks(ctx, iotest.ErrReader(io.ErrClosedPipe), &w, 64, 1)
	assert.Regexp(t, err.Error(), "closed pipe")

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = file.ReadChunks(cctx, bytes.NewReader(data), &w, 64, 1)
	assert.EQ(t, context.Canceled, err)
}

func TestReadRange(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := file.Join(tmp, "range.txt")
	const data = "A purple fox jumped over a blue cat"
	assert.NoError(t, file.WriteFile(ctx, path, []byte(data)))

	var w bytes.Buffer
	n, err := file.ReadRange(ctx, path, 2, 6, &w)
	assert.NoError(t, err)
	assert.EQ(t, int64(6), n)
	assert.EQ(t, "purple", w.String())

	w.Reset()
	n, err = file.ReadRange(ctx, path, int64(len(data)-3), 100, &w)
	assert.NoError(t, err)
	assert.EQ(t, int64(3), n)
	assert.EQ(t, "cat", w.String())

	w.Reset()
	_, err = file.ReadRange(ctx, path, 9, -1, &w)
	assert.NoError(t, err)
	assert.EQ(t, data[9:], w.String())

	_, err = file.ReadRange(ctx, path, int64(len(data)+1), 1, &w)
	assert.True(t, errors.Is(errors.Invalid, err), "readrange: %v", err)
	_, err = file.ReadRange(ctx, path, -1, 1, &w)
	assert.True(t, errors.Is(errors.Invalid, err), "readrange: %v", err)

	// A local file is a single block.
	w.Reset()
	_, err = file.ReadBlock(ctx, path, 0, &w)
	assert.NoError(t, err)
	assert.EQ(t, data, w.String())
	_, err = file.ReadBlock(ctx, path, 1, &w)
	assert.True(t, errors.Is(errors.Invalid, err), "readblock: %v", err)

	empty := file.Join(tmp, "empty.txt")
	assert.NoError(t, file.WriteFile(ctx, empty, nil))
	w.Reset()
	n, err = file.ReadBlock(ctx, empty, 0, &w)
	assert.NoError(t, err)
	assert.EQ(t, int64(0), n)
	_, err = file.ReadBlock(ctx, empty, 1, &w)
	assert.True(t, errors.Is(errors.Invalid, err), "readblock: %v", err)
}
