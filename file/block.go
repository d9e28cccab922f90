// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
)

// Block is a contiguous byte range of a file as stored by a block-structured
// file system. All blocks except the last one have the file's block size.
type Block struct {
	Index  int
	Offset int64
	Length int64
}

// End returns the offset just past the block.
func (b Block) End() int64 { return b.Offset + b.Length }

func (b Block) String() string {
	return fmt.Sprintf("block %d [%d,%d)", b.Index, b.Offset, b.End())
}

// Blocks splits a file into blocks using info's size and block size. A file
// whose block size is zero (for example, a local file) is one block. Empty
// files and directories have no blocks.
func Blocks(info Info) []Block {
	size, bs := info.Size(), info.BlockSize()
	if info.IsDir() || size <= 0 {
		return nil
	}
	if bs <= 0 {
		return []Block{{Index: 0, Offset: 0, Length: size}}
	}
	blocks := make([]Block, 0, (size+bs-1)/bs)
	for off := int64(0); off < size; off += bs {
		n := bs
		if off+n > size {
			n = size - off
		}
		blocks = append(blocks, Block{Index: len(blocks), Offset: off, Length: n})
	}
	return blocks
}

// NumReadBlocks returns how many blocks ReadBlock accepts for info: the
// number of stored blocks, except that an empty regular file reads as one
// empty block.
func NumReadBlocks(info Info) int {
	if n := len(Blocks(info)); n > 0 || info.IsDir() {
		return n
	}
	return 1
}

// BlockAt returns the index'th block of info as read by ReadBlock. Block 0
// of an empty regular file is empty. It returns an error of kind
// errors.Invalid if there is no such block.
func BlockAt(info Info, index int) (Block, error) {
	if index < 0 || index >= NumReadBlocks(info) {
		return Block{}, errors.E(errors.Invalid, fmt.Sprintf("block %d out of range; file has %d blocks", index, NumReadBlocks(info)))
	}
	if blocks := Blocks(info); len(blocks) > 0 {
		return blocks[index], nil
	}
	return Block{}, nil
}

// ReadChunks copies up to count chunks of chunkSize bytes from r to w. A
// block-sized prefix of a file can be read this way without seeking. Short
// reads from r are retried until a chunk is full, and ReadChunks stops early
// without error when r reaches EOF. It returns the number of bytes copied.
func ReadChunks(ctx context.Context, r io.Reader, w io.Writer, chunkSize, count int) (int64, error) {
	if chunkSize <= 0 || count < 0 {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("readchunks: invalid chunk size %d or count %d", chunkSize, count))
	}
	var (
		buf     = make([]byte, chunkSize)
		written int64
	)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, errors.E("readchunks", werr)
			}
			written += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return written, errors.E("readchunks", err)
		}
	}
	return written, nil
}

// ReadBlock copies the index'th block of the file at path to w. The block
// boundaries come from the file's Info; see BlockAt. It returns an error of
// kind errors.Invalid if the file has no such block.
func ReadBlock(ctx context.Context, path string, index int, w io.Writer) (int64, error) {
	info, err := Stat(ctx, path)
	if err != nil {
		return 0, err
	}
	b, err := BlockAt(info, index)
	if err != nil {
		return 0, errors.E(err, "readblock", path)
	}
	return ReadRange(ctx, path, b.Offset, b.Length, w)
}

// ReadRange seeks to off in the file at path and copies n bytes to w, or
// the rest of the file if n is negative. Fewer than n bytes are copied if
// the file ends first. Offsets beyond the end of the file return an error of
// kind errors.Invalid.
func ReadRange(ctx context.Context, path string, off, n int64, w io.Writer) (written int64, err error) {
	f, err := Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer CloseAndReport(ctx, f, &err)
	info, err := f.Stat(ctx)
	if err != nil {
		return 0, err
	}
	if off < 0 || off > info.Size() {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("readrange %s: offset %d out of range [0,%d]", path, off, info.Size()))
	}
	r := f.Reader(ctx)
	if _, err = r.Seek(off, io.SeekStart); err != nil {
		return 0, errors.E(err, "readrange", path)
	}
	if n < 0 {
		return Copy(ctx, w, r)
	}
	return CopyN(ctx, w, r, n)
}
