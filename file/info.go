// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file

import (
	"os"
	"time"
)

// Info represents file or directory metadata as reported by the file
// system. It is read-only.
type Info interface {
	// Name returns the last element of the path.
	Name() string
	// Size returns the length of the file in bytes. It is zero for directories.
	Size() int64
	// ModTime returns the modification time.
	ModTime() time.Time
	// Mode returns the permission bits, plus os.ModeDir for directories.
	Mode() os.FileMode
	// IsDir reports whether the entry is a directory.
	IsDir() bool
	// Owner and Group return the owning user and group, if known.
	Owner() string
	Group() string
	// Replication returns the number of copies the file system keeps of each
	// block. Local files report 1; directories report 0.
	Replication() int
	// BlockSize returns the size of the blocks a file is split into. Zero
	// means the file is not block-structured.
	BlockSize() int64
}
