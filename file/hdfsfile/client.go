// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hdfsfile

import (
	"io"
	"os"

	"github.com/colinmarc/hdfs/v2"
)

// Client is the subset of the namenode client API used by this package.
// Paths are absolute HDFS paths without the "hdfs://namenode" prefix. The
// errors follow *hdfs.Client: *os.PathError values whose Err is os.ErrNotExist,
// os.ErrPermission, os.ErrExist, or an hdfs.Error for other remote exceptions.
type Client interface {
	Open(name string) (Reader, error)
	// CreateFile creates a new file. It fails if name already exists.
	CreateFile(name string, replication int, blockSize int64, perm os.FileMode) (io.WriteCloser, error)
	Stat(name string) (os.FileInfo, error)
	ReadDir(dirname string) ([]os.FileInfo, error)
	MkdirAll(dirname string, perm os.FileMode) error
	Remove(name string) error
	RemoveAll(name string) error
	// Rename replaces newpath if it is an existing file.
	Rename(oldpath, newpath string) error
	Close() error
}

// Reader reads one file. It is implemented by *hdfs.FileReader.
type Reader interface {
	io.ReadSeeker
	io.ReaderAt
	io.Closer
	// Checksum returns the HDFS checksum of the whole file.
	Checksum() ([]byte, error)
}

type nativeClient struct{ c *hdfs.Client }

// NewClient connects to a namenode.
func NewClient(opts hdfs.ClientOptions) (Client, error) {
	c, err := hdfs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return nativeClient{c}, nil
}

func (n nativeClient) Open(name string) (Reader, error) {
	r, err := n.c.Open(name)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (n nativeClient) CreateFile(name string, replication int, blockSize int64, perm os.FileMode) (io.WriteCloser, error) {
	w, err := n.c.CreateFile(name, replication, blockSize, perm)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (n nativeClient) Stat(name string) (os.FileInfo, error)         { return n.c.Stat(name) }
func (n nativeClient) ReadDir(dirname string) ([]os.FileInfo, error) { return n.c.ReadDir(dirname) }
func (n nativeClient) MkdirAll(dirname string, perm os.FileMode) error {
	return n.c.MkdirAll(dirname, perm)
}
func (n nativeClient) Remove(name string) error             { return n.c.Remove(name) }
func (n nativeClient) RemoveAll(name string) error          { return n.c.RemoveAll(name) }
func (n nativeClient) Rename(oldpath, newpath string) error { return n.c.Rename(oldpath, newpath) }
func (n nativeClient) Close() error                         { return n.c.Close() }
