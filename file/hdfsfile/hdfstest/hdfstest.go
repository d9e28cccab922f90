// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package hdfstest provides an in-process stand-in for an HDFS namenode,
// backed by a local directory, for testing code that uses hdfsfile.
package hdfstest

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	pathpkg "path"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hdfskit/file/hdfsfile"
)

// RemoteError mimics an exception returned by the namenode. It implements
// hdfs.Error.
type RemoteError struct {
	Op   string
	Exc  string // Java class name, e.g., "org.apache.hadoop.ipc.StandbyException".
	Msg  string
	Path string
}

func (e *RemoteError) Method() string    { return e.Op }
func (e *RemoteError) Desc() string      { return e.Msg }
func (e *RemoteError) Exception() string { return e.Exc }
func (e *RemoteError) Message() string   { return e.Msg }
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Path, e.Exc, e.Msg)
}

// Exceptions commonly injected by tests.
const (
	StandbyException  = "org.apache.hadoop.ipc.StandbyException"
	SafeModeException = "org.apache.hadoop.hdfs.server.namenode.SafeModeException"
	NotEmptyException = "org.apache.hadoop.fs.PathIsNotEmptyDirectoryException"
)

type meta struct {
	replication int
	blockSize   int64
}

// Client implements hdfsfile.Client over the directory tree at Root. HDFS
// path "/a/b" is stored at Root/a/b.
type Client struct {
	Root string
	// BlockSize and Replication are reported for files created outside of
	// CreateFile. Files created by CreateFile report the values given to it.
	BlockSize   int64
	Replication int
	Owner       string
	Group       string
	// Err, if set, is called at the start of every operation with the
	// operation name ("open", "create", "stat", "readdir", "mkdir", "remove",
	// "removeall", "rename", "write", "close") and the HDFS path. A non-nil
	// result fails the operation.
	Err func(op, name string) error

	mu      sync.Mutex
	meta    map[string]meta
	calls   map[string]int
	handles int
	closed  bool
}

var _ hdfsfile.Client = (*Client)(nil)

// NewClient creates a fake namenode rooted at dir.
func NewClient(dir string) *Client {
	return &Client{
		Root:        dir,
		BlockSize:   hdfsfile.DefaultBlockSize,
		Replication: hdfsfile.DefaultReplication,
		Owner:       "hdfs",
		Group:       "supergroup",
		meta:        make(map[string]meta),
		calls:       make(map[string]int),
	}
}

// Calls returns how many times op has been invoked.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// OpenHandles returns the number of readers and writers that have not been
// closed.
func (c *Client) OpenHandles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles
}

func (c *Client) addHandles(n int) {
	c.mu.Lock()
	c.handles += n
	c.mu.Unlock()
}

func (c *Client) local(name string) string {
	return filepath.Join(c.Root, filepath.FromSlash(pathpkg.Clean("/"+name)))
}

func (c *Client) begin(op, name string) error {
	c.mu.Lock()
	c.calls[op]++
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return &os.PathError{Op: op, Path: name, Err: errors.New("client is closed")}
	}
	if c.Err != nil {
		return c.Err(op, name)
	}
	return nil
}

// pathError rewrites an error from the local file system the way the namenode
// client reports it.
func pathError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	cause := err
	switch e := err.(type) {
	case *os.PathError:
		cause = e.Err
	case *os.LinkError:
		cause = e.Err
	}
	switch {
	case cause == syscall.ENOTEMPTY:
		return &os.PathError{Op: op, Path: name, Err: &RemoteError{Op: op, Exc: NotEmptyException, Msg: "directory is not empty", Path: name}}
	case os.IsNotExist(cause):
		cause = os.ErrNotExist
	case os.IsExist(cause):
		cause = os.ErrExist
	case os.IsPermission(cause):
		cause = os.ErrPermission
	}
	return &os.PathError{Op: op, Path: name, Err: cause}
}

func (c *Client) fileInfo(name string, fi os.FileInfo) os.FileInfo {
	c.mu.Lock()
	m, ok := c.meta[pathpkg.Clean(name)]
	c.mu.Unlock()
	if !ok {
		m = meta{replication: c.Replication, blockSize: c.BlockSize}
	}
	base := fi.Name()
	if pathpkg.Clean(name) == "/" {
		base = ""
	}
	return &FileInfo{FileInfo: fi, name: base, owner: c.Owner, group: c.Group,
		status: &Status{Blocksize: uint64(m.blockSize), BlockReplication: uint32(m.replication)}}
}

// Open implements hdfsfile.Client.
func (c *Client) Open(name string) (hdfsfile.Reader, error) {
	if err := c.begin("open", name); err != nil {
		return nil, err
	}
	f, err := os.Open(c.local(name))
	if err != nil {
		return nil, pathError("open", name, err)
	}
	c.addHandles(1)
	return &reader{File: f, c: c, name: name}, nil
}

// CreateFile implements hdfsfile.Client.
func (c *Client) CreateFile(name string, replication int, blockSize int64, perm os.FileMode) (io.WriteCloser, error) {
	if err := c.begin("create", name); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(c.local(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return nil, pathError("create", name, err)
	}
	c.mu.Lock()
	c.meta[pathpkg.Clean(name)] = meta{replication: replication, blockSize: blockSize}
	c.handles++
	c.mu.Unlock()
	return &writer{c: c, f: f, name: name}, nil
}

// Stat implements hdfsfile.Client.
func (c *Client) Stat(name string) (os.FileInfo, error) {
	if err := c.begin("stat", name); err != nil {
		return nil, err
	}
	fi, err := os.Stat(c.local(name))
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return c.fileInfo(name, fi), nil
}

// ReadDir implements hdfsfile.Client. Entries are sorted by name.
func (c *Client) ReadDir(dirname string) ([]os.FileInfo, error) {
	if err := c.begin("readdir", dirname); err != nil {
		return nil, err
	}
	fis, err := ioutil.ReadDir(c.local(dirname))
	if err != nil {
		return nil, pathError("readdir", dirname, err)
	}
	sort.Slice(fis, func(i, j int) bool { return fis[i].Name() < fis[j].Name() })
	for i, fi := range fis {
		fis[i] = c.fileInfo(pathpkg.Join(dirname, fi.Name()), fi)
	}
	return fis, nil
}

// MkdirAll implements hdfsfile.Client.
func (c *Client) MkdirAll(dirname string, perm os.FileMode) error {
	if err := c.begin("mkdir", dirname); err != nil {
		return err
	}
	return pathError("mkdir", dirname, os.MkdirAll(c.local(dirname), perm))
}

// Remove implements hdfsfile.Client.
func (c *Client) Remove(name string) error {
	if err := c.begin("remove", name); err != nil {
		return err
	}
	if err := os.Remove(c.local(name)); err != nil {
		return pathError("remove", name, err)
	}
	c.mu.Lock()
	delete(c.meta, pathpkg.Clean(name))
	c.mu.Unlock()
	return nil
}

// RemoveAll implements hdfsfile.Client.
func (c *Client) RemoveAll(name string) error {
	if err := c.begin("removeall", name); err != nil {
		return err
	}
	return pathError("removeall", name, os.RemoveAll(c.local(name)))
}

// Rename implements hdfsfile.Client. An existing file at newpath is
// replaced.
func (c *Client) Rename(oldpath, newpath string) error {
	if err := c.begin("rename", oldpath); err != nil {
		return err
	}
	if err := os.Rename(c.local(oldpath), c.local(newpath)); err != nil {
		return pathError("rename", oldpath, err)
	}
	c.mu.Lock()
	if m, ok := c.meta[pathpkg.Clean(oldpath)]; ok {
		c.meta[pathpkg.Clean(newpath)] = m
		delete(c.meta, pathpkg.Clean(oldpath))
	}
	c.mu.Unlock()
	return nil
}

// Close implements hdfsfile.Client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type reader struct {
	*os.File
	c      *Client
	name   string
	closed bool
}

func (r *reader) Close() error {
	if err := r.c.begin("close", r.name); err != nil {
		return err
	}
	if r.closed {
		return nil
	}
	r.closed = true
	r.c.addHandles(-1)
	return r.File.Close()
}

// Checksum returns the MD5 of the file contents. A real namenode returns an
// MD5 of per-block CRCs instead; only equality matters to callers.
func (r *reader) Checksum() ([]byte, error) {
	fi, err := r.File.Stat()
	if err != nil {
		return nil, pathError("checksum", r.name, err)
	}
	h := md5.New()
	if _, err := io.Copy(h, io.NewSectionReader(r.File, 0, fi.Size())); err != nil {
		return nil, pathError("checksum", r.name, err)
	}
	return h.Sum(nil), nil
}

type writer struct {
	c      *Client
	f      *os.File
	name   string
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	if err := w.c.begin("write", w.name); err != nil {
		return 0, err
	}
	return w.f.Write(p)
}

func (w *writer) Close() error {
	if err := w.c.begin("close", w.name); err != nil {
		return err
	}
	if w.closed {
		return nil
	}
	w.closed = true
	w.c.addHandles(-1)
	return w.f.Close()
}

// FileInfo is the os.FileInfo returned by Client. Like *hdfs.FileInfo it
// reports the owner and group, and Sys returns the file status.
type FileInfo struct {
	os.FileInfo
	name   string
	owner  string
	group  string
	status *Status
}

func (fi *FileInfo) Name() string       { return fi.name }
func (fi *FileInfo) Owner() string      { return fi.owner }
func (fi *FileInfo) OwnerGroup() string { return fi.group }
func (fi *FileInfo) Sys() interface{}   { return fi.status }

// Status carries the block layout of a file.
type Status struct {
	Blocksize        uint64
	BlockReplication uint32
}

func (s *Status) GetBlocksize() uint64        { return s.Blocksize }
func (s *Status) GetBlockReplication() uint32 { return s.BlockReplication }

// Provider implements hdfsfile.ClientProvider. Every namenode is served by
// the same Client.
type Provider struct {
	Client *Client

	mu        sync.Mutex
	namenodes []string
}

var _ hdfsfile.ClientProvider = (*Provider)(nil)

// NewProvider creates a provider that hands out c.
func NewProvider(c *Client) *Provider {
	return &Provider{Client: c}
}

// Get implements hdfsfile.ClientProvider.
func (p *Provider) Get(ctx context.Context, namenode string) (hdfsfile.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.namenodes = append(p.namenodes, namenode)
	return p.Client, nil
}

// Namenodes returns the namenode of every Get call, in order.
func (p *Provider) Namenodes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.namenodes...)
}

// Close implements hdfsfile.ClientProvider.
func (p *Provider) Close() error { return p.Client.Close() }
