// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hdfsfile_test

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/colinmarc/hdfs/v2"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/retry"
	"github.com/grailbio/hdfskit/file"
	"github.com/grailbio/hdfskit/file/hdfsfile"
	"github.com/grailbio/hdfskit/file/hdfsfile/hdfstest"
	filetestutil "github.com/grailbio/hdfskit/file/internal/testutil"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const namenode = "nn:8020"

func newTestImpl(t *testing.T) (file.Implementation, *hdfstest.Provider, func()) {
	dir, cleanup := testutil.TempDir(t, "", "hdfsfile")
	provider := hdfstest.NewProvider(hdfstest.NewClient(dir))
	conf := hdfsfile.NewConfig()
	conf.Set(hdfsfile.KeyDefaultFS, "hdfs://"+namenode)
	return hdfsfile.NewImplementation(provider, hdfsfile.Options{Config: conf}), provider, cleanup
}

func fastRetries() func() {
	old := hdfsfile.BackoffPolicy
	hdfsfile.BackoffPolicy = retry.MaxRetries(retry.Backoff(time.Millisecond, 2*time.Millisecond, 1.5), 5)
	return func() { hdfsfile.BackoffPolicy = old }
}

func TestAll(t *testing.T) {
	impl, _, cleanup := newTestImpl(t)
	defer cleanup()
	filetestutil.TestAll(context.Background(), t, impl, "hdfs://"+namenode+"/test")
}

func TestParseURL(t *testing.T) {
	for _, test := range []struct {
		url, namenode, path string
	}{
		{"hdfs://nn:8020/a/b", "nn:8020", "/a/b"},
		{"hdfs://nn:8020", "nn:8020", "/"},
		{"hdfs://nn/a//b/", "nn", "/a/b"},
		{"hdfs:///user/alice", "", "/user/alice"},
		{"hdfs://ns1/", "ns1", "/"},
	} {
		scheme, nn, path, err := hdfsfile.ParseURL(test.url)
		assert.NoError(t, err, test.url)
		expect.EQ(t, scheme, "hdfs", test.url)
		expect.EQ(t, nn, test.namenode, test.url)
		expect.EQ(t, path, test.path, test.url)
	}
	_, _, _, err := hdfsfile.ParseURL("/local/path")
	assert.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
}

func TestDefaultFS(t *testing.T) {
	ctx := context.Background()
	impl, provider, cleanup := newTestImpl(t)
	defer cleanup()

	f, err := impl.Create(ctx, "hdfs:///user/alice/x")
	assert.NoError(t, err)
	assert.NoError(t, f.Close(ctx))
	info, err := impl.Stat(ctx, "hdfs://"+namenode+"/user/alice/x")
	assert.NoError(t, err)
	expect.EQ(t, info.Name(), "x")
	for _, nn := range provider.Namenodes() {
		expect.EQ(t, nn, namenode)
	}

	noDefault := hdfsfile.NewImplementation(provider, hdfsfile.Options{})
	_, err = noDefault.Stat(ctx, "hdfs:///user/alice/x")
	assert.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
	assert.Regexp(t, err.Error(), hdfsfile.KeyDefaultFS)

	conf := hdfsfile.NewConfig()
	conf.Set(hdfsfile.KeyDefaultFS, "file:///tmp")
	badDefault := hdfsfile.NewImplementation(provider, hdfsfile.Options{Config: conf})
	_, err = badDefault.Stat(ctx, "hdfs:///user/alice/x")
	assert.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
}

func TestCreateOptions(t *testing.T) {
	ctx := context.Background()
	impl, _, cleanup := newTestImpl(t)
	defer cleanup()

	path := "hdfs://" + namenode + "/opts/a.txt"
	f, err := impl.Create(ctx, path, file.Opts{Replication: 2, BlockSize: 4})
	assert.NoError(t, err)
	_, err = f.Writer(ctx).Write([]byte("0123456789"))
	assert.NoError(t, err)

	// The file is not visible until Close, but its progress is.
	info, err := f.Stat(ctx)
	assert.NoError(t, err)
	expect.EQ(t, info.Name(), "a.txt")
	assert.NoError(t, f.Close(ctx))

	info, err = impl.Stat(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, info.Size(), int64(10))
	expect.EQ(t, info.Replication(), 2)
	expect.EQ(t, info.BlockSize(), int64(4))
	expect.EQ(t, info.Owner(), "hdfs")
	expect.EQ(t, info.Group(), "supergroup")

	blocks := file.Blocks(info)
	assert.EQ(t, len(blocks), 3)
	expect.EQ(t, blocks[2], file.Block{Index: 2, Offset: 8, Length: 2})

	// Configuration defaults apply when no options are given.
	path = "hdfs://" + namenode + "/opts/b.txt"
	f, err = impl.Create(ctx, path)
	assert.NoError(t, err)
	assert.NoError(t, f.Close(ctx))
	info, err = impl.Stat(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, info.Replication(), hdfsfile.DefaultReplication)
	expect.EQ(t, info.BlockSize(), hdfsfile.DefaultBlockSize)
}

func TestCloseTwice(t *testing.T) {
	ctx := context.Background()
	impl, _, cleanup := newTestImpl(t)
	defer cleanup()

	f, err := impl.Create(ctx, "hdfs://"+namenode+"/twice")
	assert.NoError(t, err)
	assert.NoError(t, f.Close(ctx))
	assert.True(t, errors.Is(errors.Invalid, f.Close(ctx)))
}

func TestOpenDirectory(t *testing.T) {
	ctx := context.Background()
	impl, _, cleanup := newTestImpl(t)
	defer cleanup()

	assert.NoError(t, impl.Mkdir(ctx, "hdfs://"+namenode+"/d"))
	_, err := impl.Open(ctx, "hdfs://"+namenode+"/d")
	assert.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
	_, err = impl.Create(ctx, "hdfs://"+namenode+"/d")
	assert.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
	_, err = impl.Create(ctx, "hdfs://"+namenode+"/")
	assert.True(t, errors.Is(errors.Invalid, err), "err: %v", err)
}

func TestRemoveAllRoot(t *testing.T) {
	impl, _, cleanup := newTestImpl(t)
	defer cleanup()
	err := impl.RemoveAll(context.Background(), "hdfs://"+namenode+"/")
	assert.True(t, errors.Is(errors.NotAllowed, err), "err: %v", err)
}

func TestRenameAcrossNamenodes(t *testing.T) {
	impl, _, cleanup := newTestImpl(t)
	defer cleanup()
	err := impl.Rename(context.Background(), "hdfs://nn1/a", "hdfs://nn2/a")
	assert.True(t, errors.Is(errors.NotSupported, err), "err: %v", err)
}

func TestRenameReplaces(t *testing.T) {
	ctx := context.Background()
	impl, _, cleanup := newTestImpl(t)
	defer cleanup()

	src, dst := "hdfs://"+namenode+"/r/src", "hdfs://"+namenode+"/r/dst"
	for path, data := range map[string]string{src: "new", dst: "old"} {
		f, err := impl.Create(ctx, path)
		assert.NoError(t, err)
		_, err = f.Writer(ctx).Write([]byte(data))
		assert.NoError(t, err)
		assert.NoError(t, f.Close(ctx))
	}
	assert.NoError(t, impl.Rename(ctx, src, dst))
	f, err := impl.Open(ctx, dst)
	assert.NoError(t, err)
	data, err := ioutil.ReadAll(f.Reader(ctx))
	assert.NoError(t, err)
	assert.NoError(t, f.Close(ctx))
	expect.EQ(t, string(data), "new")
}

func TestRetryStandby(t *testing.T) {
	defer fastRetries()()
	ctx := context.Background()
	impl, provider, cleanup := newTestImpl(t)
	defer cleanup()
	assert.NoError(t, impl.Mkdir(ctx, "hdfs://"+namenode+"/retry"))

	var (
		mu       sync.Mutex
		failures = 2
	)
	provider.Client.Err = func(op, name string) error {
		mu.Lock()
		defer mu.Unlock()
		if op != "stat" || failures == 0 {
			return nil
		}
		failures--
		return &os.PathError{Op: op, Path: name, Err: &hdfstest.RemoteError{
			Op: op, Exc: hdfstest.StandbyException, Msg: "operation category READ is not supported in state standby", Path: name}}
	}
	before := provider.Client.Calls("stat")
	info, err := impl.Stat(ctx, "hdfs://"+namenode+"/retry")
	assert.NoError(t, err)
	assert.True(t, info.IsDir())
	expect.EQ(t, provider.Client.Calls("stat")-before, 3)
}

func TestRetryGivesUp(t *testing.T) {
	defer fastRetries()()
	impl, provider, cleanup := newTestImpl(t)
	defer cleanup()

	provider.Client.Err = func(op, name string) error {
		return &os.PathError{Op: op, Path: name, Err: &hdfstest.RemoteError{
			Op: op, Exc: hdfstest.SafeModeException, Msg: "name node is in safe mode", Path: name}}
	}
	_, err := impl.Stat(context.Background(), "hdfs://"+namenode+"/x")
	assert.True(t, errors.Is(errors.Unavailable, err), "err: %v", err)
	assert.Regexp(t, err.Error(), "retries=")
	n := provider.Client.Calls("stat")
	expect.True(t, n > 1 && n <= 6, "stat calls: %d", n)
}

func TestNoRetryOnPermanentError(t *testing.T) {
	defer fastRetries()()
	impl, provider, cleanup := newTestImpl(t)
	defer cleanup()

	provider.Client.Err = func(op, name string) error {
		return &os.PathError{Op: op, Path: name, Err: &hdfstest.RemoteError{
			Op: op, Exc: "org.apache.hadoop.security.AccessControlException", Msg: "permission denied", Path: name}}
	}
	_, err := impl.Stat(context.Background(), "hdfs://"+namenode+"/x")
	assert.True(t, errors.Is(errors.NotAllowed, err), "err: %v", err)
	expect.EQ(t, provider.Client.Calls("stat"), 1)
}

func TestCloseWaitsForReplication(t *testing.T) {
	defer fastRetries()()
	ctx := context.Background()
	impl, provider, cleanup := newTestImpl(t)
	defer cleanup()

	var (
		mu       sync.Mutex
		failures = 2
	)
	provider.Client.Err = func(op, name string) error {
		mu.Lock()
		defer mu.Unlock()
		if op != "close" || failures == 0 {
			return nil
		}
		failures--
		return hdfs.ErrReplicating
	}
	path := "hdfs://" + namenode + "/replicating.txt"
	f, err := impl.Create(ctx, path)
	assert.NoError(t, err)
	_, err = f.Writer(ctx).Write([]byte("data"))
	assert.NoError(t, err)
	assert.NoError(t, f.Close(ctx))
	expect.EQ(t, provider.Client.Calls("close"), 3)

	info, err := impl.Stat(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, info.Size(), int64(4))
}

func TestCloseFailureRemovesTemp(t *testing.T) {
	defer fastRetries()()
	ctx := context.Background()
	impl, provider, cleanup := newTestImpl(t)
	defer cleanup()

	dir := "hdfs://" + namenode + "/failclose"
	f, err := impl.Create(ctx, dir+"/a.txt")
	assert.NoError(t, err)
	provider.Client.Err = func(op, name string) error {
		if op == "rename" {
			return &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
		}
		return nil
	}
	err = f.Close(ctx)
	assert.True(t, errors.Is(errors.NotAllowed, err), "err: %v", err)
	provider.Client.Err = nil

	l := impl.List(ctx, dir, true)
	for l.Scan() {
		t.Errorf("close left %s behind", l.Path())
	}
	assert.NoError(t, l.Err())
}

func TestCancel(t *testing.T) {
	impl, provider, cleanup := newTestImpl(t)
	defer cleanup()

	release := make(chan struct{})
	provider.Client.Err = func(op, name string) error {
		<-release
		return nil
	}
	defer close(release)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := impl.Stat(ctx, "hdfs://"+namenode+"/slow")
	assert.True(t, errors.Is(errors.Canceled, err), "err: %v", err)
}

// cancelDuring makes op block in the namenode until the returned release
// function is called, and returns a context that is cancelled while op is
// blocked.
func cancelDuring(client *hdfstest.Client, op string) (context.Context, func()) {
	blocked := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	client.Err = func(o, name string) error {
		if o == op {
			once.Do(func() { close(blocked) })
			<-unblock
		}
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-blocked
		cancel()
	}()
	return ctx, func() { close(unblock) }
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	for deadline := time.Now().Add(5 * time.Second); !cond(); time.Sleep(time.Millisecond) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func TestCancelCreate(t *testing.T) {
	impl, provider, cleanup := newTestImpl(t)
	defer cleanup()

	ctx, release := cancelDuring(provider.Client, "create")
	_, err := impl.Create(ctx, "hdfs://"+namenode+"/cancel/out.txt")
	assert.True(t, errors.Is(errors.Canceled, err), "err: %v", err)
	release()

	dir := filepath.Join(provider.Client.Root, "cancel")
	waitFor(t, "the abandoned writer to be closed", func() bool { return provider.Client.OpenHandles() == 0 })
	waitFor(t, "the temporary file to be removed", func() bool {
		names, err := filepath.Glob(filepath.Join(dir, "out.txt*"))
		assert.NoError(t, err)
		return len(names) == 0
	})
}

func TestCancelOpen(t *testing.T) {
	impl, provider, cleanup := newTestImpl(t)
	defer cleanup()

	path := "hdfs://" + namenode + "/cancel/in.txt"
	f, err := impl.Create(context.Background(), path)
	assert.NoError(t, err)
	_, err = f.Writer(context.Background()).Write([]byte("data"))
	assert.NoError(t, err)
	assert.NoError(t, f.Close(context.Background()))
	assert.EQ(t, provider.Client.OpenHandles(), 0)

	ctx, release := cancelDuring(provider.Client, "open")
	_, err = impl.Open(ctx, path)
	assert.True(t, errors.Is(errors.Canceled, err), "err: %v", err)
	release()
	waitFor(t, "the abandoned reader to be closed", func() bool { return provider.Client.OpenHandles() == 0 })
}

func TestReadBlock(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "hdfsfile")
	defer cleanup()

	const contents = "0123456789abcdefghij"
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0755))
	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, "data", "blocks.txt"), []byte(contents), 0644))

	client := hdfstest.NewClient(dir)
	client.BlockSize = 8
	impl := hdfsfile.NewImplementation(hdfstest.NewProvider(client), hdfsfile.Options{})
	path := "hdfs://" + namenode + "/data/blocks.txt"

	info, err := impl.Stat(ctx, path)
	assert.NoError(t, err)
	blocks := file.Blocks(info)
	assert.EQ(t, blocks, []file.Block{
		{Index: 0, Offset: 0, Length: 8},
		{Index: 1, Offset: 8, Length: 8},
		{Index: 2, Offset: 16, Length: 4},
	})

	f, err := impl.Open(ctx, path)
	assert.NoError(t, err)
	defer func() { assert.NoError(t, f.Close(ctx)) }()
	r := f.Reader(ctx)
	for _, b := range blocks {
		_, err := r.Seek(b.Offset, io.SeekStart)
		assert.NoError(t, err)
		var buf bytes.Buffer
		n, err := file.ReadChunks(ctx, r, &buf, 3, 10)
		assert.NoError(t, err)
		// Reading continues past the end of the block into the next one.
		expect.EQ(t, n, int64(len(contents))-b.Offset)
		expect.EQ(t, buf.String(), contents[b.Offset:])
	}
}

func TestChecksum(t *testing.T) {
	ctx := context.Background()
	impl, _, cleanup := newTestImpl(t)
	defer cleanup()

	write := func(path, data string) {
		f, err := impl.Create(ctx, path)
		assert.NoError(t, err)
		_, err = f.Writer(ctx).Write([]byte(data))
		assert.NoError(t, err)
		assert.NoError(t, f.Close(ctx))
	}
	sum := func(path string) []byte {
		f, err := impl.Open(ctx, path)
		assert.NoError(t, err)
		defer func() { assert.NoError(t, f.Close(ctx)) }()
		s, err := hdfsfile.Checksum(ctx, f)
		assert.NoError(t, err)
		return s
	}
	dir := "hdfs://" + namenode + "/sum"
	write(dir+"/a", "same")
	write(dir+"/b", "same")
	write(dir+"/c", "different")
	expect.EQ(t, sum(dir+"/a"), sum(dir+"/b"))
	expect.True(t, !bytes.Equal(sum(dir+"/a"), sum(dir+"/c")))

	f, err := impl.Create(ctx, dir+"/d")
	assert.NoError(t, err)
	_, err = hdfsfile.Checksum(ctx, f)
	assert.True(t, errors.Is(errors.NotSupported, err), "err: %v", err)
	f.Discard(ctx)
}
