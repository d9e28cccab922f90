// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/hdfskit/file"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	assert2 "github.com/stretchr/testify/assert"
)

type errFile struct {
	err error
}

func (f *errFile) String() string { return f.err.Error() }

func (f *errFile) Open(ctx context.Context, path string, opts ...file.Opts) (file.File, error) {
	return nil, f.err
}

func (f *errFile) Create(ctx context.Context, path string, opts ...file.Opts) (file.File, error) {
	return nil, f.err
}

func (f *errFile) List(ctx context.Context, dir string, recursive bool) file.Lister {
	return nil
}

func (f *errFile) Stat(ctx context.Context, path string, opts ...file.Opts) (file.Info, error) {
	return nil, f.err
}

func (f *errFile) Remove(ctx context.Context, path string) error    { return f.err }
func (f *errFile) RemoveAll(ctx context.Context, path string) error { return f.err }
func (f *errFile) Mkdir(ctx context.Context, path string) error     { return f.err }

func (f *errFile) Rename(ctx context.Context, src, dst string) error {
	return f.err
}

func (f *errFile) Close(ctx context.Context) error {
	return f.err
}

func TestRegistration(t *testing.T) {
	testImpl := &errFile{errors.New("test")}
	file.RegisterImplementation("foo", func() file.Implementation { return testImpl })
	assert.True(t, file.FindImplementation("") != nil)
	assert.True(t, file.FindImplementation("foo") == testImpl)
	assert.True(t, file.FindImplementation("foo2") == nil)

	ctx := context.Background()
	_, err := file.Open(ctx, "foo2://bar")
	assert.True(t, gerrors.Is(gerrors.NotSupported, err), "open: %v", err)
	_, err = file.Stat(ctx, "foo://bar")
	assert.EQ(t, "test", err.Error())
}

func TestRenameAcrossSchemes(t *testing.T) {
	err := file.Rename(context.Background(), "/tmp/a.txt", "foo://a.txt")
	assert.True(t, gerrors.Is(gerrors.NotSupported, err), "rename: %v", err)
}

func doReadFile(ctx context.Context, path string) string {
	got, err := file.ReadFile(ctx, path)
	if err != nil {
		return err.Error()
	}
	return string(got)
}

func TestReadWriteFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	ctx := context.Background()
	path := file.Join(tempDir, "test.txt")
	data := "Hello, olleh"
	assert.NoError(t, file.WriteFile(ctx, path, []byte(data)))
	assert.EQ(t, data, doReadFile(ctx, path))
}

func TestRemoveAllNonexistent(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	assert.NoError(t, file.RemoveAll(ctx, file.Join(tempDir, "baddir")))
}

func TestRemoveAllRegularFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	path := file.Join(tempDir, "test.txt")
	data := "Hello, olleh"
	assert.NoError(t, file.WriteFile(ctx, path, []byte(data)))
	assert.EQ(t, data, doReadFile(ctx, path))
	assert.NoError(t, file.RemoveAll(ctx, path))
	assert.Regexp(t, doReadFile(ctx, path), "no such file")
}

func TestRemoveAllRecursive(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	dir := file.Join(tempDir, "d")
	data := "Hello, olleh"
	assert.NoError(t, file.WriteFile(ctx, file.Join(dir, "file.txt"), []byte(data)))
	assert.NoError(t, file.WriteFile(ctx, file.Join(dir, "e/file.txt"), []byte(data)))
	assert.NoError(t, file.RemoveAll(ctx, dir))
	assert.Regexp(t, doReadFile(ctx, file.Join(dir, "file.txt")), "no such file")
	assert.Regexp(t, doReadFile(ctx, file.Join(dir, "e/file.txt")), "no such file")
}

func TestCopyFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	src := file.Join(tempDir, "src.txt")
	assert.NoError(t, file.WriteFile(ctx, src, []byte("copytest")))

	// Copying to a new name renames the file.
	dst, err := file.CopyFile(ctx, src, file.Join(tempDir, "renamed.txt"))
	assert.NoError(t, err)
	assert.EQ(t, file.Join(tempDir, "renamed.txt"), dst)
	assert.EQ(t, "copytest", doReadFile(ctx, dst))

	// Copying to a directory keeps the base name.
	dir := file.Join(tempDir, "dir")
	assert.NoError(t, file.Mkdir(ctx, dir))
	dst, err = file.CopyFile(ctx, src, dir)
	assert.NoError(t, err)
	assert.EQ(t, file.Join(dir, "src.txt"), dst)
	assert.EQ(t, "copytest", doReadFile(ctx, dst))

	// Existing files are kept unless Overwrite is set.
	assert.NoError(t, file.WriteFile(ctx, src, []byte("second")))
	_, err = file.CopyFile(ctx, src, dir)
	assert.True(t, gerrors.Is(gerrors.Exists, err), "copy: %v", err)
	assert.EQ(t, "copytest", doReadFile(ctx, file.Join(dir, "src.txt")))
	_, err = file.CopyFile(ctx, src, dir, file.Opts{Overwrite: true})
	assert.NoError(t, err)
	assert.EQ(t, "second", doReadFile(ctx, file.Join(dir, "src.txt")))

	_, err = file.CopyFile(ctx, dir, file.Join(tempDir, "x"))
	assert.True(t, gerrors.Is(gerrors.Invalid, err), "copy: %v", err)
	_, err = file.CopyFile(ctx, file.Join(tempDir, "missing"), dir)
	assert.True(t, gerrors.Is(gerrors.NotExist, err), "copy: %v", err)
}

func TestCloseAndReport(t *testing.T) {
	closeMsg := "close [seuozr]"
	returnMsg := "return [mntbnb]"

	// No return error, no close error.
	gotErr := func() (err error) {
		f := errFile{}
		defer file.CloseAndReport(context.Background(), &f, &err)
		return nil
	}()
	assert.NoError(t, gotErr)

	// No return error, close error.
	gotErr = func() (err error) {
		f := errFile{errors.New(closeMsg)}
		defer file.CloseAndReport(context.Background(), &f, &err)
		return nil
	}()
	assert.EQ(t, gotErr.Error(), closeMsg)

	// Return error, no close error.
	gotErr = func() (err error) {
		f := errFile{}
		defer file.CloseAndReport(context.Background(), &f, &err)
		return errors.New(returnMsg)
	}()
	assert.EQ(t, gotErr.Error(), returnMsg)

	// Return error, close error.
	gotErr = func() (err error) {
		f := errFile{errors.New(closeMsg)}
		defer file.CloseAndReport(context.Background(), &f, &err)
		return errors.New(returnMsg)
	}()
	assert2.Contains(t, gotErr.Error(), returnMsg)
	assert2.Contains(t, gotErr.Error(), closeMsg)
}

func ExampleParsePath() {
	parse := func(path string) {
		scheme, suffix, err := file.ParsePath(path)
		if err != nil {
			fmt.Printf("%s: error %v\n", path, err)
			return
		}
		fmt.Printf("%s: scheme \"%s\", suffix \"%s\"\n", path, scheme, suffix)
	}
	parse("/tmp/test")
	parse("hdfs://learn:9000/user")
	parse("hdfs:///user")
	parse("hdfs:user")
	parse("/foo:bar")
	// Output:
	// /tmp/test: scheme "", suffix "/tmp/test"
	// hdfs://learn:9000/user: scheme "hdfs", suffix "learn:9000/user"
	// hdfs:///user: scheme "hdfs", suffix "/user"
	// hdfs:user: error parsepath hdfs:user: a URL must start with 'scheme://'
	// /foo:bar: scheme "", suffix "/foo:bar"
}

func ExampleBase() {
	fmt.Println(file.Base(""))
	fmt.Println(file.Base("foo1"))
	fmt.Println(file.Base("foo2/"))
	fmt.Println(file.Base("/"))
	fmt.Println(file.Base("hdfs://"))
	fmt.Println(file.Base("hdfs://nn/blah1"))
	fmt.Println(file.Base("hdfs://nn/blah2/"))
	fmt.Println(file.Base("hdfs:///foo/blah3//"))
	// Output:
	// .
	// foo1
	// foo2
	// /
	// hdfs://
	// blah1
	// blah2
	// blah3
}

func ExampleDir() {
	fmt.Println(file.Dir("foo"))
	fmt.Println(file.Dir("/a/b"))
	fmt.Println(file.Dir("hdfs://nn/cd"))
	fmt.Println(file.Dir("hdfs://nn//cd"))
	fmt.Println(file.Dir("hdfs://nn/a/b/"))
	fmt.Println(file.Dir("hdfs://nn/a//b//"))
	fmt.Println(file.Dir("hdfs:///a"))
	fmt.Println(file.Dir("hdfs://nn"))
	// Output:
	// .
	// /a
	// hdfs://nn
	// hdfs://nn
	// hdfs://nn/a/b
	// hdfs://nn/a//b
	// hdfs:///
	// hdfs://
}

func ExampleJoin() {
	fmt.Println(file.Join("foo", "bar"))
	fmt.Println(file.Join("foo", "/bar/"))
	fmt.Println(file.Join("hdfs://nn:8020"))
	fmt.Println(file.Join("hdfs://nn:8020", "/user/", "a.txt"))
	fmt.Println(file.Join("hdfs://nn", "", "bar"))
	fmt.Println(file.Join("hdfs:///", "user"))
	fmt.Println(file.Join("hdfs:///user/", "/a.txt"))
	fmt.Println(file.Join("hdfs://nn//bar", "/", "/baz"))
	// Output:
	// foo/bar
	// foo/bar
	// hdfs://nn:8020
	// hdfs://nn:8020/user/a.txt
	// hdfs://nn/bar
	// hdfs:///user
	// hdfs:///user/a.txt
	// hdfs://nn//bar/baz
}

func ExampleIsAbs() {
	fmt.Println(file.IsAbs("foo"))
	fmt.Println(file.IsAbs("/foo"))
	fmt.Println(file.IsAbs("hdfs://nn/foo"))
	// Output:
	// false
	// true
	// true
}
