//+build !unit

package file_test

import (
	"context"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hdfskit/file"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Download a file to /dev/stdout. Like any existing destination, the device
// is written only when overwriting is allowed.
func TestCopyFileToStdout(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("This test does not consistently work on macOS")
	}
	ctx := context.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	src := file.Join(tempDir, "hello.txt")
	require.NoError(t, file.WriteFile(ctx, src, []byte("Hello\n")))

	_, err := file.CopyFile(ctx, src, "/dev/stdout")
	assert.True(t, errors.Is(errors.Exists, err), "copy: %v", err)

	dst, err := file.CopyFile(ctx, src, "/dev/stdout", file.Opts{Overwrite: true})
	require.NoError(t, err)
	assert.EQ(t, "/dev/stdout", dst)
}

// Stream one byte range of a file through a FIFO, the way "block ... dst"
// writes a block to a pipe.
func TestReadRangeToFIFO(t *testing.T) {
	mkfifo, err := exec.LookPath("mkfifo")
	if err != nil {
		t.Skipf("mkfifo not found, skipping the test: %v", err)
	}
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	ctx := context.Background()
	src := filepath.Join(tempDir, "digits.txt")
	require.NoError(t, file.WriteFile(ctx, src, []byte("0123456789")))
	fifoPath := filepath.Join(tempDir, "fifo")
	require.NoError(t, exec.Command(mkfifo, fifoPath).Run())

	var (
		wg   sync.WaitGroup
		data []byte
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		r, err := file.Open(ctx, fifoPath)
		if !tassert.NoError(t, err) {
			return
		}
		data, err = ioutil.ReadAll(r.Reader(ctx))
		tassert.NoError(t, err)
		tassert.NoError(t, r.Close(ctx))
	}()

	w, err := file.Create(ctx, fifoPath)
	require.NoError(t, err)
	n, err := file.ReadRange(ctx, src, 3, 4, w.Writer(ctx))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))
	wg.Wait()
	assert.EQ(t, int64(4), n)
	assert.EQ(t, "3456", string(data))

	// The FIFO is still a FIFO: writing to it did not replace it with a file.
	info, err := file.Stat(ctx, fifoPath)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeNamedPipe != 0, "mode: %v", info.Mode())
}
