package hdfsfile

import (
	"context"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hdfskit/file"
)

// List implements file.Implementation interface. It walks the tree
// breadth-first, one ReadDir call per directory.
func (impl *hdfsImpl) List(ctx context.Context, dir string, recurse bool) file.Lister {
	return &hdfsLister{ctx: ctx, impl: impl, prefix: dir, recurse: recurse}
}

type listEntry struct {
	path string // "hdfs://..." URL.
	info *hdfsInfo
}

type hdfsLister struct {
	ctx     context.Context
	impl    *hdfsImpl
	prefix  string
	recurse bool

	started bool
	todo    []listEntry // directories still to be read.
	ready   []listEntry // entries to be returned by Scan.
	cur     listEntry
	err     error
}

// Scan implements Lister.Scan.
func (l *hdfsLister) Scan() bool {
	if !l.started {
		l.started = true
		l.start()
	}
	for {
		if l.err != nil {
			return false
		}
		if len(l.ready) > 0 {
			l.cur, l.ready = l.ready[0], l.ready[1:]
			return true
		}
		if len(l.todo) == 0 {
			return false
		}
		var d listEntry
		d, l.todo = l.todo[0], l.todo[1:]
		l.readDir(d)
	}
}

func (l *hdfsLister) start() {
	info, err := l.impl.Stat(l.ctx, l.prefix)
	if err != nil {
		l.err = err
		return
	}
	e := listEntry{l.prefix, info.(*hdfsInfo)}
	if !e.info.IsDir() {
		l.ready = append(l.ready, e)
		return
	}
	l.todo = append(l.todo, e)
}

func (l *hdfsLister) readDir(d listEntry) {
	var infos []os.FileInfo
	l.err = l.impl.do(l.ctx, "list", d.path, func(c Client, path string) error {
		var err error
		infos, err = c.ReadDir(path)
		return err
	})
	if errors.Is(errors.NotExist, l.err) {
		// Removed since it was listed.
		l.err = nil
		return
	}
	for _, fi := range infos {
		e := listEntry{file.Join(d.path, fi.Name()), newInfo(fi)}
		if !e.info.IsDir() || !l.recurse {
			l.ready = append(l.ready, e)
		}
		if e.info.IsDir() && l.recurse {
			l.todo = append(l.todo, e)
		}
	}
}

// Path returns the most recent path that was scanned.
func (l *hdfsLister) Path() string { return l.cur.path }

// Info returns the metadata of the most recent path scanned.
func (l *hdfsLister) Info() file.Info { return l.cur.info }

// IsDir reports whether the most recent path scanned is a directory.
func (l *hdfsLister) IsDir() bool { return l.cur.info.IsDir() }

// Err returns the first error that occurred while scanning.
func (l *hdfsLister) Err() error { return l.err }
