package hdfsfile

import (
	"os"
	"time"
)

// hdfsInfo implements file.Info.
type hdfsInfo struct {
	name        string
	size        int64
	modTime     time.Time
	mode        os.FileMode
	owner       string
	group       string
	replication int
	blockSize   int64
}

// The namenode's file status record, as returned by os.FileInfo.Sys() of an
// *hdfs.FileInfo.
type fileStatus interface {
	GetBlocksize() uint64
	GetBlockReplication() uint32
}

type ownerInfo interface {
	Owner() string
	OwnerGroup() string
}

func newInfo(fi os.FileInfo) *hdfsInfo {
	info := &hdfsInfo{
		name:    fi.Name(),
		size:    fi.Size(),
		modTime: fi.ModTime(),
		mode:    fi.Mode(),
	}
	if info.name == "" {
		info.name = "/"
	}
	if fi.IsDir() {
		info.size = 0
	}
	if o, ok := fi.(ownerInfo); ok {
		info.owner, info.group = o.Owner(), o.OwnerGroup()
	}
	if st, ok := fi.Sys().(fileStatus); ok && !fi.IsDir() {
		info.blockSize = int64(st.GetBlocksize())
		info.replication = int(st.GetBlockReplication())
	}
	return info
}

func (i *hdfsInfo) Name() string       { return i.name }
func (i *hdfsInfo) Size() int64        { return i.size }
func (i *hdfsInfo) ModTime() time.Time { return i.modTime }
func (i *hdfsInfo) Mode() os.FileMode  { return i.mode }
func (i *hdfsInfo) IsDir() bool        { return i.mode.IsDir() }
func (i *hdfsInfo) Owner() string      { return i.owner }
func (i *hdfsInfo) Group() string      { return i.group }
func (i *hdfsInfo) Replication() int   { return i.replication }
func (i *hdfsInfo) BlockSize() int64   { return i.blockSize }
