//go:build darwin

package rfsserver

import (
	"golang.org/x/sys/unix"

	"github.com/evan6998/remotefs/internal/wire"
)

// statToWire is darwin's field mapping for unix.Stat_t, whose layout and
// field widths differ from Linux (narrower Mode/Nlink, *_spec timestamp
// field names) even though the wire-level FileStat is identical on both.
func statToWire(st unix.Stat_t) wire.FileStat {
	return wire.FileStat{
		Dev:     int64(st.Dev),
		Ino:     uint64(st.Ino),
		Mode:    uint32(st.Mode),
		Nlink:   uint32(st.Nlink),
		UID:     st.Uid,
		GID:     st.Gid,
		Size:    st.Size,
		Atime:   int64(st.Atimespec.Sec),
		Mtime:   int64(st.Mtimespec.Sec),
		Ctime:   int64(st.Ctimespec.Sec),
		Blksize: int64(st.Blksize),
		Blocks:  st.Blocks,
	}
}
