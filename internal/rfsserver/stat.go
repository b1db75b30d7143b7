//go:build linux

package rfsserver

import (
	"golang.org/x/sys/unix"

	"github.com/evan6998/remotefs/internal/wire"
)

// statToWire copies the fields of a raw unix.Stat_t into the protocol's
// fixed-layout FileStat, byte-for-byte in spirit (field by field, since
// unix.Stat_t's own in-memory layout is platform-specific and the wire
// type is not).
func statToWire(st unix.Stat_t) wire.FileStat {
	return wire.FileStat{
		Dev:     int64(st.Dev),
		Ino:     uint64(st.Ino),
		Mode:    uint32(st.Mode),
		Nlink:   uint32(st.Nlink),
		UID:     st.Uid,
		GID:     st.Gid,
		Size:    st.Size,
		Atime:   int64(st.Atim.Sec),
		Mtime:   int64(st.Mtim.Sec),
		Ctime:   int64(st.Ctim.Sec),
		Blksize: int64(st.Blksize),
		Blocks:  st.Blocks,
	}
}
