//go:build linux

package rfsserver

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/evan6998/remotefs/internal/wire"
)

// dispatchGetdirentries on Linux is built on unix.Getdents, which is the
// kernel primitive the BSD-flavored getdirentries(2) the original
// protocol was modeled on maps onto here. Linux has no basep/cookie
// output parameter the way getdirentries does, so this implementation
// tracks it with an explicit Seek, matching how glibc's own
// getdirentries() emulation on Linux is built on top of getdents()
// plus lseek().
func dispatchGetdirentries(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodeGetdirentriesRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	buf := make([]byte, req.Count)
	n, gerr := unix.Getdents(int(req.Fd), buf)
	log.WithField("fd", req.Fd).WithField("n", n).Debug("GETDIRENTRIES")
	if gerr != nil {
		return errnoOf(gerr), wire.GetdirentriesResponseBody{Ret: -1}.Encode()
	}
	if n <= 0 {
		return 0, wire.GetdirentriesResponseBody{Ret: int64(n)}.Encode()
	}
	basep, serr := unix.Seek(int(req.Fd), 0, 1 /* SEEK_CUR */)
	if serr != nil {
		return errnoOf(serr), wire.GetdirentriesResponseBody{Ret: -1}.Encode()
	}
	return 0, wire.GetdirentriesResponseBody{Ret: int64(n), Basep: basep, Data: buf[:n]}.Encode()
}
