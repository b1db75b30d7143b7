//go:build darwin

package rfsserver

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/evan6998/remotefs/internal/wire"
)

// dispatchGetdirentries on Darwin is the direct syscall the protocol is
// named after: unix.Getdirentries already returns the updated base
// offset as an output parameter.
func dispatchGetdirentries(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodeGetdirentriesRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	buf := make([]byte, req.Count)
	var basep uintptr
	n, gerr := unix.Getdirentries(int(req.Fd), buf, &basep)
	log.WithField("fd", req.Fd).WithField("n", n).Debug("GETDIRENTRIES")
	if gerr != nil {
		return errnoOf(gerr), wire.GetdirentriesResponseBody{Ret: -1}.Encode()
	}
	if n <= 0 {
		return 0, wire.GetdirentriesResponseBody{Ret: int64(n)}.Encode()
	}
	return 0, wire.GetdirentriesResponseBody{Ret: int64(n), Basep: int64(basep), Data: buf[:n]}.Encode()
}
