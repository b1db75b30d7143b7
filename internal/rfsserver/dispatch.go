// Package rfsserver implements the server half of the protocol: the
// per-connection dispatch loop that executes each request against the
// local file system and the accept loop that isolates one client's state
// from another's.
package rfsserver

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/evan6998/remotefs/internal/dirtree"
	"github.com/evan6998/remotefs/internal/wire"
)

// errnoOf extracts the POSIX errno from an error returned by a
// golang.org/x/sys/unix call. Those calls already return unix.Errno
// directly rather than wrapping it in something like *os.PathError, so
// the caller's errno crosses the wire unmodified.
func errnoOf(err error) int32 {
	if err == nil {
		return 0
	}
	if errno, ok := err.(unix.Errno); ok {
		return int32(errno)
	}
	return int32(unix.EIO)
}

// dispatch executes one request against the local file system and
// returns the errno and response body to send back. It never returns an
// error itself: every failure the local call can produce is expressed as
// an errno in the response, per the protocol's "propagate verbatim"
// design — the only things that can actually fail this function are
// framing-level concerns the caller (handleConn) already deals with.
func dispatch(log *logrus.Entry, op wire.Opcode, body []byte) (int32, []byte) {
	switch op {
	case wire.OpOpen:
		return dispatchOpen(log, body)
	case wire.OpRead:
		return dispatchRead(log, body)
	case wire.OpWrite:
		return dispatchWrite(log, body)
	case wire.OpClose:
		return dispatchClose(log, body)
	case wire.OpLseek:
		return dispatchLseek(log, body)
	case wire.OpStat:
		return dispatchStat(log, body)
	case wire.OpUnlink:
		return dispatchUnlink(log, body)
	case wire.OpGetdirentries:
		return dispatchGetdirentries(log, body)
	case wire.OpGetdirtree:
		return dispatchGetdirtree(log, body)
	default:
		// FREEDIRTREE must never arrive here (it is client-local); any
		// other value is genuinely unknown. The reference silently drops
		// unknown opcodes, which is indistinguishable from a hung server;
		// this implementation takes §9's recommended fix instead.
		log.WithField("opcode", int32(op)).Warn("unknown opcode")
		return int32(unix.EINVAL), nil
	}
}

func dispatchOpen(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodeOpenRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	fd, oerr := unix.Open(req.Path, int(req.Flags), req.Mode)
	log.WithField("path", req.Path).WithField("fd", fd).Debug("OPEN")
	if oerr != nil {
		return errnoOf(oerr), wire.RetResponse{Ret: -1}.Encode()
	}
	return 0, wire.RetResponse{Ret: int64(fd)}.Encode()
}

func dispatchRead(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodeReadRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	buf := make([]byte, req.Count)
	n, rerr := unix.Read(int(req.Fd), buf)
	log.WithField("fd", req.Fd).WithField("n", n).Debug("READ")
	if rerr != nil {
		return errnoOf(rerr), wire.ReadResponseBody{Nbyte: -1}.Encode()
	}
	return 0, wire.ReadResponseBody{Nbyte: int64(n), Data: buf[:n]}.Encode()
}

func dispatchWrite(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodeWriteRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	n, werr := unix.Write(int(req.Fd), req.Data)
	log.WithField("fd", req.Fd).WithField("n", n).Debug("WRITE")
	if werr != nil {
		return errnoOf(werr), wire.RetResponse{Ret: -1}.Encode()
	}
	return 0, wire.RetResponse{Ret: int64(n)}.Encode()
}

func dispatchClose(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodeCloseRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	cerr := unix.Close(int(req.Fd))
	log.WithField("fd", req.Fd).Debug("CLOSE")
	if cerr != nil {
		return errnoOf(cerr), wire.RetResponse{Ret: -1}.Encode()
	}
	return 0, wire.RetResponse{Ret: 0}.Encode()
}

func dispatchLseek(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodeLseekRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	off, serr := unix.Seek(int(req.Fd), req.Offset, int(req.Whence))
	log.WithField("fd", req.Fd).WithField("off", off).Debug("LSEEK")
	if serr != nil {
		return errnoOf(serr), wire.RetResponse{Ret: -1}.Encode()
	}
	return 0, wire.RetResponse{Ret: off}.Encode()
}

func dispatchStat(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodePathRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	var st unix.Stat_t
	serr := unix.Stat(req.Path, &st)
	log.WithField("path", req.Path).Debug("STAT")
	if serr != nil {
		return errnoOf(serr), wire.StatResponseBody{Ret: -1}.Encode()
	}
	return 0, wire.StatResponseBody{Ret: 0, Stat: statToWire(st)}.Encode()
}

func dispatchUnlink(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodePathRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	uerr := unix.Unlink(req.Path)
	log.WithField("path", req.Path).Debug("UNLINK")
	if uerr != nil {
		return errnoOf(uerr), wire.RetResponse{Ret: -1}.Encode()
	}
	return 0, wire.RetResponse{Ret: 0}.Encode()
}

func dispatchGetdirtree(log *logrus.Entry, body []byte) (int32, []byte) {
	req, err := wire.DecodePathRequest(body)
	if err != nil {
		return int32(unix.EINVAL), nil
	}
	tree, terr := buildTree(req.Path)
	log.WithField("path", req.Path).Debug("GETDIRTREE")
	if terr != nil {
		return errnoOf(terr), nil
	}
	defer dirtree.Free(tree)
	buf := serializeTree(tree)
	return 0, buf
}
