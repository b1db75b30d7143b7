// Package rfsclient implements the client-side stubs: for each supported
// operation, decide whether to satisfy it locally or over the wire,
// build/send/receive a frame when remote, and reconstruct the original
// return value and errno either way.
package rfsclient

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/evan6998/remotefs/internal/config"
	"github.com/evan6998/remotefs/internal/dirtree"
	"github.com/evan6998/remotefs/internal/fdtable"
	"github.com/evan6998/remotefs/internal/wire"
)

// Client is the process-wide singleton the stubs operate against: one
// TCP connection cached for the lifetime of the process, plus the FD
// namespace table. There is no reconnect; a transport failure is fatal
// for the remainder of the process's remote operations.
type Client struct {
	// wireMu serializes the send-then-receive critical section so
	// request/response pairs from concurrent callers never interleave on
	// one connection.
	wireMu sync.Mutex
	conn   net.Conn

	fds *fdtable.Table
	log *logrus.Logger
}

// Dial connects to the server named by server15440/serverport15440 (or
// their defaults). A failure here is fatal to the calling process: there
// is no retry and no reconnect for the remainder of its lifetime.
func Dial(log *logrus.Logger) (*Client, error) {
	cfg := config.ClientFromEnv()
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "rfsclient: connect to %s", addr)
	}
	log.WithField("addr", addr).Info("connected to remote file server")
	return &Client{
		conn: conn,
		fds:  fdtable.New(1 << 20),
		log:  log,
	}, nil
}

// Close tears down the cached connection. Nothing in the protocol calls
// this on the caller's behalf; it exists for orderly shutdown in tests
// and the demo binary.
func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends one request and returns its response, holding wireMu
// for the duration so two goroutines' frames can never interleave.
func (c *Client) roundTrip(opcode wire.Opcode, body []byte) (wire.ResponseHeader, []byte, error) {
	c.wireMu.Lock()
	defer c.wireMu.Unlock()

	if err := wire.WriteRequest(c.conn, opcode, 0, body); err != nil {
		return wire.ResponseHeader{}, nil, err
	}
	return wire.ReadResponse(c.conn)
}

// errnoFromFrame turns a wire errno (0 meaning success) into a Go error
// a caller can compare with errors.Is against unix.Errno values, the same
// idiom a local filesystem backend uses around raw unix.* calls.
func errnoFromFrame(errno int32) error {
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

// Classify exposes the FD-namespace classification for callers (and
// tests) that want to reason about routing without issuing a call.
func (c *Client) Classify(fd int) bool {
	return c.fds.Classify(fd)
}

// Diagnostics reports how long each currently open remote descriptor has
// been held, keyed by its internal (server-visible) value.
func (c *Client) Diagnostics() map[int]time.Duration {
	return c.fds.Diagnostics()
}

// -- OPEN --

// Open always routes remotely: the client has no policy for choosing
// between local and remote files, since the server's root is the only
// file universe OPEN is meant to reach.
func (c *Client) Open(path string, flags int, mode uint32) (int, error) {
	body := wire.OpenRequest{Flags: int32(flags), Mode: mode, Path: path}.Encode()
	hdr, respBody, err := c.roundTrip(wire.OpOpen, body)
	if err != nil {
		return -1, err
	}
	resp, err := wire.DecodeRetResponse(respBody)
	if err != nil {
		return -1, err
	}
	ret := int(resp.Ret)
	if ret < 0 {
		return -1, errnoFromFrame(hdr.Errno)
	}
	ext, oerr := c.fds.Externalize(ret)
	if oerr != nil {
		// Overflow is fatal on the client per the protocol's
		// error-handling design; propagate rather than silently truncate.
		return -1, oerr
	}
	return ext, nil
}

// -- READ --

// Read routes per Classify: local descriptors (stdin/stdout/stderr,
// anything the caller's process opened itself) are read directly;
// remote descriptors cross the wire. A short read is legal and is
// reported faithfully either way.
func (c *Client) Read(fd int, buf []byte) (int, error) {
	if !c.fds.Classify(fd) {
		n, err := unix.Read(fd, buf)
		return n, err
	}
	internal := c.fds.Internalize(fd)
	body := wire.ReadRequestBody{Fd: int32(internal), Count: uint32(len(buf))}.Encode()
	hdr, respBody, err := c.roundTrip(wire.OpRead, body)
	if err != nil {
		return -1, err
	}
	resp, err := wire.DecodeReadResponse(respBody)
	if err != nil {
		return -1, err
	}
	if resp.Nbyte < 0 {
		return -1, errnoFromFrame(hdr.Errno)
	}
	n := copy(buf, resp.Data)
	return n, nil
}

// -- WRITE --

// Write returns the server's signed return value verbatim: it may be
// less than len(data), and may be negative on error.
func (c *Client) Write(fd int, data []byte) (int, error) {
	if !c.fds.Classify(fd) {
		return unix.Write(fd, data)
	}
	internal := c.fds.Internalize(fd)
	body := wire.WriteRequestBody{Fd: int32(internal), Count: uint32(len(data)), Data: data}.Encode()
	hdr, respBody, err := c.roundTrip(wire.OpWrite, body)
	if err != nil {
		return -1, err
	}
	resp, err := wire.DecodeRetResponse(respBody)
	if err != nil {
		return -1, err
	}
	ret := int(resp.Ret)
	if ret < 0 {
		return ret, errnoFromFrame(hdr.Errno)
	}
	return ret, nil
}

// -- CLOSE --

// CloseFD retires the descriptor from the presence set unconditionally,
// even if the remote close itself failed: from the client's point of
// view the descriptor is closed either way.
func (c *Client) CloseFD(fd int) error {
	if !c.fds.Classify(fd) {
		return unix.Close(fd)
	}
	internal := c.fds.Internalize(fd)
	body := wire.CloseRequestBody{Fd: int32(internal)}.Encode()
	hdr, respBody, err := c.roundTrip(wire.OpClose, body)
	c.fds.Retire(internal)
	if err != nil {
		return err
	}
	resp, derr := wire.DecodeRetResponse(respBody)
	if derr != nil {
		return derr
	}
	if resp.Ret < 0 {
		return errnoFromFrame(hdr.Errno)
	}
	return nil
}

// -- LSEEK --

// Lseek returns the server's new file offset; on error the server
// encodes -1 and the errno rides in the header.
func (c *Client) Lseek(fd int, offset int64, whence int) (int64, error) {
	if !c.fds.Classify(fd) {
		return unix.Seek(fd, offset, whence)
	}
	internal := c.fds.Internalize(fd)
	body := wire.LseekRequestBody{Fd: int32(internal), Offset: offset, Whence: int32(whence)}.Encode()
	hdr, respBody, err := c.roundTrip(wire.OpLseek, body)
	if err != nil {
		return -1, err
	}
	resp, derr := wire.DecodeRetResponse(respBody)
	if derr != nil {
		return -1, derr
	}
	if resp.Ret < 0 {
		return -1, errnoFromFrame(hdr.Errno)
	}
	return resp.Ret, nil
}

// -- STAT --

// Stat is always remote: there is no local file universe to stat against
// for a path the server owns.
func (c *Client) Stat(path string) (wire.FileStat, error) {
	body := wire.PathRequest{Path: path}.Encode()
	hdr, respBody, err := c.roundTrip(wire.OpStat, body)
	if err != nil {
		return wire.FileStat{}, err
	}
	resp, derr := wire.DecodeStatResponse(respBody)
	if derr != nil {
		return wire.FileStat{}, derr
	}
	if resp.Ret < 0 {
		return wire.FileStat{}, errnoFromFrame(hdr.Errno)
	}
	return resp.Stat, nil
}

// -- UNLINK --

func (c *Client) Unlink(path string) error {
	body := wire.PathRequest{Path: path}.Encode()
	hdr, respBody, err := c.roundTrip(wire.OpUnlink, body)
	if err != nil {
		return err
	}
	resp, derr := wire.DecodeRetResponse(respBody)
	if derr != nil {
		return derr
	}
	if resp.Ret < 0 {
		return errnoFromFrame(hdr.Errno)
	}
	return nil
}

// -- GETDIRENTRIES --

// Getdirentries applies the same classification rule as READ/WRITE (see
// DESIGN.md for why). When the return value is positive the directory
// bytes and updated base offset are copied out; on zero or negative
// return, basep is left untouched.
func (c *Client) Getdirentries(fd int, count uint32, basep *int64) ([]byte, int, error) {
	if !c.fds.Classify(fd) {
		buf := make([]byte, count)
		n, err := localGetdirentries(fd, buf, basep)
		if err != nil {
			return nil, -1, err
		}
		return buf[:n], n, nil
	}
	internal := c.fds.Internalize(fd)
	body := wire.GetdirentriesRequestBody{Fd: int32(internal), Count: count}.Encode()
	hdr, respBody, err := c.roundTrip(wire.OpGetdirentries, body)
	if err != nil {
		return nil, -1, err
	}
	resp, derr := wire.DecodeGetdirentriesResponse(respBody)
	if derr != nil {
		return nil, -1, derr
	}
	if resp.Ret <= 0 {
		if resp.Ret < 0 {
			return nil, int(resp.Ret), errnoFromFrame(hdr.Errno)
		}
		return nil, 0, nil
	}
	*basep = resp.Basep
	return resp.Data, int(resp.Ret), nil
}

// -- GETDIRTREE / FREEDIRTREE --

// Getdirtree deserializes the server's response into an in-memory tree
// and returns its root; it never consults any local directory.
func (c *Client) Getdirtree(path string) (*dirtree.Node, error) {
	body := wire.PathRequest{Path: path}.Encode()
	hdr, respBody, err := c.roundTrip(wire.OpGetdirtree, body)
	if err != nil {
		return nil, err
	}
	if hdr.Errno != 0 {
		return nil, errnoFromFrame(hdr.Errno)
	}
	root, _, derr := dirtree.Deserialize(respBody)
	if derr != nil {
		return nil, derr
	}
	return root, nil
}

// Freedirtree releases a tree obtained from Getdirtree. It must never
// send an RPC: FREEDIRTREE is serviced entirely on the client.
func (c *Client) Freedirtree(t *dirtree.Node) {
	dirtree.Free(t)
}
