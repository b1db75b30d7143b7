package rfsclient

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evan6998/remotefs/internal/rfslog"
	"github.com/evan6998/remotefs/internal/wire"
)

// fakeServer is a minimal, single-request-at-a-time stand-in for
// internal/rfsserver, used so the client stubs can be exercised without
// a real TCP accept loop or file system.
type fakeServer struct {
	ln net.Listener
}

func newFakeServer(t *testing.T, handle func(op wire.Opcode, body []byte) (int32, []byte)) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fs := &fakeServer{ln: ln}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			hdr, body, err := wire.ReadRequest(conn)
			if err != nil {
				return
			}
			errno, respBody := handle(hdr.Opcode, body)
			if err := wire.WriteResponse(conn, errno, respBody); err != nil {
				return
			}
		}
	}()
	return fs
}

func (f *fakeServer) addr() string { return f.ln.Addr().String() }
func (f *fakeServer) close()       { f.ln.Close() }

func dialFake(t *testing.T, addr string) *Client {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	t.Setenv("server15440", host)
	t.Setenv("serverport15440", port)
	c, err := Dial(rfslog.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenWriteReadCloseCycle(t *testing.T) {
	var stored []byte
	srv := newFakeServer(t, func(op wire.Opcode, body []byte) (int32, []byte) {
		switch op {
		case wire.OpOpen:
			return 0, wire.RetResponse{Ret: 3}.Encode()
		case wire.OpWrite:
			req, _ := wire.DecodeWriteRequest(body)
			stored = append(stored, req.Data...)
			return 0, wire.RetResponse{Ret: int64(len(req.Data))}.Encode()
		case wire.OpLseek:
			return 0, wire.RetResponse{Ret: 0}.Encode()
		case wire.OpRead:
			req, _ := wire.DecodeReadRequest(body)
			n := len(stored)
			if int(req.Count) < n {
				n = int(req.Count)
			}
			return 0, wire.ReadResponseBody{Nbyte: int64(n), Data: stored[:n]}.Encode()
		case wire.OpClose:
			return 0, wire.RetResponse{Ret: 0}.Encode()
		}
		return 0, nil
	})
	defer srv.close()

	c := dialFake(t, srv.addr())

	fd, err := c.Open("/tmp/x", 0x241, 0644)
	require.NoError(t, err)
	assert.True(t, c.Classify(fd))

	n, err := c.Write(fd, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	off, err := c.Lseek(fd, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)

	buf := make([]byte, 5)
	n, err = c.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	require.NoError(t, c.CloseFD(fd))
	assert.False(t, c.Classify(fd))
}

func TestOpenNonexistentPathDoesNotExternalize(t *testing.T) {
	srv := newFakeServer(t, func(op wire.Opcode, body []byte) (int32, []byte) {
		return int32(2), wire.RetResponse{Ret: -1}.Encode() // ENOENT
	})
	defer srv.close()
	c := dialFake(t, srv.addr())

	fd, err := c.Open("/does/not/exist", 0, 0)
	assert.Equal(t, -1, fd)
	assert.Error(t, err)
	assert.Empty(t, c.fds.Snapshot())
}

func TestGetdirentriesLocalFdNeverTouchesWire(t *testing.T) {
	rpcSeen := false
	srv := newFakeServer(t, func(op wire.Opcode, body []byte) (int32, []byte) {
		rpcSeen = true
		return 0, nil
	})
	defer srv.close()
	c := dialFake(t, srv.addr())

	dir := t.TempDir()
	f, err := os.Open(dir)
	require.NoError(t, err)
	defer f.Close()
	fd := int(f.Fd())
	require.False(t, c.Classify(fd))

	var basep int64
	data, n, err := c.Getdirentries(fd, 4096, &basep)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
	assert.Equal(t, n, len(data))
	assert.False(t, rpcSeen, "local fd must never issue an RPC")
}

func TestGetdirentriesRemoteFdRoutesOverWire(t *testing.T) {
	var sawFd int32 = -1
	srv := newFakeServer(t, func(op wire.Opcode, body []byte) (int32, []byte) {
		switch op {
		case wire.OpOpen:
			return 0, wire.RetResponse{Ret: 7}.Encode()
		case wire.OpGetdirentries:
			req, _ := wire.DecodeGetdirentriesRequest(body)
			sawFd = req.Fd
			return 0, wire.GetdirentriesResponseBody{Ret: 3, Basep: 42, Data: []byte("xyz")}.Encode()
		}
		return 0, nil
	})
	defer srv.close()
	c := dialFake(t, srv.addr())

	fd, err := c.Open("/tmp/x", 0, 0)
	require.NoError(t, err)
	require.True(t, c.Classify(fd))

	var basep int64
	data, n, err := c.Getdirentries(fd, 4096, &basep)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "xyz", string(data))
	assert.Equal(t, int64(42), basep)
	assert.Equal(t, int32(7), sawFd) // internal fd, not the externalized one
}

func TestGetdirtreeNoRPCOnFree(t *testing.T) {
	var buf []byte
	{
		var b []byte
		b = append(b, []byte("dir\x00")...)
		b = append(b, 0, 0, 0, 0) // child count 0, little or native endian zero either way
		buf = b
	}
	srv := newFakeServer(t, func(op wire.Opcode, body []byte) (int32, []byte) {
		require.Equal(t, wire.OpGetdirtree, op)
		return 0, buf
	})
	defer srv.close()
	c := dialFake(t, srv.addr())

	root, err := c.Getdirtree("/tmp")
	require.NoError(t, err)
	assert.Equal(t, "dir", root.Name)

	c.Freedirtree(root)
	assert.Nil(t, root.Children)
}
