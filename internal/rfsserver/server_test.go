package rfsserver

import (
	"encoding/binary"
	"net"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evan6998/remotefs/internal/wire"
)

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.SetLevel(logrus.PanicLevel)
	return l
}

func startTestServer(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := New(silentLogger())
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { ln.Close() })
	return ln
}

func TestServerRespondsInOrder(t *testing.T) {
	ln := startTestServer(t)
	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	dir := t.TempDir()

	// STAT a path twice with different requests; responses must come back
	// in the same order they were sent on this connection.
	req1 := wire.PathRequest{Path: dir}.Encode()
	req2 := wire.PathRequest{Path: dir + "/does-not-exist"}.Encode()

	require.NoError(t, wire.WriteRequest(conn, wire.OpStat, 0, req1))
	require.NoError(t, wire.WriteRequest(conn, wire.OpStat, 0, req2))

	hdr1, _, err := wire.ReadResponse(conn)
	require.NoError(t, err)
	hdr2, _, err := wire.ReadResponse(conn)
	require.NoError(t, err)

	assert.Equal(t, int32(0), hdr1.Errno)
	assert.NotEqual(t, int32(0), hdr2.Errno)
}

func TestServerSurvivesPeerCloseMidRequest(t *testing.T) {
	ln := startTestServer(t)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	// A valid header claiming a payload that never arrives in full.
	hdr := wire.RequestHeader{Version: wire.ProtocolVersion, Opcode: wire.OpOpen, PayloadLen: 64}
	require.NoError(t, binary.Write(conn, binary.NativeEndian, hdr))
	_, _ = conn.Write([]byte("short"))
	conn.Close()

	// The server must still be accepting new connections afterward.
	time.Sleep(20 * time.Millisecond)
	conn2, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn2.Close()

	req := wire.PathRequest{Path: "/"}.Encode()
	require.NoError(t, wire.WriteRequest(conn2, wire.OpStat, 0, req))
	_, _, err = wire.ReadResponse(conn2)
	require.NoError(t, err)
}
