// Package integration drives the client stubs against a real server
// dispatcher over a real TCP connection, covering the end-to-end
// scenarios from the protocol's testable-properties section.
package integration

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/evan6998/remotefs/internal/rfsclient"
	"github.com/evan6998/remotefs/internal/rfsserver"
)

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newServerOnRandomPort(t *testing.T) (addr string, stop func()) {
	t.Helper()
	t.Setenv("serverport15440", "0")

	srv := rfsserver.New(silentLogger())
	ln, err := srv.Listen()
	require.NoError(t, err)
	addr = ln.Addr().String()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ln)
	}()
	return addr, func() { ln.Close(); <-done }
}

func dialClient(t *testing.T, addr string) *rfsclient.Client {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	t.Setenv("server15440", host)
	t.Setenv("serverport15440", port)

	c, err := rfsclient.Dial(silentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenWriteReadCloseCycleEndToEnd(t *testing.T) {
	addr, stop := newServerOnRandomPort(t)
	defer stop()
	c := dialClient(t, addr)

	dir := t.TempDir()
	path := filepath.Join(dir, "x")

	fd, err := c.Open(path, unix.O_CREAT|unix.O_RDWR, 0644)
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

func TestNonexistentPathEndToEnd(t *testing.T) {
	addr, stop := newServerOnRandomPort(t)
	defer stop()
	c := dialClient(t, addr)

	fd, err := c.Open("/does/not/exist", unix.O_RDONLY, 0)
	assert.Equal(t, -1, fd)
	assert.Error(t, err)
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestMixedLocalAndRemoteFds(t *testing.T) {
	addr, stop := newServerOnRandomPort(t)
	defer stop()
	c := dialClient(t, addr)

	// fd 1 (stdout) is local; it must never touch the wire.
	n, err := c.Write(1, []byte(""))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, c.Classify(1))
}

func TestDirectoryTreeRoundTripEndToEnd(t *testing.T) {
	addr, stop := newServerOnRandomPort(t)
	defer stop()
	c := dialClient(t, addr)

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "b"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "b", "c"), 0755))

	root, err := c.Getdirtree(dir)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, ch := range root.Children {
		names[ch.Name] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])

	c.Freedirtree(root)
	assert.Nil(t, root.Children)
}

func TestGetdirentriesEndToEnd(t *testing.T) {
	addr, stop := newServerOnRandomPort(t)
	defer stop()
	c := dialClient(t, addr)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0644))

	fd, err := c.Open(dir, unix.O_RDONLY, 0)
	require.NoError(t, err)
	assert.True(t, c.Classify(fd))

	var basep int64
	data, n, err := c.Getdirentries(fd, 4096, &basep)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.NotEmpty(t, data)

	require.NoError(t, c.CloseFD(fd))
}

func TestShortReadAtEOFEndToEnd(t *testing.T) {
	addr, stop := newServerOnRandomPort(t)
	defer stop()
	c := dialClient(t, addr)

	dir := t.TempDir()
	path := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	fd, err := c.Open(path, unix.O_RDONLY, 0)
	require.NoError(t, err)

	buf := make([]byte, 1024)
	n, err := c.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(buf[:n]))

	require.NoError(t, c.CloseFD(fd))
}
