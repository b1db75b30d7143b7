//go:build linux

package rfsclient

import "golang.org/x/sys/unix"

// localGetdirentries mirrors dispatchGetdirentries on the server: Linux
// has no basep output parameter for getdents, so the updated offset is
// read back with an explicit Seek after the read succeeds.
func localGetdirentries(fd int, buf []byte, basep *int64) (int, error) {
	n, err := unix.Getdents(fd, buf)
	if err != nil {
		return -1, err
	}
	if n <= 0 {
		return n, nil
	}
	off, err := unix.Seek(fd, 0, 1 /* SEEK_CUR */)
	if err != nil {
		return -1, err
	}
	*basep = off
	return n, nil
}
