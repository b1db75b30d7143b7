//go:build darwin

package rfsclient

import "golang.org/x/sys/unix"

// localGetdirentries mirrors dispatchGetdirentries on the server: Darwin's
// unix.Getdirentries returns the updated base offset as an output
// parameter directly.
func localGetdirentries(fd int, buf []byte, basep *int64) (int, error) {
	var off uintptr
	n, err := unix.Getdirentries(fd, buf, &off)
	if err != nil {
		return -1, err
	}
	if n > 0 {
		*basep = int64(off)
	}
	return n, nil
}
