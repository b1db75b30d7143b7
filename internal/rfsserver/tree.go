package rfsserver

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/evan6998/remotefs/internal/dirtree"
)

// buildTree obtains a local directory tree via the host's directory
// traversal facility (os.ReadDir) and turns it into a dirtree.Node,
// recursing only into subdirectories — the protocol's tree carries
// directory structure, not file entries. Any failure is returned as a
// bare unix.Errno so it can cross the wire verbatim through errnoOf,
// the same as every other dispatch call's error.
func buildTree(path string) (*dirtree.Node, error) {
	node := dirtree.New(filepath.Base(path))
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, unwrapErrno(err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		child, err := buildTree(filepath.Join(path, e.Name()))
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// unwrapErrno strips the *fs.PathError the os package wraps every
// syscall.Errno in, converting it to the bare unix.Errno errnoOf expects.
// Errors that don't carry an errno (none arise from os.ReadDir in
// practice) pass through unchanged.
func unwrapErrno(err error) error {
	var perr *fs.PathError
	if errors.As(err, &perr) {
		if errno, ok := perr.Err.(syscall.Errno); ok {
			return unix.Errno(errno)
		}
	}
	return err
}

// serializeTree is the response-composition half of GETDIRTREE: serialize
// the host tree into the on-wire buffer. The host tree and the
// serialization buffer are both scoped to this call; the caller frees
// the host tree immediately after this returns.
func serializeTree(t *dirtree.Node) []byte {
	var buf bytes.Buffer
	dirtree.Serialize(&buf, t)
	return buf.Bytes()
}
