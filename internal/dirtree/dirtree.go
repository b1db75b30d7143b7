// Package dirtree implements the recursive directory-tree marshaller: a
// preorder serialization of a rooted, labelled, ordered tree to a
// contiguous byte buffer and back.
package dirtree

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrMalformed is returned by Deserialize when the buffer is truncated,
// missing a NUL terminator, or carries a negative child count. It is a
// fatal protocol error; callers must not attempt to recover a partial
// tree from it.
var ErrMalformed = errors.New("dirtree: malformed buffer")

// Node is one entry in a directory tree: a name and its (possibly empty)
// ordered list of subdirectories. Child order is significant and is never
// sorted by this package.
type Node struct {
	Name     string
	Children []*Node
}

// New builds a leaf or interior node. Callers append to Children directly
// when building a tree by hand (e.g. in tests).
func New(name string) *Node {
	return &Node{Name: name}
}

// Serialize appends the preorder encoding of t to buf: name bytes
// including the NUL, the child count as a fixed-width int32, then each
// child's serialization in order. It returns the number of bytes
// appended, which by construction equals
// len(name)+1 + 4 + sum(serialized size of each child).
func Serialize(buf *bytes.Buffer, t *Node) int {
	start := buf.Len()
	buf.WriteString(t.Name)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.NativeEndian, int32(len(t.Children)))
	for _, c := range t.Children {
		Serialize(buf, c)
	}
	return buf.Len() - start
}

// Deserialize reads one node (and, recursively, its subtree) from b
// starting at offset 0. It returns the node and the number of bytes
// consumed, so the caller can advance a cursor over a larger buffer if
// needed (the top-level caller in this protocol always consumes the
// entire response body).
func Deserialize(b []byte) (*Node, int, error) {
	nul := bytes.IndexByte(b, 0)
	if nul < 0 {
		return nil, 0, ErrMalformed
	}
	name := string(b[:nul])
	pos := nul + 1

	if pos+4 > len(b) {
		return nil, 0, ErrMalformed
	}
	count := int32(binary.NativeEndian.Uint32(b[pos:]))
	pos += 4
	if count < 0 {
		return nil, 0, ErrMalformed
	}

	node := &Node{Name: name, Children: make([]*Node, 0, count)}
	for i := int32(0); i < count; i++ {
		child, n, err := Deserialize(b[pos:])
		if err != nil {
			return nil, 0, err
		}
		node.Children = append(node.Children, child)
		pos += n
	}
	return node, pos, nil
}

// Free releases a tree built by Deserialize. Go's garbage collector
// reclaims the underlying memory once no references remain; Free's job
// is to drop this call's references to the subtree (and, transitively,
// make a second Free of the same root a no-op) so it mirrors the
// client-local, wire-free FREEDIRTREE operation exactly: it must never
// issue an RPC.
func Free(t *Node) {
	if t == nil {
		return
	}
	for _, c := range t.Children {
		Free(c)
	}
	t.Children = nil
}
