package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrPeerClosed is returned by ReadRequest/ReadResponse when the peer has
// closed the connection, whether cleanly (zero bytes at a frame boundary)
// or mid-frame (a short read). Either case is a terminal condition for the
// session; there is no retry.
var ErrPeerClosed = errors.New("wire: peer closed connection")

// requestHeaderSize and responseHeaderSize are the on-wire sizes of the
// fixed header, in bytes, under NativeEndian int32/uint32 encoding.
const (
	requestHeaderSize  = 4 + 4 + 4 + 4 // version, opcode, flags, payload_len
	responseHeaderSize = 4 + 4         // errno, payload_len
)

// RequestHeader is the fixed prefix of every request frame.
type RequestHeader struct {
	Version    int32
	Opcode     Opcode
	Flags      int32
	PayloadLen uint32
}

// ResponseHeader is the fixed prefix of every response frame.
type ResponseHeader struct {
	Errno      int32
	PayloadLen uint32
}

// WriteRequest writes a full request frame: header then exactly len(body)
// bytes. The header's PayloadLen is set from len(body).
func WriteRequest(w io.Writer, opcode Opcode, flags int32, body []byte) error {
	hdr := RequestHeader{
		Version:    ProtocolVersion,
		Opcode:     opcode,
		Flags:      flags,
		PayloadLen: uint32(len(body)),
	}
	if err := binary.Write(w, binary.NativeEndian, hdr); err != nil {
		return errors.Wrap(err, "wire: write request header")
	}
	if len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "wire: write request body")
	}
	return nil
}

// ReadRequest reads one full request frame: the fixed header, then exactly
// PayloadLen body bytes, looping internally via io.ReadFull until the read
// is satisfied or the peer goes away.
func ReadRequest(r io.Reader) (RequestHeader, []byte, error) {
	var hdr RequestHeader
	if err := binary.Read(r, binary.NativeEndian, &hdr); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return RequestHeader{}, nil, ErrPeerClosed
		}
		return RequestHeader{}, nil, errors.Wrap(err, "wire: read request header")
	}
	body := make([]byte, hdr.PayloadLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return RequestHeader{}, nil, ErrPeerClosed
		}
		return RequestHeader{}, nil, errors.Wrap(err, "wire: read request body")
	}
	return hdr, body, nil
}

// WriteResponse writes a full response frame: header then exactly len(body)
// bytes.
func WriteResponse(w io.Writer, errno int32, body []byte) error {
	hdr := ResponseHeader{
		Errno:      errno,
		PayloadLen: uint32(len(body)),
	}
	if err := binary.Write(w, binary.NativeEndian, hdr); err != nil {
		return errors.Wrap(err, "wire: write response header")
	}
	if len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "wire: write response body")
	}
	return nil
}

// ReadResponse reads one full response frame, symmetric to ReadRequest.
func ReadResponse(r io.Reader) (ResponseHeader, []byte, error) {
	var hdr ResponseHeader
	if err := binary.Read(r, binary.NativeEndian, &hdr); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ResponseHeader{}, nil, ErrPeerClosed
		}
		return ResponseHeader{}, nil, errors.Wrap(err, "wire: read response header")
	}
	body := make([]byte, hdr.PayloadLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ResponseHeader{}, nil, ErrPeerClosed
		}
		return ResponseHeader{}, nil, errors.Wrap(err, "wire: read response body")
	}
	return hdr, body, nil
}
