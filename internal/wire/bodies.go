package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrMalformed flags a body that could not be decoded: a missing NUL
// terminator, a truncated fixed-width field, or a negative count where
// one cannot exist. It is a fatal protocol error per the error-handling
// design — callers should not attempt partial recovery.
var ErrMalformed = errors.New("wire: malformed body")

// encoder accumulates an opcode body in wire order.
type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) int32(v int32) {
	_ = binary.Write(&e.buf, binary.NativeEndian, v)
}

func (e *encoder) uint32(v uint32) {
	_ = binary.Write(&e.buf, binary.NativeEndian, v)
}

func (e *encoder) int64(v int64) {
	_ = binary.Write(&e.buf, binary.NativeEndian, v)
}

func (e *encoder) cstring(s string) {
	e.buf.WriteString(s)
	e.buf.WriteByte(0)
}

func (e *encoder) bytes(b []byte) {
	e.buf.Write(b)
}

func (e *encoder) Bytes() []byte { return e.buf.Bytes() }

// decoder walks a body buffer field by field, recording the first error
// encountered so call sites can chain reads without checking after every
// one.
type decoder struct {
	buf []byte
	pos int
	err error
}

func newDecoder(b []byte) *decoder { return &decoder{buf: b} }

func (d *decoder) fail() {
	if d.err == nil {
		d.err = ErrMalformed
	}
}

func (d *decoder) int32() int32 {
	if d.err != nil || d.pos+4 > len(d.buf) {
		d.fail()
		return 0
	}
	v := int32(binary.NativeEndian.Uint32(d.buf[d.pos:]))
	d.pos += 4
	return v
}

func (d *decoder) uint32() uint32 {
	if d.err != nil || d.pos+4 > len(d.buf) {
		d.fail()
		return 0
	}
	v := binary.NativeEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil || d.pos+8 > len(d.buf) {
		d.fail()
		return 0
	}
	v := int64(binary.NativeEndian.Uint64(d.buf[d.pos:]))
	d.pos += 8
	return v
}

func (d *decoder) cstring() string {
	if d.err != nil {
		return ""
	}
	nul := bytes.IndexByte(d.buf[d.pos:], 0)
	if nul < 0 {
		d.fail()
		return ""
	}
	s := string(d.buf[d.pos : d.pos+nul])
	d.pos += nul + 1
	return s
}

func (d *decoder) rest() []byte {
	if d.err != nil {
		return nil
	}
	b := d.buf[d.pos:]
	d.pos = len(d.buf)
	return b
}

func (d *decoder) bytesN(n int) []byte {
	if d.err != nil || n < 0 || d.pos+n > len(d.buf) {
		d.fail()
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

// -- OPEN --

type OpenRequest struct {
	Flags int32
	Mode  uint32
	Path  string
}

func (r OpenRequest) Encode() []byte {
	var e encoder
	e.int32(r.Flags)
	e.uint32(r.Mode)
	e.cstring(r.Path)
	return e.Bytes()
}

func DecodeOpenRequest(b []byte) (OpenRequest, error) {
	d := newDecoder(b)
	r := OpenRequest{Flags: d.int32(), Mode: d.uint32(), Path: d.cstring()}
	return r, d.err
}

// RetResponse is shared by every opcode whose reply is just a signed
// return value (OPEN's fd, WRITE's count, LSEEK's new offset,
// CLOSE/UNLINK's status).
type RetResponse struct {
	Ret int64
}

func (r RetResponse) Encode() []byte {
	var e encoder
	e.int64(r.Ret)
	return e.Bytes()
}

func DecodeRetResponse(b []byte) (RetResponse, error) {
	d := newDecoder(b)
	r := RetResponse{Ret: d.int64()}
	return r, d.err
}

// -- READ --

type ReadRequestBody struct {
	Fd    int32
	Count uint32
}

func (r ReadRequestBody) Encode() []byte {
	var e encoder
	e.int32(r.Fd)
	e.uint32(r.Count)
	return e.Bytes()
}

func DecodeReadRequest(b []byte) (ReadRequestBody, error) {
	d := newDecoder(b)
	r := ReadRequestBody{Fd: d.int32(), Count: d.uint32()}
	return r, d.err
}

type ReadResponseBody struct {
	Nbyte int64
	Data  []byte
}

func (r ReadResponseBody) Encode() []byte {
	var e encoder
	e.int64(r.Nbyte)
	e.bytes(r.Data)
	return e.Bytes()
}

func DecodeReadResponse(b []byte) (ReadResponseBody, error) {
	d := newDecoder(b)
	nbyte := d.int64()
	data := d.rest()
	return ReadResponseBody{Nbyte: nbyte, Data: data}, d.err
}

// -- WRITE --

type WriteRequestBody struct {
	Fd    int32
	Count uint32
	Data  []byte
}

func (r WriteRequestBody) Encode() []byte {
	var e encoder
	e.int32(r.Fd)
	e.uint32(r.Count)
	e.bytes(r.Data)
	return e.Bytes()
}

func DecodeWriteRequest(b []byte) (WriteRequestBody, error) {
	d := newDecoder(b)
	fd := d.int32()
	count := d.uint32()
	data := d.bytesN(int(count))
	return WriteRequestBody{Fd: fd, Count: count, Data: data}, d.err
}

// -- CLOSE --

type CloseRequestBody struct {
	Fd int32
}

func (r CloseRequestBody) Encode() []byte {
	var e encoder
	e.int32(r.Fd)
	return e.Bytes()
}

func DecodeCloseRequest(b []byte) (CloseRequestBody, error) {
	d := newDecoder(b)
	return CloseRequestBody{Fd: d.int32()}, d.err
}

// -- LSEEK --

type LseekRequestBody struct {
	Fd     int32
	Offset int64
	Whence int32
}

func (r LseekRequestBody) Encode() []byte {
	var e encoder
	e.int32(r.Fd)
	e.int64(r.Offset)
	e.int32(r.Whence)
	return e.Bytes()
}

func DecodeLseekRequest(b []byte) (LseekRequestBody, error) {
	d := newDecoder(b)
	r := LseekRequestBody{Fd: d.int32(), Offset: d.int64(), Whence: d.int32()}
	return r, d.err
}

// -- STAT / UNLINK / GETDIRTREE (request is just a pathname) --

type PathRequest struct {
	Path string
}

func (r PathRequest) Encode() []byte {
	var e encoder
	e.cstring(r.Path)
	return e.Bytes()
}

func DecodePathRequest(b []byte) (PathRequest, error) {
	d := newDecoder(b)
	return PathRequest{Path: d.cstring()}, d.err
}

// FileStat is the fixed-layout file-status structure carried in a STAT
// response and returned as-is by the client stub's Stat. Only the fields
// the core cares about are carried; this is not a complete struct stat.
type FileStat struct {
	Dev     int64
	Ino     uint64
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Size    int64
	Atime   int64
	Mtime   int64
	Ctime   int64
	Blksize int64
	Blocks  int64
}

func (s FileStat) Encode() []byte {
	var e encoder
	e.int64(s.Dev)
	e.int64(int64(s.Ino))
	e.uint32(s.Mode)
	e.uint32(s.Nlink)
	e.uint32(s.UID)
	e.uint32(s.GID)
	e.int64(s.Size)
	e.int64(s.Atime)
	e.int64(s.Mtime)
	e.int64(s.Ctime)
	e.int64(s.Blksize)
	e.int64(s.Blocks)
	return e.Bytes()
}

func DecodeFileStat(b []byte) (FileStat, error) {
	d := newDecoder(b)
	s := FileStat{
		Dev:     d.int64(),
		Ino:     uint64(d.int64()),
		Mode:    d.uint32(),
		Nlink:   d.uint32(),
		UID:     d.uint32(),
		GID:     d.uint32(),
		Size:    d.int64(),
		Atime:   d.int64(),
		Mtime:   d.int64(),
		Ctime:   d.int64(),
		Blksize: d.int64(),
		Blocks:  d.int64(),
	}
	return s, d.err
}

// StatResponseBody carries the return value and, on success, the stat
// structure.
type StatResponseBody struct {
	Ret  int64
	Stat FileStat
}

func (r StatResponseBody) Encode() []byte {
	var e encoder
	e.int64(r.Ret)
	e.bytes(r.Stat.Encode())
	return e.Bytes()
}

func DecodeStatResponse(b []byte) (StatResponseBody, error) {
	d := newDecoder(b)
	ret := d.int64()
	stat, err := DecodeFileStat(d.rest())
	if err != nil {
		d.fail()
	}
	return StatResponseBody{Ret: ret, Stat: stat}, d.err
}

// -- GETDIRENTRIES --

type GetdirentriesRequestBody struct {
	Fd    int32
	Count uint32
}

func (r GetdirentriesRequestBody) Encode() []byte {
	var e encoder
	e.int32(r.Fd)
	e.uint32(r.Count)
	return e.Bytes()
}

func DecodeGetdirentriesRequest(b []byte) (GetdirentriesRequestBody, error) {
	d := newDecoder(b)
	r := GetdirentriesRequestBody{Fd: d.int32(), Count: d.uint32()}
	return r, d.err
}

type GetdirentriesResponseBody struct {
	Ret   int64
	Basep int64
	Data  []byte
}

func (r GetdirentriesResponseBody) Encode() []byte {
	var e encoder
	e.int64(r.Ret)
	e.int64(r.Basep)
	e.bytes(r.Data)
	return e.Bytes()
}

func DecodeGetdirentriesResponse(b []byte) (GetdirentriesResponseBody, error) {
	d := newDecoder(b)
	ret := d.int64()
	basep := d.int64()
	data := d.rest()
	return GetdirentriesResponseBody{Ret: ret, Basep: basep, Data: data}, d.err
}
