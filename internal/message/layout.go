package message

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// Payload layout helpers
//
// Every payload writes its fixed-length fields first, in a stable order, and
// lets at most one variable-length field consume the rest of the body. The
// frame header already bounds the body, so the trailing field carries no
// length prefix.
// ---------------------------------------------------------------------------

// writer appends fields to a buffer pre-sized by the payload's Size.
type writer struct {
	buf []byte
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, 0, size)}
}

func (w *writer) fixed(b []byte) *writer {
	w.buf = append(w.buf, b...)
	return w
}

func (w *writer) uint32(v uint32) *writer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return w
}

func (w *writer) rest(b []byte) *writer {
	w.buf = append(w.buf, b...)
	return w
}

func (w *writer) bytes() []byte {
	return w.buf
}

// reader consumes fields from a payload body in the order they were written.
type reader struct {
	buf []byte
	off int
}

func newReader(b []byte) *reader {
	return &reader{buf: b}
}

// fixed copies the next n bytes into dst.
func (r *reader) fixed(dst []byte) error {
	n := len(dst)
	if len(r.buf)-r.off < n {
		return errors.Errorf("need %d bytes at offset %d, have %d", n, r.off, len(r.buf)-r.off)
	}
	copy(dst, r.buf[r.off:r.off+n])
	r.off += n
	return nil
}

func (r *reader) uint32() (uint32, error) {
	var b [4]byte
	if err := r.fixed(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// rest returns a copy of every remaining byte, or nil when none remain.
func (r *reader) rest() []byte {
	if r.off >= len(r.buf) {
		return nil
	}
	out := make([]byte, len(r.buf)-r.off)
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

// done fails if unread bytes remain.
func (r *reader) done() error {
	if r.off != len(r.buf) {
		return errors.Errorf("%d trailing bytes", len(r.buf)-r.off)
	}
	return nil
}

// remaining reports how many bytes are left.
func (r *reader) remaining() int {
	return len(r.buf) - r.off
}
