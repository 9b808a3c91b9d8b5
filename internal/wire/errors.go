package wire

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var errUnknownType = errors.New("unrecognized message type")

// HeaderDecodeError reports a frame whose header cannot be decoded: the
// buffer is truncated, the type tag is unknown, or the declared body length
// runs past the end of the buffer.
type HeaderDecodeError struct {
	Hex    string // the whole offending buffer
	Reason string
}

func newHeaderError(data []byte, format string, args ...any) *HeaderDecodeError {
	return &HeaderDecodeError{Hex: hexutil.Encode(data), Reason: fmt.Sprintf(format, args...)}
}

func (e *HeaderDecodeError) Error() string {
	return fmt.Sprintf("header decode: %s (frame %s)", e.Reason, e.Hex)
}

// BodyDecodeError reports a payload that failed its type-specific decoding.
type BodyDecodeError struct {
	Type string // symbolic type name
	Hex  string // the body bytes
	Err  error
}

func (e *BodyDecodeError) Error() string {
	return fmt.Sprintf("body decode: %s: %v (body %s)", e.Type, e.Err, e.Hex)
}

func (e *BodyDecodeError) Unwrap() error { return e.Err }

// DecodeError is returned by Parse. It wraps either a HeaderDecodeError or a
// BodyDecodeError and carries enough context to log and discard the frame.
type DecodeError struct {
	Hex  string
	Type string // empty when the header could not be decoded
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("message decode: %v", e.Err)
	}
	return fmt.Sprintf("message decode (%s): %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
