package connection

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("connection closed")

// HandshakeTimeoutError reports a handshake phase that did not complete in time.
type HandshakeTimeoutError struct {
	Phase    Phase
	Duration time.Duration
}

func (e *HandshakeTimeoutError) Error() string {
	return fmt.Sprintf("handshake timed out in phase %s after %dms", e.Phase, e.Duration.Milliseconds())
}
