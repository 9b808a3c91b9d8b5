package peer

import "errors"

var (
	ErrManagerClosed    = errors.New("peer manager closed")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrRequestTimeout   = errors.New("request timed out")
	ErrCannotSatisfy    = errors.New("peer cannot satisfy request")
)

// RemoteDisconnectError closes a connection whose peer sent a Disconnect.
type RemoteDisconnectError struct {
	Reason string
}

func (e *RemoteDisconnectError) Error() string {
	if e.Reason == "" {
		return "peer disconnected"
	}
	return "peer disconnected: " + e.Reason
}

// RejectedError closes a connection this node refused during the handshake.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "rejected peer: " + e.Reason
}
