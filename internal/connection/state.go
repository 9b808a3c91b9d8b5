package connection

import (
	"fmt"

	"github.com/1ureka/peerwire/internal/message"
)

// Phase is the kind of a connection state.
type Phase uint8

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseRequestSignaling // data channel only: waiting for the relay to reach the peer
	PhaseSignaling        // data channel only: exchanging SDP and ICE
	PhaseWaitingForIdentity
	PhaseConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseRequestSignaling:
		return "request-signaling"
	case PhaseSignaling:
		return "signaling"
	case PhaseWaitingForIdentity:
		return "waiting-for-identity"
	case PhaseConnected:
		return "connected"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// IsHandshake reports whether a handshake timer runs while in p.
func (p Phase) IsHandshake() bool {
	switch p {
	case PhaseConnecting, PhaseRequestSignaling, PhaseSignaling, PhaseWaitingForIdentity:
		return true
	default:
		return false
	}
}

// State is the connection state. Only Connected states carry an identity;
// build them with Connected.
type State struct {
	phase    Phase
	identity message.Identity
}

// The identity-less states.
var (
	Disconnected       = State{phase: PhaseDisconnected}
	Connecting         = State{phase: PhaseConnecting}
	RequestSignaling   = State{phase: PhaseRequestSignaling}
	Signaling          = State{phase: PhaseSignaling}
	WaitingForIdentity = State{phase: PhaseWaitingForIdentity}
)

// Connected returns the state of a connection whose peer proved identity id.
func Connected(id message.Identity) State {
	return State{phase: PhaseConnected, identity: id}
}

// Phase returns the kind of s.
func (s State) Phase() Phase { return s.phase }

// Identity returns the peer identity; ok is false unless s is Connected.
func (s State) Identity() (id message.Identity, ok bool) {
	if s.phase != PhaseConnected {
		return message.Identity{}, false
	}
	return s.identity, true
}

func (s State) String() string {
	if s.phase == PhaseConnected {
		return fmt.Sprintf("connected(%s)", s.identity.Short())
	}
	return s.phase.String()
}

// StateChange is emitted on every SetState call.
type StateChange struct {
	Prev State
	Next State
}
