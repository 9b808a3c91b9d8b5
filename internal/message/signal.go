package message

import (
	"github.com/pkg/errors"
)

// Signal carries one opaque signaling payload (SDP or ICE data) from Source
// to Destination, possibly through a relaying peer.
type Signal struct {
	Destination Identity
	Source      Identity
	Nonce       SignalNonce
	Signal      []byte
}

const signalFixedSize = 2*IdentitySize + SignalNonceSize

func (m *Signal) Type() Type { return TypeSignal }
func (m *Signal) Size() int  { return signalFixedSize + len(m.Signal) }

func (m *Signal) Serialize() []byte {
	return newWriter(m.Size()).
		fixed(m.Destination[:]).
		fixed(m.Source[:]).
		fixed(m.Nonce[:]).
		rest(m.Signal).
		bytes()
}

// DecodeSignal decodes a Signal body.
func DecodeSignal(b []byte) (*Signal, error) {
	r := newReader(b)
	m := &Signal{}
	if err := r.fixed(m.Destination[:]); err != nil {
		return nil, errors.Wrap(err, "destination")
	}
	if err := r.fixed(m.Source[:]); err != nil {
		return nil, errors.Wrap(err, "source")
	}
	if err := r.fixed(m.Nonce[:]); err != nil {
		return nil, errors.Wrap(err, "nonce")
	}
	m.Signal = r.rest()
	return m, nil
}

// SignalRequest asks Destination, through a relaying peer, to open a
// signaling session identified by Nonce.
type SignalRequest struct {
	Destination Identity
	Source      Identity
	Nonce       SignalNonce
}

func (m *SignalRequest) Type() Type { return TypeSignalRequest }
func (m *SignalRequest) Size() int  { return signalFixedSize }

func (m *SignalRequest) Serialize() []byte {
	return newWriter(m.Size()).
		fixed(m.Destination[:]).
		fixed(m.Source[:]).
		fixed(m.Nonce[:]).
		bytes()
}

// DecodeSignalRequest decodes a SignalRequest body.
func DecodeSignalRequest(b []byte) (*SignalRequest, error) {
	r := newReader(b)
	m := &SignalRequest{}
	if err := r.fixed(m.Destination[:]); err != nil {
		return nil, errors.Wrap(err, "destination")
	}
	if err := r.fixed(m.Source[:]); err != nil {
		return nil, errors.Wrap(err, "source")
	}
	if err := r.fixed(m.Nonce[:]); err != nil {
		return nil, errors.Wrap(err, "nonce")
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return m, nil
}
