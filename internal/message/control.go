package message

import (
	"github.com/pkg/errors"
)

// Disconnect tells the peer the connection is about to be closed.
type Disconnect struct {
	Reason string
}

func (m *Disconnect) Type() Type        { return TypeDisconnect }
func (m *Disconnect) Size() int         { return len(m.Reason) }
func (m *Disconnect) Serialize() []byte { return newWriter(m.Size()).rest([]byte(m.Reason)).bytes() }

// DecodeDisconnect decodes a Disconnect body.
func DecodeDisconnect(b []byte) (*Disconnect, error) {
	return &Disconnect{Reason: string(b)}, nil
}

// Identify announces the sender's identity during the handshake.
type Identify struct {
	Identity Identity
	Agent    string
}

func (m *Identify) Type() Type { return TypeIdentify }
func (m *Identify) Size() int  { return IdentitySize + len(m.Agent) }

func (m *Identify) Serialize() []byte {
	return newWriter(m.Size()).fixed(m.Identity[:]).rest([]byte(m.Agent)).bytes()
}

// DecodeIdentify decodes an Identify body.
func DecodeIdentify(b []byte) (*Identify, error) {
	r := newReader(b)
	m := &Identify{}
	if err := r.fixed(m.Identity[:]); err != nil {
		return nil, errors.Wrap(err, "identity")
	}
	m.Agent = string(r.rest())
	return m, nil
}

// PeerListRequest asks the peer for the identities it is connected to.
type PeerListRequest struct{}

func (m *PeerListRequest) Type() Type        { return TypePeerListRequest }
func (m *PeerListRequest) Size() int         { return 0 }
func (m *PeerListRequest) Serialize() []byte { return []byte{} }

// DecodePeerListRequest decodes a PeerListRequest body, which must be empty.
func DecodePeerListRequest(b []byte) (*PeerListRequest, error) {
	if len(b) != 0 {
		return nil, errors.Errorf("unexpected %d byte body", len(b))
	}
	return &PeerListRequest{}, nil
}

// PeerList answers a PeerListRequest.
type PeerList struct {
	Peers []Identity
}

func (m *PeerList) Type() Type { return TypePeerList }
func (m *PeerList) Size() int  { return IdentitySize * len(m.Peers) }

func (m *PeerList) Serialize() []byte {
	w := newWriter(m.Size())
	for _, id := range m.Peers {
		w.fixed(id[:])
	}
	return w.bytes()
}

// DecodePeerList decodes a PeerList body.
func DecodePeerList(b []byte) (*PeerList, error) {
	if len(b)%IdentitySize != 0 {
		return nil, errors.Errorf("body length %d is not a multiple of %d", len(b), IdentitySize)
	}
	r := newReader(b)
	m := &PeerList{}
	for r.remaining() > 0 {
		var id Identity
		if err := r.fixed(id[:]); err != nil {
			return nil, err
		}
		m.Peers = append(m.Peers, id)
	}
	return m, nil
}
