package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/util"
)

// ErrRelayLost is returned when the relaying peer refuses a signaling message.
var ErrRelayLost = errors.New("signaling relay unavailable")

// Endpoint is the WebRTC side of a session; transport.DataChannel implements it.
type Endpoint interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	OnICECandidate(func(*webrtc.ICECandidate))
	AddICECandidate(webrtc.ICECandidateInit) error
}

// Role says which side of the handshake a session plays.
type Role uint8

const (
	Initiator Role = iota // sends the SignalRequest and the offer
	Responder             // answers
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// Session drives one data channel connection from RequestSignaling (or
// Signaling, for the responder) to Connecting. The data channel itself moves
// the connection on to WaitingForIdentity when it opens.
type Session struct {
	role   Role
	conn   *connection.Conn
	ep     Endpoint
	local  message.Identity
	remote message.Identity
	nonce  message.SignalNonce
	send   func(message.Message) bool // the relaying peer's Send

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit // remote candidates that arrived before the remote description
}

// NewSession creates a session. send must deliver to the relaying peer.
func NewSession(role Role, conn *connection.Conn, ep Endpoint, local, remote message.Identity, nonce message.SignalNonce, send func(message.Message) bool) *Session {
	return &Session{
		role:   role,
		conn:   conn,
		ep:     ep,
		local:  local,
		remote: remote,
		nonce:  nonce,
		send:   send,
	}
}

func (s *Session) Role() Role                 { return s.role }
func (s *Session) Conn() *connection.Conn     { return s.conn }
func (s *Session) Remote() message.Identity   { return s.remote }
func (s *Session) Nonce() message.SignalNonce { return s.nonce }

// Start begins the handshake. The connection must already be opened so that
// its state changes are observed.
func (s *Session) Start() error {
	s.ep.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, _ := json.Marshal(c.ToJSON())
		if err := s.signal(Payload{Type: PayloadCandidate, Candidate: string(data)}); err != nil {
			util.LogDebug("[%s] dropping local candidate: %v", s.conn.DisplayName(), err)
		}
	})

	if s.role == Initiator {
		s.conn.SetState(connection.RequestSignaling)
		if !s.send(&message.SignalRequest{Destination: s.remote, Source: s.local, Nonce: s.nonce}) {
			return ErrRelayLost
		}
		return nil
	}

	s.conn.SetState(connection.Signaling)
	return s.signal(Payload{Type: PayloadReady})
}

// Handle processes a Signal addressed to this session.
func (s *Session) Handle(m *message.Signal) error {
	if m.Source != s.remote {
		return fmt.Errorf("signal from %s for a session with %s", m.Source.Short(), s.remote.Short())
	}
	p, err := DecodePayload(m.Signal)
	if err != nil {
		return err
	}

	switch p.Type {
	case PayloadReady:
		if s.role != Initiator {
			return s.unexpected(p.Type)
		}
		s.advance(connection.Signaling)
		offer, err := s.ep.CreateOffer()
		if err != nil {
			return fmt.Errorf("CreateOffer: %w", err)
		}
		if err := s.ep.SetLocalDescription(offer); err != nil {
			return fmt.Errorf("SetLocalDescription: %w", err)
		}
		return s.signal(Payload{Type: PayloadOffer, SDP: offer.SDP})

	case PayloadOffer:
		if s.role != Responder {
			return s.unexpected(p.Type)
		}
		s.advance(connection.Connecting)
		if err := s.setRemote(webrtc.SDPTypeOffer, p.SDP); err != nil {
			return err
		}
		answer, err := s.ep.CreateAnswer()
		if err != nil {
			return fmt.Errorf("CreateAnswer: %w", err)
		}
		if err := s.ep.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("SetLocalDescription: %w", err)
		}
		return s.signal(Payload{Type: PayloadAnswer, SDP: answer.SDP})

	case PayloadAnswer:
		if s.role != Initiator {
			return s.unexpected(p.Type)
		}
		s.advance(connection.Connecting)
		return s.setRemote(webrtc.SDPTypeAnswer, p.SDP)

	case PayloadCandidate:
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(p.Candidate), &init); err != nil {
			return fmt.Errorf("bad ICE candidate: %w", err)
		}
		s.mu.Lock()
		if !s.remoteSet {
			s.pending = append(s.pending, init)
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		return s.ep.AddICECandidate(init)
	}
	return nil
}

// advance moves the connection forward unless the data channel got there first.
func (s *Session) advance(next connection.State) {
	switch s.conn.State().Phase() {
	case connection.PhaseRequestSignaling, connection.PhaseSignaling:
		s.conn.SetState(next)
	}
}

func (s *Session) setRemote(typ webrtc.SDPType, sdp string) error {
	if err := s.ep.SetRemoteDescription(webrtc.SessionDescription{Type: typ, SDP: sdp}); err != nil {
		return fmt.Errorf("SetRemoteDescription: %w", err)
	}

	s.mu.Lock()
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.ep.AddICECandidate(c); err != nil {
			util.LogWarning("[%s] AddICECandidate: %v", s.conn.DisplayName(), err)
		}
	}
	return nil
}

func (s *Session) signal(p Payload) error {
	ok := s.send(&message.Signal{
		Destination: s.remote,
		Source:      s.local,
		Nonce:       s.nonce,
		Signal:      EncodePayload(p),
	})
	if !ok {
		return ErrRelayLost
	}
	return nil
}

func (s *Session) unexpected(t PayloadType) error {
	return fmt.Errorf("unexpected %s payload for %s", t, s.role)
}
