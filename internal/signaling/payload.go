// Package signaling runs the relay-assisted WebRTC handshake for data channel
// connections. SDP and ICE payloads travel as JSON inside Signal messages
// through an already connected peer, keyed by a per-session nonce.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/1ureka/peerwire/internal/message"
)

// PayloadType identifies the kind of signaling payload.
type PayloadType string

const (
	PayloadReady     PayloadType = "ready" // responder is set up and waits for an offer
	PayloadOffer     PayloadType = "offer"
	PayloadAnswer    PayloadType = "answer"
	PayloadCandidate PayloadType = "candidate"
)

// Payload is the JSON document carried in Signal.Signal.
type Payload struct {
	Type      PayloadType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}

// EncodePayload serializes p.
func EncodePayload(p Payload) []byte {
	data, _ := json.Marshal(p)
	return data
}

// DecodePayload parses a Signal body.
func DecodePayload(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("bad signaling payload: %w", err)
	}
	switch p.Type {
	case PayloadReady, PayloadOffer, PayloadAnswer, PayloadCandidate:
		return p, nil
	default:
		return Payload{}, fmt.Errorf("unknown signaling payload type %q", p.Type)
	}
}

// NewNonce returns a random session nonce.
func NewNonce() message.SignalNonce {
	return message.SignalNonce(uuid.New())
}
