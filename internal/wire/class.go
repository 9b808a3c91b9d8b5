// Package wire frames payloads for transmission and decodes inbound frames
// into typed messages.
//
// Frame layout (all integers big-endian):
//
//	[type u8][bodyLen u64][correlationID u64]?[nonce varstring]?[body]
//
// The correlation id is present only for RPC-shaped types, the nonce only for
// gossip-shaped types. bodyLen counts the body alone.
package wire

import (
	"github.com/1ureka/peerwire/internal/message"
)

// Class tells which optional header field a type carries.
type Class uint8

const (
	ClassPlain  Class = iota // neither correlation id nor nonce
	ClassRPC                 // correlation id
	ClassGossip              // nonce
)

func (c Class) String() string {
	switch c {
	case ClassPlain:
		return "plain"
	case ClassRPC:
		return "rpc"
	case ClassGossip:
		return "gossip"
	default:
		return "unknown"
	}
}

// Classify maps a type tag to its class. Unrecognized tags are an error.
func Classify(t message.Type) (Class, error) {
	switch t {
	case message.TypeCannotSatisfyRequest,
		message.TypeGetBlockHashesRequest,
		message.TypeGetBlockHashesResponse,
		message.TypeGetBlocksRequest,
		message.TypeGetBlocksResponse:
		return ClassRPC, nil

	case message.TypeNewBlock,
		message.TypeNewTransaction:
		return ClassGossip, nil

	case message.TypeDisconnect,
		message.TypeIdentify,
		message.TypePeerList,
		message.TypePeerListRequest,
		message.TypeSignal,
		message.TypeSignalRequest:
		return ClassPlain, nil
	}
	return 0, errUnknownType
}

// ShouldLogMessageType reports whether per-message logs should mention t.
// Peer lists and signals are frequent and carry little diagnostic value.
func ShouldLogMessageType(t message.Type) bool {
	switch t {
	case message.TypePeerList, message.TypeSignal:
		return false
	default:
		return true
	}
}
