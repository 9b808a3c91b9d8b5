// Package message defines the payload types exchanged between peers and the
// binary layout each of them uses on the wire.
//
// A payload only knows how to encode and decode its own body. Framing (type
// tag, body length, correlation id, gossip nonce) belongs to package wire.
package message

import "fmt"

// Type is the one-byte tag identifying a payload on the wire.
type Type uint8

// Payload type tags. The set is closed; wire rejects any other tag.
const (
	TypeDisconnect Type = iota
	TypeIdentify
	TypePeerList
	TypePeerListRequest
	TypeSignal
	TypeSignalRequest
	TypeCannotSatisfyRequest
	TypeGetBlockHashesRequest
	TypeGetBlockHashesResponse
	TypeGetBlocksRequest
	TypeGetBlocksResponse
	TypeNewBlock
	TypeNewTransaction
)

// AllTypes lists every recognized tag in ascending order.
var AllTypes = []Type{
	TypeDisconnect,
	TypeIdentify,
	TypePeerList,
	TypePeerListRequest,
	TypeSignal,
	TypeSignalRequest,
	TypeCannotSatisfyRequest,
	TypeGetBlockHashesRequest,
	TypeGetBlockHashesResponse,
	TypeGetBlocksRequest,
	TypeGetBlocksResponse,
	TypeNewBlock,
	TypeNewTransaction,
}

var typeNames = map[Type]string{
	TypeDisconnect:             "disconnect",
	TypeIdentify:               "identify",
	TypePeerList:               "peer-list",
	TypePeerListRequest:        "peer-list-request",
	TypeSignal:                 "signal",
	TypeSignalRequest:          "signal-request",
	TypeCannotSatisfyRequest:   "cannot-satisfy-request",
	TypeGetBlockHashesRequest:  "get-block-hashes-request",
	TypeGetBlockHashesResponse: "get-block-hashes-response",
	TypeGetBlocksRequest:       "get-blocks-request",
	TypeGetBlocksResponse:      "get-blocks-response",
	TypeNewBlock:               "new-block",
	TypeNewTransaction:         "new-transaction",
}

// String returns the symbolic name of the tag, or "unknown(N)".
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Message is a decoded payload. Values are immutable once constructed.
type Message interface {
	// Type returns the constant tag of the payload.
	Type() Type
	// Size returns the exact number of bytes Serialize produces.
	Size() int
	// Serialize encodes the payload body.
	Serialize() []byte
}

// RPC is implemented by payloads that pair a request with its response.
type RPC interface {
	Message
	CorrelationID() uint64
}

// Gossip is implemented by broadcast payloads deduplicated by nonce.
type Gossip interface {
	Message
	Nonce() string
}
