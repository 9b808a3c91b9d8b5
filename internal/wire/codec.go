package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/1ureka/peerwire/internal/message"
)

// HeaderSize is the fixed header prefix: Type(1) + BodyLen(8).
const HeaderSize = 9

// correlationIDSize is the width of the RPC correlation id.
const correlationIDSize = 8

// Header is the decoded framing of one inbound frame. Body aliases the frame.
type Header struct {
	Type             message.Type
	BodyLen          uint64
	CorrelationID    uint64
	HasCorrelationID bool
	Nonce            string
	HasNonce         bool
	Body             []byte
}

// Encode frames m for transmission.
func Encode(m message.Message) ([]byte, error) {
	class, err := Classify(m.Type())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}

	body := m.Serialize()
	size := HeaderSize + len(body)

	var (
		correlationID uint64
		nonce         string
	)
	switch class {
	case ClassRPC:
		rpc, ok := m.(message.RPC)
		if !ok {
			return nil, fmt.Errorf("encode %s: payload carries no correlation id", m.Type())
		}
		correlationID = rpc.CorrelationID()
		size += correlationIDSize
	case ClassGossip:
		gossip, ok := m.(message.Gossip)
		if !ok {
			return nil, fmt.Errorf("encode %s: payload carries no nonce", m.Type())
		}
		nonce = gossip.Nonce()
		size += binary.MaxVarintLen64 + len(nonce)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, byte(m.Type()))
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(body)))
	switch class {
	case ClassRPC:
		buf = binary.BigEndian.AppendUint64(buf, correlationID)
	case ClassGossip:
		buf = binary.AppendUvarint(buf, uint64(len(nonce)))
		buf = append(buf, nonce...)
	}
	buf = append(buf, body...)
	return buf, nil
}

// DecodeHeader splits a frame into its header fields and body slice.
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, newHeaderError(data, "frame too short: %d bytes (need at least %d)", len(data), HeaderSize)
	}

	h := &Header{
		Type:    message.Type(data[0]),
		BodyLen: binary.BigEndian.Uint64(data[1:HeaderSize]),
	}

	class, err := Classify(h.Type)
	if err != nil {
		return nil, newHeaderError(data, "%v: %d", err, uint8(h.Type))
	}

	off := HeaderSize
	switch class {
	case ClassRPC:
		if len(data)-off < correlationIDSize {
			return nil, newHeaderError(data, "%s frame too short for correlation id", h.Type)
		}
		h.CorrelationID = binary.BigEndian.Uint64(data[off : off+correlationIDSize])
		h.HasCorrelationID = true
		off += correlationIDSize

	case ClassGossip:
		n, width := binary.Uvarint(data[off:])
		if width <= 0 {
			return nil, newHeaderError(data, "%s frame has a malformed nonce length", h.Type)
		}
		off += width
		if n > uint64(len(data)-off) {
			return nil, newHeaderError(data, "%s nonce declares %d bytes, %d remain", h.Type, n, len(data)-off)
		}
		h.Nonce = string(data[off : off+int(n)])
		h.HasNonce = true
		off += int(n)
	}

	if h.BodyLen > uint64(len(data)-off) {
		return nil, newHeaderError(data, "%s body declares %d bytes, %d remain", h.Type, h.BodyLen, len(data)-off)
	}
	h.Body = data[off : off+int(h.BodyLen)]
	return h, nil
}

// DecodeBody decodes the body of h into its typed message.
//
// It panics if h lacks the correlation id or nonce its type requires; headers
// produced by DecodeHeader always carry them.
func DecodeBody(h *Header) (message.Message, error) {
	var (
		m   message.Message
		err error
	)

	switch h.Type {
	case message.TypeDisconnect:
		m, err = message.DecodeDisconnect(h.Body)
	case message.TypeIdentify:
		m, err = message.DecodeIdentify(h.Body)
	case message.TypePeerList:
		m, err = message.DecodePeerList(h.Body)
	case message.TypePeerListRequest:
		m, err = message.DecodePeerListRequest(h.Body)
	case message.TypeSignal:
		m, err = message.DecodeSignal(h.Body)
	case message.TypeSignalRequest:
		m, err = message.DecodeSignalRequest(h.Body)
	case message.TypeCannotSatisfyRequest:
		m, err = message.DecodeCannotSatisfyRequest(h.Body, h.correlationID())
	case message.TypeGetBlockHashesRequest:
		m, err = message.DecodeGetBlockHashesRequest(h.Body, h.correlationID())
	case message.TypeGetBlockHashesResponse:
		m, err = message.DecodeGetBlockHashesResponse(h.Body, h.correlationID())
	case message.TypeGetBlocksRequest:
		m, err = message.DecodeGetBlocksRequest(h.Body, h.correlationID())
	case message.TypeGetBlocksResponse:
		m, err = message.DecodeGetBlocksResponse(h.Body, h.correlationID())
	case message.TypeNewBlock:
		m, err = message.DecodeNewBlock(h.Body, h.nonce())
	case message.TypeNewTransaction:
		m, err = message.DecodeNewTransaction(h.Body, h.nonce())
	default:
		return nil, newHeaderError([]byte{byte(h.Type)}, "%v: %d", errUnknownType, uint8(h.Type))
	}

	if err != nil {
		return nil, &BodyDecodeError{Type: h.Type.String(), Hex: hexutil.Encode(h.Body), Err: err}
	}
	return m, nil
}

// Parse decodes a complete frame. Failures are returned as *DecodeError.
func Parse(data []byte) (message.Message, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, &DecodeError{Hex: hexutil.Encode(data), Err: err}
	}
	m, err := DecodeBody(h)
	if err != nil {
		return nil, &DecodeError{Hex: hexutil.Encode(data), Type: h.Type.String(), Err: err}
	}
	return m, nil
}

func (h *Header) correlationID() uint64 {
	if !h.HasCorrelationID {
		panic(fmt.Sprintf("wire: %s header without correlation id", h.Type))
	}
	return h.CorrelationID
}

func (h *Header) nonce() string {
	if !h.HasNonce {
		panic(fmt.Sprintf("wire: %s header without nonce", h.Type))
	}
	return h.Nonce
}
