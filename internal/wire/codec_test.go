package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/1ureka/peerwire/internal/message"
)

func identity(seed byte) message.Identity {
	var id message.Identity
	for i := range id {
		id[i] = seed ^ byte(i)
	}
	return id
}

// representatives returns one instance per recognized type.
func representatives() []message.Message {
	return []message.Message{
		&message.Disconnect{Reason: "bye"},
		&message.Identify{Identity: identity(1), Agent: "peerwire/1.0"},
		&message.PeerList{Peers: []message.Identity{identity(2), identity(3), identity(4)}},
		&message.PeerListRequest{},
		&message.Signal{Destination: identity(5), Source: identity(6), Nonce: message.SignalNonce{1, 2, 3}, Signal: []byte("candidate")},
		&message.SignalRequest{Destination: identity(7), Source: identity(8), Nonce: message.SignalNonce{4}},
		&message.CannotSatisfyRequest{ID: 1, Reason: "no such block"},
		&message.GetBlockHashesRequest{ID: 2, From: common.HexToHash("0xff"), Count: 10},
		&message.GetBlockHashesResponse{ID: 3, Hashes: []common.Hash{common.HexToHash("0x1")}},
		&message.GetBlocksRequest{ID: 4, Hashes: []common.Hash{common.HexToHash("0x2"), common.HexToHash("0x3")}},
		&message.GetBlocksResponse{ID: 5, Blocks: [][]byte{[]byte("b1"), []byte("b2")}},
		&message.NewBlock{GossipNonce: "3f2504e0-4f89-11d3-9a0c-0305e82c3301", Block: []byte("block")},
		&message.NewTransaction{GossipNonce: "tx-nonce", Transaction: []byte("tx")},
	}
}

// TestRoundTrip verifies DecodeBody(DecodeHeader(Encode(m))) == m for every type.
func TestRoundTrip(t *testing.T) {
	for _, m := range representatives() {
		t.Run(m.Type().String(), func(t *testing.T) {
			frame, err := Encode(m)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			h, err := DecodeHeader(frame)
			if err != nil {
				t.Fatalf("DecodeHeader failed: %v", err)
			}
			if h.Type != m.Type() {
				t.Errorf("Type mismatch: got %s, want %s", h.Type, m.Type())
			}
			if h.BodyLen != uint64(m.Size()) {
				t.Errorf("BodyLen mismatch: got %d, want %d", h.BodyLen, m.Size())
			}

			decoded, err := DecodeBody(h)
			if err != nil {
				t.Fatalf("DecodeBody failed: %v", err)
			}
			if !reflect.DeepEqual(decoded, m) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v", decoded, m)
			}
		})
	}
}

// TestClassificationExhaustive checks every recognized tag carries exactly the
// optional header field its class requires.
func TestClassificationExhaustive(t *testing.T) {
	byType := make(map[message.Type]message.Message)
	for _, m := range representatives() {
		byType[m.Type()] = m
	}

	for _, typ := range message.AllTypes {
		t.Run(typ.String(), func(t *testing.T) {
			class, err := Classify(typ)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			m, ok := byType[typ]
			if !ok {
				t.Fatalf("no representative for %s", typ)
			}
			frame, err := Encode(m)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			h, err := DecodeHeader(frame)
			if err != nil {
				t.Fatalf("DecodeHeader failed: %v", err)
			}

			switch class {
			case ClassRPC:
				if !h.HasCorrelationID || h.HasNonce {
					t.Errorf("rpc header: correlation=%v nonce=%v", h.HasCorrelationID, h.HasNonce)
				}
				if h.CorrelationID != m.(message.RPC).CorrelationID() {
					t.Errorf("correlation id mismatch: got %d", h.CorrelationID)
				}
			case ClassGossip:
				if h.HasCorrelationID || !h.HasNonce {
					t.Errorf("gossip header: correlation=%v nonce=%v", h.HasCorrelationID, h.HasNonce)
				}
				if h.Nonce != m.(message.Gossip).Nonce() {
					t.Errorf("nonce mismatch: got %q", h.Nonce)
				}
			case ClassPlain:
				if h.HasCorrelationID || h.HasNonce {
					t.Errorf("plain header: correlation=%v nonce=%v", h.HasCorrelationID, h.HasNonce)
				}
			}
		})
	}
}

func TestClassifyKinds(t *testing.T) {
	testCases := []struct {
		typ  message.Type
		want Class
	}{
		{message.TypeCannotSatisfyRequest, ClassRPC},
		{message.TypeGetBlockHashesRequest, ClassRPC},
		{message.TypeGetBlockHashesResponse, ClassRPC},
		{message.TypeGetBlocksRequest, ClassRPC},
		{message.TypeGetBlocksResponse, ClassRPC},
		{message.TypeNewBlock, ClassGossip},
		{message.TypeNewTransaction, ClassGossip},
		{message.TypeDisconnect, ClassPlain},
		{message.TypeIdentify, ClassPlain},
		{message.TypePeerList, ClassPlain},
		{message.TypePeerListRequest, ClassPlain},
		{message.TypeSignal, ClassPlain},
		{message.TypeSignalRequest, ClassPlain},
	}
	for _, tc := range testCases {
		got, err := Classify(tc.typ)
		if err != nil || got != tc.want {
			t.Errorf("Classify(%s) = %s, %v; want %s", tc.typ, got, err, tc.want)
		}
	}
	if _, err := Classify(message.Type(13)); err == nil {
		t.Error("Classify(13) should fail")
	}
}

// TestGetBlocksRequestScenario decodes a hand-built RPC frame with correlation id 42.
func TestGetBlocksRequestScenario(t *testing.T) {
	hash := common.HexToHash("0x1234")
	body := hash.Bytes()

	frame := []byte{byte(message.TypeGetBlocksRequest)}
	frame = binary.BigEndian.AppendUint64(frame, uint64(len(body)))
	frame = binary.BigEndian.AppendUint64(frame, 42)
	frame = append(frame, body...)

	m, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	req, ok := m.(*message.GetBlocksRequest)
	if !ok {
		t.Fatalf("got %T, want *message.GetBlocksRequest", m)
	}
	if req.CorrelationID() != 42 {
		t.Errorf("correlation id = %d, want 42", req.CorrelationID())
	}
	if len(req.Hashes) != 1 || req.Hashes[0] != hash {
		t.Errorf("hashes = %v", req.Hashes)
	}
}

// TestTruncatedHeader verifies buffers shorter than the fixed fields fail.
func TestTruncatedHeader(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"type only", []byte{byte(message.TypeIdentify)}},
		{"8 bytes (one less than HeaderSize)", make([]byte, 8)},
		{"rpc without correlation id", append([]byte{byte(message.TypeGetBlocksRequest)}, make([]byte, 8+4)...)},
		{"gossip without nonce length", []byte{byte(message.TypeNewBlock), 0, 0, 0, 0, 0, 0, 0, 0}},
		{"gossip nonce past end", []byte{byte(message.TypeNewBlock), 0, 0, 0, 0, 0, 0, 0, 0, 5, 'a'}},
		{"body past end", []byte{byte(message.TypeDisconnect), 0, 0, 0, 0, 0, 0, 0, 4, 'a', 'b'}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Parse(tc.data)
			if m != nil {
				t.Errorf("expected no message, got %+v", m)
			}
			var headerErr *HeaderDecodeError
			if !errors.As(err, &headerErr) {
				t.Fatalf("expected HeaderDecodeError, got %v", err)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) || decodeErr.Type != "" {
				t.Errorf("expected DecodeError without type, got %v", err)
			}
		})
	}
}

func TestUnknownTypeIsHeaderError(t *testing.T) {
	frame := append([]byte{0xEE}, make([]byte, 8)...)
	_, err := DecodeHeader(frame)
	var headerErr *HeaderDecodeError
	if !errors.As(err, &headerErr) {
		t.Fatalf("expected HeaderDecodeError, got %v", err)
	}
	if headerErr.Hex != "0xee0000000000000000" {
		t.Errorf("Hex = %s", headerErr.Hex)
	}

	_, err = DecodeBody(&Header{Type: 0xEE})
	if !errors.As(err, &headerErr) {
		t.Fatalf("DecodeBody: expected HeaderDecodeError, got %v", err)
	}
}

func TestBodyDecodeError(t *testing.T) {
	body := []byte{1, 2, 3}
	frame := []byte{byte(message.TypeIdentify)}
	frame = binary.BigEndian.AppendUint64(frame, uint64(len(body)))
	frame = append(frame, body...)

	_, err := Parse(frame)
	var bodyErr *BodyDecodeError
	if !errors.As(err, &bodyErr) {
		t.Fatalf("expected BodyDecodeError, got %v", err)
	}
	if bodyErr.Type != "identify" {
		t.Errorf("Type = %q, want identify", bodyErr.Type)
	}
	if bodyErr.Hex != "0x010203" {
		t.Errorf("Hex = %q", bodyErr.Hex)
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Type != "identify" {
		t.Errorf("expected DecodeError naming identify, got %v", err)
	}
}

func TestDecodeBodyPanicsWithoutCorrelationID(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	DecodeBody(&Header{Type: message.TypeGetBlocksRequest})
}

// TestTrailingBytesIgnored verifies only bodyLen bytes are taken as the body.
func TestTrailingBytesIgnored(t *testing.T) {
	frame, err := Encode(&message.Disconnect{Reason: "done"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	frame = append(frame, 0xAA, 0xBB)

	h, err := DecodeHeader(frame)
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if !bytes.Equal(h.Body, []byte("done")) {
		t.Errorf("Body = %q", h.Body)
	}
}

func TestShouldLogMessageType(t *testing.T) {
	for _, typ := range message.AllTypes {
		want := typ != message.TypePeerList && typ != message.TypeSignal
		if got := ShouldLogMessageType(typ); got != want {
			t.Errorf("ShouldLogMessageType(%s) = %v, want %v", typ, got, want)
		}
	}
}
