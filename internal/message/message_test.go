package message

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testIdentity(seed byte) Identity {
	var id Identity
	for i := range id {
		id[i] = seed + byte(i)
	}
	return id
}

// samples returns one representative instance per payload type.
func samples() []Message {
	return []Message{
		&Disconnect{Reason: "shutting down"},
		&Identify{Identity: testIdentity(1), Agent: "peerwire/test"},
		&PeerList{Peers: []Identity{testIdentity(2), testIdentity(3)}},
		&PeerListRequest{},
		&Signal{Destination: testIdentity(4), Source: testIdentity(5), Nonce: SignalNonce{9, 8, 7}, Signal: []byte(`{"type":"offer"}`)},
		&SignalRequest{Destination: testIdentity(6), Source: testIdentity(7), Nonce: SignalNonce{1}},
		&CannotSatisfyRequest{ID: 7, Reason: "unknown block"},
		&GetBlockHashesRequest{ID: 8, From: common.HexToHash("0xabcd"), Count: 64},
		&GetBlockHashesResponse{ID: 9, Hashes: []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")}},
		&GetBlocksRequest{ID: 10, Hashes: []common.Hash{common.HexToHash("0x03")}},
		&GetBlocksResponse{ID: 11, Blocks: [][]byte{[]byte("block-a"), {}, []byte("block-c")}},
		&NewBlock{GossipNonce: "n1", Block: []byte("block")},
		&NewTransaction{GossipNonce: "n2", Transaction: []byte("tx")},
	}
}

// TestSamplesCoverAllTypes keeps the sample list in step with AllTypes.
func TestSamplesCoverAllTypes(t *testing.T) {
	seen := make(map[Type]bool)
	for _, m := range samples() {
		seen[m.Type()] = true
	}
	for _, typ := range AllTypes {
		if !seen[typ] {
			t.Errorf("no sample for %s", typ)
		}
	}
}

// TestSizeMatchesSerialize verifies Size() == len(Serialize()) for every payload.
func TestSizeMatchesSerialize(t *testing.T) {
	for _, m := range samples() {
		t.Run(m.Type().String(), func(t *testing.T) {
			if got, want := len(m.Serialize()), m.Size(); got != want {
				t.Errorf("len(Serialize()) = %d, Size() = %d", got, want)
			}
		})
	}
}

// TestSignalRoundTrip checks all four signal fields survive a cycle,
// including a large trailing payload.
func TestSignalRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("sdp"), 1000)
	original := &Signal{
		Destination: testIdentity(10),
		Source:      testIdentity(20),
		Nonce:       SignalNonce{0xde, 0xad, 0xbe, 0xef},
		Signal:      payload,
	}

	encoded := original.Serialize()
	if len(encoded) != 2*IdentitySize+SignalNonceSize+len(payload) {
		t.Fatalf("unexpected encoded size %d", len(encoded))
	}

	decoded, err := DecodeSignal(encoded)
	if err != nil {
		t.Fatalf("DecodeSignal failed: %v", err)
	}
	if decoded.Destination != original.Destination {
		t.Errorf("Destination mismatch: got %s, want %s", decoded.Destination, original.Destination)
	}
	if decoded.Source != original.Source {
		t.Errorf("Source mismatch: got %s, want %s", decoded.Source, original.Source)
	}
	if decoded.Nonce != original.Nonce {
		t.Errorf("Nonce mismatch: got %s, want %s", decoded.Nonce, original.Nonce)
	}
	if !bytes.Equal(decoded.Signal, payload) {
		t.Errorf("Signal payload mismatch")
	}
}

// TestSignalDecodeDoesNotAlias verifies the decoded payload is a copy.
func TestSignalDecodeDoesNotAlias(t *testing.T) {
	encoded := (&Signal{Signal: []byte("original")}).Serialize()
	decoded, err := DecodeSignal(encoded)
	if err != nil {
		t.Fatalf("DecodeSignal failed: %v", err)
	}
	encoded[signalFixedSize] = 'X'
	if string(decoded.Signal) != "original" {
		t.Errorf("payload was aliased: %q", decoded.Signal)
	}
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		name   string
		decode func() error
	}{
		{"short identify", func() error { _, err := DecodeIdentify(make([]byte, 10)); return err }},
		{"short signal", func() error { _, err := DecodeSignal(make([]byte, 40)); return err }},
		{"signal request with trailing bytes", func() error {
			_, err := DecodeSignalRequest(make([]byte, signalFixedSize+1))
			return err
		}},
		{"peer list not multiple of 32", func() error { _, err := DecodePeerList(make([]byte, 33)); return err }},
		{"non-empty peer list request", func() error { _, err := DecodePeerListRequest([]byte{1}); return err }},
		{"short hashes request", func() error { _, err := DecodeGetBlockHashesRequest(make([]byte, 35), 1); return err }},
		{"ragged hash list", func() error { _, err := DecodeGetBlocksRequest(make([]byte, 31), 1); return err }},
		{"block length overflow", func() error {
			_, err := DecodeGetBlocksResponse([]byte{0, 0, 0, 9, 'a'}, 1)
			return err
		}},
		{"truncated block length", func() error { _, err := DecodeGetBlocksResponse([]byte{0, 0}, 1); return err }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.decode(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestEmptyBodies(t *testing.T) {
	peers, err := DecodePeerList(nil)
	if err != nil || len(peers.Peers) != 0 {
		t.Fatalf("DecodePeerList(nil) = %+v, %v", peers, err)
	}
	blocks, err := DecodeGetBlocksResponse(nil, 3)
	if err != nil || len(blocks.Blocks) != 0 || blocks.ID != 3 {
		t.Fatalf("DecodeGetBlocksResponse(nil) = %+v, %v", blocks, err)
	}
	blk, err := DecodeNewBlock(nil, "nonce")
	if err != nil || blk.Block != nil || blk.Nonce() != "nonce" {
		t.Fatalf("DecodeNewBlock(nil) = %+v, %v", blk, err)
	}
}

func TestGetBlocksResponseRoundTrip(t *testing.T) {
	original := &GetBlocksResponse{ID: 99, Blocks: [][]byte{[]byte("one"), []byte("two")}}
	decoded, err := DecodeGetBlocksResponse(original.Serialize(), 99)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestIdentityText(t *testing.T) {
	id := testIdentity(42)
	parsed, err := ParseIdentity(id.String())
	if err != nil {
		t.Fatalf("ParseIdentity failed: %v", err)
	}
	if parsed != id {
		t.Errorf("identity mismatch: got %s, want %s", parsed, id)
	}
	if !strings.HasPrefix(id.String(), id.Short()) || len(id.Short()) != 8 {
		t.Errorf("Short() = %q is not an 8-char prefix of %q", id.Short(), id)
	}
	if _, err := ParseIdentity("AAAA"); err == nil {
		t.Error("expected length error")
	}
	if _, err := ParseIdentity("not base64!"); err == nil {
		t.Error("expected encoding error")
	}
	if !(Identity{}).IsZero() || id.IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestTypeString(t *testing.T) {
	if got := TypeGetBlocksRequest.String(); got != "get-blocks-request" {
		t.Errorf("String() = %q", got)
	}
	if got := Type(200).String(); got != "unknown(200)" {
		t.Errorf("String() = %q", got)
	}
}
