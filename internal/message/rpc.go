package message

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// CannotSatisfyRequest answers any request the peer is unable to serve.
type CannotSatisfyRequest struct {
	ID     uint64
	Reason string
}

func (m *CannotSatisfyRequest) Type() Type            { return TypeCannotSatisfyRequest }
func (m *CannotSatisfyRequest) CorrelationID() uint64 { return m.ID }
func (m *CannotSatisfyRequest) Size() int             { return len(m.Reason) }

func (m *CannotSatisfyRequest) Serialize() []byte {
	return newWriter(m.Size()).rest([]byte(m.Reason)).bytes()
}

// DecodeCannotSatisfyRequest decodes a CannotSatisfyRequest body.
func DecodeCannotSatisfyRequest(b []byte, id uint64) (*CannotSatisfyRequest, error) {
	return &CannotSatisfyRequest{ID: id, Reason: string(b)}, nil
}

// GetBlockHashesRequest asks for up to Count block hashes following From.
// A zero From starts at the first block.
type GetBlockHashesRequest struct {
	ID    uint64
	From  common.Hash
	Count uint32
}

func (m *GetBlockHashesRequest) Type() Type            { return TypeGetBlockHashesRequest }
func (m *GetBlockHashesRequest) CorrelationID() uint64 { return m.ID }
func (m *GetBlockHashesRequest) Size() int             { return common.HashLength + 4 }

func (m *GetBlockHashesRequest) Serialize() []byte {
	return newWriter(m.Size()).fixed(m.From[:]).uint32(m.Count).bytes()
}

// DecodeGetBlockHashesRequest decodes a GetBlockHashesRequest body.
func DecodeGetBlockHashesRequest(b []byte, id uint64) (*GetBlockHashesRequest, error) {
	r := newReader(b)
	m := &GetBlockHashesRequest{ID: id}
	if err := r.fixed(m.From[:]); err != nil {
		return nil, errors.Wrap(err, "from")
	}
	count, err := r.uint32()
	if err != nil {
		return nil, errors.Wrap(err, "count")
	}
	m.Count = count
	if err := r.done(); err != nil {
		return nil, err
	}
	return m, nil
}

// GetBlockHashesResponse answers a GetBlockHashesRequest.
type GetBlockHashesResponse struct {
	ID     uint64
	Hashes []common.Hash
}

func (m *GetBlockHashesResponse) Type() Type            { return TypeGetBlockHashesResponse }
func (m *GetBlockHashesResponse) CorrelationID() uint64 { return m.ID }
func (m *GetBlockHashesResponse) Size() int             { return hashesSize(m.Hashes) }
func (m *GetBlockHashesResponse) Serialize() []byte     { return writeHashes(m.Hashes) }

// DecodeGetBlockHashesResponse decodes a GetBlockHashesResponse body.
func DecodeGetBlockHashesResponse(b []byte, id uint64) (*GetBlockHashesResponse, error) {
	hashes, err := readHashes(b)
	if err != nil {
		return nil, err
	}
	return &GetBlockHashesResponse{ID: id, Hashes: hashes}, nil
}

// GetBlocksRequest asks for the blocks with the given hashes.
type GetBlocksRequest struct {
	ID     uint64
	Hashes []common.Hash
}

func (m *GetBlocksRequest) Type() Type            { return TypeGetBlocksRequest }
func (m *GetBlocksRequest) CorrelationID() uint64 { return m.ID }
func (m *GetBlocksRequest) Size() int             { return hashesSize(m.Hashes) }
func (m *GetBlocksRequest) Serialize() []byte     { return writeHashes(m.Hashes) }

// DecodeGetBlocksRequest decodes a GetBlocksRequest body.
func DecodeGetBlocksRequest(b []byte, id uint64) (*GetBlocksRequest, error) {
	hashes, err := readHashes(b)
	if err != nil {
		return nil, err
	}
	return &GetBlocksRequest{ID: id, Hashes: hashes}, nil
}

// GetBlocksResponse answers a GetBlocksRequest. Each block is prefixed with
// its u32 length since the body holds more than one variable-length field.
type GetBlocksResponse struct {
	ID     uint64
	Blocks [][]byte
}

func (m *GetBlocksResponse) Type() Type            { return TypeGetBlocksResponse }
func (m *GetBlocksResponse) CorrelationID() uint64 { return m.ID }

func (m *GetBlocksResponse) Size() int {
	size := 0
	for _, blk := range m.Blocks {
		size += 4 + len(blk)
	}
	return size
}

func (m *GetBlocksResponse) Serialize() []byte {
	w := newWriter(m.Size())
	for _, blk := range m.Blocks {
		w.uint32(uint32(len(blk))).fixed(blk)
	}
	return w.bytes()
}

// DecodeGetBlocksResponse decodes a GetBlocksResponse body.
func DecodeGetBlocksResponse(b []byte, id uint64) (*GetBlocksResponse, error) {
	r := newReader(b)
	m := &GetBlocksResponse{ID: id}
	for r.remaining() > 0 {
		n, err := r.uint32()
		if err != nil {
			return nil, errors.Wrapf(err, "block %d length", len(m.Blocks))
		}
		if int(n) > r.remaining() {
			return nil, errors.Errorf("block %d declares %d bytes, %d remain", len(m.Blocks), n, r.remaining())
		}
		blk := make([]byte, n)
		if err := r.fixed(blk); err != nil {
			return nil, err
		}
		m.Blocks = append(m.Blocks, blk)
	}
	return m, nil
}

func hashesSize(hashes []common.Hash) int {
	return common.HashLength * len(hashes)
}

func writeHashes(hashes []common.Hash) []byte {
	w := newWriter(hashesSize(hashes))
	for _, h := range hashes {
		w.fixed(h[:])
	}
	return w.bytes()
}

func readHashes(b []byte) ([]common.Hash, error) {
	if len(b)%common.HashLength != 0 {
		return nil, errors.Errorf("body length %d is not a multiple of %d", len(b), common.HashLength)
	}
	r := newReader(b)
	var hashes []common.Hash
	for r.remaining() > 0 {
		var h common.Hash
		if err := r.fixed(h[:]); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}
