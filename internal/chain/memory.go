// Package chain holds the block store the peer manager serves requests from.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrUnknownBlock is wrapped by lookups for hashes the store does not hold.
var ErrUnknownBlock = errors.New("unknown block")

// Memory is an append-only, in-memory block store. A block's hash is the
// Keccak-256 of its encoding.
type Memory struct {
	mu     sync.RWMutex
	order  []common.Hash
	index  map[common.Hash]int
	blocks map[common.Hash][]byte
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		index:  make(map[common.Hash]int),
		blocks: make(map[common.Hash][]byte),
	}
}

// Hash returns the id of an encoded block.
func Hash(block []byte) common.Hash {
	return crypto.Keccak256Hash(block)
}

// Append stores block and returns its hash. Appending a known block is a
// no-op reported by added == false.
func (m *Memory) Append(block []byte) (hash common.Hash, added bool) {
	hash = Hash(block)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[hash]; ok {
		return hash, false
	}
	m.index[hash] = len(m.order)
	m.order = append(m.order, hash)
	m.blocks[hash] = append([]byte(nil), block...)
	return hash, true
}

// Len returns the number of stored blocks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Head returns the hash of the last appended block, or the zero hash.
func (m *Memory) Head() common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return common.Hash{}
	}
	return m.order[len(m.order)-1]
}

// BlockHashes returns up to count hashes following from. The zero hash
// starts from the first block.
func (m *Memory) BlockHashes(from common.Hash, count uint32) ([]common.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := 0
	if from != (common.Hash{}) {
		i, ok := m.index[from]
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrUnknownBlock, from.TerminalString())
		}
		start = i + 1
	}

	end := len(m.order)
	if uint64(end-start) > uint64(count) {
		end = start + int(count)
	}
	out := make([]common.Hash, end-start)
	copy(out, m.order[start:end])
	return out, nil
}

// Blocks returns the encoded blocks for hashes, in the same order. It fails
// if any hash is unknown.
func (m *Memory) Blocks(hashes []common.Hash) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		b, ok := m.blocks[h]
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrUnknownBlock, h.TerminalString())
		}
		out = append(out, append([]byte(nil), b...))
	}
	return out, nil
}
