package peer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/util"
)

// maxHashesPerResponse caps GetBlockHashes answers.
const maxHashesPerResponse = 1024

// request is an outgoing RPC waiting for its response.
type request struct {
	conn *connection.Conn
	resp chan message.RPC // nil means the peer went away
}

func (r *request) fail() {
	select {
	case r.resp <- nil:
	default:
	}
}

// GetBlockHashes asks peer for up to count block hashes following from.
func (m *Manager) GetBlockHashes(ctx context.Context, peer message.Identity, from common.Hash, count uint32) ([]common.Hash, error) {
	resp, err := m.call(ctx, peer, func(id uint64) message.Message {
		return &message.GetBlockHashesRequest{ID: id, From: from, Count: count}
	})
	if err != nil {
		return nil, err
	}
	r, ok := resp.(*message.GetBlockHashesResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected %s response", resp.Type())
	}
	return r.Hashes, nil
}

// GetBlocks asks peer for the blocks with the given hashes.
func (m *Manager) GetBlocks(ctx context.Context, peer message.Identity, hashes []common.Hash) ([][]byte, error) {
	resp, err := m.call(ctx, peer, func(id uint64) message.Message {
		return &message.GetBlocksRequest{ID: id, Hashes: hashes}
	})
	if err != nil {
		return nil, err
	}
	r, ok := resp.(*message.GetBlocksResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected %s response", resp.Type())
	}
	return r.Blocks, nil
}

// call sends the request built for a fresh correlation id and waits for the
// response carrying the same id from the same connection.
func (m *Manager) call(ctx context.Context, peer message.Identity, build func(id uint64) message.Message) (message.RPC, error) {
	c := m.Peer(peer)
	if c == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownPeer, peer.Short())
	}

	id := m.nextID.Add(1)
	req := &request{conn: c, resp: make(chan message.RPC, 1)}
	m.mu.Lock()
	m.pending[id] = req
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}()

	if !c.Send(build(id)) {
		return nil, ErrPeerDisconnected
	}

	expired := make(chan struct{})
	timer := m.cfg.Conn.Clock.AfterFunc(m.cfg.RequestTimeout, func() { close(expired) })
	defer timer.Stop()

	select {
	case resp := <-req.resp:
		if resp == nil {
			return nil, ErrPeerDisconnected
		}
		if cs, ok := resp.(*message.CannotSatisfyRequest); ok {
			return nil, fmt.Errorf("%w: %s", ErrCannotSatisfy, cs.Reason)
		}
		return resp, nil
	case <-expired:
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliver hands a response to the call waiting for it.
func (m *Manager) deliver(c *connection.Conn, resp message.RPC) {
	m.mu.Lock()
	req, ok := m.pending[resp.CorrelationID()]
	m.mu.Unlock()
	if !ok || req.conn != c {
		util.LogDebug("[%s] dropping unsolicited %s #%d", c.DisplayName(), resp.Type(), resp.CorrelationID())
		return
	}
	select {
	case req.resp <- resp:
	default:
	}
}

// ---------------------------------------------------------------------------
// Serving
// ---------------------------------------------------------------------------

func (m *Manager) serveBlockHashes(c *connection.Conn, req *message.GetBlockHashesRequest) {
	if m.cfg.Chain == nil {
		m.refuse(c, req.ID, "no chain")
		return
	}
	count := req.Count
	if count > maxHashesPerResponse {
		count = maxHashesPerResponse
	}
	hashes, err := m.cfg.Chain.BlockHashes(req.From, count)
	if err != nil {
		m.refuse(c, req.ID, err.Error())
		return
	}
	c.Send(&message.GetBlockHashesResponse{ID: req.ID, Hashes: hashes})
}

func (m *Manager) serveBlocks(c *connection.Conn, req *message.GetBlocksRequest) {
	if m.cfg.Chain == nil {
		m.refuse(c, req.ID, "no chain")
		return
	}
	blocks, err := m.cfg.Chain.Blocks(req.Hashes)
	if err != nil {
		m.refuse(c, req.ID, err.Error())
		return
	}
	c.Send(&message.GetBlocksResponse{ID: req.ID, Blocks: blocks})
}

func (m *Manager) refuse(c *connection.Conn, id uint64, reason string) {
	util.LogDebug("[%s] cannot satisfy #%d: %s", c.DisplayName(), id, reason)
	c.Send(&message.CannotSatisfyRequest{ID: id, Reason: reason})
}
