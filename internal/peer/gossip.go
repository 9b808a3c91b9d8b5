package peer

import (
	"github.com/google/uuid"

	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/util"
)

// Gossip is a block or transaction first seen from a peer.
type Gossip struct {
	Type    message.Type // TypeNewBlock or TypeNewTransaction
	From    message.Identity
	Nonce   string
	Payload []byte
}

// BroadcastBlock floods block to every connected peer and returns how many
// accepted it.
func (m *Manager) BroadcastBlock(block []byte) int {
	return m.broadcast(&message.NewBlock{GossipNonce: uuid.NewString(), Block: block})
}

// BroadcastTransaction floods tx to every connected peer.
func (m *Manager) BroadcastTransaction(tx []byte) int {
	return m.broadcast(&message.NewTransaction{GossipNonce: uuid.NewString(), Transaction: tx})
}

func (m *Manager) broadcast(g message.Gossip) int {
	m.seen.Add(g.Nonce(), struct{}{})
	return m.relayGossip(g, nil)
}

// handleGossip publishes and relays an item unless its nonce was seen.
func (m *Manager) handleGossip(c *connection.Conn, g message.Gossip) {
	if seen, _ := m.seen.ContainsOrAdd(g.Nonce(), struct{}{}); seen {
		return
	}

	from, _ := c.State().Identity()
	ev := Gossip{Type: g.Type(), From: from, Nonce: g.Nonce()}
	switch g := g.(type) {
	case *message.NewBlock:
		ev.Payload = g.Block
	case *message.NewTransaction:
		ev.Payload = g.Transaction
	}
	m.gossipFeed.Send(ev)

	n := m.relayGossip(g, c)
	util.LogDebug("[%s] relayed %s %s to %d peers", c.DisplayName(), g.Type(), g.Nonce(), n)
}

// relayGossip sends g to every connected peer except the one it came from.
func (m *Manager) relayGossip(g message.Gossip, except *connection.Conn) int {
	n := 0
	for _, c := range m.connected() {
		if c == except {
			continue
		}
		if c.Send(g) {
			n++
		}
	}
	return n
}
