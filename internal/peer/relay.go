package peer

import (
	"fmt"

	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/signaling"
	"github.com/1ureka/peerwire/internal/util"
)

// ---------------------------------------------------------------------------
// Peer lists
// ---------------------------------------------------------------------------

func (m *Manager) servePeerList(c *connection.Conn) {
	requester, _ := c.State().Identity()
	peers := m.Peers()
	list := make([]message.Identity, 0, len(peers))
	for _, id := range peers {
		if id != requester {
			list = append(list, id)
		}
	}
	c.Send(&message.PeerList{Peers: list})
}

func (m *Manager) handlePeerList(c *connection.Conn, msg *message.PeerList) {
	util.LogDebug("[%s] knows %d peers", c.DisplayName(), len(msg.Peers))
	if !m.cfg.AutoConnect {
		return
	}
	for _, id := range msg.Peers {
		if err := m.connectVia(c, id); err != nil {
			util.LogWarning("[%s] cannot reach %s: %v", c.DisplayName(), id.Short(), err)
		}
	}
}

// ConnectVia opens a data channel connection to target, signaling through
// the connected peer relay.
func (m *Manager) ConnectVia(relay, target message.Identity) error {
	c := m.Peer(relay)
	if c == nil {
		return fmt.Errorf("%w %s", ErrUnknownPeer, relay.Short())
	}
	return m.connectVia(c, target)
}

// connectVia starts an initiator session unless target is us, already
// connected, already being dialed, or the peer set is full.
func (m *Manager) connectVia(relay *connection.Conn, target message.Identity) error {
	if target == m.cfg.Identity || target.IsZero() {
		return nil
	}
	m.mu.Lock()
	_, connected := m.peers[target]
	full := len(m.peers)+m.dialing.Cardinality() >= m.cfg.MaxPeers
	m.mu.Unlock()
	if connected || full || !m.dialing.Add(target) {
		return nil
	}

	return m.startSession(signaling.Initiator, relay, target, signaling.NewNonce())
}

func (m *Manager) startSession(role signaling.Role, relay *connection.Conn, remote message.Identity, nonce message.SignalNonce) error {
	tr, ep, err := m.cfg.NewDataChannel()
	if err != nil {
		m.dialing.Remove(remote)
		return err
	}
	c := connection.New(connection.KindDataChannel, tr, m.cfg.Conn)
	s := signaling.NewSession(role, c, ep, m.cfg.Identity, remote, nonce, relay.Send)

	m.mu.Lock()
	m.sessions[nonce] = s
	m.mu.Unlock()

	if err := m.Add(c); err != nil {
		m.mu.Lock()
		delete(m.sessions, nonce)
		m.mu.Unlock()
		m.dialing.Remove(remote)
		return err
	}

	util.LogDebug("[%s] %s session with %s via %s", c.DisplayName(), role, remote.Short(), relay.DisplayName())
	if err := s.Start(); err != nil {
		c.Close(fmt.Errorf("signaling: %w", err))
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Signaling relay
// ---------------------------------------------------------------------------

func (m *Manager) handleSignal(c *connection.Conn, msg *message.Signal) {
	if msg.Destination != m.cfg.Identity {
		m.forward(c, msg.Destination, msg)
		return
	}

	m.mu.Lock()
	s := m.sessions[msg.Nonce]
	m.mu.Unlock()
	if s == nil {
		util.LogDebug("[%s] signal for unknown session %s", c.DisplayName(), msg.Nonce)
		return
	}
	if err := s.Handle(msg); err != nil {
		s.Conn().Close(fmt.Errorf("signaling: %w", err))
	}
}

func (m *Manager) handleSignalRequest(c *connection.Conn, msg *message.SignalRequest) {
	if msg.Destination != m.cfg.Identity {
		m.forward(c, msg.Destination, msg)
		return
	}

	m.mu.Lock()
	_, connected := m.peers[msg.Source]
	_, known := m.sessions[msg.Nonce]
	full := len(m.peers) >= m.cfg.MaxPeers
	m.mu.Unlock()
	if connected || known || full || msg.Source == m.cfg.Identity || !m.dialing.Add(msg.Source) {
		util.LogDebug("[%s] declining signaling from %s", c.DisplayName(), msg.Source.Short())
		return
	}

	if err := m.startSession(signaling.Responder, c, msg.Source, msg.Nonce); err != nil {
		util.LogWarning("[%s] cannot answer %s: %v", c.DisplayName(), msg.Source.Short(), err)
	}
}

// forward passes a signaling message on to its destination.
func (m *Manager) forward(from *connection.Conn, dst message.Identity, msg message.Message) {
	to := m.Peer(dst)
	if to == nil || to == from {
		util.LogDebug("[%s] cannot relay %s to %s", from.DisplayName(), msg.Type(), dst.Short())
		return
	}
	to.Send(msg)
}
