package peer

import (
	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/util"
)

// handleIdentify completes the handshake of c. Both sides send Identify on
// entering WaitingForIdentity; the first one received decides.
func (m *Manager) handleIdentify(c *connection.Conn, msg *message.Identify) {
	if phase := c.State().Phase(); phase != connection.PhaseWaitingForIdentity {
		util.LogWarning("[%s] ignoring identify in %s", c.DisplayName(), phase)
		return
	}

	if reason := m.admit(c, msg.Identity); reason != "" {
		m.reject(c, reason)
		return
	}
	util.LogDebug("[%s] identified as %s (%s)", c.DisplayName(), msg.Identity, msg.Agent)
	c.SetState(connection.Connected(msg.Identity))
}

// admit reserves id for c, or returns why it cannot.
func (m *Manager) admit(c *connection.Conn, id message.Identity) string {
	if id == m.cfg.Identity {
		return "self connection"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Conn() == c && s.Remote() != id {
			return "identity mismatch"
		}
	}
	if _, ok := m.peers[id]; ok {
		return "already connected"
	}
	if len(m.peers) >= m.cfg.MaxPeers {
		return "too many peers"
	}
	m.peers[id] = c
	return ""
}

func (m *Manager) reject(c *connection.Conn, reason string) {
	c.Send(&message.Disconnect{Reason: reason})
	c.Close(&RejectedError{Reason: reason})
}
