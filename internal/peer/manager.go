// Package peer runs the node's peer set on top of connection.Conn: it drives
// the identity handshake, answers and issues block requests, floods gossip,
// exchanges peer lists and relays WebRTC signaling between peers.
package peer

import (
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru"

	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/signaling"
	"github.com/1ureka/peerwire/internal/transport"
	"github.com/1ureka/peerwire/internal/util"
)

const (
	DefaultRequestTimeout  = 10 * time.Second
	DefaultMaxPeers        = 25
	DefaultGossipCacheSize = 4096
	DefaultAgent           = "peerwire/0.1"

	stateBuffer   = 16
	messageBuffer = 64
)

// Chain serves inbound block requests.
type Chain interface {
	BlockHashes(from common.Hash, count uint32) ([]common.Hash, error)
	Blocks(hashes []common.Hash) ([][]byte, error)
}

// DataChannelFactory creates the transport of a relayed connection along with
// the WebRTC endpoint its signaling session drives.
type DataChannelFactory func() (connection.Transport, signaling.Endpoint, error)

// Config configures a Manager.
type Config struct {
	Identity message.Identity
	Agent    string

	// Conn is applied to every connection the manager creates. Its Clock
	// also times outgoing requests.
	Conn connection.Config

	RequestTimeout  time.Duration
	MaxPeers        int
	GossipCacheSize int

	// AutoConnect dials, through the sender, every peer named in a received
	// peer list.
	AutoConnect bool

	// Chain answers block requests. Nil answers every request with
	// CannotSatisfyRequest.
	Chain Chain

	// NewDataChannel defaults to a pion data channel.
	NewDataChannel DataChannelFactory
}

func (cfg Config) withDefaults() Config {
	if cfg.Agent == "" {
		cfg.Agent = DefaultAgent
	}
	if cfg.Conn.Clock == nil {
		cfg.Conn.Clock = mclock.System{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = DefaultMaxPeers
	}
	if cfg.GossipCacheSize <= 0 {
		cfg.GossipCacheSize = DefaultGossipCacheSize
	}
	if cfg.NewDataChannel == nil {
		cfg.NewDataChannel = func() (connection.Transport, signaling.Endpoint, error) {
			dc, err := transport.NewDataChannel()
			if err != nil {
				return nil, nil, err
			}
			return dc, dc, nil
		}
	}
	return cfg
}

// PeerEvent reports a peer completing the handshake or going away.
type PeerEvent struct {
	Identity  message.Identity
	Conn      *connection.Conn
	Connected bool
}

// Manager owns every connection of a node.
type Manager struct {
	cfg     Config
	seen    *lru.Cache                   // gossip nonces already handled
	dialing mapset.Set[message.Identity] // relayed connections in progress
	nextID  atomic.Uint64

	mu       sync.Mutex
	closed   bool
	conns    map[*connection.Conn]struct{}
	peers    map[message.Identity]*connection.Conn // Connected only
	sessions map[message.SignalNonce]*signaling.Session
	pending  map[uint64]*request

	gossipFeed event.FeedOf[Gossip]
	peerFeed   event.FeedOf[PeerEvent]

	wg sync.WaitGroup
}

// NewManager creates a manager for the node identified by cfg.Identity.
func NewManager(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	seen, err := lru.New(cfg.GossipCacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		seen:     seen,
		dialing:  mapset.NewSet[message.Identity](),
		conns:    make(map[*connection.Conn]struct{}),
		peers:    make(map[message.Identity]*connection.Conn),
		sessions: make(map[message.SignalNonce]*signaling.Session),
		pending:  make(map[uint64]*request),
	}, nil
}

// Identity returns the local identity.
func (m *Manager) Identity() message.Identity { return m.cfg.Identity }

// SubscribeGossip delivers every new gossip item. The channel must be
// buffered; a slow reader stalls the connection the item arrived on.
func (m *Manager) SubscribeGossip(ch chan<- Gossip) event.Subscription {
	return m.gossipFeed.Subscribe(ch)
}

// SubscribePeers delivers a PeerEvent whenever a peer connects or leaves.
func (m *Manager) SubscribePeers(ch chan<- PeerEvent) event.Subscription {
	return m.peerFeed.Subscribe(ch)
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// Add takes ownership of c, which must not be opened yet, and opens it.
func (m *Manager) Add(c *connection.Conn) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		c.Close(ErrManagerClosed)
		return ErrManagerClosed
	}
	if c.Closed() {
		m.mu.Unlock()
		return connection.ErrClosed
	}
	m.conns[c] = struct{}{}
	m.mu.Unlock()

	states := make(chan connection.StateChange, stateBuffer)
	msgs := make(chan message.Message, messageBuffer)
	stateSub := c.SubscribeStateChanges(states)
	msgSub := c.SubscribeMessages(msgs)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer stateSub.Unsubscribe()
		defer msgSub.Unsubscribe()
		m.run(c, states, msgs)
	}()

	if err := c.Open(); err != nil {
		c.Close(err)
		return err
	}
	return nil
}

// Dial connects to a peer's listener.
func (m *Manager) Dial(url string) error {
	return m.Add(transport.DialSocket(url, m.cfg.Conn))
}

// run handles one connection until it closes.
func (m *Manager) run(c *connection.Conn, states <-chan connection.StateChange, msgs <-chan message.Message) {
	for {
		select {
		case ch := <-states:
			if ch.Next.Phase() == connection.PhaseDisconnected && c.Closed() {
				// Let already delivered responses reach their callers.
				for len(msgs) > 0 {
					switch msg := (<-msgs).(type) {
					case *message.GetBlockHashesResponse, *message.GetBlocksResponse, *message.CannotSatisfyRequest:
						m.deliver(c, msg.(message.RPC))
					}
				}
				m.drop(c, ch.Prev)
				return
			}
			m.handleState(c, ch)

		case msg := <-msgs:
			m.handleMessage(c, msg)
		}
	}
}

func (m *Manager) handleState(c *connection.Conn, ch connection.StateChange) {
	if ch.Prev.Phase() == ch.Next.Phase() {
		return
	}
	switch ch.Next.Phase() {
	case connection.PhaseWaitingForIdentity:
		c.Send(&message.Identify{Identity: m.cfg.Identity, Agent: m.cfg.Agent})

	case connection.PhaseConnected:
		id, _ := ch.Next.Identity()
		m.dialing.Remove(id)
		util.LogSuccess("[%s] peer connected (%d peers)", c.DisplayName(), m.PeerCount())
		m.peerFeed.Send(PeerEvent{Identity: id, Conn: c, Connected: true})
		c.Send(&message.PeerListRequest{})
	}
}

// drop forgets a closed connection.
func (m *Manager) drop(c *connection.Conn, last connection.State) {
	m.mu.Lock()
	delete(m.conns, c)

	// A reservation made by admit outlives a close that beat Connected.
	id, wasPeer := last.Identity()
	wasPeer = wasPeer && m.peers[id] == c
	for pid, pc := range m.peers {
		if pc == c {
			delete(m.peers, pid)
		}
	}

	for nonce, s := range m.sessions {
		if s.Conn() == c {
			delete(m.sessions, nonce)
			m.dialing.Remove(s.Remote())
		}
	}

	for _, req := range m.pending {
		if req.conn == c {
			req.fail()
		}
	}
	count := len(m.peers)
	m.mu.Unlock()

	if wasPeer {
		util.LogInfo("[%s] peer left (%d peers): %v", c.DisplayName(), count, c.Err())
		m.peerFeed.Send(PeerEvent{Identity: id, Conn: c, Connected: false})
	}
}

// Close disconnects every connection and waits for their handlers to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conns := make([]*connection.Conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		if c.State().Phase() == connection.PhaseConnected {
			c.Send(&message.Disconnect{Reason: "shutting down"})
		}
		c.Close(nil)
	}
	m.wg.Wait()
}

// ---------------------------------------------------------------------------
// Peer set
// ---------------------------------------------------------------------------

// Peer returns the connection of a connected peer, or nil.
func (m *Manager) Peer(id message.Identity) *connection.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[id]
}

// Peers returns the identities of all connected peers.
func (m *Manager) Peers() []message.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]message.Identity, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

// PeerCount returns the number of connected peers.
func (m *Manager) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

// connected returns the connections of all connected peers.
func (m *Manager) connected() []*connection.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*connection.Conn, 0, len(m.peers))
	for _, c := range m.peers {
		out = append(out, c)
	}
	return out
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func (m *Manager) handleMessage(c *connection.Conn, msg message.Message) {
	switch msg := msg.(type) {
	case *message.Disconnect:
		c.Close(&RemoteDisconnectError{Reason: msg.Reason})
		return
	case *message.Identify:
		m.handleIdentify(c, msg)
		return
	}

	if c.State().Phase() != connection.PhaseConnected {
		util.LogWarning("[%s] dropping %s before identify", c.DisplayName(), msg.Type())
		return
	}

	switch msg := msg.(type) {
	case *message.PeerListRequest:
		m.servePeerList(c)
	case *message.PeerList:
		m.handlePeerList(c, msg)
	case *message.Signal:
		m.handleSignal(c, msg)
	case *message.SignalRequest:
		m.handleSignalRequest(c, msg)
	case *message.GetBlockHashesRequest:
		m.serveBlockHashes(c, msg)
	case *message.GetBlocksRequest:
		m.serveBlocks(c, msg)
	case *message.GetBlockHashesResponse, *message.GetBlocksResponse, *message.CannotSatisfyRequest:
		m.deliver(c, msg.(message.RPC))
	case *message.NewBlock, *message.NewTransaction:
		m.handleGossip(c, msg.(message.Gossip))
	}
}
