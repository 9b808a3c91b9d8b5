// Package connection tracks one peer connection from transport setup through
// the identity handshake, decodes its inbound frames into messages, and owns
// its outbound send path.
//
// A Conn does not know how bytes move. Its Transport variant (WebSocket
// socket, WebRTC data channel) does, and reports inbound frames back through
// Receive. The peer manager drives the handshake with SetState and consumes
// messages and state changes through subscriptions.
package connection

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/event"

	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/util"
	"github.com/1ureka/peerwire/internal/wire"
)

// DefaultHandshakeTimeout bounds every handshake phase when Config leaves it unset.
const DefaultHandshakeTimeout = 10 * time.Second

// Kind is the transport flavour behind a connection.
type Kind uint8

const (
	KindSocket Kind = iota
	KindDataChannel
)

func (k Kind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindDataChannel:
		return "datachannel"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Transport moves frames for a Conn.
type Transport interface {
	// Open starts delivering inbound frames to c.Receive, in arrival order
	// from a single goroutine, and reports transport loss through c.Close.
	Open(c *Conn) error
	// Send writes one frame.
	Send(frame []byte) error
	// Close releases the transport. It must tolerate repeated calls.
	Close() error
}

// Config tunes a connection.
type Config struct {
	// HandshakeTimeout bounds each handshake phase.
	HandshakeTimeout time.Duration
	// MaxLatency enables latency simulation when positive: every send is
	// delayed by a uniform draw from [0, MaxLatency). Test/debug only.
	MaxLatency time.Duration
	// Clock schedules handshake timers and delayed sends.
	Clock mclock.Clock
	// Jitter draws a simulated delay below limit. Nil draws uniformly.
	Jitter func(limit time.Duration) time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = mclock.System{}
	}
	if cfg.Jitter == nil {
		cfg.Jitter = uniformJitter
	}
	return cfg
}

// Conn is one peer connection.
type Conn struct {
	kind Kind
	tr   Transport
	cfg  Config

	mu       sync.Mutex
	state    State
	err      error // last recorded error, advisory only
	closed   bool
	timer    mclock.Timer
	timerGen uint64 // bumped on every arm/disarm; stale timer callbacks compare against it

	sendMu  sync.Mutex // serializes dequeue + transmit
	queueMu sync.Mutex
	queue   []outbound // latency queue, FIFO by send order

	stateFeed event.FeedOf[StateChange]
	msgFeed   event.FeedOf[message.Message]
}

// New creates a disconnected Conn over tr. Subscribe before calling Open so
// that no inbound message is missed.
func New(kind Kind, tr Transport, cfg Config) *Conn {
	return &Conn{
		kind:  kind,
		tr:    tr,
		cfg:   cfg.withDefaults(),
		state: Disconnected,
	}
}

// Open starts the transport.
func (c *Conn) Open() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.tr.Open(c)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Kind returns the transport flavour.
func (c *Conn) Kind() Kind { return c.kind }

// State returns a snapshot of the current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the last recorded error. Entering Connected clears it; leaving
// Connected does not.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// DisplayName labels the connection in logs, e.g. "socket:q83vEjRW".
func (c *Conn) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayNameLocked()
}

func (c *Conn) displayNameLocked() string {
	if id, ok := c.state.Identity(); ok {
		return fmt.Sprintf("%s:%s", c.kind, id.Short())
	}
	return fmt.Sprintf("%s:unidentified", c.kind)
}

// SubscribeMessages delivers every decoded inbound message to ch, in arrival
// order. A slow reader stalls the transport's read loop.
func (c *Conn) SubscribeMessages(ch chan<- message.Message) event.Subscription {
	return c.msgFeed.Subscribe(ch)
}

// SubscribeStateChanges delivers a StateChange for every SetState call.
func (c *Conn) SubscribeStateChanges(ch chan<- StateChange) event.Subscription {
	return c.stateFeed.Subscribe(ch)
}

// ---------------------------------------------------------------------------
// State machine
// ---------------------------------------------------------------------------

// SetState replaces the state. When the phase changes, the handshake timer
// is disarmed, re-armed for a handshake phase, and the last error is cleared
// on entering Connected. A StateChange is emitted on every call, including
// calls that keep the phase. Calls after Close are ignored.
func (c *Conn) SetState(next State) {
	c.mu.Lock()
	if c.closed {
		name := c.displayNameLocked()
		c.mu.Unlock()
		util.LogDebug("[%s] ignoring transition to %s after close", name, next.Phase())
		return
	}
	if c.kind == KindSocket && (next.phase == PhaseRequestSignaling || next.phase == PhaseSignaling) {
		util.LogWarning("[%s] %s is a data channel phase", c.displayNameLocked(), next.phase)
	}
	change := c.setStateLocked(next)
	c.mu.Unlock()

	c.stateFeed.Send(change)
}

func (c *Conn) setStateLocked(next State) StateChange {
	prev := c.state
	c.state = next

	if prev.phase != next.phase {
		c.disarmLocked()
		if next.phase.IsHandshake() {
			c.armLocked(next.phase)
		}
		if next.phase == PhaseConnected {
			c.err = nil
			util.Stats.AddConn()
		}
		if prev.phase == PhaseConnected {
			util.Stats.RemoveConn()
		}
	}

	util.LogDebug("[%s] state %s -> %s", c.displayNameLocked(), prev.phase, next.phase)
	return StateChange{Prev: prev, Next: next}
}

func (c *Conn) armLocked(phase Phase) {
	c.timerGen++
	gen := c.timerGen
	d := c.cfg.HandshakeTimeout
	c.timer = c.cfg.Clock.AfterFunc(d, func() {
		c.handshakeExpired(gen, phase, d)
	})
}

func (c *Conn) disarmLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

// handshakeExpired runs on the clock. A timer that was disarmed after it had
// already been dispatched finds its generation stale and does nothing.
func (c *Conn) handshakeExpired(gen uint64, phase Phase, d time.Duration) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	err := &HandshakeTimeoutError{Phase: phase, Duration: d}
	name := c.displayNameLocked()
	change := c.closeLocked(err)
	c.mu.Unlock()

	util.Stats.AddHandshakeFail()
	util.LogWarning("[%s] %v", name, err)
	c.finishClose(change)
}

// Close records err (when non-nil) as the last error, moves the connection
// to Disconnected and releases the transport. Later calls are no-ops.
func (c *Conn) Close(err error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	name := c.displayNameLocked()
	change := c.closeLocked(err)
	c.mu.Unlock()

	if err != nil {
		util.LogWarning("[%s] closing: %v", name, err)
	} else {
		util.LogDebug("[%s] closing", name)
	}
	return c.finishClose(change)
}

func (c *Conn) closeLocked(err error) StateChange {
	c.closed = true
	if err != nil {
		c.err = err
	}
	return c.setStateLocked(Disconnected)
}

func (c *Conn) finishClose(change StateChange) error {
	c.stateFeed.Send(change)
	return c.tr.Close()
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ---------------------------------------------------------------------------
// Inbound
// ---------------------------------------------------------------------------

// ParseMessage decodes one inbound frame. Failures are logged with the frame
// in hex and returned as *wire.DecodeError.
func (c *Conn) ParseMessage(frame []byte) (message.Message, error) {
	m, err := wire.Parse(frame)
	if err != nil {
		util.Stats.AddDecodeFailure()
		util.LogWarning("[%s] dropping frame: %v", c.DisplayName(), err)
		if util.DebugEnabled() {
			util.LogDebug("[%s] frame %s", c.DisplayName(), hexutil.Encode(frame))
		}
		return nil, err
	}
	if wire.ShouldLogMessageType(m.Type()) {
		util.LogDebug("[%s] <- %s (%d bytes)", c.DisplayName(), m.Type(), len(frame))
	}
	return m, nil
}

// Receive is called by the transport for every inbound frame. Frames that do
// not decode are dropped and recorded as the last error; the connection
// stays up.
func (c *Conn) Receive(frame []byte) {
	if c.Closed() {
		return
	}
	util.Stats.AddRecv(len(frame))

	m, err := c.ParseMessage(frame)
	if err != nil {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		return
	}
	c.msgFeed.Send(m)
}
