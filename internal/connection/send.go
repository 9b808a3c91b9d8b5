package connection

import (
	"math/rand"
	"time"

	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/util"
	"github.com/1ureka/peerwire/internal/wire"
)

// outbound is an encoded frame waiting in the latency queue.
type outbound struct {
	typ   message.Type
	frame []byte
}

// Send frames m and hands it to the transport. It reports whether the message
// was accepted for transmission, not whether it was delivered.
//
// With latency simulation enabled the frame is queued and a delayed delivery
// is scheduled. Each delivery takes the head of the queue, so frames leave in
// send order whatever delay each one drew. Disconnect notices are never
// delayed.
func (c *Conn) Send(m message.Message) bool {
	if c.Closed() {
		return false
	}

	frame, err := wire.Encode(m)
	if err != nil {
		util.LogError("[%s] cannot encode %s: %v", c.DisplayName(), m.Type(), err)
		return false
	}

	if c.cfg.MaxLatency <= 0 {
		return c.transmit(outbound{typ: m.Type(), frame: frame})
	}

	c.queueMu.Lock()
	c.queue = append(c.queue, outbound{typ: m.Type(), frame: frame})
	c.queueMu.Unlock()

	var delay time.Duration
	if m.Type() != message.TypeDisconnect {
		delay = c.cfg.Jitter(c.cfg.MaxLatency)
	}
	c.cfg.Clock.AfterFunc(delay, c.deliverNext)
	return true
}

// QueueLen returns the number of frames waiting for simulated delivery.
func (c *Conn) QueueLen() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queue)
}

// deliverNext pops the head of the latency queue and transmits it unless the
// connection has reached Disconnected by now.
func (c *Conn) deliverNext() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.queueMu.Lock()
	if len(c.queue) == 0 {
		c.queueMu.Unlock()
		return
	}
	next := c.queue[0]
	c.queue[0] = outbound{}
	c.queue = c.queue[1:]
	c.queueMu.Unlock()

	if c.State().Phase() == PhaseDisconnected {
		util.LogDebug("[%s] dropping delayed %s, connection is down", c.DisplayName(), next.typ)
		return
	}
	c.writeLocked(next)
}

// transmit writes one frame immediately.
func (c *Conn) transmit(out outbound) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.writeLocked(out)
}

// writeLocked must be called with sendMu held.
func (c *Conn) writeLocked(out outbound) bool {
	if err := c.tr.Send(out.frame); err != nil {
		util.LogWarning("[%s] failed to send %s: %v", c.DisplayName(), out.typ, err)
		return false
	}
	util.Stats.AddSent(len(out.frame))
	if wire.ShouldLogMessageType(out.typ) {
		util.LogDebug("[%s] -> %s (%d bytes)", c.DisplayName(), out.typ, len(out.frame))
	}
	return true
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}
