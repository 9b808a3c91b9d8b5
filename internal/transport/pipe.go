package transport

import (
	"errors"
	"io"
	"sync"

	"github.com/1ureka/peerwire/internal/connection"
)

// ErrRemoteClosed closes a pipe connection whose other end went away.
var ErrRemoteClosed = errors.New("remote end closed")

// pipeEnd is one side of an in-memory link. Frames sent on one end are
// delivered to the other end's connection in send order by a pump goroutine,
// never from the sender's goroutine.
type pipeEnd struct {
	peer *pipeEnd

	mu     sync.Mutex
	inbox  [][]byte // nil entry marks remote close
	closed bool
	notify chan struct{}
	done   chan struct{}
}

// Pipe returns two socket connections linked in memory. Both move to
// WaitingForIdentity when opened. Frames sent before the other end opens are
// held until it does.
func Pipe(cfg connection.Config) (a, b *connection.Conn) {
	ea := &pipeEnd{notify: make(chan struct{}, 1), done: make(chan struct{})}
	eb := &pipeEnd{notify: make(chan struct{}, 1), done: make(chan struct{})}
	ea.peer, eb.peer = eb, ea
	return connection.New(connection.KindSocket, ea, cfg), connection.New(connection.KindSocket, eb, cfg)
}

func (p *pipeEnd) Open(c *connection.Conn) error {
	c.SetState(connection.WaitingForIdentity)
	go p.pump(c)
	return nil
}

func (p *pipeEnd) pump(c *connection.Conn) {
	for {
		select {
		case <-p.notify:
		case <-p.done:
			return
		}

		for {
			p.mu.Lock()
			if len(p.inbox) == 0 {
				p.mu.Unlock()
				break
			}
			frame := p.inbox[0]
			p.inbox[0] = nil
			p.inbox = p.inbox[1:]
			p.mu.Unlock()

			if frame == nil {
				c.Close(ErrRemoteClosed)
				return
			}
			c.Receive(frame)
		}
	}
}

// enqueue appends frame to the inbox; a nil frame marks remote close.
func (p *pipeEnd) enqueue(frame []byte) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.inbox = append(p.inbox, frame)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return true
}

func (p *pipeEnd) Send(frame []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	if !p.peer.enqueue(append([]byte{}, frame...)) {
		return io.ErrClosedPipe
	}
	return nil
}

func (p *pipeEnd) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.inbox = nil
	p.mu.Unlock()

	close(p.done)
	p.peer.enqueue(nil)
	return nil
}
