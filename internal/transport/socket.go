// Package transport implements the byte movers behind connection.Conn: a
// WebSocket socket (dialed or accepted), a WebRTC data channel, and an
// in-memory pipe for tests and local wiring.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/peerwire/internal/connection"
)

// ErrNotConnected is returned by Send before the underlying link is up.
var ErrNotConnected = errors.New("transport not connected")

const writeTimeout = 10 * time.Second

// socket carries frames over a WebSocket, one binary message per frame.
type socket struct {
	url string // empty for accepted sockets

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
	ws *websocket.Conn

	writeMu sync.Mutex
}

// DialSocket returns a socket connection that dials url when opened. Open
// moves it to Connecting, and to WaitingForIdentity once the WebSocket is up.
func DialSocket(url string, cfg connection.Config) *connection.Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return connection.New(connection.KindSocket, &socket{url: url, ctx: ctx, cancel: cancel}, cfg)
}

// AcceptSocket wraps an already upgraded WebSocket. Open moves it straight to
// WaitingForIdentity.
func AcceptSocket(ws *websocket.Conn, cfg connection.Config) *connection.Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return connection.New(connection.KindSocket, &socket{ws: ws, ctx: ctx, cancel: cancel}, cfg)
}

func (s *socket) Open(c *connection.Conn) error {
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()

	if ws != nil {
		c.SetState(connection.WaitingForIdentity)
		go s.readLoop(c, ws)
		return nil
	}

	c.SetState(connection.Connecting)
	go s.dial(c)
	return nil
}

// dial runs in the background; Close cancels it.
func (s *socket) dial(c *connection.Conn) {
	ws, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.url, nil)
	if err != nil {
		c.Close(fmt.Errorf("dial %s: %w", s.url, err))
		return
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		ws.Close()
		return
	}
	s.ws = ws
	s.mu.Unlock()

	c.SetState(connection.WaitingForIdentity)
	s.readLoop(c, ws)
}

func (s *socket) readLoop(c *connection.Conn, ws *websocket.Conn) {
	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.Close(nil)
			} else {
				c.Close(fmt.Errorf("read: %w", err))
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		c.Receive(data)
	}
}

func (s *socket) Send(frame []byte) error {
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (s *socket) Close() error {
	s.cancel()

	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws == nil {
		return nil
	}

	s.writeMu.Lock()
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return ws.Close()
}
