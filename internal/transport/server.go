package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/util"
)

// Path is the HTTP path peers upgrade on.
const Path = "/p2p"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts inbound socket connections. Upgrades whose network query
// parameter does not match are refused.
type Server struct {
	network  string
	cfg      connection.Config
	onConn   func(*connection.Conn)
	listener net.Listener
	srv      *http.Server
}

// NewServer creates a server that hands every accepted connection, not yet
// opened, to onConn.
func NewServer(network string, cfg connection.Config, onConn func(*connection.Conn)) *Server {
	return &Server{
		network: network,
		cfg:     cfg,
		onConn:  onConn,
	}
}

// Listen binds addr and starts serving in the background. It returns the
// bound address, which differs from addr when addr uses port 0.
func (s *Server) Listen(addr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWS)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("peer listener stopped: %v", err)
		}
	}()

	return listener.Addr(), nil
}

// Run listens on addr and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	bound, err := s.Listen(addr)
	if err != nil {
		return err
	}
	util.LogInfo("accepting peers on %s", URL(bound.String(), s.network))

	<-ctx.Done()
	return s.Close()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if network := r.URL.Query().Get("network"); network != s.network {
		util.LogWarning("refusing peer %s from network %q", r.RemoteAddr, network)
		http.Error(w, "Wrong network", http.StatusForbidden)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	util.LogDebug("accepted socket from %s", r.RemoteAddr)
	s.onConn(AcceptSocket(ws, s.cfg))
}

// Close stops accepting connections. Accepted connections stay up.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// URL returns the WebSocket URL peers dial to reach a server at addr.
func URL(addr, network string) string {
	u := url.URL{
		Scheme:   "ws",
		Host:     addr,
		Path:     Path,
		RawQuery: url.Values{"network": {network}}.Encode(),
	}
	return u.String()
}
