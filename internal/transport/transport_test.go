package transport

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/message"
)

// Compile-time interface checks.
var (
	_ connection.Transport = (*socket)(nil)
	_ connection.Transport = (*pipeEnd)(nil)
	_ connection.Transport = (*DataChannel)(nil)
)

const waitTimeout = 5 * time.Second

type watched struct {
	conn   *connection.Conn
	states chan connection.StateChange
	msgs   chan message.Message
}

// watch subscribes to c; call it before c.Open.
func watch(c *connection.Conn) *watched {
	w := &watched{
		conn:   c,
		states: make(chan connection.StateChange, 16),
		msgs:   make(chan message.Message, 16),
	}
	c.SubscribeStateChanges(w.states)
	c.SubscribeMessages(w.msgs)
	return w
}

func (w *watched) waitPhase(t *testing.T, want connection.Phase) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ch := <-w.states:
			if ch.Next.Phase() == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s, state is %s", want, w.conn.State())
		}
	}
}

func (w *watched) next(t *testing.T) message.Message {
	t.Helper()
	select {
	case m := <-w.msgs:
		return m
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

// ---------------------------------------------------------------------------
// Pipe
// ---------------------------------------------------------------------------

func TestPipeDeliversInOrder(t *testing.T) {
	a, b := Pipe(connection.Config{})
	wa, wb := watch(a), watch(b)
	if err := a.Open(); err != nil {
		t.Fatal(err)
	}
	wa.waitPhase(t, connection.PhaseWaitingForIdentity)

	// b is not open yet; frames wait for it.
	for _, reason := range []string{"one", "two", "three"} {
		if !a.Send(&message.Disconnect{Reason: reason}) {
			t.Fatalf("Send(%s) failed", reason)
		}
	}
	if err := b.Open(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"one", "two", "three"} {
		if got := wb.next(t).(*message.Disconnect).Reason; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestPipeCloseReachesOtherEnd(t *testing.T) {
	a, b := Pipe(connection.Config{})
	wb := watch(b)
	a.Open()
	b.Open()
	wb.waitPhase(t, connection.PhaseWaitingForIdentity)

	a.Send(&message.Disconnect{Reason: "bye"})
	a.Close(nil)

	if got := wb.next(t).(*message.Disconnect).Reason; got != "bye" {
		t.Fatalf("got %q before close", got)
	}
	wb.waitPhase(t, connection.PhaseDisconnected)
	if !errors.Is(b.Err(), ErrRemoteClosed) {
		t.Errorf("b.Err() = %v, want ErrRemoteClosed", b.Err())
	}
	if b.Send(&message.PeerListRequest{}) {
		t.Error("Send on a closed pipe succeeded")
	}
}

// ---------------------------------------------------------------------------
// WebSocket
// ---------------------------------------------------------------------------

func startServer(t *testing.T, network string) (string, chan *watched) {
	t.Helper()
	accepted := make(chan *watched, 4)
	srv := NewServer(network, connection.Config{}, func(c *connection.Conn) {
		w := watch(c)
		if err := c.Open(); err != nil {
			t.Errorf("open accepted conn: %v", err)
			return
		}
		accepted <- w
	})
	addr, err := srv.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	return addr.String(), accepted
}

func TestSocketLoopback(t *testing.T) {
	addr, accepted := startServer(t, "testnet")

	out := watch(DialSocket(URL(addr, "testnet"), connection.Config{}))
	defer out.conn.Close(nil)
	if err := out.conn.Open(); err != nil {
		t.Fatal(err)
	}
	out.waitPhase(t, connection.PhaseConnecting)
	out.waitPhase(t, connection.PhaseWaitingForIdentity)

	var in *watched
	select {
	case in = <-accepted:
	case <-time.After(waitTimeout):
		t.Fatal("server did not accept")
	}
	defer in.conn.Close(nil)
	if got := in.conn.State().Phase(); got != connection.PhaseWaitingForIdentity {
		t.Fatalf("accepted conn in %s", got)
	}

	var id message.Identity
	id[0] = 0xaa
	if !out.conn.Send(&message.Identify{Identity: id, Agent: "loopback"}) {
		t.Fatal("Send failed")
	}
	m, ok := in.next(t).(*message.Identify)
	if !ok || m.Identity != id || m.Agent != "loopback" {
		t.Fatalf("received %+v", m)
	}

	out.conn.Close(nil)
	in.waitPhase(t, connection.PhaseDisconnected)
}

func TestSocketWrongNetwork(t *testing.T) {
	addr, accepted := startServer(t, "mainnet")

	out := watch(DialSocket(URL(addr, "testnet"), connection.Config{}))
	out.conn.Open()
	out.waitPhase(t, connection.PhaseDisconnected)

	if out.conn.Err() == nil || !strings.Contains(out.conn.Err().Error(), "dial") {
		t.Errorf("Err() = %v, want a dial error", out.conn.Err())
	}
	select {
	case <-accepted:
		t.Error("server accepted a peer from another network")
	default:
	}
}

func TestSocketSendBeforeDial(t *testing.T) {
	s := &socket{url: "ws://127.0.0.1:1/p2p"}
	if err := s.Send([]byte{0}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() = %v, want ErrNotConnected", err)
	}
}

func TestURL(t *testing.T) {
	if got, want := URL("127.0.0.1:30303", "dev net"), "ws://127.0.0.1:30303/p2p?network=dev+net"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
