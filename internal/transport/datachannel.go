package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/util"
)

const (
	highWaterMark = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // resume sending when bufferedAmount drops below this
)

// STUN servers for ICE candidate gathering.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

var errChannelClosed = errors.New("data channel closed")

// DataChannel carries frames over a WebRTC data channel. The SDP and ICE
// exchange is driven from outside through the signaling methods; the channel
// moves its connection to WaitingForIdentity once it opens.
type DataChannel struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	openSignal  chan struct{}
	drainSignal chan struct{}
	openOnce    sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDataChannel creates a PeerConnection and its pre-negotiated data channel.
func NewDataChannel() (*DataChannel, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	})
	if err != nil {
		return nil, err
	}

	// Negotiated mode (ID 0) lets both sides create the channel without
	// OnDataChannel. Frames must arrive in send order.
	ordered := true
	negotiated := true
	id := uint16(0)
	dc, err := pc.CreateDataChannel("peerwire", &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		pc.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &DataChannel{
		pc:          pc,
		dc:          dc,
		openSignal:  make(chan struct{}),
		drainSignal: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}

	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case t.drainSignal <- struct{}{}:
		default:
		}
	})

	return t, nil
}

// ---------------------------------------------------------------------------
// connection.Transport
// ---------------------------------------------------------------------------

// Open wires the channel callbacks to c. It does not change c's state until
// the channel opens.
func (t *DataChannel) Open(c *connection.Conn) error {
	t.dc.OnOpen(func() {
		t.openOnce.Do(func() { close(t.openSignal) })
		c.SetState(connection.WaitingForIdentity)
	})

	// pion delivers messages for one channel from a single goroutine.
	t.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.Receive(msg.Data)
	})

	t.dc.OnClose(func() {
		c.Close(errChannelClosed)
	})

	t.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("[%s] peer connection %s", c.DisplayName(), state)
		if state == webrtc.PeerConnectionStateFailed {
			c.Close(errors.New("peer connection failed"))
		}
	})
	return nil
}

// Send writes one frame, blocking while the channel buffer is above the
// high-water mark.
func (t *DataChannel) Send(frame []byte) error {
	select {
	case <-t.openSignal:
	default:
		return ErrNotConnected
	}

	if t.dc.BufferedAmount() > uint64(highWaterMark) {
		select {
		case <-t.drainSignal:
		case <-t.ctx.Done():
			return errChannelClosed
		}
	}
	return t.dc.Send(frame)
}

// Close shuts down the data channel and the PeerConnection.
func (t *DataChannel) Close() error {
	t.cancel()
	return errors.Join(t.dc.Close(), t.pc.Close())
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (t *DataChannel) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *DataChannel) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (t *DataChannel) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *DataChannel) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback for locally gathered ICE candidates.
// A nil candidate signals the end of gathering.
func (t *DataChannel) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	t.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (t *DataChannel) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}
