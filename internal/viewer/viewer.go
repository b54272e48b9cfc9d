package viewer

import (
	"context"
	"log"

	"go2rtc_home/client/go2rtc/ws"
	"go2rtc_home/client/internal/domain"
)

// Viewer coordinates the signaling and WebRTC flows: it sends the local
// offer, applies the remote answer, and trickles ICE candidates both ways.
type Viewer struct {
	peer       domain.Peer
	signal     domain.Signaler
	iceServers []ws.ICEServer
	cancel     context.CancelFunc
	unsub      func()
}

// New creates a Viewer with the given peer, signaler, and context cancel
// function.
func New(peer domain.Peer, signal domain.Signaler, iceServers []ws.ICEServer, cancel context.CancelFunc) *Viewer {
	return &Viewer{
		peer:       peer,
		signal:     signal,
		iceServers: iceServers,
		cancel:     cancel,
	}
}

// Start connects the signaling channel, subscribes to remote messages, and
// sends the local SDP offer.
func (v *Viewer) Start(ctx context.Context) error {
	if err := v.signal.Connect(ctx); err != nil {
		return err
	}
	v.unsub = v.signal.Subscribe(v.handle)

	v.peer.SetOnICECandidate(func(candidate string) {
		if err := v.signal.SendCandidate(candidate); err != nil {
			log.Printf("[viewer] send candidate: %v", err)
		}
	})

	sdp, err := v.peer.CreateOffer()
	if err != nil {
		return err
	}
	if err := v.signal.SendOffer(ws.NewOffer(sdp, v.iceServers)); err != nil {
		return err
	}

	log.Printf("[viewer] offer sent, waiting for answer")
	return nil
}

// Stop unsubscribes from signaling messages.
func (v *Viewer) Stop() {
	if v.unsub != nil {
		v.unsub()
		v.unsub = nil
	}
}

func (v *Viewer) handle(msg any) {
	switch m := msg.(type) {
	case ws.Answer:
		log.Printf("[viewer] received SDP answer")
		if err := v.peer.SetRemoteDescription(m.SDP); err != nil {
			log.Printf("[viewer] set remote description: %v", err)
		}

	case ws.Candidate:
		// AddRemoteICECandidate blocks until the answer is applied.
		go func() {
			if err := v.peer.AddRemoteICECandidate(m.Candidate); err != nil {
				log.Printf("[viewer] add remote ICE candidate: %v", err)
			}
		}()

	case ws.ServerError:
		log.Printf("[viewer] server error: %v, shutting down", m)
		v.cancel()
	}
}
