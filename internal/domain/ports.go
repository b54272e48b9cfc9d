// Package domain defines the ports wired together by the viewer.
package domain

import (
	"context"
	"io"

	"go2rtc_home/client/go2rtc/ws"
)

// Signaler manages the WebSocket signaling connection.
type Signaler interface {
	Connect(ctx context.Context) error
	SendOffer(offer ws.Offer) error
	SendCandidate(candidate string) error
	Subscribe(fn func(msg any)) func()
	Close() error
}

// Peer manages the WebRTC peer connection.
type Peer interface {
	AddTransceivers() error
	SetOnTrack(videoOut io.Writer)
	SetOnICECandidate(send func(candidate string))
	CreateOffer() (string, error)
	SetRemoteDescription(sdp string) error
	AddRemoteICECandidate(candidate string) error
	Close()
}
