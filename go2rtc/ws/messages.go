package ws

import (
	"encoding/json"
	"fmt"
)

// Frame types on the go2rtc signaling socket.
const (
	TypeWebRTC    = "webrtc"
	TypeCandidate = "webrtc/candidate"
	TypeError     = "error"
)

// Message is the wire envelope for signaling frames.
type Message struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ICEServer is a STUN/TURN server offered to go2rtc inside an offer.
// go2rtc only accepts urls as a list of strings.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// Offer is the session description sent inside a webrtc envelope.
type Offer struct {
	Type       string      `json:"type"`
	SDP        string      `json:"sdp"`
	ICEServers []ICEServer `json:"ice_servers,omitempty"`
}

// NewOffer builds an offer payload for the given local SDP.
func NewOffer(sdp string, iceServers []ICEServer) Offer {
	return Offer{Type: "offer", SDP: sdp, ICEServers: iceServers}
}

// Answer is a remote session description received from the server.
type Answer struct {
	SDP string
}

// Candidate is a trickled remote ICE candidate.
type Candidate struct {
	Candidate string
}

// ServerError is an error frame reported by the server.
type ServerError struct {
	Message string
}

func (e ServerError) Error() string { return e.Message }

// EncodeOffer wraps an offer in its envelope.
func EncodeOffer(offer Offer) ([]byte, error) {
	value, err := json.Marshal(offer)
	if err != nil {
		return nil, fmt.Errorf("marshal offer: %w", err)
	}
	return json.Marshal(Message{Type: TypeWebRTC, Value: value})
}

// EncodeCandidate wraps a local ICE candidate in its envelope.
func EncodeCandidate(candidate string) ([]byte, error) {
	value, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("marshal candidate: %w", err)
	}
	return json.Marshal(Message{Type: TypeCandidate, Value: value})
}

// sdpValue is the inner payload of a webrtc envelope.
type sdpValue struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Decode parses one signaling frame into an Answer, Candidate, or
// ServerError. Frames this client does not consume decode to nil.
func Decode(data []byte) (any, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}

	switch msg.Type {
	case TypeWebRTC:
		var sdp sdpValue
		if err := json.Unmarshal(msg.Value, &sdp); err != nil {
			return nil, fmt.Errorf("unmarshal webrtc value: %w", err)
		}
		if sdp.Type != "answer" {
			return nil, nil
		}
		return Answer{SDP: sdp.SDP}, nil

	case TypeCandidate:
		var candidate string
		if err := json.Unmarshal(msg.Value, &candidate); err != nil {
			return nil, fmt.Errorf("unmarshal candidate value: %w", err)
		}
		return Candidate{Candidate: candidate}, nil

	case TypeError:
		var message string
		if err := json.Unmarshal(msg.Value, &message); err != nil {
			return nil, fmt.Errorf("unmarshal error value: %w", err)
		}
		return ServerError{Message: message}, nil

	default:
		return nil, nil
	}
}
