package go2rtc

import "encoding/json"

// ApplicationInfo describes the running go2rtc server.
// Only the version is used by this client.
type ApplicationInfo struct {
	Version string `json:"version"`
}

// Stream is a named stream registered with the server. The server is the
// source of truth; streams are never mutated locally, always re-fetched.
type Stream struct {
	Producers []Producer `json:"producers"`
	Consumers []Consumer `json:"consumers"`
}

// Producer describes one source endpoint of a stream.
type Producer struct {
	URL    string   `json:"url"`
	Medias []string `json:"medias"`
}

// Consumer describes one sink endpoint of a stream. go2rtc uses the same
// shape for both ends.
type Consumer struct {
	URL    string   `json:"url"`
	Medias []string `json:"medias"`
}

// UnmarshalJSON normalizes the null producer/consumer lists go2rtc returns
// for idle streams into empty slices.
func (s *Stream) UnmarshalJSON(data []byte) error {
	type alias Stream
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Producers == nil {
		a.Producers = []Producer{}
	}
	if a.Consumers == nil {
		a.Consumers = []Consumer{}
	}
	*s = Stream(a)
	return nil
}

// SDPPayload is a WebRTC session description exchanged with the server.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Offer builds an SDP offer payload.
func Offer(sdp string) SDPPayload {
	return SDPPayload{Type: "offer", SDP: sdp}
}

// Answer builds an SDP answer payload.
func Answer(sdp string) SDPPayload {
	return SDPPayload{Type: "answer", SDP: sdp}
}
