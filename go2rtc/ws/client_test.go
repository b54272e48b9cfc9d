package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"go2rtc_home/client/go2rtc"
)

// newSignalingServer runs handler for each connection to /api/ws.
func newSignalingServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readOffer reads one frame and fails the connection if it is not an offer.
func readOffer(t *testing.T, conn *websocket.Conn) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("server read failed: %v", err)
		return
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != TypeWebRTC {
		t.Errorf("expected webrtc envelope, got %s", data)
	}
}

func TestNewClient_SourceValidation(t *testing.T) {
	if _, err := NewClient(nil, "http://localhost:1984"); err == nil {
		t.Error("expected error when neither source nor destination is set")
	}
	if _, err := NewClient(nil, "http://localhost:1984", WithSource("a"), WithDestination("b")); err == nil {
		t.Error("expected error when both source and destination are set")
	}
	if _, err := NewClient(nil, "ftp://localhost", WithSource("a")); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestNewClient_URL(t *testing.T) {
	c, err := NewClient(nil, "https://go2rtc.local:1984", WithSource("camera 1"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	expected := "wss://go2rtc.local:1984/api/ws?src=camera+1"
	if c.wsURL != expected {
		t.Errorf("expected %s, got %s", expected, c.wsURL)
	}
}

func TestExchangeOffer_Answer(t *testing.T) {
	srv := newSignalingServer(t, func(conn *websocket.Conn) {
		readOffer(t, conn)
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"webrtc","value":{"type":"answer","sdp":"X"}}`))
		conn.ReadMessage() // hold the socket until the client closes
	})

	client, err := NewClient(nil, srv.URL, WithSource("camera1"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.ExchangeOffer(context.Background(), NewOffer("v=0", nil))
	if err != nil {
		t.Fatalf("ExchangeOffer failed: %v", err)
	}
	if result.Answer.SDP != "X" {
		t.Errorf("expected answer SDP X, got %q", result.Answer.SDP)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(result.Candidates))
	}
}

func TestExchangeOffer_BuffersCandidates(t *testing.T) {
	srv := newSignalingServer(t, func(conn *websocket.Conn) {
		readOffer(t, conn)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"webrtc/candidate","value":"candidate:1"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"webrtc/candidate","value":"candidate:2"}`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"webrtc","value":{"type":"answer","sdp":"X"}}`))
		conn.ReadMessage()
	})

	client, err := NewClient(nil, srv.URL, WithSource("camera1"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.ExchangeOffer(context.Background(), NewOffer("v=0", nil))
	if err != nil {
		t.Fatalf("ExchangeOffer failed: %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 buffered candidates, got %d", len(result.Candidates))
	}
	if result.Candidates[0].Candidate != "candidate:1" || result.Candidates[1].Candidate != "candidate:2" {
		t.Errorf("candidates out of order: %+v", result.Candidates)
	}
}

func TestExchangeOffer_Timeout(t *testing.T) {
	serverClosed := make(chan error, 1)
	srv := newSignalingServer(t, func(conn *websocket.Conn) {
		readOffer(t, conn)
		// Never reply; wait for the client to drop the socket.
		_, _, err := conn.ReadMessage()
		serverClosed <- err
	})

	client, err := NewClient(nil, srv.URL, WithSource("camera1"), WithAnswerTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	start := time.Now()
	_, err = client.ExchangeOffer(context.Background(), NewOffer("v=0", nil))
	if !go2rtc.IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %s", elapsed)
	}

	select {
	case <-serverClosed:
		// connection released
	case <-time.After(2 * time.Second):
		t.Error("connection was not closed after timeout")
	}
}

func TestExchangeOffer_ServerErrorFrame(t *testing.T) {
	srv := newSignalingServer(t, func(conn *websocket.Conn) {
		readOffer(t, conn)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","value":"streams: source not found"}`))
	})

	client, err := NewClient(nil, srv.URL, WithSource("missing"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.ExchangeOffer(context.Background(), NewOffer("v=0", nil))
	var e *go2rtc.Error
	if !errors.As(err, &e) || e.Kind != go2rtc.KindServer {
		t.Fatalf("expected KindServer error, got %v", err)
	}
	var serverErr ServerError
	if !errors.As(err, &serverErr) || serverErr.Message != "streams: source not found" {
		t.Errorf("expected wrapped ServerError, got %v", err)
	}
}

func TestExchangeOffer_ContextCancel(t *testing.T) {
	serverClosed := make(chan error, 1)
	srv := newSignalingServer(t, func(conn *websocket.Conn) {
		readOffer(t, conn)
		_, _, err := conn.ReadMessage()
		serverClosed <- err
	})

	client, err := NewClient(nil, srv.URL, WithSource("camera1"), WithAnswerTimeout(10*time.Second))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = client.ExchangeOffer(ctx, NewOffer("v=0", nil))
	var e *go2rtc.Error
	if !errors.As(err, &e) || e.Kind != go2rtc.KindConnection {
		t.Fatalf("expected KindConnection error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took too long: %s", elapsed)
	}

	select {
	case <-serverClosed:
	case <-time.After(2 * time.Second):
		t.Error("connection was not closed after cancellation")
	}
}

func TestExchangeOffer_DialFailure(t *testing.T) {
	srv := newSignalingServer(t, func(conn *websocket.Conn) {})
	url := srv.URL
	srv.Close()

	client, err := NewClient(nil, url, WithSource("camera1"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.ExchangeOffer(context.Background(), NewOffer("v=0", nil))
	var e *go2rtc.Error
	if !errors.As(err, &e) || e.Kind != go2rtc.KindConnection {
		t.Fatalf("expected KindConnection error, got %v", err)
	}
}

func TestPersistent_SendAndSubscribe(t *testing.T) {
	received := make(chan string, 1)
	srv := newSignalingServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"webrtc","value":{"type":"answer","sdp":"X"}}`))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		conn.ReadMessage()
	})

	client, err := NewClient(nil, srv.URL, WithSource("camera1"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	msgs := make(chan any, 4)
	unsub := client.Subscribe(func(msg any) { msgs <- msg })
	defer unsub()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	// Connect again is a no-op.
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect failed: %v", err)
	}
	if !client.Connected() {
		t.Fatal("expected Connected after Connect")
	}

	select {
	case msg := <-msgs:
		answer, ok := msg.(Answer)
		if !ok || answer.SDP != "X" {
			t.Errorf("unexpected message: %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received the answer")
	}

	if err := client.SendCandidate("candidate:1"); err != nil {
		t.Fatalf("SendCandidate failed: %v", err)
	}
	select {
	case data := <-received:
		expected := `{"type":"webrtc/candidate","value":"candidate:1"}`
		if data != expected {
			t.Errorf("expected %s, got %s", expected, data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the candidate")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if client.Connected() {
		t.Error("expected disconnected after Close")
	}
}

func TestPersistent_SendNotConnected(t *testing.T) {
	client, err := NewClient(nil, "http://localhost:1984", WithSource("camera1"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	err = client.SendOffer(NewOffer("v=0", nil))
	var e *go2rtc.Error
	if !errors.As(err, &e) || e.Kind != go2rtc.KindConnection {
		t.Fatalf("expected KindConnection error, got %v", err)
	}
}

func TestPersistent_Unsubscribe(t *testing.T) {
	srv := newSignalingServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"webrtc","value":{"type":"answer","sdp":"X"}}`))
		conn.ReadMessage()
	})

	client, err := NewClient(nil, srv.URL, WithSource("camera1"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	msgs := make(chan any, 1)
	unsub := client.Subscribe(func(msg any) { msgs <- msg })
	unsub()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case msg := <-msgs:
		t.Errorf("unsubscribed callback still received %#v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}
