// Package ws implements the WebSocket signaling client for go2rtc's
// /api/ws endpoint: a persistent subscribe-based connection plus a
// one-shot SDP offer/answer exchange.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go2rtc_home/client/go2rtc"
)

const (
	signalingPath        = "/api/ws"
	defaultAnswerTimeout = 10 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithSource binds the client to a source stream (playback).
func WithSource(name string) Option {
	return func(c *Client) { c.source = name }
}

// WithDestination binds the client to a destination stream (publish).
func WithDestination(name string) Option {
	return func(c *Client) { c.destination = name }
}

// WithAnswerTimeout overrides how long ExchangeOffer waits for the answer.
func WithAnswerTimeout(d time.Duration) Option {
	return func(c *Client) { c.answerTimeout = d }
}

// Client talks to the go2rtc signaling endpoint. A Client is bound to
// exactly one stream, as source or destination.
type Client struct {
	dialer        *websocket.Dialer
	wsURL         string
	source        string
	destination   string
	answerTimeout time.Duration

	mu   sync.Mutex // guards conn and outbound writes
	conn *websocket.Conn

	subMu   sync.Mutex
	subs    map[int]func(any)
	nextSub int
}

// NewClient creates a signaling client for serverURL. Exactly one of
// WithSource or WithDestination must be given. A nil dialer uses
// websocket.DefaultDialer.
func NewClient(dialer *websocket.Dialer, serverURL string, opts ...Option) (*Client, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c := &Client{
		dialer:        dialer,
		answerTimeout: defaultAnswerTimeout,
		subs:          make(map[int]func(any)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.source != "" && c.destination != "" {
		return nil, fmt.Errorf("source and destination cannot be set at the same time")
	}
	if c.source == "" && c.destination == "" {
		return nil, fmt.Errorf("source or destination must be set")
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("server url %q: unsupported scheme", serverURL)
	}
	u.Path = signalingPath

	query := url.Values{}
	if c.source != "" {
		query.Set("src", c.source)
	} else {
		query.Set("dst", c.destination)
	}
	u.RawQuery = query.Encode()
	c.wsURL = u.String()

	return c, nil
}

// Connected reports whether the persistent connection is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the signaling endpoint and starts the read loop.
// Calling Connect on a connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	log.Printf("[ws] connecting to %s", c.wsURL)
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return &go2rtc.Error{Kind: go2rtc.KindConnection, Err: err}
	}
	c.conn = conn

	go c.readLoop(conn)
	return nil
}

// Close shuts down the persistent connection. The client may be
// reconnected afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close()
}

// Subscribe registers a callback for decoded incoming messages (Answer,
// Candidate, ServerError). It returns an unsubscribe function.
func (c *Client) Subscribe(fn func(msg any)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// SendOffer sends a session description offer on the persistent connection.
func (c *Client) SendOffer(offer Offer) error {
	data, err := EncodeOffer(offer)
	if err != nil {
		return err
	}
	return c.send(data)
}

// SendCandidate sends a local ICE candidate on the persistent connection.
func (c *Client) SendCandidate(candidate string) error {
	data, err := EncodeCandidate(candidate)
	if err != nil {
		return err
	}
	return c.send(data)
}

func (c *Client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return &go2rtc.Error{Kind: go2rtc.KindConnection, Err: errors.New("not connected")}
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &go2rtc.Error{Kind: go2rtc.KindConnection, Err: err}
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := Decode(data)
		if err != nil {
			log.Printf("[ws] invalid message: %v", err)
			continue
		}
		if msg == nil {
			continue
		}
		c.notify(msg)
	}
}

func (c *Client) notify(msg any) {
	c.subMu.Lock()
	subs := make([]func(any), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
}

// ExchangeResult is the outcome of a one-shot offer/answer exchange.
type ExchangeResult struct {
	Answer Answer
	// Candidates trickled by the server before the answer arrived.
	Candidates []Candidate
}

// ExchangeOffer performs the one-shot signaling handshake: dial a fresh
// socket, send the offer, wait for the answer, close. The socket is closed
// on every exit path, including cancellation and timeout. Candidate frames
// received while waiting are buffered; an error frame ends the wait.
func (c *Client) ExchangeOffer(ctx context.Context, offer Offer) (*ExchangeResult, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return nil, &go2rtc.Error{Kind: go2rtc.KindConnection, Err: err}
	}
	defer conn.Close()

	// Unblock the read when the caller's context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	data, err := EncodeOffer(offer)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, &go2rtc.Error{Kind: go2rtc.KindConnection, Err: err}
	}

	deadline := time.Now().Add(c.answerTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var candidates []Candidate
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return nil, readError(ctx, err, c.answerTimeout)
		}

		msg, err := Decode(frame)
		if err != nil {
			return nil, &go2rtc.Error{Kind: go2rtc.KindDecode, Body: string(frame), Err: err}
		}
		switch m := msg.(type) {
		case Answer:
			return &ExchangeResult{Answer: m, Candidates: candidates}, nil
		case Candidate:
			candidates = append(candidates, m)
		case ServerError:
			return nil, &go2rtc.Error{Kind: go2rtc.KindServer, Err: m}
		}
	}
}

func readError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &go2rtc.Error{Kind: go2rtc.KindConnection, Err: ctx.Err()}
	}
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &go2rtc.Error{Kind: go2rtc.KindTimeout, Err: fmt.Errorf("no answer within %s: %w", timeout, err)}
	}
	return &go2rtc.Error{Kind: go2rtc.KindConnection, Err: err}
}
