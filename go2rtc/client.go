// Package go2rtc is a typed client for the go2rtc media server's HTTP API.
package go2rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	apiPrefix      = "/api"
	defaultTimeout = 10 * time.Second
)

// Client issues requests against a go2rtc server. It holds no state of its
// own; every call is a single HTTP round trip with no retries.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL

	// Application covers the /api root endpoint.
	Application *ApplicationClient
	// Streams covers /api/streams.
	Streams *StreamClient
	// Config covers /api/config.
	Config *ConfigClient
	// WebRTC covers /api/webrtc.
	WebRTC *WebRTCClient
}

// NewClient creates a client bound to serverURL. A nil httpClient gets a
// private default with a 10 second timeout.
func NewClient(httpClient *http.Client, serverURL string) (*Client, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", serverURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    base,
	}
	c.Application = &ApplicationClient{c}
	c.Streams = &StreamClient{c}
	c.Config = &ConfigClient{c}
	c.WebRTC = &WebRTCClient{c}
	return c, nil
}

// request performs one HTTP round trip and returns the response body.
// Status mapping: 4xx → KindClient, 5xx → KindServer, transport failure →
// KindConnection.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := *c.baseURL
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// decode unmarshals a response body, mapping shape mismatches to KindDecode.
func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Kind: KindDecode, Body: string(data), Err: err}
	}
	return nil
}

// ApplicationClient reads server-level information.
type ApplicationClient struct {
	c *Client
}

// Info returns the server's application info.
func (a *ApplicationClient) Info(ctx context.Context) (*ApplicationInfo, error) {
	data, err := a.c.request(ctx, http.MethodGet, apiPrefix, nil, nil)
	if err != nil {
		return nil, err
	}
	var info ApplicationInfo
	if err := decode(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StreamClient manages streams registered with the server.
type StreamClient struct {
	c *Client
}

const streamsPath = apiPrefix + "/streams"

// List returns all registered streams keyed by name.
func (s *StreamClient) List(ctx context.Context) (map[string]Stream, error) {
	data, err := s.c.request(ctx, http.MethodGet, streamsPath, nil, nil)
	if err != nil {
		return nil, err
	}
	var streams map[string]Stream
	if err := decode(data, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

// Get returns a single stream by name.
func (s *StreamClient) Get(ctx context.Context, name string) (*Stream, error) {
	if name == "" {
		return nil, &Error{Kind: KindClient, Err: fmt.Errorf("stream name is empty")}
	}
	data, err := s.c.request(ctx, http.MethodGet, streamsPath, url.Values{"src": {name}}, nil)
	if err != nil {
		return nil, err
	}
	var stream Stream
	if err := decode(data, &stream); err != nil {
		return nil, err
	}
	return &stream, nil
}

// Add registers a stream with one or more source URLs.
func (s *StreamClient) Add(ctx context.Context, name string, sources ...string) error {
	if name == "" {
		return &Error{Kind: KindClient, Err: fmt.Errorf("stream name is empty")}
	}
	if len(sources) == 0 {
		return &Error{Kind: KindClient, Err: fmt.Errorf("stream %q: no sources given", name)}
	}
	query := url.Values{"name": {name}, "src": sources}
	_, err := s.c.request(ctx, http.MethodPut, streamsPath, query, nil)
	return err
}

// Remove deletes a stream from the server.
func (s *StreamClient) Remove(ctx context.Context, name string) error {
	if name == "" {
		return &Error{Kind: KindClient, Err: fmt.Errorf("stream name is empty")}
	}
	_, err := s.c.request(ctx, http.MethodDelete, streamsPath, url.Values{"src": {name}}, nil)
	return err
}

// ConfigClient reads and patches the server configuration.
type ConfigClient struct {
	c *Client
}

const configPath = apiPrefix + "/config"

// Get returns the raw server configuration.
func (cc *ConfigClient) Get(ctx context.Context) (json.RawMessage, error) {
	data, err := cc.c.request(ctx, http.MethodGet, configPath, nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Set merges patch into the server configuration. The server applies the
// change on its next restart.
func (cc *ConfigClient) Set(ctx context.Context, patch any) error {
	if patch == nil {
		return &Error{Kind: KindClient, Err: fmt.Errorf("config patch is empty")}
	}
	_, err := cc.c.request(ctx, http.MethodPost, configPath, nil, patch)
	return err
}

// WebRTCClient forwards WHEP-style SDP offers over plain HTTP.
type WebRTCClient struct {
	c *Client
}

const webrtcPath = apiPrefix + "/webrtc"

// ForwardOffer posts an SDP offer for the named source stream and returns
// the server's answer.
func (w *WebRTCClient) ForwardOffer(ctx context.Context, streamName string, offer SDPPayload) (*SDPPayload, error) {
	if streamName == "" {
		return nil, &Error{Kind: KindClient, Err: fmt.Errorf("stream name is empty")}
	}
	data, err := w.c.request(ctx, http.MethodPost, webrtcPath, url.Values{"src": {streamName}}, offer)
	if err != nil {
		return nil, err
	}
	var answer SDPPayload
	if err := decode(data, &answer); err != nil {
		return nil, err
	}
	if answer.Type != "answer" {
		return nil, &Error{Kind: KindDecode, Body: string(data), Err: fmt.Errorf("expected answer, got %q", answer.Type)}
	}
	return &answer, nil
}
