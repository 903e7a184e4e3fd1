// Package transport delivers rendered order messages to the chat platform
// through an outbound webhook. The process never talks to the chat platform
// directly; a thin sender service owns the bot credentials and exposes a
// single JSON endpoint.
//
// Usage:
//
//	s := transport.NewSender("http://sender:9000/send")
//	err := s.Send(ctx, chatID, text)
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoEndpoint is returned when the sender was constructed without a URL.
var ErrNoEndpoint = errors.New("transport: sender endpoint not configured")

// Option customizes the Sender.
type Option func(*Sender)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the per-request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// Sender posts messages to the configured webhook endpoint.
type Sender struct {
	url    string
	client *http.Client
}

// NewSender builds a Sender for the given endpoint URL. An empty URL yields
// a sender whose Send always fails with ErrNoEndpoint; callers treat that
// as "delivery disabled".
func NewSender(url string, opts ...Option) *Sender {
	s := &Sender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether an endpoint is configured.
func (s *Sender) Enabled() bool { return s.url != "" }

type sendRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Send delivers text to chatID. Non-2xx responses become errors carrying the
// status and a truncated body excerpt.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if s.url == "" {
		return ErrNoEndpoint
	}

	body, err := json.Marshal(sendRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("transport: send: status %d: %s", resp.StatusCode, bytes.TrimSpace(excerpt))
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
	return nil
}
