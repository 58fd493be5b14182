// Package provider adapts external LLM and image services to one uniform
// request/response shape and classifies their failures.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dusk-indust/sitegen/internal/site"
)

// Kind selects between text completion and image generation.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Request is the vendor-neutral provider request.
type Request struct {
	Kind        Kind
	Stage       site.StageName
	System      string
	Prompt      string
	JSON        bool // ask for a JSON object response
	MaxTokens   int
	Temperature float64
	Image       *ImageParams
}

// ImageParams describes an image generation request.
type ImageParams struct {
	Prompt string
	Width  int
	Height int
	Style  string
}

// Size renders the dimensions as "WxH".
func (p ImageParams) Size() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// Response carries either generated text or an image URL.
type Response struct {
	Provider string
	Text     string
	URL      string
	Latency  time.Duration
}

// Client is one provider endpoint.
type Client interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// Invoke calls f(ctx, req).
func (f ClientFunc) Invoke(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Chain is a priority-ordered list of provider IDs for one stage.
type Chain []string

// StatusError is a non-2xx HTTP response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// ClientConfig holds the settings for constructing a concrete client.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func (c ClientConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	// Per-call deadlines come from the adapter's context.
	return &http.Client{}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
