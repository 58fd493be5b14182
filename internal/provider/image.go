package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var _ Client = (*ImageClient)(nil)

// ImageClient calls an OpenAI-compatible /images/generations endpoint.
type ImageClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewImageClient creates a new image generation client.
func NewImageClient(cfg ClientConfig) *ImageClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &ImageClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		client:  cfg.httpClient(),
	}
}

type imageRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Invoke generates one image and returns its URL. Inline base64 payloads are
// returned as data URLs.
func (c *ImageClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	if req.Kind != KindImage || req.Image == nil {
		return nil, errors.New("image: request has no image parameters")
	}

	prompt := req.Image.Prompt
	if req.Image.Style != "" {
		prompt += ". Style: " + req.Image.Style
	}
	body := imageRequest{
		Model:  c.model,
		Prompt: prompt,
		N:      1,
	}
	if req.Image.Width > 0 && req.Image.Height > 0 {
		body.Size = req.Image.Size()
	}

	var resp imageResponse
	if err := postJSON(ctx, c.client, c.baseURL+"/images/generations", "image", c.setHeaders, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("image: response has no data")
	}
	switch d := resp.Data[0]; {
	case d.URL != "":
		return &Response{URL: d.URL}, nil
	case d.B64JSON != "":
		return &Response{URL: "data:image/png;base64," + d.B64JSON}, nil
	}
	return nil, errors.New("image: response has neither url nor b64_json")
}

func (c *ImageClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
