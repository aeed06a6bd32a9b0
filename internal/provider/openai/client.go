// Package openai implements the OpenAI chat-completions wire. Providers
// that speak the same wire (moonshot, zhipu) reuse it under their own name
// and base URL.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xinggonglie/lobe-chat-2/internal/models"
	"github.com/xinggonglie/lobe-chat-2/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "lobe-chat/0.1"
)

// Options configures an OpenAI-wire client.
type Options struct {
	APIKey  string
	BaseURL string
}

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	name    string
	apiKey  string
	client  *http.Client
	chatURL string
}

// New constructs a client. Construction validates configuration only; no
// network I/O happens here.
func New(name string, opts Options, client *http.Client) (*Client, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if opts.APIKey == "" {
		return nil, provider.ErrMissingAPIKey
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}
	if !strings.Contains(baseURL, "://") {
		return nil, fmt.Errorf("base url %q must be an absolute URL", baseURL)
	}

	return &Client{
		name:    name,
		apiKey:  opts.APIKey,
		client:  client,
		chatURL: baseURL + "/chat/completions",
	}, nil
}

// Chat forwards the payload and returns the raw streamed response body.
func (c *Client) Chat(ctx context.Context, payload models.ChatPayload) (*provider.StreamResponse, error) {
	if err := payload.Validate(); err != nil {
		return nil, &provider.CompletionError{Provider: c.name, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &provider.CompletionError{Provider: c.name, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.CompletionError{Provider: c.name, Err: fmt.Errorf("construct request: %w", err)}
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &provider.CompletionError{Provider: c.name, Err: err}
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, &provider.CompletionError{
			Provider:   c.name,
			StatusCode: resp.StatusCode,
			Err:        ParseAPIError(resp),
		}
	}

	return &provider.StreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ParseAPIError extracts a structured error from an upstream failure body.
func ParseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("upstream error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("upstream error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
	}

	return fmt.Errorf("upstream error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
