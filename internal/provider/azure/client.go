// Package azure implements the Azure-hosted OpenAI deployment wire. It
// differs from the plain OpenAI wire in its URL layout, its api-key header
// and the mandatory api-version query parameter.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/xinggonglie/lobe-chat-2/internal/models"
	"github.com/xinggonglie/lobe-chat-2/internal/provider"
	openaiclient "github.com/xinggonglie/lobe-chat-2/internal/provider/openai"
)

const (
	name = "azure"

	// DefaultAPIVersion is used when neither the deployment nor the request
	// pins a version.
	DefaultAPIVersion = "2023-08-01-preview"
)

// Options configures an Azure client.
type Options struct {
	APIKey     string
	Endpoint   string
	APIVersion string
}

// Client talks to one Azure OpenAI resource. The deployment name is taken
// from the payload's model at call time.
type Client struct {
	apiKey     string
	endpoint   string
	apiVersion string
	client     *http.Client
}

// New constructs a client from resolved credentials.
func New(opts Options, client *http.Client) (*Client, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if opts.APIKey == "" {
		return nil, provider.ErrMissingAPIKey
	}

	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		return nil, errors.New("azure endpoint must not be empty")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("malformed azure endpoint %q: %w", endpoint, err)
	}

	apiVersion := opts.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	return &Client{
		apiKey:     opts.APIKey,
		endpoint:   endpoint,
		apiVersion: apiVersion,
		client:     client,
	}, nil
}

// Chat forwards the payload to the deployment named by the payload model.
func (c *Client) Chat(ctx context.Context, payload models.ChatPayload) (*provider.StreamResponse, error) {
	if err := payload.Validate(); err != nil {
		return nil, &provider.CompletionError{Provider: name, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &provider.CompletionError{Provider: name, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	chatURL := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, url.PathEscape(payload.Model), url.QueryEscape(c.apiVersion))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.CompletionError{Provider: name, Err: fmt.Errorf("construct request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &provider.CompletionError{Provider: name, Err: err}
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, &provider.CompletionError{
			Provider:   name,
			StatusCode: resp.StatusCode,
			Err:        openaiclient.ParseAPIError(resp),
		}
	}

	return &provider.StreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}
