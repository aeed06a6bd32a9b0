// Package provider constructs per-request clients for the configured LLM
// providers. Construction is pure configuration assembly; network I/O only
// happens inside Chat.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xinggonglie/lobe-chat-2/internal/models"
)

var (
	// ErrInvalidProvider indicates an unknown provider identifier.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAPIKey indicates neither the request nor the deployment
	// supplied a key for a provider that requires one.
	ErrMissingAPIKey = errors.New("provider api key not configured")
)

// Client is an initialized provider exposing a single operation.
type Client interface {
	// Chat forwards a chat completion request and returns the provider's
	// streaming response. The body is unread; callers own closing it.
	Chat(ctx context.Context, payload models.ChatPayload) (*StreamResponse, error)
}

// StreamResponse carries a provider's raw streamed reply.
type StreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Close releases the underlying stream.
func (r *StreamResponse) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// InitError marks a failure while assembling a provider client: missing
// credentials, malformed endpoint, unknown provider. It is distinct from
// CompletionError because the caller's remedy differs (fix configuration
// versus retry the provider).
type InitError struct {
	Provider string
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize provider %s: %v", e.Provider, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// CompletionError marks a failure during the completion call itself.
// StatusCode carries the upstream HTTP status when one was received.
type CompletionError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("provider %s completion: %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }
