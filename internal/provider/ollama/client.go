// Package ollama backs the ollama provider with the official SDK. The
// SDK's callback stream is re-emitted as OpenAI-style SSE chunks through a
// pipe so the route's passthrough contract holds for every provider.
package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/xinggonglie/lobe-chat-2/internal/models"
	"github.com/xinggonglie/lobe-chat-2/internal/provider"
)

const name = "ollama"

// Options configures an ollama client. Host falls back to the OLLAMA_HOST
// environment convention when empty; no API key is required.
type Options struct {
	Host string
}

// Client wraps the official SDK client.
type Client struct {
	api *api.Client
}

// New constructs a client for the configured host.
func New(opts Options, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("http client must not be nil")
	}

	if opts.Host == "" {
		apiClient, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client from environment: %w", err)
		}
		return &Client{api: apiClient}, nil
	}

	parsed, err := url.Parse(opts.Host)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("malformed ollama host %q", opts.Host)
	}
	return &Client{api: api.NewClient(parsed, httpClient)}, nil
}

// Chat runs the SDK chat call and streams OpenAI-shaped chunks.
func (c *Client) Chat(ctx context.Context, payload models.ChatPayload) (*provider.StreamResponse, error) {
	if err := payload.Validate(); err != nil {
		return nil, &provider.CompletionError{Provider: name, Err: err}
	}

	req := buildRequest(payload)
	pr, pw := io.Pipe()

	chunkID := "chatcmpl-" + uuid.NewString()
	go func() {
		emit := func(resp api.ChatResponse) error {
			if err := writeChunk(pw, chunkID, resp); err != nil {
				return err
			}
			if resp.Done {
				_, err := io.WriteString(pw, "data: [DONE]\n\n")
				return err
			}
			return nil
		}

		err := c.api.Chat(ctx, req, emit)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("ollama chat: %w", err))
			return
		}
		pw.Close()
	}()

	header := make(http.Header)
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")

	return &provider.StreamResponse{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       pr,
	}, nil
}

func buildRequest(payload models.ChatPayload) *api.ChatRequest {
	messages := make([]api.Message, 0, len(payload.Messages))
	for _, msg := range payload.Messages {
		out := api.Message{
			Role:    string(msg.Role),
			Content: msg.Text(),
		}
		for _, imageURL := range msg.ImageURLs() {
			if data, ok := decodeDataURI(imageURL); ok {
				out.Images = append(out.Images, api.ImageData(data))
			}
		}
		messages = append(messages, out)
	}

	options := map[string]any{}
	if payload.Temperature != nil {
		options["temperature"] = *payload.Temperature
	}
	if payload.TopP != nil {
		options["top_p"] = *payload.TopP
	}
	if payload.MaxTokens != nil {
		options["num_predict"] = *payload.MaxTokens
	}

	stream := true
	return &api.ChatRequest{
		Model:    payload.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
}

type chunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chatChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

func writeChunk(w io.Writer, id string, resp api.ChatResponse) error {
	choice := chunkChoice{
		Delta: chunkDelta{
			Role:    resp.Message.Role,
			Content: resp.Message.Content,
		},
	}
	if resp.Done {
		reason := "stop"
		choice.FinishReason = &reason
	}

	chunk := chatChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []chunkChoice{choice},
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

func decodeDataURI(uri string) ([]byte, bool) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return nil, false
	}
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, prefix), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return data, true
}
