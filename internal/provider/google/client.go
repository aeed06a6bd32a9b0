// Package google implements the Gemini REST wire. Unlike the OpenAI-shaped
// providers the payload is translated, but the streamed response body is
// still passed through untouched (alt=sse).
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/xinggonglie/lobe-chat-2/internal/models"
	"github.com/xinggonglie/lobe-chat-2/internal/provider"
)

const (
	name           = "google"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
)

// Options configures a Gemini client.
type Options struct {
	APIKey  string
	BaseURL string
}

// Client talks to the Gemini generateContent API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New constructs a client from resolved credentials.
func New(opts Options, client *http.Client) (*Client, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if opts.APIKey == "" {
		return nil, provider.ErrMissingAPIKey
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.Contains(baseURL, "://") {
		return nil, fmt.Errorf("base url %q must be an absolute URL", baseURL)
	}

	return &Client{apiKey: opts.APIKey, baseURL: baseURL, client: client}, nil
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	FunctionDeclarations []models.FunctionDefinition `json:"function_declarations"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generation_config,omitempty"`
}

// Chat translates the payload to the Gemini wire and forwards it, returning
// the SSE stream untouched.
func (c *Client) Chat(ctx context.Context, payload models.ChatPayload) (*provider.StreamResponse, error) {
	if err := payload.Validate(); err != nil {
		return nil, &provider.CompletionError{Provider: name, Err: err}
	}

	body, err := json.Marshal(translate(payload))
	if err != nil {
		return nil, &provider.CompletionError{Provider: name, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	chatURL := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		c.baseURL, url.PathEscape(payload.Model), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.CompletionError{Provider: name, Err: fmt.Errorf("construct request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &provider.CompletionError{Provider: name, Err: err}
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, &provider.CompletionError{
			Provider:   name,
			StatusCode: resp.StatusCode,
			Err:        parseAPIError(resp),
		}
	}

	return &provider.StreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

func translate(payload models.ChatPayload) geminiRequest {
	var req geminiRequest

	for _, msg := range payload.Messages {
		switch msg.Role {
		case models.RoleSystem:
			// Gemini takes system text out of band.
			part := geminiPart{Text: msg.Text()}
			if req.SystemInstruction == nil {
				req.SystemInstruction = &geminiContent{Parts: []geminiPart{part}}
			} else {
				req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, part)
			}
		case models.RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "model",
				Parts: translateParts(msg),
			})
		default:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: translateParts(msg),
			})
		}
	}

	for _, tool := range payload.Tools {
		if len(req.Tools) == 0 {
			req.Tools = []geminiTool{{}}
		}
		req.Tools[0].FunctionDeclarations = append(req.Tools[0].FunctionDeclarations, tool.Function)
	}

	if payload.Temperature != nil || payload.TopP != nil || payload.MaxTokens != nil {
		req.GenerationConfig = &geminiGenerationConfig{
			Temperature:     payload.Temperature,
			TopP:            payload.TopP,
			MaxOutputTokens: payload.MaxTokens,
		}
	}

	return req
}

func translateParts(msg models.Message) []geminiPart {
	if len(msg.Parts) == 0 {
		return []geminiPart{{Text: msg.Content}}
	}

	parts := make([]geminiPart, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case models.TextPart:
			parts = append(parts, geminiPart{Text: p.Text})
		case models.ImagePart:
			if inline, ok := decodeDataURI(p.URL); ok {
				parts = append(parts, geminiPart{InlineData: inline})
			} else {
				// Gemini cannot fetch remote URLs; degrade to a reference.
				parts = append(parts, geminiPart{Text: p.URL})
			}
		}
	}
	return parts
}

// decodeDataURI splits a data:<mime>;base64,<data> URI into inline data.
func decodeDataURI(uri string) (*geminiInlineData, bool) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return nil, false
	}
	meta, data, ok := strings.Cut(strings.TrimPrefix(uri, prefix), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, false
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return nil, false
	}
	return &geminiInlineData{
		MIMEType: strings.TrimSuffix(meta, ";base64"),
		Data:     data,
	}, true
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("upstream error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr geminiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("upstream error (%s): %s", apiErr.Error.Status, apiErr.Error.Message)
	}

	return fmt.Errorf("upstream error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
