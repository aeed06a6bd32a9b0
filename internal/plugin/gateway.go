package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// GatewayError is a structured non-2xx reply from a plugin gateway.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("plugin gateway status %d: %s", e.StatusCode, e.Message)
}

// CallGateway runs a plugin on its gateway. The request body is the plugin
// params with the manifest attached; plugin-specific headers are merged
// over the base headers. The decoded response body is returned on 2xx.
func CallGateway(ctx context.Context, client *http.Client, defaultURL string, p Plugin, params map[string]any, baseHeaders map[string]string) (json.RawMessage, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	gatewayURL := p.Manifest.Gateway
	if gatewayURL == "" {
		gatewayURL = defaultURL
	}
	if gatewayURL == "" {
		return nil, errors.New("no gateway url configured")
	}

	body := make(map[string]any, len(params)+1)
	for k, v := range params {
		body[k] = v
	}
	body["manifest"] = p.Manifest

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gatewayURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("construct gateway request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	for k, v := range baseHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range p.Manifest.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request for plugin %s: %w", p.Identifier, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseGatewayError(resp.StatusCode, raw)
	}

	return raw, nil
}

func parseGatewayError(status int, body []byte) *GatewayError {
	var structured struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &structured); err == nil {
		if structured.Message != "" {
			message = structured.Message
		} else if structured.Error != "" {
			message = structured.Error
		}
	}
	return &GatewayError{StatusCode: status, Message: message}
}
