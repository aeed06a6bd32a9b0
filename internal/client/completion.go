package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/xinggonglie/lobe-chat-2/internal/auth"
	"github.com/xinggonglie/lobe-chat-2/internal/models"
)

// GetChatCompletion performs the generic completion call: it signs the
// bearer payload for the selected provider and POSTs the chat payload to
// the gateway's provider route. No retry, no timeout: cancelling ctx is
// the only way to abort, which also tears down the response stream.
// The response is returned unparsed.
func (s *Service) GetChatCompletion(ctx context.Context, providerID string, payload models.ChatPayload) (*http.Response, error) {
	snap := s.settings.Snapshot()

	providerSettings := snap.Provider(providerID)
	bearer, err := auth.Sign(auth.Payload{
		AccessCode:   snap.AccessCode,
		APIKey:       providerSettings.APIKey,
		Endpoint:     providerSettings.Endpoint,
		APIVersion:   providerSettings.APIVersion,
		UseAlternate: providerSettings.UseAlternate,
	}, s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign auth payload: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat payload: %w", err)
	}

	endpoint := strings.TrimRight(snap.ServerURL, "/") + "/api/chat/" + providerID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion request: %w", err)
	}
	return resp, nil
}
