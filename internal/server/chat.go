package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xinggonglie/lobe-chat-2/internal/auth"
	"github.com/xinggonglie/lobe-chat-2/internal/models"
	"github.com/xinggonglie/lobe-chat-2/internal/provider/dispatch"
)

// handleChat orchestrates one chat completion in two phases. Phase one
// (auth + client construction) and phase two (the completion call) have
// independent failure domains and never share an error envelope: the former
// means "fix your configuration", the latter "the provider failed".
func (s *Server) handleChat(c echo.Context) error {
	providerID := c.Param("provider")
	cfg := s.store.Snapshot()

	// Init phase.
	payload, err := auth.FromHeader(c.Request().Header.Get(echo.HeaderAuthorization), cfg.Auth.TokenSecret)
	if err != nil {
		return classify(providerID, err)
	}
	if err := auth.Check(payload, cfg); err != nil {
		return classify(providerID, err)
	}

	client, err := s.dispatcher.Initialize(providerID, payload, dispatch.Overrides{})
	if err != nil {
		return classify(providerID, err)
	}

	// Completion phase.
	var chatPayload models.ChatPayload
	if err := decodeRequestBody(c, &chatPayload); err != nil {
		return err
	}
	if err := chatPayload.Validate(); err != nil {
		return envelopeError{
			Status:   http.StatusBadRequest,
			Kind:     KindInvalidModelConfig,
			Provider: providerID,
			Err:      err,
		}
	}

	resp, err := client.Chat(c.Request().Context(), chatPayload)
	if err != nil {
		envErr := classify(providerID, err)
		slog.Error("chat completion failed",
			"provider", providerID,
			"errorType", string(envErr.Kind),
			"error", err,
		)
		return envErr
	}
	defer resp.Close()

	return streamThrough(c, resp.StatusCode, resp.Header, resp.Body)
}

// streamThrough forwards the provider's body to the caller unchanged,
// flushing as bytes arrive.
func streamThrough(c echo.Context, status int, header http.Header, body io.Reader) error {
	res := c.Response()

	if contentType := header.Get(echo.HeaderContentType); contentType != "" {
		res.Header().Set(echo.HeaderContentType, contentType)
	}
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(status)

	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := res.Write(buf[:n]); werr != nil {
				// Client went away mid-stream; nothing left to report.
				return nil
			}
			res.Flush()
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Upstream broke after the status was committed; the truncated
			// stream is the only signal the caller can still receive.
			slog.Warn("upstream stream interrupted", "error", err)
			return nil
		}
	}
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return envelopeError{
				Status: http.StatusBadRequest,
				Kind:   KindInvalidModelConfig,
				Err:    errors.New("request body is required"),
			}
		}
		return envelopeError{
			Status: http.StatusBadRequest,
			Kind:   KindInvalidModelConfig,
			Err:    fmt.Errorf("invalid JSON payload: %w", err),
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return envelopeError{
			Status: http.StatusBadRequest,
			Kind:   KindInvalidModelConfig,
			Err:    errors.New("request body must contain a single JSON object"),
		}
	}
	return nil
}
