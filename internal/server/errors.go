package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xinggonglie/lobe-chat-2/internal/auth"
	"github.com/xinggonglie/lobe-chat-2/internal/plugin"
	"github.com/xinggonglie/lobe-chat-2/internal/provider"
)

// ErrorKind names the failure classes surfaced to HTTP callers.
type ErrorKind string

const (
	KindUnauthorized       ErrorKind = "Unauthorized"
	KindInvalidProvider    ErrorKind = "InvalidProvider"
	KindInvalidModelConfig ErrorKind = "InvalidModelConfig"
	KindProviderInit       ErrorKind = "ProviderInitError"
	KindProviderCompletion ErrorKind = "ProviderCompletionError"
	KindInternalServer     ErrorKind = "InternalServerError"
	KindPluginGateway      ErrorKind = "PluginGatewayError"
)

// envelopeError is the typed error the chat route raises; the central error
// handler renders it as the JSON envelope.
type envelopeError struct {
	Status   int
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e envelopeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e envelopeError) Unwrap() error { return e.Err }

type errorEnvelope struct {
	Error     string    `json:"error"`
	ErrorType ErrorKind `json:"errorType"`
	Provider  string    `json:"provider,omitempty"`
}

// classify maps an error to its envelope. Initialization-time failures
// (auth, credential resolution, client construction) and completion-time
// failures deliberately land in different kinds; anything unclassified
// defaults to an internal server error.
func classify(providerID string, err error) envelopeError {
	switch {
	case errors.Is(err, auth.ErrMissingAuthHeader),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrUnauthorized):
		return envelopeError{Status: http.StatusUnauthorized, Kind: KindUnauthorized, Provider: providerID, Err: err}
	}

	var initErr *provider.InitError
	if errors.As(err, &initErr) {
		kind := KindProviderInit
		if errors.Is(err, provider.ErrInvalidProvider) {
			kind = KindInvalidProvider
		}
		return envelopeError{Status: http.StatusBadRequest, Kind: kind, Provider: initErr.Provider, Err: err}
	}

	var completionErr *provider.CompletionError
	if errors.As(err, &completionErr) {
		status := http.StatusBadGateway
		if completionErr.StatusCode >= 400 {
			status = completionErr.StatusCode
		}
		return envelopeError{Status: status, Kind: KindProviderCompletion, Provider: completionErr.Provider, Err: err}
	}

	var gatewayErr *plugin.GatewayError
	if errors.As(err, &gatewayErr) {
		return envelopeError{Status: http.StatusBadGateway, Kind: KindPluginGateway, Provider: providerID, Err: err}
	}

	return envelopeError{Status: http.StatusInternalServerError, Kind: KindInternalServer, Provider: providerID, Err: err}
}

func writeEnvelope(c echo.Context, e envelopeError) error {
	return c.JSON(e.Status, errorEnvelope{
		Error:     e.Error(),
		ErrorType: e.Kind,
		Provider:  e.Provider,
	})
}

// errorHandler renders every route failure as the JSON envelope; callers
// never see a bare stack trace.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var envErr envelopeError
	if errors.As(err, &envErr) {
		_ = writeEnvelope(c, envErr)
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = c.JSON(httpErr.Code, errorEnvelope{
			Error:     http.StatusText(httpErr.Code),
			ErrorType: KindInternalServer,
		})
		return
	}

	_ = writeEnvelope(c, classify("", err))
}
