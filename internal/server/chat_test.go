package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xinggonglie/lobe-chat-2/internal/auth"
	"github.com/xinggonglie/lobe-chat-2/internal/config"
	"github.com/xinggonglie/lobe-chat-2/internal/models"
	"github.com/xinggonglie/lobe-chat-2/internal/provider"
	"github.com/xinggonglie/lobe-chat-2/internal/provider/dispatch"
)

const testSecret = "test-secret"

type fakeDispatcher struct {
	calls  int
	client provider.Client
	err    error
}

func (f *fakeDispatcher) Initialize(providerID string, payload *auth.Payload, ov dispatch.Overrides) (provider.Client, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

type fakeClient struct {
	resp *provider.StreamResponse
	err  error
}

func (f *fakeClient) Chat(ctx context.Context, payload models.ChatPayload) (*provider.StreamResponse, error) {
	return f.resp, f.err
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 3210},
		Auth: config.AuthConfig{
			GateKeeper:  true,
			AccessCode:  "let-me-in",
			TokenSecret: testSecret,
		},
	}
}

func newTestServer(t *testing.T, d Dispatcher) http.Handler {
	t.Helper()
	srv, err := New(config.NewStore(testConfig()), d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv.Handler()
}

func signPayload(t *testing.T, p auth.Payload) string {
	t.Helper()
	token, err := auth.Sign(p, testSecret)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return "Bearer " + token
}

func chatRequest(body, authHeader string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat/openai", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an error envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

const validBody = `{"model":"gpt-3.5-turbo","messages":[{"role":"user","content":"hi"}],"stream":true}`

func TestChatMissingAuthHeader(t *testing.T) {
	d := &fakeDispatcher{}
	handler := newTestServer(t, d)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, chatRequest(validBody, ""))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.ErrorType != KindUnauthorized {
		t.Errorf("errorType = %q, want Unauthorized", env.ErrorType)
	}
	if d.calls != 0 {
		t.Errorf("dispatcher invoked %d times before auth passed", d.calls)
	}
}

func TestChatWrongAccessCode(t *testing.T) {
	d := &fakeDispatcher{}
	handler := newTestServer(t, d)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, chatRequest(validBody, signPayload(t, auth.Payload{AccessCode: "wrong"})))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.ErrorType != KindUnauthorized {
		t.Errorf("errorType = %q", env.ErrorType)
	}
	if d.calls != 0 {
		t.Errorf("dispatcher invoked %d times for an unauthorized caller", d.calls)
	}
}

func TestChatUserKeyBypassesGate(t *testing.T) {
	d := &fakeDispatcher{client: &fakeClient{resp: &provider.StreamResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader("data: [DONE]\n\n")),
	}}}
	handler := newTestServer(t, d)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, chatRequest(validBody, signPayload(t, auth.Payload{APIKey: "sk-user"})))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if d.calls != 1 {
		t.Errorf("dispatcher calls = %d, want 1", d.calls)
	}
}

func TestChatInvalidProvider(t *testing.T) {
	store := config.NewStore(testConfig())
	srv, err := New(store, dispatch.NewDispatcher(store, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chat/bedrock", strings.NewReader(validBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", signPayload(t, auth.Payload{AccessCode: "let-me-in"}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.ErrorType != KindInvalidProvider {
		t.Errorf("errorType = %q, want InvalidProvider", env.ErrorType)
	}
	if env.Provider != "bedrock" {
		t.Errorf("provider = %q", env.Provider)
	}
}

func TestChatStreamPassthrough(t *testing.T) {
	const stream = "data: {\"id\":\"chatcmpl-1\"}\n\ndata: [DONE]\n\n"
	d := &fakeDispatcher{client: &fakeClient{resp: &provider.StreamResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(stream)),
	}}}
	handler := newTestServer(t, d)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, chatRequest(validBody, signPayload(t, auth.Payload{AccessCode: "let-me-in"})))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("cache control = %q", got)
	}
	if rec.Body.String() != stream {
		t.Errorf("body = %q, want the upstream stream unchanged", rec.Body.String())
	}
}

func TestChatCompletionError(t *testing.T) {
	d := &fakeDispatcher{client: &fakeClient{err: &provider.CompletionError{
		Provider:   "openai",
		StatusCode: http.StatusTooManyRequests,
		Err:        errors.New("rate limit reached"),
	}}}
	handler := newTestServer(t, d)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, chatRequest(validBody, signPayload(t, auth.Payload{AccessCode: "let-me-in"})))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want upstream 429", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.ErrorType != KindProviderCompletion {
		t.Errorf("errorType = %q, want ProviderCompletionError", env.ErrorType)
	}
	if env.Provider != "openai" {
		t.Errorf("provider = %q", env.Provider)
	}
	if !strings.Contains(env.Error, "rate limit reached") {
		t.Errorf("error = %q", env.Error)
	}
}

func TestChatBadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "not-json"},
		{"trailing garbage", validBody + `{"again":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{client: &fakeClient{}}
			handler := newTestServer(t, d)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, chatRequest(tt.body, signPayload(t, auth.Payload{AccessCode: "let-me-in"})))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if env := decodeEnvelope(t, rec); env.ErrorType != KindInvalidModelConfig {
				t.Errorf("errorType = %q, want InvalidModelConfig", env.ErrorType)
			}
		})
	}
}

func TestChatEmptyRoleRejected(t *testing.T) {
	d := &fakeDispatcher{client: &fakeClient{}}
	handler := newTestServer(t, d)

	body := `{"model":"gpt-3.5-turbo","messages":[{"role":"","content":"hi"}]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, chatRequest(body, signPayload(t, auth.Payload{AccessCode: "let-me-in"})))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t, &fakeDispatcher{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestClassifyDefaultsToInternal(t *testing.T) {
	env := classify("openai", errors.New("boom"))
	if env.Status != http.StatusInternalServerError || env.Kind != KindInternalServer {
		t.Errorf("classify = %+v", env)
	}
}
