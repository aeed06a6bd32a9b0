package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xinggonglie/lobe-chat-2/internal/models"
)

func TestTranslateSystemInstruction(t *testing.T) {
	req := translate(models.ChatPayload{
		Model: "gemini-pro",
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "be terse"},
			{Role: models.RoleUser, Content: "hello"},
			{Role: models.RoleAssistant, Content: "hi"},
		},
	})

	if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "be terse" {
		t.Fatalf("system instruction = %+v", req.SystemInstruction)
	}
	if len(req.Contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2", len(req.Contents))
	}
	if req.Contents[0].Role != "user" {
		t.Errorf("contents[0].role = %q", req.Contents[0].Role)
	}
	if req.Contents[1].Role != "model" {
		t.Errorf("assistant must map to role model, got %q", req.Contents[1].Role)
	}
}

func TestTranslateInlineImageData(t *testing.T) {
	req := translate(models.ChatPayload{
		Model: "gemini-pro-vision",
		Messages: []models.Message{
			{
				Role: models.RoleUser,
				Parts: []models.ContentPart{
					models.TextPart{Text: "what is this"},
					models.ImagePart{URL: "data:image/png;base64,aGVsbG8="},
					models.ImagePart{URL: "https://example.com/cat.png"},
				},
			},
		},
	})

	parts := req.Contents[0].Parts
	if len(parts) != 3 {
		t.Fatalf("len(parts) = %d, want 3", len(parts))
	}
	if parts[0].Text != "what is this" {
		t.Errorf("parts[0] = %+v", parts[0])
	}
	if parts[1].InlineData == nil {
		t.Fatalf("data uri must become inline data, got %+v", parts[1])
	}
	if parts[1].InlineData.MIMEType != "image/png" || parts[1].InlineData.Data != "aGVsbG8=" {
		t.Errorf("inline data = %+v", parts[1].InlineData)
	}
	if parts[2].Text != "https://example.com/cat.png" {
		t.Errorf("remote urls degrade to text, got %+v", parts[2])
	}
}

func TestTranslateToolsAndGenerationConfig(t *testing.T) {
	temp := 0.4
	maxTokens := 256
	req := translate(models.ChatPayload{
		Model:       "gemini-pro",
		Messages:    []models.Message{{Role: models.RoleUser, Content: "hi"}},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Tools: []models.Tool{
			{Type: "function", Function: models.FunctionDefinition{Name: "calc"}},
			{Type: "function", Function: models.FunctionDefinition{Name: "clock"}},
		},
	})

	if len(req.Tools) != 1 || len(req.Tools[0].FunctionDeclarations) != 2 {
		t.Fatalf("tools = %+v", req.Tools)
	}
	if req.Tools[0].FunctionDeclarations[0].Name != "calc" {
		t.Errorf("declarations = %+v", req.Tools[0].FunctionDeclarations)
	}
	if req.GenerationConfig == nil || *req.GenerationConfig.Temperature != 0.4 || *req.GenerationConfig.MaxOutputTokens != 256 {
		t.Errorf("generation config = %+v", req.GenerationConfig)
	}
}

func TestDecodeDataURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		ok   bool
	}{
		{"valid png", "data:image/png;base64,aGVsbG8=", true},
		{"not a data uri", "https://example.com/a.png", false},
		{"missing base64 marker", "data:image/png,plain", false},
		{"invalid base64", "data:image/png;base64,!!!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := decodeDataURI(tt.uri)
			if ok != tt.ok {
				t.Errorf("decodeDataURI(%q) ok = %v, want %v", tt.uri, ok, tt.ok)
			}
		})
	}
}

func TestChatRequestShape(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("data: {}\n\n"))
	}))
	defer srv.Close()

	c, err := New(Options{APIKey: "g-key", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := c.Chat(context.Background(), models.ChatPayload{
		Model:    "gemini-pro",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	resp.Close()

	if gotPath != "/v1beta/models/gemini-pro:streamGenerateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if got := gotQuery["alt"]; len(got) != 1 || got[0] != "sse" {
		t.Errorf("alt query = %v", got)
	}
	if got := gotQuery["key"]; len(got) != 1 || got[0] != "g-key" {
		t.Errorf("key query = %v", got)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "hello" {
		t.Errorf("body = %+v", gotBody)
	}
}
