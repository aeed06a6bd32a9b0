// Package client is the application-side chat service: it shapes a message
// list into provider wire form and performs the outbound request to the
// chat gateway.
package client

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xinggonglie/lobe-chat-2/internal/models"
	"github.com/xinggonglie/lobe-chat-2/internal/plugin"
	"github.com/xinggonglie/lobe-chat-2/internal/settings"
)

// Params are the caller-supplied inputs for one assistant turn. Zero-value
// fields fall back to the settings defaults.
type Params struct {
	Provider string
	Model    string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	Messages       []models.Message
	EnabledPlugins []string
}

// Service shapes outgoing chat payloads and delegates the network call.
type Service struct {
	settings *settings.Store
	registry *plugin.Registry
	http     *http.Client
	secret   string
}

// NewService wires the chat service. A nil http client falls back to the
// default client; a nil registry means no tools resolve.
func NewService(store *settings.Store, registry *plugin.Registry, httpClient *http.Client, secret string) *Service {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if registry == nil {
		registry = plugin.NewRegistry()
	}
	return &Service{
		settings: store,
		registry: registry,
		http:     httpClient,
		secret:   secret,
	}
}

// CreateAssistantMessage shapes the conversation and requests a completion.
// The returned response is the gateway's raw streaming response; the caller
// owns closing its body. Shaping is pure: the same inputs always produce
// the same outbound payload.
func (s *Service) CreateAssistantMessage(ctx context.Context, p Params) (*http.Response, error) {
	snap := s.settings.Snapshot()

	providerID := p.Provider
	if providerID == "" {
		providerID = snap.DefaultProvider
	}
	model := p.Model
	if model == "" {
		model = snap.DefaultModel
	}
	card := models.LookupCard(model)

	shaped := ShapeMessages(p.Messages, card)

	// Tools attach only when something resolved AND the model can call
	// functions; otherwise the field is omitted entirely.
	var tools []models.Tool
	if card.FunctionCall {
		tools = s.registry.Tools(p.EnabledPlugins)
	}
	if len(tools) > 0 {
		shaped = injectSystemRoles(shaped, s.registry.SystemRoles(p.EnabledPlugins))
	}

	payload := models.ChatPayload{
		Model:       model,
		Messages:    shaped,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		MaxTokens:   p.MaxTokens,
		Stream:      true,
		Tools:       tools,
	}
	if payload.Temperature == nil && snap.Temperature != 0 {
		t := snap.Temperature
		payload.Temperature = &t
	}
	if payload.TopP == nil && snap.TopP != 0 {
		t := snap.TopP
		payload.TopP = &t
	}

	return s.GetChatCompletion(ctx, providerID, payload)
}

// ShapeMessages produces the wire form of a message list for a model. Input
// messages are never mutated.
func ShapeMessages(messages []models.Message, card models.Card) []models.Message {
	shaped := make([]models.Message, 0, len(messages))
	for i, msg := range messages {
		out := models.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}

		if msg.Role == models.RoleFunction {
			out.Name = msg.PluginID
			if msg.PluginID == "" {
				// Passed through with an empty wire name; see the gateway's
				// payload validation for where this surfaces.
				slog.Warn("function message without plugin identifier", "index", i)
			}
		}

		if card.Vision {
			if images := resolveImages(msg.Files); len(images) > 0 {
				parts := make([]models.ContentPart, 0, len(images)+1)
				parts = append(parts, models.TextPart{Text: msg.Content})
				for _, url := range images {
					parts = append(parts, models.ImagePart{URL: url, Detail: models.ImageDetailAuto})
				}
				out.Content = ""
				out.Parts = parts
			}
		}

		shaped = append(shaped, out)
	}
	return shaped
}

// resolveImages keeps the file references that can be sent to a provider:
// absolute URLs and inline data URIs.
func resolveImages(files []string) []string {
	var resolved []string
	for _, f := range files {
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") || strings.HasPrefix(f, "data:") {
			resolved = append(resolved, f)
		}
	}
	return resolved
}

// injectSystemRoles merges tool system-prompt contributions into the
// conversation's system message, creating one when none exists. Sections
// are separated by a blank line.
func injectSystemRoles(messages []models.Message, roles []string) []models.Message {
	if len(roles) == 0 {
		return messages
	}
	contribution := strings.Join(roles, "\n\n")

	out := make([]models.Message, len(messages))
	copy(out, messages)

	for i, msg := range out {
		if msg.Role == models.RoleSystem {
			if msg.Content == "" {
				out[i].Content = contribution
			} else {
				out[i].Content = msg.Content + "\n\n" + contribution
			}
			return out
		}
	}

	system := models.Message{Role: models.RoleSystem, Content: contribution}
	return append([]models.Message{system}, out...)
}
