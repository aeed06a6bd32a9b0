// Package plugin holds the tool registry and the gateway call that runs a
// plugin on its backend.
package plugin

import (
	"encoding/json"

	"github.com/xinggonglie/lobe-chat-2/internal/models"
)

// Manifest describes where and how a plugin's backend is reached.
type Manifest struct {
	// Gateway is the plugin's own runner endpoint. Empty means the
	// deployment's default gateway.
	Gateway string `json:"gateway,omitempty"`

	// Headers are plugin-specific headers merged over the base headers on
	// every gateway call.
	Headers map[string]string `json:"headers,omitempty"`
}

// Plugin is one registered tool.
type Plugin struct {
	// Identifier is the stable id callers enable the plugin by, and the
	// wire "name" of function-role messages it produces.
	Identifier string

	Title string

	// SystemRole is the plugin's system-prompt contribution, injected into
	// the conversation only when the plugin's tools are actually attached.
	SystemRole string

	// Function is the schema advertised to the model.
	Function models.FunctionDefinition

	Manifest Manifest
}

// Registry is an immutable snapshot of the known tools. It may be read
// concurrently by any number of in-flight requests.
type Registry struct {
	byID  map[string]Plugin
	order []string
}

// NewRegistry builds a registry from a fixed plugin set. Later duplicates
// of an identifier are ignored.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{byID: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		if p.Identifier == "" {
			continue
		}
		if _, exists := r.byID[p.Identifier]; exists {
			continue
		}
		r.byID[p.Identifier] = p
		r.order = append(r.order, p.Identifier)
	}
	return r
}

// Lookup returns the plugin for an identifier.
func (r *Registry) Lookup(id string) (Plugin, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Tools resolves enabled plugin identifiers into wire tool schemas,
// silently dropping identifiers the registry does not know.
func (r *Registry) Tools(ids []string) []models.Tool {
	var tools []models.Tool
	for _, id := range ids {
		p, ok := r.byID[id]
		if !ok {
			continue
		}
		tools = append(tools, models.Tool{Type: "function", Function: p.Function})
	}
	return tools
}

// SystemRoles returns the system-prompt contributions of the given enabled
// plugins, in request order, skipping plugins without one.
func (r *Registry) SystemRoles(ids []string) []string {
	var roles []string
	for _, id := range ids {
		p, ok := r.byID[id]
		if !ok || p.SystemRole == "" {
			continue
		}
		roles = append(roles, p.SystemRole)
	}
	return roles
}

// Identifiers lists the registered plugin ids in registration order.
func (r *Registry) Identifiers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Default returns the built-in tool set.
func Default() *Registry {
	return NewRegistry(
		Plugin{
			Identifier: "web-search",
			Title:      "Web Search",
			SystemRole: "You can search the web for up-to-date information.",
			Function: models.FunctionDefinition{
				Name:        "web-search",
				Description: "Search the web and return the top results for a query.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"query": {"type": "string", "description": "The search query"}
					},
					"required": ["query"]
				}`),
			},
		},
		Plugin{
			Identifier: "clock",
			Title:      "Clock",
			SystemRole: "You can look up the current date and time.",
			Function: models.FunctionDefinition{
				Name:        "clock",
				Description: "Return the current date and time in a given IANA time zone.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"timezone": {"type": "string", "description": "IANA time zone, e.g. Europe/Berlin"}
					}
				}`),
			},
		},
	)
}
