// Package dispatch maps provider identifiers to constructed clients,
// resolving per-request credential overrides against the deployment
// configuration snapshot.
package dispatch

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/xinggonglie/lobe-chat-2/internal/auth"
	"github.com/xinggonglie/lobe-chat-2/internal/config"
	"github.com/xinggonglie/lobe-chat-2/internal/provider"
	azureclient "github.com/xinggonglie/lobe-chat-2/internal/provider/azure"
	googleclient "github.com/xinggonglie/lobe-chat-2/internal/provider/google"
	ollamaclient "github.com/xinggonglie/lobe-chat-2/internal/provider/ollama"
	openaiclient "github.com/xinggonglie/lobe-chat-2/internal/provider/openai"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second

	openAIBaseURL   = "https://api.openai.com/v1"
	moonshotBaseURL = "https://api.moonshot.cn/v1"
	zhipuBaseURL    = "https://open.bigmodel.cn/api/paas/v4"
)

// Overrides carries per-request construction overrides.
type Overrides struct {
	APIVersion   string
	UseAlternate bool
}

// Dispatcher builds provider clients from the current configuration
// snapshot and the request's auth payload.
type Dispatcher struct {
	store  *config.Store
	client *http.Client
}

// NewDispatcher constructs a dispatcher. A nil http client gets the shared
// streaming-friendly default.
func NewDispatcher(store *config.Store, client *http.Client) *Dispatcher {
	if client == nil {
		client = NewHTTPClient()
	}
	return &Dispatcher{store: store, client: client}
}

// Initialize resolves credentials and constructs the client for a provider
// identifier. A user-supplied key or endpoint from the auth payload takes
// precedence over deployment defaults; request overrides take precedence
// over both for the fields they carry.
func (d *Dispatcher) Initialize(providerID string, payload *auth.Payload, ov Overrides) (provider.Client, error) {
	cfg := d.store.Snapshot()

	useAlternate := ov.UseAlternate
	if payload != nil && payload.UseAlternate {
		useAlternate = true
	}

	// The alternate regional variant of openai is the azure-hosted one.
	if providerID == config.ProviderOpenAI && useAlternate {
		providerID = config.ProviderAzure
	}

	resolved := resolveCredentials(cfg.Provider(providerID), payload, ov)

	switch providerID {
	case config.ProviderOpenAI:
		return newOpenAIWire(providerID, resolved, openAIBaseURL, d.client)
	case config.ProviderMoonshot:
		return newOpenAIWire(providerID, resolved, moonshotBaseURL, d.client)
	case config.ProviderZhipu:
		return newOpenAIWire(providerID, resolved, zhipuBaseURL, d.client)
	case config.ProviderAzure:
		client, err := azureclient.New(azureclient.Options{
			APIKey:     resolved.APIKey,
			Endpoint:   resolved.BaseURL,
			APIVersion: resolved.APIVersion,
		}, d.client)
		if err != nil {
			return nil, &provider.InitError{Provider: providerID, Err: err}
		}
		return client, nil
	case config.ProviderGoogle:
		client, err := googleclient.New(googleclient.Options{
			APIKey:  resolved.APIKey,
			BaseURL: resolved.BaseURL,
		}, d.client)
		if err != nil {
			return nil, &provider.InitError{Provider: providerID, Err: err}
		}
		return client, nil
	case config.ProviderOllama:
		client, err := ollamaclient.New(ollamaclient.Options{
			Host: resolved.BaseURL,
		}, d.client)
		if err != nil {
			return nil, &provider.InitError{Provider: providerID, Err: err}
		}
		return client, nil
	default:
		return nil, &provider.InitError{
			Provider: providerID,
			Err:      fmt.Errorf("%w: %s", provider.ErrInvalidProvider, providerID),
		}
	}
}

func newOpenAIWire(name string, resolved config.ProviderConfig, defaultBaseURL string, client *http.Client) (provider.Client, error) {
	if resolved.APIKey == "" {
		return nil, &provider.InitError{Provider: name, Err: provider.ErrMissingAPIKey}
	}
	baseURL := resolved.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	wire, err := openaiclient.New(name, openaiclient.Options{
		APIKey:  resolved.APIKey,
		BaseURL: baseURL,
	}, client)
	if err != nil {
		return nil, &provider.InitError{Provider: name, Err: err}
	}
	return wire, nil
}

// resolveCredentials merges the deployment defaults with the request's
// overrides. Exactly one key source is used: the user key when present,
// otherwise the deployment key.
func resolveCredentials(base config.ProviderConfig, payload *auth.Payload, ov Overrides) config.ProviderConfig {
	resolved := base
	if payload != nil {
		if payload.APIKey != "" {
			resolved.APIKey = payload.APIKey
		}
		if payload.Endpoint != "" {
			resolved.BaseURL = payload.Endpoint
		}
		if payload.APIVersion != "" {
			resolved.APIVersion = payload.APIVersion
		}
	}
	if ov.APIVersion != "" {
		resolved.APIVersion = ov.APIVersion
	}
	return resolved
}

// NewHTTPClient builds the shared upstream HTTP client. No overall timeout:
// response bodies are long-lived streams and cancellation is caller-driven
// through the request context.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: transport}
}
