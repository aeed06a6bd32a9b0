package dispatch

import (
	"errors"
	"testing"

	"github.com/xinggonglie/lobe-chat-2/internal/auth"
	"github.com/xinggonglie/lobe-chat-2/internal/config"
	"github.com/xinggonglie/lobe-chat-2/internal/provider"
	azureclient "github.com/xinggonglie/lobe-chat-2/internal/provider/azure"
)

func newStore(providers config.ProvidersConfig) *config.Store {
	return config.NewStore(config.Config{
		Server:    config.ServerConfig{Port: 3210},
		Auth:      config.AuthConfig{TokenSecret: "s"},
		Providers: providers,
	})
}

func TestInitializeUnknownProvider(t *testing.T) {
	d := NewDispatcher(newStore(nil), nil)

	_, err := d.Initialize("bedrock", nil, Overrides{})
	if !errors.Is(err, provider.ErrInvalidProvider) {
		t.Fatalf("error = %v, want ErrInvalidProvider", err)
	}

	var initErr *provider.InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("error = %v, want *InitError", err)
	}
	if initErr.Provider != "bedrock" {
		t.Errorf("provider = %q", initErr.Provider)
	}
}

func TestInitializeMissingKey(t *testing.T) {
	d := NewDispatcher(newStore(nil), nil)

	_, err := d.Initialize(config.ProviderOpenAI, nil, Overrides{})
	if !errors.Is(err, provider.ErrMissingAPIKey) {
		t.Errorf("error = %v, want ErrMissingAPIKey", err)
	}
}

func TestInitializeUserKeySuffices(t *testing.T) {
	d := NewDispatcher(newStore(nil), nil)

	client, err := d.Initialize(config.ProviderOpenAI, &auth.Payload{APIKey: "sk-user"}, Overrides{})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if client == nil {
		t.Fatal("client is nil")
	}
}

func TestInitializeDeploymentKey(t *testing.T) {
	d := NewDispatcher(newStore(config.ProvidersConfig{
		config.ProviderMoonshot: {Enabled: true, APIKey: "mk-deploy"},
	}), nil)

	if _, err := d.Initialize(config.ProviderMoonshot, nil, Overrides{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}

func TestInitializeAlternateRoutesToAzure(t *testing.T) {
	d := NewDispatcher(newStore(config.ProvidersConfig{
		config.ProviderAzure: {
			Enabled: true,
			APIKey:  "az-key",
			BaseURL: "https://res.openai.azure.com",
		},
	}), nil)

	client, err := d.Initialize(config.ProviderOpenAI, &auth.Payload{UseAlternate: true}, Overrides{})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, ok := client.(*azureclient.Client); !ok {
		t.Errorf("client = %T, want *azure.Client", client)
	}
}

func TestInitializeAlternateWithoutAzureConfigFails(t *testing.T) {
	d := NewDispatcher(newStore(nil), nil)

	_, err := d.Initialize(config.ProviderOpenAI, &auth.Payload{UseAlternate: true, APIKey: "sk"}, Overrides{})

	var initErr *provider.InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("error = %v, want *InitError", err)
	}
	if initErr.Provider != config.ProviderAzure {
		t.Errorf("provider = %q, want azure", initErr.Provider)
	}
}

func TestResolveCredentials(t *testing.T) {
	base := config.ProviderConfig{
		APIKey:     "deploy-key",
		BaseURL:    "https://deploy.example.com",
		APIVersion: "v-deploy",
	}

	tests := []struct {
		name    string
		payload *auth.Payload
		ov      Overrides
		want    config.ProviderConfig
	}{
		{"no overrides", nil, Overrides{}, base},
		{
			"user key wins",
			&auth.Payload{APIKey: "user-key"},
			Overrides{},
			config.ProviderConfig{APIKey: "user-key", BaseURL: "https://deploy.example.com", APIVersion: "v-deploy"},
		},
		{
			"user endpoint wins",
			&auth.Payload{Endpoint: "https://user.example.com"},
			Overrides{},
			config.ProviderConfig{APIKey: "deploy-key", BaseURL: "https://user.example.com", APIVersion: "v-deploy"},
		},
		{
			"request override beats payload version",
			&auth.Payload{APIVersion: "v-payload"},
			Overrides{APIVersion: "v-request"},
			config.ProviderConfig{APIKey: "deploy-key", BaseURL: "https://deploy.example.com", APIVersion: "v-request"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveCredentials(base, tt.payload, tt.ov)
			if got != tt.want {
				t.Errorf("resolveCredentials() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
