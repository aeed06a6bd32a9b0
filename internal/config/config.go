// Package config resolves deployment configuration into immutable
// snapshots. Request handling only ever reads snapshots; the watcher swaps
// in a whole new snapshot when the provider settings file changes.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Provider identifiers known to the dispatcher.
const (
	ProviderOpenAI   = "openai"
	ProviderAzure    = "azure"
	ProviderGoogle   = "google"
	ProviderMoonshot = "moonshot"
	ProviderZhipu    = "zhipu"
	ProviderOllama   = "ollama"
)

// Config is one immutable deployment configuration snapshot.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Plugin    PluginConfig    `mapstructure:"plugin" yaml:"plugin"`
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`

	// ProvidersFile optionally points at a YAML file whose provider entries
	// override the environment-derived ones and can be hot-reloaded.
	ProvidersFile string `mapstructure:"providers_file" yaml:"providers_file"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// AuthConfig controls request gating.
type AuthConfig struct {
	// GateKeeper requires callers to present the access code or their own
	// provider key.
	GateKeeper bool `mapstructure:"gate_keeper" yaml:"gate_keeper"`

	// AccessCode is the deployment secret callers may present.
	AccessCode string `mapstructure:"access_code" yaml:"access_code"`

	// TokenSecret signs and verifies the bearer payload.
	TokenSecret string `mapstructure:"token_secret" yaml:"token_secret"`
}

// PluginConfig configures the plugin gateway.
type PluginConfig struct {
	// GatewayURL is used when a plugin manifest does not name its own
	// gateway endpoint.
	GatewayURL string `mapstructure:"gateway_url" yaml:"gateway_url"`
}

// ProvidersConfig catalogues configured upstream providers by identifier.
type ProvidersConfig map[string]ProviderConfig

// ProviderConfig captures credentials and routing info for one provider.
type ProviderConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	APIVersion string `mapstructure:"api_version" yaml:"api_version"`
}

// Load resolves configuration from defaults, an optional config file, and
// the environment (LOBE_* variables plus the conventional provider key
// names). The result is validated before being returned.
func Load(cfgFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 3210)
	v.SetDefault("auth.gate_keeper", false)
	v.SetDefault("plugin.gateway_url", "https://plugins.example.com/api/v1/runner")

	v.SetEnvPrefix("LOBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional provider variables outrank nothing; they just seed the
	// deployment defaults the auth payload may still override per request.
	bindings := map[string]string{
		"auth.access_code":               "LOBE_ACCESS_CODE",
		"auth.token_secret":              "LOBE_TOKEN_SECRET",
		"providers.openai.api_key":       "OPENAI_API_KEY",
		"providers.openai.base_url":      "OPENAI_PROXY_URL",
		"providers.azure.api_key":        "AZURE_API_KEY",
		"providers.azure.base_url":       "AZURE_ENDPOINT",
		"providers.azure.api_version":    "AZURE_API_VERSION",
		"providers.google.api_key":       "GOOGLE_API_KEY",
		"providers.moonshot.api_key":     "MOONSHOT_API_KEY",
		"providers.zhipu.api_key":        "ZHIPU_API_KEY",
		"providers.ollama.base_url":      "OLLAMA_HOST",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode configuration: %w", err)
	}

	if cfg.ProvidersFile != "" {
		overrides, err := LoadProvidersFile(cfg.ProvidersFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Providers = MergeProviders(cfg.Providers, overrides)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Auth.GateKeeper {
		if strings.TrimSpace(c.Auth.AccessCode) == "" {
			return fmt.Errorf("auth.access_code must be set when gate_keeper is enabled")
		}
	}
	if strings.TrimSpace(c.Auth.TokenSecret) == "" {
		return fmt.Errorf("auth.token_secret must be set")
	}
	for id, provider := range c.Providers {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("provider identifier must not be empty")
		}
		if provider.BaseURL != "" && !strings.Contains(provider.BaseURL, "://") {
			return fmt.Errorf("provider %s: base_url %q must be an absolute URL", id, provider.BaseURL)
		}
	}
	return nil
}

// Provider returns the configuration for a provider id, zero when absent.
func (c Config) Provider(id string) ProviderConfig {
	return c.Providers[id]
}

// MergeProviders overlays per-provider overrides on a base catalogue.
// Precedence is field-wise: a non-zero override field wins, everything else
// keeps the base value. Enabled is taken from the override whenever the
// provider appears there at all.
func MergeProviders(base, overrides ProvidersConfig) ProvidersConfig {
	merged := make(ProvidersConfig, len(base)+len(overrides))
	for id, cfg := range base {
		merged[id] = cfg
	}
	for id, over := range overrides {
		out := merged[id]
		out.Enabled = over.Enabled
		if over.APIKey != "" {
			out.APIKey = over.APIKey
		}
		if over.BaseURL != "" {
			out.BaseURL = over.BaseURL
		}
		if over.APIVersion != "" {
			out.APIVersion = over.APIVersion
		}
		merged[id] = out
	}
	return merged
}
