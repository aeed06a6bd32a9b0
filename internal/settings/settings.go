// Package settings holds the client-side provider configuration: baked-in
// defaults overlaid by user preferences, exposed as immutable snapshots.
package settings

import "sync/atomic"

// ProviderSettings is the user-facing configuration of one provider.
type ProviderSettings struct {
	Enabled      bool
	APIKey       string
	Endpoint     string
	APIVersion   string
	UseAlternate bool
}

// Settings is one immutable settings snapshot.
type Settings struct {
	// ServerURL points at the chat gateway.
	ServerURL string

	// AccessCode is presented to gated deployments.
	AccessCode string

	DefaultProvider string
	DefaultModel    string

	// Sampling defaults; zero means "unset" and is skipped on merge.
	Temperature float64
	TopP        float64

	Providers map[string]ProviderSettings
}

// Default returns the application defaults user preferences merge over.
func Default() Settings {
	return Settings{
		ServerURL:       "http://127.0.0.1:3210",
		DefaultProvider: "openai",
		DefaultModel:    "gpt-3.5-turbo",
		Temperature:     0.6,
		TopP:            1,
		Providers: map[string]ProviderSettings{
			"openai": {Enabled: true},
		},
	}
}

// Provider returns the settings for a provider id, zero when absent.
func (s Settings) Provider(id string) ProviderSettings {
	return s.Providers[id]
}

// Merge overlays user settings on a base. Precedence is field-wise: a
// non-zero override field wins, everything else keeps the base value.
// Provider entries present in the override replace the base entry's
// non-zero fields the same way.
func Merge(base, override Settings) Settings {
	merged := base
	merged.Providers = make(map[string]ProviderSettings, len(base.Providers)+len(override.Providers))
	for id, p := range base.Providers {
		merged.Providers[id] = p
	}

	if override.ServerURL != "" {
		merged.ServerURL = override.ServerURL
	}
	if override.AccessCode != "" {
		merged.AccessCode = override.AccessCode
	}
	if override.DefaultProvider != "" {
		merged.DefaultProvider = override.DefaultProvider
	}
	if override.DefaultModel != "" {
		merged.DefaultModel = override.DefaultModel
	}
	if override.Temperature != 0 {
		merged.Temperature = override.Temperature
	}
	if override.TopP != 0 {
		merged.TopP = override.TopP
	}

	for id, over := range override.Providers {
		out := merged.Providers[id]
		out.Enabled = over.Enabled
		out.UseAlternate = over.UseAlternate
		if over.APIKey != "" {
			out.APIKey = over.APIKey
		}
		if over.Endpoint != "" {
			out.Endpoint = over.Endpoint
		}
		if over.APIVersion != "" {
			out.APIVersion = over.APIVersion
		}
		merged.Providers[id] = out
	}

	return merged
}

// Store holds the current settings snapshot. Mutation happens only through
// Update, which installs a whole new snapshot; in-flight requests keep
// reading the one they started with.
type Store struct {
	current atomic.Pointer[Settings]
}

// NewStore seeds a store. The initial snapshot is the given user settings
// merged over the application defaults.
func NewStore(user Settings) *Store {
	s := &Store{}
	merged := Merge(Default(), user)
	s.current.Store(&merged)
	return s
}

// Snapshot returns the current settings.
func (s *Store) Snapshot() Settings {
	return *s.current.Load()
}

// Update applies an explicit mutation command, producing and installing a
// new snapshot.
func (s *Store) Update(apply func(Settings) Settings) {
	next := apply(s.Snapshot())
	s.current.Store(&next)
}
