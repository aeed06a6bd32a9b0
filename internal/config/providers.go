package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type providersFile struct {
	Providers ProvidersConfig `yaml:"providers"`
}

// LoadProvidersFile reads the provider settings file from disk.
func LoadProvidersFile(path string) (ProvidersConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve providers file path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read providers file %q: %w", absPath, err)
	}

	var parsed providersFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse providers file %q: %w", absPath, err)
	}

	for id, provider := range parsed.Providers {
		if provider.BaseURL != "" && !strings.Contains(provider.BaseURL, "://") {
			return nil, fmt.Errorf("provider %s: base_url %q must be an absolute URL", id, provider.BaseURL)
		}
	}
	return parsed.Providers, nil
}
