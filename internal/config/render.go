package config

import (
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "go.yaml.in/yaml/v3"
)

// YAML renders the config with secrets redacted. Durations are written in
// Go syntax ("1m0s"), which Load accepts back.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

// TOML is YAML's TOML twin. It goes through the YAML document so durations
// keep their Go syntax.
func (c *Config) TOML() ([]byte, error) {
	b, err := c.YAML()
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return toml.Marshal(doc)
}

// Render picks YAML or TOML by name.
func (c *Config) Render(format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml", "yml":
		return c.YAML()
	case "toml":
		return c.TOML()
	default:
		return nil, fmt.Errorf("unknown format %q (want yaml or toml)", format)
	}
}
