package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level configuration
type Config struct {
	Environment string            `json:"environment,omitempty" yaml:"environment,omitempty"`
	Fixtures    string            `json:"fixtures,omitempty" yaml:"fixtures,omitempty"`
	Timeout     string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Routes      []Route           `json:"routes,omitempty" yaml:"routes,omitempty"`
	Filters     []FilterRule      `json:"filters,omitempty" yaml:"filters,omitempty"`

	// dir is the directory of the loaded file; relative paths resolve against it.
	dir string
}

// Route sends matching requests to a provider other than the default.
type Route struct {
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	Pattern     string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Environment string `json:"environment" yaml:"environment"`
	Fixtures    string `json:"fixtures,omitempty" yaml:"fixtures,omitempty"`
	Prepend     bool   `json:"prepend,omitempty" yaml:"prepend,omitempty"`
}

// FilterRule applies a response filter to matching requests.
type FilterRule struct {
	URL        string          `json:"url,omitempty" yaml:"url,omitempty"`
	Pattern    string          `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Extract    string          `json:"extract,omitempty" yaml:"extract,omitempty"`
	Schema     json.RawMessage `json:"schema,omitempty" yaml:"-"`
	SchemaFile string          `json:"schemaFile,omitempty" yaml:"schemaFile,omitempty"`
	Prepend    bool            `json:"prepend,omitempty" yaml:"prepend,omitempty"`
}

// UnmarshalYAML decodes a filter rule, converting an inline schema to JSON.
func (r *FilterRule) UnmarshalYAML(node *yaml.Node) error {
	type plain FilterRule
	var aux struct {
		plain  `yaml:",inline"`
		Schema interface{} `yaml:"schema,omitempty"`
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*r = FilterRule(aux.plain)
	if aux.Schema != nil {
		b, err := json.Marshal(aux.Schema)
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		r.Schema = b
	}
	return nil
}

// LoadConfig loads a configuration file. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		config, err = ParseYAML(data)
	default:
		config, err = ParseJSON(data)
	}
	if err != nil {
		return nil, err
	}
	config.dir = filepath.Dir(path)

	if errs := ValidateConfig(config); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config file: %w", Errors(errs))
	}

	return config, nil
}

// ParseJSON parses a JSON configuration document.
func ParseJSON(data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &config, nil
}

// ParseYAML parses a YAML configuration document.
func ParseYAML(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &config, nil
}

// TimeoutDuration returns the parsed timeout, or zero when unset.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// Resolve returns path relative to the config file's directory.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}
