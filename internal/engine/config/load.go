package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors Config with durations as strings so a file can say
// "10s" or "300ms".
type yamlConfig struct {
	BrokerURL         string `yaml:"broker_url"`
	ClientIDPrefix    string `yaml:"client_id_prefix"`
	ConnectTimeout    string `yaml:"connect_timeout"`
	ReconnectInterval string `yaml:"reconnect_interval"`
	PublishInterval   string `yaml:"publish_interval"`
	SearchDebounce    string `yaml:"search_debounce"`
	SearchMinLength   int    `yaml:"search_min_length"`
	StoreBackend      string `yaml:"store_backend"`
	SQLiteFile        string `yaml:"sqlite_file"`
	MetricsEnabled    bool   `yaml:"metrics_enabled"`
	MetricsPort       int    `yaml:"metrics_port"`
}

// UnmarshalYAML decodes the YAML form, parsing duration strings.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw yamlConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}

	c.BrokerURL = raw.BrokerURL
	c.ClientIDPrefix = raw.ClientIDPrefix
	c.SearchMinLength = raw.SearchMinLength
	c.StoreBackend = raw.StoreBackend
	c.SQLiteFile = raw.SQLiteFile
	c.MetricsEnabled = raw.MetricsEnabled
	c.MetricsPort = raw.MetricsPort

	for _, d := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &c.ConnectTimeout},
		{"reconnect_interval", raw.ReconnectInterval, &c.ReconnectInterval},
		{"publish_interval", raw.PublishInterval, &c.PublishInterval},
		{"search_debounce", raw.SearchDebounce, &c.SearchDebounce},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Load reads a YAML config file and applies defaults. Validation is left
// to the caller so it can layer flag overrides first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	conf.Normalize()
	return &conf, nil
}
