// Package config loads the relay's startup configuration: environment
// variables plus an optional YAML file of statically pre-registered
// listeners (SPEC_FULL.md §Environment/config), mirroring the teacher's
// own env-var-name-constants-plus-file pattern (api/env, cmn/jsp) without
// pulling in its BuntDB-backed persistence machinery, which this daemon has
// no use for.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variable names read at startup.
const (
	EnvEndpointURL = "DYNAMODB_ENDPOINT_URL"
	EnvPort        = "PORT"
	EnvConfigPath  = "CONFIG_PATH"
)

// DefaultPort is used when PORT is unset. An unparsable PORT makes Load
// fail.
const DefaultPort = 3000

// Entry is one statically pre-registered listener (YAML `entries:` list).
type Entry struct {
	TableName string `yaml:"table_name"`
	URL       string `yaml:"url"`
}

// file is the on-disk shape of CONFIG_PATH.
type file struct {
	Entries []Entry `yaml:"entries"`
}

// Config is the relay's fully resolved startup configuration.
type Config struct {
	// EndpointURL overrides the DynamoDB/DynamoDB Streams endpoint (for
	// local testing against DynamoDB Local); empty means "use the
	// resolved AWS default".
	EndpointURL string

	// Port is the control-plane HTTP listen port.
	Port int

	// Entries are destinations to register before the first control-plane
	// request ever arrives.
	Entries []Entry
}

// Load reads Config from the process environment, optionally supplementing
// it with a YAML file named by CONFIG_PATH. A missing CONFIG_PATH is not an
// error: entries is simply empty. A CONFIG_PATH that is set but unreadable,
// or that fails to parse, is fatal - config errors are not the kind of
// thing a relay should try to run partially through.
func Load() (*Config, error) {
	cfg := &Config{
		EndpointURL: os.Getenv(EnvEndpointURL),
		Port:        DefaultPort,
	}

	if raw := os.Getenv(EnvPort); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s %q: %w", EnvPort, raw, err)
		}
		cfg.Port = p
	}

	if path := os.Getenv(EnvConfigPath); path != "" {
		entries, err := loadEntries(path)
		if err != nil {
			return nil, err
		}
		cfg.Entries = entries
	}

	return cfg, nil
}

func loadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return f.Entries, nil
}
