package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Artifact names one remote model to fetch from the store at startup.
type Artifact struct {
	// ID the fetched model is registered under (its filename in the
	// models dir).
	ID string `json:"id" yaml:"id" toml:"id"`
	// RemotePath of the object in the artifact store.
	RemotePath string `json:"remote_path" yaml:"remote_path" toml:"remote_path"`
	// Timestamp the artifact must be valid for, in store epoch units.
	Timestamp int64 `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	StoreURL  string `json:"store_url" yaml:"store_url" toml:"store_url"`
	// Threads: 0 = runtime default, -1 = host physical cores, N>0 = exactly N.
	Threads      int    `json:"threads" yaml:"threads" toml:"threads"`
	MemBudgetMB  int    `json:"mem_budget_mb" yaml:"mem_budget_mb" toml:"mem_budget_mb"`
	MemMarginMB  int    `json:"mem_margin_mb" yaml:"mem_margin_mb" toml:"mem_margin_mb"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	// AuthKeyHash is the bcrypt hash of the API key; empty disables auth.
	AuthKeyHash string `json:"auth_key_hash" yaml:"auth_key_hash" toml:"auth_key_hash"`
	// JournalPath is the fetch journal database; empty disables the journal.
	JournalPath string `json:"journal_path" yaml:"journal_path" toml:"journal_path"`
	// Artifacts are fetched and loaded before the server starts serving.
	Artifacts []Artifact `json:"artifacts" yaml:"artifacts" toml:"artifacts"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
