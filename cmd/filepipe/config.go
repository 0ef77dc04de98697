package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/filepipe/convpipe"
	"github.com/hazyhaar/filepipe/vecengine"
)

// Config is the service configuration. Every field has a usable default;
// environment variables override the file.
type Config struct {
	// Port the HTTP server listens on.
	Port string `yaml:"port"`

	// DataDir is the content store root, served under /<DataDir>/.
	DataDir string `yaml:"data_dir"`

	// LedgerDB is the SQLite conversion-history database path.
	LedgerDB string `yaml:"ledger_db"`

	// Token guards /api/process. Empty disables the check. A value starting
	// with "$2" is treated as a bcrypt hash, anything else as a plain token.
	Token string `yaml:"token"`

	Convert convpipe.Config  `yaml:"convert"`
	Vector  vecengine.Config `yaml:"vector"`
}

func (c *Config) defaults() {
	if c.Port == "" {
		c.Port = "8086"
	}
	if c.DataDir == "" {
		c.DataDir = "static"
	}
	if c.LedgerDB == "" {
		c.LedgerDB = "db/conversions.db"
	}
}

// validate rejects configurations the service cannot serve correctly.
// Artifact URLs are "/" + the store-relative path, and the static mount is
// "/<DataDir>/", so the data dir must stay relative to the working
// directory.
func (c *Config) validate() error {
	if filepath.IsAbs(c.DataDir) {
		return fmt.Errorf("data_dir must be relative to the working directory, got %q", c.DataDir)
	}
	return nil
}

// loadConfigFile reads a YAML config file.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LEDGER_DB"); v != "" {
		c.LedgerDB = v
	}
	if v := os.Getenv("ACCESS_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("ARK_API_KEY"); v != "" {
		c.Vector.APIKey = v
	}
	if v := os.Getenv("ARK_ENDPOINT"); v != "" {
		c.Vector.Endpoint = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.Vector.QdrantURL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		c.Vector.QdrantAPIKey = v
	}
	if v := os.Getenv("WHISPER_MODEL"); v != "" {
		c.Convert.ModelName = v
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Convert.ModelDir = v
	}
}
