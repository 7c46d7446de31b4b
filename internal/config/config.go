package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the pack context and transfer parameters shared by the
// meshpack subcommands.
type Config struct {
	// ContentServerURL is the public base URL serving uploaded blobs by identifier.
	ContentServerURL string `yaml:"content_server_url"`
	// Bucket is the object store bucket receiving blobs.
	Bucket string `yaml:"bucket"`
	// RegistryID identifies the registry that descriptor records are published under.
	RegistryID string `yaml:"registry_id"`
	// ContractURI is the collection page base embedded into descriptor records.
	ContractURI string `yaml:"contract_uri"`
	// Region is the object store region; empty defers to the SDK environment.
	Region string `yaml:"region,omitempty"`
	// Endpoint overrides the object store endpoint for S3-compatible servers.
	Endpoint string `yaml:"endpoint,omitempty"`
	// CacheDir is the directory for the local upload cache; empty disables it.
	CacheDir string `yaml:"cache_dir,omitempty"`
	// Concurrency bounds parallel hashing and transfers.
	Concurrency int `yaml:"concurrency,omitempty"`
	// Timeout is the duration allowed for a single remote operation.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// SceneExtensions overrides the extensions treated as scene entry points.
	SceneExtensions []string `yaml:"scene_extensions,omitempty"`
	// ResourceExtensions overrides the extensions included in uploads.
	ResourceExtensions []string `yaml:"resource_extensions,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for meshpack settings.
	DefaultConfigFilename = "meshpack-settings.yaml"

	// DefaultConcurrency bounds parallel hashing and transfers when unset.
	DefaultConcurrency = 8

	// DefaultTimeout is the default duration for a single remote operation.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errContentServerRequired is returned when the content server URL is missing.
	errContentServerRequired = errors.New("content server URL must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and URL formats and fills defaults.
// Bucket and registry requirements are enforced by the subcommands that
// actually need them, so pack-only runs work with a minimal file.
func Validate(cfg *Config) error {
	if cfg.ContentServerURL == "" {
		return errContentServerRequired
	}

	if _, err := url.ParseRequestURI(cfg.ContentServerURL); err != nil {
		return fmt.Errorf("invalid content server URL: %w", err)
	}

	if cfg.ContractURI != "" {
		if _, err := url.ParseRequestURI(cfg.ContractURI); err != nil {
			return fmt.Errorf("invalid contract URI: %w", err)
		}
	}

	if cfg.Endpoint != "" {
		if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
			return fmt.Errorf("invalid endpoint URL: %w", err)
		}
	}

	// Set default concurrency if not specified.
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	// Set default timeout if not specified.
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return nil
}
