// Package config provides configuration loading and management for the
// connector catalog server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/compose-market/connector/internal/catalog"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "CONNECTOR"

const (
	// SourceTypeFile is the type for catalog data stored in local files
	SourceTypeFile = "file"

	// SourceTypeAPI is the type for catalog data fetched from API endpoints
	SourceTypeAPI = "api"
)

const (
	// SourceFormatServers is the registry-style dump format
	// ({source_tag, updatedAt, count, servers: [...]}).
	SourceFormatServers = "servers"

	// SourceFormatPlugins is the plugin-list dump format ({plugins: [...]}).
	SourceFormatPlugins = "plugins"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// CatalogName is the name/identifier for this catalog instance.
	// Defaults to "default" if not specified.
	CatalogName string `yaml:"catalogName,omitempty"`

	// Sources is the ordered list of catalog data sources. The order is
	// significant: it fixes the deterministic load order that decides
	// first-seen-wins ties during reconciliation.
	Sources []SourceConfig `yaml:"sources"`

	// Server holds HTTP server settings.
	Server *ServerConfig `yaml:"server,omitempty"`
}

// SourceConfig defines a single catalog data source
type SourceConfig struct {
	// Name is the identifier for this source
	Name string `yaml:"name"`

	// Origin is the data provider tag assigned to records from this source
	Origin catalog.Origin `yaml:"origin"`

	// Format specifies the document format (servers or plugins)
	Format string `yaml:"format"`

	// Type-specific configurations (only one should be set)
	File *FileConfig `yaml:"file,omitempty"`
	API  *APIConfig  `yaml:"api,omitempty"`
}

// FileConfig defines local file source configuration
type FileConfig struct {
	// Path is the path to the source dump on the local filesystem.
	// Can be absolute or relative to the working directory.
	Path string `yaml:"path"`
}

// APIConfig defines API source configuration
type APIConfig struct {
	// Endpoint is the full URL returning the source document.
	Endpoint string `yaml:"endpoint"`

	// Timeout is the per-request timeout (e.g. "30s"). Optional.
	Timeout string `yaml:"timeout,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080"
	Address string `yaml:"address,omitempty"`

	// CORS holds cross-origin settings for browser clients
	CORS *CORSConfig `yaml:"cors,omitempty"`
}

// CORSConfig defines cross-origin resource sharing settings
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetCatalogName returns the catalog name, using "default" if not specified
func (c *Config) GetCatalogName() string {
	if c.CatalogName == "" {
		return "default"
	}
	return c.CatalogName
}

// GetAddress returns the listen address, using ":8080" if not specified
func (c *Config) GetAddress() string {
	if c.Server == nil || c.Server.Address == "" {
		return ":8080"
	}
	return c.Server.Address
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}

	sourceNames := make(map[string]bool)
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("source[%d]: name is required", i)
		}

		if sourceNames[src.Name] {
			return fmt.Errorf("source[%d]: duplicate source name '%s'", i, src.Name)
		}
		sourceNames[src.Name] = true

		if err := validateSourceConfig(&src, i); err != nil {
			return err
		}
	}

	return nil
}

// validateSourceConfig validates a single source configuration
func validateSourceConfig(src *SourceConfig, index int) error {
	prefix := fmt.Sprintf("source[%d] (%s)", index, src.Name)

	if src.Origin == "" {
		return fmt.Errorf("%s: origin is required", prefix)
	}
	if !src.Origin.Known() {
		return fmt.Errorf("%s: unknown origin '%s'", prefix, src.Origin)
	}

	if err := validateSourceFormat(src.Format, prefix); err != nil {
		return err
	}

	if err := validateSourceTypeCount(src, prefix); err != nil {
		return err
	}

	return validateSourceSpecificConfig(src, prefix)
}

// validateSourceFormat validates the document format
func validateSourceFormat(format, prefix string) error {
	switch format {
	case SourceFormatServers, SourceFormatPlugins:
		return nil
	case "":
		return fmt.Errorf("%s: format is required (one of %s, %s)",
			prefix, SourceFormatServers, SourceFormatPlugins)
	default:
		return fmt.Errorf("%s: unsupported format '%s'", prefix, format)
	}
}

// validateSourceTypeCount ensures exactly one source type is configured
func validateSourceTypeCount(src *SourceConfig, prefix string) error {
	configCount := 0
	if src.File != nil {
		configCount++
	}
	if src.API != nil {
		configCount++
	}

	if configCount == 0 {
		return fmt.Errorf("%s: one of file or api configuration must be specified", prefix)
	}
	if configCount > 1 {
		return fmt.Errorf("%s: only one of file or api configuration may be specified", prefix)
	}

	return nil
}

// validateSourceSpecificConfig validates the configuration for each source type
func validateSourceSpecificConfig(src *SourceConfig, prefix string) error {
	if src.File != nil {
		if src.File.Path == "" {
			return fmt.Errorf("%s: file.path is required", prefix)
		}
	}

	if src.API != nil {
		if src.API.Endpoint == "" {
			return fmt.Errorf("%s: api.endpoint is required", prefix)
		}
		if src.API.Timeout != "" {
			if _, err := time.ParseDuration(src.API.Timeout); err != nil {
				return fmt.Errorf("%s: api.timeout must be a valid duration (e.g. '30s'): %w", prefix, err)
			}
		}
	}

	return nil
}

// GetType returns the inferred type of the source config based on which field is present
func (s *SourceConfig) GetType() string {
	if s.File != nil {
		return SourceTypeFile
	}
	if s.API != nil {
		return SourceTypeAPI
	}
	return ""
}
