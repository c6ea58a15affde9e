package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the ringlist configuration.
type Config struct {
	Pager   PagerConfig   `yaml:"pager"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Browse  BrowseConfig  `yaml:"browse"`
}

// PagerConfig holds ring window and page cache sizing.
type PagerConfig struct {
	Capacity           int `yaml:"capacity"`              // Ring window slots
	PageSize           int `yaml:"page_size"`             // Items per page
	MaxCacheSize       int `yaml:"max_cache_size"`        // Resident pages below the large-page threshold
	LargePageThreshold int `yaml:"large_page_threshold"`  // Page size from which large_page_cache_size applies
	LargePageCacheSize int `yaml:"large_page_cache_size"` // Resident pages for large pages
}

// ServerConfig holds page server settings.
type ServerConfig struct {
	SocketPath     string `yaml:"socket_path"`      // Unix socket path (overrides default)
	LogLevel       string `yaml:"log_level"`        // debug, info, warn, error
	LogFile        string `yaml:"log_file"`         // Log file path (overrides default)
	FetchTimeoutMs int    `yaml:"fetch_timeout_ms"` // Client-side deadline per page fetch
}

// StorageConfig holds item database settings.
type StorageConfig struct {
	DBPath        string `yaml:"db_path"`         // SQLite path (overrides default)
	BusyTimeoutMs int    `yaml:"busy_timeout_ms"` // SQLite busy timeout
}

// BrowseConfig holds terminal browser settings.
type BrowseConfig struct {
	Source     string `yaml:"source"`      // remote or local
	EdgeMargin int    `yaml:"edge_margin"` // Rows before the span edge that trigger a page load
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Pager: PagerConfig{
			Capacity:           200,
			PageSize:           20,
			MaxCacheSize:       3,
			LargePageThreshold: 67,
			LargePageCacheSize: 2,
		},
		Server: ServerConfig{
			SocketPath:     "", // Use default from paths
			LogLevel:       "info",
			LogFile:        "", // Use default from paths
			FetchTimeoutMs: 200,
		},
		Storage: StorageConfig{
			DBPath:        "", // Use default from paths
			BusyTimeoutMs: 5000,
		},
		Browse: BrowseConfig{
			Source:     "remote",
			EdgeMargin: 3,
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get retrieves a configuration value by dot-separated key,
// for example "pager.page_size" or "server.log_level".
func (c *Config) Get(key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "pager":
		return c.getPagerField(field)
	case "server":
		return c.getServerField(field)
	case "storage":
		return c.getStorageField(field)
	case "browse":
		return c.getBrowseField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	switch section {
	case "pager":
		return c.setPagerField(field, value)
	case "server":
		return c.setServerField(field, value)
	case "storage":
		return c.setStorageField(field, value)
	case "browse":
		return c.setBrowseField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func splitKey(key string) (string, string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", "", errors.New("key must be in format 'section.key'")
	}
	return parts[0], parts[1], nil
}

// parsePositive parses a strictly positive integer setting.
func parsePositive(name, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return v, nil
}

func (c *Config) getPagerField(field string) (string, error) {
	switch field {
	case "capacity":
		return strconv.Itoa(c.Pager.Capacity), nil
	case "page_size":
		return strconv.Itoa(c.Pager.PageSize), nil
	case "max_cache_size":
		return strconv.Itoa(c.Pager.MaxCacheSize), nil
	case "large_page_threshold":
		return strconv.Itoa(c.Pager.LargePageThreshold), nil
	case "large_page_cache_size":
		return strconv.Itoa(c.Pager.LargePageCacheSize), nil
	default:
		return "", fmt.Errorf("unknown field: pager.%s", field)
	}
}

func (c *Config) setPagerField(field, value string) error {
	var dst *int
	switch field {
	case "capacity":
		dst = &c.Pager.Capacity
	case "page_size":
		dst = &c.Pager.PageSize
	case "max_cache_size":
		dst = &c.Pager.MaxCacheSize
	case "large_page_threshold":
		dst = &c.Pager.LargePageThreshold
	case "large_page_cache_size":
		dst = &c.Pager.LargePageCacheSize
	default:
		return fmt.Errorf("unknown field: pager.%s", field)
	}
	v, err := parsePositive(field, value)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func (c *Config) getServerField(field string) (string, error) {
	switch field {
	case "socket_path":
		return c.Server.SocketPath, nil
	case "log_level":
		return c.Server.LogLevel, nil
	case "log_file":
		return c.Server.LogFile, nil
	case "fetch_timeout_ms":
		return strconv.Itoa(c.Server.FetchTimeoutMs), nil
	default:
		return "", fmt.Errorf("unknown field: server.%s", field)
	}
}

func (c *Config) setServerField(field, value string) error {
	switch field {
	case "socket_path":
		c.Server.SocketPath = value
	case "log_level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", value)
		}
		c.Server.LogLevel = value
	case "log_file":
		c.Server.LogFile = value
	case "fetch_timeout_ms":
		v, err := parsePositive(field, value)
		if err != nil {
			return err
		}
		c.Server.FetchTimeoutMs = v
	default:
		return fmt.Errorf("unknown field: server.%s", field)
	}
	return nil
}

func (c *Config) getStorageField(field string) (string, error) {
	switch field {
	case "db_path":
		return c.Storage.DBPath, nil
	case "busy_timeout_ms":
		return strconv.Itoa(c.Storage.BusyTimeoutMs), nil
	default:
		return "", fmt.Errorf("unknown field: storage.%s", field)
	}
}

func (c *Config) setStorageField(field, value string) error {
	switch field {
	case "db_path":
		c.Storage.DBPath = value
	case "busy_timeout_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for busy_timeout_ms: %w", err)
		}
		if v < 0 {
			return fmt.Errorf("invalid busy_timeout_ms: must be non-negative")
		}
		c.Storage.BusyTimeoutMs = v
	default:
		return fmt.Errorf("unknown field: storage.%s", field)
	}
	return nil
}

func (c *Config) getBrowseField(field string) (string, error) {
	switch field {
	case "source":
		return c.Browse.Source, nil
	case "edge_margin":
		return strconv.Itoa(c.Browse.EdgeMargin), nil
	default:
		return "", fmt.Errorf("unknown field: browse.%s", field)
	}
}

func (c *Config) setBrowseField(field, value string) error {
	switch field {
	case "source":
		if !isValidSource(value) {
			return fmt.Errorf("invalid source: %s (must be remote or local)", value)
		}
		c.Browse.Source = value
	case "edge_margin":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for edge_margin: %w", err)
		}
		if v < 0 {
			return fmt.Errorf("invalid edge_margin: must be non-negative")
		}
		c.Browse.EdgeMargin = v
	default:
		return fmt.Errorf("unknown field: browse.%s", field)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	p := c.Pager
	if p.Capacity <= 0 {
		return errors.New("pager.capacity must be > 0")
	}
	if p.PageSize <= 0 {
		return errors.New("pager.page_size must be > 0")
	}
	if p.MaxCacheSize <= 0 || p.LargePageCacheSize <= 0 {
		return errors.New("pager.max_cache_size and pager.large_page_cache_size must be > 0")
	}
	if p.LargePageThreshold <= 0 {
		return errors.New("pager.large_page_threshold must be > 0")
	}
	if need := p.cacheSizeFor(p.PageSize)*p.PageSize + 1; p.Capacity < need {
		return fmt.Errorf("pager.capacity %d too small for page_size %d (need %d)", p.Capacity, p.PageSize, need)
	}

	if !isValidLogLevel(c.Server.LogLevel) {
		return fmt.Errorf("server.log_level must be debug, info, warn, or error (got: %s)", c.Server.LogLevel)
	}
	if c.Server.FetchTimeoutMs <= 0 {
		return errors.New("server.fetch_timeout_ms must be > 0")
	}

	if c.Storage.BusyTimeoutMs < 0 {
		return errors.New("storage.busy_timeout_ms must be >= 0")
	}

	if !isValidSource(c.Browse.Source) {
		return fmt.Errorf("browse.source must be remote or local (got: %s)", c.Browse.Source)
	}
	if c.Browse.EdgeMargin < 0 {
		return errors.New("browse.edge_margin must be >= 0")
	}

	return nil
}

func (p PagerConfig) cacheSizeFor(pageSize int) int {
	if pageSize < p.LargePageThreshold {
		return p.MaxCacheSize
	}
	return p.LargePageCacheSize
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidSource(source string) bool {
	switch source {
	case "remote", "local":
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RINGLIST_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Server.LogLevel = "debug"
		}
	}
	if v := os.Getenv("RINGLIST_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Server.LogLevel = v
		}
	}
	if v := os.Getenv("RINGLIST_SOCKET_PATH"); v != "" {
		c.Server.SocketPath = v
	}
	if v := os.Getenv("RINGLIST_DB"); v != "" {
		c.Storage.DBPath = v
	}
}

// SocketPath returns the configured socket path or the default one.
func (c *Config) SocketPath() string {
	if c.Server.SocketPath != "" {
		return c.Server.SocketPath
	}
	return DefaultPaths().SocketFile()
}

// DatabasePath returns the configured database path or the default one.
func (c *Config) DatabasePath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	return DefaultPaths().DatabaseFile()
}

// ListKeys returns user-facing configuration keys.
func ListKeys() []string {
	return []string{
		"pager.capacity",
		"pager.page_size",
		"pager.max_cache_size",
		"pager.large_page_threshold",
		"pager.large_page_cache_size",
		"server.socket_path",
		"server.log_level",
		"server.log_file",
		"server.fetch_timeout_ms",
		"storage.db_path",
		"storage.busy_timeout_ms",
		"browse.source",
		"browse.edge_margin",
	}
}
