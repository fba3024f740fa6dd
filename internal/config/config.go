// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for fieldref.
//
// Configuration is read from a TOML file, optionally preceded by a .env file,
// with FIELDREF_* environment overrides applied last.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/fieldref/internal/logging"
	"github.com/jeranaias/fieldref/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete fieldref configuration.
type Config struct {
	// Storage configures the content repository
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Export configures the offline export pipeline
	Export ExportConfig `toml:"export" json:"export"`

	// Server configures the HTTP API
	Server ServerConfig `toml:"server" json:"server"`

	// Log configures logging
	Log LogConfig `toml:"log" json:"log"`
}

// StorageConfig contains repository configuration.
type StorageConfig struct {
	// Driver is "sqlite" (default) or "postgres"
	Driver string `toml:"driver" json:"driver"`
	// DSN is the sqlite file path or a postgres connection URL
	DSN string `toml:"dsn" json:"dsn"`
	// MaxTitleLength bounds section titles in characters
	MaxTitleLength int `toml:"max_title_length" json:"max_title_length"`
	// MaxButtonLength bounds content button labels in characters
	MaxButtonLength int `toml:"max_button_length" json:"max_button_length"`
	// DeletePolicy is "reparent" (default) or "cascade"
	DeletePolicy string `toml:"delete_policy" json:"delete_policy"`
	// Seed writes the starter sections into an empty repository on init
	Seed bool `toml:"seed" json:"seed"`
}

// ExportConfig contains offline export configuration.
type ExportConfig struct {
	// WorkDir holds per-requester working directories and archives
	WorkDir string `toml:"work_dir" json:"work_dir"`
	// MediaDir is the root that media references resolve against
	MediaDir string `toml:"media_dir" json:"media_dir"`
	// OutboxDir receives archives delivered by the CLI
	OutboxDir string `toml:"outbox_dir" json:"outbox_dir"`
	// MinIntervalSecs is the minimum spacing between exports per requester (0 = unlimited)
	MinIntervalSecs int `toml:"min_interval_secs" json:"min_interval_secs"`
	// Burst is how many exports a requester may start back to back
	Burst int `toml:"burst" json:"burst"`
	// DeliveryTimeoutSecs bounds a single delivery attempt
	DeliveryTimeoutSecs int `toml:"delivery_timeout_secs" json:"delivery_timeout_secs"`
	// SiteTitle is the heading of the static view
	SiteTitle string `toml:"site_title" json:"site_title"`
	// AllowMarkup keeps inline markup in text bodies; false escapes everything
	AllowMarkup bool `toml:"allow_markup" json:"allow_markup"`
	// HistorySize is how many finished jobs are kept for status queries
	HistorySize int `toml:"history_size" json:"history_size"`
}

// ServerConfig contains HTTP API configuration.
type ServerConfig struct {
	// Addr is the listen address
	Addr string `toml:"addr" json:"addr"`
	// AdminToken guards mutating routes; empty disables them
	AdminToken string `toml:"admin_token" json:"admin_token"`
	// AllowedOrigins lists CORS origins ("*" for any)
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
	// ReadTimeoutSecs bounds reading a request
	ReadTimeoutSecs int `toml:"read_timeout_secs" json:"read_timeout_secs"`
	// WriteTimeoutSecs bounds writing a response, including archive downloads
	WriteTimeoutSecs int `toml:"write_timeout_secs" json:"write_timeout_secs"`
	// ShutdownTimeoutSecs bounds graceful shutdown
	ShutdownTimeoutSecs int `toml:"shutdown_timeout_secs" json:"shutdown_timeout_secs"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// File appends JSON lines to a file instead of stderr
	File string `toml:"file" json:"file"`
	// Console uses human-readable output on stderr
	Console bool `toml:"console" json:"console"`
}

// DeliveryTimeout returns the delivery timeout as a duration.
func (e ExportConfig) DeliveryTimeout() time.Duration {
	return time.Duration(e.DeliveryTimeoutSecs) * time.Second
}

// MinInterval returns the per-requester export spacing as a duration.
func (e ExportConfig) MinInterval() time.Duration {
	return time.Duration(e.MinIntervalSecs) * time.Second
}

// ReadTimeout returns the request read timeout.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSecs) * time.Second
}

// WriteTimeout returns the response write timeout.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSecs) * time.Second
}

// ShutdownTimeout returns the graceful shutdown timeout.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSecs) * time.Second
}

// Default returns the built-in configuration rooted at the fieldref directory.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".fieldref"
	}

	return &Config{
		Storage: StorageConfig{
			Driver:          "sqlite",
			DSN:             filepath.Join(dir, "fieldref.db"),
			MaxTitleLength:  100,
			MaxButtonLength: 64,
			DeletePolicy:    "reparent",
			Seed:            true,
		},
		Export: ExportConfig{
			WorkDir:             filepath.Join(dir, "work"),
			MediaDir:            filepath.Join(dir, "media"),
			OutboxDir:           filepath.Join(dir, "outbox"),
			MinIntervalSecs:     60,
			Burst:               1,
			DeliveryTimeoutSecs: 120,
			SiteTitle:           "Field Reference",
			AllowMarkup:         true,
			HistorySize:         100,
		},
		Server: ServerConfig{
			Addr:                ":8080",
			AllowedOrigins:      []string{"*"},
			ReadTimeoutSecs:     15,
			WriteTimeoutSecs:    300,
			ShutdownTimeoutSecs: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the fieldref configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".fieldref"), nil
}

// ConfigPath returns the path to the default TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens the config file to 0600, since it may
// carry the admin token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the configuration at path, or the default location when path is
// empty. A missing file is not an error: defaults are used. A .env file in
// the working directory is loaded first so FIELDREF_* variables may live there.
func Load(path string) (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep the
// values already in cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg as TOML to path with 0600 permissions. The write is atomic.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	err := util.AtomicCreate(path, 0600, func(w io.Writer) error {
		fmt.Fprintln(w, "# fieldref configuration file")
		fmt.Fprintln(w, "# Generated by fieldref - edit with care")
		fmt.Fprintln(w, "")
		return toml.NewEncoder(w).Encode(cfg)
	})
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors as ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// Storage
	// ==========================================================================

	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "postgres":
	default:
		add("storage.driver", "invalid driver '%s', must be one of: sqlite, postgres", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		add("storage.dsn", "must not be empty")
	}
	if c.Storage.MaxTitleLength < 1 || c.Storage.MaxTitleLength > 1000 {
		add("storage.max_title_length", "must be between 1 and 1000, got %d", c.Storage.MaxTitleLength)
	}
	if c.Storage.MaxButtonLength < 1 || c.Storage.MaxButtonLength > 256 {
		add("storage.max_button_length", "must be between 1 and 256, got %d", c.Storage.MaxButtonLength)
	}
	switch strings.ToLower(c.Storage.DeletePolicy) {
	case "reparent", "cascade":
	default:
		add("storage.delete_policy", "invalid policy '%s', must be one of: reparent, cascade", c.Storage.DeletePolicy)
	}

	// ==========================================================================
	// Export
	// ==========================================================================

	if c.Export.WorkDir == "" {
		add("export.work_dir", "must not be empty")
	}
	if c.Export.MediaDir == "" {
		add("export.media_dir", "must not be empty")
	}
	if c.Export.MinIntervalSecs < 0 {
		add("export.min_interval_secs", "must not be negative")
	}
	if c.Export.Burst < 1 {
		add("export.burst", "must be at least 1, got %d", c.Export.Burst)
	}
	if c.Export.DeliveryTimeoutSecs < 1 {
		add("export.delivery_timeout_secs", "must be at least 1, got %d", c.Export.DeliveryTimeoutSecs)
	}
	if c.Export.HistorySize < 1 {
		add("export.history_size", "must be at least 1, got %d", c.Export.HistorySize)
	}

	// ==========================================================================
	// Server
	// ==========================================================================

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add("server.allowed_origins", "invalid origin '%s'", origin)
		}
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.ShutdownTimeoutSecs < 0 {
		add("server", "timeouts must not be negative")
	}

	// ==========================================================================
	// Log
	// ==========================================================================

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "%v", err)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-value fields from Default.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.DSN == "" && c.Storage.Driver == defaults.Storage.Driver {
		c.Storage.DSN = defaults.Storage.DSN
	}
	if c.Storage.MaxTitleLength == 0 {
		c.Storage.MaxTitleLength = defaults.Storage.MaxTitleLength
	}
	if c.Storage.MaxButtonLength == 0 {
		c.Storage.MaxButtonLength = defaults.Storage.MaxButtonLength
	}
	if c.Storage.DeletePolicy == "" {
		c.Storage.DeletePolicy = defaults.Storage.DeletePolicy
	}
	c.Storage.DeletePolicy = strings.ToLower(c.Storage.DeletePolicy)

	if c.Export.WorkDir == "" {
		c.Export.WorkDir = defaults.Export.WorkDir
	}
	if c.Export.MediaDir == "" {
		c.Export.MediaDir = defaults.Export.MediaDir
	}
	if c.Export.OutboxDir == "" {
		c.Export.OutboxDir = defaults.Export.OutboxDir
	}
	if c.Export.Burst == 0 {
		c.Export.Burst = defaults.Export.Burst
	}
	if c.Export.DeliveryTimeoutSecs == 0 {
		c.Export.DeliveryTimeoutSecs = defaults.Export.DeliveryTimeoutSecs
	}
	if c.Export.SiteTitle == "" {
		c.Export.SiteTitle = defaults.Export.SiteTitle
	}
	if c.Export.HistorySize == 0 {
		c.Export.HistorySize = defaults.Export.HistorySize
	}

	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.AllowedOrigins == nil {
		c.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = defaults.Server.ReadTimeoutSecs
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = defaults.Server.WriteTimeoutSecs
	}
	if c.Server.ShutdownTimeoutSecs == 0 {
		c.Server.ShutdownTimeoutSecs = defaults.Server.ShutdownTimeoutSecs
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - FIELDREF_DB_DRIVER: overrides storage.driver
//   - FIELDREF_DB_DSN: overrides storage.dsn
//   - DATABASE_URL: postgres connection URL, used when FIELDREF_DB_DSN is unset
//   - FIELDREF_DELETE_POLICY: overrides storage.delete_policy
//   - FIELDREF_WORK_DIR, FIELDREF_MEDIA_DIR, FIELDREF_OUTBOX_DIR: export directories
//   - FIELDREF_ALLOW_MARKUP: "1" or "true" keeps inline markup
//   - FIELDREF_ADDR: overrides server.addr
//   - FIELDREF_ADMIN_TOKEN: overrides server.admin_token
//   - FIELDREF_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if driver := os.Getenv("FIELDREF_DB_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}

	if dsn := os.Getenv("FIELDREF_DB_DSN"); dsn != "" {
		c.Storage.DSN = dsn
	} else if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		c.Storage.Driver = "postgres"
		c.Storage.DSN = dbURL
	}

	if policy := os.Getenv("FIELDREF_DELETE_POLICY"); policy != "" {
		c.Storage.DeletePolicy = policy
	}

	if dir := os.Getenv("FIELDREF_WORK_DIR"); dir != "" {
		c.Export.WorkDir = dir
	}
	if dir := os.Getenv("FIELDREF_MEDIA_DIR"); dir != "" {
		c.Export.MediaDir = dir
	}
	if dir := os.Getenv("FIELDREF_OUTBOX_DIR"); dir != "" {
		c.Export.OutboxDir = dir
	}
	if markup := os.Getenv("FIELDREF_ALLOW_MARKUP"); markup != "" {
		c.Export.AllowMarkup = markup == "1" || strings.ToLower(markup) == "true"
	}

	if addr := os.Getenv("FIELDREF_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if token := os.Getenv("FIELDREF_ADMIN_TOKEN"); token != "" {
		c.Server.AdminToken = token
	}

	if level := os.Getenv("FIELDREF_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "export.burst").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"storage.driver",
		"storage.dsn",
		"storage.max_title_length",
		"storage.max_button_length",
		"storage.delete_policy",
		"storage.seed",
		"export.work_dir",
		"export.media_dir",
		"export.outbox_dir",
		"export.min_interval_secs",
		"export.burst",
		"export.delivery_timeout_secs",
		"export.site_title",
		"export.allow_markup",
		"export.history_size",
		"server.addr",
		"server.admin_token",
		"server.allowed_origins",
		"server.read_timeout_secs",
		"server.write_timeout_secs",
		"server.shutdown_timeout_secs",
		"log.level",
		"log.file",
		"log.console",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.AllowedOrigins != nil {
		clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}
	return &clone
}

// String returns the config as indented JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Server.AdminToken != "" {
		safe.Server.AdminToken = "[REDACTED]"
	}
	if u, err := url.Parse(safe.Storage.DSN); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "REDACTED")
			safe.Storage.DSN = u.String()
		}
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
