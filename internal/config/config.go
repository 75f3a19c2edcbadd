package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"contentcal/internal/assistant"
	"contentcal/internal/fsutil"
)

// EnvPrefix prefixes every environment override, e.g. CONTENTCAL_LISTEN.
const EnvPrefix = "CONTENTCAL_"

const (
	BackendAPI      = "api"
	BackendPostgres = "postgres"

	SettingsFile  = "file"
	SettingsRedis = "redis"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type LogConfig struct {
	// Level is debug, info or error.
	Level string `yaml:"level" json:"level"`
	// Format is console or json.
	Format string `yaml:"format" json:"format"`
}

// APIConfig points at the remote content service.
type APIConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Token is sent as a static bearer token when JWTSecret is empty.
	Token     string `yaml:"token,omitempty" json:"-"`
	JWTSecret string `yaml:"jwt_secret,omitempty" json:"-"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn,omitempty" json:"-"`
}

// ContentConfig selects where content items are created and listed.
type ContentConfig struct {
	// Backend is "api" or "postgres".
	Backend  string         `yaml:"backend" json:"backend"`
	API      APIConfig      `yaml:"api" json:"api"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type ImportConfig struct {
	MaxFileBytes int64 `yaml:"max_file_bytes" json:"max_file_bytes"`
	// PaceMS is the pause between creations. 0 keeps the default and a
	// negative value disables pacing.
	PaceMS int `yaml:"pace_ms" json:"pace_ms"`
}

type ExportConfig struct {
	FilenamePrefix string `yaml:"filename_prefix" json:"filename_prefix"`
	UIDDomain      string `yaml:"uid_domain" json:"uid_domain"`
}

// FetchConfig controls import-from-URL.
type FetchConfig struct {
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	MaxBytes int64  `yaml:"max_bytes" json:"max_bytes"`
}

type BackupConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Cron is a standard 5-field schedule (e.g. "0 3 * * *").
	Cron string `yaml:"cron" json:"cron"`
	Dir  string `yaml:"dir" json:"dir"`
	Keep int    `yaml:"keep" json:"keep"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password,omitempty" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// SettingsConfig selects the key/value store behind user settings.
type SettingsConfig struct {
	// Backend is "file" or "redis".
	Backend string      `yaml:"backend" json:"backend"`
	Path    string      `yaml:"path" json:"path"`
	Redis   RedisConfig `yaml:"redis" json:"redis"`
}

// AssistantConfig overrides the built-in keyword rules when Rules is set.
type AssistantConfig struct {
	Rules    []assistant.Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
	Fallback string           `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for zone-less timestamps and export
	// file dates.
	Timezone string `yaml:"timezone" json:"timezone"`

	Log       LogConfig       `yaml:"log" json:"log"`
	Content   ContentConfig   `yaml:"content" json:"content"`
	Import    ImportConfig    `yaml:"import" json:"import"`
	Export    ExportConfig    `yaml:"export" json:"export"`
	Fetch     FetchConfig     `yaml:"fetch" json:"fetch"`
	Backup    BackupConfig    `yaml:"backup" json:"backup"`
	Settings  SettingsConfig  `yaml:"settings" json:"settings"`
	Assistant AssistantConfig `yaml:"assistant" json:"assistant"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	c.Content.Backend = strings.ToLower(strings.TrimSpace(c.Content.Backend))
	if c.Content.Backend == "" {
		c.Content.Backend = BackendAPI
	}
	if c.Content.API.BaseURL == "" {
		c.Content.API.BaseURL = "http://127.0.0.1:5000"
	}

	if c.Import.MaxFileBytes <= 0 {
		c.Import.MaxFileBytes = 10 << 20
	}

	if c.Export.FilenamePrefix == "" {
		c.Export.FilenamePrefix = "contentpro"
	}
	if c.Export.UIDDomain == "" {
		c.Export.UIDDomain = "contentpro.app"
	}

	if c.Fetch.CacheDir == "" {
		c.Fetch.CacheDir = "/var/lib/contentcal/fetch-cache"
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = c.Import.MaxFileBytes
	}

	if c.Backup.Cron == "" {
		c.Backup.Cron = "0 3 * * *"
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "/var/lib/contentcal/backups"
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = 14
	}

	c.Settings.Backend = strings.ToLower(strings.TrimSpace(c.Settings.Backend))
	if c.Settings.Backend == "" {
		c.Settings.Backend = SettingsFile
	}
	if c.Settings.Path == "" {
		c.Settings.Path = "/var/lib/contentcal/settings.yaml"
	}
	if c.Settings.Redis.Addr == "" {
		c.Settings.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Settings.Redis.Prefix == "" {
		c.Settings.Redis.Prefix = "contentcal:settings:"
	}
}

// Validate rejects values Normalize cannot repair.
func (c *Config) Validate() error {
	switch c.Content.Backend {
	case BackendAPI:
		if c.Content.API.BaseURL == "" {
			return errors.New("content.api.base_url is required for the api backend")
		}
	case BackendPostgres:
		if c.Content.Database.DSN == "" {
			return errors.New("content.database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown content backend %q", c.Content.Backend)
	}

	switch c.Settings.Backend {
	case SettingsFile, SettingsRedis:
	default:
		return fmt.Errorf("unknown settings backend %q", c.Settings.Backend)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Pace converts PaceMS for the importer: 0 stays 0 (importer default),
// negative stays negative (pacing off).
func (c *Config) Pace() time.Duration {
	return time.Duration(c.Import.PaceMS) * time.Millisecond
}

// LoadEnvFiles loads dotenv files into the process environment. Missing
// files are ignored and existing variables are never overwritten.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
//
// CONTENTCAL_* environment variables are applied last and never persisted.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// applyEnv overrides fields from CONTENTCAL_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"LISTEN":            &c.Listen,
		"TIMEZONE":          &c.Timezone,
		"LOG_LEVEL":         &c.Log.Level,
		"LOG_FORMAT":        &c.Log.Format,
		"CONTENT_BACKEND":   &c.Content.Backend,
		"API_BASE_URL":      &c.Content.API.BaseURL,
		"API_TOKEN":         &c.Content.API.Token,
		"API_JWT_SECRET":    &c.Content.API.JWTSecret,
		"DATABASE_DSN":      &c.Content.Database.DSN,
		"FETCH_CACHE_DIR":   &c.Fetch.CacheDir,
		"BACKUP_CRON":       &c.Backup.Cron,
		"BACKUP_DIR":        &c.Backup.Dir,
		"SETTINGS_BACKEND":  &c.Settings.Backend,
		"SETTINGS_PATH":     &c.Settings.Path,
		"REDIS_ADDR":        &c.Settings.Redis.Addr,
		"REDIS_PASSWORD":    &c.Settings.Redis.Password,
		"EXPORT_UID_DOMAIN": &c.Export.UIDDomain,
	}
	for name, dst := range str {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"IMPORT_PACE_MS": &c.Import.PaceMS,
		"BACKUP_KEEP":    &c.Backup.Keep,
		"REDIS_DB":       &c.Settings.Redis.DB,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "IMPORT_MAX_FILE_BYTES"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%sIMPORT_MAX_FILE_BYTES: %w", EnvPrefix, err)
		}
		c.Import.MaxFileBytes = n
	}
	if v, ok := lookup(EnvPrefix + "BACKUP_ENABLED"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sBACKUP_ENABLED: %w", EnvPrefix, err)
		}
		c.Backup.Enabled = b
	}

	user, hasUser := lookup(EnvPrefix + "BASIC_AUTH_USERNAME")
	pass, hasPass := lookup(EnvPrefix + "BASIC_AUTH_PASSWORD")
	if hasUser || hasPass {
		if c.BasicAuth == nil {
			c.BasicAuth = &BasicAuthConfig{}
		}
		if hasUser {
			c.BasicAuth.Username = user
		}
		if hasPass {
			c.BasicAuth.Password = pass
		}
	}
	return nil
}

// Save normalizes cfg and writes it atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
