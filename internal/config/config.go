package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/spacetraveling/internal/privacy"
)

const (
	DefaultConfigFile    = "config.yaml"
	DefaultConfigDir     = ".spacetraveling"
	DefaultDocumentType  = "posts"
	DefaultPageSize      = 2
	MaxPageSize          = 100
	DefaultCMSTimeout    = 30 * time.Second
	DefaultLocale        = "pt-BR"
	DefaultDateLayout    = "02 de January de 2006"
	DefaultTimezone      = "UTC"
	DefaultAddr          = ":3000"
	DefaultViewTTL       = 30 * time.Minute
	DefaultMaxViews      = 1000
	DefaultStoragePath   = ".spacetraveling/snapshots.db"
	DefaultKeepSnapshots = 5
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
)

// Environment variables that override the file.
const (
	EnvCMSEndpoint = "CMS_ENDPOINT"
	EnvListenAddr  = "LISTEN_ADDR"
	EnvLogLevel    = "LOG_LEVEL"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	CMS     CMSConfig     `yaml:"cms"`
	Date    DateConfig    `yaml:"date"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

type CMSConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	EndpointEnv    string   `yaml:"endpoint_env"`
	AccessToken    string   `yaml:"-"`
	AccessTokenEnv string   `yaml:"access_token_env"`
	DocumentType   string   `yaml:"document_type"`
	PageSize       int      `yaml:"page_size"`
	Timeout        Duration `yaml:"timeout"`
}

// DateConfig selects how publication dates are shown.
// Layout is a Go reference layout; month names are translated into Locale.
type DateConfig struct {
	Locale   string `yaml:"locale"`
	Layout   string `yaml:"layout"`
	Timezone string `yaml:"timezone"`
	Missing  string `yaml:"missing"`
}

type ServerConfig struct {
	Addr     string   `yaml:"addr"`
	ViewTTL  Duration `yaml:"view_ttl"`
	MaxViews int      `yaml:"max_views"`
}

type StorageConfig struct {
	Path          string `yaml:"path"`
	KeepSnapshots int    `yaml:"keep_snapshots"`
}

// LogConfig controls the structured logger. Redact lists extra regular
// expressions scrubbed from log output in addition to API tokens.
type LogConfig struct {
	Level  string   `yaml:"level"`
	Format string   `yaml:"format"`
	Redact []string `yaml:"redact"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.CMS.DocumentType == "" {
		cfg.CMS.DocumentType = DefaultDocumentType
	}
	if cfg.CMS.PageSize == 0 {
		cfg.CMS.PageSize = DefaultPageSize
	}
	if cfg.CMS.Timeout.Duration == 0 {
		cfg.CMS.Timeout.Duration = DefaultCMSTimeout
	}
	if cfg.Date.Locale == "" {
		cfg.Date.Locale = DefaultLocale
	}
	if cfg.Date.Layout == "" {
		cfg.Date.Layout = DefaultDateLayout
	}
	if cfg.Date.Timezone == "" {
		cfg.Date.Timezone = DefaultTimezone
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Server.ViewTTL.Duration == 0 {
		cfg.Server.ViewTTL.Duration = DefaultViewTTL
	}
	if cfg.Server.MaxViews == 0 {
		cfg.Server.MaxViews = DefaultMaxViews
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.KeepSnapshots == 0 {
		cfg.Storage.KeepSnapshots = DefaultKeepSnapshots
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

func resolveEnv(cfg *Config) {
	if cfg.CMS.EndpointEnv != "" {
		cfg.CMS.Endpoint = GetEnv(cfg.CMS.EndpointEnv, cfg.CMS.Endpoint)
	}
	cfg.CMS.Endpoint = GetEnv(EnvCMSEndpoint, cfg.CMS.Endpoint)
	if cfg.CMS.AccessTokenEnv != "" {
		cfg.CMS.AccessToken = GetEnv(cfg.CMS.AccessTokenEnv, "")
	}
	cfg.Server.Addr = GetEnv(EnvListenAddr, cfg.Server.Addr)
	cfg.Log.Level = strings.ToLower(GetEnv(EnvLogLevel, cfg.Log.Level))
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.CMS.Endpoint) == "" {
		return errors.New("cms.endpoint: required")
	}
	u, err := url.Parse(cfg.CMS.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("cms.endpoint: %q is not an http(s) URL", cfg.CMS.Endpoint)
	}
	if cfg.CMS.PageSize < 1 || cfg.CMS.PageSize > MaxPageSize {
		return fmt.Errorf("cms.page_size: %d out of range 1..%d", cfg.CMS.PageSize, MaxPageSize)
	}
	if cfg.CMS.Timeout.Duration < 0 {
		return errors.New("cms.timeout: must be positive")
	}

	if _, err := language.Parse(cfg.Date.Locale); err != nil {
		return fmt.Errorf("date.locale: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Date.Timezone); err != nil {
		return fmt.Errorf("date.timezone: %w", err)
	}

	if cfg.Server.ViewTTL.Duration < 0 {
		return errors.New("server.view_ttl: must be positive")
	}
	if cfg.Server.MaxViews < 0 {
		return errors.New("server.max_views: must be positive")
	}
	if cfg.Storage.KeepSnapshots < 0 {
		return errors.New("storage.keep_snapshots: must be positive")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("log.level: unknown level %q (want debug, info, warn or error)", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("log.format: unknown format %q (want json or text)", cfg.Log.Format)
	}
	if _, err := privacy.Compile(cfg.Log.Redact); err != nil {
		return fmt.Errorf("log.redact: %w", err)
	}

	return nil
}
