package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SourceFile reads definitions from a local YAML document.
	SourceFile = "file"
	// SourceHTTP fetches definitions from a remote JSON endpoint.
	SourceHTTP = "http"
)

// Config captures the settings required to boot the BSM engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Definitions DefinitionsConfig `yaml:"definitions"`
	Alarms      AlarmsConfig      `yaml:"alarms"`
	Cache       CacheConfig       `yaml:"cache"`
}

// ServerConfig controls the gRPC and HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefinitionsConfig selects where business service definitions are pulled from.
type DefinitionsConfig struct {
	Source  string        `yaml:"source"`
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`

	// Watch reloads the file source whenever the file changes on disk.
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// AlarmsConfig configures the Redis list the alarm stream is read from.
type AlarmsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"blockTimeout"`
	RetryDelay   time.Duration `yaml:"retryDelay"`
}

// CacheConfig controls publication of business service statuses to Valkey/Redis.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	StatusTTL    time.Duration `yaml:"statusTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_BSM_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot start with.
func (c *Config) Validate() error {
	switch c.Definitions.Source {
	case SourceFile:
		if c.Definitions.Path == "" {
			return errors.New("definitions.path is required for the file source")
		}
	case SourceHTTP:
		if c.Definitions.URL == "" {
			return errors.New("definitions.url is required for the http source")
		}
	default:
		return fmt.Errorf("unknown definitions source %q", c.Definitions.Source)
	}
	if c.Definitions.Watch && c.Definitions.Source != SourceFile {
		return errors.New("definitions.watch is only supported for the file source")
	}
	if c.Alarms.Enabled && (c.Alarms.Addr == "" || c.Alarms.Key == "") {
		return errors.New("alarms.addr and alarms.key are required when alarms are enabled")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache.addr is required when the cache is enabled")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Definitions: DefinitionsConfig{
			Source:   SourceFile,
			Path:     "configs/business-services.yaml",
			Timeout:  5 * time.Second,
			Debounce: 500 * time.Millisecond,
		},
		Alarms: AlarmsConfig{
			Enabled:      false,
			Key:          "mirador:bsm:alarms",
			BlockTimeout: 5 * time.Second,
			RetryDelay:   time.Second,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			KeyPrefix:    "mirador:bsm",
			StatusTTL:    24 * time.Hour,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_BSM_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_BSM_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("MIRADOR_BSM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_BSM_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_BSM_DEFINITIONS_SOURCE"); v != "" {
		cfg.Definitions.Source = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_BSM_DEFINITIONS_PATH"); v != "" {
		cfg.Definitions.Path = v
	}
	if v := os.Getenv("MIRADOR_BSM_DEFINITIONS_URL"); v != "" {
		cfg.Definitions.URL = v
	}
	if v := os.Getenv("MIRADOR_BSM_DEFINITIONS_WATCH"); v != "" {
		cfg.Definitions.Watch = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_BSM_DEFINITIONS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Definitions.Timeout = d
		}
	}
	if v := os.Getenv("MIRADOR_BSM_ALARMS_ENABLED"); v != "" {
		cfg.Alarms.Enabled = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_BSM_ALARMS_ADDR"); v != "" {
		cfg.Alarms.Addr = v
	}
	if v := os.Getenv("MIRADOR_BSM_ALARMS_PASSWORD"); v != "" {
		cfg.Alarms.Password = v
	}
	if v := os.Getenv("MIRADOR_BSM_ALARMS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Alarms.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_BSM_ALARMS_KEY"); v != "" {
		cfg.Alarms.Key = v
	}
	if v := os.Getenv("MIRADOR_BSM_ALARMS_BLOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Alarms.BlockTimeout = d
		}
	}
	if v := os.Getenv("MIRADOR_BSM_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_BSM_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MIRADOR_BSM_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MIRADOR_BSM_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MIRADOR_BSM_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_BSM_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("MIRADOR_BSM_CACHE_KEY_PREFIX"); v != "" {
		cfg.Cache.KeyPrefix = v
	}
	if v := os.Getenv("MIRADOR_BSM_CACHE_STATUS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.StatusTTL = d
		}
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
