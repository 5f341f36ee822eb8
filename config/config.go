// Package config loads the application configuration from YAML with environment overrides
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"transfer-dashboard-backend/internal/cache"
	"transfer-dashboard-backend/internal/filter"
	"transfer-dashboard-backend/internal/pipeline"
	"transfer-dashboard-backend/internal/server"
	"transfer-dashboard-backend/internal/stats"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/storage"
)

// Config holds all application configuration
type Config struct {
	Log      utils.LogConfig `yaml:"log"`
	Server   server.Config   `yaml:"server"`
	Storage  storage.Config  `yaml:"storage"`
	Cache    cache.Config    `yaml:"cache"`
	Pipeline pipeline.Config `yaml:"pipeline"`
}

// DefaultConfig returns default configuration for the entire application
func DefaultConfig() Config {
	return Config{
		Log: utils.LogConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "transfer-dashboard",
		},
		Server:   server.DefaultConfig(),
		Storage:  storage.DefaultConfig(),
		Cache:    cache.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
	}
}

// Chain returns the configured chain of interest
func (c *Config) Chain() string {
	return c.Server.Defaults.Chain
}

// Load reads the config file if present, then applies defaults and environment overrides.
// ${VAR} references inside the file are expanded before parsing.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		content := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
			return nil, utils.WrapError(err, utils.ErrorTypeConfig, "CONFIG_PARSE_FAILED",
				fmt.Sprintf("failed to parse %s", configPath), utils.ComponentConfig)
		}
	case !os.IsNotExist(err):
		return nil, utils.WrapError(err, utils.ErrorTypeConfig, "CONFIG_READ_FAILED",
			fmt.Sprintf("failed to read %s", configPath), utils.ComponentConfig)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}
	if exe, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exe), "config", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "config/config.yaml"
}

// applyDefaults fills values a partial file may have blanked
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	d := &cfg.Server.Defaults
	if d.Chain == "" {
		d.Chain = def.Server.Defaults.Chain
	}
	if d.Start == "" {
		d.Start = def.Server.Defaults.Start
	}
	if d.End == "" {
		d.End = def.Server.Defaults.End
	}
	if d.Granularity == "" {
		d.Granularity = def.Server.Defaults.Granularity
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = def.Storage.Driver
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = def.Cache.Backend
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = def.Cache.KeyPrefix
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CHAIN_OF_INTEREST"); v != "" {
		cfg.Server.Defaults.Chain = v
	}

	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("FIXTURE_PATH"); v != "" {
		cfg.Storage.FixturePath = v
	}
	// DB_* variables win over the file
	env := storage.DefaultConfig().Postgres
	pg := &cfg.Storage.Postgres
	for key, apply := range map[string]func(){
		"DB_HOST":     func() { pg.Host = env.Host },
		"DB_PORT":     func() { pg.Port = env.Port },
		"DB_USER":     func() { pg.User = env.User },
		"DB_PASSWORD": func() { pg.Password = env.Password },
		"DB_NAME":     func() { pg.Database = env.Database },
		"DB_SSLMODE":  func() { pg.SSLMode = env.SSLMode },
	} {
		if os.Getenv(key) != "" {
			apply()
		}
	}

	if v := os.Getenv("DB_INIT_SCHEMA"); v != "" {
		pg.InitSchema = v == "true" || v == "1"
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Backend = cache.BackendRedis
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		if len(brokers) > 0 {
			cfg.Pipeline.Ingest.Brokers = brokers
			cfg.Pipeline.Ingest.Enabled = true
		}
	}
}

// Validate checks the configuration before anything is started
func (c *Config) Validate() error {
	invalid := func(code, format string, args ...interface{}) error {
		return utils.NewAppError(utils.ErrorTypeConfig, code, fmt.Sprintf(format, args...), utils.ComponentConfig)
	}

	if strings.TrimSpace(c.Server.Defaults.Chain) == "" {
		return invalid("EMPTY_CHAIN", "chain of interest must not be empty")
	}
	if _, err := filter.ParseWindow(c.Server.Defaults.Start, c.Server.Defaults.End); err != nil {
		return utils.NewAppError(utils.ErrorTypeConfig, "INVALID_WINDOW", "invalid default window", utils.ComponentConfig).
			WithDetails(err.Error())
	}
	if _, err := stats.ParseGranularity(c.Server.Defaults.Granularity); err != nil {
		return utils.NewAppError(utils.ErrorTypeConfig, "INVALID_GRANULARITY", "invalid default granularity", utils.ComponentConfig).
			WithDetails(err.Error())
	}

	switch c.Storage.Driver {
	case storage.DriverPostgres, storage.DriverMemory:
	default:
		return invalid("UNKNOWN_STORAGE_DRIVER", "unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendRedis:
	default:
		return invalid("UNKNOWN_CACHE_BACKEND", "unknown cache backend %q", c.Cache.Backend)
	}

	if c.Pipeline.Ingest.Enabled && len(c.Pipeline.Ingest.Brokers) == 0 {
		return invalid("NO_BROKERS", "ingest enabled without kafka brokers")
	}
	return nil
}
