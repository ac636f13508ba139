package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/redhat-data-and-ai/userpool/pkg/cache"
	"github.com/redhat-data-and-ai/userpool/pkg/logger"
	"github.com/redhat-data-and-ai/userpool/pkg/store"
	"github.com/redhat-data-and-ai/userpool/pkg/telemetry"
	"github.com/redhat-data-and-ai/userpool/pkg/userpool"
)

// EnvPrefix is prepended to every environment override, e.g. USERPOOL_STORE_BACKEND
const EnvPrefix = "USERPOOL"

const (
	AuthModeAPIKey = "apikey"
	AuthModeBasic  = "basic"
)

// AppConfig is the complete service configuration
type AppConfig struct {
	App       App              `mapstructure:"app"`
	Store     StoreConfig      `mapstructure:"store"`
	Cache     cache.Config     `mapstructure:"cache"`
	Pool      PoolConfig       `mapstructure:"pool"`
	APIServer APIServerConfig  `mapstructure:"api_server"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
}

type App struct {
	Name        string        `mapstructure:"name"`
	Version     string        `mapstructure:"version"`
	Environment string        `mapstructure:"environment"`
	Log         logger.Config `mapstructure:"log"`
}

// StoreConfig selects where pool documents live
type StoreConfig struct {
	// Backend is one of "file", "cache" or "sqlite"
	Backend string `mapstructure:"backend"`
	// DataDir holds one <pool>.json per pool for the file backend
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath defaults to <DataDir>/userpool.db
	SQLitePath string `mapstructure:"sqlite_path"`
}

type PoolConfig struct {
	ID                 string   `mapstructure:"id"`
	UsernameAttributes []string `mapstructure:"username_attributes"`
}

type APIServerConfig struct {
	Host string     `mapstructure:"host"`
	Port int        `mapstructure:"port"`
	Auth AuthConfig `mapstructure:"auth"`
	CORS CORSConfig `mapstructure:"cors"`
}

type AuthConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	Mode       string      `mapstructure:"mode"`
	APIKeys    []string    `mapstructure:"api_keys"`
	BasicUsers []BasicUser `mapstructure:"basic_users"`
}

type BasicUser struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "userpool")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "local")
	v.SetDefault("app.log.level", "info")
	v.SetDefault("app.log.format", "")

	v.SetDefault("store.backend", store.BackendFile)
	v.SetDefault("store.data_dir", ".userpool")
	v.SetDefault("store.sqlite_path", "")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.inmemory.default_expiration", -1)
	v.SetDefault("cache.inmemory.cleanup_interval", -1)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", "6379")
	v.SetDefault("cache.redis.database", 0)
	v.SetDefault("cache.redis.password", "")

	v.SetDefault("pool.id", userpool.DefaultPoolID)
	v.SetDefault("pool.username_attributes", []string{string(userpool.AttributeEmail)})

	v.SetDefault("api_server.host", "0.0.0.0")
	v.SetDefault("api_server.port", 9229)
	v.SetDefault("api_server.auth.enabled", false)
	v.SetDefault("api_server.auth.mode", AuthModeAPIKey)
	v.SetDefault("api_server.auth.api_keys", []string{})
	v.SetDefault("api_server.cors.allowed_origins", []string{})
	v.SetDefault("api_server.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("api_server.cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-API-Key"})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "userpool")
	v.SetDefault("telemetry.service_version", "dev")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
}

// Load reads path (or config.yaml from the working directory or ./config when path is empty),
// applies USERPOOL_* environment overrides and validates the result
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDerived() {
	if c.App.Log.Format == "" {
		if c.App.Environment == "local" {
			c.App.Log.Format = "text"
		} else {
			c.App.Log.Format = "json"
		}
	}
	if c.Store.SQLitePath == "" && c.Store.DataDir != "" {
		c.Store.SQLitePath = filepath.Join(c.Store.DataDir, "userpool.db")
	}
}

// Validate reports every configuration problem at once
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case store.BackendFile:
		if c.Store.DataDir == "" {
			errs = append(errs, errors.New("store.data_dir is required for the file backend"))
		}
	case store.BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path or store.data_dir is required for the sqlite backend"))
		}
	case store.BackendCache:
	default:
		errs = append(errs, fmt.Errorf("unsupported store.backend %q (supported: %s, %s, %s)",
			c.Store.Backend, store.BackendFile, store.BackendCache, store.BackendSQLite))
	}

	if err := store.ValidateName(c.Pool.ID); err != nil {
		errs = append(errs, fmt.Errorf("pool.id: %w", err))
	}
	if _, err := userpool.ParseUsernameAttributes(c.Pool.UsernameAttributes); err != nil {
		errs = append(errs, fmt.Errorf("pool.username_attributes: %w", err))
	}

	if c.APIServer.Port < 1 || c.APIServer.Port > 65535 {
		errs = append(errs, fmt.Errorf("api_server.port %d is out of range", c.APIServer.Port))
	}
	if c.APIServer.Auth.Enabled {
		switch c.APIServer.Auth.Mode {
		case AuthModeAPIKey:
			if len(c.APIServer.Auth.APIKeys) == 0 {
				errs = append(errs, errors.New("api_server.auth.api_keys must not be empty when apikey auth is enabled"))
			}
		case AuthModeBasic:
			if len(c.APIServer.Auth.BasicUsers) == 0 {
				errs = append(errs, errors.New("api_server.auth.basic_users must not be empty when basic auth is enabled"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported api_server.auth.mode %q", c.APIServer.Auth.Mode))
		}
	}

	return errors.Join(errs...)
}

// PoolOptions converts the pool section into userpool options
func (c *AppConfig) PoolOptions() (userpool.Options, error) {
	attrs, err := userpool.ParseUsernameAttributes(c.Pool.UsernameAttributes)
	if err != nil {
		return userpool.Options{}, err
	}
	return userpool.Options{UsernameAttributes: attrs}, nil
}
