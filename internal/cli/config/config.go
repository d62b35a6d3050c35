// Package config loads conduit-admin settings from conduit-admin.yml and the environment
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CONDUIT_ADMIN_DATABASE_URL
const EnvPrefix = "CONDUIT_ADMIN"

// Config represents the conduit-admin configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
	// Manifest is the path of the YAML file describing models and navigation
	Manifest string `mapstructure:"manifest"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// DebugAddress serves pprof and runtime statistics when set; keep it off public interfaces
	DebugAddress string `mapstructure:"debug_address"`
}

// AdminConfig represents the dashboard chrome and mount point
type AdminConfig struct {
	Path            string   `mapstructure:"path"`
	Title           string   `mapstructure:"title"`
	LogoURL         string   `mapstructure:"logo_url"`
	FaviconURL      string   `mapstructure:"favicon_url"`
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
	TemplateFolders []string `mapstructure:"template_folders"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	Driver       string `mapstructure:"driver"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	Migrate      bool   `mapstructure:"migrate"`
}

// RedisConfig represents the token store. An empty URL selects the in-memory store.
type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

// AuthConfig represents login provider settings
type AuthConfig struct {
	Secret      string        `mapstructure:"secret"`
	CookieName  string        `mapstructure:"cookie_name"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	RememberTTL time.Duration `mapstructure:"remember_ttl"`

	// LoginAttempts failed logins are allowed per client per LoginWindow; 0 disables throttling
	LoginAttempts int           `mapstructure:"login_attempts"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
}

// UploadConfig represents file upload settings
type UploadConfig struct {
	Dir             string   `mapstructure:"dir"`
	Prefix          string   `mapstructure:"prefix"`
	MaxSize         int64    `mapstructure:"max_size"`
	AllowExtensions []string `mapstructure:"allow_extensions"`
	S3              S3Config `mapstructure:"s3"`
}

// S3Config selects S3-compatible storage when Bucket is set
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
	PublicURL string `mapstructure:"public_url"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.debug_address", "")

	v.SetDefault("admin.path", "/admin")
	v.SetDefault("admin.title", "Admin Dashboard")
	v.SetDefault("admin.logo_url", "")
	v.SetDefault("admin.favicon_url", "")
	v.SetDefault("admin.default_language", "en_US")
	v.SetDefault("admin.languages", []string{"en_US", "zh_CN", "fr_FR"})

	v.SetDefault("database.url", "sqlite3://conduit-admin.db")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "conduit-admin:")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.cookie_name", "access_token")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.remember_ttl", 30*24*time.Hour)
	v.SetDefault("auth.login_attempts", 10)
	v.SetDefault("auth.login_window", 15*time.Minute)

	v.SetDefault("upload.dir", "static/uploads")
	v.SetDefault("upload.prefix", "/static/uploads")
	v.SetDefault("upload.max_size", int64(1024*1024*1024))
	v.SetDefault("upload.allow_extensions", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("manifest", "admin.yml")
}

// Load loads the configuration from path, or from conduit-admin.yml/.yaml in the
// working directory when path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("conduit-admin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if !strings.HasPrefix(cfg.Admin.Path, "/") {
		return fmt.Errorf("admin.path must start with '/', got: %s", cfg.Admin.Path)
	}
	if len(cfg.Admin.Path) > 1 && strings.HasSuffix(cfg.Admin.Path, "/") {
		return fmt.Errorf("admin.path must not end with '/', got: %s", cfg.Admin.Path)
	}
	if cfg.Auth.Secret == "" && !cfg.Log.Development {
		return fmt.Errorf("auth.secret is required outside development mode")
	}
	if cfg.Auth.TokenTTL <= 0 || cfg.Auth.RememberTTL <= 0 {
		return fmt.Errorf("auth.token_ttl and auth.remember_ttl must be positive")
	}
	if cfg.Auth.LoginAttempts < 0 {
		return fmt.Errorf("auth.login_attempts must not be negative, got: %d", cfg.Auth.LoginAttempts)
	}
	if cfg.Auth.LoginAttempts > 0 && cfg.Auth.LoginWindow <= 0 {
		return fmt.Errorf("auth.login_window must be positive when login_attempts is set")
	}
	if cfg.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive, got: %d", cfg.Upload.MaxSize)
	}
	return nil
}
