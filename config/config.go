package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultAccessSecret = "change-me-event-access-secret"

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Storage  StorageConfig
	OTel     OTelConfig
	Log      LogConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Debug       bool
	Version     string
	PublicURL   string // base for canonical download URLs
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	StaticDir      string
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode, d.TimeZone,
	)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type SessionConfig struct {
	CookieName         string
	MaxAge             time.Duration
	ServiceAccountJSON string
	ServiceAccountFile string
	ClientID           string // audience of incoming ID tokens
	AccessSecret       string // signs event_access_<id> cookies
}

type StorageConfig struct {
	URL           string
	Key           string
	Bucket        string
	UploadTimeout time.Duration
	URLTimeout    time.Duration
}

func (s *StorageConfig) Enabled() bool {
	return s.URL != "" && s.Key != ""
}

type OTelConfig struct {
	Enabled       bool
	ServiceName   string
	CollectorAddr string
}

type LogConfig struct {
	Level       string
	Development bool
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	return load()
}

// LoadFile is Load with an explicit env file, which must exist.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return load()
}

func load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := bindConfig(v)
	if err := cfg.resolveServiceAccount(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "dishevent")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", false)
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("APP_PUBLIC_URL", "http://localhost:8080")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "0s") // SSE streams stay open
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("SERVER_STATIC_DIR", "")

	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_DBNAME", "dishevent")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_TIMEZONE", "UTC")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_COOKIE_NAME", "session")
	v.SetDefault("SESSION_MAX_AGE", "120h")
	v.SetDefault("SESSION_SERVICE_ACCOUNT", "")
	v.SetDefault("SESSION_SERVICE_ACCOUNT_FILE", "")
	v.SetDefault("SESSION_CLIENT_ID", "")
	v.SetDefault("SESSION_ACCESS_SECRET", defaultAccessSecret)

	v.SetDefault("STORAGE_URL", "")
	v.SetDefault("STORAGE_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "event-media")
	v.SetDefault("STORAGE_UPLOAD_TIMEOUT", "60s")
	v.SetDefault("STORAGE_URL_TIMEOUT", "15s")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "dishevent")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
}

func bindConfig(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.PublicURL = strings.TrimRight(v.GetString("APP_PUBLIC_URL"), "/")

	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")
	cfg.Server.AllowedOrigins = splitList(v.GetString("SERVER_ALLOWED_ORIGINS"))
	cfg.Server.StaticDir = v.GetString("SERVER_STATIC_DIR")

	cfg.Database.Host = v.GetString("DATABASE_HOST")
	cfg.Database.Port = v.GetInt("DATABASE_PORT")
	cfg.Database.User = v.GetString("DATABASE_USER")
	cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	cfg.Database.DBName = v.GetString("DATABASE_DBNAME")
	cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	cfg.Database.TimeZone = v.GetString("DATABASE_TIMEZONE")
	cfg.Database.MaxOpenConns = v.GetInt("DATABASE_MAX_OPEN_CONNS")
	cfg.Database.MaxIdleConns = v.GetInt("DATABASE_MAX_IDLE_CONNS")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DATABASE_CONN_MAX_LIFETIME")

	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Session.CookieName = v.GetString("SESSION_COOKIE_NAME")
	cfg.Session.MaxAge = v.GetDuration("SESSION_MAX_AGE")
	cfg.Session.ServiceAccountJSON = v.GetString("SESSION_SERVICE_ACCOUNT")
	cfg.Session.ClientID = v.GetString("SESSION_CLIENT_ID")
	cfg.Session.AccessSecret = v.GetString("SESSION_ACCESS_SECRET")
	cfg.Session.ServiceAccountFile = v.GetString("SESSION_SERVICE_ACCOUNT_FILE")

	cfg.Storage.URL = strings.TrimRight(v.GetString("STORAGE_URL"), "/")
	cfg.Storage.Key = v.GetString("STORAGE_KEY")
	cfg.Storage.Bucket = v.GetString("STORAGE_BUCKET")
	cfg.Storage.UploadTimeout = v.GetDuration("STORAGE_UPLOAD_TIMEOUT")
	cfg.Storage.URLTimeout = v.GetDuration("STORAGE_URL_TIMEOUT")

	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Development = v.GetBool("LOG_DEVELOPMENT")

	return cfg
}

func (c *Config) resolveServiceAccount() error {
	if c.Session.ServiceAccountJSON != "" || c.Session.ServiceAccountFile == "" {
		return nil
	}
	raw, err := os.ReadFile(c.Session.ServiceAccountFile)
	if err != nil {
		return fmt.Errorf("read service account file: %w", err)
	}
	c.Session.ServiceAccountJSON = string(raw)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings the server cannot start with. A missing service
// account is allowed; session endpoints then answer with a configuration error.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host and name are required")
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("session max age must be positive")
	}
	if c.Storage.UploadTimeout <= 0 || c.Storage.URLTimeout <= 0 {
		return fmt.Errorf("storage timeouts must be positive")
	}
	if c.Session.AccessSecret == "" {
		return fmt.Errorf("event access secret is required")
	}
	if c.IsProduction() && c.Session.AccessSecret == defaultAccessSecret {
		return fmt.Errorf("event access secret must be changed in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
