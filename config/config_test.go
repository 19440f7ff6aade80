package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dishevent", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "session", cfg.Session.CookieName)
	assert.Equal(t, 120*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, 60*time.Second, cfg.Storage.UploadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Storage.URLTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Storage.Enabled())
	assert.Empty(t, cfg.Session.ServiceAccountJSON)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("APP_PUBLIC_URL", "https://invites.example.com/")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://invites.example.com", cfg.App.PublicURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_ServiceAccountFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"svc@example.iam.gserviceaccount.com"}`), 0o600))
	t.Setenv("SESSION_SERVICE_ACCOUNT_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.Session.ServiceAccountJSON, "svc@example.iam.gserviceaccount.com")
}

func TestLoad_MissingServiceAccountFile(t *testing.T) {
	t.Setenv("SESSION_SERVICE_ACCOUNT_FILE", filepath.Join(t.TempDir(), "missing.json"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STORAGE_BUCKET=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("STORAGE_BUCKET") })

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Storage.Bucket)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Name: "dishevent", Environment: "development"},
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Host: "localhost", DBName: "dishevent"},
			Session:  SessionConfig{MaxAge: time.Hour, AccessSecret: defaultAccessSecret},
			Storage:  StorageConfig{UploadTimeout: time.Minute, URLTimeout: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"empty name", func(c *Config) { c.App.Name = "" }, true},
		{"no db name", func(c *Config) { c.Database.DBName = "" }, true},
		{"zero upload timeout", func(c *Config) { c.Storage.UploadTimeout = 0 }, true},
		{"default secret in production", func(c *Config) { c.App.Environment = "production" }, true},
		{"custom secret in production", func(c *Config) {
			c.App.Environment = "production"
			c.Session.AccessSecret = "s3cret"
		}, false},
		{"missing service account is fine", func(c *Config) { c.Session.ServiceAccountJSON = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable TimeZone=UTC", d.DSN())
}
