package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eventhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":8080"
  read_timeout: 2s
database:
  driver: postgres
  dsn: postgres://file
broker:
  kind: nats
`)
	t.Setenv("EVENTHUB_LOG_LEVEL", "debug")
	t.Setenv("EVENTHUB_RATELIMIT_BURST", "7")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://file", cfg.Database.DSN)
	assert.Equal(t, "nats", cfg.Broker.Kind)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadHostingEnvNames(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/eventhub")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@db/eventhub", cfg.Database.DSN)
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("EVENTHUB_HTTP_ADDR", "127.0.0.1:7000")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.HTTP.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.JWTSecret = "s3cret"
	require.NoError(t, cfg.Validate())

	cfg.Auth.JWTSecret = ""
	cfg.Database.Driver = "mysql"
	cfg.Broker.Kind = "kafka"
	cfg.Tracing.Exporter = "zipkin"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"auth.jwt_secret", "database.driver", "broker.kind", "tracing.exporter"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestDatabaseValidate(t *testing.T) {
	assert.NoError(t, Defaults().Database.Validate())
	assert.Error(t, Database{Driver: "sqlite"}.Validate())
}
