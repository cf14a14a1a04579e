// Package config loads service settings from defaults, an optional YAML file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const EnvPrefix = "EVENTHUB"

type Config struct {
	HTTP      HTTP      `mapstructure:"http"`
	Database  Database  `mapstructure:"database"`
	Auth      Auth      `mapstructure:"auth"`
	Log       Log       `mapstructure:"log"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	Reconcile Reconcile `mapstructure:"reconcile"`
	Broker    Broker    `mapstructure:"broker"`
	Tracing   Tracing   `mapstructure:"tracing"`
}

type HTTP struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

type Database struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Auth struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RateLimit is per client IP. A non-positive RPS disables it.
type RateLimit struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Reconcile configures the background count repair. Zero disables it.
type Reconcile struct {
	Interval time.Duration `mapstructure:"interval"`
}

type Broker struct {
	// Kind is "none", "amqp" or "nats".
	Kind     string `mapstructure:"kind"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type Tracing struct {
	// Exporter is "none", "stdout" or "otlp".
	Exporter    string `mapstructure:"exporter"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

func Defaults() Config {
	return Config{
		HTTP: HTTP{
			Addr:            ":5000",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			CORSOrigin:      "http://localhost:3000",
		},
		Database: Database{
			Driver: "sqlite",
			DSN:    "eventhub.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		},
		Auth: Auth{
			TokenTTL: 24 * time.Hour,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimit{
			RPS:   20,
			Burst: 40,
		},
		Reconcile: Reconcile{
			Interval: time.Minute,
		},
		Broker: Broker{
			Kind:     "none",
			Exchange: "eventhub",
		},
		Tracing: Tracing{
			Exporter:    "none",
			Endpoint:    "localhost:4317",
			ServiceName: "eventhub",
		},
	}
}

// SetDefaults registers every key of Defaults with v so that environment
// variables for keys absent from the config file are still picked up.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", d.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)
	v.SetDefault("http.cors_origin", d.HTTP.CORSOrigin)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("ratelimit.rps", d.RateLimit.RPS)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
	v.SetDefault("reconcile.interval", d.Reconcile.Interval)
	v.SetDefault("broker.kind", d.Broker.Kind)
	v.SetDefault("broker.url", d.Broker.URL)
	v.SetDefault("broker.exchange", d.Broker.Exchange)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load reads cfgFile when given, or ./eventhub.yaml when present, then layers
// the environment on top. EVENTHUB_HTTP_ADDR style names work for every key;
// PORT, JWT_SECRET and DATABASE_URL are honoured as well.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("eventhub")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" && os.Getenv(EnvPrefix+"_HTTP_ADDR") == "" && !v.InConfig("http.addr") {
		cfg.HTTP.Addr = ":" + port
	}

	// DATABASE_URL on its own implies postgres.
	if os.Getenv("DATABASE_URL") != "" && os.Getenv(EnvPrefix+"_DATABASE_DRIVER") == "" && !v.InConfig("database.driver") {
		cfg.Database.Driver = "postgres"
	}

	return cfg, nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

// Validate checks the settings the database commands need.
func (d Database) Validate() error {
	var errs error
	errs = multierr.Append(errs, oneOf("database.driver", d.Driver, "sqlite", "postgres"))
	if strings.TrimSpace(d.DSN) == "" {
		errs = multierr.Append(errs, errors.New("database.dsn is required"))
	}
	return errs
}

// Validate checks everything serve needs and reports all problems at once.
func (c Config) Validate() error {
	var errs error

	errs = multierr.Append(errs, c.Database.Validate())
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = multierr.Append(errs, errors.New("auth.jwt_secret is required (set JWT_SECRET)"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = multierr.Append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.HTTP.Addr == "" {
		errs = multierr.Append(errs, errors.New("http.addr is required"))
	}
	errs = multierr.Append(errs, oneOf("broker.kind", c.Broker.Kind, "none", "amqp", "nats"))
	if c.Broker.Kind == "amqp" && c.Broker.URL == "" {
		errs = multierr.Append(errs, errors.New("broker.url is required for amqp"))
	}
	errs = multierr.Append(errs, oneOf("tracing.exporter", c.Tracing.Exporter, "none", "stdout", "otlp"))
	errs = multierr.Append(errs, oneOf("log.format", c.Log.Format, "json", "console"))
	if c.Reconcile.Interval < 0 {
		errs = multierr.Append(errs, errors.New("reconcile.interval must not be negative"))
	}

	return errs
}
