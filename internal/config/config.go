package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is loaded from the environment.
type Config struct {
	DatabaseURL    string        `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns     int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBConnLifetime time.Duration `env:"DB_CONN_LIFETIME" envDefault:"30m"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWKSURL   string        `env:"JWKS_URL"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"carnumbers"`

	IRacingUsername string `env:"IRACING_USERNAME"`
	IRacingPassword string `env:"IRACING_PASSWORD"`
	IRacingBaseURL  string `env:"IRACING_BASE_URL" envDefault:"https://members-ng.iracing.com"`

	SyncInterval         time.Duration `env:"SYNC_INTERVAL" envDefault:"1h"`
	SyncOnStart          bool          `env:"SYNC_ON_START" envDefault:"false"`
	SyncConcurrency      int           `env:"SYNC_CONCURRENCY" envDefault:"4"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	VerifyTimeout        time.Duration `env:"VERIFY_TIMEOUT" envDefault:"5s"`
	AvailabilityCacheTTL time.Duration `env:"AVAILABILITY_CACHE_TTL" envDefault:"10m"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.SyncInterval <= 0 {
		return errors.New("SYNC_INTERVAL must be positive")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	if c.SyncConcurrency < 1 {
		return errors.New("SYNC_CONCURRENCY must be at least 1")
	}
	if (c.IRacingUsername == "") != (c.IRacingPassword == "") {
		return errors.New("IRACING_USERNAME and IRACING_PASSWORD must be set together")
	}
	return nil
}

// ValidateServe checks settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.JWTSecret == "" && c.JWKSURL == "" {
		return errors.New("JWT_SECRET or JWKS_URL is required")
	}
	return nil
}

func (c *Config) RosterSyncEnabled() bool {
	return c.IRacingUsername != "" && c.IRacingPassword != ""
}

func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) ArchiveEnabled() bool {
	return c.MinioEndpoint != ""
}
