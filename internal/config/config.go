package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-vms-es/internal/ratelimit"
)

const DefaultPath = "config/default.yaml"

// DevSigningKey is the placeholder shipped in the defaults. It is refused
// whenever auth is enabled.
const DevSigningKey = "dev-secret-do-not-use-in-prod"

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	NATS        NATSConfig        `yaml:"nats"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Auth        AuthConfig        `yaml:"auth"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	CORS        CORSConfig        `yaml:"cors"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Backend        string `yaml:"backend"` // memory | postgres | redis
	StreamPrefix   string `yaml:"stream_prefix"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url"`
	SubjectPrefix   string `yaml:"subject_prefix"`
	PublishRetryMax int    `yaml:"publish_retry_max"`
}

type RateLimitConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Salt     string                `yaml:"salt"`
	GlobalIP ratelimit.LimitConfig `yaml:"global_ip"`
}

type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SigningKey string `yaml:"signing_key"`

	// CheckRevocation consults the Redis revocation list on every request.
	CheckRevocation bool `yaml:"check_revocation"`
}

type IdempotencyConfig struct {
	MaxKeys    int `yaml:"max_keys"`
	TTLSeconds int `yaml:"ttl_seconds"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			RequestTimeout:  15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Backend:        BackendMemory,
			StreamPrefix:   "camera",
			RedisKeyPrefix: "es:",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		NATS: NATSConfig{
			URL:             "nats://127.0.0.1:4222",
			SubjectPrefix:   "vms.cameras",
			PublishRetryMax: 2,
		},
		RateLimit: RateLimitConfig{
			GlobalIP: ratelimit.LimitConfig{Rate: 600, Window: time.Minute},
		},
		Auth:        AuthConfig{SigningKey: DevSigningKey},
		Idempotency: IdempotencyConfig{MaxKeys: 10000, TTLSeconds: 600},
		CORS:        CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load reads path over the defaults and then applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Port, "PORT")
	set(&c.Store.Backend, "STORE_BACKEND")
	set(&c.Database.Host, "DB_HOST")
	set(&c.Database.User, "DB_USER")
	set(&c.Database.Password, "DB_PASSWORD")
	set(&c.Database.Name, "DB_NAME")
	set(&c.Database.SSLMode, "DB_SSLMODE")
	set(&c.Redis.Addr, "REDIS_ADDR")
	set(&c.Auth.SigningKey, "JWT_SIGNING_KEY")

	if v := getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT: %w", err)
		}
		c.Database.Port = port
	}
	if v := getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if c.Store.StreamPrefix == "" {
		return errors.New("store.stream_prefix must not be empty")
	}
	if c.Auth.Enabled {
		switch c.Auth.SigningKey {
		case "":
			return errors.New("auth.signing_key is required when auth is enabled")
		case DevSigningKey:
			return errors.New("auth.signing_key must be changed from the shipped default when auth is enabled")
		}
	}
	return nil
}

func (c IdempotencyConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
