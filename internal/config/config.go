// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App         AppConfig         `koanf:"app"`
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Redis       RedisConfig       `koanf:"redis"`
	JWT         JWTConfig         `koanf:"jwt"`
	Session     SessionConfig     `koanf:"session"`
	RateLimit   RateLimitConfig   `koanf:"rate_limit"`
	AuthLimit   AuthLimitConfig   `koanf:"auth_limit"`
	Recaptcha   RecaptchaConfig   `koanf:"recaptcha"`
	Events      EventsConfig      `koanf:"events"`
	CORS        CORSConfig        `koanf:"cors"`
	Log         LogConfig         `koanf:"log"`
	Otel        OtelConfig        `koanf:"otel"`
	Diagnostics DiagnosticsConfig `koanf:"diagnostics"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	TrustProxy      bool          `koanf:"trust_proxy"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath string        `koanf:"private_key_path"`
	PublicKeyPath  string        `koanf:"public_key_path"`
	SessionTTL     time.Duration `koanf:"session_ttl"`
	Issuer         string        `koanf:"issuer"`
	Audience       string        `koanf:"audience"`
}

type SessionConfig struct {
	CookieName   string `koanf:"cookie_name"`
	CookieDomain string `koanf:"cookie_domain"`
	CookieSecure bool   `koanf:"cookie_secure"`
}

// RateLimitConfig drives the router-wide GCRA limiter.
type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

// AuthLimitConfig drives the per-IP window on login, registration and
// captcha verification.
type AuthLimitConfig struct {
	MaxRequests int           `koanf:"max_requests"`
	Window      time.Duration `koanf:"window"`
	Store       string        `koanf:"store"`
}

type RecaptchaConfig struct {
	SecretKey       string        `koanf:"secret_key"`
	SiteKey         string        `koanf:"site_key"`
	MinScore        float64       `koanf:"min_score"`
	SkipActionCheck bool          `koanf:"skip_action_check"`
	VerifyURL       string        `koanf:"verify_url"`
	Timeout         time.Duration `koanf:"timeout"`
}

type EventsConfig struct {
	Driver       string `koanf:"driver"`
	URL          string `koanf:"url"`
	Queue        string `koanf:"queue"`
	QueueDurable bool   `koanf:"queue_durable"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type DiagnosticsConfig struct {
	Enabled bool `koanf:"enabled"`
}

const (
	AuthLimitStoreMemory = "memory"
	AuthLimitStoreRedis  = "redis"

	EventsDriverNone     = "none"
	EventsDriverRabbitMQ = "rabbitmq"
)

var (
	cfg  *Config
	once sync.Once
)

// Load reads configuration once per process: defaults, then the optional
// YAML file, then environment variables.
func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func load(configPath string) (*Config, error) {
	loadDotEnv()

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	loaded := &Config{}
	if err := k.Unmarshal("", loaded); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(loaded); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return loaded, nil
}

// loadDotEnv reads .env outside production; variables already present in
// the environment win.
func loadDotEnv() {
	environment := os.Getenv("ENVIRONMENT")
	if environment == "production" {
		return
	}
	//nolint:errcheck // a missing .env file is the normal case
	_ = godotenv.Load()
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "authflow",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.trust_proxy":      false,

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.session_ttl":      "720h",
		"jwt.issuer":           "authflow",
		"jwt.audience":         "authflow-web",
		"jwt.private_key_path": "keys/private.pem",
		"jwt.public_key_path":  "keys/public.pem",

		"session.cookie_name":   "session_token",
		"session.cookie_secure": false,

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"auth_limit.max_requests": 5,
		"auth_limit.window":       "15m",
		"auth_limit.store":        AuthLimitStoreMemory,

		"recaptcha.min_score":         0.5,
		"recaptcha.skip_action_check": false,
		"recaptcha.verify_url":        "https://www.google.com/recaptcha/api/siteverify",
		"recaptcha.timeout":           "10s",

		"events.driver":        EventsDriverNone,
		"events.queue":         "authflow.user_events",
		"events.queue_durable": true,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "authflow",

		"diagnostics.enabled": false,
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"TRUST_PROXY":                 "server.trust_proxy",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_SESSION_TTL":             "jwt.session_ttl",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"SESSION_COOKIE_NAME":         "session.cookie_name",
	"SESSION_COOKIE_DOMAIN":       "session.cookie_domain",
	"SESSION_COOKIE_SECURE":       "session.cookie_secure",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"AUTH_LIMIT_MAX_REQUESTS":     "auth_limit.max_requests",
	"AUTH_LIMIT_WINDOW":           "auth_limit.window",
	"AUTH_LIMIT_STORE":            "auth_limit.store",
	"RECAPTCHA_SECRET_KEY":        "recaptcha.secret_key",
	"RECAPTCHA_SITE_KEY":          "recaptcha.site_key",
	"RECAPTCHA_MIN_SCORE":         "recaptcha.min_score",
	"RECAPTCHA_SKIP_ACTION_CHECK": "recaptcha.skip_action_check",
	"RECAPTCHA_VERIFY_URL":        "recaptcha.verify_url",
	"RECAPTCHA_TIMEOUT":           "recaptcha.timeout",
	"EVENTS_DRIVER":               "events.driver",
	"EVENTS_URL":                  "events.url",
	"EVENTS_QUEUE":                "events.queue",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"DIAGNOSTICS_ENABLED":         "diagnostics.enabled",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.SessionTTL <= 0 {
		return fmt.Errorf("jwt.session_ttl must be positive")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}

	if c.AuthLimit.MaxRequests <= 0 {
		return fmt.Errorf("auth_limit.max_requests must be positive")
	}

	if c.AuthLimit.Window <= 0 {
		return fmt.Errorf("auth_limit.window must be positive")
	}

	switch c.AuthLimit.Store {
	case AuthLimitStoreMemory, AuthLimitStoreRedis:
	default:
		return fmt.Errorf("auth_limit.store must be %q or %q",
			AuthLimitStoreMemory, AuthLimitStoreRedis)
	}

	if c.Recaptcha.MinScore < 0 || c.Recaptcha.MinScore > 1 {
		return fmt.Errorf("RECAPTCHA_MIN_SCORE must be between 0 and 1")
	}

	switch strings.ToLower(c.Events.Driver) {
	case "", EventsDriverNone:
	case EventsDriverRabbitMQ:
		if c.Events.URL == "" {
			return fmt.Errorf("EVENTS_URL is required for the rabbitmq driver")
		}
	default:
		return fmt.Errorf("unknown events driver %q", c.Events.Driver)
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if !c.Session.CookieSecure {
			return fmt.Errorf("SESSION_COOKIE_SECURE must be true in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// RecaptchaBypass reports whether captcha failures may be ignored. Only
// ever true outside production.
func (c *Config) RecaptchaBypass() bool {
	return !c.IsProduction() && c.Recaptcha.SkipActionCheck
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
