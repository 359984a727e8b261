package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	MinIO     MinIOConfig
	Content   ContentConfig

	LogLevel string
	// AllowInsecureToken accepts unsigned bearer tokens. Development only.
	AllowInsecureToken bool
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

// MongoDBConfig is optional; an empty URI disables every Mongo-backed store.
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled  bool
	RPS      float64
	Burst    int
	UseRedis bool
	Window   time.Duration
}

type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// ContentConfig selects the content store backend and its retry policy.
type ContentConfig struct {
	Store          string // memory, mongo or redis
	RetryAttempts  int
	RetryInitial   time.Duration
	RetryMax       time.Duration
	MaxUploadBytes int64
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGODB_DATABASE", "contentflow")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("MINIO_BUCKET", "contentflow")
	v.SetDefault("CONTENT_STORE", "")
	v.SetDefault("CONTENT_RETRY_ATTEMPTS", 3)
	v.SetDefault("CONTENT_RETRY_INITIAL_MS", 50)
	v.SetDefault("CONTENT_RETRY_MAX_MS", 1000)
	v.SetDefault("CONTENT_MAX_UPLOAD_MB", 10)

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:          v.GetString("KEYCLOAK_URL"),
			Realm:        v.GetString("KEYCLOAK_REALM"),
			ClientID:     v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: v.GetString("KEYCLOAK_CLIENT_SECRET"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:      v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:    v.GetInt("RATE_LIMIT_BURST"),
			UseRedis: v.GetBool("RATE_LIMIT_USE_REDIS"),
			Window:   time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:      v.GetString("MINIO_ENDPOINT"),
			AccessKey:     v.GetString("MINIO_ACCESS_KEY"),
			SecretKey:     v.GetString("MINIO_SECRET_KEY"),
			Bucket:        v.GetString("MINIO_BUCKET"),
			UseSSL:        v.GetBool("MINIO_USE_SSL"),
			PublicBaseURL: v.GetString("MINIO_PUBLIC_BASE_URL"),
		},
		Content: ContentConfig{
			Store:          strings.ToLower(v.GetString("CONTENT_STORE")),
			RetryAttempts:  v.GetInt("CONTENT_RETRY_ATTEMPTS"),
			RetryInitial:   time.Duration(v.GetInt("CONTENT_RETRY_INITIAL_MS")) * time.Millisecond,
			RetryMax:       time.Duration(v.GetInt("CONTENT_RETRY_MAX_MS")) * time.Millisecond,
			MaxUploadBytes: v.GetInt64("CONTENT_MAX_UPLOAD_MB") << 20,
		},
		LogLevel:           v.GetString("LOG_LEVEL"),
		AllowInsecureToken: v.GetBool("ALLOW_INSECURE_TOKEN"),
	}

	if cfg.Content.Store == "" {
		cfg.Content.Store = defaultStore(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultStore prefers Mongo, then Redis, then memory.
func defaultStore(cfg *Config) string {
	switch {
	case cfg.MongoDB.URI != "":
		return "mongo"
	case cfg.Redis.Addr() != "":
		return "redis"
	}
	return "memory"
}

func (c *Config) validate() error {
	switch c.Content.Store {
	case "memory":
	case "mongo":
		if c.MongoDB.URI == "" {
			return fmt.Errorf("config: CONTENT_STORE=mongo requires MONGODB_URI")
		}
	case "redis":
		if c.Redis.Addr() == "" {
			return fmt.Errorf("config: CONTENT_STORE=redis requires REDIS_HOST")
		}
	default:
		return fmt.Errorf("config: unknown CONTENT_STORE %q", c.Content.Store)
	}
	if c.RateLimit.UseRedis && c.Redis.Addr() == "" {
		return fmt.Errorf("config: RATE_LIMIT_USE_REDIS requires REDIS_HOST")
	}
	if c.Content.RetryAttempts < 1 {
		c.Content.RetryAttempts = 1
	}
	return nil
}

// Summary describes which backends are configured, without secrets.
func (c *Config) Summary() string {
	return fmt.Sprintf("env=%s addr=%s store=%s mongo=%t redis=%t keycloak=%t minio=%t jwt=%t ratelimit=%t(redis=%t)",
		c.Server.Environment, c.Server.Addr(), c.Content.Store,
		c.MongoDB.URI != "", c.Redis.Addr() != "", c.Keycloak.URL != "", c.MinIO.Endpoint != "",
		c.JWT.Secret != "", c.RateLimit.Enabled, c.RateLimit.UseRedis)
}
