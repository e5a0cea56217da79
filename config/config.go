package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Listings  ListingsConfig  `mapstructure:"listings"`
	Log       LogConfig       `mapstructure:"log"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	TrustXFF       bool          `mapstructure:"trust_xff"`
	OriginHeader   string        `mapstructure:"origin_header"`
	MaxInFlight    int           `mapstructure:"max_in_flight"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

type RateLimitConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Capacity     int           `mapstructure:"capacity"`
	Window       time.Duration `mapstructure:"window"`
	IdleTTL      time.Duration `mapstructure:"idle_ttl"`
	CleanupEvery time.Duration `mapstructure:"cleanup_every"`
	AddHeaders   bool          `mapstructure:"add_headers"`
	AuthPrefix   string        `mapstructure:"auth_prefix"`
	CreatePath   string        `mapstructure:"create_path"`
}

// RetryAfter é o tempo para reabastecer uma permissão.
func (c RateLimitConfig) RetryAfter() time.Duration {
	if c.Capacity <= 0 {
		return c.Window
	}
	return c.Window / time.Duration(c.Capacity)
}

type AuthConfig struct {
	SecretKey  string        `mapstructure:"secret_key"`
	SecretFile string        `mapstructure:"secret_file"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type StatsConfig struct {
	Redis RedisStatsConfig `mapstructure:"redis"`
}

type RedisStatsConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	Bucket    string        `mapstructure:"bucket"`
	TrackKeys bool          `mapstructure:"track_keys"`

	// QueueSize e RecordTimeout controlam o envio assíncrono ao Redis.
	QueueSize     int           `mapstructure:"queue_size"`
	RecordTimeout time.Duration `mapstructure:"record_timeout"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type UploadsConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

type ListingsConfig struct {
	AutoApprove bool `mapstructure:"auto_approve"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DebugConfig liga GET /debug/ratelimit (contadores em memória).
type DebugConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	TrackKeys bool `mapstructure:"track_keys"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.trust_xff", false)
	v.SetDefault("server.origin_header", "")
	v.SetDefault("server.max_in_flight", 100)
	v.SetDefault("server.acquire_timeout", time.Duration(0))

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.capacity", 60)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)
	v.SetDefault("rate_limit.cleanup_every", 2*time.Minute)
	v.SetDefault("rate_limit.add_headers", false)
	v.SetDefault("rate_limit.auth_prefix", "/api/auth/")
	v.SetDefault("rate_limit.create_path", "/api/listings")

	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.secret_file", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("stats.redis.enabled", false)
	v.SetDefault("stats.redis.addr", "")
	v.SetDefault("stats.redis.password", "")
	v.SetDefault("stats.redis.db", 0)
	v.SetDefault("stats.redis.prefix", "roomlink:ratelimit")
	v.SetDefault("stats.redis.ttl", 24*time.Hour)
	v.SetDefault("stats.redis.bucket", "minute")
	v.SetDefault("stats.redis.track_keys", false)
	v.SetDefault("stats.redis.queue_size", 1024)
	v.SetDefault("stats.redis.record_timeout", time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.max_bytes", int64(10<<20))
	v.SetDefault("listings.auto_approve", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.track_keys", false)
}

// Load lê config.yaml (opcional) de configPath, ./config ou ., e aplica variáveis
// de ambiente por cima (rate_limit.capacity => RATE_LIMIT_CAPACITY).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.RateLimit.Capacity <= 0 {
		errs = append(errs, errors.New("rate_limit.capacity must be > 0"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be > 0"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be > 0"))
	}
	if c.Server.MaxInFlight < 0 {
		errs = append(errs, errors.New("server.max_in_flight must be >= 0"))
	}
	if c.Stats.Redis.Enabled && strings.TrimSpace(c.Stats.Redis.Addr) == "" {
		errs = append(errs, errors.New("stats.redis.addr is required when stats.redis.enabled=true"))
	}
	if c.Stats.Redis.Enabled && c.Stats.Redis.QueueSize <= 0 {
		errs = append(errs, errors.New("stats.redis.queue_size must be > 0"))
	}
	if c.Uploads.MaxBytes <= 0 {
		errs = append(errs, errors.New("uploads.max_bytes must be > 0"))
	}
	return errors.Join(errs...)
}

// ResolveSecret devolve a chave de assinatura dos tokens.
//
// secret_file tem precedência e, se configurado, precisa ser legível. Sem nenhuma
// configuração, gera 32 bytes aleatórios (tokens deixam de valer ao reiniciar).
// generated indica o último caso.
func (c AuthConfig) ResolveSecret() (secret []byte, generated bool, err error) {
	if c.SecretFile != "" {
		b, err := os.ReadFile(c.SecretFile)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read auth.secret_file: %w", err)
		}
		b = []byte(strings.TrimSpace(string(b)))
		if len(b) == 0 {
			return nil, false, fmt.Errorf("auth.secret_file %s is empty", c.SecretFile)
		}
		return b, false, nil
	}
	if c.SecretKey != "" {
		return []byte(c.SecretKey), false, nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, false, fmt.Errorf("failed to generate secret: %w", err)
	}
	return b, true, nil
}
