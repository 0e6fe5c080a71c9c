package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Whaleflow WhaleflowConfig `yaml:"whaleflow"`
	Server    ServerConfig    `yaml:"server"`
	Reader    ReaderConfig    `yaml:"reader"`
	Whales    WhalesConfig    `yaml:"whales"`
	Source    SourceConfig    `yaml:"source"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type WhaleflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

type ReaderConfig struct {
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

// WhalesConfig bounds the leaderboard scan. Cache TTLs are deliberately not
// configurable; see the constants in internal/service.
type WhalesConfig struct {
	MinLeaderboardValue float64       `yaml:"min_leaderboard_value"`
	MaxWhales           int           `yaml:"max_whales"`
	BatchSize           int           `yaml:"batch_size"`
	BatchDelay          time.Duration `yaml:"batch_delay"`
}

type SourceConfig struct {
	Hyperliquid HyperliquidSourceConfig `yaml:"hyperliquid"`
	Binance     BinanceSourceConfig     `yaml:"binance"`
	Bybit       BybitSourceConfig       `yaml:"bybit"`
	Kucoin      KucoinSourceConfig      `yaml:"kucoin"`
	Okx         OkxSourceConfig         `yaml:"okx"`
}

type HyperliquidSourceConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	InfoURL        string               `yaml:"info_url"`
	StatsURL       string               `yaml:"stats_url"`
	WsURL          string               `yaml:"ws_url"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type BinanceSourceConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	URL            string               `yaml:"url"`
	Symbols        []string             `yaml:"symbols"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type BybitSourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type KucoinSourceConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	URL            string               `yaml:"url"`
	Symbols        []string             `yaml:"symbols"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type OkxSourceConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Symbols []string `yaml:"symbols"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// RedisConfig describes the optional second cache tier. When disabled the
// service runs with the in-process cache only.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled          bool          `yaml:"enabled"`
	Bucket           string        `yaml:"bucket"`
	Region           string        `yaml:"region"`
	Endpoint         string        `yaml:"endpoint"`
	PathStyle        bool          `yaml:"path_style"`
	AccessKeyID      string        `yaml:"access_key_id"`
	SecretAccessKey  string        `yaml:"secret_access_key"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	Compression      string        `yaml:"compression"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Region    string        `yaml:"region"`
	Namespace string        `yaml:"namespace"`
	Interval  time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// LoadConfig reads and validates the configuration file at path. Secrets
// (AWS, Redis) may be supplied through environment variables which take
// precedence over the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	if config.Redis.Enabled {
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			config.Redis.Addr = strings.TrimSpace(v)
		}
		if v := os.Getenv("REDIS_PASSWORD"); v != "" {
			config.Redis.Password = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Reader.Timeout <= 0 {
		config.Reader.Timeout = 10 * time.Second
	}
	if config.Reader.RateLimit.RequestsPerSecond <= 0 {
		config.Reader.RateLimit.RequestsPerSecond = 5
	}
	if config.Reader.RateLimit.BurstSize <= 0 {
		config.Reader.RateLimit.BurstSize = 1
	}
	if config.Whales.MinLeaderboardValue <= 0 {
		config.Whales.MinLeaderboardValue = 100_000
	}
	if config.Whales.MaxWhales <= 0 {
		config.Whales.MaxWhales = 50
	}
	if config.Whales.BatchSize <= 0 {
		config.Whales.BatchSize = 5
	}
	if config.Whales.BatchDelay <= 0 {
		config.Whales.BatchDelay = 500 * time.Millisecond
	}
	if config.Redis.KeyPrefix == "" {
		config.Redis.KeyPrefix = "whaleflow"
	}
	if config.Storage.S3.SnapshotInterval <= 0 {
		config.Storage.S3.SnapshotInterval = 15 * time.Minute
	}
	if config.Metrics.CloudWatch.Namespace == "" {
		config.Metrics.CloudWatch.Namespace = "Whaleflow"
	}
	if config.Metrics.CloudWatch.Interval <= 0 {
		config.Metrics.CloudWatch.Interval = time.Minute
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}
}

func validateConfig(config *Config) error {
	if config.Whaleflow.Name == "" {
		return fmt.Errorf("whaleflow.name is required")
	}
	if config.Reader.Timeout > 30*time.Second {
		return fmt.Errorf("reader.timeout must not exceed 30s, got %s", config.Reader.Timeout)
	}
	if config.Redis.Enabled && config.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if config.Storage.S3.Enabled {
		if config.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when s3 is enabled")
		}
		if !s3BucketRegexp.MatchString(config.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket %q is not a valid bucket name", config.Storage.S3.Bucket)
		}
	}
	if config.Metrics.CloudWatch.Enabled && config.Metrics.CloudWatch.Region == "" && os.Getenv("AWS_REGION") == "" {
		return fmt.Errorf("metrics.cloudwatch.region is required when cloudwatch is enabled")
	}
	return nil
}
