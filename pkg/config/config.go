// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, RPC, Postgres, Kafka, Redis, Matcher, Bench, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	RPC      RPCConfig      `yaml:"rpc"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Bench    BenchConfig    `yaml:"bench"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	// RateLimit caps requests per client per RateWindow. Zero disables it.
	RateLimit       int           `yaml:"rateLimit"`
	RateWindow      time.Duration `yaml:"rateWindow"`
}

// RPCConfig holds the JSON-over-TCP RPC listener settings.
type RPCConfig struct {
	Enabled bool          `yaml:"enabled"`
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Subscriptions   string `yaml:"subscriptions"`
	Events          string `yaml:"events"`
	Notifications   string `yaml:"notifications"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// MatcherConfig selects the matching algorithm for the broker and carries
// every construction parameter of the matcher variants.
type MatcherConfig struct {
	Algorithm       string        `yaml:"algorithm"`
	Shards          int           `yaml:"shards"`
	Subscribers     int           `yaml:"subscribers"`
	TotalAttributes int           `yaml:"totalAttributes"`
	SubPredicates   int           `yaml:"subPredicates"`
	ValueDomain     int           `yaml:"valueDomain"`
	Width           float64       `yaml:"width"`
	MaxBuckets      int           `yaml:"maxBuckets"`
	Cells           int           `yaml:"cells"`
	SplitThreshold  int           `yaml:"splitThreshold"`
	GrowthFactor    float64       `yaml:"growthFactor"`
	Alpha           float64       `yaml:"alpha"`
	MatchTimeout    time.Duration `yaml:"matchTimeout"`
}

// Params converts the section into matcher construction parameters.
// Subscribers stays global because MAEMA bounds subscription ids by it on
// every shard.
func (m MatcherConfig) Params() (matching.Params, error) {
	algo, err := matching.ParseAlgorithm(m.Algorithm)
	if err != nil {
		return matching.Params{}, err
	}
	if m.Shards <= 0 {
		return matching.Params{}, apperrors.Configf("matcher: shards must be positive, got %d", m.Shards)
	}
	return matching.Params{
		Algorithm:       algo,
		Subscribers:     m.Subscribers,
		TotalAttributes: m.TotalAttributes,
		SubPredicates:   m.SubPredicates,
		ValueDomain:     m.ValueDomain,
		Width:           m.Width,
		MaxBuckets:      m.MaxBuckets,
		Cells:           m.Cells,
		SplitThreshold:  m.SplitThreshold,
		GrowthFactor:    m.GrowthFactor,
		Alpha:           m.Alpha,
	}, nil
}

// BenchConfig controls where benchmark reports go.
type BenchConfig struct {
	OutputDir    string `yaml:"outputDir"`
	PostgresSink bool   `yaml:"postgresSink"`
	Preset       string `yaml:"preset"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls distributed tracing (sample rate, endpoint).
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the sections every binary depends on.
func (c *Config) Validate() error {
	if _, err := c.Matcher.Params(); err != nil {
		return fmt.Errorf("matcher config: %w", err)
	}
	if c.Server.Port <= 0 {
		return apperrors.Configf("server port must be positive, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 || (c.Server.RateLimit > 0 && c.Server.RateWindow <= 0) {
		return apperrors.Configf("server rate limit %d needs a positive window, got %s", c.Server.RateLimit, c.Server.RateWindow)
	}
	if c.RPC.Enabled && c.RPC.Addr == "" {
		return apperrors.Configf("rpc enabled without an address")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  5 * time.Second,
			RateWindow:      time.Minute,
		},
		RPC: RPCConfig{
			Enabled: true,
			Addr:    ":9100",
			Timeout: 5 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "eventmatching",
			User:            "eventmatching",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "eventmatching-broker",
			Topics: KafkaTopics{
				Subscriptions:   "subscriptions",
				Events:          "events",
				Notifications:   "match-notifications",
				AnalyticsEvents: "match-analytics",
			},
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 30 * time.Second,
		},
		Matcher: MatcherConfig{
			Algorithm:       string(matching.AlgorithmGemTree),
			Shards:          4,
			Subscribers:     100000,
			TotalAttributes: 20,
			SubPredicates:   5,
			ValueDomain:     1000,
			Width:           0.5,
			MaxBuckets:      20,
			Cells:           10,
			SplitThreshold:  10,
			GrowthFactor:    1.25,
			Alpha:           0.5,
			MatchTimeout:    2 * time.Second,
		},
		Bench: BenchConfig{
			OutputDir: "results",
			Preset:    "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// applyEnvOverrides reads EM_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	envInt("EM_SERVER_PORT", &cfg.Server.Port)
	envInt("EM_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	envBool("EM_RPC_ENABLED", &cfg.RPC.Enabled)
	envString("EM_RPC_ADDR", &cfg.RPC.Addr)

	envString("EM_POSTGRES_HOST", &cfg.Postgres.Host)
	envInt("EM_POSTGRES_PORT", &cfg.Postgres.Port)
	envString("EM_POSTGRES_DATABASE", &cfg.Postgres.Database)
	envString("EM_POSTGRES_USER", &cfg.Postgres.User)
	envString("EM_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	envString("EM_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	if v := os.Getenv("EM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	envString("EM_KAFKA_CONSUMER_GROUP", &cfg.Kafka.ConsumerGroup)

	envBool("EM_REDIS_ENABLED", &cfg.Redis.Enabled)
	envString("EM_REDIS_ADDR", &cfg.Redis.Addr)
	envString("EM_REDIS_PASSWORD", &cfg.Redis.Password)

	envString("EM_MATCHER_ALGORITHM", &cfg.Matcher.Algorithm)
	envInt("EM_MATCHER_SHARDS", &cfg.Matcher.Shards)
	envInt("EM_MATCHER_SUBSCRIBERS", &cfg.Matcher.Subscribers)
	envInt("EM_MATCHER_TOTAL_ATTRIBUTES", &cfg.Matcher.TotalAttributes)
	envInt("EM_MATCHER_VALUE_DOMAIN", &cfg.Matcher.ValueDomain)
	envFloat("EM_MATCHER_WIDTH", &cfg.Matcher.Width)

	envString("EM_BENCH_OUTPUT_DIR", &cfg.Bench.OutputDir)
	envBool("EM_BENCH_POSTGRES_SINK", &cfg.Bench.PostgresSink)

	envString("EM_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("EM_LOGGING_FORMAT", &cfg.Logging.Format)
}
