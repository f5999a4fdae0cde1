// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Collector, API, Postgres, Kafka, Redis, Stats, Server, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Collector CollectorConfig `yaml:"collector"`
	API       APIConfig       `yaml:"api"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Stats     StatsConfig     `yaml:"stats"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Country is one configured country: a short code and the location filter
// text included in the search expression.
type Country struct {
	Code   string `yaml:"code"`
	Filter string `yaml:"filter"`
}

// Topic is one configured topic with per-language filter text. An empty
// filter means the topic places no topical restriction in that language.
type Topic struct {
	ID       string `yaml:"id"`
	FilterEn string `yaml:"filterEn"`
	FilterAr string `yaml:"filterAr"`
}

// Filter returns the topic filter text for the given language code.
func (t Topic) Filter(lang string) string {
	if lang == "ar" {
		return t.FilterAr
	}
	return t.FilterEn
}

// CollectorConfig controls partition expansion and the paging behaviour of
// the ingestion job.
type CollectorConfig struct {
	Countries        []Country     `yaml:"countries"`
	Topics           []Topic       `yaml:"topics"`
	Languages        []string      `yaml:"languages"`
	Workers          int           `yaml:"workers"`
	Cooldown         time.Duration `yaml:"cooldown"`
	PageInterval     time.Duration `yaml:"pageInterval"`
	PageSize         int           `yaml:"pageSize"`
	PartitionTimeout time.Duration `yaml:"partitionTimeout"`
}

// APIConfig holds the upstream search API endpoints, timeout, and credential.
// The bearer token is supplied via environment only, never via YAML.
type APIConfig struct {
	SearchURL   string        `yaml:"searchUrl"`
	CountsURL   string        `yaml:"countsUrl"`
	Timeout     time.Duration `yaml:"timeout"`
	BearerToken string        `yaml:"-"`
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
	IngestEvents string `yaml:"ingestEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// StatsConfig controls the trend statistics service.
type StatsConfig struct {
	BaselineTopic string        `yaml:"baselineTopic"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
	MaxKeywords   int           `yaml:"maxKeywords"`
}

// ServerConfig holds HTTP server settings for the stats service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	ProbeTimeout    time.Duration `yaml:"probeTimeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
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
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Collector: CollectorConfig{
			Languages:    []string{"en", "ar"},
			Workers:      1,
			Cooldown:     15 * time.Minute,
			PageInterval: time.Second,
			PageSize:     100,
		},
		API: APIConfig{
			SearchURL: "https://api.twitter.com/2/tweets/search/recent",
			CountsURL: "https://api.twitter.com/2/tweets/counts/recent",
			Timeout:   30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "socialpulse",
			User:            "socialpulse",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "socialpulse-stats",
			Topics: KafkaTopics{
				IngestEvents: "ingest-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Stats: StatsConfig{
			BaselineTopic: "SDG00",
			CacheTTL:      5 * time.Minute,
			MaxKeywords:   25,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			ProbeTimeout:    5 * time.Second,
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

// applyEnvOverrides reads PW_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PW_API_BEARER_TOKEN"); v != "" {
		cfg.API.BearerToken = v
	}
	if v := os.Getenv("PW_API_SEARCH_URL"); v != "" {
		cfg.API.SearchURL = v
	}
	if v := os.Getenv("PW_API_COUNTS_URL"); v != "" {
		cfg.API.CountsURL = v
	}
	if v := os.Getenv("PW_COLLECTOR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Collector.Workers = n
		}
	}
	if v := os.Getenv("PW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PW_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PW_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PW_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PW_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PW_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PW_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("PW_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PW_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PW_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PW_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PW_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// ValidateCollector checks that the configuration can support a collection
// run. An empty partition set would make the run silently do nothing, so it
// is rejected up front.
func (c *Config) ValidateCollector() error {
	if len(c.Collector.Countries) == 0 {
		return fmt.Errorf("collector config: no countries configured")
	}
	if len(c.Collector.Topics) == 0 {
		return fmt.Errorf("collector config: no topics configured")
	}
	if len(c.Collector.Languages) == 0 {
		return fmt.Errorf("collector config: no languages configured")
	}
	if c.API.BearerToken == "" {
		return fmt.Errorf("api config: bearer token not set (PW_API_BEARER_TOKEN)")
	}
	return nil
}
