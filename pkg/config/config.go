// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Auth, VaacAPI, Extractor, Kafka, Redis, Postgres, etc.).
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
	Inputs    []InputConfig   `yaml:"inputs"`
	Auth      AuthConfig      `yaml:"auth"`
	VaacAPI   VaacAPIConfig   `yaml:"vaacApi"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InputConfig describes one extraction input: a report type plus the
// enrichment options applied to its records. Each input keeps its own
// checkpoint, keyed by ID and report type.
type InputConfig struct {
	ID                   string        `yaml:"id"`
	ReportType           string        `yaml:"reportType"`
	Timezone             string        `yaml:"timezone"`
	LanguageCode         string        `yaml:"languageCode"`
	Lookback             time.Duration `yaml:"lookback"`
	OptionalMeasurements bool          `yaml:"optionalMeasurements"`
}

// AuthConfig holds the OAuth2 resource-owner-password grant parameters for
// the analytics API.
type AuthConfig struct {
	TenantID string `yaml:"tenantId"`
	ClientID string `yaml:"clientId"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Scope    string `yaml:"scope"`
	TokenURL string `yaml:"tokenUrl"`
}

// ResolvedTokenURL returns the configured token endpoint, substituting the
// tenant ID into the default Microsoft identity endpoint when unset.
func (a AuthConfig) ResolvedTokenURL() string {
	if a.TokenURL != "" {
		return a.TokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", a.TenantID)
}

// VaacAPIConfig holds the remote analytics query endpoint parameters.
type VaacAPIConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	UserAgent      string        `yaml:"userAgent"`
	RowLimit       int           `yaml:"rowLimit"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxRetries     int           `yaml:"maxRetries"`
}

// ExtractorConfig controls pipeline scheduling and enrichment parallelism.
type ExtractorConfig struct {
	Interval        time.Duration `yaml:"interval"`
	Parallelism     int           `yaml:"parallelism"`
	SinkTimeout     time.Duration `yaml:"sinkTimeout"`
	RunLockTTL      time.Duration `yaml:"runLockTtl"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// KafkaConfig holds Kafka broker and topic settings for the record sink.
type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	EnrichedRecords string   `yaml:"enrichedRecordsTopic"`
}

// RedisConfig holds Redis connection parameters for the run lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// PostgresConfig holds PostgreSQL connection parameters for the checkpoint
// store.
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
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	seen := make(map[string]struct{}, len(cfg.Inputs))
	for i, in := range cfg.Inputs {
		if in.ID == "" {
			return fmt.Errorf("input %d: id is required", i)
		}
		if in.ReportType != "call_queue" && in.ReportType != "auto_attendant" {
			return fmt.Errorf("input %s: reportType must be call_queue or auto_attendant, got %q", in.ID, in.ReportType)
		}
		key := in.ID + "/" + in.ReportType
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate input %s for report type %s", in.ID, in.ReportType)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			Scope: "https://api.interfaces.records.teams.microsoft.com/.default",
		},
		VaacAPI: VaacAPIConfig{
			BaseURL:        "https://api.interfaces.records.teams.microsoft.com/Teams.VoiceAnalytics/getanalytics",
			UserAgent:      "Power BI Desktop V3.1.8",
			RowLimit:       90000,
			RequestTimeout: 60 * time.Second,
			MaxRetries:     3,
		},
		Extractor: ExtractorConfig{
			Interval:        15 * time.Minute,
			Parallelism:     4,
			SinkTimeout:     30 * time.Second,
			RunLockTTL:      10 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			EnrichedRecords: "call-analytics.enriched",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "callanalytics",
			User:            "callanalytics",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
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

// applyEnvOverrides reads VP_* environment variables and overrides the
// corresponding config fields. Credentials are the usual candidates here so
// they can stay out of the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VP_AUTH_TENANT_ID"); v != "" {
		cfg.Auth.TenantID = v
	}
	if v := os.Getenv("VP_AUTH_CLIENT_ID"); v != "" {
		cfg.Auth.ClientID = v
	}
	if v := os.Getenv("VP_AUTH_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("VP_AUTH_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("VP_VAAC_BASE_URL"); v != "" {
		cfg.VaacAPI.BaseURL = v
	}
	if v := os.Getenv("VP_VAAC_ROW_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.VaacAPI.RowLimit = limit
		}
	}
	if v := os.Getenv("VP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("VP_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.EnrichedRecords = v
	}
	if v := os.Getenv("VP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("VP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("VP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("VP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("VP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("VP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("VP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("VP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("VP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("VP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
