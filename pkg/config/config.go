package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tidewater/agencyhub/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Memory        MemoryConfig        `yaml:"memory"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis cache configuration. Redis is optional; when
// URL is empty the permission store runs uncached.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// AuthConfig holds OIDC authenticator configuration
type AuthConfig struct {
	IssuerURL   string `yaml:"issuer_url"`
	ClientID    string `yaml:"client_id"`
	AgencyClaim string `yaml:"agency_claim"`
}

// MemoryConfig holds memory gateway configuration
type MemoryConfig struct {
	GatewayURL string        `yaml:"gateway_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	SweepSchedule string `yaml:"sweep_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// LoadConfig loads configuration from environment variables, optionally
// overlaid by a YAML file pointed at by AGENCYHUB_CONFIG_FILE.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("AGENCYHUB_HOST", "0.0.0.0"),
			Port:            getEnv("AGENCYHUB_PORT", "8080"),
			ReadTimeout:     getEnvDuration("AGENCYHUB_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("AGENCYHUB_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("AGENCYHUB_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("AGENCYHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("AGENCYHUB_POSTGRES_URL", ""),
			MaxOpenConns:    getEnvInt("AGENCYHUB_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("AGENCYHUB_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("AGENCYHUB_DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("AGENCYHUB_REDIS_URL", ""),
			CacheTTL: getEnvDuration("AGENCYHUB_REDIS_CACHE_TTL", 30*time.Second),
		},
		Auth: AuthConfig{
			IssuerURL:   getEnv("AGENCYHUB_OIDC_ISSUER", ""),
			ClientID:    getEnv("AGENCYHUB_OIDC_CLIENT_ID", ""),
			AgencyClaim: getEnv("AGENCYHUB_OIDC_AGENCY_CLAIM", "agency_id"),
		},
		Memory: MemoryConfig{
			GatewayURL: getEnv("AGENCYHUB_MEMORY_GATEWAY_URL", ""),
			APIKey:     getEnv("AGENCYHUB_MEMORY_GATEWAY_API_KEY", ""),
			Timeout:    getEnvDuration("AGENCYHUB_MEMORY_TIMEOUT", 10*time.Second),
			CacheTTL:   getEnvDuration("AGENCYHUB_MEMORY_CACHE_TTL", 5*time.Minute),
		},
		Audit: AuditConfig{
			RetentionDays: getEnvInt("AGENCYHUB_AUDIT_RETENTION_DAYS", 90),
			SweepSchedule: getEnv("AGENCYHUB_AUDIT_SWEEP_SCHEDULE", "0 3 * * *"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("AGENCYHUB_LOG_LEVEL", "info"),
			MetricsEnabled: getEnvBool("AGENCYHUB_METRICS_ENABLED", true),
		},
	}

	if path := os.Getenv("AGENCYHUB_CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// overlayFile applies a YAML config file on top of the env-derived config
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be numeric: %s", c.Server.Port)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("db max open connections must be at least 1")
	}
	if c.Audit.RetentionDays < 1 {
		return fmt.Errorf("audit retention must be at least 1 day")
	}
	return nil
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
