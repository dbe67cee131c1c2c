package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Notification NotificationConfig `mapstructure:"notification"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	KurrentDB    KurrentDBConfig    `mapstructure:"kurrentdb"`
	Documents    DocumentsConfig    `mapstructure:"documents"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"env"`
	// RateLimit is the sustained requests per second accepted by the API.
	RateLimit int `mapstructure:"rate_limit"`
	RateBurst int `mapstructure:"rate_burst"`
}

// IsProduction reports whether JWT authentication is enforced.
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
	// Disabled runs the server against the in-memory store.
	Disabled bool `mapstructure:"disabled"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WorkflowConfig bounds the unit of work each operation runs in.
type WorkflowConfig struct {
	// LockTimeout caps how long a transaction waits on a row lock.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	// TxTimeout caps a whole operation.
	TxTimeout time.Duration `mapstructure:"tx_timeout"`
	// PhoneRegion is the default region for guardian phone numbers without a country code.
	PhoneRegion string `mapstructure:"phone_region"`
}

type NotificationConfig struct {
	// Sink is one of log, redis, kafka, kurrentdb.
	Sink          string        `mapstructure:"sink"`
	Workers       int           `mapstructure:"workers"`
	BufferSize    int           `mapstructure:"buffer_size"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	// MaxLen trims the stream approximately to this many entries.
	MaxLen int64 `mapstructure:"max_len"`
}

type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Insecure bool   `mapstructure:"insecure"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// StreamPrefix namespaces workflow streams, e.g. casework-aid_request.
	StreamPrefix string `mapstructure:"stream_prefix"`
}

type DocumentsConfig struct {
	// VerifyURL is the upload collaborator base URL; empty disables remote checks.
	VerifyURL string        `mapstructure:"verify_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

var sinks = map[string]bool{"log": true, "redis": true, "kafka": true, "kurrentdb": true}

// Load reads .env (if present), an optional config.yaml and the environment.
// Environment variables win: db.host is DB_HOST, notification.sink is NOTIFICATION_SINK.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "casework")
	v.SetDefault("db.password", "casework")
	v.SetDefault("db.name", "casework")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 25)
	v.SetDefault("db.disabled", false)

	v.SetDefault("auth.jwt_secret", "dev-secret-change-in-prod")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("workflow.lock_timeout", 3*time.Second)
	v.SetDefault("workflow.tx_timeout", 10*time.Second)
	v.SetDefault("workflow.phone_region", "BO")

	v.SetDefault("notification.sink", "log")
	v.SetDefault("notification.workers", 4)
	v.SetDefault("notification.buffer_size", 1000)
	v.SetDefault("notification.retry_attempts", 3)
	v.SetDefault("notification.retry_delay", 2*time.Second)
	v.SetDefault("notification.timeout", 5*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "casework:notifications")
	v.SetDefault("redis.max_len", 100000)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "casework.notifications")
	v.SetDefault("kafka.client_id", "casework")

	v.SetDefault("kurrentdb.host", "localhost")
	v.SetDefault("kurrentdb.port", 2113)
	v.SetDefault("kurrentdb.insecure", true)
	v.SetDefault("kurrentdb.username", "")
	v.SetDefault("kurrentdb.password", "")
	v.SetDefault("kurrentdb.stream_prefix", "casework")

	v.SetDefault("documents.verify_url", "")
	v.SetDefault("documents.timeout", 3*time.Second)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if !c.Database.Disabled && c.Database.Port <= 0 {
		return fmt.Errorf("db.port out of range: %d", c.Database.Port)
	}
	if !sinks[c.Notification.Sink] {
		return fmt.Errorf("unknown notification sink %q", c.Notification.Sink)
	}
	if c.Notification.Workers <= 0 {
		return fmt.Errorf("notification.workers must be positive")
	}
	if c.Workflow.LockTimeout <= 0 || c.Workflow.TxTimeout <= 0 {
		return fmt.Errorf("workflow timeouts must be positive")
	}
	if c.Server.IsProduction() && c.Auth.JWTSecret == "dev-secret-change-in-prod" {
		return fmt.Errorf("auth.jwt_secret must be set in production")
	}
	return nil
}

// loadEnvFile loads the first .env found walking up to the module root.
func loadEnvFile() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
