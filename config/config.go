package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"adaptive-trading-bot/internal/auth"
	"adaptive-trading-bot/internal/bot"
	"adaptive-trading-bot/internal/circuit"
	"adaptive-trading-bot/internal/confluence"
	"adaptive-trading-bot/internal/database"
	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/risk"
	"adaptive-trading-bot/internal/strategy"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when CONFIG_FILE is unset
const DefaultConfigFile = "config.yaml"

type Config struct {
	Server         ServerConfig                 `json:"server" yaml:"server"`
	Logging        logging.Config               `json:"logging" yaml:"logging"`
	Engine         EngineConfig                 `json:"engine" yaml:"engine"`
	Strategy       StrategyConfig               `json:"strategy" yaml:"strategy"`
	CircuitBreaker circuit.CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Storage        StorageConfig                `json:"storage" yaml:"storage"`
	Redis          RedisConfig                  `json:"redis" yaml:"redis"`
	Database       DatabaseConfig               `json:"database" yaml:"database"`
	Auth           auth.Config                  `json:"auth" yaml:"auth"`
	Vault          VaultConfig                  `json:"vault" yaml:"vault"`
	Kafka          events.KafkaConfig           `json:"kafka" yaml:"kafka"`
	Metrics        MetricsConfig                `json:"metrics" yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `json:"port" yaml:"port" default:"8080" validate:"min=1,max=65535"`
	Host            string        `json:"host" yaml:"host" default:"0.0.0.0"`
	AllowedOrigins  []string      `json:"allowed_origins" yaml:"allowed_origins"` // CORS, empty = any
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10s"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EngineConfig holds the paper account and candle window settings
type EngineConfig struct {
	Symbol          string  `json:"symbol" yaml:"symbol" default:"BTCUSDT" validate:"required"`
	InitialBalance  float64 `json:"initial_balance" yaml:"initial_balance" default:"27" validate:"gt=0"`
	Interval        string  `json:"interval" yaml:"interval" default:"1m" validate:"oneof=1m 3m 5m 15m 30m 1h 4h 1d"`
	WarmupCandles   int     `json:"warmup_candles" yaml:"warmup_candles" default:"70" validate:"gte=2"`
	BufferCapacity  int     `json:"buffer_capacity" yaml:"buffer_capacity" default:"2000" validate:"gtefield=WarmupCandles"`
	JournalCapacity int     `json:"journal_capacity" yaml:"journal_capacity" default:"5000" validate:"gt=0"`
	HTFCapacity     int     `json:"htf_capacity" yaml:"htf_capacity" default:"200" validate:"gt=0"`
	HTFBiasPeriod   int     `json:"htf_bias_period" yaml:"htf_bias_period" default:"50" validate:"gt=0"`
	VolatilityGuard bool    `json:"volatility_guard" yaml:"volatility_guard"`
}

// BarSeconds converts the interval to seconds
func (e EngineConfig) BarSeconds() int64 {
	d, err := time.ParseDuration(strings.Replace(e.Interval, "d", "h", 1))
	if err != nil {
		return 60
	}
	if strings.HasSuffix(e.Interval, "d") {
		d *= 24
	}
	return int64(d.Seconds())
}

// StrategyConfig holds indicator periods and gate thresholds
type StrategyConfig struct {
	Periods   strategy.Periods    `json:"periods" yaml:"periods"`
	Evaluator confluence.Config   `json:"evaluator" yaml:"evaluator"`
	DevFlags  confluence.DevFlags `json:"dev_flags" yaml:"dev_flags"`
	Risk      risk.Config         `json:"risk" yaml:"risk"`
	Trailing  risk.TrailingConfig `json:"trailing" yaml:"trailing"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Backend    string `json:"backend" yaml:"backend" default:"memory" validate:"oneof=memory sqlite redis postgres"`
	Namespace  string `json:"namespace" yaml:"namespace" default:"default" validate:"required"`
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path" default:"data/engine.db"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL      string `json:"url" yaml:"url"` // redis://, wins over address
	Address  string `json:"address" yaml:"address" default:"localhost:6379"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db" validate:"gte=0"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"` // wins over the discrete fields
	Host     string `json:"host" yaml:"host" default:"localhost"`
	Port     int    `json:"port" yaml:"port" default:"5432"`
	User     string `json:"user" yaml:"user" default:"trading_bot"`
	Password string `json:"password" yaml:"password"`
	Name     string `json:"name" yaml:"name" default:"trading_bot"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode" default:"disable"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Address    string `json:"address" yaml:"address" default:"http://localhost:8200"`
	Token      string `json:"token" yaml:"token"`
	MountPath  string `json:"mount_path" yaml:"mount_path" default:"secret"`               // KV v2 mount
	SecretPath string `json:"secret_path" yaml:"secret_path" default:"adaptive-trading-bot"` // service secrets path
	TLSEnabled bool   `json:"tls_enabled" yaml:"tls_enabled"`
	CACert     string `json:"ca_cert" yaml:"ca_cert"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" default:"true"`
	Path    string `json:"path" yaml:"path" default:"/metrics"`
}

// DefaultConfig returns a fully defaulted configuration
func DefaultConfig() *Config {
	cfg := &Config{
		Logging: logging.Config{Level: "info", Output: "stdout", Component: "engine", JSONFormat: true},
		Strategy: StrategyConfig{
			Periods:   strategy.DefaultPeriods(),
			Evaluator: confluence.DefaultConfig(),
			Risk:      risk.DefaultConfig(),
			Trailing:  risk.DefaultTrailingConfig(),
		},
		CircuitBreaker: *circuit.DefaultCircuitBreakerConfig(),
		Auth:           auth.DefaultConfig(),
	}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads defaults, then CONFIG_FILE (or config.yaml when present), then
// environment overrides, and validates the result
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	cfg := DefaultConfig()
	if err := loadFromFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" && !c.Vault.Enabled {
		return errors.New("invalid config: auth enabled without a jwt secret")
	}
	return nil
}

// EngineSettings assembles the engine configuration
func (c *Config) EngineSettings() bot.Config {
	return bot.Config{
		Symbol:          c.Engine.Symbol,
		InitialBalance:  c.Engine.InitialBalance,
		BarSeconds:      c.Engine.BarSeconds(),
		WarmupCandles:   c.Engine.WarmupCandles,
		BufferCapacity:  c.Engine.BufferCapacity,
		JournalCapacity: c.Engine.JournalCapacity,
		HTFCapacity:     c.Engine.HTFCapacity,
		HTFBiasPeriod:   c.Engine.HTFBiasPeriod,
		VolatilityGuard: c.Engine.VolatilityGuard,
		Periods:         c.Strategy.Periods,
		Evaluator:       c.Strategy.Evaluator,
		DevFlags:        c.Strategy.DevFlags,
		Risk:            c.Strategy.Risk,
		Trailing:        c.Strategy.Trailing,
		CircuitBreaker:  c.CircuitBreaker,
	}
}

// StorageOptions assembles the store options
func (c *Config) StorageOptions() database.Options {
	return database.Options{
		Backend:    c.Storage.Backend,
		Namespace:  c.Storage.Namespace,
		SQLitePath: c.Storage.SQLitePath,
		RedisURL:   c.Redis.URL,
		RedisAddr:  c.Redis.Address,
		RedisPass:  c.Redis.Password,
		RedisDB:    c.Redis.DB,
		Postgres: database.PostgresConfig{
			URL:      c.Database.DSN,
			Host:     c.Database.Host,
			Port:     c.Database.Port,
			User:     c.Database.User,
			Password: c.Database.Password,
			Database: c.Database.Name,
			SSLMode:  c.Database.SSLMode,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.Server.Port = getEnvIntOrDefault("WEB_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnvOrDefault("WEB_HOST", cfg.Server.Host)
	if origins := os.Getenv("SERVER_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	cfg.Server.ShutdownTimeout = getEnvDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	// Logging config
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	cfg.Logging.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.Logging.JSONFormat)

	// Engine config
	cfg.Engine.Symbol = getEnvOrDefault("ENGINE_SYMBOL", cfg.Engine.Symbol)
	cfg.Engine.InitialBalance = getEnvFloatOrDefault("ENGINE_INITIAL_BALANCE", cfg.Engine.InitialBalance)
	cfg.Engine.Interval = getEnvOrDefault("ENGINE_INTERVAL", cfg.Engine.Interval)
	cfg.Engine.VolatilityGuard = getEnvBoolOrDefault("ENGINE_VOLATILITY_GUARD", cfg.Engine.VolatilityGuard)

	// Strategy config
	cfg.Strategy.Evaluator.HashIncludeHTF = getEnvBoolOrDefault("STRATEGY_HASH_INCLUDE_HTF", cfg.Strategy.Evaluator.HashIncludeHTF)
	cfg.Strategy.Evaluator.FeeGate.Enabled = getEnvBoolOrDefault("STRATEGY_FEE_GATE_ENABLED", cfg.Strategy.Evaluator.FeeGate.Enabled)
	cfg.Strategy.Evaluator.FeeGate.Mode = getEnvOrDefault("STRATEGY_FEE_GATE_MODE", cfg.Strategy.Evaluator.FeeGate.Mode)

	// Circuit breaker config
	cfg.CircuitBreaker.Enabled = getEnvBoolOrDefault("CIRCUIT_BREAKER_ENABLED", cfg.CircuitBreaker.Enabled)
	cfg.CircuitBreaker.MaxConsecutiveLosses = getEnvIntOrDefault("CIRCUIT_MAX_CONSECUTIVE_LOSSES", cfg.CircuitBreaker.MaxConsecutiveLosses)
	cfg.CircuitBreaker.CooldownMinutes = getEnvIntOrDefault("CIRCUIT_COOLDOWN_MINUTES", cfg.CircuitBreaker.CooldownMinutes)
	cfg.CircuitBreaker.MaxDailyLoss = getEnvFloatOrDefault("CIRCUIT_MAX_DAILY_LOSS", cfg.CircuitBreaker.MaxDailyLoss)

	// Storage config
	cfg.Storage.Backend = getEnvOrDefault("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Namespace = getEnvOrDefault("STORAGE_NAMESPACE", cfg.Storage.Namespace)
	cfg.Storage.SQLitePath = getEnvOrDefault("STORAGE_SQLITE_PATH", cfg.Storage.SQLitePath)

	// Redis config
	cfg.Redis.URL = getEnvOrDefault("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)

	// Database config
	cfg.Database.DSN = getEnvOrDefault("DATABASE_URL", cfg.Database.DSN)
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnvOrDefault("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)

	// Auth config
	cfg.Auth.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.Auth.AccessTokenDuration)
	cfg.Auth.AdminUsername = getEnvOrDefault("AUTH_ADMIN_USERNAME", cfg.Auth.AdminUsername)
	cfg.Auth.AdminPassword = getEnvOrDefault("AUTH_ADMIN_PASSWORD", cfg.Auth.AdminPassword)
	cfg.Auth.AdminPasswordHash = getEnvOrDefault("AUTH_ADMIN_PASSWORD_HASH", cfg.Auth.AdminPasswordHash)

	// Vault config
	cfg.Vault.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.Vault.Enabled)
	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", cfg.Vault.Address)
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)
	cfg.Vault.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.Vault.MountPath)
	cfg.Vault.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.Vault.SecretPath)

	// Kafka config
	cfg.Kafka.Enabled = getEnvBoolOrDefault("KAFKA_ENABLED", cfg.Kafka.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	cfg.Kafka.TelemetryTopic = getEnvOrDefault("KAFKA_TELEMETRY_TOPIC", cfg.Kafka.TelemetryTopic)
	cfg.Kafka.CandleTopic = getEnvOrDefault("KAFKA_CANDLE_TOPIC", cfg.Kafka.CandleTopic)

	// Metrics config
	cfg.Metrics.Enabled = getEnvBoolOrDefault("METRICS_ENABLED", cfg.Metrics.Enabled)
}

func loadFromFile(filename string, cfg *Config) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, cfg)
	default:
		err = json.Unmarshal(file, cfg)
	}
	if err != nil {
		return fmt.Errorf("error parsing config file %s: %w", filename, err)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes the defaults as YAML or JSON by extension
func GenerateSampleConfig(filename string) error {
	cfg := DefaultConfig()
	cfg.Auth.JWTSecret = "change-me"
	cfg.Auth.AdminPassword = "change-me"
	cfg.Kafka.Brokers = []string{"localhost:9092"}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
