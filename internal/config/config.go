package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-grid-indexer/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// EthereumConfig holds the chain and contract configuration
type EthereumConfig struct {
	// RPCURLs is the ordered endpoint list, first-priority first
	RPCURLs         []string `mapstructure:"rpc_urls"`
	ContractAddress string   `mapstructure:"contract_address"`
	// GenesisBlock is the block the contract was deployed in; scanning starts there on an empty database
	GenesisBlock         uint64        `mapstructure:"genesis_block"`
	CallTimeout          time.Duration `mapstructure:"call_timeout"`
	BlockHeadTTL         time.Duration `mapstructure:"block_head_ttl"`
	BlockHeadStaleWindow time.Duration `mapstructure:"block_head_stale_window"`
}

// FailoverConfig holds the provider pool retry and rotation settings
type FailoverConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialRetryDelay time.Duration `mapstructure:"initial_retry_delay"`
	MaxRetryDelay     time.Duration `mapstructure:"max_retry_delay"`
	MinSwitchInterval time.Duration `mapstructure:"min_switch_interval"`
	// RequestsPerSecond throttles each endpoint locally; 0 disables throttling
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ScannerSettings holds the scan loop configuration
type ScannerSettings struct {
	// BatchSize is the number of blocks per log query; keep it under the strictest endpoint's range limit
	BatchSize            uint64        `mapstructure:"batch_size"`
	Interval             time.Duration `mapstructure:"interval"`
	TimestampConcurrency int           `mapstructure:"timestamp_concurrency"`
	// RecordUnauthorizedUpdates appends a content record even when the updater is not the current owner
	RecordUnauthorizedUpdates bool `mapstructure:"record_unauthorized_updates"`
	// RescanFailedLimit is how many failed ranges the daemon retries after each pass; 0 disables
	RescanFailedLimit int `mapstructure:"rescan_failed_limit"`
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	Subject        string        `mapstructure:"subject"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	PublishRetries uint64        `mapstructure:"publish_retries"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
}

// MetricsConfig holds the health and metrics server configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// ScannerConfig holds configuration for grid-scanner
type ScannerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Ethereum   EthereumConfig  `mapstructure:"ethereum"`
	Failover   FailoverConfig  `mapstructure:"failover"`
	Scanner    ScannerSettings `mapstructure:"scanner"`
	NATS       NATSConfig      `mapstructure:"nats"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
}

// LoadScannerConfig loads configuration for grid-scanner
func LoadScannerConfig(configFile string, envPath string) (*ScannerConfig, error) {
	v := configureViper("grid-scanner", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("ethereum.genesis_block", 1954820)
	v.SetDefault("ethereum.call_timeout", "30s")
	v.SetDefault("ethereum.block_head_ttl", "12s")
	v.SetDefault("ethereum.block_head_stale_window", "60s")
	v.SetDefault("failover.max_retries", 3)
	v.SetDefault("failover.initial_retry_delay", "1s")
	v.SetDefault("failover.max_retry_delay", "16s")
	v.SetDefault("failover.min_switch_interval", "10s")
	v.SetDefault("failover.requests_per_second", 0)
	v.SetDefault("failover.burst", 5)
	v.SetDefault("scanner.batch_size", 1000)
	v.SetDefault("scanner.interval", "30s")
	v.SetDefault("scanner.timestamp_concurrency", 4)
	v.SetDefault("scanner.record_unauthorized_updates", true)
	v.SetDefault("scanner.rescan_failed_limit", 5)
	v.SetDefault("nats.stream_name", "GRID_EVENTS")
	v.SetDefault("nats.subject", "grid.cells.changed")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connection_name", "grid-scanner")
	v.SetDefault("nats.publish_retries", 3)
	v.SetDefault("nats.retry_interval", "200ms")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.host", "0.0.0.0")
	v.SetDefault("metrics.port", 9090)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config ScannerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate checks the settings the scanner cannot run without
func (c *ScannerConfig) Validate() error {
	if len(c.Ethereum.RPCURLs) == 0 {
		return errors.New("ethereum.rpc_urls is required")
	}
	for i, u := range c.Ethereum.RPCURLs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("ethereum.rpc_urls[%d] is empty", i)
		}
	}
	if !domain.IsValidAddress(c.Ethereum.ContractAddress) {
		return fmt.Errorf("ethereum.contract_address is invalid: %q", c.Ethereum.ContractAddress)
	}
	if c.Ethereum.GenesisBlock == 0 {
		return errors.New("ethereum.genesis_block must be greater than 0")
	}
	if c.Scanner.BatchSize == 0 {
		return errors.New("scanner.batch_size must be greater than 0")
	}
	if c.Scanner.Interval <= 0 {
		return errors.New("scanner.interval must be greater than 0")
	}
	if c.Scanner.RescanFailedLimit < 0 {
		return errors.New("scanner.rescan_failed_limit must not be negative")
	}
	if c.Failover.MaxRetries <= 0 {
		return errors.New("failover.max_retries must be greater than 0")
	}
	if c.Failover.InitialRetryDelay > c.Failover.MaxRetryDelay {
		return errors.New("failover.initial_retry_delay must not exceed failover.max_retry_delay")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/grid-scanner/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("FF_GRID_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Ethereum
		"ethereum.rpc_urls",
		"ethereum.contract_address",
		"ethereum.genesis_block",
		"ethereum.call_timeout",
		"ethereum.block_head_ttl",
		"ethereum.block_head_stale_window",
		// Failover
		"failover.max_retries",
		"failover.initial_retry_delay",
		"failover.max_retry_delay",
		"failover.min_switch_interval",
		"failover.requests_per_second",
		"failover.burst",
		// Scanner
		"scanner.batch_size",
		"scanner.interval",
		"scanner.timestamp_concurrency",
		"scanner.record_unauthorized_updates",
		"scanner.rescan_failed_limit",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.subject",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.publish_retries",
		"nats.retry_interval",
		// Metrics
		"metrics.enabled",
		"metrics.host",
		"metrics.port",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
