package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0600))
	return configFile
}

func TestLoadScannerConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *ScannerConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
database:
  host: localhost
  port: 5433
  user: testuser
  password: testpass
  dbname: testdb
  sslmode: require
ethereum:
  rpc_urls:
    - "https://rpc-1.example.com"
    - "https://rpc-2.example.com"
  contract_address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
  genesis_block: 2000000
failover:
  max_retries: 5
  initial_retry_delay: "500ms"
  max_retry_delay: "8s"
  min_switch_interval: "1m"
  requests_per_second: 25
scanner:
  batch_size: 250
  interval: "15s"
  record_unauthorized_updates: false
nats:
  url: "nats://localhost:4222"
metrics:
  enabled: false
`,
			validate: func(t *testing.T, cfg *ScannerConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, []string{"https://rpc-1.example.com", "https://rpc-2.example.com"}, cfg.Ethereum.RPCURLs)
				assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", cfg.Ethereum.ContractAddress)
				assert.Equal(t, uint64(2000000), cfg.Ethereum.GenesisBlock)
				assert.Equal(t, 5, cfg.Failover.MaxRetries)
				assert.Equal(t, 500*time.Millisecond, cfg.Failover.InitialRetryDelay)
				assert.Equal(t, 8*time.Second, cfg.Failover.MaxRetryDelay)
				assert.Equal(t, time.Minute, cfg.Failover.MinSwitchInterval)
				assert.Equal(t, 25.0, cfg.Failover.RequestsPerSecond)
				assert.Equal(t, 5, cfg.Failover.Burst)
				assert.Equal(t, uint64(3), cfg.NATS.PublishRetries)
				assert.Equal(t, 200*time.Millisecond, cfg.NATS.RetryInterval)
				assert.Equal(t, uint64(250), cfg.Scanner.BatchSize)
				assert.Equal(t, 15*time.Second, cfg.Scanner.Interval)
				assert.False(t, cfg.Scanner.RecordUnauthorizedUpdates)
				assert.Equal(t, 5, cfg.Scanner.RescanFailedLimit)
				assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
				assert.False(t, cfg.Metrics.Enabled)
				assert.NoError(t, cfg.Validate())
			},
		},
		{
			name: "config with defaults",
			configFile: `
database:
  host: localhost
  dbname: testdb
ethereum:
  rpc_urls: ["https://rpc-1.example.com"]
  contract_address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
`,
			validate: func(t *testing.T, cfg *ScannerConfig) {
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, uint64(1954820), cfg.Ethereum.GenesisBlock)
				assert.Equal(t, 12*time.Second, cfg.Ethereum.BlockHeadTTL)
				assert.Equal(t, 3, cfg.Failover.MaxRetries)
				assert.Equal(t, time.Second, cfg.Failover.InitialRetryDelay)
				assert.Equal(t, 16*time.Second, cfg.Failover.MaxRetryDelay)
				assert.Equal(t, 10*time.Second, cfg.Failover.MinSwitchInterval)
				assert.Equal(t, uint64(1000), cfg.Scanner.BatchSize)
				assert.Equal(t, 4, cfg.Scanner.TimestampConcurrency)
				assert.True(t, cfg.Scanner.RecordUnauthorizedUpdates)
				assert.Equal(t, "GRID_EVENTS", cfg.NATS.StreamName)
				assert.Equal(t, "grid.cells.changed", cfg.NATS.Subject)
				assert.True(t, cfg.Metrics.Enabled)
				assert.Equal(t, 9090, cfg.Metrics.Port)
				assert.NoError(t, cfg.Validate())
			},
		},
		{
			name: "invalid port",
			configFile: `
database:
  host: localhost
  port: invalid
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadScannerConfig(writeConfig(t, tt.configFile), "")

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadScannerConfig_EnvironmentOverride(t *testing.T) {
	t.Setenv("FF_GRID_INDEXER_DATABASE_HOST", "db.internal")
	t.Setenv("FF_GRID_INDEXER_SCANNER_BATCH_SIZE", "50")

	cfg, err := LoadScannerConfig(writeConfig(t, `
database:
  dbname: testdb
`), "")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, uint64(50), cfg.Scanner.BatchSize)
}

func TestScannerConfig_Validate(t *testing.T) {
	valid := func() ScannerConfig {
		return ScannerConfig{
			Database: DatabaseConfig{Host: "localhost", DBName: "grid"},
			Ethereum: EthereumConfig{
				RPCURLs:         []string{"https://rpc.example.com"},
				ContractAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
				GenesisBlock:    1954820,
			},
			Failover: FailoverConfig{MaxRetries: 3, InitialRetryDelay: time.Second, MaxRetryDelay: 10 * time.Second},
			Scanner:  ScannerSettings{BatchSize: 100, Interval: 30 * time.Second},
		}
	}

	tests := []struct {
		name   string
		mutate func(*ScannerConfig)
		errMsg string
	}{
		{name: "valid", mutate: func(*ScannerConfig) {}},
		{name: "no endpoints", mutate: func(c *ScannerConfig) { c.Ethereum.RPCURLs = nil }, errMsg: "rpc_urls is required"},
		{name: "blank endpoint", mutate: func(c *ScannerConfig) { c.Ethereum.RPCURLs = []string{" "} }, errMsg: "rpc_urls[0] is empty"},
		{name: "bad contract", mutate: func(c *ScannerConfig) { c.Ethereum.ContractAddress = "0x1" }, errMsg: "contract_address is invalid"},
		{name: "zero genesis", mutate: func(c *ScannerConfig) { c.Ethereum.GenesisBlock = 0 }, errMsg: "genesis_block"},
		{name: "zero batch", mutate: func(c *ScannerConfig) { c.Scanner.BatchSize = 0 }, errMsg: "batch_size"},
		{name: "zero interval", mutate: func(c *ScannerConfig) { c.Scanner.Interval = 0 }, errMsg: "scanner.interval"},
		{name: "negative rescan limit", mutate: func(c *ScannerConfig) { c.Scanner.RescanFailedLimit = -1 }, errMsg: "rescan_failed_limit"},
		{name: "zero retries", mutate: func(c *ScannerConfig) { c.Failover.MaxRetries = 0 }, errMsg: "max_retries"},
		{name: "delays inverted", mutate: func(c *ScannerConfig) { c.Failover.InitialRetryDelay = time.Minute }, errMsg: "initial_retry_delay"},
		{name: "no database host", mutate: func(c *ScannerConfig) { c.Database.Host = "" }, errMsg: "database.host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "grid", SSLMode: "disable"}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=grid sslmode=disable", cfg.DSN())
}
