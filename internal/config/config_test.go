package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker = "localhost:9092"
	testOwner     = "0x00000000000000000000000000000000000000a0"
	testOperator  = "0x00000000000000000000000000000000000000b0"
	testContract  = "0x00000000000000000000000000000000000000c0"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "weather-oracle-events", cfg.KafkaTopic)
	assert.Equal(t, "weather-oracle-indexer", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":8081", cfg.IndexerHTTPAddr)
	assert.NotEqual(t, cfg.HTTPAddr, cfg.IndexerHTTPAddr, "both services start on one host with defaults")
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, "0.1", cfg.Fee)
	assert.Equal(t, "0", cfg.InitialEscrow)
	assert.Equal(t, 100, cfg.RelayBatchSize)
	assert.Empty(t, cfg.StateDBPath)
	assert.Empty(t, cfg.ReportDBPath)
	assert.Equal(t, 1000, cfg.ReportCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-events")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("INDEXER_HTTP_ADDR", ":9091")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("CONTRACT_ADDRESS", testContract)
	t.Setenv("OWNER_ADDRESS", testOwner)
	t.Setenv("CALLBACK_AUTHORITY", testOperator)
	t.Setenv("TASK_ID", "ca98366cc3314ed5af205319349ad077")
	t.Setenv("FEE", "0.25")
	t.Setenv("INITIAL_ESCROW", "5")
	t.Setenv("RELAY_BATCH_SIZE", "10")
	t.Setenv("STATE_DB_PATH", "/var/lib/weather/state.db")
	t.Setenv("REPORT_DB_PATH", "/var/lib/weather/reports.db")
	t.Setenv("REPORT_CACHE_SIZE", "64")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-events", cfg.KafkaTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, ":9091", cfg.IndexerHTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, testContract, cfg.ContractAddress)
	assert.Equal(t, testOwner, cfg.OwnerAddress)
	assert.Equal(t, testOperator, cfg.CallbackAuthority)
	assert.Equal(t, "ca98366cc3314ed5af205319349ad077", cfg.TaskID)
	assert.Equal(t, "0.25", cfg.Fee)
	assert.Equal(t, "5", cfg.InitialEscrow)
	assert.Equal(t, 10, cfg.RelayBatchSize)
	assert.Equal(t, "/var/lib/weather/state.db", cfg.StateDBPath)
	assert.Equal(t, "/var/lib/weather/reports.db", cfg.ReportDBPath)
	assert.Equal(t, 64, cfg.ReportCacheSize)

	require.NoError(t, cfg.ValidateOracle())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"BATCH_FLUSH_INTERVAL", "0s"},
		{"BATCH_SIZE", "abc"},
		{"BATCH_SIZE", "0"},
		{"RELAY_BATCH_SIZE", "-5"},
		{"REPORT_CACHE_SIZE", "zero"},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestLoad_EmptyBrokerList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("KAFKA_TOPIC=from-dotenv\nHTTP_ADDR=:7070\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("HTTP_ADDR", ":6060")
	t.Cleanup(func() { os.Unsetenv("KAFKA_TOPIC") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.KafkaTopic)
	assert.Equal(t, ":6060", cfg.HTTPAddr, "environment wins over .env")
}

func TestValidateOracle(t *testing.T) {
	valid := Config{ContractAddress: testContract, OwnerAddress: testOwner, CallbackAuthority: testOperator}
	require.NoError(t, valid.ValidateOracle())

	missing := valid
	missing.OwnerAddress = ""
	err := missing.ValidateOracle()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OWNER_ADDRESS")

	bad := valid
	bad.CallbackAuthority = "oracle.near"
	err = bad.ValidateOracle()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLBACK_AUTHORITY")
}
