package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroupID    string
	// HTTPAddr is the oracled listen address, IndexerHTTPAddr the indexer's.
	HTTPAddr        string
	IndexerHTTPAddr string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Contract host settings, used by oracled.
	ContractAddress   string
	OwnerAddress      string
	CallbackAuthority string
	TaskID            string
	Fee               string
	InitialEscrow     string
	RelayBatchSize    int

	// StateDBPath is the SQLite file holding contract state and the relay
	// cursor. Empty keeps both in memory.
	StateDBPath string

	// Report store settings, used by the indexer. An empty ReportDBPath
	// keeps reports in memory.
	ReportDBPath    string
	ReportCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first if
// present; variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	flushInterval, err := parsePositiveDuration("BATCH_FLUSH_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}
	batchSize, err := parsePositiveInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	relayBatchSize, err := parsePositiveInt("RELAY_BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("REPORT_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         envOrDefault("KAFKA_TOPIC", "weather-oracle-events"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "weather-oracle-indexer"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		IndexerHTTPAddr:    envOrDefault("INDEXER_HTTP_ADDR", ":8081"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		ContractAddress:   os.Getenv("CONTRACT_ADDRESS"),
		OwnerAddress:      os.Getenv("OWNER_ADDRESS"),
		CallbackAuthority: os.Getenv("CALLBACK_AUTHORITY"),
		TaskID:            os.Getenv("TASK_ID"),
		Fee:               envOrDefault("FEE", "0.1"),
		InitialEscrow:     envOrDefault("INITIAL_ESCROW", "0"),
		RelayBatchSize:    relayBatchSize,
		StateDBPath:       os.Getenv("STATE_DB_PATH"),

		ReportDBPath:    os.Getenv("REPORT_DB_PATH"),
		ReportCacheSize: cacheSize,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

// ValidateOracle checks the settings only the contract host needs.
func (c *Config) ValidateOracle() error {
	for _, v := range []struct {
		key, value string
	}{
		{"CONTRACT_ADDRESS", c.ContractAddress},
		{"OWNER_ADDRESS", c.OwnerAddress},
		{"CALLBACK_AUTHORITY", c.CallbackAuthority},
	} {
		if v.value == "" {
			return fmt.Errorf("%s is required", v.key)
		}
		if !common.IsHexAddress(v.value) {
			return fmt.Errorf("invalid %s: %q is not a hex address", v.key, v.value)
		}
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
