package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Ledger.TxTimeout)
	assert.Equal(t, "ledger.audit", cfg.Kafka.Topic)
	assert.False(t, cfg.UsesPostgres())
	assert.False(t, cfg.UsesRedis())
	assert.False(t, cfg.RelayEnabled())
	assert.False(t, cfg.TracingEnabled())
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoadPrefixedGroups(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"LEDGER_SERVER_ADDR":       ":9090",
		"LEDGER_DATABASE_URL":      "postgres://ledger@db/ledger?sslmode=disable",
		"LEDGER_REDIS_URL":         "redis://cache:6379/0",
		"LEDGER_KAFKA_BROKERS":     "k1:9092, k2:9092,,k1:9092",
		"LEDGER_ENGINE_TX_TIMEOUT": "2s",
		"LEDGER_LOG_FORMAT":        "text",
		"LEDGER_OTEL_ENDPOINT":     "http://collector:4318",
		"LEDGER_OTEL_SAMPLE_RATIO": "0.25",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.UsesPostgres())
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.RelayEnabled())
	assert.Equal(t, 2*time.Second, cfg.Ledger.TxTimeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.TracingEnabled())
	assert.Equal(t, 0.25, cfg.Tracing.SampleRatio)
}

func TestBlankBrokersDisableRelay(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"LEDGER_KAFKA_BROKERS": " , "})
	require.NoError(t, err)
	assert.False(t, cfg.RelayEnabled())
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := LoadFrom(map[string]string{"LEDGER_ENGINE_TX_TIMEOUT": "0s"})
	require.Error(t, err)

	_, err = LoadFrom(map[string]string{"LEDGER_SERVER_READ_TIMEOUT": "soon"})
	require.Error(t, err)

	_, err = LoadFrom(map[string]string{"LEDGER_OTEL_SAMPLE_RATIO": "1.5"})
	require.Error(t, err)
}
