package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.Chain.URL)
	assert.Equal(t, "lmdb", cfg.KVStore.Backend)
	assert.Equal(t, 30, cfg.KVStore.CacheSize)
	assert.Equal(t, 5, cfg.Batch.Threshold)
	assert.Equal(t, 5, cfg.Batch.IntervalSec)
	assert.Equal(t, ":8000", cfg.ShipmentFeed.Addr)
}

func TestApplyEnvOverrides(t *testing.T) {
	os.Setenv("CHAIN_URL", "http://chain.example:9545")
	os.Setenv("DB_BACKEND", "postgres")
	os.Setenv("BATCH_THRESHOLD", "9")
	defer func() {
		os.Unsetenv("CHAIN_URL")
		os.Unsetenv("DB_BACKEND")
		os.Unsetenv("BATCH_THRESHOLD")
	}()

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "http://chain.example:9545", cfg.Chain.URL)
	assert.Equal(t, "postgres", cfg.KVStore.Backend)
	assert.Equal(t, 9, cfg.Batch.Threshold)
}
