package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 720*time.Hour, cfg.TransferTTL)
	assert.Equal(t, time.Minute, cfg.ExpirySweepInterval)
	assert.Equal(t, 100, cfg.ExpiryBatchSize)
	assert.Equal(t, 5, cfg.CodeAttempts)
	assert.Equal(t, 3, cfg.LockRetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, "1", cfg.CommissionCeilingRatio.String())
	assert.Equal(t, "LY", cfg.HomeCountry)
	assert.False(t, cfg.RequireReceiverCode)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, int32(2), cfg.DBMinConns)
	assert.Equal(t, time.Hour, cfg.DBMaxConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.DBMaxConnIdleTime)
}

func TestLoadPrefixedAliases(t *testing.T) {
	t.Setenv("LEDGER_JWT_SECRET", testSecret)
	t.Setenv("LEDGER_TRANSFER_TTL", "48h")
	t.Setenv("HOME_COUNTRY", "tn")
	t.Setenv("REQUIRE_RECEIVER_CODE", "true")
	t.Setenv("COMMISSION_CEILING_RATIO", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.TransferTTL)
	assert.Equal(t, "TN", cfg.HomeCountry)
	assert.True(t, cfg.RequireReceiverCode)
	assert.Equal(t, "0.5", cfg.CommissionCeilingRatio.String())
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"short secret":   {"JWT_SECRET": "short"},
		"bad duration":   {"JWT_SECRET": testSecret, "TRANSFER_TTL": "soon"},
		"negative ttl":   {"JWT_SECRET": testSecret, "TRANSFER_TTL": "-1h"},
		"bad ratio":      {"JWT_SECRET": testSecret, "COMMISSION_CEILING_RATIO": "abc"},
		"zero ratio":     {"JWT_SECRET": testSecret, "COMMISSION_CEILING_RATIO": "0"},
		"bad country":    {"JWT_SECRET": testSecret, "HOME_COUNTRY": "LBY"},
		"zero pool":      {"JWT_SECRET": testSecret, "DB_MAX_CONNS": "0"},
		"min above max":  {"JWT_SECRET": testSecret, "DB_MAX_CONNS": "4", "DB_MIN_CONNS": "5"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
