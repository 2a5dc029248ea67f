package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_grpc":             "www.example:9000",
		"database_dsn":                   "memory",
		"secret_key":                     "ssm:/secureshare/jwt-secret",
		"access_token_validity_duration": "5m",
		"kms_key_id":                     "alias/secureshare",
		"object_store":                   "badger",
		"badger_path":                    "/var/lib/secureshare",
		"ledger":                         "dynamodb",
		"ledger_table":                   "audit",
		"mirror_sweep_interval":          "30s",
		"rate_limiter":                   "redis",
		"redis_addr":                     "redis:6379",
		"redeem_limit":                   3,
		"redeem_window":                  float64(2 * time.Minute),
		"administrators":                 []string{"root", "auditor"},
		"log_format":                     "logrus",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "memory", cfg.DatabaseDSN)
		assert.Equal(t, "ssm:/secureshare/jwt-secret", cfg.SecretKey)
		assert.Equal(t, 5*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, "alias/secureshare", cfg.KMSKeyID)
		assert.Equal(t, BackendBadger, cfg.ObjectStore)
		assert.Equal(t, "/var/lib/secureshare", cfg.BadgerPath)
		assert.Equal(t, BackendDynamoDB, cfg.Ledger)
		assert.Equal(t, "audit", cfg.LedgerTable)
		assert.Equal(t, 30*time.Second, cfg.MirrorSweepInterval)
		assert.Equal(t, BackendRedis, cfg.RateLimiter)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, 3, cfg.RedeemLimit)
		assert.Equal(t, 2*time.Minute, cfg.RedeemWindow)
		assert.Equal(t, []string{"root", "auditor"}, cfg.Administrators)
		assert.Equal(t, "logrus", cfg.LogFormat)
	})

	t.Run("absent keys keep their values", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":9090", cfg.MetricsAddr)
		assert.Equal(t, "documents", cfg.S3Bucket)
		assert.Equal(t, 4, cfg.MirrorWorkers)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrGRPC: "defaults:1234",
			DatabaseDSN:      "vault.db",
			SecretKey:        "key",
			RedeemWindow:     3 * time.Minute,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
		assert.Equal(t, "vault.db", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 3*time.Minute, cfg.RedeemWindow)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "absent.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
