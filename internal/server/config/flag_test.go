package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-m", "", "-d", "memory", "-s", "secret", "-t", "1",
			"-k", "master", "-kms", "alias/key", "-secrets", "ssm",
			"-o", "s3", "-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			"-badger", "/tmp/badger",
			"-l", "dynamodb", "-ledger-table", "ledger", "-aws-region", "eu-west-1", "-aws-endpoint", "http://localstack:4566",
			"-mirror-workers", "2",
			"-r", "redis", "-redis", "redis:6379", "-redeem-limit", "3", "-redeem-window", "30s",
			"-admins", "root, auditor,",
			"-log-format", "text", "-log-level", "debug",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrGRPC:            "127.0.0.1:9090",
				MetricsAddr:                 "",
				DatabaseDSN:                 "memory",
				SecretKey:                   "secret",
				AccessTokenValidityDuration: 1 * time.Minute,
				MasterKey:                   "master",
				KMSKeyID:                    "alias/key",
				SecretSource:                "ssm",
				ObjectStore:                 "s3",
				S3RootUser:                  "user",
				S3RootPassword:              "password",
				S3Bucket:                    "bucket",
				S3Region:                    "us-west-1",
				S3BaseEndpoint:              "http://endpoint",
				BadgerPath:                  "/tmp/badger",
				Ledger:                      "dynamodb",
				LedgerTable:                 "ledger",
				AWSRegion:                   "eu-west-1",
				AWSEndpoint:                 "http://localstack:4566",
				MirrorWorkers:               2,
				RateLimiter:                 "redis",
				RedisAddr:                   "redis:6379",
				RedeemLimit:                 3,
				RedeemWindow:                30 * time.Second,
				Administrators:              []string{"root", "auditor"},
				LogFormat:                   "text",
				LogLevel:                    "debug",
			}},
		{name: "bad duration", args: []string{"cmd", "-redeem-window", "soon"}, expectPanic: true},
		{name: "bad int", args: []string{"cmd", "-redeem-limit", "many"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
