package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/JustWint3r/SecureShare/internal/flagx"
)

var knownFlags = []string{
	"-a", "-m", "-d", "-s", "-t", "-k", "-kms", "-secrets",
	"-o", "-u", "-p", "-b", "-g", "-e", "-badger",
	"-l", "-ledger-table", "-aws-region", "-aws-endpoint", "-mirror-workers",
	"-r", "-redis", "-redeem-limit", "-redeem-window",
	"-admins", "-log-format", "-log-level",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string              gRPC bind address (e.g., ":50051")
//	-m string              metrics bind address, "" disables
//	-d string              PostgreSQL DSN or "memory"
//	-s string              JWT HMAC secret key
//	-t int                 access token validity, minutes
//	-k string              master key for local key wrapping
//	-kms string            KMS key ID for key wrapping
//	-secrets string        secret reference resolver: env, ssm
//	-o string              object store: s3, badger, memory
//	-u, -p, -b, -g, -e     S3 user, password, bucket, region, base endpoint
//	-badger string         badger object store directory
//	-l string              audit ledger: dynamodb, memory
//	-ledger-table string   DynamoDB ledger table
//	-aws-region string     region for KMS, SSM and DynamoDB
//	-aws-endpoint string   endpoint override for KMS, SSM and DynamoDB
//	-mirror-workers int    ledger mirror workers
//	-r string              redemption rate limiter: redis, memory
//	-redis string          redis address
//	-redeem-limit int      redemption attempts per actor per window
//	-redeem-window dur     redemption throttle window (e.g., "1m")
//	-admins string         comma-separated administrator actor IDs
//	-log-format string     json, text, logrus
//	-log-level string      debug, info, warn, error
//
// Only the flags listed here are parsed; os.Args is filtered first with
// flagx.FilterArgs so other layers' flags do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port to expose metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.MasterKey, "k", config.MasterKey, "master key")
	fs.StringVar(&config.KMSKeyID, "kms", config.KMSKeyID, "KMS key ID")
	fs.StringVar(&config.SecretSource, "secrets", config.SecretSource, "secret reference resolver")

	fs.StringVar(&config.ObjectStore, "o", config.ObjectStore, "object store backend")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.BadgerPath, "badger", config.BadgerPath, "badger directory")

	fs.StringVar(&config.Ledger, "l", config.Ledger, "audit ledger backend")
	fs.StringVar(&config.LedgerTable, "ledger-table", config.LedgerTable, "ledger table")
	fs.StringVar(&config.AWSRegion, "aws-region", config.AWSRegion, "AWS region")
	fs.StringVar(&config.AWSEndpoint, "aws-endpoint", config.AWSEndpoint, "AWS endpoint override")
	fs.IntVar(&config.MirrorWorkers, "mirror-workers", config.MirrorWorkers, "ledger mirror workers")

	fs.StringVar(&config.RateLimiter, "r", config.RateLimiter, "rate limiter backend")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.IntVar(&config.RedeemLimit, "redeem-limit", config.RedeemLimit, "redemption attempts per window")
	fs.DurationVar(&config.RedeemWindow, "redeem-window", config.RedeemWindow, "redemption window")

	fs.Func("admins", "comma-separated administrator IDs", func(s string) error {
		config.Administrators = splitList(s)
		return nil
	})

	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
