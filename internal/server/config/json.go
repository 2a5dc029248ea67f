package config

import (
	"encoding/json"
	"os"

	"github.com/JustWint3r/SecureShare/internal/flagx"
	"github.com/JustWint3r/SecureShare/internal/timex"
)

// JsonConfig is the JSON file shape of Config. Durations use timex.Duration,
// which accepts both "1m" strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	MetricsAddr                 string         `json:"metrics_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`

	MasterKey    string `json:"master_key"`
	KMSKeyID     string `json:"kms_key_id"`
	SecretSource string `json:"secret_source"`

	ObjectStore    string `json:"object_store"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	BadgerPath     string `json:"badger_path"`

	Ledger              string         `json:"ledger"`
	LedgerTable         string         `json:"ledger_table"`
	AWSRegion           string         `json:"aws_region"`
	AWSEndpoint         string         `json:"aws_endpoint"`
	MirrorWorkers       int            `json:"mirror_workers"`
	MirrorMaxAttempts   int            `json:"mirror_max_attempts"`
	MirrorSweepInterval timex.Duration `json:"mirror_sweep_interval"`

	RateLimiter   string         `json:"rate_limiter"`
	RedisAddr     string         `json:"redis_addr"`
	RedisPassword string         `json:"redis_password"`
	RedeemLimit   int            `json:"redeem_limit"`
	RedeemWindow  timex.Duration `json:"redeem_window"`

	Administrators []string `json:"administrators"`

	LogFormat string `json:"log_format"`
	LogLevel  string `json:"log_level"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:            c.EndpointAddrGRPC,
		MetricsAddr:                 c.MetricsAddr,
		DatabaseDSN:                 c.DatabaseDSN,
		SecretKey:                   c.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: c.AccessTokenValidityDuration},
		MasterKey:                   c.MasterKey,
		KMSKeyID:                    c.KMSKeyID,
		SecretSource:                c.SecretSource,
		ObjectStore:                 c.ObjectStore,
		S3RootUser:                  c.S3RootUser,
		S3RootPassword:              c.S3RootPassword,
		S3Bucket:                    c.S3Bucket,
		S3Region:                    c.S3Region,
		S3BaseEndpoint:              c.S3BaseEndpoint,
		BadgerPath:                  c.BadgerPath,
		Ledger:                      c.Ledger,
		LedgerTable:                 c.LedgerTable,
		AWSRegion:                   c.AWSRegion,
		AWSEndpoint:                 c.AWSEndpoint,
		MirrorWorkers:               c.MirrorWorkers,
		MirrorMaxAttempts:           c.MirrorMaxAttempts,
		MirrorSweepInterval:         timex.Duration{Duration: c.MirrorSweepInterval},
		RateLimiter:                 c.RateLimiter,
		RedisAddr:                   c.RedisAddr,
		RedisPassword:               c.RedisPassword,
		RedeemLimit:                 c.RedeemLimit,
		RedeemWindow:                timex.Duration{Duration: c.RedeemWindow},
		Administrators:              c.Administrators,
		LogFormat:                   c.LogFormat,
		LogLevel:                    c.LogLevel,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.MetricsAddr = j.MetricsAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.MasterKey = j.MasterKey
	c.KMSKeyID = j.KMSKeyID
	c.SecretSource = j.SecretSource
	c.ObjectStore = j.ObjectStore
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.BadgerPath = j.BadgerPath
	c.Ledger = j.Ledger
	c.LedgerTable = j.LedgerTable
	c.AWSRegion = j.AWSRegion
	c.AWSEndpoint = j.AWSEndpoint
	c.MirrorWorkers = j.MirrorWorkers
	c.MirrorMaxAttempts = j.MirrorMaxAttempts
	c.MirrorSweepInterval = j.MirrorSweepInterval.Duration
	c.RateLimiter = j.RateLimiter
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedeemLimit = j.RedeemLimit
	c.RedeemWindow = j.RedeemWindow.Duration
	c.Administrators = j.Administrators
	c.LogFormat = j.LogFormat
	c.LogLevel = j.LogLevel
}

// parseJson overlays the JSON file named by -c/-config onto config. Keys
// absent from the file keep their current values. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}
