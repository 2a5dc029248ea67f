package server

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/JustWint3r/SecureShare/internal/cryptox"
	"github.com/JustWint3r/SecureShare/internal/server/config"
	"github.com/JustWint3r/SecureShare/internal/server/ledger"
	"github.com/JustWint3r/SecureShare/internal/server/ledger/dynamoledger"
	"github.com/JustWint3r/SecureShare/internal/server/ledger/memledger"
	"github.com/JustWint3r/SecureShare/internal/server/objectstore"
	"github.com/JustWint3r/SecureShare/internal/server/objectstore/badgerstore"
	"github.com/JustWint3r/SecureShare/internal/server/objectstore/memstore"
	"github.com/JustWint3r/SecureShare/internal/server/objectstore/s3store"
	"github.com/JustWint3r/SecureShare/internal/server/ratelimit"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/repomanager"
	"github.com/JustWint3r/SecureShare/internal/server/secret"
)

// backends builds the storage and AWS-facing dependencies selected by the
// config. Anything that holds a connection is registered in closers.
type backends struct {
	cfg     *config.Config
	aws     *aws.Config
	closers []func() error
}

func (b *backends) awsConfig(ctx context.Context) (aws.Config, error) {
	if b.aws != nil {
		return *b.aws, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(b.cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	b.aws = &cfg
	return cfg, nil
}

func (b *backends) endpoint() *string {
	if b.cfg.AWSEndpoint == "" {
		return nil
	}
	return aws.String(b.cfg.AWSEndpoint)
}

func (b *backends) secrets(ctx context.Context) (secret.Resolver, error) {
	switch b.cfg.SecretSource {
	case config.BackendSSM:
		cfg, err := b.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := ssm.NewFromConfig(cfg, func(o *ssm.Options) { o.BaseEndpoint = b.endpoint() })
		return secret.NewSSMResolver(client), nil
	case config.BackendEnv, "":
		return secret.NewEnvResolver(), nil
	}
	return nil, fmt.Errorf("unknown secret source %q", b.cfg.SecretSource)
}

// keyWrapper picks KMS when a key ID is configured, then the local master
// key. masterKey is already resolved.
func (b *backends) keyWrapper(ctx context.Context, masterKey string) (cryptox.KeyWrapper, error) {
	if b.cfg.KMSKeyID != "" {
		cfg, err := b.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := kms.NewFromConfig(cfg, func(o *kms.Options) { o.BaseEndpoint = b.endpoint() })
		return cryptox.NewKMSWrapper(client, b.cfg.KMSKeyID), nil
	}
	if masterKey == "" {
		return nil, nil
	}
	w, err := cryptox.NewLocalWrapper([]byte(masterKey))
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (b *backends) repositories(ctx context.Context) (repomanager.RepositoryManager, error) {
	if b.cfg.UsesMemoryDatabase() {
		return repomanager.NewMemoryRepositoryManager(), nil
	}
	m, err := repomanager.OpenPostgres(ctx, b.cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	b.closers = append(b.closers, m.Close)
	return m, nil
}

func (b *backends) objectStore(ctx context.Context) (objectstore.Store, error) {
	switch b.cfg.ObjectStore {
	case config.BackendS3:
		client, err := s3store.NewClient(ctx, s3store.ClientOptions{
			Region:       b.cfg.S3Region,
			BaseEndpoint: b.cfg.S3BaseEndpoint,
			AccessKey:    b.cfg.S3RootUser,
			SecretKey:    b.cfg.S3RootPassword,
		})
		if err != nil {
			return nil, err
		}
		return s3store.New(client, b.cfg.S3Bucket), nil
	case config.BackendBadger:
		s, err := badgerstore.Open(b.cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, s.Close)
		return s, nil
	case config.BackendMemory:
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown object store %q", b.cfg.ObjectStore)
}

func (b *backends) ledger(ctx context.Context) (ledger.Writer, error) {
	switch b.cfg.Ledger {
	case config.BackendDynamoDB:
		cfg, err := b.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) { o.BaseEndpoint = b.endpoint() })
		return dynamoledger.New(client, b.cfg.LedgerTable), nil
	case config.BackendMemory:
		return memledger.New(), nil
	}
	return nil, fmt.Errorf("unknown ledger %q", b.cfg.Ledger)
}

func (b *backends) limiter() (ratelimit.Limiter, error) {
	switch b.cfg.RateLimiter {
	case config.BackendRedis:
		l, client, err := ratelimit.NewRedisLimiter(ratelimit.RedisOptions{
			Addr:     b.cfg.RedisAddr,
			Password: b.cfg.RedisPassword,
			Prefix:   "secureshare:",
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		return l, nil
	case config.BackendMemory:
		return ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{}), nil
	}
	return nil, fmt.Errorf("unknown rate limiter %q", b.cfg.RateLimiter)
}

func (b *backends) close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}
