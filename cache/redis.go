package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rwa-onchain/config"
)

// redisClient はRedisStoreが使うコマンドの最小集合 (テストでの差し替え用)
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStore は複数インスタンスで共有するRedisキャッシュ
type RedisStore struct {
	client    redisClient
	keyPrefix string
}

// NewRedis はRedisに接続し、疎通確認を行う
func NewRedis(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", cfg.RedisAddr)
	}
	logger.Info("connected to redis cache", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	return newRedisStore(client, cfg.KeyPrefix), nil
}

func newRedisStore(client redisClient, prefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.keyPrefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return errors.Wrapf(s.client.Set(ctx, s.key(key), value, ttl).Err(), "redis set %s", key)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(s.client.Del(ctx, s.key(key)).Err(), "redis del %s", key)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
