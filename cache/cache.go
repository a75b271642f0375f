// Package cache はIPFSメタデータや価格レートのキャッシュを提供する
package cache

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rwa-onchain/config"
)

// Store はTTL付きのキー・バリューキャッシュ
type Store interface {
	// Get は値を取得する (存在しない・期限切れの場合はfalse)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set は値を保存する (ttl <= 0 の場合は期限なし)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New は設定に応じたStoreを作成する
func New(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (Store, error) {
	if cfg.Backend == "redis" {
		s, err := NewRedis(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := NewMemory(24 * time.Hour)
	if err != nil {
		return nil, err
	}
	logger.Info("using in-memory cache")
	return s, nil
}

// expiryHeader は値の先頭に付ける有効期限 (UnixNano, 0は無期限)
const expiryHeader = 8

// MemoryStore はbigcacheによるプロセス内キャッシュ
// bigcacheのLifeWindowは全体共通なので、エントリごとの期限は値の先頭に埋め込む
// LifeWindowを過ぎるとbigcacheが消してしまうため、期限なしのエントリはpersistentに置く
type MemoryStore struct {
	mu         sync.Mutex
	cache      *bigcache.BigCache
	persistent map[string][]byte
	now        func() time.Time
	closed     bool
}

// NewMemory はbigcacheのストアを作成する。lifeWindowはエントリの最大保持時間
func NewMemory(lifeWindow time.Duration) (*MemoryStore, error) {
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.Shards = 64
	cfg.CleanWindow = time.Minute
	if lifeWindow < cfg.CleanWindow {
		cfg.CleanWindow = lifeWindow
	}
	cfg.Verbose = false
	c, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create bigcache")
	}
	return &MemoryStore{cache: c, persistent: make(map[string][]byte), now: time.Now}, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	v, ok := s.persistent[key]
	s.mu.Unlock()
	if ok {
		return append([]byte(nil), v...), true, nil
	}

	raw, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "cache get %s", key)
	}
	if len(raw) < expiryHeader {
		return nil, false, nil
	}
	expiresAt := int64(binary.BigEndian.Uint64(raw[:expiryHeader]))
	if expiresAt != 0 && s.now().UnixNano() > expiresAt {
		_ = s.cache.Delete(key)
		return nil, false, nil
	}
	value := make([]byte, len(raw)-expiryHeader)
	copy(value, raw[expiryHeader:])
	return value, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		s.mu.Lock()
		s.persistent[key] = append([]byte(nil), value...)
		s.mu.Unlock()
		return s.deleteCached(key)
	}

	s.mu.Lock()
	delete(s.persistent, key)
	s.mu.Unlock()

	expiresAt := s.now().Add(ttl).UnixNano()
	buf := make([]byte, expiryHeader+len(value))
	binary.BigEndian.PutUint64(buf[:expiryHeader], uint64(expiresAt))
	copy(buf[expiryHeader:], value)
	return errors.Wrapf(s.cache.Set(key, buf), "cache set %s", key)
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.persistent, key)
	s.mu.Unlock()
	return s.deleteCached(key)
}

func (s *MemoryStore) deleteCached(key string) error {
	err := s.cache.Delete(key)
	if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return errors.Wrapf(err, "cache delete %s", key)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cache.Close()
}
