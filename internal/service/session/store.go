// Package session keeps the review text of each analyzer session so chat
// questions can be answered from the last uploaded file.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kapu/review-dashboard/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "review-dashboard:session:"

// Context is what chat needs from an upload.
type Context struct {
	FileName    string    `json:"file_name"`
	ReviewsText string    `json:"reviews_text"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Store saves and loads session contexts. Load returns nil, nil when the
// session has no context.
type Store interface {
	Save(ctx context.Context, sessionID string, c Context) error
	Load(ctx context.Context, sessionID string) (*Context, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects and pings redis.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewCacheError("failed to connect to Redis", "ping", "", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
	)

	return &RedisStore{client: client, ttl: cfg.TTL, logger: logger}, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, c Context) error {
	key := keyPrefix + sessionID
	data, err := json.Marshal(c)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Error("Session save failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("set failed", "set", key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Context, error) {
	key := keyPrefix + sessionID
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Session load failed", zap.String("key", key), zap.Error(err))
		return nil, errors.NewCacheError("get failed", "get", key, err)
	}

	var c Context
	if err := json.Unmarshal([]byte(value), &c); err != nil {
		return nil, errors.NewCacheError("unmarshal failed", "get", key, err)
	}
	return &c, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	key := keyPrefix + sessionID
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("Session delete failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("delete failed", "del", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return errors.NewCacheError("close failed", "close", "", err)
	}
	return nil
}

type memoryEntry struct {
	ctx     Context
	expires time.Time
}

// MemoryStore is the in-process Store used when redis is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, c Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{ctx: c}
	if s.ttl > 0 {
		entry.expires = s.now().Add(s.ttl)
	}
	s.entries[sessionID] = entry
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Context, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !entry.expires.IsZero() && s.now().After(entry.expires) {
		s.mu.Lock()
		delete(s.entries, sessionID)
		s.mu.Unlock()
		return nil, nil
	}
	c := entry.ctx
	return &c, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
