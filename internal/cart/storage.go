package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"wanderlust/internal/domain"
)

// MemoryStorage keeps carts in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{carts: map[string][]byte{}}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]domain.CartItem, error) {
	m.mu.RLock()
	raw, ok := m.carts[key]
	m.mu.RUnlock()
	if !ok {
		return []domain.CartItem{}, nil
	}
	return decode(raw)
}

func (m *MemoryStorage) Save(_ context.Context, key string, items []domain.CartItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	m.mu.Lock()
	m.carts[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.carts, key)
	m.mu.Unlock()
	return nil
}

// RedisStorage keeps each cart as a JSON array under cart:<owner>. The TTL
// slides on every save.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStorage{client: client, ttl: ttl}
}

func (r *RedisStorage) Load(ctx context.Context, key string) ([]domain.CartItem, error) {
	raw, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.CartItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decode(raw)
}

func (r *RedisStorage) Save(ctx context.Context, key string, items []domain.CartItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func redisKey(owner string) string {
	return fmt.Sprintf("cart:%s", owner)
}

func decode(raw []byte) ([]domain.CartItem, error) {
	items := []domain.CartItem{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return items, nil
}
