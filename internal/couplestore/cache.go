package couplestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"hearth-backend/internal/models"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when the cache holds no couple for the user
var ErrCacheMiss = errors.New("couplestore: cache miss")

// Cache persists the last known couple so a restart resumes from it
type Cache interface {
	Get(ctx context.Context, userID string) (*models.Couple, error)
	Put(ctx context.Context, c *models.Couple) error
}

// RedisCache stores couples as JSON with a per-user index key
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "hearth:"
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

func (r *RedisCache) coupleKey(coupleID string) string {
	return fmt.Sprintf("%scouple:%s", r.keyPrefix, coupleID)
}

func (r *RedisCache) userKey(userID string) string {
	return fmt.Sprintf("%suser:%s:couple", r.keyPrefix, userID)
}

// Get loads the user's couple
func (r *RedisCache) Get(ctx context.Context, userID string) (*models.Couple, error) {
	coupleID, err := r.client.Get(ctx, r.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: failed to get couple id for user %s: %w", userID, err)
	}
	data, err := r.client.Get(ctx, r.coupleKey(coupleID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: failed to get couple %s: %w", coupleID, err)
	}
	var c models.Couple
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("redis: failed to decode couple %s: %w", coupleID, err)
	}
	return &c, nil
}

// Put writes the couple and its member index in one transaction
func (r *RedisCache) Put(ctx context.Context, c *models.Couple) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis: failed to encode couple %s: %w", c.ID, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.coupleKey(c.ID), data, 0)
		for _, member := range c.Members() {
			pipe.Set(ctx, r.userKey(member), c.ID, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to store couple %s: %w", c.ID, err)
	}
	return nil
}

// MemoryCache keeps couples in process, used when Redis is not configured
type MemoryCache struct {
	mu      sync.RWMutex
	couples map[string]*models.Couple
	users   map[string]string
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		couples: make(map[string]*models.Couple),
		users:   make(map[string]string),
	}
}

// Get loads the user's couple
func (m *MemoryCache) Get(_ context.Context, userID string) (*models.Couple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.couples[m.users[userID]]
	if !ok {
		return nil, ErrCacheMiss
	}
	return c.Clone(), nil
}

// Put stores the couple
func (m *MemoryCache) Put(_ context.Context, c *models.Couple) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.couples[c.ID] = c.Clone()
	for _, member := range c.Members() {
		m.users[member] = c.ID
	}
	return nil
}
