package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/tg-groupguard-go/internal/config"
	"github.com/tg-groupguard-go/internal/models"
)

// Backend is a raw group-state store. The whole collection is read and
// written as one document: writers replace everything they read
// (last-write-wins, no optimistic concurrency).
type Backend interface {
	GetAll(ctx context.Context) (map[string]*models.GroupRecord, error)
	SetAll(ctx context.Context, groups map[string]*models.GroupRecord) error
}

// Manager wraps a backend and absorbs its failures: a read failure
// degrades to "no groups configured" and a write failure is a logged
// no-op, so callers always get a well-formed result.
type Manager struct {
	backend Backend
	logger  *logrus.Logger
}

// NewManager creates a storage manager for the configured backend.
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	var backend Backend

	switch cfg.Storage.Type {
	case "redis":
		redisBackend, err := NewRedisBackend(cfg, logger)
		if err != nil {
			return nil, err
		}
		backend = redisBackend
	case "memory":
		backend = NewMemoryBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return &Manager{backend: backend, logger: logger}, nil
}

// GetAll returns every group record, or an empty map when the backend
// has no data or is unreachable.
func (m *Manager) GetAll(ctx context.Context) map[string]*models.GroupRecord {
	groups, err := m.backend.GetAll(ctx)
	if err != nil {
		m.logger.WithError(err).Error("Failed to load group records, treating as empty")
		return map[string]*models.GroupRecord{}
	}
	if groups == nil {
		return map[string]*models.GroupRecord{}
	}
	return groups
}

// SetAll replaces the whole collection. Failures are logged and dropped.
func (m *Manager) SetAll(ctx context.Context, groups map[string]*models.GroupRecord) {
	if err := m.backend.SetAll(ctx, groups); err != nil {
		m.logger.WithError(err).Error("Failed to persist group records")
	}
}

// RedisBackend stores the collection as one JSON document under a
// single key.
type RedisBackend struct {
	client *redis.Client
	key    string
	logger *logrus.Logger
}

func NewRedisBackend(cfg *config.Config, logger *logrus.Logger) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBackend{
		client: client,
		key:    cfg.Storage.Key,
		logger: logger,
	}, nil
}

func (r *RedisBackend) GetAll(ctx context.Context) (map[string]*models.GroupRecord, error) {
	data, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return map[string]*models.GroupRecord{}, nil
	}
	if err != nil {
		return nil, err
	}

	var groups map[string]*models.GroupRecord
	if err := json.Unmarshal([]byte(data), &groups); err != nil {
		return nil, err
	}

	return groups, nil
}

func (r *RedisBackend) SetAll(ctx context.Context, groups map[string]*models.GroupRecord) error {
	data, err := json.Marshal(groups)
	if err != nil {
		return err
	}

	// Records live for the group's lifetime, no expiration.
	return r.client.Set(ctx, r.key, data, 0).Err()
}

// MemoryBackend keeps the collection in an in-process cache. Used for
// development and tests.
type MemoryBackend struct {
	store *cache.Cache
	key   string
}

func NewMemoryBackend(cfg *config.Config) *MemoryBackend {
	return &MemoryBackend{
		store: cache.New(cache.NoExpiration, cfg.Storage.Memory.CleanupInterval),
		key:   cfg.Storage.Key,
	}
}

func (m *MemoryBackend) GetAll(ctx context.Context) (map[string]*models.GroupRecord, error) {
	val, found := m.store.Get(m.key)
	if !found {
		return map[string]*models.GroupRecord{}, nil
	}

	stored := val.(map[string]*models.GroupRecord)

	// Hand out a copy so callers mutate their own snapshot, matching
	// the read-then-write-back contract of the redis backend.
	groups := make(map[string]*models.GroupRecord, len(stored))
	for k, v := range stored {
		rec := *v
		rec.SpamKeywords = append([]string{}, v.SpamKeywords...)
		rec.Violations = make(map[string]int, len(v.Violations))
		for uk, uv := range v.Violations {
			rec.Violations[uk] = uv
		}
		groups[k] = &rec
	}
	return groups, nil
}

func (m *MemoryBackend) SetAll(ctx context.Context, groups map[string]*models.GroupRecord) error {
	m.store.Set(m.key, groups, cache.NoExpiration)
	return nil
}
