package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultProfileCacheTTL bounds how long a cached profile is served
const DefaultProfileCacheTTL = 10 * time.Minute

// CachedProfileStore is a read-through Redis cache in front of a ProfileStore.
// Cache failures are logged and fall through to the backing store.
type CachedProfileStore struct {
	next   ProfileStore
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient parses redisURL and verifies the server is reachable
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewCachedProfileStore wraps next with a Redis cache
func NewCachedProfileStore(next ProfileStore, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProfileStore {
	if ttl <= 0 {
		ttl = DefaultProfileCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProfileStore{next: next, client: client, ttl: ttl, logger: logger}
}

func profileCacheKey(userID uuid.UUID) string {
	return "profile:" + userID.String()
}

// profileVersionKey is bumped on every write so fills that loaded an older row can be dropped
func profileVersionKey(userID uuid.UUID) string {
	return "profile:ver:" + userID.String()
}

// GetProfile serves the cached profile when present, otherwise loads and caches it
func (s *CachedProfileStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	key := profileCacheKey(userID)

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		p := &models.UserProfile{}
		if jsonErr := json.Unmarshal(raw, p); jsonErr == nil {
			return p, nil
		}
		s.logger.Warn("profile_cache_corrupt", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("profile_cache_get_failed", zap.String("key", key), zap.Error(err))
	}

	verKey := profileVersionKey(userID)
	before, verErr := s.client.Get(ctx, verKey).Result()

	p, err := s.next.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	// without a version to compare against the fill could be stale
	if verErr != nil && !errors.Is(verErr, redis.Nil) {
		return p, nil
	}
	if b, err := json.Marshal(p); err == nil {
		s.fill(ctx, key, verKey, before, b)
	}
	return p, nil
}

// fill caches b only if no write bumped the version since before was read
func (s *CachedProfileStore) fill(ctx context.Context, key, verKey, before string, b []byte) {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		now, err := tx.Get(ctx, verKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if now != before {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.ttl)
			return nil
		})
		return err
	}, verKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("profile_cache_fill_skipped", zap.String("key", key))
	default:
		s.logger.Warn("profile_cache_set_failed", zap.String("key", key), zap.Error(err))
	}
}

var errStaleFill = errors.New("profile changed while loading")

// SaveProfile writes through to the backing store and drops the cached copy
func (s *CachedProfileStore) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	if err := s.next.SaveProfile(ctx, profile); err != nil {
		return err
	}
	s.invalidate(ctx, profile.UserID)
	return nil
}

// DeleteProfile deletes from the backing store and drops the cached copy
func (s *CachedProfileStore) DeleteProfile(ctx context.Context, userID uuid.UUID) error {
	if err := s.next.DeleteProfile(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Ping checks if Redis is reachable
func (s *CachedProfileStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// invalidate bumps the version before dropping the key so an in-flight fill cannot restore the old row
func (s *CachedProfileStore) invalidate(ctx context.Context, userID uuid.UUID) {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, profileVersionKey(userID))
		pipe.Del(ctx, profileCacheKey(userID))
		return nil
	})
	if err != nil {
		s.logger.Warn("profile_cache_invalidate_failed", zap.String("user_hash", ai.HashUserID(userID.String())), zap.Error(err))
	}
}
