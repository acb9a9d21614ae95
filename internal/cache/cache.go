package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Explanation Cache Operations

// explanationKey normalizes the topic so trivially different spellings share an entry
func explanationKey(topic string, level models.ExamLevel) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(topic), " "))
	sum := sha256.Sum256([]byte(string(level) + "|" + normalized))
	return "explain:" + hex.EncodeToString(sum[:])
}

// SetExplanation caches a generated topic explanation
func (c *Cache) SetExplanation(ctx context.Context, topic string, level models.ExamLevel, resp *models.ExplainResponse, ttl time.Duration) error {
	return c.SetWithJSON(ctx, explanationKey(topic, level), resp, ttl)
}

// GetExplanation retrieves a cached topic explanation. A miss returns nil, nil.
func (c *Cache) GetExplanation(ctx context.Context, topic string, level models.ExamLevel) (*models.ExplainResponse, error) {
	var resp models.ExplainResponse
	found, err := c.getJSON(ctx, explanationKey(topic, level), &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get explanation from cache: %w", err)
	}
	metrics.RecordCacheAccess("explanation", found)
	if !found {
		return nil, nil
	}
	return &resp, nil
}

// Rate Limiting Operations

// CheckRateLimit counts a request against a fixed window and reports whether it is allowed
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	rateLimitKey := fmt.Sprintf("ratelimit:%s", key)

	// Increment counter
	count, err := c.client.Incr(ctx, rateLimitKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := c.client.Expire(ctx, rateLimitKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry: %w", err)
		}
	}

	return count <= limit, nil
}

// Locking Operations for Distributed Systems

// AcquireLock attempts to acquire a distributed lock
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.SetNX(ctx, key, "locked", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Cache) ReleaseLock(ctx context.Context, resource string) error {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.Del(ctx, key).Err()
}

// SetWithJSON sets a value with JSON marshaling
func (c *Cache) SetWithJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetWithJSON gets a value with JSON unmarshaling. A miss leaves dest untouched.
func (c *Cache) GetWithJSON(ctx context.Context, key string, dest interface{}) error {
	_, err := c.getJSON(ctx, key, dest)
	return err
}

func (c *Cache) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get value from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return true, nil
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
