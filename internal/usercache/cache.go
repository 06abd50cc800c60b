// Package usercache keeps registered users in Redis so the per-update
// registration step does not hit the question store.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/tarot-bot/internal/domain"
)

// DefaultTTL bounds how long a cached role may lag behind the store.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "tarot:user:"

type cachedUser struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username,omitempty"`
	FirstName string      `json:"first_name,omitempty"`
	LastName  string      `json:"last_name,omitempty"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// Cache provides Redis-backed caching for registered users.
type Cache struct {
	client redis.UniversalClient
}

// NewCache constructs a user cache backed by the provided Redis client.
func NewCache(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// Get returns the cached user, or nil without error on a miss.
func (c *Cache) Get(ctx context.Context, userID int64) (*domain.User, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached user: %w", err)
	}

	var cu cachedUser
	if err := json.Unmarshal(data, &cu); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	if !cu.Role.Valid() {
		return nil, nil
	}

	return &domain.User{
		ID:        cu.ID,
		Username:  cu.Username,
		FirstName: cu.FirstName,
		LastName:  cu.LastName,
		Role:      cu.Role,
		CreatedAt: cu.CreatedAt,
	}, nil
}

// Set stores the user for ttl.
func (c *Cache) Set(ctx context.Context, user *domain.User, ttl time.Duration) error {
	if c == nil || c.client == nil || user == nil {
		return nil
	}

	payload, err := json.Marshal(cachedUser{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode user for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(user.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set cached user: %w", err)
	}

	return nil
}

// Invalidate removes the cached entry if it exists.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cached user: %w", err)
	}

	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}
