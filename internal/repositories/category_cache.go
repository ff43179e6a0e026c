package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
)

// CategoryCacheRepository provides cached category lookups using Redis.
// The pull path hits it once per distinct category in a window.
type CategoryCacheRepository struct {
	client *redis.Client
	exp    time.Duration // expiration duration for cached categories
}

// NewCategoryCacheRepository creates a new repository instance with optional TTL
func NewCategoryCacheRepository(client *redis.Client, expiration time.Duration) *CategoryCacheRepository {
	return &CategoryCacheRepository{
		client: client,
		exp:    expiration,
	}
}

// GetByID fetches a cached category by id
func (r *CategoryCacheRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	key := fmt.Sprintf("category:%s", id)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		logger.Log.Infow(
			"key", key,
			"result", val,
			"error", err,
		)
		if err == redis.Nil {
			return nil, fmt.Errorf("category %s not found in cache", id)
		}
		return nil, err
	}

	var category models.Category
	if err := json.Unmarshal([]byte(val), &category); err != nil {
		logger.Log.Infow(
			"key", key,
			"value", val,
			"error", err,
		)
		return nil, err
	}

	logger.Log.Infow(
		"key", key,
		"result", category,
		"error", nil,
	)

	return &category, nil
}

// Set caches a category in Redis with expiration
func (r *CategoryCacheRepository) Set(ctx context.Context, category models.Category) error {
	key := fmt.Sprintf("category:%s", category.ID)

	data, err := json.Marshal(category)
	if err != nil {
		return err
	}

	err = r.client.Set(ctx, key, data, r.exp).Err()

	logger.Log.Infow(
		"key", key,
		"category", category,
		"result", "ok",
		"error", err,
	)

	return err
}
