package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oleg-smirsky/LaudReader/model"

	"github.com/go-redis/redis/v8"
)

// Redis mirrors of transient state so pollers don't hammer MySQL.
// The database remains the source of truth; losing these keys is harmless.

const (
	playerStateKey  = "player:state"
	playerStateTTL  = 24 * time.Hour
	progressTTL     = 30 * time.Minute
	progressPattern = "generation:%d:progress"
)

// progressKey builds the Redis key for an article's generation progress.
func progressKey(articleID int64) string {
	return fmt.Sprintf(progressPattern, articleID)
}

// SetPlayerState stores the current transient player state.
func SetPlayerState(ctx context.Context, state model.PlayerState) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal player state: %w", err)
	}

	if err := RedisClient.Set(ctx, playerStateKey, data, playerStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to set player state: %w", err)
	}
	return nil
}

// GetPlayerState reads the current transient player state. Returns the
// zero state when nothing has been stored.
func GetPlayerState(ctx context.Context) (model.PlayerState, error) {
	var state model.PlayerState
	if RedisClient == nil {
		return state, fmt.Errorf("Redis client not initialized")
	}

	data, err := RedisClient.Get(ctx, playerStateKey).Bytes()
	if err == redis.Nil {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("failed to get player state: %w", err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("failed to unmarshal player state: %w", err)
	}
	return state, nil
}

// ClearPlayerState removes the stored player state.
func ClearPlayerState(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := RedisClient.Del(ctx, playerStateKey).Err(); err != nil {
		return fmt.Errorf("failed to clear player state: %w", err)
	}
	return nil
}

// SetGenerationProgress caches the progress percent for a generating article.
func SetGenerationProgress(ctx context.Context, articleID int64, percent int) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := RedisClient.Set(ctx, progressKey(articleID), percent, progressTTL).Err(); err != nil {
		return fmt.Errorf("failed to set generation progress: %w", err)
	}
	return nil
}

// GetGenerationProgress reads the cached progress percent. Returns -1
// when no progress is cached for the article.
func GetGenerationProgress(ctx context.Context, articleID int64) (int, error) {
	if RedisClient == nil {
		return -1, fmt.Errorf("Redis client not initialized")
	}

	percent, err := RedisClient.Get(ctx, progressKey(articleID)).Int()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("failed to get generation progress: %w", err)
	}
	return percent, nil
}

// ClearGenerationProgress removes the cached progress for an article.
func ClearGenerationProgress(ctx context.Context, articleID int64) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := RedisClient.Del(ctx, progressKey(articleID)).Err(); err != nil {
		return fmt.Errorf("failed to clear generation progress: %w", err)
	}
	return nil
}
