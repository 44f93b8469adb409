package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "guard:"

// GuardRepository implements short-lived per-user action guards as Redis
// SET NX keys with a TTL. Used to absorb double-clicks before they reach
// the ledger; the atomic contracts downstream do not depend on it.
type GuardRepository struct {
	client *redis.Client
}

// NewGuardRepository creates a new guard repository.
func NewGuardRepository(client *redis.Client) *GuardRepository {
	return &GuardRepository{client: client}
}

// Allow reports whether the user may perform the action now. The first call
// within the window wins; repeats are rejected until the key expires. On a
// Redis error the action is allowed (the guard is advisory only).
func (r *GuardRepository) Allow(ctx context.Context, action string, userID int64, window time.Duration) (bool, error) {
	key := guardKeyPrefix + action + ":" + strconv.FormatInt(userID, 10)
	ok, err := r.client.SetNX(ctx, key, "1", window).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}
