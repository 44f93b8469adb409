package repository

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const leaderboardPointsKey = "leaderboard:points"

// LeaderboardEntry is one row of the points leaderboard.
type LeaderboardEntry struct {
	UserID  int64   `json:"userId"`
	Balance float64 `json:"balance"`
	Rank    int64   `json:"rank"`
}

// LeaderboardRepository mirrors point balances into a Redis ZSet so the top
// list and rank queries stay off MySQL.
type LeaderboardRepository struct {
	client *redis.Client
}

// NewLeaderboardRepository creates a new leaderboard repository.
func NewLeaderboardRepository(client *redis.Client) *LeaderboardRepository {
	return &LeaderboardRepository{client: client}
}

// SetBalance stores the user's current balance in the ZSet.
func (r *LeaderboardRepository) SetBalance(ctx context.Context, userID int64, balance float64) error {
	return r.client.ZAdd(ctx, leaderboardPointsKey, redis.Z{
		Score:  balance,
		Member: strconv.FormatInt(userID, 10),
	}).Err()
}

// TopByBalance returns the top N users by balance, highest first.
func (r *LeaderboardRepository) TopByBalance(ctx context.Context, limit int64) ([]LeaderboardEntry, error) {
	results, err := r.client.ZRevRangeWithScores(ctx, leaderboardPointsKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for i, result := range results {
		member, ok := result.Member.(string)
		if !ok {
			continue
		}
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue // stale member, skip
		}
		entries = append(entries, LeaderboardEntry{
			UserID:  userID,
			Balance: result.Score,
			Rank:    int64(i) + 1,
		})
	}
	return entries, nil
}

// Rank returns the user's 1-indexed rank by balance, 0 if not listed.
func (r *LeaderboardRepository) Rank(ctx context.Context, userID int64) (int64, error) {
	rank, err := r.client.ZRevRank(ctx, leaderboardPointsKey, strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}
