package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/repository"
)

// TopUser is one leaderboard row, enriched with profile data.
type TopUser struct {
	Rank     int64   `json:"rank"`
	UserID   int64   `json:"userId"`
	Username string  `json:"username,omitempty"`
	FullName string  `json:"fullName,omitempty"`
	Balance  float64 `json:"balance"`
}

// Board is the Redis-backed leaderboard view.
type Board interface {
	TopByBalance(ctx context.Context, limit int64) ([]repository.LeaderboardEntry, error)
	Rank(ctx context.Context, userID int64) (int64, error)
}

// LeaderboardService serves the top-users view: Redis ZSet first, MySQL as
// the fallback when Redis is down or empty.
type LeaderboardService struct {
	users UserStore
	board Board
	log   *zap.Logger
}

// NewLeaderboardService creates the leaderboard service.
func NewLeaderboardService(users UserStore, board Board, log *zap.Logger) *LeaderboardService {
	return &LeaderboardService{users: users, board: board, log: log}
}

// TopUsers returns the top N users by balance.
func (s *LeaderboardService) TopUsers(ctx context.Context, limit int) ([]TopUser, error) {
	if s.board != nil {
		entries, err := s.board.TopByBalance(ctx, int64(limit))
		if err == nil && len(entries) > 0 {
			return s.enrich(ctx, entries), nil
		}
		if err != nil {
			s.log.Warn("leaderboard read from Redis failed, falling back to MySQL", zap.Error(err))
		}
	}

	accounts, err := s.users.TopByBalance(ctx, limit)
	if err != nil {
		return nil, err
	}
	top := make([]TopUser, 0, len(accounts))
	for i, acc := range accounts {
		top = append(top, TopUser{
			Rank:     int64(i) + 1,
			UserID:   acc.UserID,
			Username: acc.Username,
			FullName: acc.FullName,
			Balance:  acc.Balance,
		})
	}
	return top, nil
}

// Rank returns the user's 1-indexed leaderboard position, 0 when unranked.
func (s *LeaderboardService) Rank(ctx context.Context, userID int64) (int64, error) {
	if s.board == nil {
		return 0, nil
	}
	return s.board.Rank(ctx, userID)
}

func (s *LeaderboardService) enrich(ctx context.Context, entries []repository.LeaderboardEntry) []TopUser {
	top := make([]TopUser, 0, len(entries))
	for _, entry := range entries {
		row := TopUser{Rank: entry.Rank, UserID: entry.UserID, Balance: entry.Balance}
		acc, err := s.users.GetAccount(ctx, entry.UserID)
		if err == nil && acc != nil {
			row.Username = acc.Username
			row.FullName = acc.FullName
			row.Balance = acc.Balance
		}
		top = append(top, row)
	}
	return top
}
