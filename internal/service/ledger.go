package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/models"
	"github.com/Feruzbek007777/Optimum/internal/monitoring"
)

// UserStore is the durable ledger store. Implementations must make each
// method atomic per user: concurrent calls for the same user serialize,
// different users do not contend.
type UserStore interface {
	AddPoints(ctx context.Context, userID int64, delta float64) (float64, error)
	UpdateProfile(ctx context.Context, userID int64, username, fullName string) error
	GetPoints(ctx context.Context, userID int64) (float64, error)
	ClaimBonus(ctx context.Context, userID int64, amount float64, cooldown time.Duration) (granted bool, remaining time.Duration, newBalance float64, err error)
	CreditReferrer(ctx context.Context, referrerID int64, bonus float64) (float64, error)
	GetAccount(ctx context.Context, userID int64) (*models.UserAccount, error)
	FindByUsername(ctx context.Context, username string) (*models.UserAccount, error)
	TopByBalance(ctx context.Context, limit int) ([]models.UserAccount, error)
}

// BalanceBoard receives balance updates for the leaderboard mirror. May be
// nil; mirroring is best-effort and never blocks a ledger write.
type BalanceBoard interface {
	SetBalance(ctx context.Context, userID int64, balance float64) error
}

// BonusResult is the outcome of a bonus claim.
type BonusResult struct {
	Granted    bool          `json:"granted"`
	Amount     float64       `json:"amount"`
	Remaining  time.Duration `json:"-"`
	NewBalance float64       `json:"newBalance"`
}

// PointsLedger owns every balance mutation. All other services funnel their
// point changes through it.
type PointsLedger struct {
	users  UserStore
	board  BalanceBoard
	amount float64
	cooldown time.Duration
	log    *zap.Logger
}

// NewPointsLedger creates the ledger. bonusAmount and bonusCooldown drive
// ClaimBonus.
func NewPointsLedger(users UserStore, board BalanceBoard, bonusAmount float64, bonusCooldown time.Duration, log *zap.Logger) *PointsLedger {
	return &PointsLedger{
		users:    users,
		board:    board,
		amount:   bonusAmount,
		cooldown: bonusCooldown,
		log:      log,
	}
}

// AddPoints applies the delta atomically and returns the new balance.
func (l *PointsLedger) AddPoints(ctx context.Context, userID int64, delta float64) (float64, error) {
	balance, err := l.users.AddPoints(ctx, userID, delta)
	if err != nil {
		return 0, err
	}
	l.mirrorBalance(userID, balance)
	return balance, nil
}

// GetPoints returns the balance, 0 for unknown users.
func (l *PointsLedger) GetPoints(ctx context.Context, userID int64) (float64, error) {
	return l.users.GetPoints(ctx, userID)
}

// ClaimBonus grants the periodic bonus if the cooldown has elapsed;
// otherwise it reports the remaining wait and leaves state untouched.
func (l *PointsLedger) ClaimBonus(ctx context.Context, userID int64) (BonusResult, error) {
	granted, remaining, balance, err := l.users.ClaimBonus(ctx, userID, l.amount, l.cooldown)
	if err != nil {
		return BonusResult{}, err
	}
	monitoring.BonusClaimsTotal.WithLabelValues(strconv.FormatBool(granted)).Inc()
	if !granted {
		return BonusResult{Granted: false, Remaining: remaining, NewBalance: balance}, nil
	}
	l.mirrorBalance(userID, balance)
	return BonusResult{Granted: true, Amount: l.amount, NewBalance: balance}, nil
}

// AdjustByUsername adds (or deducts, negative delta) points for a user found
// by username. Admin tooling path.
func (l *PointsLedger) AdjustByUsername(ctx context.Context, username string, delta float64) (*models.UserAccount, float64, error) {
	acc, err := l.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, 0, err
	}
	balance, err := l.AddPoints(ctx, acc.UserID, delta)
	if err != nil {
		return nil, 0, err
	}
	return acc, balance, nil
}

// TouchProfile stores the username and full name seen on the latest
// interaction. Called by the delivery layer on every /start.
func (l *PointsLedger) TouchProfile(ctx context.Context, userID int64, username, fullName string) error {
	return l.users.UpdateProfile(ctx, userID, username, fullName)
}

// Account returns the full account, substituting an empty account for users
// who have never interacted.
func (l *PointsLedger) Account(ctx context.Context, userID int64) (*models.UserAccount, error) {
	acc, err := l.users.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return &models.UserAccount{UserID: userID}, nil
	}
	return acc, nil
}

// mirrorBalance pushes the new balance into the leaderboard ZSet without
// blocking the caller (same async pattern as answer processing).
func (l *PointsLedger) mirrorBalance(userID int64, balance float64) {
	if l.board == nil {
		return
	}
	go func() {
		if err := l.board.SetBalance(context.Background(), userID, balance); err != nil {
			l.log.Warn("leaderboard mirror failed",
				zap.Int64("userId", userID), zap.Error(err))
		}
	}()
}
