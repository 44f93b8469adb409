package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/models"
	"github.com/Feruzbek007777/Optimum/internal/monitoring"
)

// ReferralStore is the durable referral state: pending intents plus the
// append-only record table whose referred_id uniqueness makes crediting
// exactly-once.
type ReferralStore interface {
	UpsertPending(ctx context.Context, referrerID, referredID int64) error
	GetPending(ctx context.Context, referredID int64) (*models.PendingReferral, error)
	DeletePending(ctx context.Context, referredID int64) error
	HasRecord(ctx context.Context, referredID int64) (bool, error)
	InsertRecord(ctx context.Context, referredID, referrerID int64) error
	ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]models.ReferredUser, error)
}

// VerifyFunc is the external eligibility predicate (channel membership in
// production). It must be side-effect free and safe to call repeatedly.
type VerifyFunc func(ctx context.Context, userID int64) (bool, error)

// CreditKind enumerates TryCreditReferral outcomes.
type CreditKind string

const (
	Credited           CreditKind = "credited"
	NoPendingEntry     CreditKind = "no_pending_entry"
	AlreadyCredited    CreditKind = "already_credited"
	VerificationFailed CreditKind = "verification_failed"
)

// CreditOutcome reports what TryCreditReferral did. ReferrerID and
// NewReferrerBalance are set only for Credited.
type CreditOutcome struct {
	Kind               CreditKind `json:"outcome"`
	ReferrerID         int64      `json:"referrerId,omitempty"`
	NewReferrerBalance float64    `json:"newReferrerBalance,omitempty"`
}

// ReferralStats is the user-facing referrals view.
type ReferralStats struct {
	Balance       float64               `json:"balance"`
	ReferralCount int                   `json:"referralCount"`
	Recent        []models.ReferredUser `json:"recent"`
}

// ReferralRegistry runs the two-phase referral flow: a pending intent is
// registered on arrival and converted to a confirmed, credited record only
// after external verification succeeds.
type ReferralRegistry struct {
	refs  ReferralStore
	users UserStore
	board BalanceBoard
	bonus float64
	log   *zap.Logger
}

// NewReferralRegistry creates the registry. bonus is credited to the
// referrer per confirmed referral.
func NewReferralRegistry(refs ReferralStore, users UserStore, board BalanceBoard, bonus float64, log *zap.Logger) *ReferralRegistry {
	return &ReferralRegistry{
		refs:  refs,
		users: users,
		board: board,
		bonus: bonus,
		log:   log,
	}
}

// RegisterPendingReferral records the intent to credit referrerID once
// referredID passes verification. Self-referrals and users who were already
// credited once are rejected with false (no-op). A newer pending entry
// overwrites an older one.
func (r *ReferralRegistry) RegisterPendingReferral(ctx context.Context, referrerID, referredID int64) (bool, error) {
	if referrerID == referredID {
		return false, nil
	}
	confirmed, err := r.refs.HasRecord(ctx, referredID)
	if err != nil {
		return false, err
	}
	if confirmed {
		return false, nil
	}
	if err := r.refs.UpsertPending(ctx, referrerID, referredID); err != nil {
		return false, err
	}
	return true, nil
}

// TryCreditReferral resolves the pending referral for referredID. The
// verify callback runs before the atomic section; only the record insert,
// referrer credit and pending delete happen after it. A duplicate-key
// collision on the record insert means a concurrent or earlier call already
// credited this user, which is an expected outcome, not an error.
func (r *ReferralRegistry) TryCreditReferral(ctx context.Context, referredID int64, verify VerifyFunc) (CreditOutcome, error) {
	pending, err := r.refs.GetPending(ctx, referredID)
	if err != nil {
		return CreditOutcome{}, err
	}
	if pending == nil {
		return CreditOutcome{Kind: NoPendingEntry}, nil
	}

	ok, err := verify(ctx, referredID)
	if err != nil {
		// Treat verifier trouble as a retryable failure; the pending
		// entry stays put.
		r.log.Warn("referral verification errored",
			zap.Int64("referredId", referredID), zap.Error(err))
		return CreditOutcome{Kind: VerificationFailed}, nil
	}
	if !ok {
		return CreditOutcome{Kind: VerificationFailed}, nil
	}

	if err := r.refs.InsertRecord(ctx, referredID, pending.ReferrerID); err != nil {
		if errors.Is(err, models.ErrAlreadyReferred) {
			// Lost the race (or a retried call whose write landed).
			// The pending entry is stale now; clean it up.
			if delErr := r.refs.DeletePending(ctx, referredID); delErr != nil {
				r.log.Warn("failed to delete stale pending referral",
					zap.Int64("referredId", referredID), zap.Error(delErr))
			}
			return CreditOutcome{Kind: AlreadyCredited}, nil
		}
		return CreditOutcome{}, err
	}

	balance, err := r.users.CreditReferrer(ctx, pending.ReferrerID, r.bonus)
	if err != nil {
		// Record exists but the credit failed: fail closed and report.
		// The uniqueness key keeps a retry from double-crediting.
		return CreditOutcome{}, err
	}
	if r.board != nil {
		if err := r.board.SetBalance(ctx, pending.ReferrerID, balance); err != nil {
			r.log.Warn("leaderboard mirror failed",
				zap.Int64("userId", pending.ReferrerID), zap.Error(err))
		}
	}

	if err := r.refs.DeletePending(ctx, referredID); err != nil {
		r.log.Warn("failed to delete consumed pending referral",
			zap.Int64("referredId", referredID), zap.Error(err))
	}

	monitoring.ReferralCreditsTotal.Inc()
	r.log.Info("referral credited",
		zap.Int64("referrerId", pending.ReferrerID),
		zap.Int64("referredId", referredID),
		zap.Float64("bonus", r.bonus))

	return CreditOutcome{
		Kind:               Credited,
		ReferrerID:         pending.ReferrerID,
		NewReferrerBalance: balance,
	}, nil
}

// Stats returns the referrals view for a user: balance, confirmed referral
// count and the most recent referred users.
func (r *ReferralRegistry) Stats(ctx context.Context, userID int64) (*ReferralStats, error) {
	acc, err := r.users.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &models.UserAccount{UserID: userID}
	}
	recent, err := r.refs.ListByReferrer(ctx, userID, 10)
	if err != nil {
		return nil, err
	}
	return &ReferralStats{
		Balance:       acc.Balance,
		ReferralCount: acc.ReferralCount,
		Recent:        recent,
	}, nil
}
