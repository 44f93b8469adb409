package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Feruzbek007777/Optimum/internal/models"
)

// UserRepository owns the durable per-user ledger rows.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(models.ErrStorage, err))
}

// ensureUser creates the row lazily on first interaction (no-op if present).
func ensureUser(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, `INSERT IGNORE INTO users (user_id) VALUES (?)`, userID)
	return err
}

// AddPoints applies balance += delta as one transaction and returns the new
// balance. Delta may be negative; no lower bound is enforced. The
// read-modify-write happens entirely inside the transaction, so concurrent
// calls for the same user serialize on the row while different users never
// block each other.
func (r *UserRepository) AddPoints(ctx context.Context, userID int64, delta float64) (float64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("add points: begin", err)
	}
	defer tx.Rollback()

	if err := ensureUser(ctx, tx, userID); err != nil {
		return 0, storageErr("add points: ensure user", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + ? WHERE user_id = ?`, delta, userID); err != nil {
		return 0, storageErr("add points: update", err)
	}

	var balance float64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE user_id = ?`, userID).Scan(&balance); err != nil {
		return 0, storageErr("add points: read back", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("add points: commit", err)
	}
	return balance, nil
}

// GetPoints returns the user's balance, 0 for users without a row.
func (r *UserRepository) GetPoints(ctx context.Context, userID int64) (float64, error) {
	var balance float64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE user_id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("get points", err)
	}
	return balance, nil
}

// ClaimBonus checks the cooldown and grants the bonus in a single
// transaction. The row lock taken by FOR UPDATE means two concurrent claims
// cannot both pass the timestamp check; either the claim and balance update
// apply together or neither does.
func (r *UserRepository) ClaimBonus(ctx context.Context, userID int64, amount float64, cooldown time.Duration) (granted bool, remaining time.Duration, newBalance float64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, 0, storageErr("claim bonus: begin", err)
	}
	defer tx.Rollback()

	if err := ensureUser(ctx, tx, userID); err != nil {
		return false, 0, 0, storageErr("claim bonus: ensure user", err)
	}

	var balance float64
	var lastClaim sql.NullTime
	if err := tx.QueryRowContext(ctx,
		`SELECT balance, last_bonus_claim_at FROM users WHERE user_id = ? FOR UPDATE`,
		userID).Scan(&balance, &lastClaim); err != nil {
		return false, 0, 0, storageErr("claim bonus: lock row", err)
	}

	now := time.Now()
	if lastClaim.Valid {
		elapsed := now.Sub(lastClaim.Time)
		if elapsed < cooldown {
			// Cooldown still running; leave state untouched.
			return false, cooldown - elapsed, balance, nil
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + ?, last_bonus_claim_at = ? WHERE user_id = ?`,
		amount, now, userID); err != nil {
		return false, 0, 0, storageErr("claim bonus: update", err)
	}
	if err := tx.Commit(); err != nil {
		return false, 0, 0, storageErr("claim bonus: commit", err)
	}
	return true, 0, balance + amount, nil
}

// CreditReferrer adds the referral bonus and bumps referral_count in one
// transaction, returning the referrer's new balance.
func (r *UserRepository) CreditReferrer(ctx context.Context, referrerID int64, bonus float64) (float64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("credit referrer: begin", err)
	}
	defer tx.Rollback()

	if err := ensureUser(ctx, tx, referrerID); err != nil {
		return 0, storageErr("credit referrer: ensure user", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + ?, referral_count = referral_count + 1 WHERE user_id = ?`,
		bonus, referrerID); err != nil {
		return 0, storageErr("credit referrer: update", err)
	}

	var balance float64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE user_id = ?`, referrerID).Scan(&balance); err != nil {
		return 0, storageErr("credit referrer: read back", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("credit referrer: commit", err)
	}
	return balance, nil
}

// GetAccount returns the full account row, or (nil, nil) when the user has
// never interacted.
func (r *UserRepository) GetAccount(ctx context.Context, userID int64) (*models.UserAccount, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT user_id, COALESCE(username, ''), COALESCE(full_name, ''),
		        balance, referral_count, last_bonus_claim_at, joined_at
		 FROM users WHERE user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get account", err)
	}
	return acc, nil
}

// UpdateProfile stores the username and full name seen on the latest
// interaction so leaderboards and referral lists can show names.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, username, fullName string) error {
	username = strings.TrimPrefix(username, "@")
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username, full_name) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE username = VALUES(username), full_name = VALUES(full_name)`,
		userID, nullIfEmpty(username), nullIfEmpty(fullName))
	if err != nil {
		return storageErr("update profile", err)
	}
	return nil
}

// FindByUsername resolves a user by username, case-insensitive, with or
// without a leading @.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.UserAccount, error) {
	username = strings.TrimSpace(strings.TrimPrefix(username, "@"))
	if username == "" {
		return nil, models.ErrUserNotFound
	}
	acc, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT user_id, COALESCE(username, ''), COALESCE(full_name, ''),
		        balance, referral_count, last_bonus_claim_at, joined_at
		 FROM users WHERE LOWER(username) = LOWER(?)`, username))
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("find by username", err)
	}
	return acc, nil
}

// TopByBalance returns the top N users by balance (MySQL fallback for the
// Redis leaderboard).
func (r *UserRepository) TopByBalance(ctx context.Context, limit int) ([]models.UserAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, COALESCE(username, ''), COALESCE(full_name, ''),
		        balance, referral_count, last_bonus_claim_at, joined_at
		 FROM users ORDER BY balance DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storageErr("top by balance", err)
	}
	defer rows.Close()

	var users []models.UserAccount
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, storageErr("top by balance: scan", err)
		}
		users = append(users, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("top by balance: rows", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.UserAccount, error) {
	var acc models.UserAccount
	var lastClaim sql.NullTime
	if err := row.Scan(&acc.UserID, &acc.Username, &acc.FullName,
		&acc.Balance, &acc.ReferralCount, &lastClaim, &acc.JoinedAt); err != nil {
		return nil, err
	}
	if lastClaim.Valid {
		acc.LastBonusClaim = &lastClaim.Time
	}
	return &acc, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
