package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/Feruzbek007777/Optimum/internal/models"
)

const mysqlErrDuplicateEntry = 1062

// ReferralRepository owns pending referrals and the append-only referral
// record table.
type ReferralRepository struct {
	db *sql.DB
}

// NewReferralRepository creates a new referral repository.
func NewReferralRepository(db *sql.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// UpsertPending records (or overwrites) the pending referrer for a referred
// user. Last writer wins for pending entries; confirmed records are never
// touched here.
func (r *ReferralRepository) UpsertPending(ctx context.Context, referrerID, referredID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_referrals (referred_id, referrer_id) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE referrer_id = VALUES(referrer_id), created_at = CURRENT_TIMESTAMP`,
		referredID, referrerID)
	if err != nil {
		return storageErr("upsert pending referral", err)
	}
	return nil
}

// GetPending returns the pending entry for a referred user, or (nil, nil).
func (r *ReferralRepository) GetPending(ctx context.Context, referredID int64) (*models.PendingReferral, error) {
	var p models.PendingReferral
	err := r.db.QueryRowContext(ctx,
		`SELECT referred_id, referrer_id, created_at FROM pending_referrals WHERE referred_id = ?`,
		referredID).Scan(&p.ReferredID, &p.ReferrerID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get pending referral", err)
	}
	return &p, nil
}

// DeletePending removes the pending entry once it has been consumed.
// Deleting an absent entry is not an error.
func (r *ReferralRepository) DeletePending(ctx context.Context, referredID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_referrals WHERE referred_id = ?`, referredID); err != nil {
		return storageErr("delete pending referral", err)
	}
	return nil
}

// HasRecord reports whether the referred user already has a confirmed
// referral record.
func (r *ReferralRepository) HasRecord(ctx context.Context, referredID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM referrals WHERE referred_id = ?`, referredID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storageErr("has referral record", err)
	}
	return true, nil
}

// InsertRecord writes the confirmed referral record. The primary key on
// referred_id turns a concurrent double-credit into a duplicate-key error,
// reported as models.ErrAlreadyReferred so the loser can treat it as an
// expected outcome.
func (r *ReferralRepository) InsertRecord(ctx context.Context, referredID, referrerID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO referrals (referred_id, referrer_id) VALUES (?, ?)`,
		referredID, referrerID)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			return models.ErrAlreadyReferred
		}
		return storageErr("insert referral record", err)
	}
	return nil
}

// ListByReferrer returns the most recent users credited to a referrer,
// joined with their profiles for display.
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]models.ReferredUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.referred_id, COALESCE(u.username, ''), COALESCE(u.full_name, ''), r.credited_at
		 FROM referrals r
		 LEFT JOIN users u ON u.user_id = r.referred_id
		 WHERE r.referrer_id = ?
		 ORDER BY r.credited_at DESC
		 LIMIT ?`, referrerID, limit)
	if err != nil {
		return nil, storageErr("list referrals", err)
	}
	defer rows.Close()

	var referred []models.ReferredUser
	for rows.Next() {
		var u models.ReferredUser
		if err := rows.Scan(&u.UserID, &u.Username, &u.FullName, &u.CreditedAt); err != nil {
			return nil, storageErr("list referrals: scan", err)
		}
		referred = append(referred, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list referrals: rows", err)
	}
	return referred, nil
}
