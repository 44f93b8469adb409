package models

import "time"

// UserAccount is the durable per-user state: point balance, referral count
// and the bonus cooldown timestamp. Rows are created lazily on first
// interaction and never deleted.
type UserAccount struct {
	UserID         int64      `json:"userId" db:"user_id"`
	Username       string     `json:"username,omitempty" db:"username"`
	FullName       string     `json:"fullName,omitempty" db:"full_name"`
	Balance        float64    `json:"balance" db:"balance"`
	ReferralCount  int        `json:"referralCount" db:"referral_count"`
	LastBonusClaim *time.Time `json:"lastBonusClaim,omitempty" db:"last_bonus_claim_at"`
	JoinedAt       time.Time  `json:"joinedAt" db:"joined_at"`
}

// ReferralRecord is written exactly once per referred user, at credit time.
// ReferredID is unique across the table; that constraint is what makes
// crediting idempotent under retries and double-taps.
type ReferralRecord struct {
	ReferredID int64     `json:"referredId" db:"referred_id"`
	ReferrerID int64     `json:"referrerId" db:"referrer_id"`
	CreditedAt time.Time `json:"creditedAt" db:"credited_at"`
}

// PendingReferral is the unconfirmed half of a referral: it exists from the
// moment a user arrives via a referral link until channel membership is
// verified. At most one per referred user; a later arrival overwrites the
// earlier referrer.
type PendingReferral struct {
	ReferredID int64     `json:"referredId" db:"referred_id"`
	ReferrerID int64     `json:"referrerId" db:"referrer_id"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// ReferredUser is one row of the referral stats view (referrals joined with
// user profiles, newest first).
type ReferredUser struct {
	UserID     int64     `json:"userId"`
	Username   string    `json:"username,omitempty"`
	FullName   string    `json:"fullName,omitempty"`
	CreditedAt time.Time `json:"creditedAt"`
}

// Mode selects which mini-game a session runs.
type Mode string

const (
	// ModeQuiz is the multiple-choice quiz.
	ModeQuiz Mode = "quiz"
	// ModeFastwords is the free-text flashcard drill.
	ModeFastwords Mode = "fastwords"
)

// Difficulty levels recognized by the question pools.
const (
	DifficultyEasy = "easy"
	DifficultyHard = "hard"
)

// PoolItem is one question in normalized form. Quiz items carry Options and
// CorrectIndex; fastwords items carry the accepted Answers instead.
type PoolItem struct {
	Prompt       string   `json:"question"`
	Options      []string `json:"options,omitempty"`
	CorrectIndex int      `json:"correct_index"`
	Answers      []string `json:"answers,omitempty"`
}

// CorrectAnswer returns the canonical answer text for feedback messages.
func (p PoolItem) CorrectAnswer() string {
	if len(p.Options) > 0 {
		if p.CorrectIndex >= 0 && p.CorrectIndex < len(p.Options) {
			return p.Options[p.CorrectIndex]
		}
		return ""
	}
	if len(p.Answers) > 0 {
		return p.Answers[0]
	}
	return ""
}
