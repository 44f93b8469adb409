package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnswersTotal counts accepted quiz answers by difficulty and outcome.
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimum_quiz_answers_total",
			Help: "Total number of scored quiz answers",
		},
		[]string{"difficulty", "outcome"},
	)

	// BonusClaimsTotal counts bonus claim attempts by whether they granted.
	BonusClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimum_bonus_claims_total",
			Help: "Total number of bonus claim attempts",
		},
		[]string{"granted"},
	)

	// ReferralCreditsTotal counts successfully credited referrals.
	ReferralCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "optimum_referral_credits_total",
			Help: "Total number of credited referrals",
		},
	)
)
