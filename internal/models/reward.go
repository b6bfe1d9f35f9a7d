package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind identifies what kind of graded item produced a reward
type SourceKind string

const (
	SourceQuiz       SourceKind = "quiz"
	SourceAssessment SourceKind = "assessment"
)

func (k SourceKind) Valid() bool {
	return k == SourceQuiz || k == SourceAssessment
}

// TransactionKind maps a graded source to the kind of its reward credit.
func (k SourceKind) TransactionKind() TransactionKind {
	if k == SourceQuiz {
		return KindQuizBonus
	}
	return KindAssessmentReward
}

// GradingEvent is a finished grading of one student on one graded item.
type GradingEvent struct {
	StudentID       int64           `json:"student_id" validate:"required,gt=0"`
	SourceKind      SourceKind      `json:"source_kind" validate:"required,oneof=quiz assessment"`
	SourceID        int64           `json:"source_id" validate:"required,gt=0"`
	SourceTitle     string          `json:"source_title" validate:"max=200"`
	ScorePercentage decimal.Decimal `json:"score_percentage" validate:"gte=0,lte=100"`
	// Optional per-item overrides of the configured policy.
	RewardAmount      *decimal.Decimal `json:"reward_amount,omitempty"`
	PassingPercentage *decimal.Decimal `json:"passing_percentage,omitempty"`
	GradedBy          *int64           `json:"-"`
}

// Reward is the achievement row that makes an award idempotent. One row per
// (student, source kind, source id).
type Reward struct {
	ID              int64           `json:"id" db:"id"`
	StudentID       int64           `json:"student_id" db:"student_id"`
	WalletID        int64           `json:"wallet_id" db:"wallet_id"`
	SourceKind      SourceKind      `json:"source_kind" db:"source_kind"`
	SourceID        int64           `json:"source_id" db:"source_id"`
	ScorePercentage decimal.Decimal `json:"score_percentage" db:"score_percentage"`
	Policy          string          `json:"policy" db:"policy"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	TransactionID   int64           `json:"transaction_id" db:"transaction_id"`
	AwardedBy       *int64          `json:"awarded_by,omitempty" db:"awarded_by"`
	AwardedAt       time.Time       `json:"awarded_at" db:"awarded_at"`
}
