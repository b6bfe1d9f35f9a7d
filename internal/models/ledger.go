package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the sign of a ledger posting
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// TransactionKind says what produced a posting
type TransactionKind string

const (
	KindAssessmentReward TransactionKind = "assessment_reward"
	KindQuizBonus        TransactionKind = "quiz_bonus"
	KindWithdrawal       TransactionKind = "withdrawal"
	KindAdjustment       TransactionKind = "adjustment"
	KindManual           TransactionKind = "manual"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case KindAssessmentReward, KindQuizBonus, KindWithdrawal, KindAdjustment, KindManual:
		return true
	}
	return false
}

// Wallet is the cached balance of one student. The balance always equals the
// signed sum of the student's transactions.
type Wallet struct {
	ID        int64           `json:"id" db:"id"`
	StudentID int64           `json:"student_id" db:"student_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Version   int             `json:"version" db:"version"` // bumped on every balance write
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Transaction is an immutable ledger row
type Transaction struct {
	ID              int64           `json:"id" db:"id"`
	WalletID        int64           `json:"wallet_id" db:"wallet_id"`
	StudentID       int64           `json:"student_id" db:"student_id"`
	ReferenceNumber string          `json:"reference_number" db:"reference_number"`
	Direction       Direction       `json:"direction" db:"direction"`
	Kind            TransactionKind `json:"kind" db:"kind"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter    decimal.Decimal `json:"balance_after" db:"balance_after"`
	Description     string          `json:"description" db:"description"`
	ActorID         *int64          `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Signed returns the amount with the sign of its direction.
func (t Transaction) Signed() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// WalletSummary is the read view of a wallet. A student without a wallet
// gets a zero balance.
type WalletSummary struct {
	StudentID        int64           `json:"student_id"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionCount int             `json:"transaction_count"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

// Reconciliation compares the cached balance with the transaction log.
type Reconciliation struct {
	StudentID     int64           `json:"student_id"`
	CachedBalance decimal.Decimal `json:"cached_balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Consistent    bool            `json:"consistent"`
	CheckedAt     time.Time       `json:"checked_at"`
}
