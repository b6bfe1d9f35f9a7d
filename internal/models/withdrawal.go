package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

func (s WithdrawalStatus) Valid() bool {
	return s == WithdrawalPending || s == WithdrawalApproved || s == WithdrawalRejected
}

// Terminal reports whether no further transition is allowed.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected
}

// BankDetails is the payout destination a student supplies with a request.
// Stored as jsonb.
type BankDetails struct {
	AccountName   string `json:"account_name" validate:"required,max=100"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=6,max=20"`
	BankName      string `json:"bank_name" validate:"required,max=100"`
	BranchCode    string `json:"branch_code,omitempty" validate:"omitempty,max=20"`
}

func (b BankDetails) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *BankDetails) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b = BankDetails{}
		return nil
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return errors.New("bank details: unsupported source type")
	}
}

type WithdrawalRequest struct {
	ID              int64            `json:"id" db:"id"`
	WalletID        int64            `json:"wallet_id" db:"wallet_id"`
	StudentID       int64            `json:"student_id" db:"student_id"`
	Amount          decimal.Decimal  `json:"amount" db:"amount"`
	BankDetails     BankDetails      `json:"bank_details" db:"bank_details"`
	Status          WithdrawalStatus `json:"status" db:"status"`
	RejectionReason string           `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ProcessedBy     *int64           `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
	TransactionID   *int64           `json:"transaction_id,omitempty" db:"transaction_id"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// WithdrawalFilter narrows a request listing. Zero values mean "any".
type WithdrawalFilter struct {
	StudentID *int64
	Status    WithdrawalStatus
	Limit     int
	Offset    int
}
