package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lmsledger/backend/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrConflict  = errors.New("concurrent modification")
)

// LedgerStore is the persistence boundary of the ledger. Every mutation goes
// through WithinTx; the read methods never lock.
type LedgerStore interface {
	// WithinTx runs fn in one storage transaction. A non-nil error from fn
	// rolls everything back.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error

	GetWallet(ctx context.Context, studentID int64) (*models.Wallet, error)
	CountTransactions(ctx context.Context, studentID int64) (int, error)
	ListTransactions(ctx context.Context, studentID int64, limit int) ([]models.Transaction, error)
	GetWithdrawalRequest(ctx context.Context, id int64) (*models.WithdrawalRequest, error)
	ListWithdrawalRequests(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error)
	ListRewards(ctx context.Context, studentID int64) ([]models.Reward, error)
	ListWalletStudentIDs(ctx context.Context) ([]int64, error)
}

// LedgerTx is the set of statements available inside WithinTx.
type LedgerTx interface {
	// LockWallet takes the row lock on the student's wallet. With create set
	// the wallet is made on first use; ErrNotFound means the student does not
	// exist (or has no wallet and create is false).
	LockWallet(ctx context.Context, studentID int64, create bool) (*models.Wallet, error)
	// UpdateWalletBalance writes the new balance guarded by the wallet version
	// and bumps w.Version on success.
	UpdateWalletBalance(ctx context.Context, w *models.Wallet, balance decimal.Decimal, at time.Time) error
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	SumTransactions(ctx context.Context, studentID int64) (decimal.Decimal, error)

	InsertWithdrawalRequest(ctx context.Context, r *models.WithdrawalRequest) error
	LockWithdrawalRequest(ctx context.Context, id int64) (*models.WithdrawalRequest, error)
	UpdateWithdrawalRequest(ctx context.Context, r *models.WithdrawalRequest) error

	// InsertReward returns ErrDuplicate when the (student, source kind,
	// source id) key already has a reward.
	InsertReward(ctx context.Context, r *models.Reward) error
}
