package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/lmsledger/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

const walletColumns = `id, student_id, balance, version, created_at, updated_at`

const transactionColumns = `id, wallet_id, student_id, reference_number, direction, kind, amount, balance_after, description, actor_id, created_at`

const withdrawalColumns = `id, wallet_id, student_id, amount, bank_details, status, rejection_reason, processed_by, processed_at, transaction_id, created_at`

const rewardColumns = `id, student_id, wallet_id, source_kind, source_id, score_percentage, policy, amount, transaction_id, awarded_by, awarded_at`

// PostgresStore keeps the ledger in Postgres and serialises writers with row
// locks (SELECT ... FOR UPDATE).
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWallet(ctx context.Context, studentID int64) (*models.Wallet, error) {
	var w models.Wallet
	err := s.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, mapError(err)
	}
	return &w, nil
}

func (s *PostgresStore) CountTransactions(ctx context.Context, studentID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM wallet_transactions WHERE student_id = $1`, studentID)
	return n, mapError(err)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, studentID int64, limit int) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := s.db.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE student_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, studentID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	return txs, nil
}

func (s *PostgresStore) GetWithdrawalRequest(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	var r models.WithdrawalRequest
	err := s.db.GetContext(ctx, &r, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (s *PostgresStore) ListWithdrawalRequests(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	var (
		where []string
		args  []any
	)
	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	reqs := []models.WithdrawalRequest{}
	if err := s.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, mapError(err)
	}
	return reqs, nil
}

func (s *PostgresStore) ListRewards(ctx context.Context, studentID int64) ([]models.Reward, error) {
	rewards := []models.Reward{}
	err := s.db.SelectContext(ctx, &rewards, `
		SELECT `+rewardColumns+`
		FROM rewards
		WHERE student_id = $1
		ORDER BY awarded_at DESC, id DESC`, studentID)
	if err != nil {
		return nil, mapError(err)
	}
	return rewards, nil
}

func (s *PostgresStore) ListWalletStudentIDs(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids, `SELECT student_id FROM wallets ORDER BY student_id`); err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}

type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) LockWallet(ctx context.Context, studentID int64, create bool) (*models.Wallet, error) {
	if create {
		// Only students own wallets; for anyone else nothing is inserted and
		// the lock below finds no row.
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO wallets (student_id, balance, version, created_at, updated_at)
			SELECT id, 0, 0, NOW(), NOW() FROM users WHERE id = $1 AND role = 'student'
			ON CONFLICT (student_id) DO NOTHING`, studentID)
		if err != nil {
			return nil, mapError(err)
		}
	}

	var w models.Wallet
	err := t.tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE student_id = $1 FOR UPDATE`, studentID)
	if err != nil {
		return nil, mapError(err)
	}
	return &w, nil
}

func (t *postgresTx) UpdateWalletBalance(ctx context.Context, w *models.Wallet, balance decimal.Decimal, at time.Time) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		balance.StringFixed(2), at, w.ID, w.Version)
	if err != nil {
		return mapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: wallet %d", ErrConflict, w.ID)
	}

	w.Balance = balance
	w.Version++
	w.UpdatedAt = at
	return nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO wallet_transactions
			(wallet_id, student_id, reference_number, direction, kind, amount, balance_after, description, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		txn.WalletID, txn.StudentID, txn.ReferenceNumber, string(txn.Direction), string(txn.Kind),
		txn.Amount.StringFixed(2), txn.BalanceAfter.StringFixed(2), txn.Description, txn.ActorID, txn.CreatedAt,
	).Scan(&txn.ID)
	return mapError(err)
}

func (t *postgresTx) SumTransactions(ctx context.Context, studentID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0)
		FROM wallet_transactions
		WHERE student_id = $1`, studentID)
	if err != nil {
		return decimal.Zero, mapError(err)
	}
	return sum, nil
}

func (t *postgresTx) InsertWithdrawalRequest(ctx context.Context, r *models.WithdrawalRequest) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO withdrawal_requests (wallet_id, student_id, amount, bank_details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		r.WalletID, r.StudentID, r.Amount.StringFixed(2), r.BankDetails, string(r.Status), r.CreatedAt,
	).Scan(&r.ID)
	return mapError(err)
}

func (t *postgresTx) LockWithdrawalRequest(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	var r models.WithdrawalRequest
	err := t.tx.GetContext(ctx, &r, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (t *postgresTx) UpdateWithdrawalRequest(ctx context.Context, r *models.WithdrawalRequest) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, rejection_reason = $2, processed_by = $3, processed_at = $4, transaction_id = $5
		WHERE id = $6`,
		string(r.Status), r.RejectionReason, r.ProcessedBy, r.ProcessedAt, r.TransactionID, r.ID)
	if err != nil {
		return mapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: withdrawal request %d", ErrNotFound, r.ID)
	}
	return nil
}

func (t *postgresTx) InsertReward(ctx context.Context, r *models.Reward) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO rewards
			(student_id, wallet_id, source_kind, source_id, score_percentage, policy, amount, transaction_id, awarded_by, awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, source_kind, source_id) DO NOTHING
		RETURNING id`,
		r.StudentID, r.WalletID, string(r.SourceKind), r.SourceID, r.ScorePercentage.StringFixed(2),
		r.Policy, r.Amount.StringFixed(2), r.TransactionID, r.AwardedBy, r.AwardedAt,
	).Scan(&r.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: reward for %s %d", ErrDuplicate, r.SourceKind, r.SourceID)
	}
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
		}
	}
	return err
}
