package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/lmsledger/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var walletCols = []string{"id", "student_id", "balance", "version", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPostgresStore_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("credit flow commits", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO wallets (.+) SELECT id, 0, 0, NOW\\(\\), NOW\\(\\) FROM users WHERE id = \\$1 AND role = 'student' ON CONFLICT \\(student_id\\) DO NOTHING").
			WithArgs(int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE student_id = \\$1 FOR UPDATE").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(walletCols).AddRow(int64(1), int64(42), "50.00", int64(3), now, now))
		mock.ExpectQuery("INSERT INTO wallet_transactions").
			WithArgs(int64(1), int64(42), "TXN-1", "credit", "manual", "100.00", "150.00", "seed", nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(77)))
		mock.ExpectExec("UPDATE wallets SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs("150.00", sqlmock.AnyArg(), int64(1), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		var txn *models.Transaction
		err := store.WithinTx(ctx, func(tx LedgerTx) error {
			w, err := tx.LockWallet(ctx, 42, true)
			if err != nil {
				return err
			}
			assert.Equal(t, "50.00", w.Balance.StringFixed(2))

			txn = &models.Transaction{
				WalletID:        w.ID,
				StudentID:       42,
				ReferenceNumber: "TXN-1",
				Direction:       models.DirectionCredit,
				Kind:            models.KindManual,
				Amount:          decimal.RequireFromString("100"),
				BalanceAfter:    decimal.RequireFromString("150"),
				Description:     "seed",
				CreatedAt:       now,
			}
			if err := tx.InsertTransaction(ctx, txn); err != nil {
				return err
			}
			if err := tx.UpdateWalletBalance(ctx, w, txn.BalanceAfter, now); err != nil {
				return err
			}
			assert.Equal(t, 4, w.Version)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(77), txn.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE student_id = \\$1 FOR UPDATE").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(walletCols))
		mock.ExpectRollback()

		err := store.WithinTx(ctx, func(tx LedgerTx) error {
			_, err := tx.LockWallet(ctx, 42, false)
			return err
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE wallets").
			WithArgs("10.00", sqlmock.AnyArg(), int64(1), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.WithinTx(ctx, func(tx LedgerTx) error {
			w := &models.Wallet{ID: 1, Version: 2}
			return tx.UpdateWalletBalance(ctx, w, decimal.RequireFromString("10"), time.Now())
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := store.WithinTx(ctx, func(tx LedgerTx) error { return nil })
		assert.ErrorContains(t, err, "begin transaction")
	})
}

func TestPostgresStore_Withdrawals(t *testing.T) {
	ctx := context.Background()
	cols := []string{"id", "wallet_id", "student_id", "amount", "bank_details", "status", "rejection_reason", "processed_by", "processed_at", "transaction_id", "created_at"}
	bankJSON := []byte(`{"account_name":"Ada Obi","account_number":"0123456789","bank_name":"First Bank"}`)

	t.Run("lock and update", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM withdrawal_requests WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), int64(1), int64(42), "600.00", bankJSON, "pending", "", nil, nil, nil, now))
		mock.ExpectExec("UPDATE withdrawal_requests SET status = \\$1, rejection_reason = \\$2, processed_by = \\$3, processed_at = \\$4, transaction_id = \\$5 WHERE id = \\$6").
			WithArgs("rejected", "wrong bank", int64(9), sqlmock.AnyArg(), nil, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithinTx(ctx, func(tx LedgerTx) error {
			req, err := tx.LockWithdrawalRequest(ctx, 5)
			if err != nil {
				return err
			}
			assert.Equal(t, models.WithdrawalPending, req.Status)
			assert.Equal(t, "First Bank", req.BankDetails.BankName)
			assert.Equal(t, "600.00", req.Amount.StringFixed(2))
			assert.Nil(t, req.ProcessedBy)

			approver := int64(9)
			req.Status = models.WithdrawalRejected
			req.RejectionReason = "wrong bank"
			req.ProcessedBy = &approver
			req.ProcessedAt = &now
			return tx.UpdateWithdrawalRequest(ctx, req)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO withdrawal_requests").
			WithArgs(int64(1), int64(42), "500.00", sqlmock.AnyArg(), "pending", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
		mock.ExpectCommit()

		req := &models.WithdrawalRequest{
			WalletID:  1,
			StudentID: 42,
			Amount:    decimal.RequireFromString("500"),
			Status:    models.WithdrawalPending,
			CreatedAt: time.Now(),
		}
		err := store.WithinTx(ctx, func(tx LedgerTx) error {
			return tx.InsertWithdrawalRequest(ctx, req)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(12), req.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list with filters", func(t *testing.T) {
		store, mock := newMockStore(t)
		sid := int64(42)

		mock.ExpectQuery("SELECT (.+) FROM withdrawal_requests WHERE student_id = \\$1 AND status = \\$2 ORDER BY created_at DESC, id DESC LIMIT \\$3 OFFSET \\$4").
			WithArgs(sid, "pending", int64(20), int64(0)).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), int64(1), int64(42), "600.00", bankJSON, "pending", "", nil, nil, nil, time.Now()))

		reqs, err := store.ListWithdrawalRequests(ctx, models.WithdrawalFilter{StudentID: &sid, Status: models.WithdrawalPending, Limit: 20})
		require.NoError(t, err)
		assert.Len(t, reqs, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list without filters", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM withdrawal_requests ORDER BY created_at DESC, id DESC LIMIT \\$1 OFFSET \\$2").
			WithArgs(int64(10), int64(30)).
			WillReturnRows(sqlmock.NewRows(cols))

		reqs, err := store.ListWithdrawalRequests(ctx, models.WithdrawalFilter{Limit: 10, Offset: 30})
		require.NoError(t, err)
		assert.NotNil(t, reqs)
		assert.Empty(t, reqs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get missing", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM withdrawal_requests WHERE id = \\$1").
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := store.GetWithdrawalRequest(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresStore_InsertReward(t *testing.T) {
	ctx := context.Background()
	reward := func() *models.Reward {
		return &models.Reward{
			StudentID:       42,
			WalletID:        1,
			SourceKind:      models.SourceQuiz,
			SourceID:        3,
			ScorePercentage: decimal.RequireFromString("100"),
			Policy:          "perfect_score",
			Amount:          decimal.RequireFromString("100"),
			TransactionID:   77,
			AwardedAt:       time.Now(),
		}
	}

	t.Run("first award", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO rewards (.+) ON CONFLICT \\(student_id, source_kind, source_id\\) DO NOTHING RETURNING id").
			WithArgs(int64(42), int64(1), "quiz", int64(3), "100.00", "perfect_score", "100.00", int64(77), nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
		mock.ExpectCommit()

		r := reward()
		err := store.WithinTx(ctx, func(tx LedgerTx) error { return tx.InsertReward(ctx, r) })
		require.NoError(t, err)
		assert.Equal(t, int64(8), r.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict is duplicate", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO rewards").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := store.WithinTx(ctx, func(tx LedgerTx) error { return tx.InsertReward(ctx, reward()) })
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Reads(t *testing.T) {
	ctx := context.Background()
	txCols := []string{"id", "wallet_id", "student_id", "reference_number", "direction", "kind", "amount", "balance_after", "description", "actor_id", "created_at"}

	t.Run("transactions newest first", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery("SELECT (.+) FROM wallet_transactions WHERE student_id = \\$1 ORDER BY created_at DESC, id DESC LIMIT \\$2").
			WithArgs(int64(42), int64(20)).
			WillReturnRows(sqlmock.NewRows(txCols).
				AddRow(int64(2), int64(1), int64(42), "WDR-2", "debit", "withdrawal", "600.00", "200.00", "Withdrawal request #5 approved", int64(9), now).
				AddRow(int64(1), int64(1), int64(42), "TXN-1", "credit", "manual", "800.00", "800.00", "seed", nil, now.Add(-time.Hour)))

		txs, err := store.ListTransactions(ctx, 42, 20)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, models.DirectionDebit, txs[0].Direction)
		assert.Equal(t, int64(9), *txs[0].ActorID)
		assert.Nil(t, txs[1].ActorID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing wallet", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE student_id = \\$1").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(walletCols))

		_, err := store.GetWallet(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("count", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM wallet_transactions WHERE student_id = \\$1").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		n, err := store.CountTransactions(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("sum transactions", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(CASE WHEN direction = 'credit' THEN amount ELSE -amount END\\), 0\\) FROM wallet_transactions WHERE student_id = \\$1").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("200.00"))
		mock.ExpectCommit()

		var sum decimal.Decimal
		err := store.WithinTx(ctx, func(tx LedgerTx) error {
			var err error
			sum, err = tx.SumTransactions(ctx, 42)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, "200.00", sum.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil))
	assert.ErrorIs(t, mapError(&pq.Error{Code: "23505", Constraint: "wallet_transactions_reference_number_key"}), ErrDuplicate)
	assert.ErrorIs(t, mapError(&pq.Error{Code: "23503", Constraint: "wallets_student_id_fkey"}), ErrNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapError(other))
}
