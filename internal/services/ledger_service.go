package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lmsledger/backend/internal/audit"
	"github.com/lmsledger/backend/internal/config"
	"github.com/lmsledger/backend/internal/events"
	"github.com/lmsledger/backend/internal/metrics"
	"github.com/lmsledger/backend/internal/models"
	"github.com/lmsledger/backend/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxAmount is the largest value a numeric(12,2) column holds.
var maxAmount = decimal.RequireFromString("9999999999.99")

// WithdrawalLimiter throttles withdrawal requests per student.
type WithdrawalLimiter interface {
	Allow(ctx context.Context, studentID int64) (bool, error)
	Record(ctx context.Context, studentID int64) error
}

// Posting is one credit or debit against a student's wallet.
type Posting struct {
	StudentID int64
	Amount    decimal.Decimal
	Reason    string
	Kind      models.TransactionKind // defaults to manual
	ActorID   *int64
}

// LedgerService owns every balance mutation. Each mutation locks the
// student's wallet row, validates, appends the transaction and writes the new
// balance inside one store transaction.
type LedgerService struct {
	store     repository.LedgerStore
	cfg       config.LedgerConfig
	policies  *RewardPolicies
	publisher events.Publisher
	audit     *audit.Logger
	limiter   WithdrawalLimiter
	refs      *ReferenceGenerator
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*LedgerService)

func WithPublisher(p events.Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithAuditLogger(a *audit.Logger) Option {
	return func(s *LedgerService) { s.audit = a }
}

func WithLimiter(l WithdrawalLimiter) Option {
	return func(s *LedgerService) { s.limiter = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(store repository.LedgerStore, cfg config.LedgerConfig, policies *RewardPolicies, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:     store,
		cfg:       cfg,
		policies:  policies,
		publisher: events.NopPublisher{},
		refs:      NewReferenceGenerator(),
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = audit.NewLogger(s.logger)
	}
	s.logger = s.logger.Named("ledger")
	return s
}

// Credit adds p.Amount to the student's balance.
func (s *LedgerService) Credit(ctx context.Context, p Posting) (*models.Transaction, error) {
	return s.postOne(ctx, "credit", models.DirectionCredit, p)
}

// Debit takes p.Amount from the student's balance, failing with
// ErrInsufficientFunds rather than going negative.
func (s *LedgerService) Debit(ctx context.Context, p Posting) (*models.Transaction, error) {
	return s.postOne(ctx, "debit", models.DirectionDebit, p)
}

func (s *LedgerService) postOne(ctx context.Context, op string, dir models.Direction, p Posting) (*models.Transaction, error) {
	if err := validateAmount(p.Amount); err != nil {
		s.fail(op, p.StudentID, err)
		return nil, err
	}
	if p.Kind == "" {
		p.Kind = models.KindManual
	}
	if !p.Kind.Valid() {
		err := fmt.Errorf("%w: unknown transaction kind %q", ErrInvalidAmount, p.Kind)
		s.fail(op, p.StudentID, err)
		return nil, err
	}

	var txn *models.Transaction
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		wallet, err := tx.LockWallet(ctx, p.StudentID, true)
		if err != nil {
			return notFound(err, "student %d", p.StudentID)
		}
		txn, err = s.post(ctx, tx, wallet, dir, p, refPosting)
		return err
	})
	if err != nil {
		s.fail(op, p.StudentID, err)
		return nil, err
	}

	s.posted(ctx, txn)
	return txn, nil
}

// post appends one transaction and moves the balance. It must run inside
// WithinTx with wallet already locked.
func (s *LedgerService) post(ctx context.Context, tx repository.LedgerTx, wallet *models.Wallet, dir models.Direction, p Posting, refPrefix string) (*models.Transaction, error) {
	var balance decimal.Decimal
	switch dir {
	case models.DirectionCredit:
		balance = wallet.Balance.Add(p.Amount)
		if balance.GreaterThan(maxAmount) {
			return nil, fmt.Errorf("%w: balance would exceed %s", ErrInvalidAmount, maxAmount.StringFixed(2))
		}
	case models.DirectionDebit:
		if wallet.Balance.LessThan(p.Amount) {
			return nil, fmt.Errorf("%w: balance %s, requested %s",
				ErrInsufficientFunds, wallet.Balance.StringFixed(2), p.Amount.StringFixed(2))
		}
		balance = wallet.Balance.Sub(p.Amount)
	default:
		return nil, fmt.Errorf("unknown direction %q", dir)
	}

	now := s.now()
	txn := &models.Transaction{
		WalletID:        wallet.ID,
		StudentID:       wallet.StudentID,
		ReferenceNumber: s.refs.Next(refPrefix),
		Direction:       dir,
		Kind:            p.Kind,
		Amount:          p.Amount,
		BalanceAfter:    balance,
		Description:     p.Reason,
		ActorID:         p.ActorID,
		CreatedAt:       now,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	if err := tx.UpdateWalletBalance(ctx, wallet, balance, now); err != nil {
		return nil, fmt.Errorf("update wallet balance: %w", err)
	}
	return txn, nil
}

// SetBalance is the administrative override. It never writes the balance
// directly: the difference to the current balance is posted as an
// adjustment credit or debit. A nil transaction means nothing changed.
func (s *LedgerService) SetBalance(ctx context.Context, studentID int64, target decimal.Decimal, actorID int64, reason string) (*models.Transaction, error) {
	if target.IsNegative() || !target.Equal(target.Round(2)) || target.GreaterThan(maxAmount) {
		err := fmt.Errorf("%w: balance must be between 0.00 and %s with at most two decimal places",
			ErrInvalidAmount, maxAmount.StringFixed(2))
		s.fail("set_balance", studentID, err)
		return nil, err
	}

	var txn *models.Transaction
	var previous decimal.Decimal
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		wallet, err := tx.LockWallet(ctx, studentID, true)
		if err != nil {
			return notFound(err, "student %d", studentID)
		}
		previous = wallet.Balance

		delta := target.Sub(wallet.Balance)
		if delta.IsZero() {
			return nil
		}

		if reason == "" {
			reason = fmt.Sprintf("Balance adjusted from %s to %s by user %d",
				wallet.Balance.StringFixed(2), target.StringFixed(2), actorID)
		}
		p := Posting{StudentID: studentID, Amount: delta.Abs(), Reason: reason, Kind: models.KindAdjustment, ActorID: &actorID}

		dir := models.DirectionCredit
		if delta.IsNegative() {
			dir = models.DirectionDebit
		}
		txn, err = s.post(ctx, tx, wallet, dir, p, refOverride)
		return err
	})
	if err != nil {
		s.fail("set_balance", studentID, err)
		return nil, err
	}

	s.audit.LogOperation(audit.EventOverride, referenceOf(txn), studentID, &actorID, map[string]string{
		"previous_balance": previous.StringFixed(2),
		"new_balance":      target.StringFixed(2),
	})
	if txn != nil {
		s.posted(ctx, txn)
	}
	return txn, nil
}

// Wallet returns the balance summary; students without a wallet yet get a
// zero balance rather than an error.
func (s *LedgerService) Wallet(ctx context.Context, studentID int64) (*models.WalletSummary, error) {
	summary := &models.WalletSummary{StudentID: studentID, Balance: decimal.Zero}

	wallet, err := s.store.GetWallet(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return summary, nil
	}
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountTransactions(ctx, studentID)
	if err != nil {
		return nil, err
	}
	summary.Balance = wallet.Balance
	summary.TransactionCount = count
	summary.UpdatedAt = &wallet.UpdatedAt
	return summary, nil
}

// RecentTransactions returns the newest transactions first. limit <= 0 means
// the configured page size; larger values are capped.
func (s *LedgerService) RecentTransactions(ctx context.Context, studentID int64, limit int) ([]models.Transaction, error) {
	return s.store.ListTransactions(ctx, studentID, s.pageSize(limit))
}

func (s *LedgerService) Rewards(ctx context.Context, studentID int64) ([]models.Reward, error) {
	return s.store.ListRewards(ctx, studentID)
}

func (s *LedgerService) pageSize(limit int) int {
	if limit <= 0 {
		return s.cfg.PageSize
	}
	if limit > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}
	return limit
}

// Reconcile recomputes the balance from the transaction log under the wallet
// lock and compares it with the cached balance.
func (s *LedgerService) Reconcile(ctx context.Context, studentID int64) (*models.Reconciliation, error) {
	rec := &models.Reconciliation{StudentID: studentID, CachedBalance: decimal.Zero}

	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		wallet, err := tx.LockWallet(ctx, studentID, false)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		default:
			rec.CachedBalance = wallet.Balance
		}

		sum, err := tx.SumTransactions(ctx, studentID)
		if err != nil {
			return err
		}
		rec.LedgerBalance = sum
		return nil
	})
	if err != nil {
		s.fail("reconcile", studentID, err)
		return nil, err
	}

	rec.Consistent = rec.CachedBalance.Equal(rec.LedgerBalance)
	rec.CheckedAt = s.now()

	s.audit.LogOperation(audit.EventReconcile, "", studentID, nil, map[string]string{
		"cached_balance": rec.CachedBalance.StringFixed(2),
		"ledger_balance": rec.LedgerBalance.StringFixed(2),
		"consistent":     fmt.Sprintf("%t", rec.Consistent),
	})
	if !rec.Consistent {
		s.logger.Error("wallet balance does not match transaction log",
			zap.Int64("student_id", studentID),
			zap.String("cached_balance", rec.CachedBalance.StringFixed(2)),
			zap.String("ledger_balance", rec.LedgerBalance.StringFixed(2)),
		)
	}
	return rec, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount must have at most two decimal places", ErrInvalidAmount)
	}
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount must not exceed %s", ErrInvalidAmount, maxAmount.StringFixed(2))
	}
	return nil
}

func referenceOf(txn *models.Transaction) string {
	if txn == nil {
		return ""
	}
	return txn.ReferenceNumber
}

// posted runs the after-commit side effects of one transaction.
func (s *LedgerService) posted(ctx context.Context, txn *models.Transaction) {
	metrics.PostingsTotal.WithLabelValues(string(txn.Direction), string(txn.Kind)).Inc()
	s.audit.LogPosting(txn.ReferenceNumber, txn.StudentID, txn.ActorID, string(txn.Direction), txn.Amount, txn.BalanceAfter, string(txn.Kind))

	eventType := events.WalletCredited
	if txn.Direction == models.DirectionDebit {
		eventType = events.WalletDebited
	}
	event := events.NewEvent(eventType, txn.StudentID)
	event.Amount = txn.Amount.StringFixed(2)
	event.BalanceAfter = txn.BalanceAfter.StringFixed(2)
	event.Reference = txn.ReferenceNumber
	event.ActorID = txn.ActorID
	event.Metadata = map[string]string{"kind": string(txn.Kind)}
	s.publish(ctx, event)
}

// publish never fails the caller: the ledger change is already committed.
func (s *LedgerService) publish(ctx context.Context, event *events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		metrics.EventPublishErrorsTotal.Inc()
		s.logger.Warn("failed to publish wallet event",
			zap.String("type", string(event.Type)),
			zap.Int64("student_id", event.StudentID),
			zap.Error(err),
		)
	}
}

func (s *LedgerService) fail(op string, studentID int64, err error) {
	code := ErrorCode(err)
	metrics.OperationErrorsTotal.WithLabelValues(op, code).Inc()
	s.audit.LogError(op, studentID, err)
	if code == "internal" {
		s.logger.Error("ledger operation failed", zap.String("operation", op), zap.Int64("student_id", studentID), zap.Error(err))
		return
	}
	s.logger.Info("ledger operation rejected", zap.String("operation", op), zap.Int64("student_id", studentID), zap.Error(err))
}
