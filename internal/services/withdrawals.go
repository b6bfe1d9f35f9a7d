package services

import (
	"context"
	"fmt"

	"github.com/lmsledger/backend/internal/events"
	"github.com/lmsledger/backend/internal/metrics"
	"github.com/lmsledger/backend/internal/models"
	"github.com/lmsledger/backend/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequestWithdrawal files a pending request. No funds move until approval;
// the balance check here only stops requests that could never be paid.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, studentID int64, amount decimal.Decimal, bank models.BankDetails) (*models.WithdrawalRequest, error) {
	const op = "request_withdrawal"

	if err := validateAmount(amount); err != nil {
		s.fail(op, studentID, err)
		return nil, err
	}
	if amount.LessThan(s.cfg.MinWithdrawal) {
		err := fmt.Errorf("%w: minimum withdrawal amount is %s", ErrBelowMinimumWithdrawal, s.cfg.MinWithdrawal.StringFixed(2))
		s.fail(op, studentID, err)
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, studentID)
		if err != nil {
			s.logger.Warn("withdrawal rate limit check failed, allowing request", zap.Int64("student_id", studentID), zap.Error(err))
		} else if !allowed {
			err := fmt.Errorf("%w: try again later", ErrRateLimited)
			s.fail(op, studentID, err)
			return nil, err
		}
	}

	var req *models.WithdrawalRequest
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		wallet, err := tx.LockWallet(ctx, studentID, true)
		if err != nil {
			return notFound(err, "student %d", studentID)
		}
		if wallet.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s",
				ErrInsufficientFunds, wallet.Balance.StringFixed(2), amount.StringFixed(2))
		}

		req = &models.WithdrawalRequest{
			WalletID:    wallet.ID,
			StudentID:   studentID,
			Amount:      amount,
			BankDetails: bank,
			Status:      models.WithdrawalPending,
			CreatedAt:   s.now(),
		}
		if err := tx.InsertWithdrawalRequest(ctx, req); err != nil {
			return fmt.Errorf("insert withdrawal request: %w", err)
		}
		return nil
	})
	if err != nil {
		s.fail(op, studentID, err)
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Record(ctx, studentID); err != nil {
			s.logger.Warn("failed to record withdrawal rate limit", zap.Int64("student_id", studentID), zap.Error(err))
		}
	}
	s.transitioned(ctx, req, nil)
	return req, nil
}

// ApproveWithdrawal pays out a pending request: exactly one debit, and the
// request becomes approved. The request row is locked before the wallet row.
func (s *LedgerService) ApproveWithdrawal(ctx context.Context, requestID, approverID int64) (*models.WithdrawalRequest, error) {
	const op = "approve_withdrawal"

	var (
		req *models.WithdrawalRequest
		txn *models.Transaction
	)
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		req, err = tx.LockWithdrawalRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "withdrawal request %d", requestID)
		}
		if req.Status != models.WithdrawalPending {
			return fmt.Errorf("%w: withdrawal request %d is %s", ErrAlreadyProcessed, requestID, req.Status)
		}

		wallet, err := tx.LockWallet(ctx, req.StudentID, false)
		if err != nil {
			return notFound(err, "wallet for student %d", req.StudentID)
		}

		txn, err = s.post(ctx, tx, wallet, models.DirectionDebit, Posting{
			StudentID: req.StudentID,
			Amount:    req.Amount,
			Reason:    fmt.Sprintf("Withdrawal request #%d approved", req.ID),
			Kind:      models.KindWithdrawal,
			ActorID:   &approverID,
		}, refWithdrawal)
		if err != nil {
			return err
		}

		processedAt := txn.CreatedAt
		req.Status = models.WithdrawalApproved
		req.ProcessedBy = &approverID
		req.ProcessedAt = &processedAt
		req.TransactionID = &txn.ID
		return tx.UpdateWithdrawalRequest(ctx, req)
	})
	if err != nil {
		s.fail(op, studentOf(req), err)
		return nil, err
	}

	s.posted(ctx, txn)
	s.transitioned(ctx, req, txn)
	return req, nil
}

// RejectWithdrawal closes a pending request without moving funds.
func (s *LedgerService) RejectWithdrawal(ctx context.Context, requestID, approverID int64, reason string) (*models.WithdrawalRequest, error) {
	const op = "reject_withdrawal"

	var req *models.WithdrawalRequest
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		req, err = tx.LockWithdrawalRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "withdrawal request %d", requestID)
		}
		if req.Status != models.WithdrawalPending {
			return fmt.Errorf("%w: withdrawal request %d is %s", ErrAlreadyProcessed, requestID, req.Status)
		}

		processedAt := s.now()
		req.Status = models.WithdrawalRejected
		req.RejectionReason = reason
		req.ProcessedBy = &approverID
		req.ProcessedAt = &processedAt
		return tx.UpdateWithdrawalRequest(ctx, req)
	})
	if err != nil {
		s.fail(op, studentOf(req), err)
		return nil, err
	}

	s.transitioned(ctx, req, nil)
	return req, nil
}

func (s *LedgerService) GetWithdrawalRequest(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	req, err := s.store.GetWithdrawalRequest(ctx, id)
	if err != nil {
		return nil, notFound(err, "withdrawal request %d", id)
	}
	return req, nil
}

func (s *LedgerService) ListWithdrawalRequests(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown withdrawal status %q", filter.Status)
	}
	filter.Limit = s.pageSize(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.ListWithdrawalRequests(ctx, filter)
}

func studentOf(req *models.WithdrawalRequest) int64 {
	if req == nil {
		return 0
	}
	return req.StudentID
}

func (s *LedgerService) transitioned(ctx context.Context, req *models.WithdrawalRequest, txn *models.Transaction) {
	metrics.WithdrawalTransitionsTotal.WithLabelValues(string(req.Status)).Inc()

	details := map[string]string{}
	if req.RejectionReason != "" {
		details["rejection_reason"] = req.RejectionReason
	}
	if txn != nil {
		details["reference"] = txn.ReferenceNumber
	}
	s.audit.LogWithdrawal(req.ID, req.StudentID, req.ProcessedBy, req.Amount, string(req.Status), details)

	var eventType events.EventType
	switch req.Status {
	case models.WithdrawalApproved:
		eventType = events.WithdrawalApproved
	case models.WithdrawalRejected:
		eventType = events.WithdrawalRejected
	default:
		eventType = events.WithdrawalRequested
	}
	event := events.NewEvent(eventType, req.StudentID)
	event.Amount = req.Amount.StringFixed(2)
	event.WithdrawalID = req.ID
	event.ActorID = req.ProcessedBy
	if txn != nil {
		event.Reference = txn.ReferenceNumber
		event.BalanceAfter = txn.BalanceAfter.StringFixed(2)
	}
	if req.RejectionReason != "" {
		event.Metadata = map[string]string{"rejection_reason": req.RejectionReason}
	}
	s.publish(ctx, event)
}
