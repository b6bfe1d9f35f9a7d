package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/lmsledger/backend/internal/events"
	"github.com/lmsledger/backend/internal/metrics"
	"github.com/lmsledger/backend/internal/models"
	"github.com/lmsledger/backend/internal/repository"
	"go.uber.org/zap"
)

var errRewardExists = errors.New("reward already granted")

// AwardIfPassing credits the student when the configured policy for the
// graded item says the score earns a reward. It returns nil when nothing is
// awarded, including when this grading event was already rewarded: the
// reward row's unique key makes a second award roll back.
func (s *LedgerService) AwardIfPassing(ctx context.Context, ev models.GradingEvent) (*models.Reward, error) {
	const op = "award_if_passing"

	if err := validateGradingEvent(ev); err != nil {
		s.fail(op, ev.StudentID, err)
		return nil, err
	}

	amount, policy, ok, err := s.policies.Evaluate(ev)
	if err != nil {
		s.fail(op, ev.StudentID, err)
		return nil, err
	}
	if !ok {
		metrics.RewardEvaluationsTotal.WithLabelValues(string(ev.SourceKind), metrics.OutcomeNotPassing).Inc()
		return nil, nil
	}
	if err := validateAmount(amount); err != nil {
		s.fail(op, ev.StudentID, err)
		return nil, err
	}

	var (
		reward *models.Reward
		txn    *models.Transaction
	)
	err = s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		wallet, err := tx.LockWallet(ctx, ev.StudentID, true)
		if err != nil {
			return notFound(err, "student %d", ev.StudentID)
		}

		txn, err = s.post(ctx, tx, wallet, models.DirectionCredit, Posting{
			StudentID: ev.StudentID,
			Amount:    amount,
			Reason:    rewardReason(ev, policy),
			Kind:      ev.SourceKind.TransactionKind(),
			ActorID:   ev.GradedBy,
		}, refReward)
		if err != nil {
			return err
		}

		reward = &models.Reward{
			StudentID:       ev.StudentID,
			WalletID:        wallet.ID,
			SourceKind:      ev.SourceKind,
			SourceID:        ev.SourceID,
			ScorePercentage: ev.ScorePercentage,
			Policy:          policy,
			Amount:          amount,
			TransactionID:   txn.ID,
			AwardedBy:       ev.GradedBy,
			AwardedAt:       txn.CreatedAt,
		}
		if err := tx.InsertReward(ctx, reward); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errRewardExists
			}
			return fmt.Errorf("insert reward: %w", err)
		}
		return nil
	})
	if errors.Is(err, errRewardExists) {
		metrics.RewardEvaluationsTotal.WithLabelValues(string(ev.SourceKind), metrics.OutcomeDuplicate).Inc()
		s.logger.Info("grading event already rewarded",
			zap.Int64("student_id", ev.StudentID),
			zap.String("source_kind", string(ev.SourceKind)),
			zap.Int64("source_id", ev.SourceID),
		)
		return nil, nil
	}
	if err != nil {
		s.fail(op, ev.StudentID, err)
		return nil, err
	}

	metrics.RewardEvaluationsTotal.WithLabelValues(string(ev.SourceKind), metrics.OutcomeAwarded).Inc()
	s.posted(ctx, txn)

	event := events.NewEvent(events.RewardGranted, ev.StudentID)
	event.Amount = amount.StringFixed(2)
	event.BalanceAfter = txn.BalanceAfter.StringFixed(2)
	event.Reference = txn.ReferenceNumber
	event.Metadata = map[string]string{
		"source_kind": string(ev.SourceKind),
		"source_id":   fmt.Sprintf("%d", ev.SourceID),
		"policy":      policy,
	}
	s.publish(ctx, event)
	return reward, nil
}

func validateGradingEvent(ev models.GradingEvent) error {
	if ev.StudentID <= 0 || ev.SourceID <= 0 {
		return fmt.Errorf("%w: student and source ids are required", ErrInvalidGradingEvent)
	}
	if !ev.SourceKind.Valid() {
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalidGradingEvent, ev.SourceKind)
	}
	if ev.ScorePercentage.IsNegative() || ev.ScorePercentage.GreaterThan(hundred) {
		return fmt.Errorf("%w: score must be between 0 and 100", ErrInvalidGradingEvent)
	}
	if ev.RewardAmount != nil && ev.RewardAmount.IsNegative() {
		return fmt.Errorf("%w: reward amount must not be negative", ErrInvalidGradingEvent)
	}
	if p := ev.PassingPercentage; p != nil && (p.IsNegative() || p.GreaterThan(hundred)) {
		return fmt.Errorf("%w: passing percentage must be between 0 and 100", ErrInvalidGradingEvent)
	}
	return nil
}

func rewardReason(ev models.GradingEvent, policy string) string {
	title := ev.SourceTitle
	if title == "" {
		title = fmt.Sprintf("%s #%d", ev.SourceKind, ev.SourceID)
	}
	if policy == PolicyPerfectScore {
		return "Perfect score bonus for " + title
	}
	return "Reward for completing " + title
}
