package handlers

import (
	"time"

	"github.com/lmsledger/backend/internal/models"
)

// Money leaves the API as a fixed two-decimal string so "20.00" never turns
// into "20".

type WalletView struct {
	StudentID        int64      `json:"student_id"`
	Balance          string     `json:"balance"`
	TransactionCount int        `json:"transaction_count"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

type TransactionView struct {
	ID              int64     `json:"id"`
	ReferenceNumber string    `json:"reference_number"`
	Direction       string    `json:"direction"`
	Kind            string    `json:"kind"`
	Amount          string    `json:"amount"`
	BalanceAfter    string    `json:"balance_after"`
	Description     string    `json:"description"`
	ActorID         *int64    `json:"actor_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type WithdrawalView struct {
	ID              int64              `json:"id"`
	StudentID       int64              `json:"student_id"`
	Amount          string             `json:"amount"`
	BankDetails     models.BankDetails `json:"bank_details"`
	Status          string             `json:"status"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	ProcessedBy     *int64             `json:"processed_by,omitempty"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
	TransactionID   *int64             `json:"transaction_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

type RewardView struct {
	ID              int64     `json:"id"`
	SourceKind      string    `json:"source_kind"`
	SourceID        int64     `json:"source_id"`
	ScorePercentage string    `json:"score_percentage"`
	Policy          string    `json:"policy"`
	Amount          string    `json:"amount"`
	TransactionID   int64     `json:"transaction_id"`
	AwardedAt       time.Time `json:"awarded_at"`
}

type ReconciliationView struct {
	StudentID     int64     `json:"student_id"`
	CachedBalance string    `json:"cached_balance"`
	LedgerBalance string    `json:"ledger_balance"`
	Consistent    bool      `json:"consistent"`
	CheckedAt     time.Time `json:"checked_at"`
}

func walletView(s *models.WalletSummary) WalletView {
	return WalletView{
		StudentID:        s.StudentID,
		Balance:          s.Balance.StringFixed(2),
		TransactionCount: s.TransactionCount,
		UpdatedAt:        s.UpdatedAt,
	}
}

func transactionView(t *models.Transaction) *TransactionView {
	if t == nil {
		return nil
	}
	return &TransactionView{
		ID:              t.ID,
		ReferenceNumber: t.ReferenceNumber,
		Direction:       string(t.Direction),
		Kind:            string(t.Kind),
		Amount:          t.Amount.StringFixed(2),
		BalanceAfter:    t.BalanceAfter.StringFixed(2),
		Description:     t.Description,
		ActorID:         t.ActorID,
		CreatedAt:       t.CreatedAt,
	}
}

func transactionViews(txns []models.Transaction) []TransactionView {
	out := make([]TransactionView, 0, len(txns))
	for i := range txns {
		out = append(out, *transactionView(&txns[i]))
	}
	return out
}

func withdrawalView(req *models.WithdrawalRequest) WithdrawalView {
	return WithdrawalView{
		ID:              req.ID,
		StudentID:       req.StudentID,
		Amount:          req.Amount.StringFixed(2),
		BankDetails:     req.BankDetails,
		Status:          string(req.Status),
		RejectionReason: req.RejectionReason,
		ProcessedBy:     req.ProcessedBy,
		ProcessedAt:     req.ProcessedAt,
		TransactionID:   req.TransactionID,
		CreatedAt:       req.CreatedAt,
	}
}

func withdrawalViews(reqs []models.WithdrawalRequest) []WithdrawalView {
	out := make([]WithdrawalView, 0, len(reqs))
	for i := range reqs {
		out = append(out, withdrawalView(&reqs[i]))
	}
	return out
}

func rewardView(r *models.Reward) *RewardView {
	if r == nil {
		return nil
	}
	return &RewardView{
		ID:              r.ID,
		SourceKind:      string(r.SourceKind),
		SourceID:        r.SourceID,
		ScorePercentage: r.ScorePercentage.StringFixed(2),
		Policy:          r.Policy,
		Amount:          r.Amount.StringFixed(2),
		TransactionID:   r.TransactionID,
		AwardedAt:       r.AwardedAt,
	}
}

func rewardViews(rewards []models.Reward) []RewardView {
	out := make([]RewardView, 0, len(rewards))
	for i := range rewards {
		out = append(out, *rewardView(&rewards[i]))
	}
	return out
}

func reconciliationView(r *models.Reconciliation) ReconciliationView {
	return ReconciliationView{
		StudentID:     r.StudentID,
		CachedBalance: r.CachedBalance.StringFixed(2),
		LedgerBalance: r.LedgerBalance.StringFixed(2),
		Consistent:    r.Consistent,
		CheckedAt:     r.CheckedAt,
	}
}
