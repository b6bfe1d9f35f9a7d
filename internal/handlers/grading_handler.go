package handlers

import (
	"net/http"

	"github.com/lmsledger/backend/internal/middleware"
	"github.com/lmsledger/backend/internal/models"
	"github.com/lmsledger/backend/internal/services"
	"go.uber.org/zap"
)

// GradingHandler receives finished gradings and awards rewards for them.
type GradingHandler struct {
	ledger    *services.LedgerService
	validator *ValidationHelper
	logger    *zap.Logger
}

func NewGradingHandler(ledger *services.LedgerService, logger *zap.Logger) *GradingHandler {
	return &GradingHandler{
		ledger:    ledger,
		validator: NewValidationHelper(),
		logger:    logger.Named("grading"),
	}
}

type GradingResult struct {
	Awarded            bool              `json:"awarded"`
	Reward             *RewardView       `json:"reward,omitempty"`
	Wallet             WalletView        `json:"wallet"`
	RecentTransactions []TransactionView `json:"recent_transactions"`
}

// RecordGrading evaluates a grading event for a reward
// @Summary Record grading event
// @Description Credits the student when the configured policy for the graded item awards the score. Replaying the same event never pays twice.
// @Tags Grading
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.GradingEvent true "Grading event"
// @Success 200 {object} GradingResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Unknown student"
// @Router /grading-events [post]
func (h *GradingHandler) RecordGrading(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var ev models.GradingEvent
	if !h.validator.decodeBody(w, r, &ev) {
		return
	}
	ev.GradedBy = &p.UserID

	reward, err := h.ledger.AwardIfPassing(r.Context(), ev)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	summary, err := h.ledger.Wallet(r.Context(), ev.StudentID)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	txns, err := h.ledger.RecentTransactions(r.Context(), ev.StudentID, 0)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, GradingResult{
		Awarded:            reward != nil,
		Reward:             rewardView(reward),
		Wallet:             walletView(summary),
		RecentTransactions: transactionViews(txns),
	})
}
