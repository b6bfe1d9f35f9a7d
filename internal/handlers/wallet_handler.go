package handlers

import (
	"net/http"

	"github.com/lmsledger/backend/internal/middleware"
	"github.com/lmsledger/backend/internal/services"
	"go.uber.org/zap"
)

// WalletHandler serves the calling student's own wallet.
type WalletHandler struct {
	ledger *services.LedgerService
	logger *zap.Logger
}

func NewWalletHandler(ledger *services.LedgerService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{ledger: ledger, logger: logger.Named("wallet")}
}

// GetWallet returns the caller's balance
// @Summary Get wallet
// @Description Balance summary of the authenticated student. Students without a wallet get a zero balance.
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} WalletView
// @Failure 401 {object} ErrorResponse
// @Router /wallet [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	summary, err := h.ledger.Wallet(r.Context(), p.UserID)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, walletView(summary))
}

// ListTransactions returns the caller's most recent transactions
// @Summary List wallet transactions
// @Description Newest first. limit defaults to the configured page size and is capped.
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Success 200 {array} TransactionView
// @Failure 400 {object} ErrorResponse
// @Router /wallet/transactions [get]
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	txns, err := h.ledger.RecentTransactions(r.Context(), p.UserID, limit)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, transactionViews(txns))
}

// ListRewards returns the rewards the caller has earned
// @Summary List rewards
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {array} RewardView
// @Router /wallet/rewards [get]
func (h *WalletHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rewards, err := h.ledger.Rewards(r.Context(), p.UserID)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rewardViews(rewards))
}
