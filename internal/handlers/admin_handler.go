package handlers

import (
	"net/http"

	"github.com/lmsledger/backend/internal/middleware"
	"github.com/lmsledger/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdminHandler exposes any student's wallet to staff.
type AdminHandler struct {
	ledger    *services.LedgerService
	validator *ValidationHelper
	logger    *zap.Logger
}

func NewAdminHandler(ledger *services.LedgerService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		ledger:    ledger,
		validator: NewValidationHelper(),
		logger:    logger.Named("admin"),
	}
}

type setBalanceRequest struct {
	Balance decimal.Decimal `json:"balance" validate:"gte=0"`
	Reason  string          `json:"reason" validate:"max=500"`
}

type SetBalanceResult struct {
	Transaction *TransactionView `json:"transaction,omitempty"` // absent when the balance was unchanged
	Wallet      WalletView       `json:"wallet"`
}

// GetStudentWallet returns a student's balance
// @Summary Get student wallet
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param studentID path int true "Student ID"
// @Success 200 {object} WalletView
// @Failure 400 {object} ErrorResponse
// @Router /admin/wallets/{studentID} [get]
func (h *AdminHandler) GetStudentWallet(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		SendErrorResponse(w, "Invalid student ID", http.StatusBadRequest, nil)
		return
	}

	summary, err := h.ledger.Wallet(r.Context(), studentID)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, walletView(summary))
}

// ListStudentTransactions returns a student's most recent transactions
// @Summary List student transactions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param studentID path int true "Student ID"
// @Param limit query int false "Page size"
// @Success 200 {array} TransactionView
// @Failure 400 {object} ErrorResponse
// @Router /admin/wallets/{studentID}/transactions [get]
func (h *AdminHandler) ListStudentTransactions(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		SendErrorResponse(w, "Invalid student ID", http.StatusBadRequest, nil)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	txns, err := h.ledger.RecentTransactions(r.Context(), studentID, limit)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, transactionViews(txns))
}

// SetStudentBalance overrides a student's balance
// @Summary Override balance
// @Description The difference to the current balance is posted as an adjustment credit or debit.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param studentID path int true "Student ID"
// @Param request body setBalanceRequest true "New balance"
// @Success 200 {object} SetBalanceResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/wallets/{studentID}/balance [put]
func (h *AdminHandler) SetStudentBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	studentID, ok := pathID(r, "studentID")
	if !ok {
		SendErrorResponse(w, "Invalid student ID", http.StatusBadRequest, nil)
		return
	}

	var req setBalanceRequest
	if !h.validator.decodeBody(w, r, &req) {
		return
	}

	txn, err := h.ledger.SetBalance(r.Context(), studentID, req.Balance, p.UserID, req.Reason)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	summary, err := h.ledger.Wallet(r.Context(), studentID)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, SetBalanceResult{
		Transaction: transactionView(txn),
		Wallet:      walletView(summary),
	})
}

// ReconcileStudent recomputes a balance from the transaction log
// @Summary Reconcile wallet
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param studentID path int true "Student ID"
// @Success 200 {object} ReconciliationView
// @Router /admin/wallets/{studentID}/reconciliation [get]
func (h *AdminHandler) ReconcileStudent(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		SendErrorResponse(w, "Invalid student ID", http.StatusBadRequest, nil)
		return
	}

	rec, err := h.ledger.Reconcile(r.Context(), studentID)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, reconciliationView(rec))
}
