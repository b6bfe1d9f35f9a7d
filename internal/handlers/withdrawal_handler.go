package handlers

import (
	"net/http"

	"github.com/lmsledger/backend/internal/middleware"
	"github.com/lmsledger/backend/internal/models"
	"github.com/lmsledger/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WithdrawalHandler struct {
	ledger    *services.LedgerService
	validator *ValidationHelper
	logger    *zap.Logger
}

func NewWithdrawalHandler(ledger *services.LedgerService, logger *zap.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{
		ledger:    ledger,
		validator: NewValidationHelper(),
		logger:    logger.Named("withdrawals"),
	}
}

type createWithdrawalRequest struct {
	Amount      decimal.Decimal    `json:"amount" validate:"gt=0"`
	BankDetails models.BankDetails `json:"bank_details"`
}

type rejectWithdrawalRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CreateWithdrawal files a withdrawal request for the caller
// @Summary Request withdrawal
// @Description Creates a pending request. No funds move until an administrator approves it.
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createWithdrawalRequest true "Withdrawal request"
// @Success 201 {object} WithdrawalView
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Below minimum or insufficient funds"
// @Failure 429 {object} ErrorResponse
// @Router /withdrawals [post]
func (h *WithdrawalHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createWithdrawalRequest
	if !h.validator.decodeBody(w, r, &req) {
		return
	}

	wr, err := h.ledger.RequestWithdrawal(r.Context(), p.UserID, req.Amount, req.BankDetails)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, withdrawalView(wr))
}

// ListWithdrawals lists withdrawal requests
// @Summary List withdrawal requests
// @Description Students see their own requests; administrators see all, optionally narrowed by student.
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param student_id query int false "Administrators only"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} WithdrawalView
// @Failure 400 {object} ErrorResponse
// @Router /withdrawals [get]
func (h *WithdrawalHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	filter := models.WithdrawalFilter{Status: models.WithdrawalStatus(r.URL.Query().Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		SendErrorResponse(w, "status must be pending, approved or rejected", http.StatusBadRequest, nil)
		return
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	switch {
	case !p.Is(models.RoleAdmin):
		filter.StudentID = &p.UserID
	case r.URL.Query().Get("student_id") != "":
		studentID, err := queryInt(r, "student_id", 0)
		if err != nil || studentID == 0 {
			SendErrorResponse(w, "student_id must be a positive integer", http.StatusBadRequest, nil)
			return
		}
		sid := int64(studentID)
		filter.StudentID = &sid
	}

	reqs, err := h.ledger.ListWithdrawalRequests(r.Context(), filter)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, withdrawalViews(reqs))
}

// GetWithdrawal returns one request
// @Summary Get withdrawal request
// @Description Visible to its owner and to administrators.
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Withdrawal request ID"
// @Success 200 {object} WithdrawalView
// @Failure 404 {object} ErrorResponse
// @Router /withdrawals/{id} [get]
func (h *WithdrawalHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		SendErrorResponse(w, "Invalid withdrawal request ID", http.StatusBadRequest, nil)
		return
	}

	wr, err := h.ledger.GetWithdrawalRequest(r.Context(), id)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	// other students' requests are reported as missing
	if wr.StudentID != p.UserID && !p.Is(models.RoleAdmin) {
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "withdrawal request not found", Code: "not_found"})
		return
	}
	respondJSON(w, http.StatusOK, withdrawalView(wr))
}

// ApproveWithdrawal pays out a pending request
// @Summary Approve withdrawal
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Withdrawal request ID"
// @Success 200 {object} WithdrawalView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already processed"
// @Failure 422 {object} ErrorResponse "Insufficient funds"
// @Router /withdrawals/{id}/approve [post]
func (h *WithdrawalHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		SendErrorResponse(w, "Invalid withdrawal request ID", http.StatusBadRequest, nil)
		return
	}

	wr, err := h.ledger.ApproveWithdrawal(r.Context(), id, p.UserID)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, withdrawalView(wr))
}

// RejectWithdrawal closes a pending request without paying it
// @Summary Reject withdrawal
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Withdrawal request ID"
// @Param request body rejectWithdrawalRequest true "Rejection reason"
// @Success 200 {object} WithdrawalView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already processed"
// @Router /withdrawals/{id}/reject [post]
func (h *WithdrawalHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		SendErrorResponse(w, "Invalid withdrawal request ID", http.StatusBadRequest, nil)
		return
	}

	var req rejectWithdrawalRequest
	if !h.validator.decodeBody(w, r, &req) {
		return
	}

	wr, err := h.ledger.RejectWithdrawal(r.Context(), id, p.UserID, req.Reason)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, withdrawalView(wr))
}
