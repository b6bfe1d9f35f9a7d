package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/lmsledger/backend/internal/config"
	"github.com/lmsledger/backend/internal/middleware"
	"github.com/lmsledger/backend/internal/models"
	"github.com/lmsledger/backend/internal/repository"
	"github.com/lmsledger/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	student      int64 = 42
	otherStudent int64 = 43
	adminID      int64 = 1
	instructorID int64 = 2
)

var (
	asStudent    = &models.Principal{UserID: student, Role: models.RoleStudent}
	asOther      = &models.Principal{UserID: otherStudent, Role: models.RoleStudent}
	asAdmin      = &models.Principal{UserID: adminID, Role: models.RoleAdmin}
	asInstructor = &models.Principal{UserID: instructorID, Role: models.RoleInstructor}
)

func newTestLedger(t *testing.T) *services.LedgerService {
	t.Helper()
	policies, err := services.NewRewardPolicies(map[string]config.RewardPolicyConfig{
		"quiz": {
			Policy:            services.PolicyPerfectScore,
			BaseAmount:        decimal.RequireFromString("50.00"),
			PassingPercentage: decimal.NewFromInt(100),
			Multiplier:        decimal.NewFromInt(2),
		},
		"assessment": {
			Policy:            services.PolicyPassingProportional,
			BaseAmount:        decimal.RequireFromString("100.00"),
			PassingPercentage: decimal.NewFromInt(50),
			Multiplier:        decimal.NewFromInt(1),
		},
	})
	require.NoError(t, err)

	store := repository.NewMemoryStore(student, otherStudent)
	return services.NewLedgerService(store, config.LedgerConfig{
		MinWithdrawal: decimal.RequireFromString("500.00"),
		PageSize:      20,
		MaxPageSize:   100,
	}, policies)
}

func credit(t *testing.T, ledger *services.LedgerService, studentID int64, amount string) {
	t.Helper()
	_, err := ledger.Credit(context.Background(), services.Posting{
		StudentID: studentID,
		Amount:    decimal.RequireFromString(amount),
		Reason:    "seed",
	})
	require.NoError(t, err)
}

// serve routes a single request through a chi router so URL params resolve.
func serve(handler http.HandlerFunc, method, pattern, target, body string, p *models.Principal) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handler)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), *p))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

var nopLogger = zap.NewNop()

func decimalOf(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
