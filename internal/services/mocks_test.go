package services

import (
	"context"
	"testing"
	"time"

	"github.com/lmsledger/backend/internal/config"
	"github.com/lmsledger/backend/internal/events"
	"github.com/lmsledger/backend/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event *events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, studentID int64) (bool, error) {
	args := m.Called(ctx, studentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLimiter) Record(ctx context.Context, studentID int64) error {
	args := m.Called(ctx, studentID)
	return args.Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		MinWithdrawal: dec("500.00"),
		PageSize:      20,
		MaxPageSize:   100,
	}
}

func testPolicies(t *testing.T) *RewardPolicies {
	t.Helper()
	policies, err := NewRewardPolicies(map[string]config.RewardPolicyConfig{
		"quiz": {
			Policy:            PolicyPerfectScore,
			BaseAmount:        dec("50.00"),
			PassingPercentage: dec("100"),
			Multiplier:        dec("2"),
		},
		"assessment": {
			Policy:            PolicyPassingProportional,
			BaseAmount:        dec("100.00"),
			PassingPercentage: dec("50"),
			Multiplier:        dec("1"),
		},
	})
	require.NoError(t, err)
	return policies
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, students ...int64) (*LedgerService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore(students...)
	svc := NewLedgerService(store, testLedgerConfig(), testPolicies(t),
		WithClock(func() time.Time { return fixedNow }),
	)
	return svc, store
}

// requireConsistent checks that the cached balance equals the signed sum of
// the student's transactions.
func requireConsistent(t *testing.T, svc *LedgerService, studentID int64) {
	t.Helper()
	rec, err := svc.Reconcile(context.Background(), studentID)
	require.NoError(t, err)
	require.True(t, rec.Consistent, "cached %s, ledger %s", rec.CachedBalance, rec.LedgerBalance)
}
