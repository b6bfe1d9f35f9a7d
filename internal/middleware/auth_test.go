package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lmsledger/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-User", string(p.Role))
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatorMiddleware(t *testing.T) {
	auth := NewAuthenticator(testSecret, nil, nil)
	handler := auth.Middleware(echoPrincipal())

	valid := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"role":    "student",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantRole   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "student"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.MapClaims{"user_id": 42, "role": "student"}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.MapClaims{
			"user_id": 42, "role": "student", "exp": time.Now().Add(-time.Hour).Unix(),
		}), http.StatusUnauthorized, ""},
		{"unknown role", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"user_id": 42, "role": "root"}), http.StatusUnauthorized, ""},
		{"missing user", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"role": "admin"}), http.StatusUnauthorized, ""},
		{"string user id", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"user_id": "7", "role": "admin"}), http.StatusOK, "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantRole, rr.Header().Get("X-User"))
		})
	}
}

func TestAuthenticatorRevokedToken(t *testing.T) {
	db, mock := redismock.NewClientMock()
	auth := NewAuthenticator(testSecret, db, nil)
	handler := auth.Middleware(echoPrincipal())

	token := signToken(t, testSecret, jwt.MapClaims{"user_id": 1, "role": "admin"})

	t.Run("revoked", func(t *testing.T) {
		mock.ExpectExists("blacklist:" + token).SetVal(1)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("redis error fails open", func(t *testing.T) {
		mock.ExpectExists("blacklist:" + token).SetErr(errors.New("connection refused"))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(models.RoleAdmin, models.RoleInstructor)(echoPrincipal())

	tests := []struct {
		name       string
		principal  *models.Principal
		wantStatus int
	}{
		{"admin", &models.Principal{UserID: 1, Role: models.RoleAdmin}, http.StatusOK},
		{"instructor", &models.Principal{UserID: 2, Role: models.RoleInstructor}, http.StatusOK},
		{"student", &models.Principal{UserID: 3, Role: models.RoleStudent}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), *tt.principal))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
