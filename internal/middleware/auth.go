package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lmsledger/backend/internal/models"
	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

var (
	errMissingClaim = errors.New("missing claim")
	errRevoked      = errors.New("token revoked")
)

// Authenticator resolves the caller's principal from a bearer JWT.
type Authenticator struct {
	secret []byte
	rdb    *redis.Client // nil disables the revocation check
	logger *zap.Logger
}

func NewAuthenticator(secret string, rdb *redis.Client, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{secret: []byte(secret), rdb: rdb, logger: logger}
}

// Middleware rejects requests without a valid token and stores the principal
// in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		principal, err := a.validateToken(r.Context(), parts[1])
		if err != nil {
			a.logger.Debug("token rejected", zap.Error(err))
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (a *Authenticator) validateToken(ctx context.Context, tokenString string) (models.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Principal{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Principal{}, jwt.ErrTokenInvalidClaims
	}

	userID, err := userIDClaim(claims["user_id"])
	if err != nil {
		return models.Principal{}, err
	}
	roleClaim, _ := claims["role"].(string)
	role, ok := models.ParseRole(roleClaim)
	if !ok {
		return models.Principal{}, fmt.Errorf("%w: role", errMissingClaim)
	}

	if a.rdb != nil {
		n, err := a.rdb.Exists(ctx, "blacklist:"+tokenString).Result()
		if err != nil {
			// Redis outage should not lock everyone out.
			a.logger.Warn("token blacklist check failed", zap.Error(err))
		} else if n > 0 {
			return models.Principal{}, errRevoked
		}
	}

	return models.Principal{UserID: userID, Role: role}, nil
}

func userIDClaim(v any) (int64, error) {
	switch id := v.(type) {
	case float64:
		if id > 0 && id == float64(int64(id)) {
			return int64(id), nil
		}
	case string:
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: user_id", errMissingClaim)
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

// RequireRole lets the request through only when the principal has one of
// the given roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !p.Is(roles...) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
