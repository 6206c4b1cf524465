package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfman30/booking-console/internal/tenancy"
)

type contextKey string

const operatorClaimsKey contextKey = "operatorClaims"

// AccountHeader carries the operator account id when header auth is allowed.
const AccountHeader = "X-Account-Id"

// OperatorClaims are the claims of an operator token. AccountID falls back to
// the subject when absent.
type OperatorClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id,omitempty"`
}

// Account returns the operator account id named by the claims.
func (c OperatorClaims) Account() string {
	if id := strings.TrimSpace(c.AccountID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}

// OperatorAuthConfig configures OperatorAuth.
type OperatorAuthConfig struct {
	// Secret verifies HMAC-signed bearer tokens. Empty disables token auth.
	Secret string
	// AllowAccountHeader accepts the X-Account-Id header when no bearer token
	// is sent. Meant for local development behind a trusted proxy.
	AllowAccountHeader bool
}

// OperatorAuth resolves the operator account of a request and stores it in the
// request context. Requests without a usable identity get 401.
func OperatorAuth(cfg OperatorAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			auth := r.Header.Get("Authorization")

			switch {
			case strings.HasPrefix(auth, "Bearer ") && cfg.Secret != "":
				claims, ok := parseOperatorToken(strings.TrimPrefix(auth, "Bearer "), cfg.Secret)
				if !ok || claims.Account() == "" {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				accountID, err := tenancy.ParseAccountID(claims.Account())
				if err != nil {
					http.Error(w, "invalid account id", http.StatusUnauthorized)
					return
				}
				ctx = context.WithValue(ctx, operatorClaimsKey, claims)
				ctx = tenancy.WithAccountID(ctx, accountID)
			case cfg.AllowAccountHeader && strings.TrimSpace(r.Header.Get(AccountHeader)) != "":
				accountID, err := tenancy.ParseAccountID(r.Header.Get(AccountHeader))
				if err != nil {
					http.Error(w, "invalid account id", http.StatusUnauthorized)
					return
				}
				ctx = tenancy.WithAccountID(ctx, accountID)
			case cfg.Secret == "" && !cfg.AllowAccountHeader:
				http.Error(w, "operator auth disabled", http.StatusUnauthorized)
				return
			default:
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseOperatorToken(tokenString, secret string) (OperatorClaims, bool) {
	claims := OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return OperatorClaims{}, false
	}
	return claims, true
}

// OperatorClaimsFromContext returns the operator token claims if present.
func OperatorClaimsFromContext(ctx context.Context) (OperatorClaims, bool) {
	claims, ok := ctx.Value(operatorClaimsKey).(OperatorClaims)
	return claims, ok
}
