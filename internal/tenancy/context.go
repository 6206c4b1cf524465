// Package tenancy carries the operator account of a request. Every piece of
// console state is partitioned by that account.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxAccountIDLength bounds an account id; ids become storage key prefixes.
const MaxAccountIDLength = 128

// ErrInvalidAccountID is returned by ParseAccountID.
var ErrInvalidAccountID = errors.New("tenancy: invalid account id")

type ctxKey struct{}

// ParseAccountID trims raw and checks it can scope storage keys: non-empty,
// bounded, and made of letters, digits and ._@- only. The ':' separator of
// namespaced keys is rejected so that one account can never address
// another's keys.
func ParseAccountID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAccountID)
	}
	if len(id) > MaxAccountIDLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidAccountID, MaxAccountIDLength)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '@', r == '-':
		default:
			return "", fmt.Errorf("%w: unexpected %q", ErrInvalidAccountID, r)
		}
	}
	return id, nil
}

// WithAccountID stores an account id, as returned by ParseAccountID, in ctx.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, accountID)
}

// AccountIDFromContext returns the account id of ctx. Empty ids count as absent.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	accountID, _ := ctx.Value(ctxKey{}).(string)
	return accountID, accountID != ""
}
