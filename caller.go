package paystream

import (
	"context"
	"slices"

	"github.com/xraph/paystream/types"
)

type callerKey struct{}

// WithCaller returns a context carrying the authenticated account that
// issues ledger calls. Authentication itself happens before the ledger.
func WithCaller(ctx context.Context, account types.AccountID) context.Context {
	return context.WithValue(ctx, callerKey{}, account)
}

// CallerFrom returns the caller stored by WithCaller.
func CallerFrom(ctx context.Context) (types.AccountID, bool) {
	a, ok := ctx.Value(callerKey{}).(types.AccountID)
	return a, ok && a != ""
}

// requireCaller fails with ErrUnauthorized unless the caller is one of allowed.
func requireCaller(ctx context.Context, allowed ...types.AccountID) (types.AccountID, error) {
	caller, ok := CallerFrom(ctx)
	if !ok || !slices.Contains(allowed, caller) {
		return "", ErrUnauthorized
	}
	return caller, nil
}
