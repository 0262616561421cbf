package paystream

import (
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/types"
)

// Re-export common types so callers rarely need the types package.

// AccountID is re-exported from the types package.
type AccountID = types.AccountID

// Amount is re-exported from the types package.
type Amount = types.Amount

// Rate is re-exported from the types package.
type Rate = types.Rate

// Index is re-exported from the subscription package.
type Index = subscription.Index

// Clock is re-exported from the types package.
type Clock = types.Clock

// ClockFunc is re-exported from the types package.
type ClockFunc = types.ClockFunc
