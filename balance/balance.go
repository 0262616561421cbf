// Package balance defines stored account balances and the movements that
// bring value into or out of the ledger.
package balance

import (
	"context"
	"time"

	"github.com/xraph/paystream/id"
	"github.com/xraph/paystream/types"
)

// Account is the stored (settled) balance of one participant. The live
// balance additionally includes accrual since each subscription's last
// settlement.
type Account struct {
	types.Entity
	Account types.AccountID `json:"account"`
	Stored  types.Amount    `json:"stored"`
}

// Kind classifies a Movement.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindPayout     Kind = "payout"
)

// Movement records value crossing the ledger boundary.
type Movement struct {
	ID        id.MovementID   `json:"id"`
	Account   types.AccountID `json:"account"`
	Kind      Kind            `json:"kind"`
	Amount    types.Amount    `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists stored balances and movements.
type Store interface {
	// GetBalance returns zero for accounts that were never written.
	GetBalance(ctx context.Context, account types.AccountID) (types.Amount, error)
	SetBalance(ctx context.Context, account types.AccountID, amount types.Amount) error
	ListBalances(ctx context.Context) ([]*Account, error)

	CreateMovement(ctx context.Context, m *Movement) error
	ListMovements(ctx context.Context, account types.AccountID, opts ListOpts) ([]*Movement, error)
}

// ListOpts filters and pages movements, oldest first.
type ListOpts struct {
	Kind   Kind
	Limit  int
	Offset int
}
