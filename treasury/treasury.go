// Package treasury holds the ledger's administrative state and the
// gateway through which the treasury account pays out.
package treasury

import (
	"context"
	"time"

	"github.com/xraph/paystream/id"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/types"
)

// State is the singleton administrative record of a ledger.
type State struct {
	types.Entity
	Owner types.AccountID `json:"owner"`
	// Treasury is empty until the owner designates one.
	Treasury types.AccountID `json:"treasury,omitempty"`
	// ReserveHorizon is how long a source's live balance must be able to
	// fund all of its outbound rates.
	ReserveHorizon time.Duration      `json:"reserve_horizon"`
	LastIndex      subscription.Index `json:"last_index"`
}

// HasTreasury reports whether a treasury account has been set.
func (s *State) HasTreasury() bool { return s.Treasury != "" }

// NextIndex returns the index the next subscription will receive.
func (s *State) NextIndex() subscription.Index { return s.LastIndex + 1 }

// HorizonSeconds returns ReserveHorizon in whole seconds.
func (s *State) HorizonSeconds() int64 { return int64(s.ReserveHorizon / time.Second) }

// Payout records a successful transfer out of the treasury.
type Payout struct {
	ID          id.PayoutID     `json:"id"`
	Treasury    types.AccountID `json:"treasury"`
	Destination types.AccountID `json:"destination"`
	Amount      types.Amount    `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Transferer moves tokens out of the ledger to an external destination.
// A returned error aborts the payout that triggered it.
type Transferer interface {
	Transfer(ctx context.Context, p *Payout) error
}

// TransferFunc adapts a function to a Transferer.
type TransferFunc func(ctx context.Context, p *Payout) error

// Transfer implements Transferer.
func (f TransferFunc) Transfer(ctx context.Context, p *Payout) error { return f(ctx, p) }

// NoopTransferer accepts every payout without side effects.
var NoopTransferer Transferer = TransferFunc(func(context.Context, *Payout) error { return nil })

// Store persists the state singleton and payouts.
type Store interface {
	GetState(ctx context.Context) (*State, error)
	SaveState(ctx context.Context, s *State) error

	CreatePayout(ctx context.Context, p *Payout) error
	ListPayouts(ctx context.Context, opts ListOpts) ([]*Payout, error)
}

// ListOpts pages payouts, oldest first.
type ListOpts struct {
	Destination types.AccountID
	Limit       int
	Offset      int
}
