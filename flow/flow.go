// Package flow indexes subscriptions by the accounts they touch.
//
// Every subscription appears exactly twice: under its source in the
// Outputs direction and under its destination in the Inputs direction.
// Entries for one account and direction are kept in index order.
package flow

import (
	"context"

	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/types"
)

// Direction selects one side of the flow index.
type Direction string

const (
	// Outputs lists subscriptions an account pays into.
	Outputs Direction = "outputs"
	// Inputs lists subscriptions an account is paid by.
	Inputs Direction = "inputs"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == Outputs || d == Inputs }

// Flows holds both sides of the index for one account.
type Flows struct {
	Account types.AccountID      `json:"account"`
	Inputs  []subscription.Index `json:"inputs"`
	Outputs []subscription.Index `json:"outputs"`
}

// All returns the inputs followed by the outputs.
func (f *Flows) All() []subscription.Index {
	all := make([]subscription.Index, 0, len(f.Inputs)+len(f.Outputs))
	all = append(all, f.Inputs...)
	return append(all, f.Outputs...)
}

// Store persists the flow index.
type Store interface {
	AppendFlow(ctx context.Context, dir Direction, account types.AccountID, idx subscription.Index) error
	RemoveFlow(ctx context.Context, dir Direction, account types.AccountID, idx subscription.Index) error
	ListFlows(ctx context.Context, dir Direction, account types.AccountID) ([]subscription.Index, error)
}
