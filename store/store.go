// Package store defines the unified persistence contract of the ledger.
package store

import (
	"context"

	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/flow"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// Store is the unified storage interface for all Paystream records.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// so every backend can be checked against one list.
type Store interface {
	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, idx subscription.Index) (*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error
	DeleteSubscription(ctx context.Context, idx subscription.Index) error
	ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error)

	// Flow index methods
	AppendFlow(ctx context.Context, dir flow.Direction, account types.AccountID, idx subscription.Index) error
	RemoveFlow(ctx context.Context, dir flow.Direction, account types.AccountID, idx subscription.Index) error
	ListFlows(ctx context.Context, dir flow.Direction, account types.AccountID) ([]subscription.Index, error)

	// Balance methods
	GetBalance(ctx context.Context, account types.AccountID) (types.Amount, error)
	SetBalance(ctx context.Context, account types.AccountID, amount types.Amount) error
	ListBalances(ctx context.Context) ([]*balance.Account, error)
	CreateMovement(ctx context.Context, m *balance.Movement) error
	ListMovements(ctx context.Context, account types.AccountID, opts balance.ListOpts) ([]*balance.Movement, error)

	// Treasury methods
	GetState(ctx context.Context) (*treasury.State, error)
	SaveState(ctx context.Context, s *treasury.State) error
	CreatePayout(ctx context.Context, p *treasury.Payout) error
	ListPayouts(ctx context.Context, opts treasury.ListOpts) ([]*treasury.Payout, error)

	// Reporter methods
	CreateReporter(ctx context.Context, r *reporter.Reporter) error
	GetReporter(ctx context.Context, account types.AccountID) (*reporter.Reporter, error)
	UpdateReporter(ctx context.Context, r *reporter.Reporter) error
	DeleteReporter(ctx context.Context, account types.AccountID) error
	ListReporters(ctx context.Context) ([]*reporter.Reporter, error)
	CreateReport(ctx context.Context, r *reporter.Report) error
	ListReports(ctx context.Context, opts reporter.ListOpts) ([]*reporter.Report, error)

	// Tx runs fn against a transactional view of the store. Every write
	// made through that view is committed when fn returns nil and
	// discarded otherwise.
	Tx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time checks that Store satisfies every record store.
var (
	_ subscription.Store = Store(nil)
	_ flow.Store         = Store(nil)
	_ balance.Store      = Store(nil)
	_ treasury.Store     = Store(nil)
	_ reporter.Store     = Store(nil)
)
