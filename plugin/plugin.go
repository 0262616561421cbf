// Package plugin provides an extensible plugin system for Paystream.
// Plugins can hook into ledger lifecycle events to extend functionality.
// Hooks run after the operation that triggered them has committed.
package plugin

import (
	"context"

	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called when a new subscription is added.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionUpdated is called when a subscription's rate changes.
type OnSubscriptionUpdated interface {
	Plugin
	OnSubscriptionUpdated(ctx context.Context, sub *subscription.Subscription, oldRate types.Rate) error
}

// OnSubscriptionRemoved is called when a subscription is removed.
type OnSubscriptionRemoved interface {
	Plugin
	OnSubscriptionRemoved(ctx context.Context, sub *subscription.Subscription) error
}

// OnSettled is called with every non-empty batch of settlements.
type OnSettled interface {
	Plugin
	OnSettled(ctx context.Context, settlements []*subscription.Settlement) error
}

// OnReserveRejected is called when a reserve check refuses an obligation.
type OnReserveRejected interface {
	Plugin
	OnReserveRejected(ctx context.Context, source types.AccountID, required, available types.Amount) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnDeposit is called when value enters the ledger.
type OnDeposit interface {
	Plugin
	OnDeposit(ctx context.Context, m *balance.Movement) error
}

// OnWithdrawal is called when value leaves the ledger through a withdrawal.
type OnWithdrawal interface {
	Plugin
	OnWithdrawal(ctx context.Context, m *balance.Movement) error
}

// ──────────────────────────────────────────────────
// Treasury hooks
// ──────────────────────────────────────────────────

// OnStateChanged is called when owner, treasury or reserve horizon change.
type OnStateChanged interface {
	Plugin
	OnStateChanged(ctx context.Context, state *treasury.State) error
}

// OnTreasuryPaid is called after a payout committed.
type OnTreasuryPaid interface {
	Plugin
	OnTreasuryPaid(ctx context.Context, p *treasury.Payout) error
}

// OnTransferFailed is called when the transferer rejected a payout.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, p *treasury.Payout, err error) error
}

// TransfererPlugin provides the treasury transfer implementation.
type TransfererPlugin interface {
	Plugin
	Transferer() treasury.Transferer
}

// ──────────────────────────────────────────────────
// Reporter hooks
// ──────────────────────────────────────────────────

// OnReporterAdded is called when an account stakes as a reporter.
type OnReporterAdded interface {
	Plugin
	OnReporterAdded(ctx context.Context, r *reporter.Reporter) error
}

// OnReporterRemoved is called when a reporter leaves and is refunded.
type OnReporterRemoved interface {
	Plugin
	OnReporterRemoved(ctx context.Context, r *reporter.Reporter) error
}

// OnReporterClaimed is called when a reporter claims part of its stake.
type OnReporterClaimed interface {
	Plugin
	OnReporterClaimed(ctx context.Context, r *reporter.Reporter, amount types.Amount) error
}

// OnSourceReported is called when an insolvent source was flagged.
type OnSourceReported interface {
	Plugin
	OnSourceReported(ctx context.Context, rep *reporter.Report) error
}
