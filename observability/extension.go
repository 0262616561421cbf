// Package observability provides a metrics plugin for Paystream that records
// lifecycle event counts and amounts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/plugin"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionUpdated = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionRemoved = (*MetricsExtension)(nil)
	_ plugin.OnSettled             = (*MetricsExtension)(nil)
	_ plugin.OnReserveRejected     = (*MetricsExtension)(nil)
	_ plugin.OnDeposit             = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawal          = (*MetricsExtension)(nil)
	_ plugin.OnStateChanged        = (*MetricsExtension)(nil)
	_ plugin.OnTreasuryPaid        = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed      = (*MetricsExtension)(nil)
	_ plugin.OnReporterAdded       = (*MetricsExtension)(nil)
	_ plugin.OnReporterRemoved     = (*MetricsExtension)(nil)
	_ plugin.OnReporterClaimed     = (*MetricsExtension)(nil)
	_ plugin.OnSourceReported      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide lifecycle metrics.
// Register it as a Paystream plugin to track streaming activity.
type MetricsExtension struct {
	factory MetricFactory

	// Subscription metrics
	SubscriptionCreated Counter
	SubscriptionUpdated Counter
	SubscriptionRemoved Counter
	SubscriptionRate    Histogram

	// Settlement metrics
	Settlements     Counter
	SettledAmount   Histogram
	ReserveRejected Counter

	// Balance metrics
	Deposits         Counter
	DepositAmount    Histogram
	Withdrawals      Counter
	WithdrawalAmount Histogram

	// Treasury metrics
	StateChanges     Counter
	Payouts          Counter
	PayoutAmount     Histogram
	TransferFailures Counter

	// Reporter metrics
	ReportersAdded   Counter
	ReportersRemoved Counter
	ReporterClaims   Counter
	SourcesReported  Counter
	ReportedBalance  Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		SubscriptionCreated: factory.Counter("paystream.subscription.created"),
		SubscriptionUpdated: factory.Counter("paystream.subscription.updated"),
		SubscriptionRemoved: factory.Counter("paystream.subscription.removed"),
		SubscriptionRate:    factory.Histogram("paystream.subscription.rate"),

		Settlements:     factory.Counter("paystream.settlement.count"),
		SettledAmount:   factory.Histogram("paystream.settlement.amount"),
		ReserveRejected: factory.Counter("paystream.reserve.rejected"),

		Deposits:         factory.Counter("paystream.deposit.count"),
		DepositAmount:    factory.Histogram("paystream.deposit.amount"),
		Withdrawals:      factory.Counter("paystream.withdrawal.count"),
		WithdrawalAmount: factory.Histogram("paystream.withdrawal.amount"),

		StateChanges:     factory.Counter("paystream.state.changed"),
		Payouts:          factory.Counter("paystream.treasury.payouts"),
		PayoutAmount:     factory.Histogram("paystream.treasury.payout.amount"),
		TransferFailures: factory.Counter("paystream.treasury.transfer.failures"),

		ReportersAdded:   factory.Counter("paystream.reporter.added"),
		ReportersRemoved: factory.Counter("paystream.reporter.removed"),
		ReporterClaims:   factory.Counter("paystream.reporter.claims"),
		SourcesReported:  factory.Counter("paystream.reporter.reports"),
		ReportedBalance:  factory.Histogram("paystream.reporter.reported.balance"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, sub *subscription.Subscription) error {
	m.SubscriptionCreated.Inc()
	m.SubscriptionRate.Observe(float64(sub.Rate))
	return nil
}

// OnSubscriptionUpdated implements plugin.OnSubscriptionUpdated.
func (m *MetricsExtension) OnSubscriptionUpdated(_ context.Context, sub *subscription.Subscription, _ types.Rate) error {
	m.SubscriptionUpdated.Inc()
	m.SubscriptionRate.Observe(float64(sub.Rate))
	return nil
}

// OnSubscriptionRemoved implements plugin.OnSubscriptionRemoved.
func (m *MetricsExtension) OnSubscriptionRemoved(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionRemoved.Inc()
	return nil
}

// OnSettled implements plugin.OnSettled.
func (m *MetricsExtension) OnSettled(_ context.Context, settlements []*subscription.Settlement) error {
	m.Settlements.Add(float64(len(settlements)))
	for _, s := range settlements {
		m.SettledAmount.Observe(float64(s.Amount))
	}
	return nil
}

// OnReserveRejected implements plugin.OnReserveRejected.
func (m *MetricsExtension) OnReserveRejected(_ context.Context, _ types.AccountID, _, _ types.Amount) error {
	m.ReserveRejected.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (m *MetricsExtension) OnDeposit(_ context.Context, mv *balance.Movement) error {
	m.Deposits.Inc()
	m.DepositAmount.Observe(float64(mv.Amount))
	return nil
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (m *MetricsExtension) OnWithdrawal(_ context.Context, mv *balance.Movement) error {
	m.Withdrawals.Inc()
	m.WithdrawalAmount.Observe(float64(mv.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Treasury hooks
// ──────────────────────────────────────────────────

// OnStateChanged implements plugin.OnStateChanged.
func (m *MetricsExtension) OnStateChanged(_ context.Context, _ *treasury.State) error {
	m.StateChanges.Inc()
	return nil
}

// OnTreasuryPaid implements plugin.OnTreasuryPaid.
func (m *MetricsExtension) OnTreasuryPaid(_ context.Context, p *treasury.Payout) error {
	m.Payouts.Inc()
	m.PayoutAmount.Observe(float64(p.Amount))
	return nil
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(_ context.Context, _ *treasury.Payout, _ error) error {
	m.TransferFailures.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Reporter hooks
// ──────────────────────────────────────────────────

// OnReporterAdded implements plugin.OnReporterAdded.
func (m *MetricsExtension) OnReporterAdded(_ context.Context, _ *reporter.Reporter) error {
	m.ReportersAdded.Inc()
	return nil
}

// OnReporterRemoved implements plugin.OnReporterRemoved.
func (m *MetricsExtension) OnReporterRemoved(_ context.Context, _ *reporter.Reporter) error {
	m.ReportersRemoved.Inc()
	return nil
}

// OnReporterClaimed implements plugin.OnReporterClaimed.
func (m *MetricsExtension) OnReporterClaimed(_ context.Context, _ *reporter.Reporter, _ types.Amount) error {
	m.ReporterClaims.Inc()
	return nil
}

// OnSourceReported implements plugin.OnSourceReported.
func (m *MetricsExtension) OnSourceReported(_ context.Context, rep *reporter.Report) error {
	m.SourcesReported.Inc()
	m.ReportedBalance.Observe(float64(rep.LiveBalance))
	return nil
}
