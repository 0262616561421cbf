// Package audithook bridges Paystream lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/plugin"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated = (*Extension)(nil)
	_ plugin.OnSubscriptionUpdated = (*Extension)(nil)
	_ plugin.OnSubscriptionRemoved = (*Extension)(nil)
	_ plugin.OnSettled             = (*Extension)(nil)
	_ plugin.OnReserveRejected     = (*Extension)(nil)
	_ plugin.OnDeposit             = (*Extension)(nil)
	_ plugin.OnWithdrawal          = (*Extension)(nil)
	_ plugin.OnStateChanged        = (*Extension)(nil)
	_ plugin.OnTreasuryPaid        = (*Extension)(nil)
	_ plugin.OnTransferFailed      = (*Extension)(nil)
	_ plugin.OnReporterAdded       = (*Extension)(nil)
	_ plugin.OnReporterRemoved     = (*Extension)(nil)
	_ plugin.OnReporterClaimed     = (*Extension)(nil)
	_ plugin.OnSourceReported      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Paystream lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategoryStreaming, nil,
		"source", sub.Source.String(),
		"destination", sub.Destination.String(),
		"rate", int64(sub.Rate),
	)
}

// OnSubscriptionUpdated implements plugin.OnSubscriptionUpdated.
func (e *Extension) OnSubscriptionUpdated(ctx context.Context, sub *subscription.Subscription, oldRate types.Rate) error {
	return e.record(ctx, ActionSubscriptionUpdated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategoryStreaming, nil,
		"old_rate", int64(oldRate),
		"new_rate", int64(sub.Rate),
	)
}

// OnSubscriptionRemoved implements plugin.OnSubscriptionRemoved.
func (e *Extension) OnSubscriptionRemoved(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionRemoved, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategoryStreaming, nil,
		"source", sub.Source.String(),
		"destination", sub.Destination.String(),
	)
}

// OnSettled implements plugin.OnSettled. One event is recorded per settlement.
func (e *Extension) OnSettled(ctx context.Context, settlements []*subscription.Settlement) error {
	for _, s := range settlements {
		_ = e.record(ctx, ActionSettled, SeverityInfo, OutcomeSuccess,
			ResourceSubscription, s.Subscription.String(), CategoryStreaming, nil,
			"settlement_id", s.ID.String(),
			"amount", s.Amount.String(),
			"tokens", s.Amount.Tokens(),
			"from", s.From,
			"to", s.To,
		)
	}
	return nil
}

// OnReserveRejected implements plugin.OnReserveRejected.
func (e *Extension) OnReserveRejected(ctx context.Context, source types.AccountID, required, available types.Amount) error {
	return e.record(ctx, ActionReserveRejected, SeverityWarning, OutcomeFailure,
		ResourceAccount, source.String(), CategorySolvency, nil,
		"required", required.String(),
		"available", available.String(),
	)
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (e *Extension) OnDeposit(ctx context.Context, m *balance.Movement) error {
	return e.record(ctx, ActionDeposit, SeverityInfo, OutcomeSuccess,
		ResourceAccount, m.Account.String(), CategoryBalance, nil,
		"movement_id", m.ID.String(),
		"amount", m.Amount.String(),
		"tokens", m.Amount.Tokens(),
	)
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (e *Extension) OnWithdrawal(ctx context.Context, m *balance.Movement) error {
	return e.record(ctx, ActionWithdrawal, SeverityInfo, OutcomeSuccess,
		ResourceAccount, m.Account.String(), CategoryBalance, nil,
		"movement_id", m.ID.String(),
		"amount", m.Amount.String(),
		"tokens", m.Amount.Tokens(),
	)
}

// ──────────────────────────────────────────────────
// Treasury hooks
// ──────────────────────────────────────────────────

// OnStateChanged implements plugin.OnStateChanged.
func (e *Extension) OnStateChanged(ctx context.Context, state *treasury.State) error {
	return e.record(ctx, ActionStateChanged, SeverityWarning, OutcomeSuccess,
		ResourceTreasury, state.Treasury.String(), CategoryGovernance, nil,
		"owner", state.Owner.String(),
		"reserve_horizon", state.ReserveHorizon.String(),
	)
}

// OnTreasuryPaid implements plugin.OnTreasuryPaid.
func (e *Extension) OnTreasuryPaid(ctx context.Context, p *treasury.Payout) error {
	return e.record(ctx, ActionTreasuryPaid, SeverityInfo, OutcomeSuccess,
		ResourcePayout, p.ID.String(), CategoryPayment, nil,
		"treasury", p.Treasury.String(),
		"destination", p.Destination.String(),
		"amount", p.Amount.String(),
		"tokens", p.Amount.Tokens(),
	)
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(ctx context.Context, p *treasury.Payout, err error) error {
	return e.record(ctx, ActionTransferFailed, SeverityError, OutcomeFailure,
		ResourcePayout, p.ID.String(), CategoryPayment, err,
		"destination", p.Destination.String(),
		"amount", p.Amount.String(),
		"tokens", p.Amount.Tokens(),
	)
}

// ──────────────────────────────────────────────────
// Reporter hooks
// ──────────────────────────────────────────────────

// OnReporterAdded implements plugin.OnReporterAdded.
func (e *Extension) OnReporterAdded(ctx context.Context, r *reporter.Reporter) error {
	return e.record(ctx, ActionReporterAdded, SeverityInfo, OutcomeSuccess,
		ResourceReporter, r.Account.String(), CategorySolvency, nil,
		"stake", r.Stake.String(),
	)
}

// OnReporterRemoved implements plugin.OnReporterRemoved.
func (e *Extension) OnReporterRemoved(ctx context.Context, r *reporter.Reporter) error {
	return e.record(ctx, ActionReporterRemoved, SeverityInfo, OutcomeSuccess,
		ResourceReporter, r.Account.String(), CategorySolvency, nil,
		"refund", r.Stake.String(),
	)
}

// OnReporterClaimed implements plugin.OnReporterClaimed.
func (e *Extension) OnReporterClaimed(ctx context.Context, r *reporter.Reporter, amount types.Amount) error {
	return e.record(ctx, ActionReporterClaimed, SeverityInfo, OutcomeSuccess,
		ResourceReporter, r.Account.String(), CategorySolvency, nil,
		"amount", amount.String(),
		"remaining_stake", r.Stake.String(),
	)
}

// OnSourceReported implements plugin.OnSourceReported.
func (e *Extension) OnSourceReported(ctx context.Context, rep *reporter.Report) error {
	return e.record(ctx, ActionSourceReported, SeverityCritical, OutcomeSuccess,
		ResourceReport, rep.ID.String(), CategorySolvency, nil,
		"reporter", rep.Reporter.String(),
		"source", rep.Source.String(),
		"live_balance", rep.LiveBalance.String(),
		"reporter_share", rep.ReporterShare.String(),
		"treasury_share", rep.TreasuryShare.String(),
	)
}

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged and never propagated.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
