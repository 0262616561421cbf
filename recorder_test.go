package paystream_test

import (
	"context"
	"sync"

	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// recorder counts the hook invocations it receives.
type recorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecorder() *recorder { return &recorder{counts: make(map[string]int)} }

func (r *recorder) add(name string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name] += n
	return nil
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnSubscriptionCreated(context.Context, *subscription.Subscription) error {
	return r.add("created", 1)
}

func (r *recorder) OnSubscriptionUpdated(context.Context, *subscription.Subscription, types.Rate) error {
	return r.add("updated", 1)
}

func (r *recorder) OnSubscriptionRemoved(context.Context, *subscription.Subscription) error {
	return r.add("removed", 1)
}

func (r *recorder) OnSettled(_ context.Context, s []*subscription.Settlement) error {
	return r.add("settled", len(s))
}

func (r *recorder) OnReserveRejected(context.Context, types.AccountID, types.Amount, types.Amount) error {
	return r.add("reserve_rejected", 1)
}

func (r *recorder) OnDeposit(context.Context, *balance.Movement) error {
	return r.add("deposit", 1)
}

func (r *recorder) OnWithdrawal(context.Context, *balance.Movement) error {
	return r.add("withdrawal", 1)
}

func (r *recorder) OnStateChanged(context.Context, *treasury.State) error {
	return r.add("state_changed", 1)
}

func (r *recorder) OnTreasuryPaid(context.Context, *treasury.Payout) error {
	return r.add("paid", 1)
}

func (r *recorder) OnTransferFailed(context.Context, *treasury.Payout, error) error {
	return r.add("transfer_failed", 1)
}

func (r *recorder) OnReporterAdded(context.Context, *reporter.Reporter) error {
	return r.add("reporter_added", 1)
}

func (r *recorder) OnReporterRemoved(context.Context, *reporter.Reporter) error {
	return r.add("reporter_removed", 1)
}

func (r *recorder) OnReporterClaimed(context.Context, *reporter.Reporter, types.Amount) error {
	return r.add("reporter_claimed", 1)
}

func (r *recorder) OnSourceReported(context.Context, *reporter.Report) error {
	return r.add("reported", 1)
}
