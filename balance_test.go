package paystream_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

func TestDepositAndWithdraw(t *testing.T) {
	rec := newRecorder()
	f := newFixture(t, paystream.WithPlugin(rec))
	ctx := context.Background()

	if _, err := f.ledger.Deposit(as("bob"), "alice", 10); !errors.Is(err, paystream.ErrUnauthorized) {
		t.Errorf("deposit for someone else = %v", err)
	}
	if _, err := f.ledger.Deposit(as("alice"), "alice", -1); !errors.Is(err, paystream.ErrInvalidInput) {
		t.Errorf("negative deposit = %v", err)
	}

	f.deposit("alice", 10_000)
	f.subscribe("alice", "bob", 1)

	if _, err := f.ledger.Withdraw(as("alice"), "alice", 20_000); !errors.Is(err, paystream.ErrInsufficientBalance) {
		t.Errorf("overdraw = %v, want ErrInsufficientBalance", err)
	}
	if _, err := f.ledger.Withdraw(as("alice"), "alice", 6_401); !errors.Is(err, paystream.ErrInsufficientReserve) {
		t.Errorf("withdraw into reserve = %v, want ErrInsufficientReserve", err)
	}
	m, err := f.ledger.Withdraw(as("alice"), "alice", 6_400)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if m.Kind != balance.KindWithdrawal || m.Amount != 6_400 {
		t.Errorf("movement = %+v", m)
	}
	if got := f.balance("alice"); got != 3_600 {
		t.Errorf("alice = %d, want 3600", got)
	}

	moves, _ := f.ledger.Movements(ctx, "alice", balance.ListOpts{})
	if len(moves) != 2 {
		t.Errorf("movements = %d, want 2", len(moves))
	}
	if rec.count("deposit") != 1 || rec.count("withdrawal") != 1 || rec.count("reserve_rejected") != 1 {
		t.Errorf("events = %+v", rec.counts)
	}
}

// TestConservation checks that the live balances of all accounts plus the
// staked amounts always equal deposits minus withdrawals and payouts.
func TestConservation(t *testing.T) {
	f := newFixture(t, paystream.WithReporterConfig(reporter.Config{
		MinimumStake:     100,
		SolvencyHorizon:  time.Hour,
		ReporterShareBps: 1_000,
		TreasuryShareBps: 500,
	}))
	ctx := context.Background()
	if _, err := f.ledger.SetTreasury(as(owner), "vault"); err != nil {
		t.Fatalf("SetTreasury: %v", err)
	}

	check := func(step string) {
		t.Helper()
		var external types.Amount
		moves, err := f.store.ListMovements(ctx, "", balance.ListOpts{})
		if err != nil {
			t.Fatalf("ListMovements: %v", err)
		}
		for _, m := range moves {
			if m.Kind == balance.KindDeposit {
				external += m.Amount
			} else {
				external -= m.Amount
			}
		}

		var internal types.Amount
		accounts, _ := f.store.ListBalances(ctx)
		for _, a := range accounts {
			live, err := f.ledger.Balance(ctx, a.Account)
			if err != nil {
				t.Fatalf("Balance(%s): %v", a.Account, err)
			}
			internal += live
		}
		reporters, _ := f.store.ListReporters(ctx)
		for _, r := range reporters {
			internal += r.Stake
		}

		if internal != external {
			t.Fatalf("%s: internal %d != external %d", step, internal, external)
		}
	}

	f.deposit("alice", 500_000)
	f.deposit("bob", 50_000)
	f.deposit("carol", 9_000)
	f.deposit("vault", 1_000)
	f.deposit("erin", 4_000)
	check("deposits")

	ab := f.subscribe("alice", "bob", 37)
	f.subscribe("bob", "carol", 11)
	f.subscribe("carol", "alice", 2)
	f.subscribe("erin", "alice", 1)
	f.clock.Advance(17 * time.Second)
	check("streaming")

	if _, _, err := f.ledger.UpdateSubscription(as("alice"), ab.ID, 41); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	f.clock.Advance(13 * time.Second)
	if _, err := f.ledger.Settle(ctx, "carol"); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	check("update and settle")

	if _, err := f.ledger.Withdraw(as("bob"), "bob", 1_000); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if _, err := f.ledger.PayFromTreasury(as("vault"), "dave", 250); err != nil {
		t.Fatalf("PayFromTreasury: %v", err)
	}
	check("withdraw and payout")

	if _, err := f.ledger.AddReporter(as("bob"), "bob", 500); err != nil {
		t.Fatalf("AddReporter: %v", err)
	}
	f.clock.Advance(20 * time.Minute)
	if _, err := f.ledger.ReportSource(as("bob"), "bob", "erin"); err != nil {
		t.Fatalf("ReportSource: %v", err)
	}
	check("report")

	if _, _, err := f.ledger.RemoveSubscription(as("alice"), ab.ID); err != nil {
		t.Fatalf("RemoveSubscription: %v", err)
	}
	if _, err := f.ledger.RemoveReporter(as("bob"), "bob"); err != nil {
		t.Fatalf("RemoveReporter: %v", err)
	}
	check("removal")

	all, _ := f.store.ListSubscriptions(ctx, subscription.ListOpts{})
	if len(all) != 3 {
		t.Errorf("subscriptions left = %d, want 3", len(all))
	}
	payouts, _ := f.store.ListPayouts(ctx, treasury.ListOpts{})
	if len(payouts) != 1 {
		t.Errorf("payouts = %d, want 1", len(payouts))
	}
}
