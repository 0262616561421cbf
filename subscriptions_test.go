package paystream_test

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/store/memory"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/types"
)

func TestAliceBobStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit("alice", 1_000_000)

	sub := f.subscribe("alice", "bob", 100)
	if sub.ID != 1 {
		t.Fatalf("first index = %d, want 1", sub.ID)
	}

	at := func(unix int64, account types.AccountID) types.Amount {
		t.Helper()
		b, err := f.ledger.CalculateBalance(ctx, account, time.Unix(unix, 0))
		if err != nil {
			t.Fatalf("CalculateBalance(%s @ %d): %v", account, unix, err)
		}
		return b
	}

	if got := at(1100, "alice"); got != 990_000 {
		t.Errorf("alice @1100 = %d, want 990000", got)
	}
	if got := at(1100, "bob"); got != 10_000 {
		t.Errorf("bob @1100 = %d, want 10000", got)
	}

	f.clock.Set(1100)
	updated, stl, err := f.ledger.UpdateSubscription(as("alice"), sub.ID, 200)
	if err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	if stl.Amount != 10_000 {
		t.Errorf("update settled %d, want 10000", stl.Amount)
	}
	if updated.Rate != 200 || !updated.LastSettled.Equal(time.Unix(1100, 0)) {
		t.Errorf("updated = %+v", updated)
	}
	if got := f.stored("alice"); got != 990_000 {
		t.Errorf("alice stored after update = %d, want 990000", got)
	}

	if got := at(1200, "alice"); got != 970_000 {
		t.Errorf("alice @1200 = %d, want 970000", got)
	}

	f.clock.Set(1200)
	if _, err := f.ledger.Settle(ctx, "alice"); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	f.clock.Set(1300)
	removed, stl, err := f.ledger.RemoveSubscription(as("alice"), sub.ID)
	if err != nil {
		t.Fatalf("RemoveSubscription: %v", err)
	}
	if removed.ID != sub.ID {
		t.Errorf("removed %d, want %d", removed.ID, sub.ID)
	}
	if stl.Amount != 20_000 {
		t.Errorf("removal settled %d, want 20000", stl.Amount)
	}

	flowsA, _ := f.ledger.Flows(ctx, "alice")
	flowsB, _ := f.ledger.Flows(ctx, "bob")
	if slices.Contains(flowsA.Outputs, sub.ID) || slices.Contains(flowsB.Inputs, sub.ID) {
		t.Errorf("flows still reference %d: alice=%+v bob=%+v", sub.ID, flowsA, flowsB)
	}
	subs, err := f.ledger.Subscriptions(ctx, "alice")
	if err != nil {
		t.Fatalf("Subscriptions: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("alice subscriptions = %v, want empty", f.indexes(subs))
	}

	if got := f.balance("alice"); got != 950_000 {
		t.Errorf("alice final = %d, want 950000", got)
	}
	if got := f.balance("bob"); got != 50_000 {
		t.Errorf("bob final = %d, want 50000", got)
	}
}

func TestSubscriptionsListsInputsThenOutputs(t *testing.T) {
	f := newFixture(t)
	f.deposit("alice", 1_000_000)
	f.deposit("bob", 1_000_000)

	out1 := f.subscribe("bob", "carol", 1)
	in1 := f.subscribe("alice", "bob", 2)
	out2 := f.subscribe("bob", "dave", 3)

	subs, err := f.ledger.Subscriptions(context.Background(), "bob")
	if err != nil {
		t.Fatalf("Subscriptions: %v", err)
	}
	want := []subscription.Index{in1.ID, out1.ID, out2.ID}
	if got := f.indexes(subs); !slices.Equal(got, want) {
		t.Errorf("Subscriptions(bob) = %v, want %v", got, want)
	}

	unknown, err := f.ledger.Subscriptions(context.Background(), "nobody")
	if err != nil || unknown == nil || len(unknown) != 0 {
		t.Errorf("Subscriptions(unknown) = %v, %v; want empty slice", unknown, err)
	}
}

func TestIndexesNeverRepeat(t *testing.T) {
	f := newFixture(t)
	f.deposit("alice", 10_000_000)

	var seen []subscription.Index
	for i := 0; i < 5; i++ {
		sub := f.subscribe("alice", "bob", 10)
		seen = append(seen, sub.ID)
		if i%2 == 0 {
			if _, _, err := f.ledger.RemoveSubscription(as("bob"), sub.ID); err != nil {
				t.Fatalf("RemoveSubscription: %v", err)
			}
		}
	}

	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("indexes not strictly increasing: %v", seen)
		}
	}
	if want := []subscription.Index{1, 2, 3, 4, 5}; !slices.Equal(seen, want) {
		t.Errorf("indexes = %v, want %v", seen, want)
	}
}

func TestReadsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit("alice", 1_000_000)
	f.subscribe("alice", "bob", 7)
	f.clock.Advance(42 * time.Second)

	at := f.clock.Now()
	before, _ := f.ledger.CalculateBalance(ctx, "alice", at)
	_, _ = f.ledger.Subscriptions(ctx, "alice")
	_, _ = f.ledger.Flows(ctx, "bob")
	_, _ = f.ledger.GetSubscription(ctx, 1)
	after, _ := f.ledger.CalculateBalance(ctx, "alice", at)
	if before != after {
		t.Errorf("balance changed across reads: %d -> %d", before, after)
	}
	if before != 1_000_000-7*42 {
		t.Errorf("alice = %d, want %d", before, 1_000_000-7*42)
	}
}

func TestRemoveTwiceIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.deposit("alice", 1_000_000)
	sub := f.subscribe("alice", "bob", 5)
	f.clock.Advance(10 * time.Second)

	_, stl, err := f.ledger.RemoveSubscription(as("alice"), sub.ID)
	if err != nil {
		t.Fatalf("RemoveSubscription: %v", err)
	}
	if stl.Amount != 50 {
		t.Errorf("settled %d, want 50", stl.Amount)
	}

	_, _, err = f.ledger.RemoveSubscription(as("alice"), sub.ID)
	if !errors.Is(err, paystream.ErrSubscriptionNotFound) || !paystream.IsNotFound(err) {
		t.Errorf("second removal = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestRemoveRequiresParty(t *testing.T) {
	f := newFixture(t)
	f.deposit("alice", 1_000_000)
	sub := f.subscribe("alice", "bob", 5)

	if _, _, err := f.ledger.RemoveSubscription(as("carol"), sub.ID); !paystream.IsAuthorization(err) {
		t.Errorf("carol removal = %v, want ErrUnauthorized", err)
	}
	if _, _, err := f.ledger.UpdateSubscription(as("carol"), sub.ID, 9); !errors.Is(err, paystream.ErrUnauthorized) {
		t.Errorf("carol update = %v, want ErrUnauthorized", err)
	}
	if _, err := f.ledger.GetSubscription(context.Background(), sub.ID); err != nil {
		t.Errorf("subscription lost after rejected calls: %v", err)
	}
}

func TestAddSubscriptionValidation(t *testing.T) {
	tests := []struct {
		name    string
		caller  types.AccountID
		start   func(now time.Time) time.Time
		source  types.AccountID
		dest    types.AccountID
		rate    types.Rate
		wantErr error
	}{
		{"caller is not source", "bob", nil, "alice", "bob", 1, paystream.ErrUnauthorized},
		{"zero rate", "alice", nil, "alice", "bob", 0, paystream.ErrInvalidSubscription},
		{"self loop", "alice", nil, "alice", "alice", 1, paystream.ErrInvalidSubscription},
		{"empty destination", "alice", nil, "alice", "", 1, paystream.ErrInvalidSubscription},
		{"future start", "alice", func(now time.Time) time.Time { return now.Add(time.Second) }, "alice", "bob", 1, paystream.ErrInvalidTime},
		{"start too old", "alice", func(now time.Time) time.Time { return now.Add(-2 * time.Hour) }, "alice", "bob", 1, paystream.ErrInvalidTime},
		{"reserve", "alice", nil, "alice", "bob", 1_000, paystream.ErrInsufficientReserve},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.deposit("alice", 10_000)

			var start time.Time
			if tt.start != nil {
				start = tt.start(f.clock.Now())
			}
			_, err := f.ledger.AddSubscription(as(tt.caller), start, tt.source, tt.dest, tt.rate)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddSubscription = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReserveFailureLeavesStateUnchanged(t *testing.T) {
	rec := newRecorder()
	f := newFixture(t, paystream.WithPlugin(rec))
	ctx := context.Background()
	f.deposit("alice", 10_000)
	f.subscribe("alice", "bob", 1) // needs 3600 of the 10000

	stateBefore, _ := f.ledger.State(ctx)
	_, err := f.ledger.AddSubscription(as("alice"), time.Time{}, "alice", "carol", 2)
	var re *paystream.ReserveError
	if !errors.As(err, &re) || !errors.Is(err, paystream.ErrInsufficientReserve) {
		t.Fatalf("AddSubscription = %v, want ReserveError", err)
	}
	if re.Required != 3*3600 || re.Available != 10_000 {
		t.Errorf("reserve error = %+v", re)
	}

	flows, _ := f.ledger.Flows(ctx, "alice")
	if !slices.Equal(flows.Outputs, []subscription.Index{1}) || len(flows.Inputs) != 0 {
		t.Errorf("alice flows = %+v", flows)
	}
	if carol, _ := f.ledger.Flows(ctx, "carol"); len(carol.Inputs) != 0 {
		t.Errorf("carol inputs = %v", carol.Inputs)
	}
	all, _ := f.store.ListSubscriptions(ctx, subscription.ListOpts{})
	if len(all) != 1 {
		t.Errorf("stored subscriptions = %d, want 1", len(all))
	}
	if got := f.stored("alice"); got != 10_000 {
		t.Errorf("alice stored = %d, want 10000", got)
	}
	stateAfter, _ := f.ledger.State(ctx)
	if stateAfter.LastIndex != stateBefore.LastIndex {
		t.Errorf("LastIndex moved from %d to %d", stateBefore.LastIndex, stateAfter.LastIndex)
	}
	if rec.count("reserve_rejected") != 1 {
		t.Errorf("reserve_rejected events = %d, want 1", rec.count("reserve_rejected"))
	}

	next := f.subscribe("alice", "carol", 1)
	if next.ID != 2 {
		t.Errorf("index after rejected add = %d, want 2", next.ID)
	}
}

func TestBackdatedStartAccruesImmediately(t *testing.T) {
	f := newFixture(t)
	f.deposit("alice", 1_000_000)

	start := f.clock.Now().Add(-100 * time.Second)
	sub, err := f.ledger.AddSubscription(as("alice"), start, "alice", "bob", 10)
	if err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}
	if !sub.LastSettled.Equal(start) || !sub.Start.Equal(start) {
		t.Errorf("start/last settled = %v/%v, want %v", sub.Start, sub.LastSettled, start)
	}
	if got := f.balance("alice"); got != 999_000 {
		t.Errorf("alice = %d, want 999000", got)
	}
	if got := f.balance("bob"); got != 1_000 {
		t.Errorf("bob = %d, want 1000", got)
	}
}

func TestBackdateCountsAgainstReserve(t *testing.T) {
	f := newFixture(t)
	f.deposit("alice", 3_600+99)

	start := f.clock.Now().Add(-100 * time.Second)
	if _, err := f.ledger.AddSubscription(as("alice"), start, "alice", "bob", 1); !errors.Is(err, paystream.ErrInsufficientReserve) {
		t.Fatalf("AddSubscription = %v, want ErrInsufficientReserve", err)
	}
	start = f.clock.Now().Add(-99 * time.Second)
	if _, err := f.ledger.AddSubscription(as("alice"), start, "alice", "bob", 1); err != nil {
		t.Fatalf("AddSubscription at exact reserve: %v", err)
	}
}

func TestUpdateSameRateOnlySettles(t *testing.T) {
	f := newFixture(t)
	f.deposit("alice", 1_000_000)
	sub := f.subscribe("alice", "bob", 100)
	f.clock.Advance(30 * time.Second)

	updated, stl, err := f.ledger.UpdateSubscription(as("bob"), sub.ID, 100)
	if err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	if updated.Rate != 100 {
		t.Errorf("rate = %d, want 100", updated.Rate)
	}
	if !updated.LastSettled.Equal(f.clock.Now()) {
		t.Errorf("LastSettled = %v, want %v", updated.LastSettled, f.clock.Now())
	}
	if stl.Amount != 3_000 || f.stored("bob") != 3_000 {
		t.Errorf("settled %d, bob stored %d; want 3000", stl.Amount, f.stored("bob"))
	}
}

func TestUpdateRejectedRollsBackSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit("alice", 36_000)
	sub := f.subscribe("alice", "bob", 5)
	f.clock.Advance(100 * time.Second)

	_, _, err := f.ledger.UpdateSubscription(as("alice"), sub.ID, 10)
	if !errors.Is(err, paystream.ErrInsufficientReserve) {
		t.Fatalf("UpdateSubscription = %v, want ErrInsufficientReserve", err)
	}

	got, _ := f.ledger.GetSubscription(ctx, sub.ID)
	if got.Rate != 5 || !got.LastSettled.Equal(sub.LastSettled) {
		t.Errorf("subscription changed: %+v", got)
	}
	if f.stored("alice") != 36_000 || f.stored("bob") != 0 {
		t.Errorf("stored balances changed: alice %d bob %d", f.stored("alice"), f.stored("bob"))
	}
	if got := f.balance("alice"); got != 35_500 {
		t.Errorf("alice live = %d, want 35500", got)
	}

	if _, _, err := f.ledger.UpdateSubscription(as("alice"), sub.ID, 0); !errors.Is(err, paystream.ErrInvalidSubscription) {
		t.Errorf("zero rate update = %v, want ErrInvalidSubscription", err)
	}
	if _, _, err := f.ledger.UpdateSubscription(as("alice"), 99, 1); !paystream.IsNotFound(err) {
		t.Errorf("unknown update = %v, want not found", err)
	}
}

func TestSettleFoldsAccrual(t *testing.T) {
	rec := newRecorder()
	f := newFixture(t, paystream.WithPlugin(rec))
	ctx := context.Background()
	f.deposit("alice", 1_000_000)
	f.deposit("bob", 1_000_000)
	f.subscribe("alice", "bob", 3)
	f.subscribe("bob", "carol", 2)
	f.clock.Advance(time.Minute)

	liveBefore := f.balance("bob")
	settlements, err := f.ledger.Settle(ctx, "bob")
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if len(settlements) != 2 {
		t.Fatalf("settlements = %d, want 2", len(settlements))
	}
	if got := f.balance("bob"); got != liveBefore {
		t.Errorf("settle changed bob's live balance: %d -> %d", liveBefore, got)
	}
	if got := f.stored("bob"); got != 1_000_000+180-120 {
		t.Errorf("bob stored = %d", got)
	}
	if got := f.stored("carol"); got != 120 {
		t.Errorf("carol stored = %d, want 120", got)
	}
	if rec.count("settled") != 2 {
		t.Errorf("settled events = %d, want 2", rec.count("settled"))
	}
}

func TestCalculateBalanceOverflow(t *testing.T) {
	f := newFixture(t)
	f.deposit("alice", 1_000_000)
	f.deposit("bob", math.MaxInt64-10)
	f.subscribe("alice", "bob", 100)

	_, err := f.ledger.CalculateBalance(context.Background(), "bob", f.clock.Now().Add(time.Second))
	if !errors.Is(err, paystream.ErrArithmeticOverflow) {
		t.Errorf("CalculateBalance = %v, want ErrArithmeticOverflow", err)
	}
	if _, err := f.ledger.CalculateBalance(context.Background(), "bob", f.clock.Now().Add(-time.Hour)); err != nil {
		t.Errorf("CalculateBalance before last settlement: %v", err)
	}
}

func TestNotInitialized(t *testing.T) {
	l := paystream.New(memory.New(), paystream.WithLogger(quietLogger()))

	if _, err := l.Deposit(as("alice"), "alice", 10); !errors.Is(err, paystream.ErrNotInitialized) {
		t.Errorf("Deposit = %v, want ErrNotInitialized", err)
	}
	if _, err := l.AddSubscription(as("alice"), time.Time{}, "alice", "bob", 1); !errors.Is(err, paystream.ErrNotInitialized) {
		t.Errorf("AddSubscription = %v, want ErrNotInitialized", err)
	}
	if b, err := l.Balance(context.Background(), "alice"); err != nil || b != 0 {
		t.Errorf("Balance = %d, %v; want 0, nil", b, err)
	}
}

func TestStreamWholeTokens(t *testing.T) {
	f := newFixture(t)
	f.deposit("alice", 10_000*types.OneToken)
	rate, err := types.ParseRate("1")
	if err != nil {
		t.Fatalf("ParseRate: %v", err)
	}
	f.subscribe("alice", "bob", rate)
	f.clock.Advance(90 * time.Second)

	if got := f.balance("bob").Tokens(); got != "90.00000000" {
		t.Errorf("bob = %s tokens, want 90", got)
	}
	if got := f.balance("alice").Tokens(); got != "9910.00000000" {
		t.Errorf("alice = %s tokens, want 9910", got)
	}

	half, _ := types.ParseAmount("0.5")
	if _, err := f.ledger.Withdraw(as("bob"), "bob", half); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got := f.balance("bob").Decimal().String(); got != "89.5" {
		t.Errorf("bob after withdrawal = %s tokens, want 89.5", got)
	}
}

func TestUpdateLowerRateSkipsReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit("alice", 300_000)
	sub := f.subscribe("alice", "bob", 80) // 288000 of 300000 for one hour

	// A longer horizon leaves alice under-reserved for her current rate.
	if _, err := f.ledger.UpdateReserve(as(owner), 2*time.Hour); err != nil {
		t.Fatalf("UpdateReserve: %v", err)
	}
	f.clock.Advance(10 * time.Second)

	tests := []struct {
		name    string
		rate    types.Rate
		wantErr error
	}{
		{"raise still checked", 90, paystream.ErrInsufficientReserve},
		{"lower allowed", 70, nil},
		{"lower again", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, _, err := f.ledger.UpdateSubscription(as("alice"), sub.ID, tt.rate)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("UpdateSubscription(%d) = %v, want %v", tt.rate, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateSubscription(%d): %v", tt.rate, err)
			}
			if updated.Rate != tt.rate {
				t.Errorf("rate = %d, want %d", updated.Rate, tt.rate)
			}
		})
	}

	got, _ := f.ledger.GetSubscription(ctx, sub.ID)
	if got.Rate != 10 {
		t.Errorf("stored rate = %d, want 10", got.Rate)
	}
	if f.stored("bob") != 800 {
		t.Errorf("bob stored = %d, want 800", f.stored("bob"))
	}
}

func TestUpdateOverflow(t *testing.T) {
	tests := []struct {
		name    string
		deposit types.Amount
		rate    types.Rate
		elapsed time.Duration
		newRate types.Rate
	}{
		{
			name:    "accrual since last settlement",
			deposit: math.MaxInt64,
			rate:    math.MaxInt64 / 3600,
			elapsed: 2 * time.Hour,
			newRate: 1,
		},
		{
			name:    "reserve for new rate",
			deposit: 1_000_000,
			rate:    1,
			elapsed: time.Minute,
			newRate: math.MaxInt64,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.deposit("alice", tt.deposit)
			sub := f.subscribe("alice", "bob", tt.rate)
			f.clock.Advance(tt.elapsed)

			_, _, err := f.ledger.UpdateSubscription(as("alice"), sub.ID, tt.newRate)
			if !errors.Is(err, paystream.ErrArithmeticOverflow) {
				t.Fatalf("UpdateSubscription = %v, want ErrArithmeticOverflow", err)
			}
			got, _ := f.ledger.GetSubscription(ctx, sub.ID)
			if got.Rate != tt.rate || !got.LastSettled.Equal(sub.LastSettled) {
				t.Errorf("subscription changed: %+v", got)
			}
			if f.stored("alice") != tt.deposit || f.stored("bob") != 0 {
				t.Errorf("stored balances changed: alice %d bob %d", f.stored("alice"), f.stored("bob"))
			}
		})
	}
}

func TestIndexCappedAtInt64(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit("alice", 1_000_000)

	st, err := f.store.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	st.LastIndex = math.MaxInt64 - 1
	if err := f.store.SaveState(ctx, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	last := f.subscribe("alice", "bob", 1)
	if last.ID != math.MaxInt64 {
		t.Errorf("last index = %d, want %d", last.ID, int64(math.MaxInt64))
	}
	if _, err := f.ledger.AddSubscription(as("alice"), time.Time{}, "alice", "carol", 1); !errors.Is(err, paystream.ErrArithmeticOverflow) {
		t.Fatalf("AddSubscription past the cap = %v, want ErrArithmeticOverflow", err)
	}
	if st, _ := f.ledger.State(ctx); st.LastIndex != math.MaxInt64 {
		t.Errorf("LastIndex = %d after rejected add", st.LastIndex)
	}
}
