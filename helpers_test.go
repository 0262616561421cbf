package paystream_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/store/memory"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

const owner types.AccountID = "owner"

// testClock is a settable clock starting at t=1000.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: time.Unix(1000, 0).UTC()} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(unix, 0).UTC()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t      *testing.T
	ledger *paystream.Ledger
	store  *memory.Store
	clock  *testClock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture returns an initialized ledger on a memory store.
func newFixture(t *testing.T, opts ...paystream.Option) *fixture {
	t.Helper()

	clock := newTestClock()
	s := memory.New()
	base := []paystream.Option{
		paystream.WithLogger(quietLogger()),
		paystream.WithClock(clock),
		paystream.WithTransferer(treasury.NoopTransferer),
	}
	l := paystream.New(s, append(base, opts...)...)

	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Stop() })

	if _, err := l.Initialize(ctx, owner); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return &fixture{t: t, ledger: l, store: s, clock: clock}
}

func as(account types.AccountID) context.Context {
	return paystream.WithCaller(context.Background(), account)
}

func (f *fixture) deposit(account types.AccountID, amount types.Amount) {
	f.t.Helper()
	if _, err := f.ledger.Deposit(as(account), account, amount); err != nil {
		f.t.Fatalf("Deposit(%s, %d): %v", account, amount, err)
	}
}

func (f *fixture) subscribe(source, destination types.AccountID, rate types.Rate) *subscription.Subscription {
	f.t.Helper()
	sub, err := f.ledger.AddSubscription(as(source), time.Time{}, source, destination, rate)
	if err != nil {
		f.t.Fatalf("AddSubscription(%s -> %s @ %d): %v", source, destination, rate, err)
	}
	return sub
}

func (f *fixture) balance(account types.AccountID) types.Amount {
	f.t.Helper()
	b, err := f.ledger.Balance(context.Background(), account)
	if err != nil {
		f.t.Fatalf("Balance(%s): %v", account, err)
	}
	return b
}

func (f *fixture) stored(account types.AccountID) types.Amount {
	f.t.Helper()
	b, err := f.store.GetBalance(context.Background(), account)
	if err != nil {
		f.t.Fatalf("GetBalance(%s): %v", account, err)
	}
	return b
}

func (f *fixture) indexes(subs []*subscription.Subscription) []subscription.Index {
	out := make([]subscription.Index, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ID)
	}
	return out
}
