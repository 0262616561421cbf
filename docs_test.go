package paystream_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/observability"
	"github.com/xraph/paystream/store/memory"
	"github.com/xraph/paystream/types"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		store := memory.New()
		clock := newTestClock()

		l := paystream.New(store,
			paystream.WithLogger(quietLogger()),
			paystream.WithClock(clock),
			paystream.WithPlugin(observability.NewMetricsExtension(observability.NewNoopFactory())),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		if _, err := l.Initialize(ctx, "admin"); err != nil {
			t.Fatal(err)
		}

		alice := paystream.WithCaller(ctx, "alice")
		if _, err := l.Deposit(alice, "alice", 1_000_000); err != nil {
			t.Fatal(err)
		}
		sub, err := l.AddSubscription(alice, time.Time{}, "alice", "bob", 100)
		if err != nil {
			t.Fatal(err)
		}

		clock.Advance(time.Minute)
		bob, err := l.Balance(ctx, "bob")
		if err != nil {
			t.Fatal(err)
		}
		if bob != 6_000 {
			t.Errorf("bob = %d, want 6000", bob)
		}
		if got := bob.Format(types.TokenDecimals); got != "0.00006000" {
			t.Errorf("Format = %q", got)
		}

		if _, _, err := l.RemoveSubscription(alice, sub.ID); err != nil {
			t.Fatal(err)
		}
	})
}
