package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	audithook "github.com/xraph/paystream/audit_hook"
	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/id"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
)

type captured struct {
	events []*audithook.AuditEvent
}

func (c *captured) Record(_ context.Context, evt *audithook.AuditEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func TestExtensionRecordsSubscriptionEvents(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec)
	ctx := context.Background()

	sub := &subscription.Subscription{ID: 7, Source: "alice", Destination: "bob", Rate: 100}
	_ = ext.OnSubscriptionCreated(ctx, sub)
	_ = ext.OnSubscriptionUpdated(ctx, sub, 50)
	_ = ext.OnSettled(ctx, []*subscription.Settlement{
		{ID: id.NewSettlementID(), Subscription: 7, Amount: 10, From: time.Unix(0, 0), To: time.Unix(1, 0)},
		{ID: id.NewSettlementID(), Subscription: 7, Amount: 20, From: time.Unix(1, 0), To: time.Unix(2, 0)},
	})

	if len(rec.events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(rec.events))
	}
	if got := rec.events[0]; got.Action != audithook.ActionSubscriptionCreated || got.ResourceID != "7" {
		t.Errorf("unexpected first event: %+v", got)
	}
	if got := rec.events[1].Metadata["old_rate"]; got != int64(50) {
		t.Errorf("old_rate = %v, want 50", got)
	}
	if got := rec.events[3].Metadata["amount"]; got != "20" {
		t.Errorf("amount = %v, want 20", got)
	}
	if got := rec.events[3].Metadata["tokens"]; got != "0.00000020" {
		t.Errorf("tokens = %v, want 0.00000020", got)
	}
}

func TestExtensionFailureCarriesReason(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec)

	p := &treasury.Payout{ID: id.NewPayoutID(), Treasury: "vault", Destination: "bob", Amount: 5}
	_ = ext.OnTransferFailed(context.Background(), p, errors.New("bank offline"))

	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.events))
	}
	evt := rec.events[0]
	if evt.Outcome != audithook.OutcomeFailure || evt.Severity != audithook.SeverityError {
		t.Errorf("unexpected outcome/severity: %s/%s", evt.Outcome, evt.Severity)
	}
	if evt.Reason != "bank offline" {
		t.Errorf("reason = %q", evt.Reason)
	}
}

func TestActionFilters(t *testing.T) {
	m := &balance.Movement{ID: id.NewDepositID(), Account: "alice", Kind: balance.KindDeposit, Amount: 10}

	tests := []struct {
		name string
		opts []audithook.Option
		want int
	}{
		{"all enabled", nil, 2},
		{"only deposits", []audithook.Option{audithook.WithEnabledActions(audithook.ActionDeposit)}, 1},
		{"withdrawals disabled", []audithook.Option{audithook.WithDisabledActions(audithook.ActionWithdrawal)}, 1},
		{"both disabled", []audithook.Option{audithook.WithDisabledActions(audithook.ActionDeposit, audithook.ActionWithdrawal)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &captured{}
			ext := audithook.New(rec, tt.opts...)
			_ = ext.OnDeposit(context.Background(), m)
			_ = ext.OnWithdrawal(context.Background(), m)
			if len(rec.events) != tt.want {
				t.Errorf("expected %d events, got %d", tt.want, len(rec.events))
			}
		})
	}
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("sink down")
	})
	ext := audithook.New(failing, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := ext.OnReserveRejected(context.Background(), "alice", 100, 10); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
