package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
)

type recordingPlugin struct {
	name string

	mu      sync.Mutex
	created []subscription.Index
	settled int
	fail    error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) OnSubscriptionCreated(_ context.Context, sub *subscription.Subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, sub.ID)
	return p.fail
}

func (p *recordingPlugin) OnSettled(_ context.Context, settlements []*subscription.Settlement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled += len(settlements)
	return nil
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnSubscriptionCreated(ctx context.Context, _ *subscription.Subscription) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

type transfererPlugin struct{ tr treasury.Transferer }

func (transfererPlugin) Name() string                      { return "transfer" }
func (p transfererPlugin) Transferer() treasury.Transferer { return p.tr }

func quietRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&recordingPlugin{name: "rec"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&recordingPlugin{name: "rec"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if r.Get("rec") == nil || r.Get("missing") != nil {
		t.Error("Get returned unexpected result")
	}
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	r := quietRegistry()
	rec := &recordingPlugin{name: "rec", fail: errors.New("ignored")}
	if err := r.Register(rec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := context.Background()
	r.EmitSubscriptionCreated(ctx, &subscription.Subscription{ID: 1})
	r.EmitSubscriptionCreated(ctx, &subscription.Subscription{ID: 2})
	r.EmitSettled(ctx, []*subscription.Settlement{{Subscription: 1}, {Subscription: 2}})
	r.EmitSettled(ctx, nil)
	r.EmitDeposit(ctx, nil)

	if want := []subscription.Index{1, 2}; !slices.Equal(rec.created, want) {
		t.Errorf("created = %v, want %v", rec.created, want)
	}
	if rec.settled != 2 {
		t.Errorf("settled = %d, want 2", rec.settled)
	}
}

func TestEmitTimesOut(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)
	if err := r.Register(slowPlugin{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	start := time.Now()
	r.EmitSubscriptionCreated(context.Background(), &subscription.Subscription{ID: 1})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("emit blocked for %v", elapsed)
	}
}

func TestTransfererPlugin(t *testing.T) {
	r := quietRegistry()
	if r.Transferer() != nil {
		t.Fatal("expected nil transferer on empty registry")
	}
	if err := r.Register(transfererPlugin{tr: treasury.NoopTransferer}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if r.Transferer() == nil {
		t.Error("expected transferer from plugin")
	}
	if got := implementedInterfaces(transfererPlugin{}); !slices.Equal(got, []string{"Transferer"}) {
		t.Errorf("implementedInterfaces = %v", got)
	}
}
