package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting never inspects plugins again.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onSubscriptionCreated []OnSubscriptionCreated
	onSubscriptionUpdated []OnSubscriptionUpdated
	onSubscriptionRemoved []OnSubscriptionRemoved
	onSettled             []OnSettled
	onReserveRejected     []OnReserveRejected
	onDeposit             []OnDeposit
	onWithdrawal          []OnWithdrawal
	onStateChanged        []OnStateChanged
	onTreasuryPaid        []OnTreasuryPaid
	onTransferFailed      []OnTransferFailed
	onReporterAdded       []OnReporterAdded
	onReporterRemoved     []OnReporterRemoved
	onReporterClaimed     []OnReporterClaimed
	onSourceReported      []OnSourceReported
	transferers           []TransfererPlugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnSubscriptionUpdated); ok {
		r.onSubscriptionUpdated = append(r.onSubscriptionUpdated, v)
	}
	if v, ok := p.(OnSubscriptionRemoved); ok {
		r.onSubscriptionRemoved = append(r.onSubscriptionRemoved, v)
	}
	if v, ok := p.(OnSettled); ok {
		r.onSettled = append(r.onSettled, v)
	}
	if v, ok := p.(OnReserveRejected); ok {
		r.onReserveRejected = append(r.onReserveRejected, v)
	}
	if v, ok := p.(OnDeposit); ok {
		r.onDeposit = append(r.onDeposit, v)
	}
	if v, ok := p.(OnWithdrawal); ok {
		r.onWithdrawal = append(r.onWithdrawal, v)
	}
	if v, ok := p.(OnStateChanged); ok {
		r.onStateChanged = append(r.onStateChanged, v)
	}
	if v, ok := p.(OnTreasuryPaid); ok {
		r.onTreasuryPaid = append(r.onTreasuryPaid, v)
	}
	if v, ok := p.(OnTransferFailed); ok {
		r.onTransferFailed = append(r.onTransferFailed, v)
	}
	if v, ok := p.(OnReporterAdded); ok {
		r.onReporterAdded = append(r.onReporterAdded, v)
	}
	if v, ok := p.(OnReporterRemoved); ok {
		r.onReporterRemoved = append(r.onReporterRemoved, v)
	}
	if v, ok := p.(OnReporterClaimed); ok {
		r.onReporterClaimed = append(r.onReporterClaimed, v)
	}
	if v, ok := p.(OnSourceReported); ok {
		r.onSourceReported = append(r.onSourceReported, v)
	}
	if v, ok := p.(TransfererPlugin); ok {
		r.transferers = append(r.transferers, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnSubscriptionCreated", reflect.TypeFor[OnSubscriptionCreated]()},
	{"OnSubscriptionUpdated", reflect.TypeFor[OnSubscriptionUpdated]()},
	{"OnSubscriptionRemoved", reflect.TypeFor[OnSubscriptionRemoved]()},
	{"OnSettled", reflect.TypeFor[OnSettled]()},
	{"OnReserveRejected", reflect.TypeFor[OnReserveRejected]()},
	{"OnDeposit", reflect.TypeFor[OnDeposit]()},
	{"OnWithdrawal", reflect.TypeFor[OnWithdrawal]()},
	{"OnStateChanged", reflect.TypeFor[OnStateChanged]()},
	{"OnTreasuryPaid", reflect.TypeFor[OnTreasuryPaid]()},
	{"OnTransferFailed", reflect.TypeFor[OnTransferFailed]()},
	{"OnReporterAdded", reflect.TypeFor[OnReporterAdded]()},
	{"OnReporterRemoved", reflect.TypeFor[OnReporterRemoved]()},
	{"OnReporterClaimed", reflect.TypeFor[OnReporterClaimed]()},
	{"OnSourceReported", reflect.TypeFor[OnSourceReported]()},
	{"Transferer", reflect.TypeFor[TransfererPlugin]()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Transferer returns the transferer of the first TransfererPlugin, or nil.
func (r *Registry) Transferer() treasury.Transferer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.transferers) == 0 {
		return nil
	}
	return r.transferers[0].Transferer()
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// snapshot copies a cached hook list under the read lock.
func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// dispatch invokes call on each plugin and logs failures.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, call func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	dispatch(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitSubscriptionCreated emits a subscription created event.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) {
	dispatch(ctx, r, "OnSubscriptionCreated", snapshot(r, &r.onSubscriptionCreated), func(p OnSubscriptionCreated) error {
		return p.OnSubscriptionCreated(ctx, sub)
	})
}

// EmitSubscriptionUpdated emits a subscription rate change event.
func (r *Registry) EmitSubscriptionUpdated(ctx context.Context, sub *subscription.Subscription, oldRate types.Rate) {
	dispatch(ctx, r, "OnSubscriptionUpdated", snapshot(r, &r.onSubscriptionUpdated), func(p OnSubscriptionUpdated) error {
		return p.OnSubscriptionUpdated(ctx, sub, oldRate)
	})
}

// EmitSubscriptionRemoved emits a subscription removed event.
func (r *Registry) EmitSubscriptionRemoved(ctx context.Context, sub *subscription.Subscription) {
	dispatch(ctx, r, "OnSubscriptionRemoved", snapshot(r, &r.onSubscriptionRemoved), func(p OnSubscriptionRemoved) error {
		return p.OnSubscriptionRemoved(ctx, sub)
	})
}

// EmitSettled emits a batch of settlements. Empty batches are dropped.
func (r *Registry) EmitSettled(ctx context.Context, settlements []*subscription.Settlement) {
	if len(settlements) == 0 {
		return
	}
	dispatch(ctx, r, "OnSettled", snapshot(r, &r.onSettled), func(p OnSettled) error {
		return p.OnSettled(ctx, settlements)
	})
}

// EmitReserveRejected emits a failed reserve check.
func (r *Registry) EmitReserveRejected(ctx context.Context, source types.AccountID, required, available types.Amount) {
	dispatch(ctx, r, "OnReserveRejected", snapshot(r, &r.onReserveRejected), func(p OnReserveRejected) error {
		return p.OnReserveRejected(ctx, source, required, available)
	})
}

// EmitDeposit emits a deposit event.
func (r *Registry) EmitDeposit(ctx context.Context, m *balance.Movement) {
	dispatch(ctx, r, "OnDeposit", snapshot(r, &r.onDeposit), func(p OnDeposit) error {
		return p.OnDeposit(ctx, m)
	})
}

// EmitWithdrawal emits a withdrawal event.
func (r *Registry) EmitWithdrawal(ctx context.Context, m *balance.Movement) {
	dispatch(ctx, r, "OnWithdrawal", snapshot(r, &r.onWithdrawal), func(p OnWithdrawal) error {
		return p.OnWithdrawal(ctx, m)
	})
}

// EmitStateChanged emits an administrative state change.
func (r *Registry) EmitStateChanged(ctx context.Context, state *treasury.State) {
	dispatch(ctx, r, "OnStateChanged", snapshot(r, &r.onStateChanged), func(p OnStateChanged) error {
		return p.OnStateChanged(ctx, state)
	})
}

// EmitTreasuryPaid emits a committed payout.
func (r *Registry) EmitTreasuryPaid(ctx context.Context, payout *treasury.Payout) {
	dispatch(ctx, r, "OnTreasuryPaid", snapshot(r, &r.onTreasuryPaid), func(p OnTreasuryPaid) error {
		return p.OnTreasuryPaid(ctx, payout)
	})
}

// EmitTransferFailed emits a payout rejected by the transferer.
func (r *Registry) EmitTransferFailed(ctx context.Context, payout *treasury.Payout, cause error) {
	dispatch(ctx, r, "OnTransferFailed", snapshot(r, &r.onTransferFailed), func(p OnTransferFailed) error {
		return p.OnTransferFailed(ctx, payout, cause)
	})
}

// EmitReporterAdded emits a new reporter.
func (r *Registry) EmitReporterAdded(ctx context.Context, rep *reporter.Reporter) {
	dispatch(ctx, r, "OnReporterAdded", snapshot(r, &r.onReporterAdded), func(p OnReporterAdded) error {
		return p.OnReporterAdded(ctx, rep)
	})
}

// EmitReporterRemoved emits a removed reporter.
func (r *Registry) EmitReporterRemoved(ctx context.Context, rep *reporter.Reporter) {
	dispatch(ctx, r, "OnReporterRemoved", snapshot(r, &r.onReporterRemoved), func(p OnReporterRemoved) error {
		return p.OnReporterRemoved(ctx, rep)
	})
}

// EmitReporterClaimed emits a stake claim.
func (r *Registry) EmitReporterClaimed(ctx context.Context, rep *reporter.Reporter, amount types.Amount) {
	dispatch(ctx, r, "OnReporterClaimed", snapshot(r, &r.onReporterClaimed), func(p OnReporterClaimed) error {
		return p.OnReporterClaimed(ctx, rep, amount)
	})
}

// EmitSourceReported emits a successful report.
func (r *Registry) EmitSourceReported(ctx context.Context, report *reporter.Report) {
	dispatch(ctx, r, "OnSourceReported", snapshot(r, &r.onSourceReported), func(p OnSourceReported) error {
		return p.OnSourceReported(ctx, report)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
