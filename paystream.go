package paystream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/paystream/plugin"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/store"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// Defaults applied by New.
const (
	DefaultReserveHorizon = time.Hour
	DefaultMaxBackdate    = time.Hour
)

// Ledger is the streaming payment engine.
//
// Every mutating operation holds the write lock and runs inside a single
// store transaction, so a failure at any step leaves subscriptions, flows
// and balances exactly as they were. Plugins observe committed changes only.
type Ledger struct {
	mu      sync.RWMutex
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   types.Clock

	transferer     treasury.Transferer
	reserveHorizon time.Duration
	maxBackdate    time.Duration
	reporterConfig reporter.Config
}

// New creates a new Ledger backed by s.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:          s,
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		clock:          types.SystemClock,
		reserveHorizon: DefaultReserveHorizon,
		maxBackdate:    DefaultMaxBackdate,
		reporterConfig: reporter.DefaultConfig(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		if err := l.plugins.Register(p); err != nil {
			l.logger.Warn("plugin registration failed", "plugin", p.Name(), "error", err)
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c types.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithTransferer sets the transferer used by PayFromTreasury. Without it the
// first plugin implementing plugin.TransfererPlugin is used.
func WithTransferer(t treasury.Transferer) Option {
	return func(l *Ledger) {
		l.transferer = t
	}
}

// WithReserveHorizon sets the reserve horizon given to a new ledger state by
// Initialize. An initialized ledger changes it through UpdateReserve.
func WithReserveHorizon(d time.Duration) Option {
	return func(l *Ledger) {
		l.reserveHorizon = d
	}
}

// WithMaxBackdate bounds how far in the past a subscription may start.
func WithMaxBackdate(d time.Duration) Option {
	return func(l *Ledger) {
		l.maxBackdate = d
	}
}

// WithReporterConfig sets the reporter gate constants.
func WithReporterConfig(cfg reporter.Config) Option {
	return func(l *Ledger) {
		l.reporterConfig = cfg
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.reporterConfig.Validate(); err != nil {
		return ValidationError{Field: "reporter", Message: err.Error()}
	}
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("paystream started",
		"reserve_horizon", l.reserveHorizon,
		"max_backdate", l.maxBackdate,
		"plugins", l.plugins.Count(),
	)
	return nil
}

// Stop notifies plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// now is the ledger time, truncated to whole seconds.
func (l *Ledger) now() time.Time {
	return l.clock.Now().UTC().Truncate(time.Second)
}

// state loads the ledger state, mapping a missing record to ErrNotInitialized.
func (l *Ledger) state(ctx context.Context, s store.Store) (*treasury.State, error) {
	st, err := s.GetState(ctx)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return st, nil
}

// reportFailure emits plugin events derived from a failed operation.
func (l *Ledger) reportFailure(ctx context.Context, err error) {
	var re *ReserveError
	if errors.As(err, &re) {
		l.plugins.EmitReserveRejected(ctx, re.Account, re.Required, re.Available)
	}
}

func (l *Ledger) resolveTransferer() treasury.Transferer {
	if l.transferer != nil {
		return l.transferer
	}
	return l.plugins.Transferer()
}
