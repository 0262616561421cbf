package extension

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/plugin"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/store"
)

// Option configures the Paystream Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a paystream.Option through to the underlying engine.
func WithLedgerOption(opt paystream.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, paystream.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithOwner initializes the ledger with owner on start if needed.
func WithOwner(owner string) Option {
	return func(e *Extension) { e.config.Owner = owner }
}

// WithReserveHorizon sets the reserve horizon.
func WithReserveHorizon(d time.Duration) Option {
	return func(e *Extension) { e.config.ReserveHorizon = d }
}

// WithMaxBackdate sets the maximum subscription backdate.
func WithMaxBackdate(d time.Duration) Option {
	return func(e *Extension) { e.config.MaxBackdate = d }
}

// WithReporterConfig sets the reporter gate constants.
func WithReporterConfig(cfg reporter.Config) Option {
	return func(e *Extension) { e.config.Reporter = cfg }
}

// WithMetrics registers the metrics plugin on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Extension) {
		e.config.EnableMetrics = true
		e.registerer = reg
	}
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
