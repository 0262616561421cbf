// Package extension provides the Forge extension adapter for Paystream.
//
// It implements the forge.Extension interface to integrate Paystream
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.paystream" or
// "paystream" keys.
package extension

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/observability"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/store"
	"github.com/xraph/paystream/store/memory"
	"github.com/xraph/paystream/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "paystream"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Continuous payment streaming ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Paystream as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *paystream.Ledger
	store      store.Store
	ledgerOpts []paystream.Option
	registerer prometheus.Registerer
}

// New creates a new Paystream Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *paystream.Ledger { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// builds the ledger and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = paystream.New(e.store, e.buildLedgerOpts()...)

	return vessel.Provide(fapp.Container(), func() (*paystream.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("paystream: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if e.config.Owner != "" {
		_, err := e.engine.Initialize(ctx, types.AccountID(e.config.Owner))
		switch {
		case err == nil:
			e.Logger().Info("paystream: ledger initialized", forge.F("owner", e.config.Owner))
		case errors.Is(err, paystream.ErrAlreadyInitialized):
		default:
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("paystream: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs paystream.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []paystream.Option {
	opts := make([]paystream.Option, 0, len(e.ledgerOpts)+4)

	opts = append(opts,
		paystream.WithReserveHorizon(e.config.ReserveHorizon),
		paystream.WithMaxBackdate(e.config.MaxBackdate),
		paystream.WithReporterConfig(e.config.Reporter),
	)

	if e.config.EnableMetrics {
		reg := e.registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		factory := observability.NewPrometheusFactory(reg)
		opts = append(opts, paystream.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	// Pass-through options last so they win.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("paystream: configuration is required but not found in config files; " +
				"ensure 'extensions.paystream' or 'paystream' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("paystream: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("owner", e.config.Owner),
		forge.F("reserve_horizon", e.config.ReserveHorizon),
		forge.F("max_backdate", e.config.MaxBackdate),
		forge.F("minimum_stake", e.config.Reporter.MinimumStake.String()),
		forge.F("enable_metrics", e.config.EnableMetrics),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.paystream", "paystream"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("paystream: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("paystream: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ReserveHorizon == 0 {
		cfg.ReserveHorizon = defaults.ReserveHorizon
	}
	if cfg.MaxBackdate == 0 {
		cfg.MaxBackdate = defaults.MaxBackdate
	}
	if cfg.Reporter.MinimumStake == 0 {
		cfg.Reporter.MinimumStake = defaults.Reporter.MinimumStake
	}
	if cfg.Reporter.SolvencyHorizon == 0 {
		cfg.Reporter.SolvencyHorizon = defaults.Reporter.SolvencyHorizon
	}
	if cfg.Reporter.ReporterShareBps == 0 {
		cfg.Reporter.ReporterShareBps = defaults.Reporter.ReporterShareBps
	}
	if cfg.Reporter.TreasuryShareBps == 0 {
		cfg.Reporter.TreasuryShareBps = defaults.Reporter.TreasuryShareBps
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnableMetrics {
		yamlConfig.EnableMetrics = true
	}
	if yamlConfig.Owner == "" {
		yamlConfig.Owner = programmaticConfig.Owner
	}
	if yamlConfig.ReserveHorizon == 0 {
		yamlConfig.ReserveHorizon = programmaticConfig.ReserveHorizon
	}
	if yamlConfig.MaxBackdate == 0 {
		yamlConfig.MaxBackdate = programmaticConfig.MaxBackdate
	}
	if yamlConfig.Reporter == (reporter.Config{}) {
		yamlConfig.Reporter = programmaticConfig.Reporter
	}

	return mergeWithDefaults(yamlConfig)
}
