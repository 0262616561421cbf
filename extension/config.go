package extension

import (
	"time"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/reporter"
)

// Config holds the Paystream extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.paystream" or "paystream" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Owner initializes the ledger on start when no state exists yet.
	// Leave empty to initialize explicitly.
	Owner string `json:"owner" mapstructure:"owner" yaml:"owner"`

	// ReserveHorizon is how long a source must be able to fund its outbound
	// rates when a subscription is created (default: 1h).
	ReserveHorizon time.Duration `json:"reserve_horizon" mapstructure:"reserve_horizon" yaml:"reserve_horizon"`

	// MaxBackdate bounds how far in the past a subscription may start (default: 1h).
	MaxBackdate time.Duration `json:"max_backdate" mapstructure:"max_backdate" yaml:"max_backdate"`

	// Reporter holds the reporter gate constants.
	Reporter reporter.Config `json:"reporter" mapstructure:"reporter" yaml:"reporter"`

	// EnableMetrics registers the Prometheus metrics plugin on the default registerer.
	EnableMetrics bool `json:"enable_metrics" mapstructure:"enable_metrics" yaml:"enable_metrics"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReserveHorizon: paystream.DefaultReserveHorizon,
		MaxBackdate:    paystream.DefaultMaxBackdate,
		Reporter:       reporter.DefaultConfig(),
	}
}
