// Package reporter defines the staked reporters that flag insolvent
// sources and the configuration of that incentive scheme.
package reporter

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/paystream/id"
	"github.com/xraph/paystream/types"
)

// Reporter is an account that locked Stake to be allowed to flag sources.
type Reporter struct {
	types.Entity
	Account types.AccountID `json:"account"`
	Stake   types.Amount    `json:"stake"`
}

// Report records a successful flagging of an insolvent source.
type Report struct {
	ID            id.ReportID     `json:"id"`
	Reporter      types.AccountID `json:"reporter"`
	Source        types.AccountID `json:"source"`
	LiveBalance   types.Amount    `json:"live_balance"`
	ReporterShare types.Amount    `json:"reporter_share"`
	TreasuryShare types.Amount    `json:"treasury_share"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Config holds the economic constants of the reporter gate.
type Config struct {
	// MinimumStake is the smallest stake a reporter may hold.
	MinimumStake types.Amount `json:"minimum_stake" mapstructure:"minimum_stake" yaml:"minimum_stake"`
	// SolvencyHorizon is how long a source must be able to fund its
	// outbound rates before it can be reported.
	SolvencyHorizon time.Duration `json:"solvency_horizon" mapstructure:"solvency_horizon" yaml:"solvency_horizon"`
	// ReporterShareBps is the reporter's cut of the delinquent balance.
	ReporterShareBps int64 `json:"reporter_share_bps" mapstructure:"reporter_share_bps" yaml:"reporter_share_bps"`
	// TreasuryShareBps is the treasury's cut of the delinquent balance.
	TreasuryShareBps int64 `json:"treasury_share_bps" mapstructure:"treasury_share_bps" yaml:"treasury_share_bps"`
}

// DefaultConfig returns the default reporter configuration.
func DefaultConfig() Config {
	return Config{
		MinimumStake:     1_000,
		SolvencyHorizon:  time.Hour,
		ReporterShareBps: 1_000,
		TreasuryShareBps: 500,
	}
}

// Validate checks that the shares are well formed.
func (c Config) Validate() error {
	switch {
	case c.MinimumStake < 0:
		return fmt.Errorf("reporter: minimum_stake must not be negative")
	case c.SolvencyHorizon < 0:
		return fmt.Errorf("reporter: solvency_horizon must not be negative")
	case c.ReporterShareBps < 0 || c.TreasuryShareBps < 0:
		return fmt.Errorf("reporter: shares must not be negative")
	case c.ReporterShareBps+c.TreasuryShareBps > 10_000:
		return fmt.Errorf("reporter: reporter and treasury shares exceed 10000 bps")
	}
	return nil
}

// Store persists reporters and their reports.
type Store interface {
	CreateReporter(ctx context.Context, r *Reporter) error
	GetReporter(ctx context.Context, account types.AccountID) (*Reporter, error)
	UpdateReporter(ctx context.Context, r *Reporter) error
	DeleteReporter(ctx context.Context, account types.AccountID) error
	ListReporters(ctx context.Context) ([]*Reporter, error)

	CreateReport(ctx context.Context, r *Report) error
	ListReports(ctx context.Context, opts ListOpts) ([]*Report, error)
}

// ListOpts filters and pages reports, oldest first.
type ListOpts struct {
	Source types.AccountID
	Limit  int
	Offset int
}
