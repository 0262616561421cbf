package extension

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/paystream/reporter"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{MaxBackdate: 5 * time.Minute})

	if cfg.ReserveHorizon != time.Hour {
		t.Errorf("ReserveHorizon = %v, want 1h", cfg.ReserveHorizon)
	}
	if cfg.MaxBackdate != 5*time.Minute {
		t.Errorf("MaxBackdate = %v, want 5m", cfg.MaxBackdate)
	}
	if cfg.Reporter != reporter.DefaultConfig() {
		t.Errorf("Reporter = %+v, want defaults", cfg.Reporter)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name   string
		yaml   Config
		prog   Config
		check  func(Config) bool
		expect string
	}{
		{
			name:   "yaml wins",
			yaml:   Config{ReserveHorizon: 2 * time.Hour},
			prog:   Config{ReserveHorizon: 3 * time.Hour},
			check:  func(c Config) bool { return c.ReserveHorizon == 2*time.Hour },
			expect: "reserve horizon from yaml",
		},
		{
			name:   "programmatic fills gaps",
			yaml:   Config{},
			prog:   Config{Owner: "root", MaxBackdate: time.Minute},
			check:  func(c Config) bool { return c.Owner == "root" && c.MaxBackdate == time.Minute },
			expect: "owner and backdate from options",
		},
		{
			name:   "programmatic flags override",
			yaml:   Config{},
			prog:   Config{DisableMigrate: true, EnableMetrics: true},
			check:  func(c Config) bool { return c.DisableMigrate && c.EnableMetrics },
			expect: "both flags set",
		},
		{
			name: "partial reporter config completed",
			yaml: Config{Reporter: reporter.Config{MinimumStake: 50}},
			prog: Config{},
			check: func(c Config) bool {
				return c.Reporter.MinimumStake == 50 && c.Reporter.ReporterShareBps == 1_000
			},
			expect: "minimum stake 50 with default shares",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeConfigurations(tt.yaml, tt.prog)
			if !tt.check(got) {
				t.Errorf("expected %s, got %+v", tt.expect, got)
			}
		})
	}
}

func TestBuildLedgerOpts(t *testing.T) {
	e := New(WithConfig(DefaultConfig()))
	if got := len(e.buildLedgerOpts()); got != 3 {
		t.Errorf("expected 3 options, got %d", got)
	}

	e = New(WithConfig(DefaultConfig()), WithMetrics(prometheus.NewRegistry()))
	if got := len(e.buildLedgerOpts()); got != 4 {
		t.Errorf("expected 4 options with metrics, got %d", got)
	}
}
