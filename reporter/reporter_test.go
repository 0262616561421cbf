package reporter

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative stake", func(c *Config) { c.MinimumStake = -1 }, true},
		{"negative horizon", func(c *Config) { c.SolvencyHorizon = -time.Second }, true},
		{"negative share", func(c *Config) { c.ReporterShareBps = -5 }, true},
		{"shares above whole", func(c *Config) { c.ReporterShareBps, c.TreasuryShareBps = 9_000, 1_001 }, true},
		{"shares exactly whole", func(c *Config) { c.ReporterShareBps, c.TreasuryShareBps = 9_000, 1_000 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
