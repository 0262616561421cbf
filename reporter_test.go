package paystream_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/reporter"
)

func TestReporterLifecycle(t *testing.T) {
	rec := newRecorder()
	f := newFixture(t, paystream.WithPlugin(rec))
	ctx := context.Background()
	f.deposit("rita", 5_000)

	if _, err := f.ledger.AddReporter(as("rita"), "rita", 999); !errors.Is(err, paystream.ErrInsufficientStake) {
		t.Errorf("stake below minimum = %v", err)
	}
	if _, err := f.ledger.AddReporter(as("rita"), "rita", 6_000); !errors.Is(err, paystream.ErrInsufficientBalance) {
		t.Errorf("stake above balance = %v", err)
	}
	if _, err := f.ledger.AddReporter(as("bob"), "rita", 1_000); !errors.Is(err, paystream.ErrUnauthorized) {
		t.Errorf("staking for someone else = %v", err)
	}

	r, err := f.ledger.AddReporter(as("rita"), "rita", 2_000)
	if err != nil {
		t.Fatalf("AddReporter: %v", err)
	}
	if r.Stake != 2_000 || f.balance("rita") != 3_000 {
		t.Errorf("stake %d, balance %d", r.Stake, f.balance("rita"))
	}
	if _, err := f.ledger.AddReporter(as("rita"), "rita", 1_000); !errors.Is(err, paystream.ErrReporterExists) {
		t.Errorf("second registration = %v", err)
	}

	if _, err := f.ledger.ClaimReporter(as("rita"), "rita", 1_001); !errors.Is(err, paystream.ErrInsufficientStake) {
		t.Errorf("claim below minimum = %v", err)
	}
	r, err = f.ledger.ClaimReporter(as("rita"), "rita", 1_000)
	if err != nil {
		t.Fatalf("ClaimReporter: %v", err)
	}
	if r.Stake != 1_000 || f.balance("rita") != 4_000 {
		t.Errorf("after claim: stake %d, balance %d", r.Stake, f.balance("rita"))
	}

	got, err := f.ledger.GetReporter(ctx, "rita")
	if err != nil || got.Stake != 1_000 {
		t.Errorf("GetReporter = %+v, %v", got, err)
	}

	refunded, err := f.ledger.RemoveReporter(as("rita"), "rita")
	if err != nil {
		t.Fatalf("RemoveReporter: %v", err)
	}
	if refunded.Stake != 1_000 || f.balance("rita") != 5_000 {
		t.Errorf("after removal: refunded %d, balance %d", refunded.Stake, f.balance("rita"))
	}
	if _, err := f.ledger.RemoveReporter(as("rita"), "rita"); !errors.Is(err, paystream.ErrReporterNotFound) {
		t.Errorf("second removal = %v", err)
	}
	if _, err := f.ledger.ClaimReporter(as("rita"), "rita", 1); !paystream.IsNotFound(err) {
		t.Errorf("claim after removal = %v", err)
	}

	for _, name := range []string{"reporter_added", "reporter_claimed", "reporter_removed"} {
		if rec.count(name) != 1 {
			t.Errorf("%s events = %d, want 1", name, rec.count(name))
		}
	}
}

func TestReportSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit("rita", 1_000)
	f.deposit("alice", 3_600)
	f.subscribe("alice", "bob", 1)
	if _, err := f.ledger.AddReporter(as("rita"), "rita", 1_000); err != nil {
		t.Fatalf("AddReporter: %v", err)
	}

	if _, err := f.ledger.ReportSource(as("rita"), "rita", "alice"); !errors.Is(err, paystream.ErrTreasuryNotSet) {
		t.Errorf("report without treasury = %v", err)
	}
	if _, err := f.ledger.SetTreasury(as(owner), "vault"); err != nil {
		t.Fatalf("SetTreasury: %v", err)
	}
	if _, err := f.ledger.ReportSource(as("rita"), "rita", "alice"); !errors.Is(err, paystream.ErrSourceSolvent) {
		t.Errorf("report solvent source = %v", err)
	}
	if _, err := f.ledger.ReportSource(as("bob"), "bob", "alice"); !errors.Is(err, paystream.ErrReporterNotFound) {
		t.Errorf("report by non-reporter = %v", err)
	}
	if _, err := f.ledger.ReportSource(as("rita"), "rita", "rita"); !errors.Is(err, paystream.ErrInvalidInput) {
		t.Errorf("self report = %v", err)
	}

	f.clock.Advance(600 * time.Second)
	report, err := f.ledger.ReportSource(as("rita"), "rita", "alice")
	if err != nil {
		t.Fatalf("ReportSource: %v", err)
	}
	if report.LiveBalance != 3_000 || report.ReporterShare != 300 || report.TreasuryShare != 150 {
		t.Errorf("report = %+v", report)
	}
	if got := f.balance("alice"); got != 2_550 {
		t.Errorf("alice = %d, want 2550", got)
	}
	if got := f.balance("vault"); got != 150 {
		t.Errorf("vault = %d, want 150", got)
	}
	r, _ := f.ledger.GetReporter(ctx, "rita")
	if r.Stake != 1_300 {
		t.Errorf("rita stake = %d, want 1300", r.Stake)
	}

	reports, _ := f.ledger.Reports(ctx, reporter.ListOpts{Source: "alice"})
	if len(reports) != 1 || reports[0].ID.String() != report.ID.String() {
		t.Errorf("reports = %+v", reports)
	}
}

func TestReportNegativeSourceTakesNothing(t *testing.T) {
	f := newFixture(t, paystream.WithReporterConfig(reporter.Config{
		MinimumStake:     10,
		SolvencyHorizon:  time.Hour,
		ReporterShareBps: 2_000,
		TreasuryShareBps: 1_000,
	}))
	f.deposit("rita", 10)
	f.deposit("alice", 3_600)
	f.subscribe("alice", "bob", 1)
	if _, err := f.ledger.SetTreasury(as(owner), "vault"); err != nil {
		t.Fatalf("SetTreasury: %v", err)
	}
	if _, err := f.ledger.AddReporter(as("rita"), "rita", 10); err != nil {
		t.Fatalf("AddReporter: %v", err)
	}

	f.clock.Advance(2 * time.Hour)
	report, err := f.ledger.ReportSource(as("rita"), "rita", "alice")
	if err != nil {
		t.Fatalf("ReportSource: %v", err)
	}
	if report.LiveBalance != -3_600 || report.ReporterShare != 0 || report.TreasuryShare != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestStartRejectsInvalidReporterConfig(t *testing.T) {
	cfg := reporter.DefaultConfig()
	cfg.ReporterShareBps = 20_000
	l := paystream.New(nil, paystream.WithReporterConfig(cfg), paystream.WithLogger(quietLogger()))
	if err := l.Start(context.Background()); !errors.Is(err, paystream.ErrInvalidInput) {
		t.Errorf("Start = %v, want ErrInvalidInput", err)
	}
}
