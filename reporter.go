package paystream

import (
	"context"
	"time"

	"github.com/xraph/paystream/id"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/store"
	"github.com/xraph/paystream/types"
)

// ReporterConfig returns the reporter gate constants in effect.
func (l *Ledger) ReporterConfig() reporter.Config { return l.reporterConfig }

// AddReporter registers the caller as a reporter, moving stake out of its
// balance into the reporter record.
func (l *Ledger) AddReporter(ctx context.Context, account types.AccountID, stake types.Amount) (*reporter.Reporter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := requireCaller(ctx, account); err != nil {
		return nil, err
	}
	if stake < l.reporterConfig.MinimumStake || !stake.IsPositive() {
		return nil, ErrInsufficientStake
	}

	now := l.now()
	var r *reporter.Reporter
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		st, err := l.state(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := tx.GetReporter(ctx, account); err == nil {
			return ErrReporterExists
		} else if !IsNotFound(err) {
			return err
		}

		live, err := liveBalance(ctx, tx, account, now)
		if err != nil {
			return err
		}
		if live < stake {
			return ErrInsufficientBalance
		}
		outbound, err := outboundRate(ctx, tx, account)
		if err != nil {
			return err
		}
		if err := checkReserve(ctx, tx, st, account, now, outbound, stake); err != nil {
			return err
		}
		if err := debit(ctx, tx, account, stake); err != nil {
			return err
		}

		r = &reporter.Reporter{
			Entity:  types.NewEntity(now),
			Account: account,
			Stake:   stake,
		}
		return tx.CreateReporter(ctx, r)
	})
	if err != nil {
		l.reportFailure(ctx, err)
		return nil, err
	}

	l.logger.Info("reporter added", "reporter", account, "stake", stake)
	l.plugins.EmitReporterAdded(ctx, r)
	return r, nil
}

// RemoveReporter deregisters the caller and refunds its whole stake.
func (l *Ledger) RemoveReporter(ctx context.Context, account types.AccountID) (*reporter.Reporter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := requireCaller(ctx, account); err != nil {
		return nil, err
	}

	var r *reporter.Reporter
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := l.state(ctx, tx); err != nil {
			return err
		}
		var err error
		if r, err = tx.GetReporter(ctx, account); err != nil {
			return err
		}
		if err := credit(ctx, tx, account, r.Stake); err != nil {
			return err
		}
		return tx.DeleteReporter(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("reporter removed", "reporter", account, "refund", r.Stake)
	l.plugins.EmitReporterRemoved(ctx, r)
	return r, nil
}

// ClaimReporter moves amount of the caller's stake back to its balance.
// The remaining stake must stay at or above the minimum.
func (l *Ledger) ClaimReporter(ctx context.Context, account types.AccountID, amount types.Amount) (*reporter.Reporter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := requireCaller(ctx, account); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}

	now := l.now()
	var r *reporter.Reporter
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := l.state(ctx, tx); err != nil {
			return err
		}
		var err error
		if r, err = tx.GetReporter(ctx, account); err != nil {
			return err
		}
		remaining, err := r.Stake.Sub(amount)
		if err != nil {
			return ErrArithmeticOverflow
		}
		if remaining < l.reporterConfig.MinimumStake {
			return ErrInsufficientStake
		}
		if err := credit(ctx, tx, account, amount); err != nil {
			return err
		}
		r.Stake = remaining
		r.Touch(now)
		return tx.UpdateReporter(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("reporter claimed", "reporter", account, "amount", amount, "stake", r.Stake)
	l.plugins.EmitReporterClaimed(ctx, r, amount)
	return r, nil
}

// ReportSource flags source as unable to fund its outbound rates for the
// solvency horizon. The positive part of its live balance is the delinquent
// balance; the configured shares of it go to the reporter's stake and to
// the treasury.
func (l *Ledger) ReportSource(ctx context.Context, reporterAccount, source types.AccountID) (*reporter.Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := requireCaller(ctx, reporterAccount); err != nil {
		return nil, err
	}
	if source == "" || source == reporterAccount {
		return nil, ValidationError{Field: "source", Message: "must name another account"}
	}

	now := l.now()
	cfg := l.reporterConfig
	var report *reporter.Report
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		st, err := l.state(ctx, tx)
		if err != nil {
			return err
		}
		r, err := tx.GetReporter(ctx, reporterAccount)
		if err != nil {
			return err
		}
		if !st.HasTreasury() {
			return ErrTreasuryNotSet
		}

		outbound, err := outboundRate(ctx, tx, source)
		if err != nil {
			return err
		}
		threshold, err := outbound.Over(int64(cfg.SolvencyHorizon / time.Second))
		if err != nil {
			return ErrArithmeticOverflow
		}
		live, err := liveBalance(ctx, tx, source, now)
		if err != nil {
			return err
		}
		if live >= threshold {
			return ErrSourceSolvent
		}

		delinquent := max(live, 0)
		reporterShare, err := delinquent.MulBps(cfg.ReporterShareBps)
		if err != nil {
			return ErrArithmeticOverflow
		}
		treasuryShare, err := delinquent.MulBps(cfg.TreasuryShareBps)
		if err != nil {
			return ErrArithmeticOverflow
		}
		total, err := reporterShare.Add(treasuryShare)
		if err != nil {
			return ErrArithmeticOverflow
		}

		if err := debit(ctx, tx, source, total); err != nil {
			return err
		}
		if err := credit(ctx, tx, st.Treasury, treasuryShare); err != nil {
			return err
		}
		if r.Stake, err = r.Stake.Add(reporterShare); err != nil {
			return ErrArithmeticOverflow
		}
		r.Touch(now)
		if err := tx.UpdateReporter(ctx, r); err != nil {
			return err
		}

		report = &reporter.Report{
			ID:            id.NewReportID(),
			Reporter:      reporterAccount,
			Source:        source,
			LiveBalance:   live,
			ReporterShare: reporterShare,
			TreasuryShare: treasuryShare,
			CreatedAt:     now,
		}
		return tx.CreateReport(ctx, report)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("source reported",
		"reporter", reporterAccount,
		"source", source,
		"live_balance", report.LiveBalance,
		"reporter_share", report.ReporterShare,
		"treasury_share", report.TreasuryShare,
	)
	l.plugins.EmitSourceReported(ctx, report)
	return report, nil
}

// GetReporter returns the reporter record of account.
func (l *Ledger) GetReporter(ctx context.Context, account types.AccountID) (*reporter.Reporter, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.GetReporter(ctx, account)
}

// Reports lists committed reports.
func (l *Ledger) Reports(ctx context.Context, opts reporter.ListOpts) ([]*reporter.Report, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.ListReports(ctx, opts)
}
