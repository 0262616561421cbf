package paystream

import (
	"context"
	"time"

	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/flow"
	"github.com/xraph/paystream/id"
	"github.com/xraph/paystream/store"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// CalculateBalance returns the live balance of account at the given time:
// the stored balance plus everything streamed in minus everything streamed
// out since each subscription was last settled. It never mutates state.
func (l *Ledger) CalculateBalance(ctx context.Context, account types.AccountID, at time.Time) (types.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return liveBalance(ctx, l.store, account, at)
}

// Balance returns the live balance of account now.
func (l *Ledger) Balance(ctx context.Context, account types.AccountID) (types.Amount, error) {
	return l.CalculateBalance(ctx, account, l.now())
}

// Settle folds the pending accrual of every subscription touching account
// into stored balances. Live balances do not change, so any caller may
// settle any account.
func (l *Ledger) Settle(ctx context.Context, account types.AccountID) ([]*subscription.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var settlements []*subscription.Settlement
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		settlements = settlements[:0]
		if _, err := l.state(ctx, tx); err != nil {
			return err
		}
		for _, dir := range []flow.Direction{flow.Inputs, flow.Outputs} {
			indexes, err := tx.ListFlows(ctx, dir, account)
			if err != nil {
				return err
			}
			for _, idx := range indexes {
				sub, err := tx.GetSubscription(ctx, idx)
				if err != nil {
					return err
				}
				stl, err := settle(ctx, tx, sub, now)
				if err != nil {
					return err
				}
				settlements = append(settlements, stl)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debug("account settled", "account", account, "subscriptions", len(settlements))
	l.plugins.EmitSettled(ctx, settlements)
	return settlements, nil
}

// Deposit credits amount to the caller's stored balance.
func (l *Ledger) Deposit(ctx context.Context, account types.AccountID, amount types.Amount) (*balance.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := requireCaller(ctx, account); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}

	now := l.now()
	m := &balance.Movement{
		ID:        id.NewDepositID(),
		Account:   account,
		Kind:      balance.KindDeposit,
		Amount:    amount,
		CreatedAt: now,
	}
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := l.state(ctx, tx); err != nil {
			return err
		}
		if err := credit(ctx, tx, account, amount); err != nil {
			return err
		}
		return tx.CreateMovement(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("deposit", "account", account, "amount", amount)
	l.plugins.EmitDeposit(ctx, m)
	return m, nil
}

// Withdraw debits amount from the caller's stored balance. The remaining
// live balance must still satisfy the reserve for the caller's outbound
// subscriptions.
func (l *Ledger) Withdraw(ctx context.Context, account types.AccountID, amount types.Amount) (*balance.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := requireCaller(ctx, account); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}

	now := l.now()
	m := &balance.Movement{
		ID:        id.NewWithdrawalID(),
		Account:   account,
		Kind:      balance.KindWithdrawal,
		Amount:    amount,
		CreatedAt: now,
	}
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		st, err := l.state(ctx, tx)
		if err != nil {
			return err
		}
		live, err := liveBalance(ctx, tx, account, now)
		if err != nil {
			return err
		}
		if live < amount {
			return ErrInsufficientBalance
		}
		outbound, err := outboundRate(ctx, tx, account)
		if err != nil {
			return err
		}
		if err := checkReserve(ctx, tx, st, account, now, outbound, amount); err != nil {
			return err
		}
		if err := debit(ctx, tx, account, amount); err != nil {
			return err
		}
		return tx.CreateMovement(ctx, m)
	})
	if err != nil {
		l.reportFailure(ctx, err)
		return nil, err
	}

	l.logger.Info("withdrawal", "account", account, "amount", amount)
	l.plugins.EmitWithdrawal(ctx, m)
	return m, nil
}

// Movements lists deposits, withdrawals and payouts of account.
func (l *Ledger) Movements(ctx context.Context, account types.AccountID, opts balance.ListOpts) ([]*balance.Movement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.ListMovements(ctx, account, opts)
}

// ──────────────────────────────────────────────────
// Accrual helpers
// ──────────────────────────────────────────────────

// liveBalance computes stored + inbound accrual - outbound accrual at "at".
func liveBalance(ctx context.Context, s store.Store, account types.AccountID, at time.Time) (types.Amount, error) {
	total, err := s.GetBalance(ctx, account)
	if err != nil {
		return 0, err
	}

	inbound, err := accrual(ctx, s, flow.Inputs, account, at)
	if err != nil {
		return 0, err
	}
	outbound, err := accrual(ctx, s, flow.Outputs, account, at)
	if err != nil {
		return 0, err
	}

	if total, err = total.Add(inbound); err != nil {
		return 0, ErrArithmeticOverflow
	}
	if total, err = total.Sub(outbound); err != nil {
		return 0, ErrArithmeticOverflow
	}
	return total, nil
}

// accrual sums the unsettled amounts of one side of account's flows.
func accrual(ctx context.Context, s store.Store, dir flow.Direction, account types.AccountID, at time.Time) (types.Amount, error) {
	indexes, err := s.ListFlows(ctx, dir, account)
	if err != nil {
		return 0, err
	}

	var total types.Amount
	for _, idx := range indexes {
		sub, err := s.GetSubscription(ctx, idx)
		if err != nil {
			return 0, err
		}
		amount, err := sub.Accrued(at)
		if err != nil {
			return 0, overflow(err)
		}
		if total, err = total.Add(amount); err != nil {
			return 0, ErrArithmeticOverflow
		}
	}
	return total, nil
}

// outboundRate sums the rates of every subscription account pays into.
func outboundRate(ctx context.Context, s store.Store, account types.AccountID) (types.Rate, error) {
	indexes, err := s.ListFlows(ctx, flow.Outputs, account)
	if err != nil {
		return 0, err
	}

	var total types.Rate
	for _, idx := range indexes {
		sub, err := s.GetSubscription(ctx, idx)
		if err != nil {
			return 0, err
		}
		if total, err = total.Add(sub.Rate); err != nil {
			return 0, ErrArithmeticOverflow
		}
	}
	return total, nil
}

// checkReserve verifies that account, after paying pending, can still fund
// outbound for the state's reserve horizon.
func checkReserve(ctx context.Context, s store.Store, st *treasury.State, account types.AccountID, at time.Time, outbound types.Rate, pending types.Amount) error {
	live, err := liveBalance(ctx, s, account, at)
	if err != nil {
		return err
	}
	available, err := live.Sub(pending)
	if err != nil {
		return ErrArithmeticOverflow
	}
	required, err := outbound.Over(st.HorizonSeconds())
	if err != nil {
		return ErrArithmeticOverflow
	}
	if available < required {
		return &ReserveError{Account: account, Required: required, Available: available}
	}
	return nil
}

// settle moves the accrual of sub since LastSettled from source to
// destination and advances LastSettled to now.
func settle(ctx context.Context, s store.Store, sub *subscription.Subscription, now time.Time) (*subscription.Settlement, error) {
	amount, err := sub.Accrued(now)
	if err != nil {
		return nil, overflow(err)
	}

	stl := &subscription.Settlement{
		ID:           id.NewSettlementID(),
		Subscription: sub.ID,
		Source:       sub.Source,
		Destination:  sub.Destination,
		Amount:       amount,
		From:         sub.LastSettled,
		To:           sub.LastSettled,
	}
	if !now.After(sub.LastSettled) {
		return stl, nil
	}

	if err := debit(ctx, s, sub.Source, amount); err != nil {
		return nil, err
	}
	if err := credit(ctx, s, sub.Destination, amount); err != nil {
		return nil, err
	}

	sub.LastSettled = now
	sub.Touch(now)
	if err := s.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	stl.To = now
	return stl, nil
}

func credit(ctx context.Context, s store.Store, account types.AccountID, amount types.Amount) error {
	stored, err := s.GetBalance(ctx, account)
	if err != nil {
		return err
	}
	next, err := stored.Add(amount)
	if err != nil {
		return ErrArithmeticOverflow
	}
	return s.SetBalance(ctx, account, next)
}

func debit(ctx context.Context, s store.Store, account types.AccountID, amount types.Amount) error {
	stored, err := s.GetBalance(ctx, account)
	if err != nil {
		return err
	}
	next, err := stored.Sub(amount)
	if err != nil {
		return ErrArithmeticOverflow
	}
	return s.SetBalance(ctx, account, next)
}
