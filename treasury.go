package paystream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/id"
	"github.com/xraph/paystream/store"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// Initialize creates the ledger state with owner as its administrator.
// Every mutating operation fails with ErrNotInitialized until it ran.
func (l *Ledger) Initialize(ctx context.Context, owner types.AccountID) (*treasury.State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if owner == "" {
		return nil, ValidationError{Field: "owner", Message: "must not be empty"}
	}
	if l.reserveHorizon < 0 {
		return nil, ValidationError{Field: "reserve_horizon", Message: "must not be negative"}
	}

	now := l.now()
	st := &treasury.State{
		Entity:         types.NewEntity(now),
		Owner:          owner,
		ReserveHorizon: l.reserveHorizon.Truncate(time.Second),
	}
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetState(ctx); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, ErrStateNotFound) {
			return err
		}
		return tx.SaveState(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("ledger initialized", "owner", owner, "reserve_horizon", st.ReserveHorizon)
	l.plugins.EmitStateChanged(ctx, st)
	return st, nil
}

// State returns the ledger's administrative state.
func (l *Ledger) State(ctx context.Context) (*treasury.State, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state(ctx, l.store)
}

// Owner returns the administrator account.
func (l *Ledger) Owner(ctx context.Context) (types.AccountID, error) {
	st, err := l.State(ctx)
	if err != nil {
		return "", err
	}
	return st.Owner, nil
}

// Treasury returns the treasury account, or ErrTreasuryNotSet.
func (l *Ledger) Treasury(ctx context.Context) (types.AccountID, error) {
	st, err := l.State(ctx)
	if err != nil {
		return "", err
	}
	if !st.HasTreasury() {
		return "", ErrTreasuryNotSet
	}
	return st.Treasury, nil
}

// SetTreasury designates the treasury account. Only the owner may call it;
// setting the current treasury again is a no-op.
func (l *Ledger) SetTreasury(ctx context.Context, account types.AccountID) (*treasury.State, error) {
	if account == "" {
		return nil, ValidationError{Field: "treasury", Message: "must not be empty"}
	}
	return l.updateState(ctx, func(st *treasury.State) error {
		st.Treasury = account
		return nil
	})
}

// SetOwner hands the administrator role to another account.
func (l *Ledger) SetOwner(ctx context.Context, owner types.AccountID) (*treasury.State, error) {
	if owner == "" {
		return nil, ValidationError{Field: "owner", Message: "must not be empty"}
	}
	return l.updateState(ctx, func(st *treasury.State) error {
		if st.Owner == owner {
			return fmt.Errorf("%w: %s already owns the ledger", ErrInvalidInput, owner)
		}
		st.Owner = owner
		return nil
	})
}

// UpdateReserve changes the reserve horizon applied to future checks.
func (l *Ledger) UpdateReserve(ctx context.Context, horizon time.Duration) (*treasury.State, error) {
	if horizon < 0 {
		return nil, ValidationError{Field: "reserve_horizon", Message: "must not be negative"}
	}
	return l.updateState(ctx, func(st *treasury.State) error {
		st.ReserveHorizon = horizon.Truncate(time.Second)
		return nil
	})
}

// updateState applies mutate to the state on behalf of the owner.
func (l *Ledger) updateState(ctx context.Context, mutate func(*treasury.State) error) (*treasury.State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var st *treasury.State
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		if st, err = l.state(ctx, tx); err != nil {
			return err
		}
		if _, err := requireCaller(ctx, st.Owner); err != nil {
			return err
		}
		if err := mutate(st); err != nil {
			return err
		}
		st.Touch(now)
		return tx.SaveState(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("ledger state updated",
		"owner", st.Owner,
		"treasury", st.Treasury,
		"reserve_horizon", st.ReserveHorizon,
	)
	l.plugins.EmitStateChanged(ctx, st)
	return st, nil
}

// PayFromTreasury pays amount from the treasury's balance to destination
// through the configured transferer. Only the treasury account may call it,
// and like Withdraw the payout must leave enough to fund the treasury's own
// outbound subscriptions for the reserve horizon. If the transfer fails
// nothing is debited and ErrTransferFailure is returned.
func (l *Ledger) PayFromTreasury(ctx context.Context, destination types.AccountID, amount types.Amount) (*treasury.Payout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if destination == "" {
		return nil, ValidationError{Field: "destination", Message: "must not be empty"}
	}
	if !amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}

	now := l.now()
	var payout *treasury.Payout
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		st, err := l.state(ctx, tx)
		if err != nil {
			return err
		}
		if !st.HasTreasury() {
			return ErrTreasuryNotSet
		}
		if _, err := requireCaller(ctx, st.Treasury); err != nil {
			return err
		}

		live, err := liveBalance(ctx, tx, st.Treasury, now)
		if err != nil {
			return err
		}
		if live < amount {
			return ErrInsufficientBalance
		}
		outbound, err := outboundRate(ctx, tx, st.Treasury)
		if err != nil {
			return err
		}
		if err := checkReserve(ctx, tx, st, st.Treasury, now, outbound, amount); err != nil {
			return err
		}
		if err := debit(ctx, tx, st.Treasury, amount); err != nil {
			return err
		}

		payout = &treasury.Payout{
			ID:          id.NewPayoutID(),
			Treasury:    st.Treasury,
			Destination: destination,
			Amount:      amount,
			CreatedAt:   now,
		}
		if err := tx.CreatePayout(ctx, payout); err != nil {
			return err
		}
		if err := tx.CreateMovement(ctx, &balance.Movement{
			ID:        payout.ID,
			Account:   st.Treasury,
			Kind:      balance.KindPayout,
			Amount:    amount,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		tr := l.resolveTransferer()
		if tr == nil {
			return fmt.Errorf("%w: no transferer configured", ErrTransferFailure)
		}
		if err := tr.Transfer(ctx, payout); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailure, err)
		}
		return nil
	})
	if err != nil {
		l.reportFailure(ctx, err)
		if errors.Is(err, ErrTransferFailure) && payout != nil {
			l.logger.Warn("treasury transfer failed",
				"payout", payout.ID.String(),
				"destination", destination,
				"error", err,
			)
			l.plugins.EmitTransferFailed(ctx, payout, err)
		}
		return nil, err
	}

	l.logger.Info("treasury payout",
		"payout", payout.ID.String(),
		"destination", destination,
		"amount", amount,
	)
	l.plugins.EmitTreasuryPaid(ctx, payout)
	return payout, nil
}

// Payouts lists committed treasury payouts.
func (l *Ledger) Payouts(ctx context.Context, opts treasury.ListOpts) ([]*treasury.Payout, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.ListPayouts(ctx, opts)
}
