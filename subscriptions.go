package paystream

import (
	"context"
	"math"
	"time"

	"github.com/xraph/paystream/flow"
	"github.com/xraph/paystream/store"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/types"
)

// AddSubscription opens a flow of rate units per second from source to
// destination, accruing from start. A zero start means now. The caller
// must be the source, and the source's live balance, less what the flow
// has already accrued since start, must fund all of its outbound rates for
// the reserve horizon.
func (l *Ledger) AddSubscription(ctx context.Context, start time.Time, source, destination types.AccountID, rate types.Rate) (*subscription.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := requireCaller(ctx, source); err != nil {
		return nil, err
	}
	if rate <= 0 || destination == "" || source == destination {
		return nil, ErrInvalidSubscription
	}

	now := l.now()
	if start.IsZero() {
		start = now
	}
	start = start.UTC().Truncate(time.Second)
	if start.After(now) || start.Before(now.Add(-l.maxBackdate)) {
		return nil, ErrInvalidTime
	}

	var sub *subscription.Subscription
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		st, err := l.state(ctx, tx)
		if err != nil {
			return err
		}

		outbound, err := outboundRate(ctx, tx, source)
		if err != nil {
			return err
		}
		if outbound, err = outbound.Add(rate); err != nil {
			return ErrArithmeticOverflow
		}
		backdated, err := rate.Over(types.ElapsedSeconds(start, now))
		if err != nil {
			return ErrArithmeticOverflow
		}
		if err := checkReserve(ctx, tx, st, source, now, outbound, backdated); err != nil {
			return err
		}

		if st.LastIndex >= math.MaxInt64 {
			return ErrArithmeticOverflow
		}
		st.LastIndex = st.NextIndex()
		st.Touch(now)
		if err := tx.SaveState(ctx, st); err != nil {
			return err
		}

		sub = &subscription.Subscription{
			Entity:      types.NewEntity(now),
			ID:          st.LastIndex,
			Source:      source,
			Destination: destination,
			Rate:        rate,
			Start:       start,
			LastSettled: start,
		}
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}
		if err := tx.AppendFlow(ctx, flow.Outputs, source, sub.ID); err != nil {
			return err
		}
		return tx.AppendFlow(ctx, flow.Inputs, destination, sub.ID)
	})
	if err != nil {
		l.reportFailure(ctx, err)
		return nil, err
	}

	l.logger.Info("subscription added",
		"subscription", sub.ID,
		"source", source,
		"destination", destination,
		"rate", rate,
	)
	l.plugins.EmitSubscriptionCreated(ctx, sub)
	return sub, nil
}

// RemoveSubscription settles and deletes the subscription. Either party may
// remove it.
func (l *Ledger) RemoveSubscription(ctx context.Context, idx subscription.Index) (*subscription.Subscription, *subscription.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var (
		sub *subscription.Subscription
		stl *subscription.Settlement
	)
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := l.state(ctx, tx); err != nil {
			return err
		}

		var err error
		if sub, err = tx.GetSubscription(ctx, idx); err != nil {
			return err
		}
		if _, err := requireCaller(ctx, sub.Source, sub.Destination); err != nil {
			return err
		}
		if stl, err = settle(ctx, tx, sub, now); err != nil {
			return err
		}

		if err := tx.RemoveFlow(ctx, flow.Outputs, sub.Source, idx); err != nil {
			return err
		}
		if err := tx.RemoveFlow(ctx, flow.Inputs, sub.Destination, idx); err != nil {
			return err
		}
		return tx.DeleteSubscription(ctx, idx)
	})
	if err != nil {
		return nil, nil, err
	}

	l.logger.Info("subscription removed",
		"subscription", idx,
		"settled", stl.Amount,
	)
	l.plugins.EmitSettled(ctx, []*subscription.Settlement{stl})
	l.plugins.EmitSubscriptionRemoved(ctx, sub)
	return sub, stl, nil
}

// UpdateSubscription settles the subscription and then changes its rate.
// Keeping the same rate only advances LastSettled. A higher rate must pass
// the reserve check for the source's new cumulative outbound rate, otherwise
// the whole call, settlement included, is rolled back. Lowering a rate is
// always allowed.
func (l *Ledger) UpdateSubscription(ctx context.Context, idx subscription.Index, rate types.Rate) (*subscription.Subscription, *subscription.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rate <= 0 {
		return nil, nil, ErrInvalidSubscription
	}

	now := l.now()
	var (
		sub     *subscription.Subscription
		stl     *subscription.Settlement
		oldRate types.Rate
	)
	err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		st, err := l.state(ctx, tx)
		if err != nil {
			return err
		}

		if sub, err = tx.GetSubscription(ctx, idx); err != nil {
			return err
		}
		if _, err := requireCaller(ctx, sub.Source, sub.Destination); err != nil {
			return err
		}
		oldRate = sub.Rate
		if stl, err = settle(ctx, tx, sub, now); err != nil {
			return err
		}
		if rate == oldRate {
			return nil
		}

		sub.Rate = rate
		sub.Touch(now)
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		if rate < oldRate {
			return nil
		}
		outbound, err := outboundRate(ctx, tx, sub.Source)
		if err != nil {
			return err
		}
		return checkReserve(ctx, tx, st, sub.Source, now, outbound, 0)
	})
	if err != nil {
		l.reportFailure(ctx, err)
		return nil, nil, err
	}

	l.plugins.EmitSettled(ctx, []*subscription.Settlement{stl})
	if rate != oldRate {
		l.logger.Info("subscription updated",
			"subscription", idx,
			"old_rate", oldRate,
			"rate", rate,
		)
		l.plugins.EmitSubscriptionUpdated(ctx, sub, oldRate)
	}
	return sub, stl, nil
}

// GetSubscription returns the subscription with the given index.
func (l *Ledger) GetSubscription(ctx context.Context, idx subscription.Index) (*subscription.Subscription, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.GetSubscription(ctx, idx)
}

// Flows returns the inbound and outbound subscription indexes of account.
func (l *Ledger) Flows(ctx context.Context, account types.AccountID) (*flow.Flows, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return flows(ctx, l.store, account)
}

// Subscriptions returns every subscription touching account: the ones it
// receives from first, then the ones it pays into. Unknown accounts yield
// an empty slice.
func (l *Ledger) Subscriptions(ctx context.Context, account types.AccountID) ([]*subscription.Subscription, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := flows(ctx, l.store, account)
	if err != nil {
		return nil, err
	}

	all := f.All()
	subs := make([]*subscription.Subscription, 0, len(all))
	for _, idx := range all {
		sub, err := l.store.GetSubscription(ctx, idx)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func flows(ctx context.Context, s store.Store, account types.AccountID) (*flow.Flows, error) {
	inputs, err := s.ListFlows(ctx, flow.Inputs, account)
	if err != nil {
		return nil, err
	}
	outputs, err := s.ListFlows(ctx, flow.Outputs, account)
	if err != nil {
		return nil, err
	}
	return &flow.Flows{Account: account, Inputs: inputs, Outputs: outputs}, nil
}
