// Package memory provides an in-memory store.Store for tests and
// single-process deployments.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/flow"
	"github.com/xraph/paystream/reporter"
	pstore "github.com/xraph/paystream/store"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// compile-time interface check
var _ pstore.Store = (*Store)(nil)

type flowKey struct {
	dir     flow.Direction
	account types.AccountID
}

// dataset is everything the store holds. Tx snapshots it by deep copy.
type dataset struct {
	state         *treasury.State
	subscriptions map[subscription.Index]*subscription.Subscription
	flows         map[flowKey][]subscription.Index
	balances      map[types.AccountID]*balance.Account
	movements     []*balance.Movement
	payouts       []*treasury.Payout
	reporters     map[types.AccountID]*reporter.Reporter
	reports       []*reporter.Report
}

func newDataset() *dataset {
	return &dataset{
		subscriptions: make(map[subscription.Index]*subscription.Subscription),
		flows:         make(map[flowKey][]subscription.Index),
		balances:      make(map[types.AccountID]*balance.Account),
		reporters:     make(map[types.AccountID]*reporter.Reporter),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	if d.state != nil {
		st := *d.state
		c.state = &st
	}
	for k, v := range d.subscriptions {
		c.subscriptions[k] = v.Clone()
	}
	for k, v := range d.flows {
		c.flows[k] = slices.Clone(v)
	}
	for k, v := range d.balances {
		b := *v
		c.balances[k] = &b
	}
	for k, v := range d.reporters {
		r := *v
		c.reporters[k] = &r
	}
	c.movements = slices.Clone(d.movements)
	c.payouts = slices.Clone(d.payouts)
	c.reports = slices.Clone(d.reports)
	return c
}

// Store is a map-backed store. Transactions are serialized and roll back
// by restoring a snapshot taken when they began.
type Store struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	data   *dataset
	closed bool
}

// New returns an empty memory store.
func New() *Store {
	return &Store{data: newDataset()}
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.subscriptions[sub.ID]; exists {
		return paystream.ErrAlreadyExists
	}
	s.data.subscriptions[sub.ID] = sub.Clone()
	return nil
}

func (s *Store) GetSubscription(_ context.Context, idx subscription.Index) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.data.subscriptions[idx]; ok {
		return sub.Clone(), nil
	}
	return nil, paystream.ErrSubscriptionNotFound
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.subscriptions[sub.ID]; !exists {
		return paystream.ErrSubscriptionNotFound
	}
	s.data.subscriptions[sub.ID] = sub.Clone()
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, idx subscription.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.subscriptions[idx]; !exists {
		return paystream.ErrSubscriptionNotFound
	}
	delete(s.data.subscriptions, idx)
	return nil
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0, len(s.data.subscriptions))
	for _, sub := range s.data.subscriptions {
		result = append(result, sub.Clone())
	}
	slices.SortFunc(result, func(a, b *subscription.Subscription) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return page(result, opts.Limit, opts.Offset), nil
}

// ==================== Flow Store ====================

func (s *Store) AppendFlow(_ context.Context, dir flow.Direction, account types.AccountID, idx subscription.Index) error {
	if !dir.Valid() {
		return fmt.Errorf("%w: unknown direction %q", paystream.ErrInvalidInput, dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := flowKey{dir: dir, account: account}
	if slices.Contains(s.data.flows[key], idx) {
		return paystream.ErrAlreadyExists
	}
	s.data.flows[key] = append(s.data.flows[key], idx)
	return nil
}

func (s *Store) RemoveFlow(_ context.Context, dir flow.Direction, account types.AccountID, idx subscription.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := flowKey{dir: dir, account: account}
	bucket := s.data.flows[key]
	i := slices.Index(bucket, idx)
	if i < 0 {
		return fmt.Errorf("flow %s/%s/%d: %w", dir, account, idx, paystream.ErrNotFound)
	}
	bucket = slices.Delete(bucket, i, i+1)
	if len(bucket) == 0 {
		delete(s.data.flows, key)
		return nil
	}
	s.data.flows[key] = bucket
	return nil
}

func (s *Store) ListFlows(_ context.Context, dir flow.Direction, account types.AccountID) ([]subscription.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.data.flows[flowKey{dir: dir, account: account}]
	result := make([]subscription.Index, len(bucket))
	copy(result, bucket)
	return result, nil
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(_ context.Context, account types.AccountID) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.data.balances[account]; ok {
		return b.Stored, nil
	}
	return 0, nil
}

func (s *Store) SetBalance(_ context.Context, account types.AccountID, amount types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.data.balances[account]; ok {
		next := *b
		next.Stored = amount
		next.Touch(time.Now())
		s.data.balances[account] = &next
		return nil
	}
	s.data.balances[account] = &balance.Account{
		Entity:  types.NewEntity(time.Now()),
		Account: account,
		Stored:  amount,
	}
	return nil
}

func (s *Store) ListBalances(_ context.Context) ([]*balance.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*balance.Account, 0, len(s.data.balances))
	for _, b := range s.data.balances {
		c := *b
		result = append(result, &c)
	}
	slices.SortFunc(result, func(a, b *balance.Account) int {
		return strings.Compare(string(a.Account), string(b.Account))
	})
	return result, nil
}

func (s *Store) CreateMovement(_ context.Context, m *balance.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *m
	s.data.movements = append(s.data.movements, &c)
	return nil
}

func (s *Store) ListMovements(_ context.Context, account types.AccountID, opts balance.ListOpts) ([]*balance.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*balance.Movement, 0)
	for _, m := range s.data.movements {
		if account != "" && m.Account != account {
			continue
		}
		if opts.Kind != "" && m.Kind != opts.Kind {
			continue
		}
		c := *m
		result = append(result, &c)
	}
	return page(result, opts.Limit, opts.Offset), nil
}

// ==================== Treasury Store ====================

func (s *Store) GetState(_ context.Context) (*treasury.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data.state == nil {
		return nil, paystream.ErrStateNotFound
	}
	st := *s.data.state
	return &st, nil
}

func (s *Store) SaveState(_ context.Context, st *treasury.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *st
	s.data.state = &c
	return nil
}

func (s *Store) CreatePayout(_ context.Context, p *treasury.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *p
	s.data.payouts = append(s.data.payouts, &c)
	return nil
}

func (s *Store) ListPayouts(_ context.Context, opts treasury.ListOpts) ([]*treasury.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*treasury.Payout, 0)
	for _, p := range s.data.payouts {
		if opts.Destination != "" && p.Destination != opts.Destination {
			continue
		}
		c := *p
		result = append(result, &c)
	}
	return page(result, opts.Limit, opts.Offset), nil
}

// ==================== Reporter Store ====================

func (s *Store) CreateReporter(_ context.Context, r *reporter.Reporter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.reporters[r.Account]; exists {
		return paystream.ErrReporterExists
	}
	c := *r
	s.data.reporters[r.Account] = &c
	return nil
}

func (s *Store) GetReporter(_ context.Context, account types.AccountID) (*reporter.Reporter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.data.reporters[account]; ok {
		c := *r
		return &c, nil
	}
	return nil, paystream.ErrReporterNotFound
}

func (s *Store) UpdateReporter(_ context.Context, r *reporter.Reporter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.reporters[r.Account]; !exists {
		return paystream.ErrReporterNotFound
	}
	c := *r
	s.data.reporters[r.Account] = &c
	return nil
}

func (s *Store) DeleteReporter(_ context.Context, account types.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.reporters[account]; !exists {
		return paystream.ErrReporterNotFound
	}
	delete(s.data.reporters, account)
	return nil
}

func (s *Store) ListReporters(_ context.Context) ([]*reporter.Reporter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*reporter.Reporter, 0, len(s.data.reporters))
	for _, r := range s.data.reporters {
		c := *r
		result = append(result, &c)
	}
	slices.SortFunc(result, func(a, b *reporter.Reporter) int {
		return strings.Compare(string(a.Account), string(b.Account))
	})
	return result, nil
}

func (s *Store) CreateReport(_ context.Context, r *reporter.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *r
	s.data.reports = append(s.data.reports, &c)
	return nil
}

func (s *Store) ListReports(_ context.Context, opts reporter.ListOpts) ([]*reporter.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*reporter.Report, 0)
	for _, r := range s.data.reports {
		if opts.Source != "" && r.Source != opts.Source {
			continue
		}
		c := *r
		result = append(result, &c)
	}
	return page(result, opts.Limit, opts.Offset), nil
}

// ==================== Core ====================

// Tx runs fn against the store itself. Transactions do not nest.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, tx pstore.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return paystream.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Data stays readable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
