package subscription

import "context"

// Store persists subscription records keyed by Index.
type Store interface {
	CreateSubscription(ctx context.Context, s *Subscription) error
	GetSubscription(ctx context.Context, idx Index) (*Subscription, error)
	UpdateSubscription(ctx context.Context, s *Subscription) error
	DeleteSubscription(ctx context.Context, idx Index) error
	ListSubscriptions(ctx context.Context, opts ListOpts) ([]*Subscription, error)
}

// ListOpts pages through subscriptions in index order.
type ListOpts struct {
	Limit  int
	Offset int
}
