package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/paystream"
	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/flow"
	"github.com/xraph/paystream/reporter"
	pstore "github.com/xraph/paystream/store"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// Collection name constants.
const (
	colState         = "paystream_state"
	colSubscriptions = "paystream_subscriptions"
	colFlows         = "paystream_flows"
	colBalances      = "paystream_balances"
	colMovements     = "paystream_movements"
	colPayouts       = "paystream_payouts"
	colReporters     = "paystream_reporters"
	colReports       = "paystream_reports"
)

// compile-time interface check
var _ pstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
// Tx requires a replica set or sharded cluster.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all paystream collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("paystream/mongo: migrate %s indexes: %w: %w", col, paystream.ErrMigrationFailed, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx runs fn inside a client session transaction. Operations join the
// session through the context they are given, so fn must use the context
// passed to it. Nested calls join the enclosing session.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, tx pstore.Store) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, s)
	}

	client := s.mdb.Collection(colState).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("paystream/mongo: start session: %w: %w", paystream.ErrTransactionFailed, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, fn(txCtx, s)
	})
	return err
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.mdb.NewInsert(toSubscriptionModel(sub)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return paystream.ErrAlreadyExists
		}
		return fmt.Errorf("paystream/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, idx subscription.Index) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(idx)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, paystream.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("paystream/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m), nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("paystream/mongo: update subscription: %w", err)
	}
	if res.MatchedCount() == 0 {
		return paystream.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, idx subscription.Index) error {
	res, err := s.mdb.NewDelete((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": int64(idx)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("paystream/mongo: delete subscription: %w", err)
	}
	if res.DeletedCount() == 0 {
		return paystream.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("paystream/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		result[i] = fromSubscriptionModel(&models[i])
	}
	return result, nil
}

// ==================== Flow Store ====================

func (s *Store) AppendFlow(ctx context.Context, dir flow.Direction, account types.AccountID, idx subscription.Index) error {
	if !dir.Valid() {
		return fmt.Errorf("%w: unknown direction %q", paystream.ErrInvalidInput, dir)
	}
	m := &flowModel{
		ID:           flowKey(dir, account, idx),
		Direction:    string(dir),
		Account:      account.String(),
		Subscription: int64(idx),
	}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return paystream.ErrAlreadyExists
		}
		return fmt.Errorf("paystream/mongo: append flow: %w", err)
	}
	return nil
}

func (s *Store) RemoveFlow(ctx context.Context, dir flow.Direction, account types.AccountID, idx subscription.Index) error {
	res, err := s.mdb.NewDelete((*flowModel)(nil)).
		Filter(bson.M{"_id": flowKey(dir, account, idx)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("paystream/mongo: remove flow: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("flow %s/%s/%d: %w", dir, account, idx, paystream.ErrNotFound)
	}
	return nil
}

func (s *Store) ListFlows(ctx context.Context, dir flow.Direction, account types.AccountID) ([]subscription.Index, error) {
	var models []flowModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"direction": string(dir), "account": account.String()}).
		Sort(bson.D{{Key: "subscription_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("paystream/mongo: list flows: %w", err)
	}

	result := make([]subscription.Index, len(models))
	for i := range models {
		result[i] = subscription.Index(models[i].Subscription)
	}
	return result, nil
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, account types.AccountID) (types.Amount, error) {
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("paystream/mongo: get balance: %w", err)
	}
	return types.Amount(m.Stored), nil
}

func (s *Store) SetBalance(ctx context.Context, account types.AccountID, amount types.Amount) error {
	t := now()
	_, err := s.mdb.NewUpdate((*balanceModel)(nil)).
		Filter(bson.M{"_id": account.String()}).
		SetUpdate(bson.M{
			"$set":         bson.M{"stored": int64(amount), "updated_at": t},
			"$setOnInsert": bson.M{"created_at": t},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("paystream/mongo: set balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context) ([]*balance.Account, error) {
	var models []balanceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("paystream/mongo: list balances: %w", err)
	}

	result := make([]*balance.Account, len(models))
	for i := range models {
		result[i] = fromBalanceModel(&models[i])
	}
	return result, nil
}

func (s *Store) CreateMovement(ctx context.Context, mv *balance.Movement) error {
	if _, err := s.mdb.NewInsert(toMovementModel(mv)).Exec(ctx); err != nil {
		return fmt.Errorf("paystream/mongo: create movement: %w", err)
	}
	return nil
}

func (s *Store) ListMovements(ctx context.Context, account types.AccountID, opts balance.ListOpts) ([]*balance.Movement, error) {
	var models []movementModel

	filter := bson.M{}
	if account != "" {
		filter["account"] = account.String()
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("paystream/mongo: list movements: %w", err)
	}

	result := make([]*balance.Movement, len(models))
	for i := range models {
		mv, err := fromMovementModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = mv
	}
	return result, nil
}

// ==================== Treasury Store ====================

func (s *Store) GetState(ctx context.Context) (*treasury.State, error) {
	var m stateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": stateKey}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, paystream.ErrStateNotFound
		}
		return nil, fmt.Errorf("paystream/mongo: get state: %w", err)
	}
	return fromStateModel(&m), nil
}

func (s *Store) SaveState(ctx context.Context, st *treasury.State) error {
	m := toStateModel(st)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": stateKey}).
		SetUpdate(bson.M{"$set": bson.M{
			"owner":           m.Owner,
			"treasury":        m.Treasury,
			"reserve_seconds": m.ReserveSeconds,
			"last_index":      m.LastIndex,
			"created_at":      m.CreatedAt,
			"updated_at":      m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("paystream/mongo: save state: %w", err)
	}
	return nil
}

func (s *Store) CreatePayout(ctx context.Context, p *treasury.Payout) error {
	if _, err := s.mdb.NewInsert(toPayoutModel(p)).Exec(ctx); err != nil {
		return fmt.Errorf("paystream/mongo: create payout: %w", err)
	}
	return nil
}

func (s *Store) ListPayouts(ctx context.Context, opts treasury.ListOpts) ([]*treasury.Payout, error) {
	var models []payoutModel

	filter := bson.M{}
	if opts.Destination != "" {
		filter["destination"] = opts.Destination.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("paystream/mongo: list payouts: %w", err)
	}

	result := make([]*treasury.Payout, len(models))
	for i := range models {
		p, err := fromPayoutModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Reporter Store ====================

func (s *Store) CreateReporter(ctx context.Context, r *reporter.Reporter) error {
	if _, err := s.mdb.NewInsert(toReporterModel(r)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return paystream.ErrReporterExists
		}
		return fmt.Errorf("paystream/mongo: create reporter: %w", err)
	}
	return nil
}

func (s *Store) GetReporter(ctx context.Context, account types.AccountID) (*reporter.Reporter, error) {
	var m reporterModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, paystream.ErrReporterNotFound
		}
		return nil, fmt.Errorf("paystream/mongo: get reporter: %w", err)
	}
	return fromReporterModel(&m), nil
}

func (s *Store) UpdateReporter(ctx context.Context, r *reporter.Reporter) error {
	m := toReporterModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Account}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("paystream/mongo: update reporter: %w", err)
	}
	if res.MatchedCount() == 0 {
		return paystream.ErrReporterNotFound
	}
	return nil
}

func (s *Store) DeleteReporter(ctx context.Context, account types.AccountID) error {
	res, err := s.mdb.NewDelete((*reporterModel)(nil)).
		Filter(bson.M{"_id": account.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("paystream/mongo: delete reporter: %w", err)
	}
	if res.DeletedCount() == 0 {
		return paystream.ErrReporterNotFound
	}
	return nil
}

func (s *Store) ListReporters(ctx context.Context) ([]*reporter.Reporter, error) {
	var models []reporterModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("paystream/mongo: list reporters: %w", err)
	}

	result := make([]*reporter.Reporter, len(models))
	for i := range models {
		result[i] = fromReporterModel(&models[i])
	}
	return result, nil
}

func (s *Store) CreateReport(ctx context.Context, r *reporter.Report) error {
	if _, err := s.mdb.NewInsert(toReportModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("paystream/mongo: create report: %w", err)
	}
	return nil
}

func (s *Store) ListReports(ctx context.Context, opts reporter.ListOpts) ([]*reporter.Report, error) {
	var models []reportModel

	filter := bson.M{}
	if opts.Source != "" {
		filter["source"] = opts.Source.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("paystream/mongo: list reports: %w", err)
	}

	result := make([]*reporter.Report, len(models))
	for i := range models {
		r, err := fromReportModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all paystream collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSubscriptions: {
			{Keys: bson.D{{Key: "source", Value: 1}}},
			{Keys: bson.D{{Key: "destination", Value: 1}}},
		},
		colFlows: {
			{
				Keys:    bson.D{{Key: "direction", Value: 1}, {Key: "account", Value: 1}, {Key: "subscription_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colMovements: {
			{Keys: bson.D{{Key: "account", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}}},
		},
		colPayouts: {
			{Keys: bson.D{{Key: "destination", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colReports: {
			{Keys: bson.D{{Key: "source", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "reporter", Value: 1}}},
		},
		colState:     nil,
		colBalances:  nil,
		colReporters: nil,
	}
}
