package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
	tx *pgdriver.PgTx // non-nil inside Tx
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("paystream/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("paystream/postgres: %w: %w", paystream.ErrMigrationFailed, err)
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

// Tx runs fn inside a database transaction. Nested calls join the
// enclosing transaction.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, tx pstore.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("paystream/postgres: begin: %w: %w", paystream.ErrTransactionFailed, err)
	}
	if err := fn(ctx, &Store{db: s.db, pg: s.pg, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("paystream/postgres: rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("paystream/postgres: commit: %w: %w", paystream.ErrTransactionFailed, err)
	}
	return nil
}

func (s *Store) newSelect(model any) *pgdriver.SelectQuery {
	if s.tx != nil {
		return s.tx.NewSelect(model)
	}
	return s.pg.NewSelect(model)
}

func (s *Store) newInsert(model any) *pgdriver.InsertQuery {
	if s.tx != nil {
		return s.tx.NewInsert(model)
	}
	return s.pg.NewInsert(model)
}

func (s *Store) newUpdate(model any) *pgdriver.UpdateQuery {
	if s.tx != nil {
		return s.tx.NewUpdate(model)
	}
	return s.pg.NewUpdate(model)
}

func (s *Store) newDelete(model any) *pgdriver.DeleteQuery {
	if s.tx != nil {
		return s.tx.NewDelete(model)
	}
	return s.pg.NewDelete(model)
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.newInsert(toSubscriptionModel(sub)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, paystream.ErrAlreadyExists)
}

func (s *Store) GetSubscription(ctx context.Context, idx subscription.Index) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.newSelect(m).
		Where("id = $1", int64(idx)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, paystream.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m), nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.newUpdate(toSubscriptionModel(sub)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, paystream.ErrSubscriptionNotFound)
}

func (s *Store) DeleteSubscription(ctx context.Context, idx subscription.Index) error {
	res, err := s.newDelete((*subscriptionModel)(nil)).
		Where("id = $1", int64(idx)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, paystream.ErrSubscriptionNotFound)
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.newSelect(&models).OrderExpr("id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	m := &flowModel{Direction: string(dir), Account: account.String(), Subscription: int64(idx)}
	res, err := s.newInsert(m).
		OnConflict("(direction, account, subscription_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, paystream.ErrAlreadyExists)
}

func (s *Store) RemoveFlow(ctx context.Context, dir flow.Direction, account types.AccountID, idx subscription.Index) error {
	res, err := s.newDelete((*flowModel)(nil)).
		Where("direction = $1", string(dir)).
		Where("account = $2", account.String()).
		Where("subscription_id = $3", int64(idx)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := requireRow(res, paystream.ErrNotFound); err != nil {
		return fmt.Errorf("flow %s/%s/%d: %w", dir, account, idx, err)
	}
	return nil
}

func (s *Store) ListFlows(ctx context.Context, dir flow.Direction, account types.AccountID) ([]subscription.Index, error) {
	var models []flowModel
	err := s.newSelect(&models).
		Where("direction = $1", string(dir)).
		Where("account = $2", account.String()).
		OrderExpr("subscription_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]subscription.Index, len(models))
	for i := range models {
		result[i] = subscription.Index(models[i].Subscription)
	}
	return result, nil
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, account types.AccountID) (types.Amount, error) {
	m := new(balanceModel)
	err := s.newSelect(m).
		Where("account = $1", account.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return types.Amount(m.Stored), nil
}

func (s *Store) SetBalance(ctx context.Context, account types.AccountID, amount types.Amount) error {
	t := now()
	m := &balanceModel{
		Account:   account.String(),
		Stored:    int64(amount),
		CreatedAt: t,
		UpdatedAt: t,
	}
	_, err := s.newInsert(m).
		OnConflict("(account) DO UPDATE").
		Set("stored = EXCLUDED.stored").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListBalances(ctx context.Context) ([]*balance.Account, error) {
	var models []balanceModel
	if err := s.newSelect(&models).OrderExpr("account ASC").Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*balance.Account, len(models))
	for i := range models {
		result[i] = fromBalanceModel(&models[i])
	}
	return result, nil
}

func (s *Store) CreateMovement(ctx context.Context, mv *balance.Movement) error {
	_, err := s.newInsert(toMovementModel(mv)).Exec(ctx)
	return err
}

func (s *Store) ListMovements(ctx context.Context, account types.AccountID, opts balance.ListOpts) ([]*balance.Movement, error) {
	var models []movementModel
	q := s.newSelect(&models)

	argIdx := 0
	if account != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("account = $%d", argIdx), account.String())
	}
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	m := new(stateModel)
	err := s.newSelect(m).
		Where("id = $1", stateKey).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, paystream.ErrStateNotFound
		}
		return nil, err
	}
	return fromStateModel(m), nil
}

func (s *Store) SaveState(ctx context.Context, st *treasury.State) error {
	_, err := s.newInsert(toStateModel(st)).
		OnConflict("(id) DO UPDATE").
		Set("owner = EXCLUDED.owner").
		Set("treasury = EXCLUDED.treasury").
		Set("reserve_seconds = EXCLUDED.reserve_seconds").
		Set("last_index = EXCLUDED.last_index").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) CreatePayout(ctx context.Context, p *treasury.Payout) error {
	_, err := s.newInsert(toPayoutModel(p)).Exec(ctx)
	return err
}

func (s *Store) ListPayouts(ctx context.Context, opts treasury.ListOpts) ([]*treasury.Payout, error) {
	var models []payoutModel
	q := s.newSelect(&models)
	if opts.Destination != "" {
		q = q.Where("destination = $1", opts.Destination.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.newInsert(toReporterModel(r)).
		OnConflict("(account) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, paystream.ErrReporterExists)
}

func (s *Store) GetReporter(ctx context.Context, account types.AccountID) (*reporter.Reporter, error) {
	m := new(reporterModel)
	err := s.newSelect(m).
		Where("account = $1", account.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, paystream.ErrReporterNotFound
		}
		return nil, err
	}
	return fromReporterModel(m), nil
}

func (s *Store) UpdateReporter(ctx context.Context, r *reporter.Reporter) error {
	res, err := s.newUpdate(toReporterModel(r)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, paystream.ErrReporterNotFound)
}

func (s *Store) DeleteReporter(ctx context.Context, account types.AccountID) error {
	res, err := s.newDelete((*reporterModel)(nil)).
		Where("account = $1", account.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, paystream.ErrReporterNotFound)
}

func (s *Store) ListReporters(ctx context.Context) ([]*reporter.Reporter, error) {
	var models []reporterModel
	if err := s.newSelect(&models).OrderExpr("account ASC").Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*reporter.Reporter, len(models))
	for i := range models {
		result[i] = fromReporterModel(&models[i])
	}
	return result, nil
}

func (s *Store) CreateReport(ctx context.Context, r *reporter.Report) error {
	_, err := s.newInsert(toReportModel(r)).Exec(ctx)
	return err
}

func (s *Store) ListReports(ctx context.Context, opts reporter.ListOpts) ([]*reporter.Report, error) {
	var models []reportModel
	q := s.newSelect(&models)
	if opts.Source != "" {
		q = q.Where("source = $1", opts.Source.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

// rowsAffected is the part of a driver result requireRow needs.
type rowsAffected interface {
	RowsAffected() (int64, error)
}

// requireRow returns notFound when res affected no rows.
func requireRow(res rowsAffected, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
