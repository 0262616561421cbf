package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Paystream store.
var Migrations = migrate.NewGroup("paystream")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_paystream_state",
			Version: "20250601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS paystream_state (
    id              TEXT PRIMARY KEY,
    owner           TEXT NOT NULL,
    treasury        TEXT NOT NULL DEFAULT '',
    reserve_seconds BIGINT NOT NULL DEFAULT 0,
    last_index      BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS paystream_state`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_paystream_subscriptions",
			Version: "20250601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS paystream_subscriptions (
    id           BIGINT PRIMARY KEY,
    source       TEXT NOT NULL,
    destination  TEXT NOT NULL,
    rate         BIGINT NOT NULL CHECK (rate > 0),
    start_at     TIMESTAMPTZ NOT NULL,
    last_settled TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_paystream_subscriptions_source ON paystream_subscriptions (source);
CREATE INDEX IF NOT EXISTS idx_paystream_subscriptions_destination ON paystream_subscriptions (destination);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS paystream_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_paystream_flows",
			Version: "20250601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS paystream_flows (
    direction       TEXT NOT NULL CHECK (direction IN ('inputs', 'outputs')),
    account         TEXT NOT NULL,
    subscription_id BIGINT NOT NULL,
    PRIMARY KEY (direction, account, subscription_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS paystream_flows`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_paystream_balances",
			Version: "20250601000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS paystream_balances (
    account    TEXT PRIMARY KEY,
    stored     BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS paystream_movements (
    id         TEXT PRIMARY KEY,
    account    TEXT NOT NULL,
    kind       TEXT NOT NULL,
    amount     BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_paystream_movements_account ON paystream_movements (account, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS paystream_movements;
DROP TABLE IF EXISTS paystream_balances;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_paystream_payouts",
			Version: "20250601000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS paystream_payouts (
    id          TEXT PRIMARY KEY,
    treasury    TEXT NOT NULL,
    destination TEXT NOT NULL,
    amount      BIGINT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_paystream_payouts_destination ON paystream_payouts (destination, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS paystream_payouts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_paystream_reporters",
			Version: "20250601000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS paystream_reporters (
    account    TEXT PRIMARY KEY,
    stake      BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS paystream_reports (
    id             TEXT PRIMARY KEY,
    reporter       TEXT NOT NULL,
    source         TEXT NOT NULL,
    live_balance   BIGINT NOT NULL,
    reporter_share BIGINT NOT NULL,
    treasury_share BIGINT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_paystream_reports_source ON paystream_reports (source, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS paystream_reports;
DROP TABLE IF EXISTS paystream_reporters;
`)
				return err
			},
		},
	)
}
