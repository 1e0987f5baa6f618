package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"creditline-backend/internal/logger"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id                 TEXT PRIMARY KEY,
		email              TEXT NOT NULL DEFAULT '',
		display_name       TEXT NOT NULL DEFAULT '',
		credits            NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (credits >= 0),
		free_chat_messages INTEGER NOT NULL DEFAULT 0 CHECK (free_chat_messages >= 0),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id               TEXT PRIMARY KEY,
		customer_id      TEXT NOT NULL REFERENCES customers(id),
		package_id       TEXT NOT NULL,
		payment_method   TEXT NOT NULL,
		amount_usd       NUMERIC(14,2) NOT NULL CHECK (amount_usd > 0),
		credits          NUMERIC(14,2) NOT NULL,
		bonus            NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (bonus >= 0),
		status           TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed', 'refunded')),
		processor_ref    TEXT NOT NULL DEFAULT '',
		failure_reason   TEXT NOT NULL DEFAULT '',
		refund_reason    TEXT NOT NULL DEFAULT '',
		refunded_credits NUMERIC(14,2) NOT NULL DEFAULT 0,
		absorbed_credits NUMERIC(14,2) NOT NULL DEFAULT 0,
		reversed         BOOLEAN NOT NULL DEFAULT false,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL,
		completed_at     TIMESTAMPTZ,
		refunded_at      TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_transactions_customer ON credit_transactions (customer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_transactions_pending ON credit_transactions (created_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS chargebacks (
		id                TEXT PRIMARY KEY,
		transaction_id    TEXT NOT NULL REFERENCES credit_transactions(id),
		customer_id       TEXT NOT NULL REFERENCES customers(id),
		amount            NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		reason            TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL CHECK (status IN ('pending', 'won', 'lost', 'partial')),
		notes             TEXT NOT NULL DEFAULT '',
		processor_case_id TEXT NOT NULL DEFAULT '',
		adjustment_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		credits_debited   NUMERIC(14,2) NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL,
		resolved_at       TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_chargebacks_open ON chargebacks (transaction_id) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS activities (
		id                TEXT PRIMARY KEY,
		customer_id       TEXT NOT NULL,
		operator_id       TEXT NOT NULL,
		site_domain       TEXT NOT NULL DEFAULT '',
		type              TEXT NOT NULL,
		amount            NUMERIC(14,2) NOT NULL CHECK (amount >= 0),
		operator_earnings NUMERIC(14,2) NOT NULL,
		billed            BOOLEAN NOT NULL,
		occurred_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_operator ON activities (operator_id, occurred_at)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_customer ON activities (customer_id, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS operator_earnings (
		operator_id    TEXT PRIMARY KEY,
		total_earnings NUMERIC(14,2) NOT NULL DEFAULT 0,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id          TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		operator_id TEXT NOT NULL,
		site_domain TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		operator_id     TEXT NOT NULL,
		customer_id     TEXT NOT NULL,
		kind            TEXT NOT NULL,
		content         TEXT NOT NULL,
		price           NUMERIC(14,2) NOT NULL DEFAULT 0,
		activity_id     TEXT NOT NULL REFERENCES activities(id),
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS profile_views (
		id         TEXT PRIMARY KEY,
		viewer_id  TEXT NOT NULL,
		profile_id TEXT NOT NULL,
		viewed_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profile_views_viewer ON profile_views (viewer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_profile_views_profile ON profile_views (profile_id, viewed_at)`,
}

// Migrate creates the ledger tables if they do not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.Info("Applying ledger schema", "statements", len(schema))
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
