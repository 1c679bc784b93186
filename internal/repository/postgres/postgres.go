// Package postgres is the durable adapter for the ledger store contracts.
// Balance adjustments and status transitions are single conditional UPDATE
// statements, so the atomicity and CAS guarantees hold at the database even
// with multiple processes sharing one schema.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/repository"
)

var (
	_ repository.AccountStore     = (*AccountStore)(nil)
	_ repository.TransactionStore = (*TransactionStore)(nil)
	_ repository.AuditStore       = (*AuditStore)(nil)
)

// EnsureSchema creates the ledger tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			account_name TEXT NOT NULL,
			account_type TEXT NOT NULL,
			parent_account_id TEXT,
			balance BIGINT NOT NULL DEFAULT 0,
			available_balance BIGINT NOT NULL DEFAULT 0,
			opening_balance BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			account_holder_id TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			allow_overdraft BOOLEAN NOT NULL DEFAULT FALSE,
			metadata JSONB,
			linked_account_id TEXT,
			institution_id TEXT,
			institution_name TEXT,
			link_status TEXT,
			link_authorized_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_holder ON accounts (account_holder_id);
		CREATE INDEX IF NOT EXISTS idx_accounts_parent ON accounts (parent_account_id);

		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			destination_account_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			reference TEXT NOT NULL,
			description TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			transaction_method TEXT NOT NULL,
			transaction_method_id TEXT,
			disputed BOOLEAN NOT NULL DEFAULT FALSE,
			transaction_status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ,
			voided_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions (account_id);
		CREATE INDEX IF NOT EXISTS idx_transactions_destination ON transactions (destination_account_id);
		CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (transaction_status);

		CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			prev_state TEXT,
			next_state TEXT,
			metadata TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log (entity_id);
	`
	if _, err := db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

func mapPgError(err error, entity, id string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s %s", models.ErrConflict, entity, id)
	}
	return err
}
