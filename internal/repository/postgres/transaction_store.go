package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/repository"
)

type TransactionStore struct {
	db *pgxpool.Pool
}

func NewTransactionStore(db *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionColumns = `id, account_id, destination_account_id, amount, currency,
	reference, description, transaction_type, transaction_method,
	COALESCE(transaction_method_id, ''), disputed, transaction_status,
	created_at, updated_at, processed_at, voided_at`

func (s *TransactionStore) Create(ctx context.Context, txn *models.Transaction) error {
	query := `INSERT INTO transactions (
			id, account_id, destination_account_id, amount, currency,
			reference, description, transaction_type, transaction_method,
			transaction_method_id, disputed, transaction_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		txn.ID, txn.AccountID, txn.DestinationAccountID, txn.Amount, txn.Currency,
		txn.Reference, txn.Description, txn.Type, txn.Method,
		txn.MethodID, txn.Disputed, txn.Status,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create transaction: %w", mapPgError(err, "transaction", txn.ID))
	}
	return nil
}

func (s *TransactionStore) Get(ctx context.Context, id string) (*models.Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE account_id = $1 OR destination_account_id = $1
		ORDER BY created_at DESC`
	return s.query(ctx, query, accountID)
}

func (s *TransactionStore) ListByStatus(ctx context.Context, accountID string, status domain.TransactionStatus) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE (account_id = $1 OR destination_account_id = $1) AND transaction_status = $2
		ORDER BY created_at DESC`
	return s.query(ctx, query, accountID, status)
}

func (s *TransactionStore) query(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	result := []*models.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, txn)
	}
	return result, rows.Err()
}

// Update runs the mutator against the row locked FOR UPDATE so the
// immutability check and the write happen under one row lock.
func (s *TransactionStore) Update(ctx context.Context, id string, mutate func(*models.Transaction) error) (*models.Transaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	stored, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("lock transaction: %w", err)
	}

	next := stored.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := repository.CheckImmutable(stored, next); err != nil {
		return nil, err
	}

	query := `UPDATE transactions
		SET reference = $1, description = $2, transaction_method = $3,
			transaction_method_id = NULLIF($4, ''), disputed = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`
	if err := tx.QueryRow(ctx, query,
		next.Reference, next.Description, next.Method, next.MethodID, next.Disputed, id,
	).Scan(&next.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction update: %w", err)
	}
	return next, nil
}

// UpdateStatus is a single conditional UPDATE: the WHERE clause carries the
// expected status, which is what makes the transition a compare-and-swap.
// processed_at and voided_at are mutually exclusive, so entering a state
// stamps its column and nulls the other.
func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, expected, next domain.TransactionStatus, at time.Time) (*models.Transaction, error) {
	var stampClause string
	switch next {
	case domain.StatusProcessed:
		stampClause = ", processed_at = $4, voided_at = NULL"
	case domain.StatusVoid:
		stampClause = ", voided_at = $4, processed_at = NULL"
	default:
		stampClause = ", processed_at = NULL, voided_at = NULL"
	}

	query := `UPDATE transactions
		SET transaction_status = $1, updated_at = NOW()` + stampClause + `
		WHERE id = $2 AND transaction_status = $3
		RETURNING ` + transactionColumns

	args := []any{next, id, expected}
	if next == domain.StatusProcessed || next == domain.StatusVoid {
		args = append(args, at)
	}

	row := s.db.QueryRow(ctx, query, args...)
	txn, err := scanTransaction(row)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update transaction status: %w", err)
	}

	// Zero rows: distinguish a missing row from a lost CAS race.
	var current domain.TransactionStatus
	lookupErr := s.db.QueryRow(ctx, `SELECT transaction_status FROM transactions WHERE id = $1`, id).Scan(&current)
	if errors.Is(lookupErr, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}
	if lookupErr != nil {
		return nil, fmt.Errorf("inspect transaction status: %w", lookupErr)
	}
	return nil, fmt.Errorf("%w: expected %s, found %s", models.ErrInvalidState, expected, current)
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var txn models.Transaction
	err := row.Scan(
		&txn.ID, &txn.AccountID, &txn.DestinationAccountID, &txn.Amount, &txn.Currency,
		&txn.Reference, &txn.Description, &txn.Type, &txn.Method,
		&txn.MethodID, &txn.Disputed, &txn.Status,
		&txn.CreatedAt, &txn.UpdatedAt, &txn.ProcessedAt, &txn.VoidedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
