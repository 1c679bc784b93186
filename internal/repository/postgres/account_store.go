package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/repository"
)

type AccountStore struct {
	db *pgxpool.Pool
}

func NewAccountStore(db *pgxpool.Pool) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, account_name, account_type, COALESCE(parent_account_id, ''),
	balance, available_balance, opening_balance, currency, account_holder_id,
	active, allow_overdraft, metadata,
	COALESCE(linked_account_id, ''), COALESCE(institution_id, ''), COALESCE(institution_name, ''),
	COALESCE(link_status, ''), link_authorized_at, created_at, updated_at`

func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	metadata, err := json.Marshal(account.Metadata)
	if err != nil {
		return fmt.Errorf("marshal account metadata: %w", err)
	}

	query := `INSERT INTO accounts (
			id, account_name, account_type, parent_account_id,
			balance, available_balance, opening_balance, currency, account_holder_id,
			active, allow_overdraft, metadata,
			linked_account_id, institution_id, institution_name, link_status, link_authorized_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12,
			NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''), NULLIF($16, ''), $17, NOW(), NOW())
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		account.ID, account.AccountName, account.AccountType, account.ParentAccountID,
		account.Balance, account.AvailableBalance, account.OpeningBalance, account.Currency, account.AccountHolderID,
		account.Active, account.AllowOverdraft, metadata,
		account.LinkedAccountID, account.InstitutionID, account.InstitutionName, string(account.LinkStatus), account.LinkAuthorizedAt,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create account: %w", mapPgError(err, "account", account.ID))
	}
	return nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (*models.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

func (s *AccountStore) List(ctx context.Context, filter repository.AccountFilter) ([]*models.Account, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.HolderID != "" {
		clauses = append(clauses, "account_holder_id = "+arg(filter.HolderID))
	}
	if filter.ParentID != "" {
		clauses = append(clauses, "parent_account_id = "+arg(filter.ParentID))
	}
	if filter.Type != "" {
		clauses = append(clauses, "account_type = "+arg(string(filter.Type)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "active")
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		result = append(result, account)
	}
	return result, rows.Err()
}

// AdjustBalance applies both deltas in one UPDATE statement, so concurrent
// adjustments to the same account serialize on the row without a
// read-modify-write window.
func (s *AccountStore) AdjustBalance(ctx context.Context, id string, balanceDelta, availableDelta int64) (*models.Account, error) {
	query := `UPDATE accounts
		SET balance = balance + $1, available_balance = available_balance + $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + accountColumns

	row := s.db.QueryRow(ctx, query, balanceDelta, availableDelta, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("adjust balance: %w", err)
	}
	return account, nil
}

func (s *AccountStore) SetActive(ctx context.Context, id string, active bool) (*models.Account, error) {
	query := `UPDATE accounts SET active = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + accountColumns
	row := s.db.QueryRow(ctx, query, active, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("set account active: %w", err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		account  models.Account
		metadata []byte
		linkAt   *time.Time
		linkStat string
	)
	err := row.Scan(
		&account.ID, &account.AccountName, &account.AccountType, &account.ParentAccountID,
		&account.Balance, &account.AvailableBalance, &account.OpeningBalance, &account.Currency, &account.AccountHolderID,
		&account.Active, &account.AllowOverdraft, &metadata,
		&account.LinkedAccountID, &account.InstitutionID, &account.InstitutionName,
		&linkStat, &linkAt, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &account.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal account metadata: %w", err)
		}
	}
	account.LinkStatus = domain.LinkedAccountStatus(linkStat)
	account.LinkAuthorizedAt = linkAt
	return &account, nil
}
