package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/slickledger/ledger/internal/models"
)

type AuditStore struct {
	db *pgxpool.Pool
}

func NewAuditStore(db *pgxpool.Pool) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	query := `INSERT INTO audit_log (id, entity_type, entity_id, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NOW())
		RETURNING created_at`
	err := s.db.QueryRow(ctx, query,
		rec.ID, rec.EntityType, rec.EntityID, rec.Action, rec.PrevState, rec.NextState, rec.Metadata,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit record: %w", mapPgError(err, "audit record", rec.ID))
	}
	return nil
}

func (s *AuditStore) ListByEntity(ctx context.Context, entityID string) ([]*models.AuditRecord, error) {
	query := `SELECT id, entity_type, entity_id, action,
			COALESCE(prev_state, ''), COALESCE(next_state, ''), COALESCE(metadata, ''), created_at
		FROM audit_log WHERE entity_id = $1 ORDER BY created_at ASC`
	rows, err := s.db.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	result := []*models.AuditRecord{}
	for rows.Next() {
		var rec models.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Action,
			&rec.PrevState, &rec.NextState, &rec.Metadata, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		result = append(result, &rec)
	}
	return result, rows.Err()
}
