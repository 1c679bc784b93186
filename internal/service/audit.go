package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/repository"
)

// AuditService writes immutable audit trail entries.
type AuditService struct {
	store repository.AuditStore
}

func NewAuditService(store repository.AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record.
func (s *AuditService) Write(ctx context.Context, entityType, entityID, action, prevState, nextState string, metadata map[string]string) error {
	var encoded string
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		encoded = string(raw)
	}

	rec := &models.AuditRecord{
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		PrevState:  prevState,
		NextState:  nextState,
		Metadata:   encoded,
	}
	if err := s.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// Trail returns the recorded entries for one entity, oldest first.
func (s *AuditService) Trail(ctx context.Context, entityID string) ([]*models.AuditRecord, error) {
	return s.store.ListByEntity(ctx, entityID)
}
