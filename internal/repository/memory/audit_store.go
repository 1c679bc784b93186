package memory

import (
	"context"
	"sync"
	"time"

	"github.com/slickledger/ledger/internal/models"
)

// AuditStore is an append-only in-memory trail.
type AuditStore struct {
	mu      sync.RWMutex
	records []models.AuditRecord
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, cp)
	return nil
}

func (s *AuditStore) ListByEntity(ctx context.Context, entityID string) ([]*models.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*models.AuditRecord{}
	for i := range s.records {
		if s.records[i].EntityID == entityID {
			cp := s.records[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}
