package dal

import (
	"context"
	"slices"
	"sync"

	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

// MemoryDAL implements RoundDAL in process memory. Records are lost on restart.
type MemoryDAL struct {
	mu     sync.RWMutex
	rounds map[string]models.RoundRecord
	order  []string // seed ids, oldest first
}

// NewMemoryDAL creates an empty in-memory archive
func NewMemoryDAL() *MemoryDAL {
	return &MemoryDAL{rounds: make(map[string]models.RoundRecord)}
}

func (m *MemoryDAL) SaveRound(_ context.Context, rec models.RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rounds[rec.SeedID]; exists {
		return ErrDuplicateRound
	}
	m.rounds[rec.SeedID] = cloneRecord(rec)
	m.order = append(m.order, rec.SeedID)
	return nil
}

func (m *MemoryDAL) GetRound(_ context.Context, seedID string) (models.RoundRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.rounds[seedID]
	if !ok {
		return models.RoundRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryDAL) ListRounds(_ context.Context, limit int) ([]models.RoundRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = clampLimit(limit)
	out := make([]models.RoundRecord, 0, min(limit, len(m.order)))
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneRecord(m.rounds[m.order[i]]))
	}
	return out, nil
}

func (m *MemoryDAL) Ping(context.Context) error { return nil }

func (m *MemoryDAL) Close() error { return nil }

func cloneRecord(rec models.RoundRecord) models.RoundRecord {
	rec.Participants = slices.Clone(rec.Participants)
	rec.Bets = slices.Clone(rec.Bets)
	rec.Payouts = slices.Clone(rec.Payouts)
	rec.Events = slices.Clone(rec.Events)
	return rec
}
