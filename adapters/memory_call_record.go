package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
)

// MemoryCallRecordRepository keeps finished calls in process memory. It is
// used when no MongoDB URI is configured.
type MemoryCallRecordRepository struct {
	mu      sync.RWMutex
	records map[string]*entities.CallRecord // call_sid -> record
}

var _ repositories.CallRecordRepository = (*MemoryCallRecordRepository)(nil)

func NewMemoryCallRecordRepository() *MemoryCallRecordRepository {
	return &MemoryCallRecordRepository{records: make(map[string]*entities.CallRecord)}
}

func (m *MemoryCallRecordRepository) Save(ctx context.Context, record *entities.CallRecord) error {
	if record == nil {
		return errors.New("call record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[record.CallSID]; ok {
		record.ID = existing.ID
	}
	m.records[record.CallSID] = copyRecord(record)
	return nil
}

func (m *MemoryCallRecordRepository) GetByCallSID(ctx context.Context, callSID string) (*entities.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[callSID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRecord(record), nil
}

func (m *MemoryCallRecordRepository) ListRecent(ctx context.Context, limit int) ([]*entities.CallRecord, error) {
	return m.list(func(*entities.CallRecord) bool { return true }, limit), nil
}

func (m *MemoryCallRecordRepository) ListByCaller(ctx context.Context, callerNumber string, limit int) ([]*entities.CallRecord, error) {
	return m.list(func(r *entities.CallRecord) bool { return r.Caller.Number == callerNumber }, limit), nil
}

func (m *MemoryCallRecordRepository) list(match func(*entities.CallRecord) bool, limit int) []*entities.CallRecord {
	m.mu.RLock()
	out := make([]*entities.CallRecord, 0, len(m.records))
	for _, r := range m.records {
		if match(r) {
			out = append(out, copyRecord(r))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func copyRecord(r *entities.CallRecord) *entities.CallRecord {
	c := *r
	c.Transcripts = append([]entities.TranscriptEvent(nil), r.Transcripts...)
	return &c
}
