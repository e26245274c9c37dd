package pricehistory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores price history in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	nextID  int64
	records []Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

// Append stores a record, assigning ID and RecordedAt when unset.
func (r *MemoryRepo) Append(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.ID = r.nextID
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	r.records = append(r.records, rec)
	return rec, nil
}

// ListByEntity returns records for an entity ordered by RecordedAt ascending.
func (r *MemoryRepo) ListByEntity(ctx context.Context, targetEntityID string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for _, rec := range r.records {
		if rec.TargetEntityID == targetEntityID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
