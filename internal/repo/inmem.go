package repo

import (
	"context"
	"sync"

	"github.com/tinoosan/modsync/internal/data"
)

type InMemoryOutcomeRepo struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryOutcomeRepo() *InMemoryOutcomeRepo {
	return &InMemoryOutcomeRepo{records: make([]Record, 0)}
}

func (r *InMemoryOutcomeRepo) List(ctx context.Context, gameID, limit int) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if gameID == 0 || rec.GameID == gameID {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *InMemoryOutcomeRepo) Latest(ctx context.Context, fingerprint string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].Fingerprint == fingerprint {
			return r.records[i], nil
		}
	}
	return Record{}, data.ErrNotFound
}

func (r *InMemoryOutcomeRepo) Add(ctx context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = newID()
	r.records = append(r.records, rec)
	return rec, nil
}
