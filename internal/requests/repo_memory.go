package requests

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]DocumentRequest
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]DocumentRequest)}
}

// Create stores a new request.
func (r *MemoryRepo) Create(ctx context.Context, req DocumentRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[req.ID] = req.Clone()
	return nil
}

// GetByID returns a request by id.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return DocumentRequest{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.data[id]
	if !ok {
		return DocumentRequest{}, ErrNotFound
	}
	return req.Clone(), nil
}

// FindOne returns the newest request matching f.
func (r *MemoryRepo) FindOne(ctx context.Context, f Filter) (DocumentRequest, error) {
	list, err := r.List(ctx, f, 1, 0)
	if err != nil {
		return DocumentRequest{}, err
	}
	if len(list) == 0 {
		return DocumentRequest{}, ErrNotFound
	}
	return list[0], nil
}

// List returns matching requests newest first, honoring limit/offset.
// A non-positive limit returns every match.
func (r *MemoryRepo) List(ctx context.Context, f Filter, limit, offset int) ([]DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	matched := make([]DocumentRequest, 0)
	for _, req := range r.data {
		if f.Matches(req) {
			matched = append(matched, req.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return []DocumentRequest{}, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], nil
}

// Count returns the number of matching requests.
func (r *MemoryRepo) Count(ctx context.Context, f Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, req := range r.data {
		if f.Matches(req) {
			n++
		}
	}
	return n, nil
}

// CountByStatus groups matching requests by status.
func (r *MemoryRepo) CountByStatus(ctx context.Context, f Filter) (map[Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Status]int)
	for _, req := range r.data {
		if f.Matches(req) {
			out[req.Status]++
		}
	}
	return out, nil
}

// UpdateMany applies p to every match under one lock.
func (r *MemoryRepo) UpdateMany(ctx context.Context, f Filter, p Patch) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.isZero() {
		return 0, ErrEmptyFilterForUpdate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	for id, req := range r.data {
		if !f.Matches(req) {
			continue
		}
		p.Apply(&req)
		r.data[id] = req
		affected++
	}
	return affected, nil
}

// Save replaces an existing request.
func (r *MemoryRepo) Save(ctx context.Context, req DocumentRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[req.ID]; !ok {
		return ErrNotFound
	}
	r.data[req.ID] = req.Clone()
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
