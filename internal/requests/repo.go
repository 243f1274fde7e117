package requests

import "context"

// Repo defines persistence operations for document requests. Writes are
// last-write-wins on a single record.
type Repo interface {
	Create(ctx context.Context, req DocumentRequest) error
	GetByID(ctx context.Context, id string) (DocumentRequest, error)
	FindOne(ctx context.Context, f Filter) (DocumentRequest, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]DocumentRequest, error)
	Count(ctx context.Context, f Filter) (int, error)
	CountByStatus(ctx context.Context, f Filter) (map[Status]int, error)
	UpdateMany(ctx context.Context, f Filter, p Patch) (int64, error)
	Save(ctx context.Context, req DocumentRequest) error
}
