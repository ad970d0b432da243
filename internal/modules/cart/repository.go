package cart

import (
	"context"
	"sync"
)

// Repository stores cart snapshots per user so a cart survives logout and
// device changes. Load returns nil lines when no snapshot exists.
type Repository interface {
	Save(ctx context.Context, userID string, lines []Line) error
	Load(ctx context.Context, userID string) ([]Line, error)
	Delete(ctx context.Context, userID string) error
}

type memoryRepo struct {
	mu    sync.Mutex
	carts map[string][]Line
}

// NewMemoryRepository keeps snapshots in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepo{carts: make(map[string][]Line)}
}

func (r *memoryRepo) Save(_ context.Context, userID string, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(lines) == 0 {
		delete(r.carts, userID)
		return nil
	}
	r.carts[userID] = append([]Line(nil), lines...)
	return nil
}

func (r *memoryRepo) Load(_ context.Context, userID string) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Line(nil), r.carts[userID]...), nil
}

func (r *memoryRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}
