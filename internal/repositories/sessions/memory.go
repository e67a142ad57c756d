package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps sessions in process memory. Closed sessions are
// retained in History until the process exits.
type MemoryRepository struct {
	mu      sync.Mutex
	active  map[string]models.Session
	history []models.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{active: make(map[string]models.Session)}
}

func (r *MemoryRepository) FindActive(ctx context.Context, uniqueID string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.active[uniqueID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) Create(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[s.UniqueID]; ok {
		return common.ErrAlreadyActive
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.IsActive = true
	s.LoggedOutAt = nil
	r.active[s.UniqueID] = *s
	return nil
}

func (r *MemoryRepository) CloseActive(ctx context.Context, uniqueID string, at time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.active[uniqueID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.active, uniqueID)

	s.IsActive = false
	s.LoggedOutAt = &at
	r.history = append(r.history, s)
	return &s, nil
}

func (r *MemoryRepository) ListActive(ctx context.Context) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]models.Session, 0, len(r.active))
	for _, s := range r.active {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LoggedInAt.Before(result[j].LoggedInAt)
	})
	return result, nil
}

// History returns closed sessions in the order they were closed.
func (r *MemoryRepository) History() []models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Session, len(r.history))
	copy(out, r.history)
	return out
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }
