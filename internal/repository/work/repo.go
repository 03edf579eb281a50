package work

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/photo-blur/internal/model"
)

var (
	ErrWorkNotFound      = errors.New("work not found")
	ErrWorkExists        = errors.New("work already exists")
	ErrAlreadyFinished   = errors.New("work already finished")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Repository keeps the lifecycle of work requests in memory.
// Work state is not durable: only the cache files survive a restart.
type Repository struct {
	mu    sync.RWMutex
	works map[uuid.UUID]model.WorkInfo
	now   func() time.Time
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		works: make(map[uuid.UUID]model.WorkInfo),
		now:   time.Now,
	}
}

// SaveWork records a new work request in the ENQUEUED state.
func (r *Repository) SaveWork(ctx context.Context, req model.WorkRequest) (model.WorkInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.works[req.ID]; ok {
		return model.WorkInfo{}, fmt.Errorf("save: %w: %s", ErrWorkExists, req.ID)
	}

	now := r.now()
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	info := model.WorkInfo{
		ID:        req.ID,
		Tags:      append([]string(nil), req.Tags...),
		State:     model.StateEnqueued,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	r.works[req.ID] = info

	return info, nil
}

// GetWork retrieves the work with the given ID.
func (r *Repository) GetWork(ctx context.Context, id uuid.UUID) (model.WorkInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.works[id]
	if !ok {
		return model.WorkInfo{}, ErrWorkNotFound
	}

	return info, nil
}

// UpdateState moves the work to state. Terminal states are final, and a
// work can only enter RUNNING from ENQUEUED.
func (r *Repository) UpdateState(ctx context.Context, id uuid.UUID, state model.State, result model.WorkResult) (model.WorkInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.works[id]
	if !ok {
		return model.WorkInfo{}, ErrWorkNotFound
	}

	if info.State.IsFinished() {
		return info, fmt.Errorf("update: %w: %s is %s", ErrAlreadyFinished, id, info.State)
	}
	if state == model.StateEnqueued || (state == model.StateRunning && info.State != model.StateEnqueued) {
		return info, fmt.Errorf("update: %w: %s -> %s", ErrInvalidTransition, info.State, state)
	}

	info.State = state
	info.UpdatedAt = r.now()

	if state.IsFinished() {
		info.Output = result.Output
		if result.Err != nil {
			info.Failure = model.FailureKind(result.Err)
			info.Error = result.Err.Error()
		}
	}

	r.works[id] = info

	return info, nil
}

// ListByTag returns all works carrying tag, newest first.
func (r *Repository) ListByTag(ctx context.Context, tag string) ([]model.WorkInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]model.WorkInfo, 0)
	for _, info := range r.works {
		if info.HasTag(tag) {
			infos = append(infos, info)
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID.String() < infos[j].ID.String()
	})

	return infos, nil
}
