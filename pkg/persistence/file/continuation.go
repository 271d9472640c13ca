package file

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukex/engageflow/pkg/models"
)

type ContinuationRepository struct {
	mu    sync.Mutex
	store *jsonStore
}

func NewContinuationRepository(root string) *ContinuationRepository {
	return &ContinuationRepository{store: newJSONStore(root, "continuations")}
}

func (r *ContinuationRepository) Save(_ context.Context, continuation *models.Continuation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.write(continuation.RunID, continuation)
	if err != nil {
		return fmt.Errorf("failed to save continuation %s: %w", continuation.RunID, err)
	}

	return nil
}

func (r *ContinuationRepository) ClaimDue(_ context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Continuation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	due := make([]*models.Continuation, 0)

	for _, id := range ids {
		var continuation models.Continuation

		err := r.store.read(id, &continuation)
		if errors.Is(err, errNotExist) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to load continuation %s: %w", id, err)
		}

		if !continuation.ResumeAt.After(now) {
			due = append(due, &continuation)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(due[j].ResumeAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	for _, continuation := range due {
		continuation.ResumeAt = now.Add(lease)
		continuation.Attempts++

		err := r.store.write(continuation.RunID, continuation)
		if err != nil {
			return nil, fmt.Errorf("failed to claim continuation %s: %w", continuation.RunID, err)
		}
	}

	return due, nil
}

func (r *ContinuationRepository) Delete(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.remove(runID)
	if errors.Is(err, errNotExist) {
		return nil
	}

	return err
}
