package repository

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"reconciliation-close-backend/internal/models"
	"reconciliation-close-backend/internal/store"
)

type RunRepository struct {
	store store.Store
}

func NewRunRepository(s store.Store) *RunRepository {
	return &RunRepository{store: s}
}

func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	err := r.store.Get(ctx, store.CollectionRuns, id.String(), &run)
	return run, err
}

func (r *RunRepository) Save(ctx context.Context, run models.ReconciliationRun) error {
	return r.store.Put(ctx, store.CollectionRuns, run.ID.String(), run)
}

// List returns all runs, newest first.
func (r *RunRepository) List(ctx context.Context) ([]models.ReconciliationRun, error) {
	docs, err := r.store.List(ctx, store.CollectionRuns)
	if err != nil {
		return nil, err
	}
	runs := make([]models.ReconciliationRun, 0, len(docs))
	for _, raw := range docs {
		var run models.ReconciliationRun
		if err := json.Unmarshal(raw, &run); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}
