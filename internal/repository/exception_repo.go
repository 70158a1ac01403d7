package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"reconciliation-close-backend/internal/apperr"
	"reconciliation-close-backend/internal/models"
	"reconciliation-close-backend/internal/store"
)

// ExceptionRepository stores each run's exception cases as one document keyed
// by run id.
type ExceptionRepository struct {
	store store.Store
}

func NewExceptionRepository(s store.Store) *ExceptionRepository {
	return &ExceptionRepository{store: s}
}

func (r *ExceptionRepository) SaveAll(ctx context.Context, runID uuid.UUID, cases []models.ExceptionCase) error {
	return r.store.Put(ctx, store.CollectionExceptions, runID.String(), cases)
}

func (r *ExceptionRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.ExceptionCase, error) {
	var cases []models.ExceptionCase
	err := r.store.Get(ctx, store.CollectionExceptions, runID.String(), &cases)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	return cases, err
}

// GetByID scans all runs for the case. Exception counts are bounded by run
// size, so the scan stays cheap.
func (r *ExceptionRepository) GetByID(ctx context.Context, id uuid.UUID) (models.ExceptionCase, error) {
	docs, err := r.store.List(ctx, store.CollectionExceptions)
	if err != nil {
		return models.ExceptionCase{}, err
	}
	for _, raw := range docs {
		var cases []models.ExceptionCase
		if err := json.Unmarshal(raw, &cases); err != nil {
			return models.ExceptionCase{}, err
		}
		for _, c := range cases {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return models.ExceptionCase{}, apperr.NotFound("exception", id.String())
}

// Update replaces the stored case matching c.ID within its run document.
func (r *ExceptionRepository) Update(ctx context.Context, c models.ExceptionCase) error {
	cases, err := r.ListByRun(ctx, c.RunID)
	if err != nil {
		return err
	}
	for i := range cases {
		if cases[i].ID == c.ID {
			cases[i] = c
			return r.SaveAll(ctx, c.RunID, cases)
		}
	}
	return apperr.NotFound("exception", c.ID.String())
}
