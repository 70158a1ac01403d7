package repository

import (
	"context"

	"github.com/google/uuid"

	"reconciliation-close-backend/internal/apperr"
	"reconciliation-close-backend/internal/models"
	"reconciliation-close-backend/internal/store"
)

// DecisionRepository stores the full decision set of a run as one document;
// decisions are immutable and always written in a single batch.
type DecisionRepository struct {
	store store.Store
}

func NewDecisionRepository(s store.Store) *DecisionRepository {
	return &DecisionRepository{store: s}
}

func (r *DecisionRepository) SaveAll(ctx context.Context, runID uuid.UUID, decisions []models.MatchDecision) error {
	return r.store.Put(ctx, store.CollectionDecisions, runID.String(), decisions)
}

// ListByRun returns the run's decisions in the stored (sorted merchant_ref)
// order. A run that has not reconciled yet has no decisions.
func (r *DecisionRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.MatchDecision, error) {
	var decisions []models.MatchDecision
	err := r.store.Get(ctx, store.CollectionDecisions, runID.String(), &decisions)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	return decisions, err
}
