package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"reconciliation-close-backend/internal/apperr"
	"reconciliation-close-backend/internal/models"
	"reconciliation-close-backend/internal/store"
)

// WorkflowStateRepository persists the small mutable workflow records: monthly
// submission flags per run (a month -> state map per document), daily ops state
// per run, and monthly close state per calendar month.
type WorkflowStateRepository struct {
	store store.Store
}

func NewWorkflowStateRepository(s store.Store) *WorkflowStateRepository {
	return &WorkflowStateRepository{store: s}
}

func (r *WorkflowStateRepository) MonthlyStates(ctx context.Context, runID uuid.UUID) (map[string]models.MonthlySubmissionState, error) {
	states := make(map[string]models.MonthlySubmissionState)
	err := r.store.Get(ctx, store.CollectionMonthlySubmissions, runID.String(), &states)
	if apperr.IsNotFound(err) {
		return states, nil
	}
	return states, err
}

func (r *WorkflowStateRepository) SaveMonthlyStates(ctx context.Context, runID uuid.UUID, states map[string]models.MonthlySubmissionState) error {
	return r.store.Put(ctx, store.CollectionMonthlySubmissions, runID.String(), states)
}

func (r *WorkflowStateRepository) DailyState(ctx context.Context, runID uuid.UUID) (models.DailyOpsState, error) {
	var state models.DailyOpsState
	err := r.store.Get(ctx, store.CollectionDailyOps, runID.String(), &state)
	if apperr.IsNotFound(err) {
		return models.DailyOpsState{}, nil
	}
	return state, err
}

func (r *WorkflowStateRepository) SaveDailyState(ctx context.Context, runID uuid.UUID, state models.DailyOpsState) error {
	return r.store.Put(ctx, store.CollectionDailyOps, runID.String(), state)
}

func (r *WorkflowStateRepository) CloseState(ctx context.Context, month string) (models.MonthlyCloseState, error) {
	var state models.MonthlyCloseState
	err := r.store.Get(ctx, store.CollectionMonthlyClose, month, &state)
	if apperr.IsNotFound(err) {
		return models.MonthlyCloseState{}, nil
	}
	return state, err
}

func (r *WorkflowStateRepository) SaveCloseState(ctx context.Context, month string, state models.MonthlyCloseState) error {
	return r.store.Put(ctx, store.CollectionMonthlyClose, month, state)
}

// CloseStates returns every persisted monthly close state keyed by month.
func (r *WorkflowStateRepository) CloseStates(ctx context.Context) (map[string]models.MonthlyCloseState, error) {
	docs, err := r.store.List(ctx, store.CollectionMonthlyClose)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.MonthlyCloseState, len(docs))
	for month, raw := range docs {
		var state models.MonthlyCloseState
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, err
		}
		out[month] = state
	}
	return out, nil
}
