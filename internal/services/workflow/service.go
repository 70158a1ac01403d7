// Package workflow layers the daily-close and monthly-close lifecycle on top
// of matching output. Every summary is recomputed from decisions and
// exceptions on each read; only the small flag records are persisted.
package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"reconciliation-close-backend/internal/apperr"
	"reconciliation-close-backend/internal/models"
	"reconciliation-close-backend/internal/repository"
	"reconciliation-close-backend/internal/services/matching"
)

type Service struct {
	runs          *repository.RunRepository
	decisions     *repository.DecisionRepository
	exceptions    *repository.ExceptionRepository
	states        *repository.WorkflowStateRepository
	audit         *repository.AuditRepository
	announcements *repository.AnnouncementRepository
	engine        *matching.Engine
	locks         *keyedLocks
}

func NewService(
	runs *repository.RunRepository,
	decisions *repository.DecisionRepository,
	exceptions *repository.ExceptionRepository,
	states *repository.WorkflowStateRepository,
	audit *repository.AuditRepository,
	announcements *repository.AnnouncementRepository,
	engine *matching.Engine,
) *Service {
	return &Service{
		runs:          runs,
		decisions:     decisions,
		exceptions:    exceptions,
		states:        states,
		audit:         audit,
		announcements: announcements,
		engine:        engine,
		locks:         newKeyedLocks(),
	}
}

func (s *Service) CreateRun(ctx context.Context, initiatedBy string) (models.ReconciliationRun, error) {
	now := time.Now().UTC()
	id := uuid.New()
	run := models.ReconciliationRun{
		ID:          id,
		RunNumber:   models.NewRunNumber(id),
		Status:      models.RunStatusDraft,
		Stage:       "created",
		InitiatedBy: initiatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return models.ReconciliationRun{}, err
	}
	s.auditEvent(ctx, initiatedBy, "create_run", "reconciliation_run", run.ID.String(), nil, run)
	return run, nil
}

func (s *Service) GetRun(ctx context.Context, runID uuid.UUID) (models.ReconciliationRun, error) {
	run, err := s.runs.Get(ctx, runID)
	if apperr.IsNotFound(err) {
		return models.ReconciliationRun{}, apperr.NotFound("run", runID.String())
	}
	return run, err
}

func (s *Service) ListRuns(ctx context.Context) ([]models.ReconciliationRun, error) {
	return s.runs.List(ctx)
}

// Reconcile executes the synchronous matching pass for a run and persists the
// resulting facts. Month states are auto-created for every month a decision
// lands in.
func (s *Service) Reconcile(ctx context.Context, runID uuid.UUID, internal, erp, psp []models.NormalizedTransaction) (models.RunSummary, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return models.RunSummary{}, err
	}

	if len(internal) == 0 && len(erp) == 0 && len(psp) == 0 {
		run.Status = models.RunStatusFailed
		run.Stage = "failed"
		run.UpdatedAt = time.Now().UTC()
		if err := s.runs.Save(ctx, run); err != nil {
			return models.RunSummary{}, err
		}
		return models.RunSummary{}, apperr.Validationf("no records supplied for reconciliation")
	}

	run.Status = models.RunStatusRunning
	run.Stage = "reconciling"
	run.UpdatedAt = time.Now().UTC()
	if err := s.runs.Save(ctx, run); err != nil {
		return models.RunSummary{}, err
	}

	result := s.engine.Reconcile(runID, internal, erp, psp)

	if err := s.decisions.SaveAll(ctx, runID, result.Decisions); err != nil {
		return models.RunSummary{}, err
	}
	if err := s.exceptions.SaveAll(ctx, runID, result.Exceptions); err != nil {
		return models.RunSummary{}, err
	}

	unlock := s.locks.acquire(monthlyLockKey(runID))
	states, err := s.states.MonthlyStates(ctx, runID)
	if err != nil {
		unlock()
		return models.RunSummary{}, err
	}
	for _, decision := range result.Decisions {
		if _, ok := states[decision.TransactionMonth]; !ok {
			states[decision.TransactionMonth] = models.MonthlySubmissionState{}
		}
	}
	err = s.states.SaveMonthlyStates(ctx, runID, states)
	unlock()
	if err != nil {
		return models.RunSummary{}, err
	}

	good := 0
	for _, decision := range result.Decisions {
		if decision.FinalStatus == models.FinalStatusGood {
			good++
		}
	}
	before := run
	run.Status = models.RunStatusCompleted
	run.Stage = "completed"
	run.Counters = models.RunCounters{
		Total:      len(result.Decisions),
		Good:       good,
		Doubtful:   len(result.Decisions) - good,
		Exceptions: len(result.Exceptions),
	}
	run.UpdatedAt = time.Now().UTC()
	if err := s.runs.Save(ctx, run); err != nil {
		return models.RunSummary{}, err
	}
	s.auditEvent(ctx, run.InitiatedBy, "reconcile_run", "reconciliation_run", run.ID.String(), before, run)
	s.announce(ctx, run.ID.String(), "good", "Reconciliation completed",
		"Three-way matching finished for "+run.RunNumber+".",
		map[string]any{
			"total":      run.Counters.Total,
			"good":       run.Counters.Good,
			"doubtful":   run.Counters.Doubtful,
			"exceptions": run.Counters.Exceptions,
		})

	return s.RunSummary(ctx, runID)
}

// RunSummary assembles the full view of a run: facts plus recomputed
// projections.
func (s *Service) RunSummary(ctx context.Context, runID uuid.UUID) (models.RunSummary, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return models.RunSummary{}, err
	}
	decisions, err := s.decisions.ListByRun(ctx, runID)
	if err != nil {
		return models.RunSummary{}, err
	}
	exceptions, err := s.exceptions.ListByRun(ctx, runID)
	if err != nil {
		return models.RunSummary{}, err
	}
	monthly, err := s.ListMonthlySubmissions(ctx, runID)
	if err != nil {
		return models.RunSummary{}, err
	}
	daily, err := s.GetDailyOps(ctx, runID)
	if err != nil {
		return models.RunSummary{}, err
	}
	return models.RunSummary{
		Run:                run,
		Decisions:          decisions,
		Exceptions:         exceptions,
		MonthlySubmissions: monthly,
		DailyOps:           &daily,
	}, nil
}

func (s *Service) ListExceptions(ctx context.Context, runID uuid.UUID) ([]models.ExceptionCase, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.exceptions.ListByRun(ctx, runID)
}

func (s *Service) GetException(ctx context.Context, id uuid.UUID) (models.ExceptionCase, error) {
	return s.exceptions.GetByID(ctx, id)
}

// UpdateExceptionState applies an analyst action to one case. Unknown states
// are rejected rather than stored, and addressed cases never reopen.
func (s *Service) UpdateExceptionState(ctx context.Context, id uuid.UUID, state models.ExceptionState, actor string) (models.ExceptionCase, error) {
	if !state.Valid() {
		return models.ExceptionCase{}, apperr.Validationf("unknown exception state %q", state)
	}
	c, err := s.exceptions.GetByID(ctx, id)
	if err != nil {
		return models.ExceptionCase{}, err
	}
	if !c.State.CanTransition(state) {
		return models.ExceptionCase{}, apperr.Validationf("cannot move exception from %q to %q", c.State, state)
	}
	before := c
	c.State = state
	c.UpdatedAt = time.Now().UTC()
	if err := s.exceptions.Update(ctx, c); err != nil {
		return models.ExceptionCase{}, err
	}
	s.auditEvent(ctx, actor, "exception_action", "exception", c.ID.String(), before, c)
	return c, nil
}

func (s *Service) ListAnnouncements(ctx context.Context) ([]models.AnnouncementItem, error) {
	return s.announcements.List(ctx)
}

func (s *Service) ListAuditEvents(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	return s.audit.List(ctx, limit)
}

func (s *Service) auditEvent(ctx context.Context, actor, action, entityType, entityID string, before, after any) {
	event := models.AuditEvent{
		ID:         uuid.New(),
		ActorID:    actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     marshalSnapshot(before),
		After:      marshalSnapshot(after),
		Timestamp:  time.Now().UTC(),
	}
	// Audit writes must not fail the mutation they describe.
	_ = s.audit.Append(ctx, event)
}

func (s *Service) announce(ctx context.Context, runID, level, title, message string, payload map[string]any) {
	item := models.AnnouncementItem{
		ID:        uuid.New(),
		RunID:     runID,
		Level:     level,
		Title:     title,
		Message:   message,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	_ = s.announcements.Append(ctx, item)
}

func marshalSnapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
