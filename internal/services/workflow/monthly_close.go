package workflow

import (
	"context"
	"sort"
	"time"

	"reconciliation-close-backend/internal/apperr"
	"reconciliation-close-backend/internal/models"
)

func closeLockKey(month string) string { return "monthly_close/" + month }

type closeBucket struct {
	sourceRuns           []models.MonthlyCloseSourceRun
	total                int
	good                 int
	doubtful             int
	unresolved           int
	notificationRequired int
	notificationSent     int
}

// buildMonthlyCloseBatches aggregates per calendar month across every run
// whose day is closed. Runs still open contribute nothing.
func (s *Service) buildMonthlyCloseBatches(ctx context.Context) ([]models.MonthlyCloseBatch, error) {
	runs, err := s.runs.List(ctx)
	if err != nil {
		return nil, err
	}
	// Oldest first so source run order is stable.
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	buckets := map[string]*closeBucket{}
	for _, run := range runs {
		daily, err := s.buildDailyOpsSummary(ctx, run)
		if err != nil {
			return nil, err
		}
		if daily.CloseState != models.CloseStateClosed {
			continue
		}
		for _, item := range daily.MonthlyItems {
			bucket, ok := buckets[item.Month]
			if !ok {
				bucket = &closeBucket{}
				buckets[item.Month] = bucket
			}
			bucket.sourceRuns = append(bucket.sourceRuns, models.MonthlyCloseSourceRun{
				RunID:        run.ID,
				RunNumber:    run.RunNumber,
				BusinessDate: daily.BusinessDate,
			})
			bucket.total += item.TotalTransactions
			bucket.good += item.GoodTransactions
			bucket.doubtful += item.DoubtfulTransactions
			bucket.unresolved += item.UnresolvedDoubtful
			if item.DoubtfulTransactions > 0 {
				bucket.notificationRequired++
				if item.NotifiedToSource {
					bucket.notificationSent++
				}
			}
		}
	}

	closeStates, err := s.states.CloseStates(ctx)
	if err != nil {
		return nil, err
	}

	monthSet := map[string]struct{}{}
	for month := range buckets {
		monthSet[month] = struct{}{}
	}
	for month := range closeStates {
		monthSet[month] = struct{}{}
	}
	months := make([]string, 0, len(monthSet))
	for month := range monthSet {
		months = append(months, month)
	}
	sort.Strings(months)

	out := make([]models.MonthlyCloseBatch, 0, len(months))
	for _, month := range months {
		bucket := buckets[month]
		if bucket == nil {
			bucket = &closeBucket{}
		}
		state := closeStates[month]

		runIDs := make([]string, 0, len(bucket.sourceRuns))
		for _, src := range bucket.sourceRuns {
			runIDs = append(runIDs, src.RunID.String())
		}
		sort.Strings(runIDs)

		ready := len(bucket.sourceRuns) > 0 && bucket.unresolved == 0
		var nextAction string
		switch {
		case state.SubmittedToERP:
			nextAction = models.ActionCompleted
		case !ready:
			nextAction = models.ActionWaitForDailyClose
		case !state.JournalCreated:
			nextAction = models.ActionCreateJournal
		default:
			nextAction = models.ActionSubmitToERP
		}

		out = append(out, models.MonthlyCloseBatch{
			Month:                        month,
			SourceRunIDs:                 runIDs,
			SourceRunCount:               len(bucket.sourceRuns),
			SourceRuns:                   bucket.sourceRuns,
			TotalTransactions:            bucket.total,
			GoodTransactions:             bucket.good,
			DoubtfulTransactions:         bucket.doubtful,
			UnresolvedDoubtful:           bucket.unresolved,
			DoubtfulNotificationRequired: bucket.notificationRequired,
			DoubtfulNotificationSent:     bucket.notificationSent,
			ReadyForERP:                  ready,
			JournalCreated:               state.JournalCreated,
			SubmittedToERP:               state.SubmittedToERP,
			NextAction:                   nextAction,
			JournalCreatedAt:             state.JournalCreatedAt,
			SubmittedAt:                  state.SubmittedAt,
			ERPSubmissionPayload:         state.ERPSubmissionPayload,
		})
	}
	return out, nil
}

func (s *Service) ListMonthlyCloseBatches(ctx context.Context) ([]models.MonthlyCloseBatch, error) {
	return s.buildMonthlyCloseBatches(ctx)
}

func (s *Service) GetMonthlyCloseBatch(ctx context.Context, month string) (models.MonthlyCloseBatch, error) {
	batches, err := s.buildMonthlyCloseBatches(ctx)
	if err != nil {
		return models.MonthlyCloseBatch{}, err
	}
	for _, batch := range batches {
		if batch.Month == month {
			return batch, nil
		}
	}
	return models.MonthlyCloseBatch{}, apperr.NotFound("monthly close batch", month)
}

// CreateMonthlyCloseJournal prepares the consolidated journal for a month.
func (s *Service) CreateMonthlyCloseJournal(ctx context.Context, month, actor string) (models.MonthlyCloseBatch, error) {
	batch, err := s.GetMonthlyCloseBatch(ctx, month)
	if err != nil {
		return models.MonthlyCloseBatch{}, err
	}
	if !batch.ReadyForERP {
		return models.MonthlyCloseBatch{}, apperr.Validationf("monthly close is not ready; close all daily runs and clear doubtfuls first")
	}
	if batch.GoodTransactions <= 0 {
		return models.MonthlyCloseBatch{}, apperr.Validationf("no good transactions available to create journal")
	}

	unlock := s.locks.acquire(closeLockKey(month))
	defer unlock()
	state, err := s.states.CloseState(ctx, month)
	if err != nil {
		return models.MonthlyCloseBatch{}, err
	}
	before := state
	now := time.Now().UTC()
	state.JournalCreated = true
	state.JournalCreatedAt = &now
	if err := s.states.SaveCloseState(ctx, month, state); err != nil {
		return models.MonthlyCloseBatch{}, err
	}

	s.auditEvent(ctx, actor, "monthly_close_create_journal", "monthly_close", month, before, state)
	s.announce(ctx, "monthly-close", "good", "Monthly close journal created",
		month+": consolidated journal prepared from daily-closed runs.",
		map[string]any{"month": month, "source_run_ids": batch.SourceRunIDs})
	return s.GetMonthlyCloseBatch(ctx, month)
}

// SubmitMonthlyCloseToERP submits the consolidated batch and snapshots the
// payload handed to the ERP. A batch with good transactions must have its
// journal first; resubmission is rejected.
func (s *Service) SubmitMonthlyCloseToERP(ctx context.Context, month, actor string) (models.MonthlyCloseBatch, error) {
	batch, err := s.GetMonthlyCloseBatch(ctx, month)
	if err != nil {
		return models.MonthlyCloseBatch{}, err
	}
	if !batch.ReadyForERP {
		return models.MonthlyCloseBatch{}, apperr.Validationf("monthly close is not ready; close all daily runs and clear doubtfuls first")
	}
	if batch.SubmittedToERP {
		return models.MonthlyCloseBatch{}, apperr.Validationf("month %s was already submitted to ERP", month)
	}
	if batch.GoodTransactions > 0 && !batch.JournalCreated {
		return models.MonthlyCloseBatch{}, apperr.Validationf("create monthly journal before submitting to ERP")
	}

	unlock := s.locks.acquire(closeLockKey(month))
	defer unlock()
	state, err := s.states.CloseState(ctx, month)
	if err != nil {
		return models.MonthlyCloseBatch{}, err
	}
	before := state
	now := time.Now().UTC()
	state.SubmittedToERP = true
	state.SubmittedAt = &now
	state.ERPSubmissionPayload = &models.ERPSubmissionPayload{
		Month:                    month,
		SourceRunIDs:             batch.SourceRunIDs,
		ExpectedGoodTransactions: batch.GoodTransactions,
		TotalTransactions:        batch.TotalTransactions,
		SubmittedBy:              actor,
	}
	if err := s.states.SaveCloseState(ctx, month, state); err != nil {
		return models.MonthlyCloseBatch{}, err
	}

	s.auditEvent(ctx, actor, "monthly_close_submit_erp", "monthly_close", month, before, state)
	s.announce(ctx, "monthly-close", "good", "Monthly close submitted to ERP",
		month+": consolidated monthly batch submitted to ERP.",
		map[string]any{"month": month, "source_run_ids": batch.SourceRunIDs})
	return s.GetMonthlyCloseBatch(ctx, month)
}

// RevertMonthlyCloseSubmission returns a submitted batch to the journal
// creation stage, clearing both flags, their timestamps and the payload.
func (s *Service) RevertMonthlyCloseSubmission(ctx context.Context, month, actor string) (models.MonthlyCloseBatch, error) {
	batch, err := s.GetMonthlyCloseBatch(ctx, month)
	if err != nil {
		return models.MonthlyCloseBatch{}, err
	}
	if !batch.SubmittedToERP {
		return models.MonthlyCloseBatch{}, apperr.Validationf("month %s has no ERP submission to revert", month)
	}

	unlock := s.locks.acquire(closeLockKey(month))
	defer unlock()
	state, err := s.states.CloseState(ctx, month)
	if err != nil {
		return models.MonthlyCloseBatch{}, err
	}
	before := state
	state.SubmittedToERP = false
	state.SubmittedAt = nil
	state.JournalCreated = false
	state.JournalCreatedAt = nil
	state.ERPSubmissionPayload = nil
	if err := s.states.SaveCloseState(ctx, month, state); err != nil {
		return models.MonthlyCloseBatch{}, err
	}

	s.auditEvent(ctx, actor, "monthly_close_revert_submission", "monthly_close", month, before, state)
	s.announce(ctx, "monthly-close", "doubtful", "Monthly close submission reverted",
		month+": ERP submission was reverted and returned to journal creation stage.",
		map[string]any{"month": month})
	return s.GetMonthlyCloseBatch(ctx, month)
}
