package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"reconciliation-close-backend/internal/apperr"
	"reconciliation-close-backend/internal/models"
)

func dailyLockKey(runID uuid.UUID) string { return "daily_ops/" + runID.String() }

// businessDate resolves the day a run belongs to: explicit state wins, then
// the run's creation date, then the sole real transaction month.
func businessDate(state models.DailyOpsState, run models.ReconciliationRun, monthlyItems []models.MonthlySubmissionSummary) string {
	if state.BusinessDate != "" {
		return state.BusinessDate
	}
	if !run.CreatedAt.IsZero() {
		return run.CreatedAt.Format("2006-01-02")
	}
	var realMonths []string
	for _, item := range monthlyItems {
		if item.Month != "unknown" {
			realMonths = append(realMonths, item.Month)
		}
	}
	if len(realMonths) == 1 {
		return realMonths[0] + "-01"
	}
	return "unknown"
}

// buildDailyOpsSummary is the recompute-on-read projection for the run scope.
func (s *Service) buildDailyOpsSummary(ctx context.Context, run models.ReconciliationRun) (models.DailyOpsSummary, error) {
	monthlyItems, err := s.buildMonthlySummaries(ctx, run.ID)
	if err != nil {
		return models.DailyOpsSummary{}, err
	}
	state, err := s.states.DailyState(ctx, run.ID)
	if err != nil {
		return models.DailyOpsSummary{}, err
	}

	summary := models.DailyOpsSummary{
		RunID:        run.ID,
		RunStatus:    run.Status,
		BusinessDate: businessDate(state, run, monthlyItems),
		ClosedAt:     state.ClosedAt,
		MonthlyItems: monthlyItems,
	}
	for _, item := range monthlyItems {
		summary.TotalTransactions += item.TotalTransactions
		summary.GoodTransactions += item.GoodTransactions
		summary.DoubtfulTransactions += item.DoubtfulTransactions
		summary.UnresolvedDoubtful += item.UnresolvedDoubtful
		summary.AddressedDoubtful += item.AddressedDoubtful
		if item.DoubtfulTransactions > 0 {
			summary.NotificationsRequired++
			if item.NotifiedToSource {
				summary.NotificationsSent++
			}
		}
	}

	refsByRecipient := map[string]map[string]struct{}{}
	for _, item := range monthlyItems {
		for _, target := range item.AlertRecipients {
			if refsByRecipient[target.RecipientKey] == nil {
				refsByRecipient[target.RecipientKey] = map[string]struct{}{}
			}
			for _, ref := range target.MerchantRefs {
				refsByRecipient[target.RecipientKey][ref] = struct{}{}
			}
		}
	}
	for key, refSet := range refsByRecipient {
		refs := make([]string, 0, len(refSet))
		for ref := range refSet {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		label, ok := recipientLabels[key]
		if !ok {
			label = key
		}
		summary.NotificationTargets = append(summary.NotificationTargets, models.DailyNotificationTarget{
			RecipientKey:   key,
			RecipientLabel: label,
			Count:          len(refs),
			MerchantRefs:   refs,
		})
	}
	sort.Slice(summary.NotificationTargets, func(i, j int) bool {
		a, b := summary.NotificationTargets[i], summary.NotificationTargets[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.RecipientKey < b.RecipientKey
	})

	switch {
	case state.ClosedAt != nil:
		summary.CloseState = models.CloseStateClosed
		summary.NextAction = models.ActionClosed
	case run.Status != models.RunStatusCompleted:
		summary.CloseState = models.CloseStateOpen
		summary.NextAction = models.ActionWaitRunCompletion
	case summary.UnresolvedDoubtful > 0:
		summary.CloseState = models.CloseStateOpen
		summary.NextAction = models.ActionAddressDoubtful
	case summary.NotificationsSent < summary.NotificationsRequired:
		summary.CloseState = models.CloseStateOpen
		summary.NextAction = models.ActionSendNotifications
	default:
		summary.CloseState = models.CloseStateReadyToClose
		summary.NextAction = models.ActionCloseDay
	}
	return summary, nil
}

func (s *Service) GetDailyOps(ctx context.Context, runID uuid.UUID) (models.DailyOpsSummary, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return models.DailyOpsSummary{}, err
	}
	return s.buildDailyOpsSummary(ctx, run)
}

// ListDailyOps returns the daily view of every run, newest first.
func (s *Service) ListDailyOps(ctx context.Context) ([]models.DailyOpsSummary, error) {
	runs, err := s.runs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.DailyOpsSummary, 0, len(runs))
	for _, run := range runs {
		summary, err := s.buildDailyOpsSummary(ctx, run)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// SetDailyBusinessDate overrides the run's business date. The value must be a
// plain ISO calendar date.
func (s *Service) SetDailyBusinessDate(ctx context.Context, runID uuid.UUID, date, actor string) (models.DailyOpsSummary, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return models.DailyOpsSummary{}, err
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return models.DailyOpsSummary{}, apperr.Validationf("business_date must be YYYY-MM-DD")
	}

	unlock := s.locks.acquire(dailyLockKey(runID))
	state, err := s.states.DailyState(ctx, runID)
	if err != nil {
		unlock()
		return models.DailyOpsSummary{}, err
	}
	before := state
	state.BusinessDate = date
	err = s.states.SaveDailyState(ctx, runID, state)
	unlock()
	if err != nil {
		return models.DailyOpsSummary{}, err
	}

	s.auditEvent(ctx, actor, "daily_set_business_date", "daily_ops", runID.String(), before, state)
	return s.GetDailyOps(ctx, runID)
}

// AddressDailyDoubtful bulk-addresses every month of the run that still has
// unresolved doubtful transactions. A run with nothing pending is a no-op.
func (s *Service) AddressDailyDoubtful(ctx context.Context, runID uuid.UUID, actor string) (models.DailyOpsSummary, error) {
	summaries, err := s.ListMonthlySubmissions(ctx, runID)
	if err != nil {
		return models.DailyOpsSummary{}, err
	}
	for _, summary := range summaries {
		if summary.UnresolvedDoubtful == 0 {
			continue
		}
		if _, err := s.AddressMonthlyDoubtful(ctx, runID, summary.Month, actor); err != nil {
			return models.DailyOpsSummary{}, err
		}
	}
	return s.GetDailyOps(ctx, runID)
}

// NotifyDailyOps notifies every un-notified month with doubtful transactions.
// It fails before any side effect if a target month still has unresolved
// doubtful transactions.
func (s *Service) NotifyDailyOps(ctx context.Context, runID uuid.UUID, actor string) (models.DailyOpsSummary, error) {
	summaries, err := s.ListMonthlySubmissions(ctx, runID)
	if err != nil {
		return models.DailyOpsSummary{}, err
	}
	var targetMonths []string
	for _, summary := range summaries {
		if summary.DoubtfulTransactions <= 0 || summary.NotifiedToSource {
			continue
		}
		if summary.UnresolvedDoubtful > 0 {
			return models.DailyOpsSummary{}, apperr.Validationf("month %s still has unresolved doubtful transactions", summary.Month)
		}
		targetMonths = append(targetMonths, summary.Month)
	}
	for _, month := range targetMonths {
		if _, err := s.MarkMonthlyNotified(ctx, runID, month, actor); err != nil {
			return models.DailyOpsSummary{}, err
		}
	}
	return s.GetDailyOps(ctx, runID)
}

// CloseDailyOps closes the run's day. Only a run in ready_to_close state may
// close; the guard re-derives the state from fresh aggregates.
func (s *Service) CloseDailyOps(ctx context.Context, runID uuid.UUID, actor string) (models.DailyOpsSummary, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return models.DailyOpsSummary{}, err
	}

	unlock := s.locks.acquire(dailyLockKey(runID))
	defer unlock()

	summary, err := s.buildDailyOpsSummary(ctx, run)
	if err != nil {
		return models.DailyOpsSummary{}, err
	}
	if summary.CloseState != models.CloseStateReadyToClose {
		return models.DailyOpsSummary{}, apperr.Validationf("run not ready to close: %s", summary.NextAction)
	}

	state, err := s.states.DailyState(ctx, runID)
	if err != nil {
		return models.DailyOpsSummary{}, err
	}
	before := state
	now := time.Now().UTC()
	state.ClosedAt = &now
	if err := s.states.SaveDailyState(ctx, runID, state); err != nil {
		return models.DailyOpsSummary{}, err
	}

	run.Stage = "daily_closed"
	run.UpdatedAt = now
	if err := s.runs.Save(ctx, run); err != nil {
		return models.DailyOpsSummary{}, err
	}

	s.auditEvent(ctx, actor, "daily_close", "daily_ops", runID.String(), before, state)
	s.announce(ctx, runID.String(), "good", "Daily run closed",
		"Daily checks are complete. This run is now eligible for monthly close aggregation.",
		map[string]any{"run_id": runID.String(), "closed_at": now})
	return s.buildDailyOpsSummary(ctx, run)
}
