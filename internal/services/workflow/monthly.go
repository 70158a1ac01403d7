package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"reconciliation-close-backend/internal/apperr"
	"reconciliation-close-backend/internal/models"
)

// Alert recipient keys derived from missing-source patterns.
const (
	recipientPSPProvider        = "psp_provider"
	recipientInternalBackoffice = "internal_backoffice"
	recipientCashierERP         = "cashier_erp"
	recipientReconciliationOps  = "reconciliation_ops"
)

var recipientLabels = map[string]string{
	recipientPSPProvider:        "PSP Provider",
	recipientInternalBackoffice: "Internal Backoffice",
	recipientCashierERP:         "Cashier (ERP)",
	recipientReconciliationOps:  "Reconciliation Ops",
}

var recipientReasons = map[string]string{
	recipientPSPProvider:        "Missing or inconsistent PSP statement entry.",
	recipientInternalBackoffice: "Missing or inconsistent internal backoffice record.",
	recipientCashierERP:         "Missing or inconsistent ERP/cashier record.",
	recipientReconciliationOps:  "General reconciliation mismatch requiring review.",
}

func monthlyLockKey(runID uuid.UUID) string { return "monthly_submissions/" + runID.String() }

type monthStats struct {
	total      int
	good       int
	doubtful   int
	addressed  int
	unresolved int
}

// monthlyIndex rebuilds per-month counters from the run's decisions, resolving
// each doubtful decision against its exception state.
func monthlyIndex(decisions []models.MatchDecision, exceptions []models.ExceptionCase) (map[string]*monthStats, map[string]map[string]struct{}) {
	stateByRef := make(map[string]models.ExceptionState, len(exceptions))
	for _, c := range exceptions {
		stateByRef[c.MerchantRef] = c.State
	}

	stats := map[string]*monthStats{}
	refsByMonth := map[string]map[string]struct{}{}
	for _, decision := range decisions {
		month := decision.TransactionMonth
		if month == "" {
			month = "unknown"
		}
		row, ok := stats[month]
		if !ok {
			row = &monthStats{}
			stats[month] = row
			refsByMonth[month] = map[string]struct{}{}
		}
		refsByMonth[month][decision.MerchantRef] = struct{}{}

		row.total++
		if decision.FinalStatus == models.FinalStatusGood {
			row.good++
			continue
		}
		row.doubtful++
		if state, ok := stateByRef[decision.MerchantRef]; ok && state.Addressed() {
			row.addressed++
		} else {
			row.unresolved++
		}
	}
	return stats, refsByMonth
}

func deriveAlertRecipients(missingSources []string) []string {
	recipients := map[string]struct{}{}
	for _, source := range missingSources {
		switch models.SourceType(source) {
		case models.SourcePSP:
			recipients[recipientPSPProvider] = struct{}{}
		case models.SourceInternal:
			recipients[recipientInternalBackoffice] = struct{}{}
		case models.SourceERP:
			recipients[recipientCashierERP] = struct{}{}
		}
	}
	if len(recipients) == 0 {
		recipients[recipientReconciliationOps] = struct{}{}
	}
	out := make([]string, 0, len(recipients))
	for key := range recipients {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func missingSourcesOf(decision models.MatchDecision) []string {
	var missing []string
	present := decision.Trace.SourcesPresent
	if !present.Internal {
		missing = append(missing, string(models.SourceInternal))
	}
	if !present.ERP {
		missing = append(missing, string(models.SourceERP))
	}
	if !present.PSP {
		missing = append(missing, string(models.SourcePSP))
	}
	return missing
}

// buildMonthlySummaries is the recompute-on-read projection for the run x month
// scope. Persisted state contributes only the flags and timestamps.
func (s *Service) buildMonthlySummaries(ctx context.Context, runID uuid.UUID) ([]models.MonthlySubmissionSummary, error) {
	decisions, err := s.decisions.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.exceptions.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	stateByMonth, err := s.states.MonthlyStates(ctx, runID)
	if err != nil {
		return nil, err
	}

	stats, _ := monthlyIndex(decisions, exceptions)

	stateByRef := make(map[string]models.ExceptionState, len(exceptions))
	for _, c := range exceptions {
		stateByRef[c.MerchantRef] = c.State
	}

	detailsByMonth := map[string][]models.MonthlyDoubtfulDetail{}
	recipientRefsByMonth := map[string]map[string]map[string]struct{}{}
	for _, decision := range decisions {
		if decision.FinalStatus != models.FinalStatusDoubtful {
			continue
		}
		month := decision.TransactionMonth
		if month == "" {
			month = "unknown"
		}
		missing := missingSourcesOf(decision)
		recipients := deriveAlertRecipients(missing)

		state, ok := stateByRef[decision.MerchantRef]
		if !ok {
			state = models.ExceptionOpen
		}
		detailsByMonth[month] = append(detailsByMonth[month], models.MonthlyDoubtfulDetail{
			MerchantRef:    decision.MerchantRef,
			State:          state,
			ReasonCodes:    decision.ReasonCodes,
			MissingSources: missing,
			Recipients:     recipients,
		})

		byRecipient, ok := recipientRefsByMonth[month]
		if !ok {
			byRecipient = map[string]map[string]struct{}{}
			recipientRefsByMonth[month] = byRecipient
		}
		for _, recipient := range recipients {
			if byRecipient[recipient] == nil {
				byRecipient[recipient] = map[string]struct{}{}
			}
			byRecipient[recipient][decision.MerchantRef] = struct{}{}
		}
	}

	monthSet := map[string]struct{}{}
	for month := range stats {
		monthSet[month] = struct{}{}
	}
	for month := range stateByMonth {
		monthSet[month] = struct{}{}
	}
	months := make([]string, 0, len(monthSet))
	for month := range monthSet {
		months = append(months, month)
	}
	sort.Strings(months)

	out := make([]models.MonthlySubmissionSummary, 0, len(months))
	for _, month := range months {
		row := stats[month]
		if row == nil {
			row = &monthStats{}
		}
		state := stateByMonth[month]
		ready := row.total > 0 && row.unresolved == 0

		var nextAction string
		switch {
		case state.SubmittedToERP:
			nextAction = models.ActionCompleted
		case !ready:
			nextAction = models.ActionAddressDoubtful
		case row.doubtful > 0 && !state.NotifiedToSource:
			nextAction = models.ActionNotifySources
		case row.good > 0 && !state.JournalCreated:
			nextAction = models.ActionCreateJournal
		default:
			nextAction = models.ActionSubmitToERP
		}

		out = append(out, models.MonthlySubmissionSummary{
			RunID:                runID,
			Month:                month,
			TotalTransactions:    row.total,
			GoodTransactions:     row.good,
			DoubtfulTransactions: row.doubtful,
			AddressedDoubtful:    row.addressed,
			UnresolvedDoubtful:   row.unresolved,
			ReadyForSubmission:   ready,
			NotifiedToSource:     state.NotifiedToSource,
			JournalCreated:       state.JournalCreated,
			SubmittedToERP:       state.SubmittedToERP,
			NextAction:           nextAction,
			NotifiedAt:           state.NotifiedAt,
			JournalCreatedAt:     state.JournalCreatedAt,
			SubmittedAt:          state.SubmittedAt,
			AlertRecipients:      buildAlertRecipients(recipientRefsByMonth[month]),
			DoubtfulDetails:      detailsByMonth[month],
		})
	}
	return out, nil
}

// buildAlertRecipients orders recipients by affected-reference count
// descending, references sorted within each.
func buildAlertRecipients(refsByRecipient map[string]map[string]struct{}) []models.MonthlyAlertRecipient {
	out := make([]models.MonthlyAlertRecipient, 0, len(refsByRecipient))
	for key, refSet := range refsByRecipient {
		refs := make([]string, 0, len(refSet))
		for ref := range refSet {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		reason, ok := recipientReasons[key]
		if !ok {
			reason = "Reconciliation discrepancy found."
		}
		label, ok := recipientLabels[key]
		if !ok {
			label = key
		}
		out = append(out, models.MonthlyAlertRecipient{
			RecipientKey:   key,
			RecipientLabel: label,
			Reason:         reason,
			Count:          len(refs),
			MerchantRefs:   refs,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].RecipientKey < out[j].RecipientKey
	})
	return out
}

func (s *Service) ListMonthlySubmissions(ctx context.Context, runID uuid.UUID) ([]models.MonthlySubmissionSummary, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.buildMonthlySummaries(ctx, runID)
}

func (s *Service) GetMonthlySubmission(ctx context.Context, runID uuid.UUID, month string) (models.MonthlySubmissionSummary, error) {
	summaries, err := s.ListMonthlySubmissions(ctx, runID)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	for _, summary := range summaries {
		if summary.Month == month {
			return summary, nil
		}
	}
	return models.MonthlySubmissionSummary{}, apperr.NotFound("monthly submission", month)
}

// AddressMonthlyDoubtful bulk-moves every unaddressed exception of the month
// into verified. Re-running on an already-addressed month is a no-op.
func (s *Service) AddressMonthlyDoubtful(ctx context.Context, runID uuid.UUID, month, actor string) (models.MonthlySubmissionSummary, error) {
	if _, err := s.GetMonthlySubmission(ctx, runID, month); err != nil {
		return models.MonthlySubmissionSummary{}, err
	}

	// The exceptions document is shared across months of the run, so the bulk
	// update happens under the same per-run lock as the state write.
	unlock := s.locks.acquire(monthlyLockKey(runID))
	defer unlock()

	decisions, err := s.decisions.ListByRun(ctx, runID)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	targetRefs := map[string]struct{}{}
	for _, decision := range decisions {
		if decision.TransactionMonth == month {
			targetRefs[decision.MerchantRef] = struct{}{}
		}
	}

	cases, err := s.exceptions.ListByRun(ctx, runID)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	updated := 0
	now := time.Now().UTC()
	for idx := range cases {
		if _, ok := targetRefs[cases[idx].MerchantRef]; !ok {
			continue
		}
		if cases[idx].State.Addressed() {
			continue
		}
		cases[idx].State = models.ExceptionVerified
		cases[idx].UpdatedAt = now
		updated++
	}
	if updated > 0 {
		if err := s.exceptions.SaveAll(ctx, runID, cases); err != nil {
			return models.MonthlySubmissionSummary{}, err
		}
	}

	states, err := s.states.MonthlyStates(ctx, runID)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	state := states[month]
	state.DoubtfulAddressedAt = &now
	states[month] = state
	if err := s.states.SaveMonthlyStates(ctx, runID, states); err != nil {
		return models.MonthlySubmissionSummary{}, err
	}

	s.auditEvent(ctx, actor, "monthly_address_doubtful", "monthly_submission",
		runID.String()+":"+month, nil,
		map[string]any{"month": month, "updated_exceptions": updated})
	return s.GetMonthlySubmission(ctx, runID, month)
}

// MarkMonthlyNotified records that the month's counterparties were notified.
// Notifying a month with nothing doubtful is a validation error.
func (s *Service) MarkMonthlyNotified(ctx context.Context, runID uuid.UUID, month, actor string) (models.MonthlySubmissionSummary, error) {
	summary, err := s.GetMonthlySubmission(ctx, runID, month)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	if summary.DoubtfulTransactions == 0 {
		return models.MonthlySubmissionSummary{}, apperr.Validationf("no doubtful transactions to notify")
	}

	unlock := s.locks.acquire(monthlyLockKey(runID))
	defer unlock()
	states, err := s.states.MonthlyStates(ctx, runID)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	state := states[month]
	before := state
	now := time.Now().UTC()
	state.NotifiedToSource = true
	state.NotifiedAt = &now
	states[month] = state
	if err := s.states.SaveMonthlyStates(ctx, runID, states); err != nil {
		return models.MonthlySubmissionSummary{}, err
	}

	s.auditEvent(ctx, actor, "monthly_notify_sources", "monthly_submission",
		runID.String()+":"+month, before, state)
	return s.GetMonthlySubmission(ctx, runID, month)
}

// CreateMonthlyJournal requires readiness and at least one good transaction.
func (s *Service) CreateMonthlyJournal(ctx context.Context, runID uuid.UUID, month, actor string) (models.MonthlySubmissionSummary, error) {
	summary, err := s.GetMonthlySubmission(ctx, runID, month)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	if !summary.ReadyForSubmission {
		return models.MonthlySubmissionSummary{}, apperr.Validationf("monthly submission is not ready; resolve doubtful transactions first")
	}
	if summary.GoodTransactions <= 0 {
		return models.MonthlySubmissionSummary{}, apperr.Validationf("no good transactions available to create journal")
	}

	unlock := s.locks.acquire(monthlyLockKey(runID))
	defer unlock()
	states, err := s.states.MonthlyStates(ctx, runID)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	state := states[month]
	before := state
	now := time.Now().UTC()
	state.JournalCreated = true
	state.JournalCreatedAt = &now
	states[month] = state
	if err := s.states.SaveMonthlyStates(ctx, runID, states); err != nil {
		return models.MonthlySubmissionSummary{}, err
	}

	s.auditEvent(ctx, actor, "monthly_create_journal", "monthly_submission",
		runID.String()+":"+month, before, state)
	return s.GetMonthlySubmission(ctx, runID, month)
}

// SubmitMonthlyToERP requires readiness; a month with good transactions must
// have its journal first, and an already-submitted month is rejected.
func (s *Service) SubmitMonthlyToERP(ctx context.Context, runID uuid.UUID, month, actor string) (models.MonthlySubmissionSummary, error) {
	summary, err := s.GetMonthlySubmission(ctx, runID, month)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	if !summary.ReadyForSubmission {
		return models.MonthlySubmissionSummary{}, apperr.Validationf("monthly submission is not ready; resolve doubtful transactions first")
	}
	if summary.SubmittedToERP {
		return models.MonthlySubmissionSummary{}, apperr.Validationf("month %s was already submitted to ERP", month)
	}
	if summary.GoodTransactions > 0 && !summary.JournalCreated {
		return models.MonthlySubmissionSummary{}, apperr.Validationf("create journal before submitting to ERP")
	}

	unlock := s.locks.acquire(monthlyLockKey(runID))
	defer unlock()
	states, err := s.states.MonthlyStates(ctx, runID)
	if err != nil {
		return models.MonthlySubmissionSummary{}, err
	}
	state := states[month]
	before := state
	now := time.Now().UTC()
	state.SubmittedToERP = true
	state.SubmittedAt = &now
	states[month] = state
	if err := s.states.SaveMonthlyStates(ctx, runID, states); err != nil {
		return models.MonthlySubmissionSummary{}, err
	}

	s.auditEvent(ctx, actor, "monthly_submit_erp", "monthly_submission",
		runID.String()+":"+month, before, state)
	return s.GetMonthlySubmission(ctx, runID, month)
}
