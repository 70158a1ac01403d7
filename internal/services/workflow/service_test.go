package workflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-close-backend/internal/models"
	"reconciliation-close-backend/internal/repository"
	"reconciliation-close-backend/internal/services/matching"
	"reconciliation-close-backend/internal/store"
)

func newTestService() *Service {
	s := store.NewMemoryStore()
	return NewService(
		repository.NewRunRepository(s),
		repository.NewDecisionRepository(s),
		repository.NewExceptionRepository(s),
		repository.NewWorkflowStateRepository(s),
		repository.NewAuditRepository(s),
		repository.NewAnnouncementRepository(s),
		matching.NewEngine(matching.DefaultConfig()),
	)
}

func row(ref, date string) models.NormalizedTransaction {
	return models.NormalizedTransaction{
		MerchantRef:     ref,
		GrossAmount:     decimal.RequireFromString("100.00"),
		Currency:        "EUR",
		ProcessingFee:   decimal.RequireFromString("2.50"),
		NetPayout:       decimal.RequireFromString("97.50"),
		TransactionDate: date,
		ClientID:        "client-1",
		Status:          "settled",
		PaymentMethod:   "card",
		BankCountry:     "DE",
	}
}

// seedRun reconciles one good and one doubtful reference in March 2025. The
// doubtful one is missing from the PSP extract.
func seedRun(t *testing.T, svc *Service) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	run, err := svc.CreateRun(ctx, "analyst")
	require.NoError(t, err)

	internal := []models.NormalizedTransaction{row("TX-GOOD", "2025-03-10"), row("TX-BAD", "2025-03-11")}
	erp := []models.NormalizedTransaction{row("TX-GOOD", "2025-03-10"), row("TX-BAD", "2025-03-11")}
	psp := []models.NormalizedTransaction{row("TX-GOOD", "2025-03-10")}

	summary, err := svc.Reconcile(ctx, run.ID, internal, erp, psp)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusCompleted, summary.Run.Status)
	require.Equal(t, 1, summary.Run.Counters.Good)
	require.Equal(t, 1, summary.Run.Counters.Doubtful)
	return run.ID
}

func TestReconcilePersistsFactsAndMonthState(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	runID := seedRun(t, svc)

	monthly, err := svc.ListMonthlySubmissions(ctx, runID)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	m := monthly[0]
	assert.Equal(t, "2025-03", m.Month)
	assert.Equal(t, 2, m.TotalTransactions)
	assert.Equal(t, 1, m.GoodTransactions)
	assert.Equal(t, 1, m.UnresolvedDoubtful)
	assert.False(t, m.ReadyForSubmission)
	assert.Equal(t, models.ActionAddressDoubtful, m.NextAction)

	require.Len(t, m.AlertRecipients, 1)
	assert.Equal(t, "psp_provider", m.AlertRecipients[0].RecipientKey)
	assert.Equal(t, []string{"TX-BAD"}, m.AlertRecipients[0].MerchantRefs)

	exceptions, err := svc.ListExceptions(ctx, runID)
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, "TX-BAD", exceptions[0].MerchantRef)
	assert.Equal(t, models.ExceptionOpen, exceptions[0].State)
}

func TestMonthlySubmissionLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	runID := seedRun(t, svc)

	// Journal and submission are blocked while doubtfuls are unresolved.
	_, err := svc.CreateMonthlyJournal(ctx, runID, "2025-03", "supervisor")
	require.Error(t, err)
	_, err = svc.SubmitMonthlyToERP(ctx, runID, "2025-03", "admin")
	require.Error(t, err)

	m, err := svc.AddressMonthlyDoubtful(ctx, runID, "2025-03", "analyst")
	require.NoError(t, err)
	assert.Equal(t, 0, m.UnresolvedDoubtful)
	assert.Equal(t, 1, m.AddressedDoubtful)
	assert.True(t, m.ReadyForSubmission)
	assert.Equal(t, models.ActionNotifySources, m.NextAction)

	// Re-addressing an already-addressed month stays a no-op.
	m, err = svc.AddressMonthlyDoubtful(ctx, runID, "2025-03", "analyst")
	require.NoError(t, err)
	assert.Equal(t, 1, m.AddressedDoubtful)

	m, err = svc.MarkMonthlyNotified(ctx, runID, "2025-03", "supervisor")
	require.NoError(t, err)
	assert.True(t, m.NotifiedToSource)
	require.NotNil(t, m.NotifiedAt)
	assert.Equal(t, models.ActionCreateJournal, m.NextAction)

	m, err = svc.CreateMonthlyJournal(ctx, runID, "2025-03", "supervisor")
	require.NoError(t, err)
	assert.True(t, m.JournalCreated)
	assert.Equal(t, models.ActionSubmitToERP, m.NextAction)

	m, err = svc.SubmitMonthlyToERP(ctx, runID, "2025-03", "admin")
	require.NoError(t, err)
	assert.True(t, m.SubmittedToERP)
	assert.Equal(t, models.ActionCompleted, m.NextAction)

	_, err = svc.SubmitMonthlyToERP(ctx, runID, "2025-03", "admin")
	require.Error(t, err)
}

func TestReconcileWithoutRecordsFailsRun(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	run, err := svc.CreateRun(ctx, "analyst")
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, run.ID, nil, nil, nil)
	require.Error(t, err)

	got, err := svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
}

func TestNotifyRequiresDoubtfulTransactions(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	run, err := svc.CreateRun(ctx, "analyst")
	require.NoError(t, err)

	rows := []models.NormalizedTransaction{row("TX-1", "2025-04-01")}
	_, err = svc.Reconcile(ctx, run.ID, rows, rows, rows)
	require.NoError(t, err)

	_, err = svc.MarkMonthlyNotified(ctx, run.ID, "2025-04", "supervisor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no doubtful transactions")
}

func TestUpdateExceptionStateRejectsUnknown(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	runID := seedRun(t, svc)

	exceptions, err := svc.ListExceptions(ctx, runID)
	require.NoError(t, err)
	require.Len(t, exceptions, 1)

	_, err = svc.UpdateExceptionState(ctx, exceptions[0].ID, models.ExceptionState("escalated"), "analyst")
	require.Error(t, err)

	updated, err := svc.UpdateExceptionState(ctx, exceptions[0].ID, models.ExceptionApproved, "analyst")
	require.NoError(t, err)
	assert.Equal(t, models.ExceptionApproved, updated.State)

	// Addressed states are terminal: the case cannot reopen or hop states.
	_, err = svc.UpdateExceptionState(ctx, exceptions[0].ID, models.ExceptionOpen, "analyst")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot move exception")
	_, err = svc.UpdateExceptionState(ctx, exceptions[0].ID, models.ExceptionResolved, "analyst")
	require.Error(t, err)

	got, err := svc.GetException(ctx, exceptions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExceptionApproved, got.State)

	// An approved exception counts as addressed in the monthly view.
	m, err := svc.GetMonthlySubmission(ctx, runID, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 0, m.UnresolvedDoubtful)
	assert.True(t, m.ReadyForSubmission)
}

func TestDailyOpsOrdering(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	runID := seedRun(t, svc)

	daily, err := svc.GetDailyOps(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.CloseStateOpen, daily.CloseState)
	assert.Equal(t, models.ActionAddressDoubtful, daily.NextAction)

	// Closing out of order is rejected.
	_, err = svc.CloseDailyOps(ctx, runID, "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready to close")

	// Notifying while doubtfuls are unresolved fails before any side effect.
	_, err = svc.NotifyDailyOps(ctx, runID, "supervisor")
	require.Error(t, err)

	daily, err = svc.AddressDailyDoubtful(ctx, runID, "analyst")
	require.NoError(t, err)
	assert.Equal(t, 0, daily.UnresolvedDoubtful)
	assert.Equal(t, models.ActionSendNotifications, daily.NextAction)

	daily, err = svc.NotifyDailyOps(ctx, runID, "supervisor")
	require.NoError(t, err)
	assert.Equal(t, 1, daily.NotificationsSent)
	assert.Equal(t, models.CloseStateReadyToClose, daily.CloseState)
	assert.Equal(t, models.ActionCloseDay, daily.NextAction)

	daily, err = svc.CloseDailyOps(ctx, runID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.CloseStateClosed, daily.CloseState)
	assert.Equal(t, models.ActionClosed, daily.NextAction)
	require.NotNil(t, daily.ClosedAt)

	// A closed day cannot close twice.
	_, err = svc.CloseDailyOps(ctx, runID, "admin")
	require.Error(t, err)
}

func TestSetDailyBusinessDate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	runID := seedRun(t, svc)

	_, err := svc.SetDailyBusinessDate(ctx, runID, "10-03-2025", "supervisor")
	require.Error(t, err)

	daily, err := svc.SetDailyBusinessDate(ctx, runID, "2025-03-10", "supervisor")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", daily.BusinessDate)
}

// closeRun walks a seeded run through address, notify and close.
func closeRun(t *testing.T, svc *Service, runID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.AddressDailyDoubtful(ctx, runID, "analyst")
	require.NoError(t, err)
	_, err = svc.NotifyDailyOps(ctx, runID, "supervisor")
	require.NoError(t, err)
	_, err = svc.CloseDailyOps(ctx, runID, "admin")
	require.NoError(t, err)
}

func TestMonthlyCloseLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first := seedRun(t, svc)
	second := seedRun(t, svc)

	// Nothing aggregates while both days are open.
	_, err := svc.GetMonthlyCloseBatch(ctx, "2025-03")
	require.Error(t, err)

	closeRun(t, svc, first)
	closeRun(t, svc, second)

	batch, err := svc.GetMonthlyCloseBatch(ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 2, batch.SourceRunCount)
	assert.Equal(t, 4, batch.TotalTransactions)
	assert.Equal(t, 2, batch.GoodTransactions)
	assert.Equal(t, 2, batch.DoubtfulTransactions)
	assert.Equal(t, 0, batch.UnresolvedDoubtful)
	assert.Equal(t, 2, batch.DoubtfulNotificationRequired)
	assert.Equal(t, 2, batch.DoubtfulNotificationSent)
	assert.True(t, batch.ReadyForERP)
	assert.Equal(t, models.ActionCreateJournal, batch.NextAction)
	require.Len(t, batch.SourceRuns, 2)
	assert.NotEmpty(t, batch.SourceRuns[0].RunNumber)

	// Submission requires the consolidated journal first.
	_, err = svc.SubmitMonthlyCloseToERP(ctx, "2025-03", "admin")
	require.Error(t, err)

	batch, err = svc.CreateMonthlyCloseJournal(ctx, "2025-03", "supervisor")
	require.NoError(t, err)
	assert.True(t, batch.JournalCreated)
	assert.Equal(t, models.ActionSubmitToERP, batch.NextAction)

	batch, err = svc.SubmitMonthlyCloseToERP(ctx, "2025-03", "admin")
	require.NoError(t, err)
	assert.True(t, batch.SubmittedToERP)
	assert.Equal(t, models.ActionCompleted, batch.NextAction)
	require.NotNil(t, batch.ERPSubmissionPayload)
	assert.Equal(t, "2025-03", batch.ERPSubmissionPayload.Month)
	assert.Equal(t, 2, batch.ERPSubmissionPayload.ExpectedGoodTransactions)
	assert.Equal(t, 4, batch.ERPSubmissionPayload.TotalTransactions)
	assert.Equal(t, "admin", batch.ERPSubmissionPayload.SubmittedBy)
	assert.Len(t, batch.ERPSubmissionPayload.SourceRunIDs, 2)

	_, err = svc.SubmitMonthlyCloseToERP(ctx, "2025-03", "admin")
	require.Error(t, err)

	batch, err = svc.RevertMonthlyCloseSubmission(ctx, "2025-03", "admin")
	require.NoError(t, err)
	assert.False(t, batch.SubmittedToERP)
	assert.False(t, batch.JournalCreated)
	assert.Nil(t, batch.SubmittedAt)
	assert.Nil(t, batch.JournalCreatedAt)
	assert.Nil(t, batch.ERPSubmissionPayload)
	assert.Equal(t, models.ActionCreateJournal, batch.NextAction)

	_, err = svc.RevertMonthlyCloseSubmission(ctx, "2025-03", "admin")
	require.Error(t, err)
}

func TestAuditAndAnnouncementsRecorded(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	runID := seedRun(t, svc)
	closeRun(t, svc, runID)

	events, err := svc.ListAuditEvents(ctx, 50)
	require.NoError(t, err)
	actions := map[string]bool{}
	for _, e := range events {
		actions[e.Action] = true
	}
	assert.True(t, actions["create_run"])
	assert.True(t, actions["reconcile_run"])
	assert.True(t, actions["monthly_address_doubtful"])
	assert.True(t, actions["daily_close"])

	items, err := svc.ListAnnouncements(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, items)
}
