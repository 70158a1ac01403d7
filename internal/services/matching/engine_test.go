package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-close-backend/internal/models"
)

func baseRow(ref string) models.NormalizedTransaction {
	return models.NormalizedTransaction{
		PSPTxnID:        "psp-" + ref,
		MerchantRef:     ref,
		GrossAmount:     decimal.RequireFromString("100.00"),
		Currency:        "EUR",
		ProcessingFee:   decimal.RequireFromString("2.50"),
		NetPayout:       decimal.RequireFromString("97.50"),
		TransactionDate: "2025-03-10T14:30:00Z",
		SettlementDate:  "2025-03-12",
		ClientID:        "client-1",
		ClientName:      "Acme GmbH",
		Status:          "settled",
		PaymentMethod:   "card",
		SettlementBank:  "DE Bank",
		BankCountry:     "DE",
	}
}

func reconcileOne(t *testing.T, i, erp, psp models.NormalizedTransaction) models.MatchDecision {
	t.Helper()
	result := NewEngine(DefaultConfig()).Reconcile(uuid.New(),
		[]models.NormalizedTransaction{i},
		[]models.NormalizedTransaction{erp},
		[]models.NormalizedTransaction{psp},
	)
	require.Len(t, result.Decisions, 1)
	return result.Decisions[0]
}

func TestReconcileIdenticalRowsIsGood(t *testing.T) {
	i := baseRow("TX-1")
	erp := baseRow("TX-1")
	psp := baseRow("TX-1")
	// Formatting variants of the same amount must hash identically.
	erp.GrossAmount = decimal.NewFromInt(100)
	psp.ProcessingFee = decimal.RequireFromString("2.5")

	d := reconcileOne(t, i, erp, psp)

	assert.Equal(t, models.FinalStatusGood, d.FinalStatus)
	assert.Empty(t, d.ReasonCodes)
	assert.True(t, d.StageResults.ExactHash)
	assert.True(t, d.StageResults.Fuzzy)
	assert.True(t, d.StageResults.ThreeWay)
	assert.True(t, d.StageResults.Backdated)
	assert.True(t, d.StageResults.FXHandled)
	require.NotNil(t, d.FuzzyScore)
	assert.Equal(t, 1.0, *d.FuzzyScore)
	assert.Equal(t, "2025-03", d.TransactionMonth)
	assert.Equal(t, "handled", d.FXDetail)
}

func TestReconcileMissingSourceSkipsLaterStages(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	i := baseRow("TX-2")
	erp := baseRow("TX-2")

	result := engine.Reconcile(uuid.New(),
		[]models.NormalizedTransaction{i},
		[]models.NormalizedTransaction{erp},
		nil,
	)
	require.Len(t, result.Decisions, 1)
	d := result.Decisions[0]

	assert.Equal(t, models.FinalStatusDoubtful, d.FinalStatus)
	assert.Equal(t, []string{models.ReasonMissingSources}, d.ReasonCodes)
	assert.True(t, d.Trace.ExactHash.Skipped)
	assert.True(t, d.Trace.Fuzzy.Skipped)
	assert.False(t, d.Trace.SourcesPresent.PSP)
	assert.Equal(t, "not_applicable_missing_sources", d.FXDetail)

	require.Len(t, result.Exceptions, 1)
	assert.Equal(t, "TX-2", result.Exceptions[0].MerchantRef)
	assert.Equal(t, models.ExceptionOpen, result.Exceptions[0].State)
}

func TestReconcileFuzzyBelowThreshold(t *testing.T) {
	i := baseRow("TX-3")
	erp := baseRow("TX-3")
	psp := baseRow("TX-3")
	// PSP disagrees on amounts: pair scores against it drop to 0.8.
	psp.GrossAmount = decimal.RequireFromString("105.00")
	psp.NetPayout = decimal.RequireFromString("102.50")

	d := reconcileOne(t, i, erp, psp)

	assert.Equal(t, models.FinalStatusDoubtful, d.FinalStatus)
	assert.Equal(t, []string{
		models.ReasonExactHashMismatch,
		models.ReasonFuzzyThresholdNotMet,
		models.ReasonThreeWayFailed,
	}, d.ReasonCodes)
	require.NotNil(t, d.FuzzyScore)
	assert.Equal(t, 0.8, *d.FuzzyScore)
	assert.Equal(t, 1.0, d.Trace.Fuzzy.PairScores["internal_vs_erp"])
	assert.Equal(t, 0.8, d.Trace.Fuzzy.PairScores["erp_vs_psp"])
}

func TestReconcileStatusVocabularyNormalized(t *testing.T) {
	i := baseRow("TX-4")
	erp := baseRow("TX-4")
	psp := baseRow("TX-4")
	i.Status = "captured"
	erp.Status = "confirmed"
	psp.Status = "settled"

	d := reconcileOne(t, i, erp, psp)
	assert.Equal(t, models.FinalStatusGood, d.FinalStatus)
}

func TestReconcileBackdateWindow(t *testing.T) {
	i := baseRow("TX-5")
	erp := baseRow("TX-5")
	psp := baseRow("TX-5")
	psp.TransactionDate = "2025-03-15T08:00:00Z"

	d := reconcileOne(t, i, erp, psp)

	assert.Equal(t, models.FinalStatusDoubtful, d.FinalStatus)
	assert.Contains(t, d.ReasonCodes, models.ReasonBackdatedWindowExceeded)
	require.NotNil(t, d.BackdatedGapDays)
	assert.Equal(t, 5, *d.BackdatedGapDays)

	// Within the window the drift is tolerated; only the hash records it.
	psp.TransactionDate = "2025-03-12T08:00:00Z"
	d = reconcileOne(t, i, erp, psp)
	assert.Equal(t, models.FinalStatusGood, d.FinalStatus)
	assert.Equal(t, []string{models.ReasonExactHashMismatch}, d.ReasonCodes)
}

func TestReconcileFXInsufficient(t *testing.T) {
	i := baseRow("TX-6")
	erp := baseRow("TX-6")
	psp := baseRow("TX-6")
	psp.Currency = "USD"
	rate := decimal.RequireFromString("1.08")
	i.FXRate = &rate
	erp.FXRate = &rate
	// PSP reports no rate.

	d := reconcileOne(t, i, erp, psp)

	assert.Equal(t, models.FinalStatusDoubtful, d.FinalStatus)
	assert.False(t, d.StageResults.FXHandled)
	assert.Contains(t, d.ReasonCodes, models.ReasonFXInsufficient)
	assert.Equal(t, "insufficient_fx_data", d.FXDetail)

	// With all three rates present the FX stage passes, though the currency
	// mismatch still fails identity.
	psp.FXRate = &rate
	d = reconcileOne(t, i, erp, psp)
	assert.True(t, d.StageResults.FXHandled)
	assert.NotContains(t, d.ReasonCodes, models.ReasonFXInsufficient)
	assert.Contains(t, d.ReasonCodes, models.ReasonThreeWayFailed)
}

func TestReconcileMalformedDate(t *testing.T) {
	i := baseRow("TX-7")
	erp := baseRow("TX-7")
	psp := baseRow("TX-7")
	psp.TransactionDate = "13/03/2025"

	d := reconcileOne(t, i, erp, psp)

	assert.Equal(t, models.FinalStatusDoubtful, d.FinalStatus)
	assert.False(t, d.StageResults.Backdated)
	assert.Nil(t, d.BackdatedGapDays)
	require.NotEmpty(t, d.ReasonCodes)
	assert.Equal(t, models.ReasonMalformedSourceData, d.ReasonCodes[len(d.ReasonCodes)-1])
	assert.NotContains(t, d.ReasonCodes, models.ReasonBackdatedWindowExceeded)
	assert.NotEmpty(t, d.Trace.Backdated.ParseError)
	// Month still resolves from the parseable sources.
	assert.Equal(t, "2025-03", d.TransactionMonth)
}

func TestReconcileMixedBatch(t *testing.T) {
	var internal, erp, psp []models.NormalizedTransaction
	for _, ref := range []string{"A-1", "A-2", "A-3", "A-4"} {
		internal = append(internal, baseRow(ref))
		erp = append(erp, baseRow(ref))
		psp = append(psp, baseRow(ref))
	}
	// A-2 drifts past the window, A-5 exists only internally.
	psp[1].TransactionDate = "2025-03-20"
	internal = append(internal, baseRow("A-5"))

	result := NewEngine(DefaultConfig()).Reconcile(uuid.New(), internal, erp, psp)

	require.Len(t, result.Decisions, 5)
	byRef := map[string]models.MatchDecision{}
	for _, d := range result.Decisions {
		byRef[d.MerchantRef] = d
	}
	assert.Equal(t, models.FinalStatusGood, byRef["A-1"].FinalStatus)
	assert.Equal(t, models.FinalStatusDoubtful, byRef["A-2"].FinalStatus)
	assert.Equal(t, models.FinalStatusGood, byRef["A-3"].FinalStatus)
	assert.Equal(t, models.FinalStatusGood, byRef["A-4"].FinalStatus)
	assert.Equal(t, models.FinalStatusDoubtful, byRef["A-5"].FinalStatus)

	require.Len(t, result.Exceptions, 2)
	// Decisions come back sorted by reference.
	assert.Equal(t, "A-1", result.Decisions[0].MerchantRef)
	assert.Equal(t, "A-5", result.Decisions[4].MerchantRef)
}
