package matching

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reconciliation-close-backend/internal/models"
)

// Engine runs the three-way matching pass. It is stateless; one instance can
// serve concurrent runs.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Result holds the immutable facts produced by one reconciliation pass.
type Result struct {
	Decisions  []models.MatchDecision
	Exceptions []models.ExceptionCase
}

// Reconcile evaluates every distinct merchant_ref across the union of the
// three record sets and emits one decision per reference, plus one exception
// case per doubtful decision. Bad data on one reference never aborts the pass.
func (e *Engine) Reconcile(runID uuid.UUID, internal, erp, psp []models.NormalizedTransaction) Result {
	internalIdx := indexByRef(internal)
	erpIdx := indexByRef(erp)
	pspIdx := indexByRef(psp)

	refs := unionRefs(internalIdx, erpIdx, pspIdx)

	result := Result{}
	for _, ref := range refs {
		decision := e.decide(runID, ref, internalIdx[ref], erpIdx[ref], pspIdx[ref])
		result.Decisions = append(result.Decisions, decision)

		if decision.FinalStatus == models.FinalStatusDoubtful {
			reasons := decision.ReasonCodes
			if len(reasons) == 0 {
				reasons = []string{models.ReasonManualReviewRequired}
			}
			now := time.Now().UTC()
			result.Exceptions = append(result.Exceptions, models.ExceptionCase{
				ID:          uuid.New(),
				RunID:       runID,
				MerchantRef: ref,
				Severity:    "medium",
				ReasonCodes: reasons,
				State:       models.ExceptionOpen,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}
	return result
}

func (e *Engine) decide(runID uuid.UUID, ref string, i, erp, psp *models.NormalizedTransaction) models.MatchDecision {
	decision := models.MatchDecision{
		RunID:            runID,
		MerchantRef:      ref,
		TransactionMonth: monthFromSources(i, erp, psp),
	}

	present := models.SourcesPresent{Internal: i != nil, ERP: erp != nil, PSP: psp != nil}
	if !present.Internal || !present.ERP || !present.PSP {
		// The remaining stages need all three rows; report them as skipped.
		decision.FinalStatus = models.FinalStatusDoubtful
		decision.ReasonCodes = []string{models.ReasonMissingSources}
		decision.FXDetail = fxDetailMissingSources
		decision.Trace = models.DecisionTrace{
			SourcesPresent: present,
			ExactHash:      models.ExactHashTrace{Matched: false, Skipped: true},
			Fuzzy:          models.FuzzyTrace{Threshold: e.cfg.FuzzyThreshold, Skipped: true},
			ThreeWay:       models.ThreeWayTrace{PresenceCheck: false},
			Backdated:      models.BackdateTrace{WindowDays: e.cfg.BackdateWindowDays},
			FX:             models.FXTrace{Handled: false, Detail: fxDetailMissingSources, Currencies: []string{}},
		}
		return decision
	}

	stage := models.StageResult{}
	var reasons []string

	hi, he, hp := hashRow(i), hashRow(erp), hashRow(psp)
	stage.ExactHash = hi == he && he == hp

	pairScores := map[string]float64{
		"internal_vs_erp": e.scoreFuzzy(i, erp),
		"internal_vs_psp": e.scoreFuzzy(i, psp),
		"erp_vs_psp":      e.scoreFuzzy(erp, psp),
	}
	var fuzzyScore float64
	if stage.ExactHash {
		stage.Fuzzy = true
		fuzzyScore = 1.0
	} else {
		fuzzyScore = math.Min(pairScores["internal_vs_erp"],
			math.Min(pairScores["internal_vs_psp"], pairScores["erp_vs_psp"]))
		// Conservative: a single weak pair fails the whole reference.
		stage.Fuzzy = pairScores["internal_vs_erp"] >= e.cfg.FuzzyThreshold &&
			pairScores["internal_vs_psp"] >= e.cfg.FuzzyThreshold &&
			pairScores["erp_vs_psp"] >= e.cfg.FuzzyThreshold
	}

	amountCheck := amountsEqual(i, erp) && amountsEqual(erp, psp)
	identityCheck := i.ClientID == erp.ClientID && erp.ClientID == psp.ClientID &&
		i.Currency == erp.Currency && erp.Currency == psp.Currency &&
		i.BankCountry == erp.BankCountry && erp.BankCountry == psp.BankCountry
	stage.ThreeWay = amountCheck && identityCheck

	var maxGap *int
	pairGaps := map[string]int{}
	var gapParseErr error
	pairs := []struct {
		name string
		a, b string
	}{
		{"internal_vs_erp", i.TransactionDate, erp.TransactionDate},
		{"internal_vs_psp", i.TransactionDate, psp.TransactionDate},
		{"erp_vs_psp", erp.TransactionDate, psp.TransactionDate},
	}
	for _, pair := range pairs {
		gap, err := dateGapDays(pair.a, pair.b)
		if err != nil {
			gapParseErr = err
			continue
		}
		pairGaps[pair.name] = gap
		if maxGap == nil || gap > *maxGap {
			g := gap
			maxGap = &g
		}
	}
	if gapParseErr != nil {
		stage.Backdated = false
		maxGap = nil
	} else {
		stage.Backdated = *maxGap <= e.cfg.BackdateWindowDays
	}

	stage.FXHandled = fxHandled(i, erp, psp)
	fxDetail := fxDetailHandled
	if !stage.FXHandled {
		fxDetail = fxDetailInsufficient
	}

	if !stage.ExactHash {
		reasons = append(reasons, models.ReasonExactHashMismatch)
	}
	if !stage.Fuzzy {
		reasons = append(reasons, models.ReasonFuzzyThresholdNotMet)
	}
	if !stage.ThreeWay {
		reasons = append(reasons, models.ReasonThreeWayFailed)
	}
	if !stage.Backdated && gapParseErr == nil {
		reasons = append(reasons, models.ReasonBackdatedWindowExceeded)
	}
	if !stage.FXHandled {
		reasons = append(reasons, models.ReasonFXInsufficient)
	}
	if gapParseErr != nil {
		reasons = append(reasons, models.ReasonMalformedSourceData)
	}

	final := models.FinalStatusDoubtful
	if stage.Fuzzy && stage.ThreeWay && stage.Backdated && stage.FXHandled {
		final = models.FinalStatusGood
	}

	trace := models.DecisionTrace{
		SourcesPresent: present,
		ExactHash: models.ExactHashTrace{
			Matched: stage.ExactHash,
			Hashes: map[string]string{
				"internal": hi[:12],
				"erp":      he[:12],
				"psp":      hp[:12],
			},
			KeyFields: hashKeyFields,
		},
		Fuzzy: models.FuzzyTrace{
			Score:      &fuzzyScore,
			Threshold:  e.cfg.FuzzyThreshold,
			PairScores: pairScores,
		},
		ThreeWay: models.ThreeWayTrace{
			PresenceCheck: true,
			AmountCheck:   amountCheck,
			IdentityCheck: identityCheck,
		},
		Backdated: models.BackdateTrace{
			WindowDays:   e.cfg.BackdateWindowDays,
			MaxGapDays:   maxGap,
			PairGapsDays: pairGaps,
		},
		FX: models.FXTrace{
			Handled:    stage.FXHandled,
			Detail:     fxDetail,
			Currencies: []string{i.Currency, erp.Currency, psp.Currency},
			Rates: map[string]*decimal.Decimal{
				"internal": i.FXRate,
				"erp":      erp.FXRate,
				"psp":      psp.FXRate,
			},
		},
	}
	if gapParseErr != nil {
		trace.Backdated.ParseError = gapParseErr.Error()
	}

	decision.FinalStatus = final
	decision.ReasonCodes = reasons
	decision.StageResults = stage
	decision.FuzzyScore = &fuzzyScore
	decision.BackdatedGapDays = maxGap
	decision.FXDetail = fxDetail
	decision.Trace = trace
	return decision
}

// hashRow digests the row's key tuple. Decimal fields go through String() so
// formatting variants ("100.00" vs "100") hash identically; the date keeps its
// first ten characters, truncating to the calendar day.
func hashRow(row *models.NormalizedTransaction) string {
	date := strings.TrimSpace(row.TransactionDate)
	if len(date) > 10 {
		date = date[:10]
	}
	key := strings.Join([]string{
		row.MerchantRef,
		row.GrossAmount.String(),
		row.Currency,
		row.ProcessingFee.String(),
		row.NetPayout.String(),
		date,
		row.ClientID,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) scoreFuzzy(a, b *models.NormalizedTransaction) float64 {
	score := 0.0
	if a.MerchantRef == b.MerchantRef {
		score += e.cfg.Weights.MerchantRef
	}
	if amountsEqual(a, b) {
		score += e.cfg.Weights.Amounts
	}
	if normalizeStatus(a.Status) == normalizeStatus(b.Status) {
		score += e.cfg.Weights.Status
	}
	if a.ClientID == b.ClientID {
		score += e.cfg.Weights.ClientID
	}
	if a.PaymentMethod == b.PaymentMethod {
		score += e.cfg.Weights.PaymentMethod
	}
	return round4(score)
}

func amountsEqual(a, b *models.NormalizedTransaction) bool {
	return a.GrossAmount.Equal(b.GrossAmount) &&
		a.ProcessingFee.Equal(b.ProcessingFee) &&
		a.NetPayout.Equal(b.NetPayout)
}

// fxHandled passes trivially for a single currency; otherwise every source
// must report a strictly positive FX rate. No conversion arithmetic happens.
func fxHandled(rows ...*models.NormalizedTransaction) bool {
	currencies := map[string]struct{}{}
	for _, row := range rows {
		currencies[row.Currency] = struct{}{}
	}
	if len(currencies) == 1 {
		return true
	}
	for _, row := range rows {
		if row.FXRate == nil || !row.FXRate.IsPositive() {
			return false
		}
	}
	return true
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func indexByRef(rows []models.NormalizedTransaction) map[string]*models.NormalizedTransaction {
	idx := make(map[string]*models.NormalizedTransaction, len(rows))
	for i := range rows {
		idx[rows[i].MerchantRef] = &rows[i]
	}
	return idx
}

func unionRefs(indexes ...map[string]*models.NormalizedTransaction) []string {
	seen := map[string]struct{}{}
	for _, idx := range indexes {
		for ref := range idx {
			seen[ref] = struct{}{}
		}
	}
	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
