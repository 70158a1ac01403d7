package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FinalStatus string

const (
	FinalStatusGood     FinalStatus = "good_transaction"
	FinalStatusDoubtful FinalStatus = "doubtful_transaction"
)

// Reason codes, listed in the order they appear on a decision.
const (
	ReasonMissingSources          = "MISSING_IN_ONE_OR_MORE_SOURCES"
	ReasonExactHashMismatch       = "EXACT_HASH_MISMATCH"
	ReasonFuzzyThresholdNotMet    = "FUZZY_THRESHOLD_NOT_MET"
	ReasonThreeWayFailed          = "THREE_WAY_VALIDATION_FAILED"
	ReasonBackdatedWindowExceeded = "BACKDATED_WINDOW_EXCEEDED"
	ReasonFXInsufficient          = "FX_DATA_INSUFFICIENT"
	ReasonMalformedSourceData     = "MALFORMED_SOURCE_DATA"
	ReasonManualReviewRequired    = "MANUAL_REVIEW_REQUIRED"
)

// StageResult holds the pass flags for the five matching stages.
type StageResult struct {
	ExactHash bool `json:"exact_hash"`
	Fuzzy     bool `json:"fuzzy"`
	ThreeWay  bool `json:"three_way"`
	Backdated bool `json:"backdated"`
	FXHandled bool `json:"fx_handled"`
}

type SourcesPresent struct {
	Internal bool `json:"internal"`
	ERP      bool `json:"erp"`
	PSP      bool `json:"psp"`
}

type ExactHashTrace struct {
	Matched   bool              `json:"matched"`
	Skipped   bool              `json:"skipped,omitempty"`
	Hashes    map[string]string `json:"hashes,omitempty"`
	KeyFields []string          `json:"key_fields,omitempty"`
}

type FuzzyTrace struct {
	Score      *float64           `json:"score"`
	Threshold  float64            `json:"threshold"`
	Skipped    bool               `json:"skipped,omitempty"`
	PairScores map[string]float64 `json:"pair_scores,omitempty"`
}

type ThreeWayTrace struct {
	PresenceCheck bool `json:"presence_check"`
	AmountCheck   bool `json:"amount_check"`
	IdentityCheck bool `json:"identity_check"`
}

type BackdateTrace struct {
	WindowDays   int            `json:"window_days"`
	MaxGapDays   *int           `json:"max_gap_days"`
	PairGapsDays map[string]int `json:"pair_gaps_days,omitempty"`
	ParseError   string         `json:"parse_error,omitempty"`
}

type FXTrace struct {
	Handled    bool                        `json:"handled"`
	Detail     string                      `json:"detail"`
	Currencies []string                    `json:"currencies"`
	Rates      map[string]*decimal.Decimal `json:"rates,omitempty"`
}

// DecisionTrace captures the raw inputs of every sub-check for audit.
type DecisionTrace struct {
	SourcesPresent SourcesPresent `json:"sources_present"`
	ExactHash      ExactHashTrace `json:"exact_hash"`
	Fuzzy          FuzzyTrace     `json:"fuzzy"`
	ThreeWay       ThreeWayTrace  `json:"three_way"`
	Backdated      BackdateTrace  `json:"backdated"`
	FX             FXTrace        `json:"fx"`
}

// MatchDecision is the immutable per-reference outcome of one reconciliation run.
type MatchDecision struct {
	RunID            uuid.UUID     `json:"run_id"`
	MerchantRef      string        `json:"merchant_ref"`
	FinalStatus      FinalStatus   `json:"final_status"`
	ReasonCodes      []string      `json:"reason_codes"`
	StageResults     StageResult   `json:"stage_results"`
	TransactionMonth string        `json:"transaction_month"`
	FuzzyScore       *float64      `json:"fuzzy_score"`
	BackdatedGapDays *int          `json:"backdated_gap_days"`
	FXDetail         string        `json:"fx_detail"`
	Trace            DecisionTrace `json:"trace"`
}
