package matching

import "strings"

// FuzzyWeights are the pairwise similarity weights. Defaults sum to 1.0.
type FuzzyWeights struct {
	MerchantRef   float64
	Amounts       float64
	Status        float64
	ClientID      float64
	PaymentMethod float64
}

type Config struct {
	FuzzyThreshold     float64
	BackdateWindowDays int
	Weights            FuzzyWeights
}

func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:     0.9,
		BackdateWindowDays: 3,
		Weights: FuzzyWeights{
			MerchantRef:   0.5,
			Amounts:       0.2,
			Status:        0.1,
			ClientID:      0.1,
			PaymentMethod: 0.1,
		},
	}
}

// Sources report settled transactions under different vocabularies; these all
// normalize to SUCCESS before comparison.
var statusNormalization = map[string]string{
	"captured":  "SUCCESS",
	"confirmed": "SUCCESS",
	"settled":   "SUCCESS",
}

func normalizeStatus(status string) string {
	key := strings.ToLower(strings.TrimSpace(status))
	if normalized, ok := statusNormalization[key]; ok {
		return normalized
	}
	return strings.ToUpper(status)
}

// FX detail strings carried on the decision.
const (
	fxDetailHandled        = "handled"
	fxDetailInsufficient   = "insufficient_fx_data"
	fxDetailMissingSources = "not_applicable_missing_sources"
)

var hashKeyFields = []string{
	"merchant_ref",
	"gross_amount",
	"currency",
	"processing_fee",
	"net_payout",
	"transaction_date(date-only)",
	"client_id",
}
