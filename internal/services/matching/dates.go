package matching

import (
	"strings"
	"time"

	"reconciliation-close-backend/internal/apperr"
	"reconciliation-close-backend/internal/models"
)

// MonthUnknown is the bucket for rows whose transaction date cannot be parsed.
const MonthUnknown = "unknown"

var looseDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseLooseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &apperr.DataQualityError{Field: "transaction_date", Value: raw}
}

// MonthFromDate derives a YYYY-MM bucket from one raw date string. A literal
// YYYY-MM prefix wins over full parsing so month grouping survives rows whose
// time component is garbled.
func MonthFromDate(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) >= 7 && trimmed[4] == '-' {
		return trimmed[:7], true
	}
	t, err := parseLooseDate(trimmed)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01"), true
}

func monthFromSources(rows ...*models.NormalizedTransaction) string {
	for _, row := range rows {
		if row == nil {
			continue
		}
		if month, ok := MonthFromDate(row.TransactionDate); ok {
			return month
		}
	}
	return MonthUnknown
}

// dateGapDays is the absolute calendar-day gap between two raw date strings,
// ignoring time of day.
func dateGapDays(a, b string) (int, error) {
	da, err := parseLooseDate(a)
	if err != nil {
		return 0, err
	}
	db, err := parseLooseDate(b)
	if err != nil {
		return 0, err
	}
	ta := time.Date(da.Year(), da.Month(), da.Day(), 0, 0, 0, 0, time.UTC)
	tb := time.Date(db.Year(), db.Month(), db.Day(), 0, 0, 0, 0, time.UTC)
	gap := int(ta.Sub(tb).Hours() / 24)
	if gap < 0 {
		gap = -gap
	}
	return gap, nil
}
