package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthFromDate(t *testing.T) {
	cases := []struct {
		raw   string
		month string
		ok    bool
	}{
		{"2025-03-10T14:30:00Z", "2025-03", true},
		{"2025-03-10 14:30:00", "2025-03", true},
		{"2025-03-10", "2025-03", true},
		{" 2025-12-31 ", "2025-12", true},
		// Literal prefix wins even when the tail is garbled.
		{"2025-03-10Tnonsense", "2025-03", true},
		{"10/03/2025", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		month, ok := MonthFromDate(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.month, month, tc.raw)
	}
}

func TestDateGapDaysIgnoresTimeOfDay(t *testing.T) {
	gap, err := dateGapDays("2025-03-10T23:59:00Z", "2025-03-11T00:01:00Z")
	require.NoError(t, err)
	assert.Equal(t, 1, gap)

	gap, err = dateGapDays("2025-03-15", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 5, gap)

	_, err = dateGapDays("garbage", "2025-03-10")
	require.Error(t, err)
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, "SUCCESS", normalizeStatus("captured"))
	assert.Equal(t, "SUCCESS", normalizeStatus(" Settled "))
	assert.Equal(t, "SUCCESS", normalizeStatus("CONFIRMED"))
	assert.Equal(t, "REFUNDED", normalizeStatus("refunded"))
}
