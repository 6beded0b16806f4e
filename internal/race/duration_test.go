package race

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeDecomposeRoundTrip(t *testing.T) {
	total := Compose(1, 2, 3, 4)
	assert.Equal(t, int64(3723004), total)

	h, m, s, ms := Decompose(total)
	assert.Equal(t, []int64{1, 2, 3, 4}, []int64{h, m, s, ms})
}

func TestDecompose(t *testing.T) {
	testCases := []struct {
		name     string
		total    int64
		expected [4]int64
	}{
		{name: "zero", total: 0, expected: [4]int64{0, 0, 0, 0}},
		{name: "milliseconds only", total: 999, expected: [4]int64{0, 0, 0, 999}},
		{name: "one minute", total: 60000, expected: [4]int64{0, 1, 0, 0}},
		{name: "over a day", total: 90061001, expected: [4]int64{25, 1, 1, 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, m, s, ms := Decompose(tc.total)
			assert.Equal(t, tc.expected, [4]int64{h, m, s, ms})
			assert.Equal(t, tc.total, Compose(h, m, s, ms))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1h 2m 3s 4ms", FormatDuration(3723004))
	assert.Equal(t, "0h 0m 0s 0ms", FormatDuration(0))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "1:02:03.004", FormatClock(3723004))
	assert.Equal(t, "2:03.004", FormatClock(123004))
}

func TestMaxTotalMs(t *testing.T) {
	assert.Equal(t, int64(3599999999), MaxTotalMs)
	assert.Equal(t, Compose(MaxHours, 59, 59, 999), MaxTotalMs)
	h, _, _, _ := Decompose(MaxTotalMs)
	assert.Equal(t, int64(MaxHours), h)
}
