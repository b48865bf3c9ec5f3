package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCloseDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"15/01/2024", "2024-01-15"},
		{"15/01/2024 10:30", "2024-01-15"},
		{"2024.01.15 10:30:00", "2024-01-15"},
		{"2024-01-15", "2024-01-15"},
	}

	for _, tc := range tests {
		parsed, err := ParseCloseDate(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.expected, parsed.Format("2006-01-02"), "input %q", tc.input)
		assert.Equal(t, time.UTC, parsed.Location())
	}
}

func TestParseCloseDateMalformed(t *testing.T) {
	malformed := []string{
		"",
		"   ",
		"not-a-date",
		"31/31/2024",
		"2024.13.40",
		"15012024",
		// No whitespace before the time portion, so it stays attached to the
		// date and fails the ISO layout.
		"2024-01-15T10:30:00",
	}
	for _, input := range malformed {
		_, err := ParseCloseDate(input)
		assert.ErrorIs(t, err, ErrMalformedDate, "input %q", input)
	}
}
