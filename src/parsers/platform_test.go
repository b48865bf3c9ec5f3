package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name     string
		columns  []string
		expected string
	}{
		{
			name:     "MT5 positions report in Portuguese",
			columns:  []string{"Position", "Ativo", "Horário", "Lucro", "Comissão", "Swap"},
			expected: "MetaTrader 5 (Posições)",
		},
		{
			name:     "MT5 deals report in Portuguese",
			columns:  []string{"N. do Trade", "Datade  Fechamento", "Resultado", "Comissão", "Swap", "Ativo"},
			expected: "MetaTrader 5 (Negócios)",
		},
		{
			name:     "MT5 English report",
			columns:  []string{"Position", "Type", "Deal", "Time", "Profit", "Commission", "Swap", "Symbol"},
			expected: "MetaTrader 5 (English)",
		},
		{
			name:     "MT4 statement",
			columns:  []string{"Ticket", "Open Time", "Close Time", "Profit", "Commission", "Swap", "Item"},
			expected: "MetaTrader 4",
		},
		{
			name:     "CTrader export",
			columns:  []string{"TradeID", "Direction", "Close Time", "Net Profit", "Commissions", "Swap", "Symbol"},
			expected: "CTrader",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			format, err := DetectPlatform(tc.columns)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, format.Name)
		})
	}
}

func TestDetectPlatformIsCaseAndSpacingInsensitive(t *testing.T) {
	format, err := DetectPlatform([]string{" TICKET ", "open   time", "Close Time", "Profit"})
	require.NoError(t, err)
	assert.Equal(t, "MetaTrader 4", format.Name)
}

func TestDetectPlatformUnknownColumns(t *testing.T) {
	_, err := DetectPlatform([]string{"foo", "bar", "baz"})
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "datade fechamento", NormalizeColumn("  Datade   Fechamento "))
	assert.Equal(t, "close time", NormalizeColumn("Close Time"))
}

func TestSlugifyColumn(t *testing.T) {
	assert.Equal(t, "open_time", SlugifyColumn(" Open  Time "))
	assert.Equal(t, "n._do_trade", SlugifyColumn("N. do Trade"))
}
