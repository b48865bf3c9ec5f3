package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cambitax/backend/src/models"
	"github.com/username/cambitax/backend/src/parsers"
)

func mt4Row(closeTime, profit, item string) map[string]string {
	return map[string]string{
		"Ticket":     "12345",
		"Open Time":  "2024.01.10 09:00:00",
		"Close Time": closeTime,
		"Profit":     profit,
		"Commission": "-2.50",
		"Swap":       "0.00",
		"Item":       item,
	}
}

func TestTradeTaxMT4Report(t *testing.T) {
	rates := &stubRates{quotes: map[string]models.Rate{
		"2024-01-15": {Buy: 5.00, Sell: 5.01},
		"2024-02-20": {Buy: 5.10, Sell: 5.11},
	}}
	processor := NewTradeTaxProcessor(rates)

	report, err := processor.Process(context.Background(), []map[string]string{
		mt4Row("2024.01.15 10:30:00", "100.00", "eurusd"),
		mt4Row("2024.01.15 14:00:00", "-40.00", "gbpusd"),
		mt4Row("2024.02.20 11:00:00", "200.00", "usdjpy"),
	})
	require.NoError(t, err)

	assert.Equal(t, "MetaTrader 4", report.Platform)
	require.Len(t, report.Trades, 3)

	assert.Equal(t, "2024-01-15", report.Trades[0].CloseDate)
	assert.Equal(t, "2024-01", report.Trades[0].MonthKey)
	assert.Equal(t, "eurusd", report.Trades[0].Symbol)
	assert.InDelta(t, 100.0, report.Trades[0].ResultUSD, 1e-9)
	assert.InDelta(t, 500.0, report.Trades[0].ResultBRL, 1e-9)
	assert.Equal(t, "-2.50", report.Trades[0].Commission)
	assert.Equal(t, "0.00", report.Trades[0].Swap)

	// Unmapped columns survive under slugified keys.
	assert.Equal(t, "12345", report.Trades[0].Extra["ticket"])
	assert.Equal(t, "2024.01.10 09:00:00", report.Trades[0].Extra["open_time"])

	require.Len(t, report.Monthly, 2)
	assert.Equal(t, "2024-01", report.Monthly[0].Month)
	assert.InDelta(t, 60.0, report.Monthly[0].ResultUSD, 1e-9)
	assert.InDelta(t, 300.0, report.Monthly[0].ResultBRL, 1e-9)
	assert.Equal(t, "2024-02", report.Monthly[1].Month)
	assert.InDelta(t, 1020.0, report.Monthly[1].ResultBRL, 1e-9)

	assert.InDelta(t, 260.0, report.Summary.TotalUSD, 1e-9)
	assert.InDelta(t, 1320.0, report.Summary.TotalBRL, 1e-9)
	assert.InDelta(t, 198.0, report.Summary.AnnualTax, 1e-9)
	assert.InDelta(t, 1122.0, report.Summary.NetAfterTax, 1e-9)
}

func TestTradeTaxNegativeYearOwesNoTax(t *testing.T) {
	rates := &stubRates{quotes: map[string]models.Rate{
		"2024-01-15": {Buy: 5.00, Sell: 5.01},
	}}
	processor := NewTradeTaxProcessor(rates)

	report, err := processor.Process(context.Background(), []map[string]string{
		mt4Row("2024.01.15 10:30:00", "-300.00", "eurusd"),
	})
	require.NoError(t, err)

	assert.InDelta(t, -1500.0, report.Summary.TotalBRL, 1e-9)
	assert.Zero(t, report.Summary.AnnualTax)
	assert.InDelta(t, -1500.0, report.Summary.NetAfterTax, 1e-9)
}

func TestTradeTaxLocaleDecimals(t *testing.T) {
	rates := &stubRates{quotes: map[string]models.Rate{
		"2024-03-05": {Buy: 2.0, Sell: 2.0},
	}}
	processor := NewTradeTaxProcessor(rates)

	rows := []map[string]string{
		{
			"Position": "1",
			"Ativo":    "WINFUT",
			"Horário":  "05/03/2024 17:00",
			"Lucro":    "1 234,56",
			"Comissão": "-1,00",
			"Swap":     "0,00",
		},
		{
			"Position": "2",
			"Ativo":    "WDOFUT",
			"Horário":  "05/03/2024 17:05",
			"Lucro":    "n/a",
			"Comissão": "0,00",
			"Swap":     "0,00",
		},
	}

	report, err := processor.Process(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, "MetaTrader 5 (Posições)", report.Platform)
	assert.InDelta(t, 1234.56, report.Trades[0].ResultUSD, 1e-9)
	// Non-numeric result cells count as zero.
	assert.Zero(t, report.Trades[1].ResultUSD)
	assert.InDelta(t, 2469.12, report.Summary.TotalBRL, 1e-9)
}

func TestTradeTaxUnrecognizedFormat(t *testing.T) {
	processor := NewTradeTaxProcessor(&stubRates{})

	_, err := processor.Process(context.Background(), []map[string]string{
		{"foo": "1", "bar": "2"},
	})
	assert.ErrorIs(t, err, parsers.ErrUnrecognizedFormat)

	_, err = processor.Process(context.Background(), nil)
	assert.ErrorIs(t, err, parsers.ErrUnrecognizedFormat)
}

func TestTradeTaxMalformedCloseDate(t *testing.T) {
	processor := NewTradeTaxProcessor(&stubRates{})

	_, err := processor.Process(context.Background(), []map[string]string{
		mt4Row("2024.01.15 10:30:00", "10.00", "eurusd"),
		mt4Row("not-a-date", "10.00", "eurusd"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, parsers.ErrMalformedDate)
	assert.Contains(t, err.Error(), "row 2")
}
