package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cambitax/backend/src/models"
)

func TestSanitizeTradeDefangsFormulaValues(t *testing.T) {
	trade := models.TradeRecord{
		Symbol:     "=cmd|' /C calc'!A0",
		Commission: "-2.50",
		Swap:       "+0.10",
		Extra: map[string]string{
			"comment": "@SUM(A1)",
			"ticket":  "123\x0045",
		},
	}

	sanitizeTrade(&trade)

	assert.Equal(t, "'=cmd|' /C calc'!A0", trade.Symbol)
	// Leading minus/plus also triggers the guard.
	assert.Equal(t, "'-2.50", trade.Commission)
	assert.Equal(t, "'+0.10", trade.Swap)
	assert.Equal(t, "'@SUM(A1)", trade.Extra["comment"])
	assert.Equal(t, "12345", trade.Extra["ticket"])
}

func TestAggregateStoredTrades(t *testing.T) {
	report := &models.TaxReport{
		Platform: "MetaTrader 4",
		Trades: []models.TradeRecord{
			{CloseDate: "2024-01-10", MonthKey: "2024-01", ResultUSD: 100, ResultBRL: 500},
			{CloseDate: "2024-01-20", MonthKey: "2024-01", ResultUSD: -40, ResultBRL: -200},
			{CloseDate: "2024-02-05", MonthKey: "2024-02", ResultUSD: 200, ResultBRL: 1020},
		},
	}

	aggregateStoredTrades(report)

	require.Len(t, report.Monthly, 2)
	assert.Equal(t, "2024-01", report.Monthly[0].Month)
	assert.InDelta(t, 300.0, report.Monthly[0].ResultBRL, 1e-9)
	assert.Equal(t, "2024-02", report.Monthly[1].Month)

	assert.InDelta(t, 260.0, report.Summary.TotalUSD, 1e-9)
	assert.InDelta(t, 1320.0, report.Summary.TotalBRL, 1e-9)
	assert.InDelta(t, 198.0, report.Summary.AnnualTax, 1e-9)
	assert.InDelta(t, 1122.0, report.Summary.NetAfterTax, 1e-9)
}

func TestAggregateStoredTradesLossYear(t *testing.T) {
	report := &models.TaxReport{
		Trades: []models.TradeRecord{
			{CloseDate: "2024-03-01", MonthKey: "2024-03", ResultUSD: -100, ResultBRL: -500},
		},
	}

	aggregateStoredTrades(report)

	assert.Zero(t, report.Summary.AnnualTax)
	assert.InDelta(t, -500.0, report.Summary.NetAfterTax, 1e-9)
}
