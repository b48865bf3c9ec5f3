package processors

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/username/cambitax/backend/src/models"
	"github.com/username/cambitax/backend/src/parsers"
)

// TradeTaxProcessor normalizes an imported trade report against a detected
// platform format, converts each trade's result to BRL at the buy-side PTAX
// rate for its close date, and apportions the results into monthly and annual
// tax figures.
type TradeTaxProcessor struct {
	rates RateSource
}

func NewTradeTaxProcessor(rates RateSource) *TradeTaxProcessor {
	return &TradeTaxProcessor{rates: rates}
}

// Process runs the full apportionment over raw tabular rows. It fails without
// partial results on an unrecognized format, an unparseable close date, or a
// missing exchange rate.
func (p *TradeTaxProcessor) Process(ctx context.Context, rows []map[string]string) (*models.TaxReport, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: trade report contains no rows", parsers.ErrUnrecognizedFormat)
	}

	columns := make([]string, 0, len(rows[0]))
	for column := range rows[0] {
		columns = append(columns, column)
	}
	format, err := parsers.DetectPlatform(columns)
	if err != nil {
		return nil, err
	}

	trades := make([]models.TradeRecord, 0, len(rows))
	for i, row := range rows {
		trade, err := normalizeTradeRow(row, format)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		trades = append(trades, trade)
	}

	// Distinct close dates resolve concurrently before the aggregation pass.
	seen := make(map[string]bool)
	var dates []time.Time
	for _, trade := range trades {
		if !seen[trade.CloseDate] {
			seen[trade.CloseDate] = true
			day, _ := time.ParseInLocation("2006-01-02", trade.CloseDate, time.UTC)
			dates = append(dates, day)
		}
	}
	if err := p.rates.Prefetch(ctx, dates); err != nil {
		return nil, err
	}

	var totalUSD, totalBRL float64
	monthlyTotals := make(map[string]*models.MonthlyResult)
	for i := range trades {
		trade := &trades[i]
		day, _ := time.ParseInLocation("2006-01-02", trade.CloseDate, time.UTC)
		rate, err := p.rates.Resolve(ctx, day)
		if err != nil {
			return nil, err
		}
		// Buy-side rate: results notionally leave the trading venue.
		trade.ResultBRL = trade.ResultUSD * rate.Buy

		totalUSD += trade.ResultUSD
		totalBRL += trade.ResultBRL

		monthly, ok := monthlyTotals[trade.MonthKey]
		if !ok {
			monthly = &models.MonthlyResult{Month: trade.MonthKey}
			monthlyTotals[trade.MonthKey] = monthly
		}
		monthly.ResultUSD += trade.ResultUSD
		monthly.ResultBRL += trade.ResultBRL
	}

	months := make([]string, 0, len(monthlyTotals))
	for month := range monthlyTotals {
		months = append(months, month)
	}
	// Lexicographic order is chronological for yyyy-mm keys.
	sort.Strings(months)
	monthly := make([]models.MonthlyResult, 0, len(months))
	for _, month := range months {
		monthly = append(monthly, *monthlyTotals[month])
	}

	// Losses are not refunded: a negative annual total owes no tax and is
	// surfaced as an amount available to offset future gains.
	annualTax := 0.0
	if totalBRL > 0 {
		annualTax = totalBRL * capitalGainsTaxRate
	}

	return &models.TaxReport{
		Platform: format.Name,
		Trades:   trades,
		Monthly:  monthly,
		Summary: models.TaxSummary{
			TotalUSD:    totalUSD,
			TotalBRL:    totalBRL,
			AnnualTax:   annualTax,
			NetAfterTax: totalBRL - annualTax,
		},
	}, nil
}

// normalizeTradeRow maps a raw row's columns onto the canonical trade fields.
// Columns outside the platform mapping are preserved under slugified keys so
// nothing from the source report is lost.
func normalizeTradeRow(row map[string]string, format *parsers.PlatformFormat) (models.TradeRecord, error) {
	closeKey := parsers.NormalizeColumn(format.CloseTimeColumn)
	resultKey := parsers.NormalizeColumn(format.ResultColumn)
	commissionKey := parsers.NormalizeColumn(format.CommissionColumn)
	swapKey := parsers.NormalizeColumn(format.SwapColumn)
	symbolKey := parsers.NormalizeColumn(format.SymbolColumn)

	var trade models.TradeRecord
	var closeRaw, resultRaw string
	for column, value := range row {
		switch parsers.NormalizeColumn(column) {
		case closeKey:
			closeRaw = value
		case resultKey:
			resultRaw = value
		case commissionKey:
			trade.Commission = value
		case swapKey:
			trade.Swap = value
		case symbolKey:
			trade.Symbol = value
		default:
			if trade.Extra == nil {
				trade.Extra = make(map[string]string)
			}
			trade.Extra[parsers.SlugifyColumn(column)] = value
		}
	}

	closeDate, err := parsers.ParseCloseDate(closeRaw)
	if err != nil {
		return models.TradeRecord{}, err
	}
	trade.CloseDate = closeDate.Format("2006-01-02")
	trade.MonthKey = trade.CloseDate[:7]
	trade.ResultUSD = parseLocaleFloat(resultRaw)
	return trade, nil
}

// parseLocaleFloat tolerates locale-formatted decimals: spaces stripped, comma
// as decimal separator. Unparseable values count as zero, matching how broker
// exports pad non-numeric cells.
func parseLocaleFloat(value string) float64 {
	cleaned := strings.ReplaceAll(value, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return parsed
}
