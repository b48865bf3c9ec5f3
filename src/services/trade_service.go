package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cambitax/backend/src/logger"
	"github.com/username/cambitax/backend/src/models"
	"github.com/username/cambitax/backend/src/parsers"
	"github.com/username/cambitax/backend/src/processors"
	"github.com/username/cambitax/backend/src/security/validation"
)

// tradeService runs the upload pipeline (parse, detect, convert, apportion) and
// keeps the normalized trades in SQLite so the report survives restarts.
type tradeService struct {
	db          *sql.DB
	processor   *processors.TradeTaxProcessor
	reportCache *cache.Cache
}

func NewTradeService(db *sql.DB, processor *processors.TradeTaxProcessor) TradeService {
	return &tradeService{
		db:          db,
		processor:   processor,
		reportCache: cache.New(15*time.Minute, 30*time.Minute),
	}
}

func tradeCacheKey(userID int64) string {
	return fmt.Sprintf("tax_report_%d", userID)
}

func (s *tradeService) ProcessUpload(ctx context.Context, userID int64, file io.Reader) (*models.TaxReport, error) {
	rows, err := parsers.ParseTabular(file)
	if err != nil {
		return nil, err
	}

	report, err := s.processor.Process(ctx, rows)
	if err != nil {
		return nil, err
	}

	// Raw cell values from the upload go back out in reports and exports, so
	// they are defanged before persisting.
	for i := range report.Trades {
		sanitizeTrade(&report.Trades[i])
	}

	if err := s.replaceTrades(ctx, userID, report); err != nil {
		return nil, err
	}

	s.reportCache.Set(tradeCacheKey(userID), report, cache.DefaultExpiration)
	logger.L.Info("Trade report processed", "userID", userID, "platform", report.Platform, "trades", len(report.Trades))
	return report, nil
}

func sanitizeTrade(trade *models.TradeRecord) {
	clean := func(v string) string {
		return validation.SanitizeForFormulaInjection(validation.StripUnprintable(v))
	}
	trade.Symbol = clean(trade.Symbol)
	trade.Commission = clean(trade.Commission)
	trade.Swap = clean(trade.Swap)
	for k, v := range trade.Extra {
		trade.Extra[k] = clean(v)
	}
}

func (s *tradeService) replaceTrades(ctx context.Context, userID int64, report *models.TaxReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning trade replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM processed_trades WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing stored trades: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO processed_trades (user_id, close_date, month_key, symbol, result_usd, result_brl, commission, swap, extra, platform)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trade insert: %w", err)
	}
	defer stmt.Close()

	for i, trade := range report.Trades {
		extraJSON := []byte("{}")
		if len(trade.Extra) > 0 {
			extraJSON, err = json.Marshal(trade.Extra)
			if err != nil {
				return fmt.Errorf("encoding extra columns for trade %d: %w", i+1, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, userID, trade.CloseDate, trade.MonthKey, trade.Symbol,
			trade.ResultUSD, trade.ResultBRL, trade.Commission, trade.Swap, string(extraJSON), report.Platform); err != nil {
			return fmt.Errorf("storing trade %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trade replace: %w", err)
	}
	return nil
}

func (s *tradeService) GetReport(ctx context.Context, userID int64) (*models.TaxReport, error) {
	cacheKey := tradeCacheKey(userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Serving tax report from cache", "userID", userID)
		return cached.(*models.TaxReport), nil
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT close_date, month_key, symbol, result_usd, result_brl, commission, swap, extra, platform
	FROM processed_trades
	WHERE user_id = ?
	ORDER BY close_date ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading stored trades: %w", err)
	}
	defer rows.Close()

	report := &models.TaxReport{Trades: make([]models.TradeRecord, 0)}
	for rows.Next() {
		var trade models.TradeRecord
		var extraJSON string
		if err := rows.Scan(&trade.CloseDate, &trade.MonthKey, &trade.Symbol, &trade.ResultUSD,
			&trade.ResultBRL, &trade.Commission, &trade.Swap, &extraJSON, &report.Platform); err != nil {
			return nil, fmt.Errorf("scanning stored trade: %w", err)
		}
		if extraJSON != "" && extraJSON != "{}" {
			if err := json.Unmarshal([]byte(extraJSON), &trade.Extra); err != nil {
				return nil, fmt.Errorf("decoding extra columns: %w", err)
			}
		}
		report.Trades = append(report.Trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aggregateStoredTrades(report)
	s.reportCache.Set(cacheKey, report, cache.DefaultExpiration)
	return report, nil
}

// aggregateStoredTrades rebuilds the monthly breakdown and annual summary from
// already-converted trades. Stored rows carry their BRL values, so no rate
// lookups happen here.
func aggregateStoredTrades(report *models.TaxReport) {
	var totalUSD, totalBRL float64
	monthlyTotals := make(map[string]*models.MonthlyResult)
	for _, trade := range report.Trades {
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

	report.Monthly = report.Monthly[:0]
	for _, trade := range report.Trades {
		if m, ok := monthlyTotals[trade.MonthKey]; ok {
			report.Monthly = append(report.Monthly, *m)
			delete(monthlyTotals, trade.MonthKey)
		}
	}

	annualTax := 0.0
	if totalBRL > 0 {
		annualTax = totalBRL * 0.15
	}
	report.Summary = models.TaxSummary{
		TotalUSD:    totalUSD,
		TotalBRL:    totalBRL,
		AnnualTax:   annualTax,
		NetAfterTax: totalBRL - annualTax,
	}
}
