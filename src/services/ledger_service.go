package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cambitax/backend/src/logger"
	"github.com/username/cambitax/backend/src/models"
	"github.com/username/cambitax/backend/src/processors"
)

// ledgerService stores capital transactions in SQLite and memoizes processed
// reports until the underlying list changes.
type ledgerService struct {
	db          *sql.DB
	processor   *processors.LedgerProcessor
	reportCache *cache.Cache
}

func NewLedgerService(db *sql.DB, processor *processors.LedgerProcessor) LedgerService {
	return &ledgerService{
		db:          db,
		processor:   processor,
		reportCache: cache.New(15*time.Minute, 30*time.Minute),
	}
}

func ledgerCacheKey(userID int64) string {
	return fmt.Sprintf("ledger_report_%d", userID)
}

func (s *ledgerService) ReplaceTransactions(ctx context.Context, userID int64, transactions []models.CapitalTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM capital_transactions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing stored transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO capital_transactions (user_id, date, kind, amount_usd, position)
	VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing transaction insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range transactions {
		if _, err := stmt.ExecContext(ctx, userID, t.Date.Format("2006-01-02"), string(t.Kind), t.AmountUSD, i); err != nil {
			return fmt.Errorf("storing transaction %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction replace: %w", err)
	}

	s.reportCache.Delete(ledgerCacheKey(userID))
	logger.L.Info("Replaced stored capital transactions", "userID", userID, "count", len(transactions))
	return nil
}

func (s *ledgerService) GetTransactions(ctx context.Context, userID int64) ([]models.CapitalTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT date, kind, amount_usd
	FROM capital_transactions
	WHERE user_id = ?
	ORDER BY position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading stored transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]models.CapitalTransaction, 0)
	for rows.Next() {
		var dateStr, kind string
		var amount float64
		if err := rows.Scan(&dateStr, &kind, &amount); err != nil {
			return nil, fmt.Errorf("scanning stored transaction: %w", err)
		}
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("stored transaction has malformed date %q: %w", dateStr, err)
		}
		transactions = append(transactions, models.CapitalTransaction{
			Date:      date,
			Kind:      models.TransactionKind(kind),
			AmountUSD: amount,
		})
	}
	return transactions, rows.Err()
}

func (s *ledgerService) ProcessLedger(ctx context.Context, userID int64) (*models.LedgerReport, error) {
	cacheKey := ledgerCacheKey(userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Serving ledger report from cache", "userID", userID)
		return cached.(*models.LedgerReport), nil
	}

	transactions, err := s.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	report, err := s.processor.Process(ctx, transactions)
	if err != nil {
		return nil, err
	}

	s.reportCache.Set(cacheKey, report, cache.DefaultExpiration)
	return report, nil
}
