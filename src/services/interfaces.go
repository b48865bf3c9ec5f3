package services

import (
	"context"
	"io"

	"github.com/username/cambitax/backend/src/models"
)

// LedgerService persists a user's capital movements and runs the cambial ledger
// over them.
type LedgerService interface {
	// ReplaceTransactions atomically swaps the user's stored transaction list
	// for the given one, preserving input order for same-day entries.
	ReplaceTransactions(ctx context.Context, userID int64, transactions []models.CapitalTransaction) error
	// GetTransactions returns the stored list in its persisted order.
	GetTransactions(ctx context.Context, userID int64) ([]models.CapitalTransaction, error)
	// ProcessLedger runs the full ledger over the stored transactions.
	ProcessLedger(ctx context.Context, userID int64) (*models.LedgerReport, error)
}

// TradeService ingests trade report uploads and serves the resulting tax report.
type TradeService interface {
	// ProcessUpload parses the CSV, detects the platform format, converts every
	// trade to BRL and replaces the user's stored trades with the result.
	ProcessUpload(ctx context.Context, userID int64, file io.Reader) (*models.TaxReport, error)
	// GetReport rebuilds the tax report from the stored trades.
	GetReport(ctx context.Context, userID int64) (*models.TaxReport, error)
}

// EmailService sends transactional emails.
type EmailService interface {
	SendVerificationEmail(toEmail, username, token string) error
}
