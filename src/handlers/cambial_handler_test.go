package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/cambitax/backend/src/logger"
	"github.com/username/cambitax/backend/src/models"
	"github.com/username/cambitax/backend/src/processors"
	"github.com/username/cambitax/backend/src/rates"
)

func init() {
	logger.InitLogger("error")
}

type stubLedgerService struct {
	transactions []models.CapitalTransaction
	report       *models.LedgerReport
	err          error

	replaced []models.CapitalTransaction
}

func (s *stubLedgerService) ReplaceTransactions(_ context.Context, _ int64, transactions []models.CapitalTransaction) error {
	s.replaced = transactions
	return s.err
}

func (s *stubLedgerService) GetTransactions(_ context.Context, _ int64) ([]models.CapitalTransaction, error) {
	return s.transactions, s.err
}

func (s *stubLedgerService) ProcessLedger(_ context.Context, _ int64) (*models.LedgerReport, error) {
	return s.report, s.err
}

func authenticatedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := context.WithValue(req.Context(), userIDContextKey, int64(7))
	return req.WithContext(ctx)
}

func TestHandleGetTransactions(t *testing.T) {
	date, _ := time.ParseInLocation("2006-01-02", "2024-03-01", time.UTC)
	service := &stubLedgerService{transactions: []models.CapitalTransaction{
		{Date: date, Kind: models.KindDeposit, AmountUSD: 1000},
	}}
	handler := NewCambialHandler(service)

	rec := httptest.NewRecorder()
	handler.HandleGetTransactions(rec, authenticatedRequest(http.MethodGet, "/api/cambial/transactions", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload []transactionPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload, 1)
	assert.Equal(t, "2024-03-01", payload[0].Date)
	assert.Equal(t, models.KindDeposit, payload[0].Kind)
	assert.Equal(t, 1000.0, payload[0].AmountUSD)
}

func TestHandleGetTransactionsRequiresAuth(t *testing.T) {
	handler := NewCambialHandler(&stubLedgerService{})

	rec := httptest.NewRecorder()
	handler.HandleGetTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/cambial/transactions", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleReplaceTransactions(t *testing.T) {
	service := &stubLedgerService{}
	handler := NewCambialHandler(service)

	body := `[
		{"date":"2024-03-01","kind":"DEPOSIT","amount_usd":1000},
		{"date":"2024-06-10","kind":"WITHDRAWAL","amount_usd":400}
	]`
	rec := httptest.NewRecorder()
	handler.HandleReplaceTransactions(rec, authenticatedRequest(http.MethodPut, "/api/cambial/transactions", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, service.replaced, 2)
	assert.Equal(t, models.KindWithdrawal, service.replaced[1].Kind)
	assert.Equal(t, "2024-06-10", service.replaced[1].Date.Format("2006-01-02"))
}

func TestHandleReplaceTransactionsRejectsBadDate(t *testing.T) {
	handler := NewCambialHandler(&stubLedgerService{})

	body := `[{"date":"10/06/2024","kind":"DEPOSIT","amount_usd":1000}]`
	rec := httptest.NewRecorder()
	handler.HandleReplaceTransactions(rec, authenticatedRequest(http.MethodPut, "/api/cambial/transactions", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReplaceTransactionsRejectsUnknownKind(t *testing.T) {
	handler := NewCambialHandler(&stubLedgerService{})

	body := `[{"date":"2024-03-01","kind":"TRANSFER","amount_usd":1000}]`
	rec := httptest.NewRecorder()
	handler.HandleReplaceTransactions(rec, authenticatedRequest(http.MethodPut, "/api/cambial/transactions", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProcessLedgerStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"insufficient balance", fmt.Errorf("wrapped: %w", processors.ErrInsufficientBalance), http.StatusUnprocessableEntity},
		{"invalid sequence", processors.ErrInvalidSequence, http.StatusUnprocessableEntity},
		{"malformed amount", processors.ErrMalformedAmount, http.StatusUnprocessableEntity},
		{"rate unavailable", rates.ErrRateUnavailable, http.StatusBadGateway},
		{"internal", fmt.Errorf("database exploded"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewCambialHandler(&stubLedgerService{err: tc.err})
			rec := httptest.NewRecorder()
			handler.HandleProcessLedger(rec, authenticatedRequest(http.MethodPost, "/api/cambial/process", ""))
			assert.Equal(t, tc.expected, rec.Code)
		})
	}
}

func TestHandleProcessLedgerSuccess(t *testing.T) {
	service := &stubLedgerService{report: &models.LedgerReport{
		Summary: models.LedgerSummary{BalanceUSD: 600, TaxDue: 12},
	}}
	handler := NewCambialHandler(service)

	rec := httptest.NewRecorder()
	handler.HandleProcessLedger(rec, authenticatedRequest(http.MethodPost, "/api/cambial/process", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var report models.LedgerReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 600.0, report.Summary.BalanceUSD)
	assert.Equal(t, 12.0, report.Summary.TaxDue)
}
