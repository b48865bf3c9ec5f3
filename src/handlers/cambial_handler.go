package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/username/cambitax/backend/src/logger"
	"github.com/username/cambitax/backend/src/models"
	"github.com/username/cambitax/backend/src/processors"
	"github.com/username/cambitax/backend/src/rates"
	"github.com/username/cambitax/backend/src/services"
	"github.com/username/cambitax/backend/src/utils"
)

// transactionPayload is the wire form of a capital transaction. Dates travel as
// ISO yyyy-mm-dd strings.
type transactionPayload struct {
	Date      string                 `json:"date"`
	Kind      models.TransactionKind `json:"kind"`
	AmountUSD float64                `json:"amount_usd"`
}

type CambialHandler struct {
	ledgerService services.LedgerService
}

func NewCambialHandler(service services.LedgerService) *CambialHandler {
	return &CambialHandler{ledgerService: service}
}

func (h *CambialHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	transactions, err := h.ledgerService.GetTransactions(r.Context(), userID)
	if err != nil {
		logger.L.Error("Failed to load capital transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving transactions", http.StatusInternalServerError)
		return
	}

	payload := make([]transactionPayload, 0, len(transactions))
	for _, t := range transactions {
		payload = append(payload, transactionPayload{
			Date:      t.Date.Format("2006-01-02"),
			Kind:      t.Kind,
			AmountUSD: t.AmountUSD,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error encoding transactions response", "userID", userID, "error", err)
	}
}

func (h *CambialHandler) HandleReplaceTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var payload []transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body: expected a JSON array of transactions", http.StatusBadRequest)
		return
	}

	transactions := make([]models.CapitalTransaction, 0, len(payload))
	for i, p := range payload {
		date, err := time.ParseInLocation("2006-01-02", p.Date, time.UTC)
		if err != nil {
			utils.SendJSONError(w, fmt.Sprintf("Transaction %d has an invalid date %q, expected yyyy-mm-dd", i+1, p.Date), http.StatusBadRequest)
			return
		}
		switch p.Kind {
		case models.KindDeposit, models.KindWithdrawal, models.KindYearEndUnrealized:
		default:
			utils.SendJSONError(w, fmt.Sprintf("Transaction %d has an unknown kind %q", i+1, p.Kind), http.StatusBadRequest)
			return
		}
		transactions = append(transactions, models.CapitalTransaction{
			Date:      date,
			Kind:      p.Kind,
			AmountUSD: p.AmountUSD,
		})
	}

	if err := h.ledgerService.ReplaceTransactions(r.Context(), userID, transactions); err != nil {
		logger.L.Error("Failed to replace capital transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error saving transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Transactions saved",
		"count":   len(transactions),
	})
}

func (h *CambialHandler) HandleProcessLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	report, err := h.ledgerService.ProcessLedger(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, processors.ErrInvalidSequence),
			errors.Is(err, processors.ErrInsufficientBalance),
			errors.Is(err, processors.ErrMalformedAmount):
			logger.L.Warn("Ledger processing rejected", "userID", userID, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, rates.ErrRateUnavailable):
			logger.L.Warn("Ledger processing failed: rate unavailable", "userID", userID, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusBadGateway)
		default:
			logger.L.Error("Ledger processing failed", "userID", userID, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the ledger", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Error encoding ledger report", "userID", userID, "error", err)
	}
}
