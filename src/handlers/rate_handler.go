package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/username/cambitax/backend/src/logger"
	"github.com/username/cambitax/backend/src/rates"
	"github.com/username/cambitax/backend/src/utils"
)

type RateHandler struct {
	resolver *rates.Resolver
}

func NewRateHandler(resolver *rates.Resolver) *RateHandler {
	return &RateHandler{resolver: resolver}
}

// HandleGetRate serves the PTAX quote applicable to one calendar date, after
// business-day fallback.
func (h *RateHandler) HandleGetRate(w http.ResponseWriter, r *http.Request) {
	dateStr := r.PathValue("date")
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		utils.SendJSONError(w, "Invalid date, expected yyyy-mm-dd", http.StatusBadRequest)
		return
	}

	rate, err := h.resolver.Resolve(r.Context(), date)
	if err != nil {
		if errors.Is(err, rates.ErrRateUnavailable) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.L.Error("Rate lookup failed", "date", dateStr, "error", err)
		utils.SendJSONError(w, "Error retrieving exchange rate", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"date": dateStr,
		"buy":  rate.Buy,
		"sell": rate.Sell,
	})
}
