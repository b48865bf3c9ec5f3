package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/cambitax/backend/src/config"
	"github.com/username/cambitax/backend/src/logger"
	"github.com/username/cambitax/backend/src/models"
	"github.com/username/cambitax/backend/src/parsers"
	"github.com/username/cambitax/backend/src/rates"
	"github.com/username/cambitax/backend/src/security/validation"
	"github.com/username/cambitax/backend/src/services"
	"github.com/username/cambitax/backend/src/utils"
)

type IRHandler struct {
	tradeService services.TradeService
}

func NewIRHandler(service services.TradeService) *IRHandler {
	return &IRHandler{tradeService: service}
}

func (h *IRHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "userID", userID, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file too large", "userID", userID, "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("File content validation failed", "userID", userID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("File content validated", "userID", userID, "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	report, err := h.tradeService.ProcessUpload(r.Context(), userID, file)
	if err != nil {
		switch {
		case errors.Is(err, parsers.ErrUnrecognizedFormat):
			logger.L.Warn("Upload rejected: unrecognized trade report format", "userID", userID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, parsers.ErrMalformedDate):
			logger.L.Warn("Upload rejected: malformed close date", "userID", userID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, rates.ErrRateUnavailable):
			logger.L.Warn("Upload failed: rate unavailable", "userID", userID, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusBadGateway)
		default:
			logger.L.Error("Internal error processing upload", "userID", userID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Error encoding upload response", "userID", userID, "error", err)
	}
}

func (h *IRHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	report, err := h.tradeService.GetReport(r.Context(), userID)
	if err != nil {
		logger.L.Error("Error retrieving tax report", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving tax report for userID %d", userID), http.StatusInternalServerError)
		return
	}

	// Optional drill-down: ?month=yyyy-mm narrows the trade list while the
	// monthly breakdown and annual summary stay whole-year.
	if month := r.URL.Query().Get("month"); month != "" {
		filtered := *report
		filtered.Trades = make([]models.TradeRecord, 0, len(report.Trades))
		for _, trade := range report.Trades {
			if trade.MonthKey == month {
				filtered.Trades = append(filtered.Trades, trade)
			}
		}
		report = &filtered
	}

	currentETag, etagErr := utils.GenerateETag(report)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for tax report", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, clientETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(clientETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Error encoding tax report", "userID", userID, "error", err)
	}
}
