package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avasquez/leadqual/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses:
// duplicate id 400, not found 404, validation 400, configuration 500,
// scoring failures 502, everything else 500.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var duplicate *domain.ErrDuplicateID
	var validation *domain.ErrValidation
	var configuration *domain.ErrConfiguration
	var scoringService *domain.ErrScoringService
	var scoringParse *domain.ErrScoringParse
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &duplicate):
		logger.Debug("duplicate id", zap.Int("customer_id", duplicate.ID))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &configuration):
		logger.Error("missing configuration", zap.String("setting", configuration.Setting))
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &scoringService):
		logger.Error("scoring service failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &scoringParse):
		logger.Error("scoring response unparseable", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &external):
		logger.Error("store backend failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
