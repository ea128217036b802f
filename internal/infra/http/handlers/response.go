package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeUseCaseError maps use case failures onto status codes.
func writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	var de *usecase.DomainError
	var te *usecase.TechnicalError

	switch {
	case errors.Is(err, entity.ErrNotFound):
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.As(err, &de):
		status := http.StatusBadRequest
		switch de.Code {
		case "IDEMPOTENCY_KEY_CONFLICT", "IDEMPOTENCY_KEY_IN_PROGRESS":
			status = http.StatusConflict
		}
		writeErrorResponse(w, status, de.Code, de.Message)
	case errors.As(err, &te):
		zap.L().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", te.Code),
			zap.Error(err),
		)
		writeErrorResponse(w, http.StatusInternalServerError, te.Code, "internal error")
	default:
		zap.L().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
