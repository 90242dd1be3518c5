package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/logging"
)

// ApiResponse is the envelope of every successful API response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeData writes {success: true, data} and logs encoding failures.
func writeData(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError writes an error response and logs encoding failures.
func writeError(w http.ResponseWriter, statusCode int, code, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps service errors onto HTTP statuses. Unclassified
// errors are logged and reported as internal errors under fallbackCode.
func writeServiceError(w http.ResponseWriter, err error, fallbackCode string, logger *zap.Logger) {
	msg := logging.SanitizeError(err)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", msg, logger)
	case errors.Is(err, apperrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", msg, logger)
	case errors.Is(err, apperrors.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, "unsupported_source_type", msg, logger)
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", msg, logger)
	default:
		logger.Error("Request failed", zap.String("code", fallbackCode), zap.String("error", msg))
		writeError(w, http.StatusInternalServerError, fallbackCode, msg, logger)
	}
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are ignored.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}
