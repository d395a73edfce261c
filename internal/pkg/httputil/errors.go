// Package httputil provides HTTP utilities including consistent error responses.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/homeport/provisioner/internal/pkg/logger"
)

// ErrorResponse represents a consistent error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error codes for consistent error identification.
const (
	CodeForbidden       = "FORBIDDEN"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeInvalidJSON     = "INVALID_JSON"
	CodeRequestTooLarge = "REQUEST_TOO_LARGE"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
)

// WriteError writes a consistent JSON error response.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details string) {
	// Sanitize details to mask sensitive data before logging
	sanitizedDetails := SanitizeString(details)

	// Log the error
	reqID := chimiddleware.GetReqID(r.Context())
	logMsg := "HTTP error"
	if reqID != "" {
		logger.Error(logMsg,
			"request_id", reqID,
			"status", status,
			"code", code,
			"message", message,
			"details", sanitizedDetails,
			"path", r.URL.Path,
			"method", r.Method,
		)
	} else {
		logger.Error(logMsg,
			"status", status,
			"code", code,
			"message", message,
			"details", sanitizedDetails,
			"path", r.URL.Path,
			"method", r.Method,
		)
	}

	resp := ErrorResponse{
		Error: message,
		Code:  code,
	}
	if sanitizedDetails != "" {
		resp.Details = sanitizedDetails
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Forbidden writes a 403 Forbidden error response.
func Forbidden(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Forbidden"
	}
	WriteError(w, r, http.StatusForbidden, CodeForbidden, message, "")
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	message := "Internal server error"
	details := ""
	if err != nil {
		details = err.Error()
	}
	WriteError(w, r, http.StatusInternalServerError, CodeInternalError, message, details)
}

// InternalErrorWithMessage writes a 500 Internal Server Error response with a custom message.
func InternalErrorWithMessage(w http.ResponseWriter, r *http.Request, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	WriteError(w, r, http.StatusInternalServerError, CodeInternalError, message, details)
}

// InvalidJSON writes a 400 error for JSON parsing errors with helpful details.
func InvalidJSON(w http.ResponseWriter, r *http.Request, err error) {
	message := "Invalid JSON in request body"
	details := ""

	if err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalErr *json.UnmarshalTypeError

		switch {
		case errors.As(err, &syntaxErr):
			details = "Syntax error at position " + string(rune(syntaxErr.Offset))
		case errors.As(err, &unmarshalErr):
			details = "Field '" + unmarshalErr.Field + "' has wrong type, expected " + unmarshalErr.Type.String()
		case errors.Is(err, io.EOF):
			details = "Request body is empty"
		case strings.Contains(err.Error(), "unexpected end of JSON"):
			details = "Incomplete JSON body"
		default:
			details = err.Error()
		}
	}

	WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, message, details)
}

// RequestTooLarge writes a 413 Request Entity Too Large error response.
func RequestTooLarge(w http.ResponseWriter, r *http.Request, maxSize int64) {
	message := "Request body too large"
	details := ""
	if maxSize > 0 {
		details = "Maximum allowed size: " + formatBytes(maxSize)
	}
	WriteError(w, r, http.StatusRequestEntityTooLarge, CodeRequestTooLarge, message, details)
}

// formatBytes formats bytes into human readable format.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%d %cB", b/div, "KMGTPE"[exp])
}
