// Package api provides HTTP API utilities including standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/edwds/mimy/internal/middleware"
)

// Error codes shared across handlers. Domain-specific codes map onto the
// same envelope as the generic ones.
const (
	ErrCodeValidation  = "validation_error"
	ErrCodeAuthFailed  = "auth_failed"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal_error"
	ErrCodeForbidden   = "forbidden"
	ErrCodeConflict    = "conflict"
	ErrCodeBadRequest  = "bad_request"

	// ErrCodeInvalidTier marks a satisfaction tier outside good/ok/bad.
	ErrCodeInvalidTier = "invalid_tier"
	// ErrCodeInvalidReorder marks an internally inconsistent reorder payload.
	ErrCodeInvalidReorder = "invalid_reorder"
	// ErrCodeDuplicateShop marks a shop the owner has already ranked.
	ErrCodeDuplicateShop = "duplicate_shop"
	// ErrCodeEntryNotFound marks a shop with no ranking entry for the owner.
	ErrCodeEntryNotFound = "entry_not_found"
	// ErrCodeBatchTooLarge marks a batch request over the size cap.
	ErrCodeBatchTooLarge = "batch_too_large"
)

// ErrorResponse is the JSON envelope every API error uses:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the standard JSON error envelope with the given status.
// Pass a context tagged via middleware.SetErrorCode so the access log line
// carries the code:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeEntryNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeEntryNotFound, "no ranking entry for shop")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status used for each error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidTier, ErrCodeInvalidReorder, ErrCodeBatchTooLarge:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound, ErrCodeEntryNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeConflict, ErrCodeDuplicateShop:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
