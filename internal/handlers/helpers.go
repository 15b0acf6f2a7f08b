package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/inkwell-press/api/internal/payments"
	"github.com/inkwell-press/api/internal/platform/httpx"
	"github.com/inkwell-press/api/internal/services"
)

const defaultBodyLimit = 1 << 20

var (
	errBodyTooLarge = errors.New("handlers: request body too large")
	errEmptyBody    = errors.New("handlers: request body is empty")
)

// decodeJSONBody reads at most limit bytes and decodes them into target.
func decodeJSONBody(r *http.Request, target any, limit int64) error {
	if limit <= 0 {
		limit = defaultBodyLimit
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return err
	}
	if int64(len(body)) > limit {
		return errBodyTooLarge
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(body, target)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeServiceError maps service and gateway sentinels onto the HTTP envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	httpx.WriteError(ctx, w, serviceErrorToHTTP(err))
}

func serviceErrorToHTTP(err error) httpx.Error {
	switch {
	case errors.Is(err, services.ErrAuthenticationRequired):
		return httpx.NewError("authentication_required", "sign in to continue", http.StatusUnauthorized)
	case errors.Is(err, services.ErrForbidden):
		return httpx.NewError("forbidden", "you may not act on this resource", http.StatusForbidden)
	case errors.Is(err, services.ErrValidation):
		return httpx.NewError("validation_failed", err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrInvalidFileType):
		return httpx.NewError("invalid_file_type", err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, services.ErrFileTooLarge):
		return httpx.NewError("file_too_large", err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, services.ErrInvalidPaymentReference):
		return httpx.NewError("invalid_payment_reference", err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrPaymentIntentNotFound):
		return httpx.NewError("payment_intent_not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidStatusTransition):
		return httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrCartItemNotFound):
		return httpx.NewError("cart_item_not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrNotFound):
		return httpx.NewError("not_found", "resource not found", http.StatusNotFound)
	case errors.Is(err, payments.ErrGatewayUnavailable):
		return httpx.NewError("gateway_unavailable", "payment gateway unavailable, try again shortly", http.StatusBadGateway)
	case errors.Is(err, payments.ErrUnsupportedProvider):
		return httpx.NewError("unsupported_provider", err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrUnavailable):
		return httpx.NewError("dependency_unavailable", "a backing service is unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, errBodyTooLarge):
		return httpx.NewError("body_too_large", "request body exceeds the limit", http.StatusRequestEntityTooLarge)
	case errors.Is(err, errEmptyBody):
		return httpx.NewError("empty_body", "request body is required", http.StatusBadRequest)
	default:
		return httpx.NewError("internal_error", "something went wrong", http.StatusInternalServerError)
	}
}

// writeDecodeError maps body decoding failures, treating malformed JSON as a
// client error rather than an internal one.
func writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) || errors.Is(err, errEmptyBody) {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_json", "request body is not valid JSON", http.StatusBadRequest))
}
